package suppression

import (
	"context"
	"strings"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logger.With("suppression")}
}

// Normalize canonicalizes an email address for membership checks: trimmed
// and lowercased, so lookups are case-insensitive.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsBlocked checks whether an email address must not be sent to. True if a
// global entry exists or a per-tenant entry for (email, tenantID) exists.
func (s *Service) IsBlocked(ctx context.Context, email, tenantID string) (bool, error) {
	email = Normalize(email)
	if email == "" {
		return false, domain.E(domain.KindInvalidInput, "email is required")
	}
	return s.repo.IsBlocked(ctx, email, tenantID)
}

// Add upserts a suppression entry. Hard bounces and complaints always produce
// a global entry regardless of the tenant argument; other reasons are scoped
// to the given tenant. Duplicates are not errors.
func (s *Service) Add(ctx context.Context, email string, reason domain.SuppressionReason, tenantID, source string) (*domain.SuppressionEntry, error) {
	email = Normalize(email)
	if email == "" {
		return nil, domain.E(domain.KindInvalidInput, "email is required")
	}
	if reason.GlobalReason() {
		tenantID = ""
	}

	entry := &domain.SuppressionEntry{
		Email:    email,
		TenantID: tenantID,
		Reason:   reason,
		Source:   source,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	s.log.Info("suppression added", "email", email, "reason", string(reason), "tenant_id", tenantID)
	return entry, nil
}

// Remove deletes a suppression entry. tenantID empty targets the global
// entry. Returns true iff an entry was removed.
func (s *Service) Remove(ctx context.Context, email, tenantID string) (bool, error) {
	email = Normalize(email)
	if email == "" {
		return false, domain.E(domain.KindInvalidInput, "email is required")
	}
	return s.repo.Remove(ctx, email, tenantID)
}

// ListUnsubscribes returns a tenant's unsubscribe entries, newest first.
func (s *Service) ListUnsubscribes(ctx context.Context, tenantID string, limit int) ([]domain.SuppressionEntry, error) {
	if tenantID == "" {
		return nil, domain.E(domain.KindInvalidInput, "tenantID is required")
	}
	return s.repo.List(ctx, tenantID, domain.ReasonUnsubscribe, limit)
}

// ListGlobal returns global entries, newest first.
func (s *Service) ListGlobal(ctx context.Context, limit int) ([]domain.SuppressionEntry, error) {
	return s.repo.List(ctx, "", "", limit)
}
