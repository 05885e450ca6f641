package suppression

import (
	"context"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// Repository defines the data access contract for the suppression list.
type Repository interface {
	// IsBlocked returns true if a global entry exists for the email, or a
	// per-tenant entry for (email, tenantID). tenantID may be empty.
	IsBlocked(ctx context.Context, email, tenantID string) (bool, error)

	// Upsert adds an entry. If it already exists the existing record is
	// preserved (idempotent).
	Upsert(ctx context.Context, entry *domain.SuppressionEntry) error

	// Remove deletes the entry for (email, tenantID); tenantID empty targets
	// the global entry. Returns true iff a row was removed.
	Remove(ctx context.Context, email, tenantID string) (bool, error)

	// List returns entries in a scope, newest first. tenantID empty lists
	// global entries. reason empty matches all reasons.
	List(ctx context.Context, tenantID string, reason domain.SuppressionReason, limit int) ([]domain.SuppressionEntry, error)
}
