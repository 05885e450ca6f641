package offer

import (
	"context"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// ErrVersionConflict is returned when an optimistic-lock update loses the
// race. Callers may reload and retry.
var ErrVersionConflict = domain.E(domain.KindInvalidTransition, "offer was modified concurrently")

// Repository is the persistence surface the offer service needs. Offer
// updates use optimistic locking on the version column.
type Repository interface {
	GetOffer(ctx context.Context, id string) (*domain.Offer, error)
	GetOfferByToken(ctx context.Context, token string) (*domain.Offer, error)
	GetOfferByMessageID(ctx context.Context, messageID string) (*domain.Offer, error)
	CreateOffer(ctx context.Context, o *domain.Offer) error
	// UpdateOffer persists o if its version still matches, then bumps the
	// version. Returns ErrVersionConflict on a lost race.
	UpdateOffer(ctx context.Context, o *domain.Offer) error
	// MarkSent persists the sent transition and the email log row in one
	// transaction.
	MarkSent(ctx context.Context, o *domain.Offer, log *domain.EmailLog) error

	GetLead(ctx context.Context, leadID string) (*domain.Lead, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetTenantByUserCode(ctx context.Context, userCode string) (*domain.Tenant, error)

	GetProposal(ctx context.Context, id string) (*domain.Proposal, error)
	CreateProposal(ctx context.Context, p *domain.Proposal) error
	// FindProposalByLeadAndType returns the newest non-expired proposal for
	// (leadID, type), or nil. This is the generate_proposal idempotency key.
	FindProposalByLeadAndType(ctx context.Context, leadID, proposalType string) (*domain.Proposal, error)
	LatestAnalysis(ctx context.Context, leadID string) (*domain.Analysis, error)
	ResultsForAnalysis(ctx context.Context, analysisID string) ([]domain.AnalysisResult, error)
	// FindRecyclableProposal returns the oldest recyclable proposal matching
	// industry and type, or nil when none exists.
	FindRecyclableProposal(ctx context.Context, industry, proposalType string) (*domain.Proposal, error)
	MoveProposal(ctx context.Context, p *domain.Proposal) error
	ExpireProposals(ctx context.Context) (int, error)
}
