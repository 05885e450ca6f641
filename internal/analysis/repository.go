package analysis

import (
	"context"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// ErrAnalysisInFlight is returned by CreateAnalysis when the lead already
// has a pending or running analysis. The pipeline treats it as a no-op.
var ErrAnalysisInFlight = domain.E(domain.KindInvalidTransition, "an analysis is already in flight for this lead")

// Repository defines the data access contract for the analysis pipeline.
type Repository interface {
	GetLead(ctx context.Context, leadID string) (*domain.Lead, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetProfile(ctx context.Context, profileID string) (*domain.DiscoveryProfile, error)

	// LatestAnalysis returns the lead's newest analysis, or nil when the
	// lead has never been analyzed.
	LatestAnalysis(ctx context.Context, leadID string) (*domain.Analysis, error)

	// CreateAnalysis inserts a new analysis row. Returns ErrAnalysisInFlight
	// when the one-in-flight-per-lead precondition fails.
	CreateAnalysis(ctx context.Context, a *domain.Analysis) error

	// FinalizeAnalysis persists the terminal fields of an analysis.
	FinalizeAnalysis(ctx context.Context, a *domain.Analysis) error

	CreateResult(ctx context.Context, r *domain.AnalysisResult) error
	UpdateResult(ctx context.Context, r *domain.AnalysisResult) error

	// ResultsForAnalysis returns all per-category results of an analysis.
	ResultsForAnalysis(ctx context.Context, analysisID string) ([]domain.AnalysisResult, error)

	// ListAnalyses returns a lead's analyses newest first, with total count.
	ListAnalyses(ctx context.Context, leadID string, limit, offset int) ([]domain.Analysis, int, error)

	// UpdateLeadAfterAnalysis persists latest-analysis link, analysis count,
	// analyzedAt, industry and status in one statement.
	UpdateLeadAfterAnalysis(ctx context.Context, lead *domain.Lead) error
}
