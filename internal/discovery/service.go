package discovery

import (
	"context"
	"strings"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/leads"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Repository is the persistence surface discovery needs.
type Repository interface {
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetProfile(ctx context.Context, profileID string) (*domain.DiscoveryProfile, error)
	// ListEnabledProfiles returns every profile batch discovery should run.
	ListEnabledProfiles(ctx context.Context) ([]domain.DiscoveryProfile, error)
	MarkProfileRun(ctx context.Context, profileID string) error
	// LeadExists reports whether the tenant already tracks the domain.
	LeadExists(ctx context.Context, tenantID, leadDomain string) (bool, error)
	CreateLead(ctx context.Context, lead *domain.Lead) error
}

// Enqueuer dispatches follow-up jobs.
type Enqueuer interface {
	EnqueueDefault(ctx context.Context, kind domain.JobKind, payload interface{}) (int64, error)
}

// Service runs discovery batches and creates leads from source results.
type Service struct {
	registry *Registry
	repo     Repository
	jobs     Enqueuer
	log      *logger.Logger
}

// NewService wires the discovery service.
func NewService(registry *Registry, repo Repository, jobs Enqueuer) *Service {
	return &Service{registry: registry, repo: repo, jobs: jobs, log: logger.With("discovery")}
}

// Request describes one discover_leads run.
type Request struct {
	Source    string   `json:"source"`
	Queries   []string `json:"queries"`
	TenantID  string   `json:"tenant_id"`
	Limit     int      `json:"limit"`
	ProfileID string   `json:"profile_id,omitempty"`
}

// Report summarizes what a run did with the source results.
type Report struct {
	Created         int `json:"created"`
	SkippedExisting int `json:"skipped_existing"`
	SkippedExcluded int `json:"skipped_excluded"`
	SkippedDup      int `json:"skipped_dup"`
	SkippedInvalid  int `json:"skipped_invalid"`
}

// Run executes one discovery batch. Domains are deduplicated within the
// run, tenant-excluded domains and already-tracked leads are skipped, and
// every created lead gets an analyze_lead job. Re-running the same batch is
// safe: existing leads are simply skipped.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	source := s.registry.Get(req.Source)
	if source == nil {
		return nil, domain.Ef(domain.KindInvalidInput, "unknown discovery source %q", req.Source)
	}
	if len(req.Queries) == 0 {
		return nil, domain.E(domain.KindInvalidInput, "discovery needs at least one query")
	}
	tenant, err := s.repo.GetTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	excluded := make(map[string]struct{}, len(tenant.ExcludedDomains))
	for _, d := range tenant.ExcludedDomains {
		excluded[strings.ToLower(d)] = struct{}{}
	}

	report := &Report{}
	seen := map[string]struct{}{}
	remaining := limit
	for _, query := range req.Queries {
		if remaining <= 0 {
			break
		}
		results, err := source.Discover(ctx, query, remaining)
		if err != nil {
			return report, domain.Wrap(domain.KindUpstreamUnavailable, "discovery source", err)
		}
		for _, res := range results {
			if remaining <= 0 {
				break
			}
			created, err := s.ingest(ctx, tenant, req.ProfileID, res, seen, excluded, report)
			if err != nil {
				return report, err
			}
			if created {
				remaining--
			}
		}
	}
	s.log.Info("discovery run finished",
		"source", req.Source, "tenant_id", req.TenantID,
		"created", report.Created, "skipped_existing", report.SkippedExisting,
		"skipped_excluded", report.SkippedExcluded, "skipped_dup", report.SkippedDup)
	return report, nil
}

func (s *Service) ingest(ctx context.Context, tenant *domain.Tenant, profileID string, res Result, seen map[string]struct{}, excluded map[string]struct{}, report *Report) (bool, error) {
	canonicalURL, leadDomain, err := leads.CanonicalizeURL(res.URL)
	if err != nil {
		s.log.Debug("skipping invalid discovery url", "url", res.URL, "error", err.Error())
		report.SkippedInvalid++
		return false, nil
	}
	if _, dup := seen[leadDomain]; dup {
		report.SkippedDup++
		return false, nil
	}
	seen[leadDomain] = struct{}{}

	if _, ok := excluded[leadDomain]; ok {
		report.SkippedExcluded++
		return false, nil
	}
	exists, err := s.repo.LeadExists(ctx, tenant.ID, leadDomain)
	if err != nil {
		return false, err
	}
	if exists {
		report.SkippedExisting++
		return false, nil
	}

	lead := &domain.Lead{
		TenantID:           tenant.ID,
		Domain:             leadDomain,
		URL:                canonicalURL,
		Status:             domain.LeadNew,
		CompanyName:        res.CompanyName,
		ICO:                res.ICO,
		ContactEmail:       strings.ToLower(res.ContactEmail),
		DiscoveryProfileID: profileID,
	}
	if err := s.repo.CreateLead(ctx, lead); err != nil {
		return false, err
	}
	report.Created++

	if _, err := s.jobs.EnqueueDefault(ctx, domain.JobAnalyzeLead, map[string]string{
		"lead_id":    lead.ID,
		"profile_id": profileID,
	}); err != nil {
		return true, err
	}
	if lead.ICO != "" {
		if _, err := s.jobs.EnqueueDefault(ctx, domain.JobSyncCompanyByICO, map[string][]string{
			"icos": {lead.ICO},
		}); err != nil {
			return true, err
		}
	}
	return true, nil
}

// RunBatch enqueues one discover_leads job per enabled profile. Called by
// the batch_discovery job; duplicate ticks are absorbed by lead dedup.
func (s *Service) RunBatch(ctx context.Context) (int, error) {
	profiles, err := s.repo.ListEnabledProfiles(ctx)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, p := range profiles {
		req := Request{
			Source:    p.Source,
			Queries:   p.Queries,
			TenantID:  p.TenantID,
			Limit:     p.Limit,
			ProfileID: p.ID,
		}
		if _, err := s.jobs.EnqueueDefault(ctx, domain.JobDiscoverLeads, req); err != nil {
			return enqueued, err
		}
		if err := s.repo.MarkProfileRun(ctx, p.ID); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	s.log.Info("batch discovery dispatched", "profiles", enqueued)
	return enqueued, nil
}
