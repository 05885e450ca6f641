// Package analysis runs the tenant-configurable analyzer set over a lead,
// persists per-category results and computes the history-linked analysis
// with score and issue deltas.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/scoring"
)

// Snapshotter is the slice of the snapshot service the pipeline needs.
type Snapshotter interface {
	UpsertFromAnalysis(ctx context.Context, lead *domain.Lead, analysis *domain.Analysis, results []domain.AnalysisResult) (*domain.Snapshot, error)
}

// Enqueuer dispatches follow-up jobs.
type Enqueuer interface {
	EnqueueDefault(ctx context.Context, kind domain.JobKind, payload interface{}) (int64, error)
}

// RunOptions tune one pipeline run.
type RunOptions struct {
	// Industry overrides the lead's stored industry for analyzer selection.
	Industry string
	// ProfileID overrides the lead's attached discovery profile.
	ProfileID string
}

// Pipeline executes analysis runs. Per-lead serialization is enforced by the
// repository's one-in-flight precondition, not by the pipeline itself.
type Pipeline struct {
	repo            Repository
	registry        *Registry
	snapshots       Snapshotter
	jobs            Enqueuer
	analyzerTimeout time.Duration
	log             *logger.Logger
}

// NewPipeline wires an analysis pipeline.
func NewPipeline(repo Repository, registry *Registry, snapshots Snapshotter, jobs Enqueuer, analyzerTimeout time.Duration) *Pipeline {
	if analyzerTimeout <= 0 {
		analyzerTimeout = 30 * time.Second
	}
	return &Pipeline{
		repo:            repo,
		registry:        registry,
		snapshots:       snapshots,
		jobs:            jobs,
		analyzerTimeout: analyzerTimeout,
		log:             logger.With("analysis"),
	}
}

// Run performs one full analysis of a lead. A concurrent run for the same
// lead is detected via the in-flight precondition and exits as a no-op.
func (p *Pipeline) Run(ctx context.Context, leadID string, opts RunOptions) (out *domain.Analysis, retErr error) {
	lead, err := p.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	industry := lead.Industry
	if opts.Industry != "" {
		industry = opts.Industry
	}

	previous, err := p.repo.LatestAnalysis(ctx, leadID)
	if err != nil {
		return nil, err
	}

	analysis := &domain.Analysis{
		LeadID:         leadID,
		SequenceNumber: 1,
		Status:         domain.AnalysisRunning,
		Industry:       industry,
		StartedAt:      time.Now().UTC(),
	}
	if previous != nil {
		analysis.SequenceNumber = previous.SequenceNumber + 1
		analysis.PreviousAnalysisID = previous.ID
	}
	if err := p.repo.CreateAnalysis(ctx, analysis); err != nil {
		if err == ErrAnalysisInFlight || domain.KindOf(err) == domain.KindInvalidTransition {
			p.log.Warn("analysis already in flight, skipping", "lead_id", leadID)
			return nil, nil
		}
		return nil, err
	}
	// The row now holds the lead's in-flight slot; a run that aborts here
	// must still close it out or every later run would no-op.
	defer func() {
		if retErr != nil {
			p.markFailed(ctx, analysis)
		}
	}()

	profileID := lead.DiscoveryProfileID
	if opts.ProfileID != "" {
		profileID = opts.ProfileID
	}
	var profile *domain.DiscoveryProfile
	if profileID != "" {
		profile, err = p.repo.GetProfile(ctx, profileID)
		if err != nil && domain.KindOf(err) != domain.KindNotFound {
			return nil, err
		}
	}

	selected := p.registry.Select(profile, industry)
	p.log.Info("analysis started", "lead_id", leadID, "sequence", analysis.SequenceNumber,
		"analyzers", len(selected))

	results := make([]domain.AnalysisResult, 0, len(selected))
	for _, a := range selected {
		result := p.runAnalyzer(ctx, a, lead, analysis, profile)
		results = append(results, *result)
		if a.Category() == CategoryEshopDetection && result.RawData != nil {
			if v, ok := result.RawData[RawKeyIsEshop].(bool); ok {
				analysis.IsEshop = v
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return p.finalize(ctx, lead, analysis, previous, results)
}

// markFailed finalizes an aborted run's row to failed. Best effort and
// detached from the run's cancellation, so a cancelled ctx cannot leave
// the row running.
func (p *Pipeline) markFailed(ctx context.Context, analysis *domain.Analysis) {
	analysis.Status = domain.AnalysisFailed
	if analysis.CompletedAt == nil {
		now := time.Now().UTC()
		analysis.CompletedAt = &now
	}
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.repo.FinalizeAnalysis(finCtx, analysis); err != nil {
		p.log.Error("finalize aborted analysis",
			"analysis_id", analysis.ID, "lead_id", analysis.LeadID, "error", err.Error())
	}
}

func (p *Pipeline) runAnalyzer(ctx context.Context, a Analyzer, lead *domain.Lead, analysis *domain.Analysis, profile *domain.DiscoveryProfile) *domain.AnalysisResult {
	result := &domain.AnalysisResult{
		AnalysisID: analysis.ID,
		Category:   a.Category(),
		Status:     domain.AnalysisRunning,
	}
	if err := p.repo.CreateResult(ctx, result); err != nil {
		p.log.Error("create result row", "lead_id", lead.ID, "category", a.Category(), "error", err.Error())
		result.Status = domain.AnalysisFailed
		result.ErrorMessage = err.Error()
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, p.analyzerTimeout)
	out, err := a.Analyze(runCtx, lead)
	cancel()

	switch {
	case err != nil:
		result.Status = domain.AnalysisFailed
		result.ErrorMessage = err.Error()
	case out == nil || !out.Success:
		result.Status = domain.AnalysisFailed
		if out != nil {
			result.ErrorMessage = out.ErrorMessage
		}
	default:
		result.Status = domain.AnalysisCompleted
		result.Issues = filterIgnored(out.Issues, profile.IgnoredCodes(a.Category()))
		result.RawData = out.RawData
		result.Score = out.Score
	}

	if err := p.repo.UpdateResult(ctx, result); err != nil {
		p.log.Error("persist result", "lead_id", lead.ID, "category", a.Category(), "error", err.Error())
	}
	return result
}

func (p *Pipeline) finalize(ctx context.Context, lead *domain.Lead, analysis *domain.Analysis, previous *domain.Analysis, results []domain.AnalysisResult) (*domain.Analysis, error) {
	completed := 0
	total := 0
	for _, r := range results {
		if r.Status == domain.AnalysisCompleted {
			completed++
			total += r.Score
		}
	}
	analysis.TotalScore = total
	if len(results) > 0 && completed == 0 {
		analysis.Status = domain.AnalysisFailed
	} else {
		analysis.Status = domain.AnalysisCompleted
	}

	if previous != nil {
		delta := total - previous.TotalScore
		analysis.ScoreDelta = &delta
		analysis.IsImproved = delta >= 0

		prevResults, err := p.repo.ResultsForAnalysis(ctx, previous.ID)
		if err != nil {
			return nil, err
		}
		analysis.IssueDelta = issueDelta(issueCodes(prevResults), issueCodes(results))
	}

	now := time.Now().UTC()
	analysis.CompletedAt = &now
	if err := p.repo.FinalizeAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("finalize analysis %s: %w", analysis.ID, err)
	}

	// Lead bookkeeping plus status mapping
	lead.LatestAnalysisID = analysis.ID
	lead.AnalysisCount++
	lead.AnalyzedAt = &now
	if lead.Industry == "" && analysis.Industry != "" {
		lead.Industry = analysis.Industry
	}
	if analysis.Status == domain.AnalysisCompleted && scoring.ShouldApply(lead.Status) {
		thresholds := domain.DefaultScoringThresholds()
		if tenant, err := p.repo.GetTenant(ctx, lead.TenantID); err == nil && tenant.Scoring != (domain.ScoringThresholds{}) {
			thresholds = tenant.Scoring
		}
		lead.Status = scoring.MapStatus(analysis.TotalScore, domain.CriticalIssueCount(results), analysis.IsEshop, thresholds)
	}
	if err := p.repo.UpdateLeadAfterAnalysis(ctx, lead); err != nil {
		return nil, fmt.Errorf("update lead %s: %w", lead.ID, err)
	}

	if analysis.Status == domain.AnalysisCompleted && p.snapshots != nil {
		if _, err := p.snapshots.UpsertFromAnalysis(ctx, lead, analysis, results); err != nil {
			p.log.Error("snapshot upsert", "lead_id", lead.ID, "error", err.Error())
		}
	}

	if p.jobs != nil {
		if _, err := p.jobs.EnqueueDefault(ctx, domain.JobTakeScreenshot, map[string]string{"lead_id": lead.ID}); err != nil {
			p.log.Warn("enqueue screenshot", "lead_id", lead.ID, "error", err.Error())
		}
	}

	p.log.Info("analysis finished", "lead_id", lead.ID, "sequence", analysis.SequenceNumber,
		"status", string(analysis.Status), "score", analysis.TotalScore)
	return analysis, nil
}

func filterIgnored(issues []domain.Issue, ignored []string) []domain.Issue {
	if len(ignored) == 0 {
		return issues
	}
	skip := make(map[string]bool, len(ignored))
	for _, code := range ignored {
		skip[code] = true
	}
	out := issues[:0]
	for _, is := range issues {
		if !skip[is.Code] {
			out = append(out, is)
		}
	}
	return out
}

// issueCodes collects the deduplicated set of issue codes across results.
func issueCodes(results []domain.AnalysisResult) map[string]bool {
	codes := make(map[string]bool)
	for _, r := range results {
		for _, is := range r.Issues {
			codes[is.Code] = true
		}
	}
	return codes
}

func issueDelta(prev, curr map[string]bool) *domain.IssueDelta {
	d := &domain.IssueDelta{Added: []string{}, Removed: []string{}}
	for code := range curr {
		if prev[code] {
			d.UnchangedCount++
		} else {
			d.Added = append(d.Added, code)
		}
	}
	for code := range prev {
		if !curr[code] {
			d.Removed = append(d.Removed, code)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}
