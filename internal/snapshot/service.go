// Package snapshot aggregates completed analyses into per-lead period
// snapshots and per-industry benchmarks with percentile maps.
package snapshot

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// severityRank orders issues for a single-analysis top list.
var severityRank = map[domain.IssueSeverity]int{
	domain.SeverityCritical: 0,
	domain.SeverityHigh:     1,
	domain.SeverityMedium:   2,
	domain.SeverityLow:      3,
	domain.SeverityInfo:     4,
}

// Service builds snapshots and benchmarks.
type Service struct {
	repo      Repository
	topIssues int
	log       *logger.Logger
}

// NewService creates a snapshot service. topIssues caps the top-issue lists.
func NewService(repo Repository, topIssues int) *Service {
	if topIssues <= 0 {
		topIssues = 5
	}
	return &Service{repo: repo, topIssues: topIssues, log: logger.With("snapshot")}
}

// UpsertFromAnalysis creates or replaces the snapshot for the lead's current
// period from a just-completed analysis.
func (s *Service) UpsertFromAnalysis(ctx context.Context, lead *domain.Lead, analysis *domain.Analysis, results []domain.AnalysisResult) (*domain.Snapshot, error) {
	period := lead.EffectiveSnapshotPeriod()

	categoryScores := make(map[string]int)
	var issues []domain.Issue
	for _, r := range results {
		if r.Status != domain.AnalysisCompleted {
			continue
		}
		categoryScores[r.Category] = r.Score
		issues = append(issues, r.Issues...)
	}

	snap := &domain.Snapshot{
		LeadID:             lead.ID,
		PeriodType:         period,
		PeriodStart:        domain.PeriodStart(period, time.Now()),
		AnalysisID:         analysis.ID,
		TotalScore:         analysis.TotalScore,
		CategoryScores:     categoryScores,
		IssueCount:         len(issues),
		CriticalIssueCount: domain.CriticalIssueCount(results),
		TopIssues:          topIssuesBySeverity(issues, s.topIssues),
		ScoreDelta:         analysis.ScoreDelta,
	}
	if err := s.repo.UpsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	s.log.Debug("snapshot upserted", "lead_id", lead.ID, "period", string(period), "score", analysis.TotalScore)
	return snap, nil
}

// Trend returns a lead's snapshots for one period type, newest first.
func (s *Service) Trend(ctx context.Context, leadID string, period domain.PeriodType, limit int) ([]domain.Snapshot, error) {
	switch period {
	case domain.PeriodDay, domain.PeriodWeek, domain.PeriodMonth:
	default:
		return nil, domain.Ef(domain.KindInvalidInput, "unknown period %q", period)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListSnapshots(ctx, leadID, period, limit)
}

// ComputeBenchmark aggregates all completed analyses for (tenant, industry)
// in the week containing now into a benchmark row. Returns nil without error
// when there are no samples.
func (s *Service) ComputeBenchmark(ctx context.Context, tenantID, industry string, now time.Time) (*domain.Benchmark, error) {
	if industry == "" {
		return nil, domain.E(domain.KindInvalidInput, "industry is required")
	}
	periodStart := domain.PeriodStart(domain.PeriodWeek, now)
	periodEnd := periodStart.AddDate(0, 0, 7)

	samples, err := s.repo.Samples(ctx, tenantID, industry, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		s.log.Debug("no samples for benchmark", "tenant_id", tenantID, "industry", industry)
		return nil, nil
	}

	scores := make([]float64, len(samples))
	categorySums := make(map[string]float64)
	categoryCounts := make(map[string]int)
	issueCounts := make(map[string]int)
	var sum float64
	for i, sample := range samples {
		scores[i] = float64(sample.TotalScore)
		sum += scores[i]
		for cat, score := range sample.CategoryScores {
			categorySums[cat] += float64(score)
			categoryCounts[cat]++
		}
		seen := make(map[string]bool, len(sample.IssueCodes))
		for _, code := range sample.IssueCodes {
			if !seen[code] {
				seen[code] = true
				issueCounts[code]++
			}
		}
	}
	sort.Float64s(scores)

	avgCategory := make(map[string]float64, len(categorySums))
	for cat, total := range categorySums {
		avgCategory[cat] = total / float64(categoryCounts[cat])
	}

	b := &domain.Benchmark{
		TenantID:    tenantID,
		Industry:    industry,
		PeriodStart: periodStart,
		AvgScore:    sum / float64(len(samples)),
		MedianScore: percentile(scores, 50),
		Percentiles: &domain.Percentiles{
			P10: percentile(scores, 10),
			P25: percentile(scores, 25),
			P50: percentile(scores, 50),
			P75: percentile(scores, 75),
			P90: percentile(scores, 90),
		},
		AvgCategoryScores: avgCategory,
		TopIssues:         topIssuesByCount(issueCounts, len(samples), s.topIssues),
		SampleSize:        len(samples),
	}
	if err := s.repo.UpsertBenchmark(ctx, b); err != nil {
		return nil, err
	}
	s.log.Info("benchmark computed", "tenant_id", tenantID, "industry", industry,
		"sample_size", len(samples), "avg", b.AvgScore)
	return b, nil
}

// LatestBenchmark returns the newest benchmark for (tenant, industry).
func (s *Service) LatestBenchmark(ctx context.Context, tenantID, industry string) (*domain.Benchmark, error) {
	return s.repo.LatestBenchmark(ctx, tenantID, industry)
}

// percentile computes the p-th percentile over sorted scores with linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func topIssuesBySeverity(issues []domain.Issue, n int) []domain.TopIssue {
	counts := make(map[string]int)
	severity := make(map[string]domain.IssueSeverity)
	for _, is := range issues {
		counts[is.Code]++
		if _, ok := severity[is.Code]; !ok {
			severity[is.Code] = is.Severity
		}
	}
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		ri, rj := severityRank[severity[codes[i]]], severityRank[severity[codes[j]]]
		if ri != rj {
			return ri < rj
		}
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	if len(codes) > n {
		codes = codes[:n]
	}
	out := make([]domain.TopIssue, len(codes))
	for i, code := range codes {
		out[i] = domain.TopIssue{Code: code, Count: counts[code]}
	}
	return out
}

func topIssuesByCount(counts map[string]int, sampleSize, n int) []domain.TopIssue {
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	if len(codes) > n {
		codes = codes[:n]
	}
	out := make([]domain.TopIssue, len(codes))
	for i, code := range codes {
		out[i] = domain.TopIssue{
			Code:       code,
			Count:      counts[code],
			Percentage: math.Round(float64(counts[code])/float64(sampleSize)*10000) / 100,
		}
	}
	return out
}
