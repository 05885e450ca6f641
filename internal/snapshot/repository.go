package snapshot

import (
	"context"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// Sample is one completed analysis flattened for benchmark aggregation.
type Sample struct {
	TotalScore     int
	CategoryScores map[string]int
	IssueCodes     []string
}

// Repository defines the data access contract for snapshots and benchmarks.
type Repository interface {
	// UpsertSnapshot creates or replaces the snapshot for the entry's
	// (lead, periodType, periodStart) key.
	UpsertSnapshot(ctx context.Context, s *domain.Snapshot) error

	// ListSnapshots returns a lead's snapshots for one period type, newest
	// period first.
	ListSnapshots(ctx context.Context, leadID string, period domain.PeriodType, limit int) ([]domain.Snapshot, error)

	// Samples returns completed analyses for (tenant, industry) whose
	// completion falls inside [periodStart, periodEnd).
	Samples(ctx context.Context, tenantID, industry string, periodStart, periodEnd time.Time) ([]Sample, error)

	// UpsertBenchmark creates or replaces the benchmark for the entry's
	// (tenant, industry, periodStart) key.
	UpsertBenchmark(ctx context.Context, b *domain.Benchmark) error

	// LatestBenchmark returns the newest benchmark for (tenant, industry),
	// or nil when none exists.
	LatestBenchmark(ctx context.Context, tenantID, industry string) (*domain.Benchmark, error)
}
