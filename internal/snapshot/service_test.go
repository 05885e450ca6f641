package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

type mockRepo struct {
	snapshots  map[string]*domain.Snapshot
	benchmarks map[string]*domain.Benchmark
	samples    []Sample
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		snapshots:  make(map[string]*domain.Snapshot),
		benchmarks: make(map[string]*domain.Benchmark),
	}
}

func (m *mockRepo) UpsertSnapshot(_ context.Context, s *domain.Snapshot) error {
	key := s.LeadID + "|" + string(s.PeriodType) + "|" + s.PeriodStart.Format(time.RFC3339)
	m.snapshots[key] = s
	return nil
}

func (m *mockRepo) ListSnapshots(_ context.Context, leadID string, period domain.PeriodType, limit int) ([]domain.Snapshot, error) {
	var out []domain.Snapshot
	for _, s := range m.snapshots {
		if s.LeadID == leadID && s.PeriodType == period {
			out = append(out, *s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockRepo) Samples(_ context.Context, _, _ string, _, _ time.Time) ([]Sample, error) {
	return m.samples, nil
}

func (m *mockRepo) UpsertBenchmark(_ context.Context, b *domain.Benchmark) error {
	m.benchmarks[b.TenantID+"|"+b.Industry] = b
	return nil
}

func (m *mockRepo) LatestBenchmark(_ context.Context, tenantID, industry string) (*domain.Benchmark, error) {
	return m.benchmarks[tenantID+"|"+industry], nil
}

func intPtr(n int) *int { return &n }

func TestUpsertFromAnalysisReplacesSamePeriod(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 5)
	lead := &domain.Lead{ID: "L1", Industry: "consulting"} // weekly period

	analysis := &domain.Analysis{ID: "A1", TotalScore: 40}
	results := []domain.AnalysisResult{
		{Category: "seo", Status: domain.AnalysisCompleted, Score: 25, Issues: []domain.Issue{
			{Code: "MISSING_TITLE", Severity: domain.SeverityCritical},
		}},
		{Category: "security", Status: domain.AnalysisCompleted, Score: 15},
		{Category: "performance", Status: domain.AnalysisFailed},
	}

	snap, err := svc.UpsertFromAnalysis(context.Background(), lead, analysis, results)
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodWeek, snap.PeriodType)
	assert.Equal(t, domain.PeriodStart(domain.PeriodWeek, time.Now()), snap.PeriodStart)
	assert.Equal(t, 40, snap.TotalScore)
	assert.Equal(t, map[string]int{"seo": 25, "security": 15}, snap.CategoryScores, "failed results carry no score")
	assert.Equal(t, 1, snap.CriticalIssueCount)
	require.Len(t, repo.snapshots, 1)

	// Second analysis in the same period replaces, not duplicates
	analysis2 := &domain.Analysis{ID: "A2", TotalScore: 55, ScoreDelta: intPtr(15)}
	snap2, err := svc.UpsertFromAnalysis(context.Background(), lead, analysis2, results)
	require.NoError(t, err)
	assert.Len(t, repo.snapshots, 1)
	assert.Equal(t, "A2", snap2.AnalysisID)
}

func TestUpsertFromAnalysisEshopUsesDailyPeriod(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 5)
	lead := &domain.Lead{ID: "L2", Industry: "eshop"}

	snap, err := svc.UpsertFromAnalysis(context.Background(), lead, &domain.Analysis{ID: "A1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodDay, snap.PeriodType)
}

func TestComputeBenchmarkPercentiles(t *testing.T) {
	repo := newMockRepo()
	for score := 10; score <= 100; score += 10 {
		repo.samples = append(repo.samples, Sample{
			TotalScore:     score,
			CategoryScores: map[string]int{"seo": score / 2},
			IssueCodes:     []string{"MISSING_TITLE"},
		})
	}
	svc := NewService(repo, 3)

	b, err := svc.ComputeBenchmark(context.Background(), "T1", "eshop", time.Now())
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, 10, b.SampleSize)
	assert.InDelta(t, 55.0, b.AvgScore, 0.001)
	assert.InDelta(t, 55.0, b.MedianScore, 0.001)
	assert.InDelta(t, 19.0, b.Percentiles.P10, 0.001)
	assert.InDelta(t, 91.0, b.Percentiles.P90, 0.001)
	assert.InDelta(t, 27.5, b.AvgCategoryScores["seo"], 0.001)

	require.Len(t, b.TopIssues, 1)
	assert.Equal(t, "MISSING_TITLE", b.TopIssues[0].Code)
	assert.Equal(t, 10, b.TopIssues[0].Count)
	assert.InDelta(t, 100.0, b.TopIssues[0].Percentage, 0.001)
}

func TestComputeBenchmarkNoSamples(t *testing.T) {
	svc := NewService(newMockRepo(), 5)
	b, err := svc.ComputeBenchmark(context.Background(), "T1", "eshop", time.Now())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestBenchmarkRankBuckets(t *testing.T) {
	b := &domain.Benchmark{Percentiles: &domain.Percentiles{P10: 10, P25: 25, P50: 50, P75: 75, P90: 90}}

	assert.Equal(t, domain.RankTop10, b.Rank(95))
	assert.Equal(t, domain.RankTop10, b.Rank(90))
	assert.Equal(t, domain.RankTop25, b.Rank(80))
	assert.Equal(t, domain.RankAboveAverage, b.Rank(60))
	assert.Equal(t, domain.RankBelowAverage, b.Rank(30))
	assert.Equal(t, domain.RankBottom25, b.Rank(5))

	var empty *domain.Benchmark
	assert.Equal(t, domain.RankUnknown, empty.Rank(50))
	assert.Equal(t, domain.RankUnknown, (&domain.Benchmark{}).Rank(50))
}

func TestTrendValidation(t *testing.T) {
	svc := NewService(newMockRepo(), 5)
	_, err := svc.Trend(context.Background(), "L1", "year", 10)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	assert.InDelta(t, 25.0, percentile(sorted, 50), 0.001)
	assert.InDelta(t, 10.0, percentile(sorted, 0), 0.001)
	assert.InDelta(t, 40.0, percentile(sorted, 100), 0.001)
	assert.InDelta(t, 42.0, percentile([]float64{42}, 90), 0.001)
	assert.Equal(t, 0.0, percentile(nil, 50))
}
