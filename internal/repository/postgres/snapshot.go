package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/snapshot"
)

// SnapshotRepo implements snapshot.Repository against PostgreSQL.
type SnapshotRepo struct{ db *sql.DB }

// NewSnapshotRepo creates a Postgres-backed snapshot repository.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) UpsertSnapshot(ctx context.Context, s *domain.Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	categoryScores, err := jsonValue(s.CategoryScores)
	if err != nil {
		return err
	}
	topIssues, err := jsonValue(s.TopIssues)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, lead_id, period_type, period_start, total_score,
		                       category_scores, issue_count, critical_issue_count,
		                       top_issues, score_delta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (lead_id, period_type, period_start) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			category_scores = EXCLUDED.category_scores,
			issue_count = EXCLUDED.issue_count,
			critical_issue_count = EXCLUDED.critical_issue_count,
			top_issues = EXCLUDED.top_issues,
			score_delta = EXCLUDED.score_delta,
			updated_at = NOW()
	`, s.ID, s.LeadID, string(s.PeriodType), s.PeriodStart, s.TotalScore,
		categoryScores, s.IssueCount, s.CriticalIssueCount, topIssues, s.ScoreDelta)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) ListSnapshots(ctx context.Context, leadID string, period domain.PeriodType, limit int) ([]domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, period_type, period_start, total_score, category_scores,
		       issue_count, critical_issue_count, top_issues, score_delta, created_at
		FROM snapshots
		WHERE lead_id = $1 AND period_type = $2
		ORDER BY period_start DESC
		LIMIT $3
	`, leadID, string(period), limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		var categoryScores, topIssues []byte
		var scoreDelta sql.NullInt64
		if err := rows.Scan(&s.ID, &s.LeadID, &s.PeriodType, &s.PeriodStart, &s.TotalScore,
			&categoryScores, &s.IssueCount, &s.CriticalIssueCount, &topIssues,
			&scoreDelta, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := scanJSON(categoryScores, &s.CategoryScores); err != nil {
			return nil, err
		}
		if err := scanJSON(topIssues, &s.TopIssues); err != nil {
			return nil, err
		}
		if scoreDelta.Valid {
			v := int(scoreDelta.Int64)
			s.ScoreDelta = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SnapshotRepo) Samples(ctx context.Context, tenantID, industry string, periodStart, periodEnd time.Time) ([]snapshot.Sample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.total_score
		FROM analyses a
		JOIN leads l ON l.id = a.lead_id
		WHERE l.tenant_id = $1
		  AND a.industry = $2
		  AND a.status = 'completed'
		  AND a.completed_at >= $3 AND a.completed_at < $4
	`, tenantID, industry, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("benchmark samples: %w", err)
	}
	defer rows.Close()

	var ids []string
	var samples []snapshot.Sample
	for rows.Next() {
		var id string
		var sample snapshot.Sample
		if err := rows.Scan(&id, &sample.TotalScore); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		ids = append(ids, id)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		if err := r.fillSample(ctx, id, &samples[i]); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

func (r *SnapshotRepo) fillSample(ctx context.Context, analysisID string, sample *snapshot.Sample) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, score, issues
		FROM analysis_results
		WHERE analysis_id = $1 AND status = 'completed'
	`, analysisID)
	if err != nil {
		return fmt.Errorf("sample results: %w", err)
	}
	defer rows.Close()

	sample.CategoryScores = make(map[string]int)
	for rows.Next() {
		var category string
		var score int
		var issuesRaw []byte
		if err := rows.Scan(&category, &score, &issuesRaw); err != nil {
			return fmt.Errorf("scan sample result: %w", err)
		}
		sample.CategoryScores[category] = score
		var issues []domain.Issue
		if err := scanJSON(issuesRaw, &issues); err != nil {
			return err
		}
		for _, is := range issues {
			sample.IssueCodes = append(sample.IssueCodes, is.Code)
		}
	}
	return rows.Err()
}

func (r *SnapshotRepo) UpsertBenchmark(ctx context.Context, b *domain.Benchmark) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	percentiles, err := jsonValue(b.Percentiles)
	if err != nil {
		return err
	}
	avgCategory, err := jsonValue(b.AvgCategoryScores)
	if err != nil {
		return err
	}
	topIssues, err := jsonValue(b.TopIssues)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO benchmarks (id, tenant_id, industry, period_start, avg_score,
		                        median_score, percentiles, avg_category_scores,
		                        top_issues, sample_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (tenant_id, industry, period_start) DO UPDATE SET
			avg_score = EXCLUDED.avg_score,
			median_score = EXCLUDED.median_score,
			percentiles = EXCLUDED.percentiles,
			avg_category_scores = EXCLUDED.avg_category_scores,
			top_issues = EXCLUDED.top_issues,
			sample_size = EXCLUDED.sample_size
	`, b.ID, b.TenantID, b.Industry, b.PeriodStart, b.AvgScore,
		b.MedianScore, percentiles, avgCategory, topIssues, b.SampleSize)
	if err != nil {
		return fmt.Errorf("upsert benchmark: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) LatestBenchmark(ctx context.Context, tenantID, industry string) (*domain.Benchmark, error) {
	b := &domain.Benchmark{}
	var percentiles, avgCategory, topIssues []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, industry, period_start, avg_score, median_score,
		       percentiles, avg_category_scores, top_issues, sample_size, created_at
		FROM benchmarks
		WHERE tenant_id = $1 AND industry = $2
		ORDER BY period_start DESC
		LIMIT 1
	`, tenantID, industry).Scan(
		&b.ID, &b.TenantID, &b.Industry, &b.PeriodStart, &b.AvgScore, &b.MedianScore,
		&percentiles, &avgCategory, &topIssues, &b.SampleSize, &b.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest benchmark: %w", err)
	}
	if len(percentiles) > 0 && string(percentiles) != "{}" {
		b.Percentiles = &domain.Percentiles{}
		if err := scanJSON(percentiles, b.Percentiles); err != nil {
			return nil, err
		}
	}
	if err := scanJSON(avgCategory, &b.AvgCategoryScores); err != nil {
		return nil, err
	}
	if err := scanJSON(topIssues, &b.TopIssues); err != nil {
		return nil, err
	}
	return b, nil
}
