package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// AnalysisRepo implements analysis.Repository against PostgreSQL.
type AnalysisRepo struct{ db *sql.DB }

// NewAnalysisRepo creates a Postgres-backed analysis repository.
func NewAnalysisRepo(db *sql.DB) *AnalysisRepo { return &AnalysisRepo{db: db} }

func (r *AnalysisRepo) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	l := &domain.Lead{}
	var analyzedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, domain, url, status, COALESCE(industry,''),
		       COALESCE(ico,''), COALESCE(company_name,''), COALESCE(contact_email,''),
		       COALESCE(latest_analysis_id::text,''), analysis_count, analyzed_at,
		       COALESCE(snapshot_period,''), COALESCE(discovery_profile_id::text,''), created_at
		FROM leads WHERE id = $1
	`, leadID).Scan(
		&l.ID, &l.TenantID, &l.Domain, &l.URL, &l.Status, &l.Industry,
		&l.ICO, &l.CompanyName, &l.ContactEmail,
		&l.LatestAnalysisID, &l.AnalysisCount, &analyzedAt,
		&l.SnapshotPeriod, &l.DiscoveryProfileID, &l.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.Ef(domain.KindNotFound, "lead %s not found", leadID)
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if analyzedAt.Valid {
		t := analyzedAt.Time
		l.AnalyzedAt = &t
	}
	return l, nil
}

func (r *AnalysisRepo) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	var roles pq.StringArray
	var excluded pq.StringArray
	var rateLimits, scoring []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_code, name, COALESCE(industry,''), roles,
		       COALESCE(parent_tenant_id::text,''), excluded_domains,
		       rate_limits, scoring, created_at
		FROM tenants WHERE id = $1
	`, tenantID).Scan(
		&t.ID, &t.UserCode, &t.Name, &t.Industry, &roles,
		&t.ParentTenantID, &excluded, &rateLimits, &scoring, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.Ef(domain.KindNotFound, "tenant %s not found", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	for _, role := range roles {
		t.Roles = append(t.Roles, domain.TenantRole(role))
	}
	t.ExcludedDomains = []string(excluded)
	if err := scanJSON(rateLimits, &t.RateLimits); err != nil {
		return nil, err
	}
	if err := scanJSON(scoring, &t.Scoring); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *AnalysisRepo) GetProfile(ctx context.Context, profileID string) (*domain.DiscoveryProfile, error) {
	p := &domain.DiscoveryProfile{}
	var queries, disabled pq.StringArray
	var overrides, ignored []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, source, queries,
		       daily_limit, disabled_categories, priority_overrides, ignored_codes, created_at
		FROM discovery_profiles WHERE id = $1
	`, profileID).Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Source, &queries,
		&p.Limit, &disabled, &overrides, &ignored, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.Ef(domain.KindNotFound, "discovery profile %s not found", profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get discovery profile: %w", err)
	}
	p.Queries = []string(queries)
	p.DisabledCategories = []string(disabled)
	if err := scanJSON(overrides, &p.PriorityOverrides); err != nil {
		return nil, err
	}
	if err := scanJSON(ignored, &p.IgnoreCodes); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *AnalysisRepo) LatestAnalysis(ctx context.Context, leadID string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, analysisSelect+`
		WHERE lead_id = $1
		ORDER BY sequence_number DESC
		LIMIT 1
	`, leadID)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis: %w", err)
	}
	return a, nil
}

func (r *AnalysisRepo) CreateAnalysis(ctx context.Context, a *domain.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analyses (id, lead_id, sequence_number, previous_analysis_id,
		                      status, industry, started_at, created_at)
		VALUES ($1, $2, $3, NULLIF($4,'')::uuid, $5, NULLIF($6,''), $7, NOW())
	`, a.ID, a.LeadID, a.SequenceNumber, a.PreviousAnalysisID,
		string(a.Status), a.Industry, a.StartedAt)
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		return analysis.ErrAnalysisInFlight
	}
	if err != nil {
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepo) FinalizeAnalysis(ctx context.Context, a *domain.Analysis) error {
	issueDelta, err := jsonValue(a.IssueDelta)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE analyses
		SET status = $2, total_score = $3, is_eshop = $4, score_delta = $5,
		    is_improved = $6, issue_delta = $7, completed_at = $8
		WHERE id = $1
	`, a.ID, string(a.Status), a.TotalScore, a.IsEshop, a.ScoreDelta,
		a.IsImproved, issueDelta, a.CompletedAt)
	if err != nil {
		return fmt.Errorf("finalize analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepo) CreateResult(ctx context.Context, res *domain.AnalysisResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_results (id, analysis_id, category, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, res.ID, res.AnalysisID, res.Category, string(res.Status))
	if err != nil {
		return fmt.Errorf("create analysis result: %w", err)
	}
	return nil
}

func (r *AnalysisRepo) UpdateResult(ctx context.Context, res *domain.AnalysisResult) error {
	rawData, err := jsonValue(res.RawData)
	if err != nil {
		return err
	}
	issues, err := jsonValue(res.Issues)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE analysis_results
		SET status = $2, raw_data = $3, issues = $4, score = $5,
		    error_message = NULLIF($6,''), completed_at = NOW()
		WHERE id = $1
	`, res.ID, string(res.Status), rawData, issues, res.Score, res.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update analysis result: %w", err)
	}
	return nil
}

func (r *AnalysisRepo) ResultsForAnalysis(ctx context.Context, analysisID string) ([]domain.AnalysisResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, analysis_id, category, status, raw_data, issues, score,
		       COALESCE(error_message,'')
		FROM analysis_results
		WHERE analysis_id = $1
		ORDER BY category
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("results for analysis: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		var res domain.AnalysisResult
		var rawData, issues []byte
		if err := rows.Scan(&res.ID, &res.AnalysisID, &res.Category, &res.Status,
			&rawData, &issues, &res.Score, &res.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan analysis result: %w", err)
		}
		if err := scanJSON(rawData, &res.RawData); err != nil {
			return nil, err
		}
		if err := scanJSON(issues, &res.Issues); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *AnalysisRepo) ListAnalyses(ctx context.Context, leadID string, limit, offset int) ([]domain.Analysis, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE lead_id = $1`, leadID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, analysisSelect+`
		WHERE lead_id = $1
		ORDER BY sequence_number DESC
		LIMIT $2 OFFSET $3
	`, leadID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (r *AnalysisRepo) UpdateLeadAfterAnalysis(ctx context.Context, lead *domain.Lead) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE leads
		SET latest_analysis_id = NULLIF($2,'')::uuid,
		    analysis_count = $3,
		    analyzed_at = $4,
		    industry = NULLIF($5,''),
		    status = $6,
		    updated_at = NOW()
		WHERE id = $1
	`, lead.ID, lead.LatestAnalysisID, lead.AnalysisCount, lead.AnalyzedAt,
		lead.Industry, string(lead.Status))
	if err != nil {
		return fmt.Errorf("update lead after analysis: %w", err)
	}
	return nil
}

// ListIssueCodes reads the seeded issue code registry.
func (r *AnalysisRepo) ListIssueCodes(ctx context.Context) ([]domain.IssueCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, severity, category, COALESCE(human_message,'')
		FROM issue_codes
		ORDER BY category, code
	`)
	if err != nil {
		return nil, fmt.Errorf("list issue codes: %w", err)
	}
	defer rows.Close()

	var codes []domain.IssueCode
	for rows.Next() {
		var c domain.IssueCode
		if err := rows.Scan(&c.Code, &c.Severity, &c.Category, &c.HumanMessage); err != nil {
			return nil, fmt.Errorf("scan issue code: %w", err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

const analysisSelect = `
	SELECT id, lead_id, sequence_number, COALESCE(previous_analysis_id::text,''),
	       status, total_score, COALESCE(industry,''), is_eshop,
	       score_delta, is_improved, issue_delta, started_at, completed_at
	FROM analyses
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	a := &domain.Analysis{}
	var scoreDelta sql.NullInt64
	var issueDelta []byte
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&a.ID, &a.LeadID, &a.SequenceNumber, &a.PreviousAnalysisID,
		&a.Status, &a.TotalScore, &a.Industry, &a.IsEshop,
		&scoreDelta, &a.IsImproved, &issueDelta, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if scoreDelta.Valid {
		v := int(scoreDelta.Int64)
		a.ScoreDelta = &v
	}
	if len(issueDelta) > 0 {
		a.IssueDelta = &domain.IssueDelta{}
		if err := scanJSON(issueDelta, a.IssueDelta); err != nil {
			return nil, err
		}
	}
	if startedAt.Valid {
		a.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}
