package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mesour/brick-offers-sub004/internal/ares"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// DiscoveryRepo implements discovery.Repository and ares.Repository against
// PostgreSQL. Tenant and profile reads are shared with the analysis repo.
type DiscoveryRepo struct {
	db   *sql.DB
	core *AnalysisRepo
}

// NewDiscoveryRepo creates a Postgres-backed discovery repository.
func NewDiscoveryRepo(db *sql.DB) *DiscoveryRepo {
	return &DiscoveryRepo{db: db, core: NewAnalysisRepo(db)}
}

func (r *DiscoveryRepo) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	return r.core.GetTenant(ctx, tenantID)
}

func (r *DiscoveryRepo) GetProfile(ctx context.Context, profileID string) (*domain.DiscoveryProfile, error) {
	return r.core.GetProfile(ctx, profileID)
}

func (r *DiscoveryRepo) ListEnabledProfiles(ctx context.Context) ([]domain.DiscoveryProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, source, queries,
		       daily_limit, disabled_categories, priority_overrides, ignored_codes, created_at
		FROM discovery_profiles
		WHERE enabled
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list discovery profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.DiscoveryProfile
	for rows.Next() {
		var p domain.DiscoveryProfile
		var queries, disabled pq.StringArray
		var overrides, ignored []byte
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Source, &queries,
			&p.Limit, &disabled, &overrides, &ignored, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan discovery profile: %w", err)
		}
		p.Queries = []string(queries)
		p.DisabledCategories = []string(disabled)
		if err := scanJSON(overrides, &p.PriorityOverrides); err != nil {
			return nil, err
		}
		if err := scanJSON(ignored, &p.IgnoreCodes); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *DiscoveryRepo) MarkProfileRun(ctx context.Context, profileID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE discovery_profiles SET last_run_at = NOW() WHERE id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("mark profile run: %w", err)
	}
	return nil
}

func (r *DiscoveryRepo) LeadExists(ctx context.Context, tenantID, leadDomain string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE tenant_id = $1 AND domain = $2)`,
		tenantID, leadDomain,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lead exists: %w", err)
	}
	return exists, nil
}

func (r *DiscoveryRepo) CreateLead(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (id, tenant_id, domain, url, status,
		                   company_name, ico, contact_email, discovery_profile_id,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5,
		        NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,'')::uuid,
		        NOW(), NOW())
	`, lead.ID, lead.TenantID, lead.Domain, lead.URL, string(lead.Status),
		lead.CompanyName, lead.ICO, lead.ContactEmail, lead.DiscoveryProfileID)
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		return domain.Ef(domain.KindInvalidInput,
			"lead for domain %s already exists", lead.Domain)
	}
	if err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// UpdateCompanyByICO writes register fields onto every lead with the ICO.
func (r *DiscoveryRepo) UpdateCompanyByICO(ctx context.Context, ico string, c *ares.Company) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads
		SET company_name = $2, updated_at = NOW()
		WHERE ico = $1
	`, ico, c.Name)
	if err != nil {
		return 0, fmt.Errorf("update company by ico: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
