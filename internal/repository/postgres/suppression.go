package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) IsBlocked(ctx context.Context, email, tenantID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM suppressions
			WHERE email = $1 AND (tenant_id IS NULL OR tenant_id = $2)
		)
	`, email, nullUUID(tenantID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("suppression lookup: %w", err)
	}
	return exists, nil
}

func (r *SuppressionRepo) Upsert(ctx context.Context, s *domain.SuppressionEntry) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	// Separate conflict targets: partial unique indexes need a matching
	// predicate in ON CONFLICT.
	var err error
	if s.TenantID == "" {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO suppressions (id, email, tenant_id, reason, source, created_at)
			VALUES ($1, $2, NULL, $3, $4, NOW())
			ON CONFLICT (email) WHERE tenant_id IS NULL DO NOTHING
		`, s.ID, s.Email, string(s.Reason), s.Source)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO suppressions (id, email, tenant_id, reason, source, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (email, tenant_id) WHERE tenant_id IS NOT NULL DO NOTHING
		`, s.ID, s.Email, s.TenantID, string(s.Reason), s.Source)
	}
	if err != nil {
		return fmt.Errorf("suppress: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, email, tenantID string) (bool, error) {
	var res sql.Result
	var err error
	if tenantID == "" {
		res, err = r.db.ExecContext(ctx,
			`DELETE FROM suppressions WHERE email = $1 AND tenant_id IS NULL`, email)
	} else {
		res, err = r.db.ExecContext(ctx,
			`DELETE FROM suppressions WHERE email = $1 AND tenant_id = $2`, email, tenantID)
	}
	if err != nil {
		return false, fmt.Errorf("remove suppression: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SuppressionRepo) List(ctx context.Context, tenantID string, reason domain.SuppressionReason, limit int) ([]domain.SuppressionEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, COALESCE(tenant_id::text, ''), reason, source, created_at
		FROM suppressions
		WHERE ($1 = '' AND tenant_id IS NULL OR tenant_id::text = $1)
		  AND ($2 = '' OR reason = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, string(reason), limit)
	if err != nil {
		return nil, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.SuppressionEntry
	for rows.Next() {
		var e domain.SuppressionEntry
		if err := rows.Scan(&e.ID, &e.Email, &e.TenantID, &e.Reason, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// nullUUID maps an empty string to SQL NULL so uuid comparisons don't error.
func nullUUID(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}
