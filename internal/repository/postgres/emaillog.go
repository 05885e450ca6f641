package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/tracking"
)

// EmailLogRepo implements tracking.EmailLogRepo against PostgreSQL.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log repository.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

func (r *EmailLogRepo) GetByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	l := &domain.EmailLog{}
	var delivered, opened, clicked, bounced, complained sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, message_id, offer_id, tenant_id, recipient, sent_at,
		       delivered_at, opened_at, clicked_at, bounced_at, complained_at
		FROM email_log
		WHERE message_id = $1
	`, messageID).Scan(
		&l.ID, &l.MessageID, &l.OfferID, &l.TenantID, &l.Recipient, &l.SentAt,
		&delivered, &opened, &clicked, &bounced, &complained,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get email log: %w", err)
	}
	assign := func(dst **time.Time, src sql.NullTime) {
		if src.Valid {
			t := src.Time
			*dst = &t
		}
	}
	assign(&l.DeliveredAt, delivered)
	assign(&l.OpenedAt, opened)
	assign(&l.ClickedAt, clicked)
	assign(&l.BouncedAt, bounced)
	assign(&l.ComplainedAt, complained)
	return l, nil
}

// eventColumns maps event kinds to their email_log column. Marks are
// write-once-first via COALESCE.
var eventColumns = map[string]string{
	tracking.EventDelivery:  "delivered_at",
	tracking.EventOpen:      "opened_at",
	tracking.EventClick:     "clicked_at",
	tracking.EventBounce:    "bounced_at",
	tracking.EventComplaint: "complained_at",
}

func (r *EmailLogRepo) MarkEvent(ctx context.Context, messageID, kind string, at time.Time) error {
	column, ok := eventColumns[kind]
	if !ok {
		return domain.Ef(domain.KindInvalidInput, "unknown email event %q", kind)
	}
	query := fmt.Sprintf(
		`UPDATE email_log SET %s = COALESCE(%s, $2) WHERE message_id = $1`,
		column, column)
	if _, err := r.db.ExecContext(ctx, query, messageID, at); err != nil {
		return fmt.Errorf("mark email event %s: %w", kind, err)
	}
	return nil
}

// PurgeOlderThan deletes email log rows sent before the cutoff, in batches.
// Returns the number of rows removed.
func (r *EmailLogRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM email_log
		WHERE id IN (
			SELECT id FROM email_log WHERE sent_at < $1 LIMIT $2
		)
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("purge email log: %w", err)
	}
	return res.RowsAffected()
}
