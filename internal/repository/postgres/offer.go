package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/offer"
)

// OfferRepo implements offer.Repository against PostgreSQL. Offer updates
// use optimistic locking on the version column.
type OfferRepo struct {
	db   *sql.DB
	core *AnalysisRepo
}

// NewOfferRepo creates a Postgres-backed offer repository.
func NewOfferRepo(db *sql.DB) *OfferRepo {
	return &OfferRepo{db: db, core: NewAnalysisRepo(db)}
}

const offerSelect = `
	SELECT id, tenant_id, lead_id, COALESCE(proposal_id::text,''), recipient,
	       subject, body, plain_text_body, tracking_token, status,
	       COALESCE(reject_reason,''), COALESCE(message_id,''), version,
	       submitted_at, approved_at, rejected_at, sent_at, opened_at,
	       clicked_at, responded_at, converted_at, bounced_at, created_at
	FROM offers
`

func scanOffer(row rowScanner) (*domain.Offer, error) {
	o := &domain.Offer{}
	var submitted, approved, rejected, sent, opened, clicked, responded, converted, bounced sql.NullTime
	err := row.Scan(&o.ID, &o.TenantID, &o.LeadID, &o.ProposalID, &o.Recipient,
		&o.Subject, &o.Body, &o.PlainTextBody, &o.TrackingToken, &o.Status,
		&o.RejectReason, &o.MessageID, &o.Version,
		&submitted, &approved, &rejected, &sent, &opened,
		&clicked, &responded, &converted, &bounced, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	assign := func(dst **time.Time, src sql.NullTime) {
		if src.Valid {
			t := src.Time
			*dst = &t
		}
	}
	assign(&o.SubmittedAt, submitted)
	assign(&o.ApprovedAt, approved)
	assign(&o.RejectedAt, rejected)
	assign(&o.SentAt, sent)
	assign(&o.OpenedAt, opened)
	assign(&o.ClickedAt, clicked)
	assign(&o.RespondedAt, responded)
	assign(&o.ConvertedAt, converted)
	assign(&o.BouncedAt, bounced)
	return o, nil
}

func (r *OfferRepo) getOffer(ctx context.Context, where string, arg interface{}) (*domain.Offer, error) {
	row := r.db.QueryRowContext(ctx, offerSelect+where, arg)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "offer not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

func (r *OfferRepo) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	return r.getOffer(ctx, ` WHERE id = $1`, id)
}

func (r *OfferRepo) GetOfferByToken(ctx context.Context, token string) (*domain.Offer, error) {
	return r.getOffer(ctx, ` WHERE tracking_token = $1`, token)
}

func (r *OfferRepo) GetOfferByMessageID(ctx context.Context, messageID string) (*domain.Offer, error) {
	return r.getOffer(ctx, ` WHERE message_id = $1`, messageID)
}

func (r *OfferRepo) CreateOffer(ctx context.Context, o *domain.Offer) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO offers (id, tenant_id, lead_id, proposal_id, recipient,
		                    subject, body, plain_text_body, tracking_token,
		                    status, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4,'')::uuid, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, o.ID, o.TenantID, o.LeadID, o.ProposalID, o.Recipient,
		o.Subject, o.Body, o.PlainTextBody, o.TrackingToken, string(o.Status))
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

func (r *OfferRepo) UpdateOffer(ctx context.Context, o *domain.Offer) error {
	return r.updateOffer(ctx, r.db, o)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *OfferRepo) updateOffer(ctx context.Context, ex execer, o *domain.Offer) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE offers
		SET status = $2, reject_reason = NULLIF($3,''), message_id = NULLIF($4,''),
		    submitted_at = $5, approved_at = $6, rejected_at = $7, sent_at = $8,
		    opened_at = $9, clicked_at = $10, responded_at = $11,
		    converted_at = $12, bounced_at = $13,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $14
	`, o.ID, string(o.Status), o.RejectReason, o.MessageID,
		o.SubmittedAt, o.ApprovedAt, o.RejectedAt, o.SentAt,
		o.OpenedAt, o.ClickedAt, o.RespondedAt, o.ConvertedAt, o.BouncedAt,
		o.Version)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if n == 0 {
		return offer.ErrVersionConflict
	}
	o.Version++
	return nil
}

func (r *OfferRepo) MarkSent(ctx context.Context, o *domain.Offer, log *domain.EmailLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	defer tx.Rollback()

	if err := r.updateOffer(ctx, tx, o); err != nil {
		return err
	}
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO email_log (id, message_id, offer_id, tenant_id, recipient, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING
	`, log.ID, log.MessageID, log.OfferID, log.TenantID, log.Recipient, log.SentAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return tx.Commit()
}

func (r *OfferRepo) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	return r.core.GetLead(ctx, leadID)
}

func (r *OfferRepo) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	return r.core.GetTenant(ctx, tenantID)
}

func (r *OfferRepo) GetTenantByUserCode(ctx context.Context, userCode string) (*domain.Tenant, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM tenants WHERE user_code = $1`, userCode,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, domain.Ef(domain.KindNotFound, "tenant %s not found", userCode)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by user code: %w", err)
	}
	return r.core.GetTenant(ctx, id)
}

func (r *OfferRepo) GetProposal(ctx context.Context, id string) (*domain.Proposal, error) {
	row := r.db.QueryRowContext(ctx, proposalSelect+` WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, domain.Ef(domain.KindNotFound, "proposal %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

func (r *OfferRepo) CreateProposal(ctx context.Context, p *domain.Proposal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	content, err := jsonValue(p.Content)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO proposals (id, tenant_id, lead_id, analysis_id, type, industry,
		                       status, content, ai_generated, customized, recyclable,
		                       expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4,'')::uuid, $5, NULLIF($6,''),
		        $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, p.ID, p.TenantID, p.LeadID, p.AnalysisID, p.Type, p.Industry,
		string(p.Status), content, p.AIGenerated, p.Customized, p.Recyclable, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

func (r *OfferRepo) FindProposalByLeadAndType(ctx context.Context, leadID, proposalType string) (*domain.Proposal, error) {
	row := r.db.QueryRowContext(ctx, proposalSelect+`
		WHERE lead_id = $1 AND type = $2 AND status <> 'expired'
		ORDER BY created_at DESC
		LIMIT 1
	`, leadID, proposalType)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find proposal by lead and type: %w", err)
	}
	return p, nil
}

func (r *OfferRepo) LatestAnalysis(ctx context.Context, leadID string) (*domain.Analysis, error) {
	return r.core.LatestAnalysis(ctx, leadID)
}

func (r *OfferRepo) ResultsForAnalysis(ctx context.Context, analysisID string) ([]domain.AnalysisResult, error) {
	return r.core.ResultsForAnalysis(ctx, analysisID)
}

func (r *OfferRepo) FindRecyclableProposal(ctx context.Context, industry, proposalType string) (*domain.Proposal, error) {
	row := r.db.QueryRowContext(ctx, proposalSelect+`
		WHERE recyclable AND ai_generated AND NOT customized
		  AND status <> 'draft' AND industry = $1 AND type = $2
		ORDER BY created_at
		LIMIT 1
	`, industry, proposalType)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recyclable proposal: %w", err)
	}
	return p, nil
}

func (r *OfferRepo) MoveProposal(ctx context.Context, p *domain.Proposal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE proposals
		SET tenant_id = $2, lead_id = $3, status = $4, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.TenantID, p.LeadID, string(p.Status))
	if err != nil {
		return fmt.Errorf("move proposal: %w", err)
	}
	return nil
}

func (r *OfferRepo) ExpireProposals(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE proposals
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'ready' AND expires_at IS NOT NULL AND expires_at < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("expire proposals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire proposals: %w", err)
	}
	return int(n), nil
}

const proposalSelect = `
	SELECT id, tenant_id, lead_id, COALESCE(analysis_id::text,''), type,
	       COALESCE(industry,''), status, content, ai_generated, customized,
	       recyclable, expires_at, created_at
	FROM proposals
`

func scanProposal(row rowScanner) (*domain.Proposal, error) {
	p := &domain.Proposal{}
	var content []byte
	var expiresAt sql.NullTime
	err := row.Scan(&p.ID, &p.TenantID, &p.LeadID, &p.AnalysisID, &p.Type,
		&p.Industry, &p.Status, &content, &p.AIGenerated, &p.Customized,
		&p.Recyclable, &expiresAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := scanJSON(content, &p.Content); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	return p, nil
}
