// Package offer owns the offer lifecycle: the approval state machine, the
// gated send path, template composition and proposal recycling.
package offer

import (
	"context"
	"strings"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Enqueuer dispatches follow-up jobs.
type Enqueuer interface {
	EnqueueDefault(ctx context.Context, kind domain.JobKind, payload interface{}) (int64, error)
}

// Service drives offer status transitions. All manual transitions go through
// transition(), which enforces the state machine and write-once timestamps.
type Service struct {
	repo     Repository
	composer *Composer
	jobs     Enqueuer
	log      *logger.Logger
}

// NewService creates the offer service. jobs may be nil when no send path
// is wired.
func NewService(repo Repository, composer *Composer, jobs Enqueuer) *Service {
	return &Service{repo: repo, composer: composer, jobs: jobs, log: logger.With("offer")}
}

// Get loads an offer by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Offer, error) {
	return s.repo.GetOffer(ctx, id)
}

// GetByToken resolves a tracking token to its offer.
func (s *Service) GetByToken(ctx context.Context, token string) (*domain.Offer, error) {
	return s.repo.GetOfferByToken(ctx, token)
}

// GetByMessageID resolves a provider message id to its offer.
func (s *Service) GetByMessageID(ctx context.Context, messageID string) (*domain.Offer, error) {
	return s.repo.GetOfferByMessageID(ctx, messageID)
}

// MarkBounced moves a sent offer to bounced. Out-of-order bounce callbacks
// on already-advanced offers are ignored.
func (s *Service) MarkBounced(ctx context.Context, o *domain.Offer, at time.Time) error {
	if !domain.CanTransition(o.Status, domain.OfferBounced) {
		return nil
	}
	o.Status = domain.OfferBounced
	applyTimestamp(o, domain.OfferBounced, at)
	return s.repo.UpdateOffer(ctx, o)
}

// Submit moves a draft offer to pending_approval.
func (s *Service) Submit(ctx context.Context, id string) (*domain.Offer, error) {
	return s.transition(ctx, id, domain.OfferPendingApproval, "")
}

// Approve moves a pending offer to approved and hands it to the send path.
func (s *Service) Approve(ctx context.Context, id string) (*domain.Offer, error) {
	o, err := s.transition(ctx, id, domain.OfferApproved, "")
	if err != nil {
		return nil, err
	}
	if s.jobs != nil {
		if _, err := s.jobs.EnqueueDefault(ctx, domain.JobSendEmail, map[string]string{"offer_id": o.ID}); err != nil {
			s.log.Error("enqueue send email", "offer_id", o.ID, "error", err.Error())
		}
	}
	return o, nil
}

// Reject moves a pending or approved offer to rejected with a reason.
func (s *Service) Reject(ctx context.Context, id, reason string) (*domain.Offer, error) {
	return s.transition(ctx, id, domain.OfferRejected, reason)
}

// MarkResponded records a manual reply on a post-send offer.
func (s *Service) MarkResponded(ctx context.Context, id string) (*domain.Offer, error) {
	return s.transition(ctx, id, domain.OfferResponded, "")
}

// MarkConverted records a won deal.
func (s *Service) MarkConverted(ctx context.Context, id string) (*domain.Offer, error) {
	return s.transition(ctx, id, domain.OfferConverted, "")
}

func (s *Service) transition(ctx context.Context, id string, to domain.OfferStatus, reason string) (*domain.Offer, error) {
	o, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(o.Status, to) {
		return nil, domain.Ef(domain.KindInvalidTransition,
			"offer %s cannot move from %s to %s", id, o.Status, to)
	}
	now := time.Now()
	o.Status = to
	applyTimestamp(o, to, now)
	if to == domain.OfferRejected {
		o.RejectReason = reason
	}
	if err := s.repo.UpdateOffer(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info("offer transition", "offer_id", id, "status", string(to))
	return o, nil
}

// applyTimestamp sets the per-status timestamp, write-once on first entry.
func applyTimestamp(o *domain.Offer, status domain.OfferStatus, now time.Time) {
	set := func(dst **time.Time) {
		if *dst == nil {
			t := now
			*dst = &t
		}
	}
	switch status {
	case domain.OfferPendingApproval:
		set(&o.SubmittedAt)
	case domain.OfferApproved:
		set(&o.ApprovedAt)
	case domain.OfferRejected:
		set(&o.RejectedAt)
	case domain.OfferSent:
		set(&o.SentAt)
	case domain.OfferOpened:
		set(&o.OpenedAt)
	case domain.OfferClicked:
		set(&o.OpenedAt)
		set(&o.ClickedAt)
	case domain.OfferResponded:
		set(&o.RespondedAt)
	case domain.OfferConverted:
		set(&o.ConvertedAt)
	case domain.OfferBounced:
		set(&o.BouncedAt)
	}
}

// AdvanceEngagement moves a post-send offer forward to at least `to` based
// on a tracking event. Events arriving out of order or repeated never
// regress the status; first-seen timestamps are preserved. Offers outside
// the engagement chain are left untouched.
func (s *Service) AdvanceEngagement(ctx context.Context, o *domain.Offer, to domain.OfferStatus, at time.Time) error {
	currentRank := domain.EngagementRank(o.Status)
	targetRank := domain.EngagementRank(to)
	if currentRank == 0 || targetRank == 0 {
		return nil
	}
	changed := false
	if targetRank > currentRank {
		o.Status = to
		changed = true
	}
	before := [2]*time.Time{o.OpenedAt, o.ClickedAt}
	applyTimestamp(o, to, at)
	if o.OpenedAt != before[0] || o.ClickedAt != before[1] {
		changed = true
	}
	if !changed {
		return nil
	}
	return s.repo.UpdateOffer(ctx, o)
}

// Preview is the read model for the offer.preview operation.
type Preview struct {
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	PlainTextBody string `json:"plainTextBody"`
	Recipient     string `json:"recipient"`
	TrackingToken string `json:"trackingToken"`
}

// Preview returns the composed content of an offer without sending it.
func (s *Service) Preview(ctx context.Context, id string) (*Preview, error) {
	o, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Subject:       o.Subject,
		Body:          o.Body,
		PlainTextBody: o.PlainTextBody,
		Recipient:     o.Recipient,
		TrackingToken: o.TrackingToken,
	}, nil
}

// Generate creates a draft offer for a lead, composing content from the
// proposal when one is given. The recipient is the lead's contact email.
func (s *Service) Generate(ctx context.Context, leadID, proposalID string) (*domain.Offer, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(lead.ContactEmail) == "" {
		return nil, domain.Ef(domain.KindInvalidInput, "lead %s has no contact email", leadID)
	}

	var proposal *domain.Proposal
	if proposalID != "" {
		proposal, err = s.repo.GetProposal(ctx, proposalID)
		if err != nil {
			return nil, err
		}
		if proposal.LeadID != leadID {
			return nil, domain.Ef(domain.KindInvalidInput,
				"proposal %s does not belong to lead %s", proposalID, leadID)
		}
	}

	o := &domain.Offer{
		TenantID:      lead.TenantID,
		LeadID:        lead.ID,
		ProposalID:    proposalID,
		Recipient:     strings.ToLower(strings.TrimSpace(lead.ContactEmail)),
		TrackingToken: domain.NewTrackingToken(),
		Status:        domain.OfferDraft,
	}
	if err := s.composer.Compose(o, lead, proposal); err != nil {
		return nil, err
	}
	if err := s.repo.CreateOffer(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info("offer generated", "offer_id", o.ID, "lead_id", leadID, "recipient", o.Recipient)
	return o, nil
}

// RecyclableAvailable reports whether a recyclable proposal exists for the
// industry and type.
func (s *Service) RecyclableAvailable(ctx context.Context, industry, proposalType string) (bool, error) {
	p, err := s.repo.FindRecyclableProposal(ctx, industry, proposalType)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// Recycle moves an AI-generated, non-customized, recyclable, non-draft
// proposal to the tenant identified by userCode, resetting it to draft.
// leadID optionally re-targets the proposal at one of the new tenant's
// leads.
func (s *Service) Recycle(ctx context.Context, proposalID, userCode, leadID string) (*domain.Proposal, error) {
	p, err := s.repo.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.CanRecycle() {
		return nil, domain.Ef(domain.KindInvalidTransition, "proposal %s is not recyclable", proposalID)
	}
	tenant, err := s.repo.GetTenantByUserCode(ctx, userCode)
	if err != nil {
		return nil, err
	}
	if leadID != "" {
		lead, err := s.repo.GetLead(ctx, leadID)
		if err != nil {
			return nil, err
		}
		if lead.TenantID != tenant.ID {
			return nil, domain.Ef(domain.KindInvalidInput,
				"lead %s does not belong to tenant %s", leadID, userCode)
		}
		p.LeadID = leadID
	}
	p.TenantID = tenant.ID
	p.Status = domain.ProposalDraft
	if err := s.repo.MoveProposal(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("proposal recycled", "proposal_id", proposalID, "tenant_id", tenant.ID)
	return p, nil
}

// ExpireProposals marks ready proposals past their expiry as expired.
func (s *Service) ExpireProposals(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireProposals(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("proposals expired", "count", n)
	}
	return n, nil
}
