package offer

import (
	"context"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/mailer"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/service/ratelimit"
	"github.com/mesour/brick-offers-sub004/internal/service/suppression"
)

// Gate is the send path for offers. Every transmit passes the suppression
// check and the rate-limit evaluation first; denials never consume budget.
type Gate struct {
	repo        Repository
	suppression *suppression.Service
	rateLimits  *ratelimit.Service
	mail        mailer.Mailer
	log         *logger.Logger
}

// NewGate wires the send gate.
func NewGate(repo Repository, sup *suppression.Service, rl *ratelimit.Service, mail mailer.Mailer) *Gate {
	return &Gate{
		repo:        repo,
		suppression: sup,
		rateLimits:  rl,
		mail:        mail,
		log:         logger.With("send_gate"),
	}
}

// Send runs the gated transmit for one offer.
//
// An offer whose status does not allow sending is logged and skipped without
// error; the job is consumed. A suppressed recipient rejects the offer with
// reason "suppressed", also without error. A rate-limit denial or provider
// failure returns a retryable error so the dispatcher backs off and retries.
// The transmit happens after the gating checks and before the sent status is
// committed, so a crash in between re-sends; providers dedupe on their
// message id and the tracking ingestor tolerates duplicates.
func (g *Gate) Send(ctx context.Context, offerID string) error {
	o, err := g.repo.GetOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(o.Status, domain.OfferSent) {
		g.log.Warn("offer not sendable, skipping",
			"offer_id", offerID, "status", string(o.Status))
		return nil
	}

	blocked, err := g.suppression.IsBlocked(ctx, o.Recipient, o.TenantID)
	if err != nil {
		return err
	}
	if blocked {
		g.log.Warn("recipient suppressed, rejecting offer",
			"offer_id", offerID, "recipient", o.Recipient)
		now := time.Now()
		o.Status = domain.OfferRejected
		o.RejectReason = "suppressed"
		applyTimestamp(o, domain.OfferRejected, now)
		return g.repo.UpdateOffer(ctx, o)
	}

	tenant, err := g.repo.GetTenant(ctx, o.TenantID)
	if err != nil {
		return err
	}
	decision, err := g.rateLimits.Evaluate(ctx, tenant, ratelimit.RecipientDomain(o.Recipient))
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return domain.Ef(domain.KindRateLimited,
			"tenant %s: %s", tenant.UserCode, decision.Reason)
	}

	result, err := g.mail.Send(ctx, &mailer.Message{
		To:            o.Recipient,
		Subject:       o.Subject,
		HTMLBody:      o.Body,
		PlainTextBody: o.PlainTextBody,
	})
	if err != nil {
		return err
	}

	now := result.SentAt
	o.Status = domain.OfferSent
	o.MessageID = result.MessageID
	applyTimestamp(o, domain.OfferSent, now)

	emailLog := &domain.EmailLog{
		MessageID: result.MessageID,
		OfferID:   o.ID,
		TenantID:  o.TenantID,
		Recipient: o.Recipient,
		SentAt:    now,
	}
	if err := g.repo.MarkSent(ctx, o, emailLog); err != nil {
		return err
	}
	g.log.Info("offer sent",
		"offer_id", o.ID, "recipient", o.Recipient, "message_id", result.MessageID)
	return nil
}
