// Package tracking ingests engagement signals: pixel opens, click redirects,
// unsubscribes and provider callbacks. Events are idempotent and tolerate
// duplicates and out-of-order delivery; they only ever advance an offer.
package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/offer"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/service/suppression"
)

// Event kinds processed by the ingestor.
const (
	EventOpen      = "open"
	EventClick     = "click"
	EventDelivery  = "delivery"
	EventBounce    = "bounce"
	EventComplaint = "complaint"
)

// Event is one normalized engagement signal. Surface events (pixel, click)
// carry a token; provider callbacks carry a message id.
type Event struct {
	Kind       string    `json:"kind"`
	Token      string    `json:"token,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	BounceType string    `json:"bounce_type,omitempty"`
	Recipients []string  `json:"recipients,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EmailLogRepo records provider events on the email log. Marks are
// write-once-first: repeated events keep the original timestamp.
type EmailLogRepo interface {
	GetByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error)
	MarkEvent(ctx context.Context, messageID, kind string, at time.Time) error
}

// Service applies tracking events to offers, the email log and the
// suppression list.
type Service struct {
	offers      *offer.Service
	emailLog    EmailLogRepo
	suppression *suppression.Service
	log         *logger.Logger
}

// NewService wires the tracking ingestor.
func NewService(offers *offer.Service, emailLog EmailLogRepo, sup *suppression.Service) *Service {
	return &Service{
		offers:      offers,
		emailLog:    emailLog,
		suppression: sup,
		log:         logger.With("tracking"),
	}
}

// Process applies one event. Unknown tokens and message ids are logged and
// swallowed so providers and bots never see an error.
func (s *Service) Process(ctx context.Context, ev *Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	switch ev.Kind {
	case EventOpen, EventClick:
		if ev.Token != "" {
			return s.processSurface(ctx, ev)
		}
		return s.processCallback(ctx, ev)
	case EventDelivery, EventBounce, EventComplaint:
		return s.processCallback(ctx, ev)
	default:
		s.log.Warn("unknown tracking event kind", "kind", ev.Kind)
		return nil
	}
}

func (s *Service) processSurface(ctx context.Context, ev *Event) error {
	o, err := s.offers.GetByToken(ctx, ev.Token)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			s.log.Debug("tracking token did not resolve", "kind", ev.Kind)
			return nil
		}
		return err
	}
	target := domain.OfferOpened
	if ev.Kind == EventClick {
		target = domain.OfferClicked
	}
	if err := s.offers.AdvanceEngagement(ctx, o, target, ev.OccurredAt); err != nil {
		return err
	}
	if o.MessageID != "" {
		if err := s.emailLog.MarkEvent(ctx, o.MessageID, ev.Kind, ev.OccurredAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) processCallback(ctx context.Context, ev *Event) error {
	if ev.MessageID == "" {
		s.log.Warn("provider callback without message id", "kind", ev.Kind)
		return nil
	}
	entry, err := s.emailLog.GetByMessageID(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if entry == nil {
		s.log.Warn("provider callback for unknown message", "message_id", ev.MessageID, "kind", ev.Kind)
		return nil
	}
	if err := s.emailLog.MarkEvent(ctx, ev.MessageID, ev.Kind, ev.OccurredAt); err != nil {
		return err
	}

	switch ev.Kind {
	case EventDelivery:
		return nil
	case EventOpen, EventClick:
		o, err := s.offers.GetByMessageID(ctx, ev.MessageID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil
			}
			return err
		}
		target := domain.OfferOpened
		if ev.Kind == EventClick {
			target = domain.OfferClicked
		}
		return s.offers.AdvanceEngagement(ctx, o, target, ev.OccurredAt)
	case EventBounce:
		return s.processBounce(ctx, entry, ev)
	case EventComplaint:
		return s.processComplaint(ctx, entry, ev)
	}
	return nil
}

func (s *Service) processBounce(ctx context.Context, entry *domain.EmailLog, ev *Event) error {
	reason := domain.ReasonSoftBounce
	if ev.BounceType == "Permanent" {
		reason = domain.ReasonHardBounce
	}
	recipients := ev.Recipients
	if len(recipients) == 0 {
		recipients = []string{entry.Recipient}
	}
	for _, email := range recipients {
		// GlobalReason decides the scope; hard bounces ignore the tenant.
		if _, err := s.suppression.Add(ctx, email, reason, entry.TenantID, "provider_webhook"); err != nil {
			return err
		}
	}

	o, err := s.offers.GetByMessageID(ctx, ev.MessageID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil
		}
		return err
	}
	return s.offers.MarkBounced(ctx, o, ev.OccurredAt)
}

func (s *Service) processComplaint(ctx context.Context, entry *domain.EmailLog, ev *Event) error {
	recipients := ev.Recipients
	if len(recipients) == 0 {
		recipients = []string{entry.Recipient}
	}
	for _, email := range recipients {
		if _, err := s.suppression.Add(ctx, email, domain.ReasonComplaint, "", "provider_webhook"); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe adds a per-tenant suppression for the offer behind the token.
// Idempotent; unknown tokens report not-found so the form can say so.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	o, err := s.offers.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	_, err = s.suppression.Add(ctx, o.Recipient, domain.ReasonUnsubscribe, o.TenantID, "unsubscribe_form")
	return err
}

// Callback result strings returned to the provider endpoint.
const (
	ResultHandled               = "handled"
	ResultIgnored               = "ignored"
	ResultSubscriptionConfirmed = "subscription_confirmed"
)

// snsEnvelope is the outer provider message shape.
type snsEnvelope struct {
	Type         string `json:"Type"`
	Message      string `json:"Message"`
	Payload      string `json:"Payload"`
	SubscribeURL string `json:"SubscribeURL"`
}

type snsNotification struct {
	NotificationType string `json:"notificationType"`
	Mail             struct {
		MessageID string    `json:"messageId"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"mail"`
	Bounce struct {
		BounceType        string `json:"bounceType"`
		BouncedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"bouncedRecipients"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"bounce"`
	Complaint struct {
		ComplainedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"complainedRecipients"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"complaint"`
	Open struct {
		Timestamp time.Time `json:"timestamp"`
	} `json:"open"`
	Click struct {
		Timestamp time.Time `json:"timestamp"`
	} `json:"click"`
	Delivery struct {
		Timestamp time.Time `json:"timestamp"`
	} `json:"delivery"`
}

// ParseProviderCallback decodes a provider webhook body into events. The
// returned result string is what the HTTP endpoint reports back.
func ParseProviderCallback(body []byte) (string, []*Event, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, domain.Wrap(domain.KindInvalidInput, "decode provider callback", err)
	}
	if env.Type == "SubscriptionConfirmation" {
		return ResultSubscriptionConfirmed, nil, nil
	}

	raw := env.Message
	if raw == "" {
		raw = env.Payload
	}
	if raw == "" {
		return ResultIgnored, nil, nil
	}
	var n snsNotification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return "", nil, domain.Wrap(domain.KindInvalidInput, "decode provider notification", err)
	}

	ev := &Event{MessageID: n.Mail.MessageID, OccurredAt: n.Mail.Timestamp}
	switch n.NotificationType {
	case "Bounce":
		ev.Kind = EventBounce
		ev.BounceType = n.Bounce.BounceType
		for _, r := range n.Bounce.BouncedRecipients {
			ev.Recipients = append(ev.Recipients, r.EmailAddress)
		}
		if !n.Bounce.Timestamp.IsZero() {
			ev.OccurredAt = n.Bounce.Timestamp
		}
	case "Complaint":
		ev.Kind = EventComplaint
		for _, r := range n.Complaint.ComplainedRecipients {
			ev.Recipients = append(ev.Recipients, r.EmailAddress)
		}
		if !n.Complaint.Timestamp.IsZero() {
			ev.OccurredAt = n.Complaint.Timestamp
		}
	case "Delivery":
		ev.Kind = EventDelivery
		if !n.Delivery.Timestamp.IsZero() {
			ev.OccurredAt = n.Delivery.Timestamp
		}
	case "Open":
		ev.Kind = EventOpen
		if !n.Open.Timestamp.IsZero() {
			ev.OccurredAt = n.Open.Timestamp
		}
	case "Click":
		ev.Kind = EventClick
		if !n.Click.Timestamp.IsZero() {
			ev.OccurredAt = n.Click.Timestamp
		}
	default:
		return ResultIgnored, nil, nil
	}
	return ResultHandled, []*Event{ev}, nil
}
