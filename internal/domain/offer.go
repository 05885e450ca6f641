package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// OfferStatus is the state of an outbound offer. The transition graph is
// enforced by CanTransition; anything else is an invalid transition.
type OfferStatus string

const (
	OfferDraft           OfferStatus = "draft"
	OfferPendingApproval OfferStatus = "pending_approval"
	OfferApproved        OfferStatus = "approved"
	OfferRejected        OfferStatus = "rejected"
	OfferSent            OfferStatus = "sent"
	OfferOpened          OfferStatus = "opened"
	OfferClicked         OfferStatus = "clicked"
	OfferResponded       OfferStatus = "responded"
	OfferConverted       OfferStatus = "converted"
	OfferBounced         OfferStatus = "bounced"
)

// offerTransitions lists the allowed status moves. Webhook-driven engagement
// advances are handled by EngagementRank, not this table.
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferDraft:           {OfferPendingApproval},
	OfferPendingApproval: {OfferApproved, OfferRejected},
	OfferApproved:        {OfferSent, OfferRejected},
	OfferSent:            {OfferOpened, OfferResponded, OfferBounced},
	OfferOpened:          {OfferClicked, OfferResponded},
	OfferClicked:         {OfferResponded},
	OfferResponded:       {OfferConverted},
}

// CanTransition reports whether from → to is an allowed offer status move.
func CanTransition(from, to OfferStatus) bool {
	for _, s := range offerTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// engagementRank orders the post-send statuses so tracking events only ever
// advance an offer, never regress it.
var engagementRank = map[OfferStatus]int{
	OfferSent:      1,
	OfferOpened:    2,
	OfferClicked:   3,
	OfferResponded: 4,
	OfferConverted: 5,
}

// EngagementRank returns the post-send ordering of a status, or 0 for
// statuses outside the engagement chain.
func EngagementRank(s OfferStatus) int { return engagementRank[s] }

// Offer is an outbound communication derived from a proposal, owned by a
// tenant and linked to a lead. TrackingToken is the unguessable key for
// pixel, click and unsubscribe endpoints.
type Offer struct {
	ID            string      `json:"id" db:"id"`
	TenantID      string      `json:"tenant_id" db:"tenant_id"`
	LeadID        string      `json:"lead_id" db:"lead_id"`
	ProposalID    string      `json:"proposal_id,omitempty" db:"proposal_id"`
	Recipient     string      `json:"recipient" db:"recipient"`
	Subject       string      `json:"subject" db:"subject"`
	Body          string      `json:"body" db:"body"`
	PlainTextBody string      `json:"plain_text_body" db:"plain_text_body"`
	TrackingToken string      `json:"tracking_token" db:"tracking_token"`
	Status        OfferStatus `json:"status" db:"status"`
	RejectReason  string      `json:"reject_reason,omitempty" db:"reject_reason"`
	MessageID     string      `json:"message_id,omitempty" db:"message_id"`
	Version       int         `json:"-" db:"version"`
	SubmittedAt   *time.Time  `json:"submitted_at,omitempty" db:"submitted_at"`
	ApprovedAt    *time.Time  `json:"approved_at,omitempty" db:"approved_at"`
	RejectedAt    *time.Time  `json:"rejected_at,omitempty" db:"rejected_at"`
	SentAt        *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	OpenedAt      *time.Time  `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt     *time.Time  `json:"clicked_at,omitempty" db:"clicked_at"`
	RespondedAt   *time.Time  `json:"responded_at,omitempty" db:"responded_at"`
	ConvertedAt   *time.Time  `json:"converted_at,omitempty" db:"converted_at"`
	BouncedAt     *time.Time  `json:"bounced_at,omitempty" db:"bounced_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// NewTrackingToken returns a 64-char lowercase hex token from 32
// cryptographically random bytes.
func NewTrackingToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the platform RNG is broken; nothing
		// sensible to do but crash.
		panic("tracking token: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// ProposalStatus is the lifecycle state of a proposal document.
type ProposalStatus string

const (
	ProposalDraft   ProposalStatus = "draft"
	ProposalReady   ProposalStatus = "ready"
	ProposalSent    ProposalStatus = "sent"
	ProposalExpired ProposalStatus = "expired"
)

// Proposal is a structured recommendation document produced from an analysis.
// AI-generated, non-customized proposals can be recycled to another tenant.
type Proposal struct {
	ID          string                 `json:"id" db:"id"`
	TenantID    string                 `json:"tenant_id" db:"tenant_id"`
	LeadID      string                 `json:"lead_id" db:"lead_id"`
	AnalysisID  string                 `json:"analysis_id,omitempty" db:"analysis_id"`
	Type        string                 `json:"type" db:"type"`
	Industry    string                 `json:"industry,omitempty" db:"industry"`
	Status      ProposalStatus         `json:"status" db:"status"`
	Content     map[string]interface{} `json:"content,omitempty" db:"content"`
	AIGenerated bool                   `json:"ai_generated" db:"ai_generated"`
	Customized  bool                   `json:"customized" db:"customized"`
	Recyclable  bool                   `json:"recyclable" db:"recyclable"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

// CanRecycle reports whether the proposal may be moved to another tenant.
func (p *Proposal) CanRecycle() bool {
	return p.AIGenerated && !p.Customized && p.Recyclable && p.Status != ProposalDraft
}
