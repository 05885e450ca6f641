package domain

import "time"

// EmailLog is one row per transmitted offer, keyed by the provider message
// id. Provider callbacks route through it; event timestamps are
// write-once-first.
type EmailLog struct {
	ID           string     `json:"id" db:"id"`
	MessageID    string     `json:"message_id" db:"message_id"`
	OfferID      string     `json:"offer_id" db:"offer_id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	Recipient    string     `json:"recipient" db:"recipient"`
	SentAt       time.Time  `json:"sent_at" db:"sent_at"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	OpenedAt     *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt    *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`
	BouncedAt    *time.Time `json:"bounced_at,omitempty" db:"bounced_at"`
	ComplainedAt *time.Time `json:"complained_at,omitempty" db:"complained_at"`
}
