package domain

import "time"

// SuppressionReason enumerates why a recipient was blocked.
type SuppressionReason string

const (
	ReasonHardBounce  SuppressionReason = "hard_bounce"
	ReasonSoftBounce  SuppressionReason = "soft_bounce"
	ReasonComplaint   SuppressionReason = "complaint"
	ReasonUnsubscribe SuppressionReason = "unsubscribe"
	ReasonManual      SuppressionReason = "manual"
)

// GlobalReason reports whether this reason always produces a global entry.
// Hard bounces and complaints block the address for every tenant; soft
// bounces and unsubscribes are scoped to the tenant that triggered them.
func (r SuppressionReason) GlobalReason() bool {
	return r == ReasonHardBounce || r == ReasonComplaint
}

// SuppressionEntry records a refusal to send to an address. TenantID empty
// means the entry is global.
type SuppressionEntry struct {
	ID        string            `json:"id" db:"id"`
	Email     string            `json:"email" db:"email"`
	TenantID  string            `json:"tenant_id,omitempty" db:"tenant_id"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	Source    string            `json:"source,omitempty" db:"source"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
