package domain

import "time"

// TenantRole tags a tenant account with a capability. The legacy
// admin/superadmin/sub-account hierarchy is a flat role set plus an
// optional parent link.
type TenantRole string

const (
	RoleAdmin      TenantRole = "admin"
	RoleSuperAdmin TenantRole = "superadmin"
	RoleSubAccount TenantRole = "sub_account"
)

// RateLimits holds per-tenant sending budgets. Zero means unlimited.
type RateLimits struct {
	DailyMax       int `json:"daily_max" yaml:"daily_max"`
	HourlyMax      int `json:"hourly_max" yaml:"hourly_max"`
	DomainDailyMax int `json:"domain_daily_max" yaml:"domain_daily_max"`
	BurstPerMinute int `json:"burst_per_minute" yaml:"burst_per_minute"`
}

// ScoringThresholds drives the analysis → lead-status mapping. Values are
// tenant configuration, not code.
type ScoringThresholds struct {
	MinQualifiedScore       int `json:"min_qualified_score"`
	HotScore                int `json:"hot_score"`
	MaxCriticalForQualified int `json:"max_critical_for_qualified"`
	EshopBonus              int `json:"eshop_bonus"`
}

// DefaultScoringThresholds are applied when a tenant has no explicit config.
func DefaultScoringThresholds() ScoringThresholds {
	return ScoringThresholds{
		MinQualifiedScore:       60,
		HotScore:                80,
		MaxCriticalForQualified: 2,
		EshopBonus:              10,
	}
}

// Tenant is the root of all ownership: leads, offers, proposals, suppression
// scope and rate limits all hang off a tenant.
type Tenant struct {
	ID              string            `json:"id" db:"id"`
	UserCode        string            `json:"user_code" db:"user_code"`
	Name            string            `json:"name" db:"name"`
	Industry        string            `json:"industry,omitempty" db:"industry"`
	Roles           []TenantRole      `json:"roles" db:"roles"`
	ParentTenantID  string            `json:"parent_tenant_id,omitempty" db:"parent_tenant_id"`
	ExcludedDomains []string          `json:"excluded_domains,omitempty" db:"excluded_domains"`
	RateLimits      RateLimits        `json:"rate_limits" db:"rate_limits"`
	Scoring         ScoringThresholds `json:"scoring" db:"scoring"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// HasRole reports whether the tenant carries the given role tag.
func (t *Tenant) HasRole(role TenantRole) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}
