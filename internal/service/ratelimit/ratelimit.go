// Package ratelimit enforces per-tenant and per-recipient-domain sending
// budgets. Window usage is counted from committed sent offers, so a denied
// send never consumes budget. An optional Redis burst guard caps short
// spikes that the windowed counts cannot see.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Reasons returned on denial.
const (
	ReasonDailyLimit       = "daily_limit_reached"
	ReasonHourlyLimit      = "hourly_limit_reached"
	ReasonDomainDailyLimit = "domain_daily_limit_reached"
	ReasonBurstLimit       = "burst_limit_reached"
)

// Usage holds current window counts.
type Usage struct {
	Daily       int `json:"daily"`
	Hourly      int `json:"hourly"`
	DomainDaily int `json:"domainDaily"`
}

// Remaining holds budget left per window; -1 means unlimited.
type Remaining struct {
	Daily       int `json:"daily"`
	Hourly      int `json:"hourly"`
	DomainDaily int `json:"domainDaily"`
}

// Decision is the outcome of a rate-limit evaluation.
type Decision struct {
	Allowed   bool              `json:"allowed"`
	Reason    string            `json:"reason,omitempty"`
	Limits    domain.RateLimits `json:"limits"`
	Usage     Usage             `json:"usage"`
	Remaining Remaining         `json:"remaining"`
}

// Service evaluates sending budgets against committed sent offers.
type Service struct {
	db    *sql.DB
	burst *BurstGuard
	log   *logger.Logger
}

// NewService creates a rate-limit service. burst may be nil when Redis is
// not configured; the windowed limits still apply.
func NewService(db *sql.DB, burst *BurstGuard) *Service {
	return &Service{db: db, burst: burst, log: logger.With("ratelimit")}
}

// Evaluate checks whether the tenant may send to the recipient domain right
// now. It never mutates counters; usage grows only when an offer commits to
// sent. The burst guard is consulted last so a denied send does not consume
// burst budget either.
func (s *Service) Evaluate(ctx context.Context, tenant *domain.Tenant, recipientDomain string) (*Decision, error) {
	limits := tenant.RateLimits
	recipientDomain = strings.ToLower(strings.TrimSpace(recipientDomain))

	usage, err := s.usage(ctx, tenant.ID, recipientDomain)
	if err != nil {
		return nil, fmt.Errorf("rate limit usage for tenant %s: %w", tenant.UserCode, err)
	}

	d := &Decision{
		Allowed:   true,
		Limits:    limits,
		Usage:     *usage,
		Remaining: remaining(limits, *usage),
	}

	switch {
	case limits.DailyMax > 0 && usage.Daily >= limits.DailyMax:
		d.Allowed = false
		d.Reason = ReasonDailyLimit
	case limits.HourlyMax > 0 && usage.Hourly >= limits.HourlyMax:
		d.Allowed = false
		d.Reason = ReasonHourlyLimit
	case limits.DomainDailyMax > 0 && usage.DomainDaily >= limits.DomainDailyMax:
		d.Allowed = false
		d.Reason = ReasonDomainDailyLimit
	}
	if !d.Allowed {
		s.log.Warn("send denied", "tenant", tenant.UserCode, "reason", d.Reason,
			"daily", usage.Daily, "hourly", usage.Hourly, "domain_daily", usage.DomainDaily)
		return d, nil
	}

	if s.burst != nil && limits.BurstPerMinute > 0 {
		ok, err := s.burst.Allow(ctx, tenant.ID, limits.BurstPerMinute)
		if err != nil {
			// Redis down must not stop sending; the windowed limits still hold.
			s.log.Warn("burst guard unavailable", "tenant", tenant.UserCode, "error", err.Error())
		} else if !ok {
			d.Allowed = false
			d.Reason = ReasonBurstLimit
		}
	}
	return d, nil
}

func (s *Service) usage(ctx context.Context, tenantID, recipientDomain string) (*Usage, error) {
	var u Usage
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE sent_at > NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE sent_at > NOW() - INTERVAL '1 hour'),
			COUNT(*) FILTER (WHERE sent_at > NOW() - INTERVAL '24 hours'
				AND LOWER(split_part(recipient, '@', 2)) = $2)
		FROM offers
		WHERE tenant_id = $1 AND sent_at IS NOT NULL
	`, tenantID, recipientDomain).Scan(&u.Daily, &u.Hourly, &u.DomainDaily)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func remaining(limits domain.RateLimits, u Usage) Remaining {
	return Remaining{
		Daily:       left(limits.DailyMax, u.Daily),
		Hourly:      left(limits.HourlyMax, u.Hourly),
		DomainDaily: left(limits.DomainDailyMax, u.DomainDaily),
	}
}

func left(limit, used int) int {
	if limit <= 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// RecipientDomain extracts the domain part of an email address, lowercased.
func RecipientDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
