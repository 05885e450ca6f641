package worker

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// SSLTarget is one lead domain due a certificate check.
type SSLTarget struct {
	LeadID string
	Domain string
}

// SSLStore lists check targets and records certificate expiries.
type SSLStore interface {
	SSLTargets(ctx context.Context) ([]SSLTarget, error)
	SetSSLValidUntil(ctx context.Context, leadDomain string, notAfter time.Time) error
}

// SSLChecker sweeps lead domains and records TLS certificate expiry dates.
// Unreachable domains are logged and skipped; the sweep never fails the job
// over a single domain.
type SSLChecker struct {
	store       SSLStore
	dialTimeout time.Duration
	warnWithin  time.Duration
	log         *logger.Logger
}

// NewSSLChecker creates the certificate sweep.
func NewSSLChecker(store SSLStore) *SSLChecker {
	return &SSLChecker{
		store:       store,
		dialTimeout: 10 * time.Second,
		warnWithin:  30 * 24 * time.Hour,
		log:         logger.With("sslcheck"),
	}
}

// Run checks every target domain once.
func (c *SSLChecker) Run(ctx context.Context) error {
	targets, err := c.store.SSLTargets(ctx)
	if err != nil {
		return err
	}
	checked, failed := 0, 0
	for _, t := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		notAfter, err := c.check(ctx, t.Domain)
		if err != nil {
			c.log.Warn("tls check failed", "domain", t.Domain, "error", err.Error())
			failed++
			continue
		}
		if err := c.store.SetSSLValidUntil(ctx, t.Domain, notAfter); err != nil {
			return err
		}
		if until := time.Until(notAfter); until < c.warnWithin {
			c.log.Warn("certificate expiring soon",
				"domain", t.Domain, "not_after", notAfter.Format(time.RFC3339),
				"days_left", int(until.Hours()/24))
		}
		checked++
	}
	c.log.Info("tls sweep done", "checked", checked, "failed", failed)
	return nil
}

func (c *SSLChecker) check(ctx context.Context, domain string) (time.Time, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.dialTimeout},
		Config:    &tls.Config{ServerName: domain},
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(domain, "443"))
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	leaf := state.PeerCertificates[0]
	return leaf.NotAfter, nil
}
