package worker

import (
	"context"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

const (
	// DefaultRecoveryInterval is how often the dead-lease scan runs.
	DefaultRecoveryInterval = 2 * time.Minute

	// DefaultLeaseTimeout is how long a claimed job may sit undelivered
	// before its worker is presumed dead.
	DefaultLeaseTimeout = 10 * time.Minute
)

// StaleRecoverer releases jobs whose delivery lease expired.
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, lease time.Duration) (int64, error)
}

// RecoveryLoop periodically releases jobs abandoned by crashed workers so
// they become claimable again. Blocks until ctx is done.
type RecoveryLoop struct {
	transport StaleRecoverer
	interval  time.Duration
	lease     time.Duration
	metrics   *Metrics
	log       *logger.Logger
}

// NewRecoveryLoop creates the dead-lease recovery loop. metrics may be nil.
func NewRecoveryLoop(transport StaleRecoverer, interval, lease time.Duration, metrics *Metrics) *RecoveryLoop {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if lease <= 0 {
		lease = DefaultLeaseTimeout
	}
	return &RecoveryLoop{
		transport: transport,
		interval:  interval,
		lease:     lease,
		metrics:   metrics,
		log:       logger.With("recovery"),
	}
}

// Run blocks, scanning on every interval tick.
func (r *RecoveryLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

func (r *RecoveryLoop) scan(ctx context.Context) {
	n, err := r.transport.RecoverStale(ctx, r.lease)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("stale job scan failed", "error", err.Error())
		}
		return
	}
	if n > 0 {
		r.log.Warn("stale jobs released", "count", n)
		if r.metrics != nil {
			r.metrics.StaleRecovered.Add(float64(n))
		}
	}
}
