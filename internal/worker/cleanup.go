package worker

import (
	"context"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/config"
	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Cleanup targets accepted by cleanup_old_data. Empty means all of them.
const (
	CleanupTargetFailedJobs = "failed_jobs"
	CleanupTargetEmailLog   = "email_log"
	CleanupTargetSnapshots  = "snapshots"
)

// CleanupStore deletes expired rows in batches.
type CleanupStore interface {
	DeleteOldFailedJobs(ctx context.Context, queue string, olderThan time.Time, batch int) (int64, error)
	DeleteOldSnapshots(ctx context.Context, olderThan time.Time, batch int) (int64, error)
}

// EmailLogPurger removes old email log rows.
type EmailLogPurger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Time, batch int) (int64, error)
}

// Cleaner applies the retention policy in bounded batches so a big backlog
// never holds locks for long.
type Cleaner struct {
	store    CleanupStore
	emailLog EmailLogPurger
	cfg      config.CleanupConfig
	log      *logger.Logger
}

// NewCleaner creates the retention job.
func NewCleaner(store CleanupStore, emailLog EmailLogPurger, cfg config.CleanupConfig) *Cleaner {
	return &Cleaner{store: store, emailLog: emailLog, cfg: cfg, log: logger.With("cleanup")}
}

// Run deletes expired data for one target, or for every target when target
// is empty. Batches repeat until a round deletes less than a full batch.
func (c *Cleaner) Run(ctx context.Context, target string) error {
	switch target {
	case CleanupTargetFailedJobs:
		return c.failedJobs(ctx)
	case CleanupTargetEmailLog:
		return c.emailLogRows(ctx)
	case CleanupTargetSnapshots:
		return c.snapshots(ctx)
	case "":
		if err := c.failedJobs(ctx); err != nil {
			return err
		}
		if err := c.emailLogRows(ctx); err != nil {
			return err
		}
		return c.snapshots(ctx)
	default:
		return domain.Ef(domain.KindPermanentFailure, "unknown cleanup target %q", target)
	}
}

func (c *Cleaner) failedJobs(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -c.cfg.FailedJobRetentionDays)
	total, err := c.drain(ctx, func(ctx context.Context) (int64, error) {
		return c.store.DeleteOldFailedJobs(ctx, string(domain.QueueFailed), cutoff, c.cfg.BatchSize)
	})
	if total > 0 {
		c.log.Info("failed jobs purged", "deleted", total)
	}
	return err
}

func (c *Cleaner) emailLogRows(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -c.cfg.EmailLogRetentionDays)
	total, err := c.drain(ctx, func(ctx context.Context) (int64, error) {
		return c.emailLog.PurgeOlderThan(ctx, cutoff, c.cfg.BatchSize)
	})
	if total > 0 {
		c.log.Info("email log purged", "deleted", total)
	}
	return err
}

func (c *Cleaner) snapshots(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -c.cfg.SnapshotRetentionDays)
	total, err := c.drain(ctx, func(ctx context.Context) (int64, error) {
		return c.store.DeleteOldSnapshots(ctx, cutoff, c.cfg.BatchSize)
	})
	if total > 0 {
		c.log.Info("snapshots purged", "deleted", total)
	}
	return err
}

func (c *Cleaner) drain(ctx context.Context, deleteBatch func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := deleteBatch(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(c.cfg.BatchSize) {
			return total, nil
		}
	}
}
