package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mesour/brick-offers-sub004/internal/worker"
)

// WorkerRepo backs the worker-side housekeeping: heartbeats, benchmark
// targets, TLS check targets and retention cleanup.
type WorkerRepo struct{ db *sql.DB }

// NewWorkerRepo creates a Postgres-backed worker repository.
func NewWorkerRepo(db *sql.DB) *WorkerRepo { return &WorkerRepo{db: db} }

// UpsertHeartbeat registers or refreshes a worker's liveness row.
func (r *WorkerRepo) UpsertHeartbeat(ctx context.Context, workerID, hostname string, queues []string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO worker_heartbeats (worker_id, hostname, queues, started_at, last_seen_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_seen_at = NOW()
	`, workerID, hostname, pq.Array(queues))
	if err != nil {
		return fmt.Errorf("upsert heartbeat: %w", err)
	}
	return nil
}

// LiveWorkers returns workers seen within the given window.
func (r *WorkerRepo) LiveWorkers(ctx context.Context, within time.Duration) ([]worker.Heartbeat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT worker_id, hostname, queues, started_at, last_seen_at
		FROM worker_heartbeats
		WHERE last_seen_at > NOW() - $1 * INTERVAL '1 second'
		ORDER BY worker_id
	`, int64(within.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("live workers: %w", err)
	}
	defer rows.Close()

	var out []worker.Heartbeat
	for rows.Next() {
		var hb worker.Heartbeat
		var queues pq.StringArray
		if err := rows.Scan(&hb.WorkerID, &hb.Hostname, &queues, &hb.StartedAt, &hb.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan heartbeat: %w", err)
		}
		hb.Queues = []string(queues)
		out = append(out, hb)
	}
	return out, rows.Err()
}

// DeleteDeadWorkers removes heartbeat rows stale beyond the window.
func (r *WorkerRepo) DeleteDeadWorkers(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM worker_heartbeats
		WHERE last_seen_at < NOW() - $1 * INTERVAL '1 second'
	`, int64(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("delete dead workers: %w", err)
	}
	return res.RowsAffected()
}

// BenchmarkTargets lists the (tenant, industry) pairs benchmarks should be
// computed for. An industry filter narrows the set.
func (r *WorkerRepo) BenchmarkTargets(ctx context.Context, industry string) ([]worker.BenchmarkTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT tenant_id, industry
		FROM leads
		WHERE industry IS NOT NULL
		  AND analysis_count > 0
		  AND ($1 = '' OR industry = $1)
		ORDER BY tenant_id, industry
	`, industry)
	if err != nil {
		return nil, fmt.Errorf("benchmark targets: %w", err)
	}
	defer rows.Close()

	var out []worker.BenchmarkTarget
	for rows.Next() {
		var t worker.BenchmarkTarget
		if err := rows.Scan(&t.TenantID, &t.Industry); err != nil {
			return nil, fmt.Errorf("scan benchmark target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SSLTargets lists distinct analyzed lead domains for the TLS expiry sweep.
func (r *WorkerRepo) SSLTargets(ctx context.Context) ([]worker.SSLTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (domain) id, domain
		FROM leads
		WHERE analysis_count > 0
		ORDER BY domain, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("ssl targets: %w", err)
	}
	defer rows.Close()

	var out []worker.SSLTarget
	for rows.Next() {
		var t worker.SSLTarget
		if err := rows.Scan(&t.LeadID, &t.Domain); err != nil {
			return nil, fmt.Errorf("scan ssl target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetSSLValidUntil records a domain's certificate expiry on its leads.
func (r *WorkerRepo) SetSSLValidUntil(ctx context.Context, leadDomain string, notAfter time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE leads SET ssl_valid_until = $2, updated_at = NOW() WHERE domain = $1
	`, leadDomain, notAfter)
	if err != nil {
		return fmt.Errorf("set ssl valid until: %w", err)
	}
	return nil
}

// SetScreenshotPath stores where a lead's page screenshot landed.
func (r *WorkerRepo) SetScreenshotPath(ctx context.Context, leadID, path string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE leads SET screenshot_path = $2, updated_at = NOW() WHERE id = $1
	`, leadID, path)
	if err != nil {
		return fmt.Errorf("set screenshot path: %w", err)
	}
	return nil
}

// DeleteOldFailedJobs removes failed-queue rows older than the cutoff, at
// most batch rows per call.
func (r *WorkerRepo) DeleteOldFailedJobs(ctx context.Context, queue string, olderThan time.Time, batch int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM messenger_messages
		WHERE id IN (
			SELECT id FROM messenger_messages
			WHERE queue_name = $1 AND created_at < $2
			ORDER BY id
			LIMIT $3
		)
	`, queue, olderThan, batch)
	if err != nil {
		return 0, fmt.Errorf("delete old failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOldSnapshots removes snapshot rows whose period ended before the
// cutoff, at most batch rows per call.
func (r *WorkerRepo) DeleteOldSnapshots(ctx context.Context, olderThan time.Time, batch int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE id IN (
			SELECT id FROM snapshots
			WHERE period_start < $1
			ORDER BY period_start
			LIMIT $2
		)
	`, olderThan, batch)
	if err != nil {
		return 0, fmt.Errorf("delete old snapshots: %w", err)
	}
	return res.RowsAffected()
}
