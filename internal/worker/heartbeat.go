package worker

import (
	"context"
	"os"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Heartbeat is one worker's liveness row.
type Heartbeat struct {
	WorkerID   string    `json:"worker_id"`
	Hostname   string    `json:"hostname"`
	Queues     []string  `json:"queues"`
	StartedAt  time.Time `json:"started_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// HeartbeatStore persists worker liveness.
type HeartbeatStore interface {
	UpsertHeartbeat(ctx context.Context, workerID, hostname string, queues []string) error
	DeleteDeadWorkers(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HeartbeatLoop refreshes this worker's liveness row every interval and
// prunes rows from workers gone for ten intervals. Blocks until ctx is done.
func HeartbeatLoop(ctx context.Context, store HeartbeatStore, workerID string, queues []string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log := logger.With("heartbeat")
	hostname, _ := os.Hostname()

	beat := func() {
		if err := store.UpsertHeartbeat(ctx, workerID, hostname, queues); err != nil {
			log.Warn("heartbeat write failed", "worker_id", workerID, "error", err.Error())
		}
		if n, err := store.DeleteDeadWorkers(ctx, 10*interval); err == nil && n > 0 {
			log.Info("dead worker rows pruned", "count", n)
		}
	}

	beat()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}
