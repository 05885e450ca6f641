// Package worker runs the dispatcher pool over the durable job transport,
// the recurring-job scheduler and the housekeeping loops.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/queue"
)

// HandlerFunc processes one decoded job payload. The context carries the
// per-queue deadline; handlers must abort cleanly when it expires.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Registry maps job kinds to their handlers.
type Registry struct {
	handlers map[domain.JobKind]HandlerFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[domain.JobKind]HandlerFunc{}}
}

// Register binds a handler to a kind. Registering a kind twice is a
// programming error.
func (r *Registry) Register(kind domain.JobKind, h HandlerFunc) {
	if _, dup := r.handlers[kind]; dup {
		panic(fmt.Sprintf("worker: handler for %s registered twice", kind))
	}
	r.handlers[kind] = h
}

// Get returns the handler for a kind, or nil.
func (r *Registry) Get(kind domain.JobKind) HandlerFunc {
	return r.handlers[kind]
}

// RetryPolicy bounds how often a queue retries a job and how the backoff
// grows between attempts.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   int
}

// Backoff returns the delay before the given retry (0-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < retry; i++ {
		d *= time.Duration(p.Multiplier)
	}
	return d
}

// Per-queue retry policies and handler deadlines. High priority retries
// fast and gives up fast; low priority is patient.
var (
	retryPolicies = map[domain.Queue]RetryPolicy{
		domain.QueueHigh:   {MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2},
		domain.QueueNormal: {MaxAttempts: 3, InitialDelay: 5 * time.Second, Multiplier: 3},
		domain.QueueLow:    {MaxAttempts: 2, InitialDelay: 30 * time.Second, Multiplier: 2},
	}
	handlerDeadlines = map[domain.Queue]time.Duration{
		domain.QueueHigh:   60 * time.Second,
		domain.QueueNormal: 300 * time.Second,
		domain.QueueLow:    300 * time.Second,
	}
)

// Transport is the slice of the job transport the dispatcher consumes.
type Transport interface {
	Claim(ctx context.Context, q domain.Queue) (*domain.Job, error)
	Ack(ctx context.Context, id int64) error
	Retry(ctx context.Context, job *domain.Job, backoff time.Duration) error
	MoveToFailed(ctx context.Context, job *domain.Job) error
	Depths(ctx context.Context) (map[domain.Queue]int, error)
}

// Dispatcher runs a pool of workers that drain the queues in priority
// order. Each worker claims one job at a time; ordering across workers is
// not guaranteed.
type Dispatcher struct {
	transport   Transport
	registry    *Registry
	queues      []domain.Queue
	concurrency int
	idleSleep   time.Duration
	metrics     *Metrics
	workerID    string
	log         *logger.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher pool. metrics may be nil.
func NewDispatcher(transport Transport, registry *Registry, queues []domain.Queue, concurrency int, idleSleep time.Duration, metrics *Metrics) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if idleSleep <= 0 {
		idleSleep = 250 * time.Millisecond
	}
	if len(queues) == 0 {
		queues = []domain.Queue{domain.QueueHigh, domain.QueueNormal, domain.QueueLow}
	}
	return &Dispatcher{
		transport:   transport,
		registry:    registry,
		queues:      queues,
		concurrency: concurrency,
		idleSleep:   idleSleep,
		metrics:     metrics,
		workerID:    "worker-" + uuid.New().String()[:8],
		log:         logger.With("dispatcher"),
	}
}

// WorkerID identifies this dispatcher instance in heartbeats.
func (d *Dispatcher) WorkerID() string { return d.workerID }

// Start launches the pool and blocks until ctx is cancelled and all workers
// have drained their current job.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info("dispatcher starting",
		"worker_id", d.workerID, "concurrency", d.concurrency, "queues", queueNames(d.queues))
	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.run(ctx, i)
	}
	d.wg.Wait()
	d.log.Info("dispatcher stopped", "worker_id", d.workerID)
}

func (d *Dispatcher) run(ctx context.Context, slot int) {
	defer d.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		job := d.claimNext(ctx)
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.idleSleep):
			}
			continue
		}
		d.process(ctx, job, slot)
	}
}

// claimNext tries the queues in priority order and returns the first job
// claimed, or nil when every queue is empty.
func (d *Dispatcher) claimNext(ctx context.Context) *domain.Job {
	for _, q := range d.queues {
		job, err := d.transport.Claim(ctx, q)
		if err != nil {
			if ctx.Err() == nil {
				d.log.Error("claim failed", "queue", string(q), "error", err.Error())
			}
			return nil
		}
		if job != nil {
			return job
		}
	}
	return nil
}

func (d *Dispatcher) process(parent context.Context, job *domain.Job, slot int) {
	env, err := queue.Decode(job)
	if err != nil {
		d.log.Error("malformed job, moving to failed", "job_id", job.ID, "error", err.Error())
		d.fail(parent, job, "malformed")
		return
	}

	handler := d.registry.Get(env.Type)
	if handler == nil {
		d.log.Error("no handler for job kind, moving to failed",
			"job_id", job.ID, "kind", string(env.Type))
		d.fail(parent, job, string(env.Type))
		return
	}

	deadline := handlerDeadlines[job.Queue]
	if deadline == 0 {
		deadline = handlerDeadlines[domain.QueueNormal]
	}
	ctx, cancel := context.WithTimeout(parent, deadline)
	start := time.Now()
	err = handler(ctx, env.Payload)
	cancel()

	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.JobDuration.WithLabelValues(string(env.Type)).Observe(elapsed.Seconds())
	}

	if err == nil {
		if ackErr := d.transport.Ack(parent, job.ID); ackErr != nil {
			d.log.Error("ack failed", "job_id", job.ID, "error", ackErr.Error())
		}
		if d.metrics != nil {
			d.metrics.JobsProcessed.WithLabelValues(string(env.Type), "ok").Inc()
		}
		d.log.Debug("job done", "job_id", job.ID, "kind", string(env.Type),
			"slot", slot, "elapsed_ms", elapsed.Milliseconds())
		return
	}

	// retries is how many retries this job has already consumed; the policy
	// grants MaxAttempts retries before the row parks in the failed queue.
	policy := retryPolicies[job.Queue]
	retries := queue.RetryCount(job)
	if !domain.IsRetryable(err) || retries >= policy.MaxAttempts {
		d.log.Warn("job failed permanently",
			"job_id", job.ID, "kind", string(env.Type),
			"retries", retries, "error", err.Error())
		d.fail(parent, job, string(env.Type))
		return
	}

	backoff := policy.Backoff(retries)
	d.log.Warn("job failed, retrying",
		"job_id", job.ID, "kind", string(env.Type),
		"retry", retries+1, "backoff_s", int(backoff.Seconds()), "error", err.Error())
	if retryErr := d.transport.Retry(parent, job, backoff); retryErr != nil {
		d.log.Error("retry scheduling failed", "job_id", job.ID, "error", retryErr.Error())
	}
	if d.metrics != nil {
		d.metrics.JobsProcessed.WithLabelValues(string(env.Type), "retry").Inc()
		d.metrics.JobRetries.WithLabelValues(string(env.Type)).Inc()
	}
}

func (d *Dispatcher) fail(ctx context.Context, job *domain.Job, kind string) {
	if err := d.transport.MoveToFailed(ctx, job); err != nil {
		d.log.Error("move to failed queue failed", "job_id", job.ID, "error", err.Error())
		return
	}
	if d.metrics != nil {
		d.metrics.JobsProcessed.WithLabelValues(kind, "failed").Inc()
		d.metrics.JobsMovedFailed.WithLabelValues(kind).Inc()
	}
}

// ObserveDepths publishes queue depth gauges. Called periodically by the
// worker main loop.
func (d *Dispatcher) ObserveDepths(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	depths, err := d.transport.Depths(ctx)
	if err != nil {
		d.log.Warn("queue depth read failed", "error", err.Error())
		return
	}
	for _, q := range append(d.queues, domain.QueueFailed) {
		d.metrics.QueueDepth.WithLabelValues(string(q)).Set(float64(depths[q]))
	}
}

func queueNames(queues []domain.Queue) string {
	out := ""
	for i, q := range queues {
		if i > 0 {
			out += ","
		}
		out += string(q)
	}
	return out
}
