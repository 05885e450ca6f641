package worker

import (
	"context"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/distlock"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Enqueuer dispatches jobs into the transport.
type Enqueuer interface {
	EnqueueDefault(ctx context.Context, kind domain.JobKind, payload interface{}) (int64, error)
}

// Entry is one recurring job. Next computes the first due time strictly
// after the given instant; ticks that fall while the scheduler is down are
// skipped, never replayed.
type Entry struct {
	Kind    domain.JobKind
	Payload interface{}
	Next    func(after time.Time) time.Time
}

// Daily fires at the given UTC hour every day.
func Daily(hour int) func(time.Time) time.Time {
	return func(after time.Time) time.Time {
		after = after.UTC()
		next := time.Date(after.Year(), after.Month(), after.Day(), hour, 0, 0, 0, time.UTC)
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// Weekly fires on the given UTC weekday and hour every week.
func Weekly(day time.Weekday, hour int) func(time.Time) time.Time {
	return func(after time.Time) time.Time {
		after = after.UTC()
		next := time.Date(after.Year(), after.Month(), after.Day(), hour, 0, 0, 0, time.UTC)
		for next.Weekday() != day || !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// DefaultEntries is the stock recurring schedule.
func DefaultEntries() []Entry {
	return []Entry{
		{Kind: domain.JobCalculateBenchmarks, Next: Weekly(time.Monday, 2)},
		{Kind: domain.JobExpireProposals, Next: Daily(3)},
		{Kind: domain.JobCheckSSL, Next: Daily(4)},
		{Kind: domain.JobCleanupOldData, Next: Weekly(time.Sunday, 1)},
		{Kind: domain.JobBatchDiscovery, Next: Daily(5)},
	}
}

// Scheduler emits recurring jobs into the transport. A distributed lock
// keeps multi-instance deployments down to one emitter per tick; handlers
// absorb the occasional duplicate through their idempotency keys.
type Scheduler struct {
	jobs    Enqueuer
	lock    distlock.DistLock
	entries []Entry
	tick    time.Duration
	now     func() time.Time
	log     *logger.Logger

	due []time.Time
}

// NewScheduler creates a scheduler over the given entries. lock may be nil
// for single-instance deployments.
func NewScheduler(jobs Enqueuer, lock distlock.DistLock, entries []Entry, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	if len(entries) == 0 {
		entries = DefaultEntries()
	}
	return &Scheduler{
		jobs:    jobs,
		lock:    lock,
		entries: entries,
		tick:    tick,
		now:     time.Now,
		log:     logger.With("scheduler"),
	}
}

// Run blocks, emitting due entries on each tick until ctx is done. Due
// times are seeded from startup, so ticks missed while the process was down
// are skipped rather than replayed.
func (s *Scheduler) Run(ctx context.Context) {
	start := s.now()
	s.due = make([]time.Time, len(s.entries))
	for i, e := range s.entries {
		s.due[i] = e.Next(start)
	}
	s.log.Info("scheduler starting", "entries", len(s.entries), "tick_s", int(s.tick.Seconds()))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emitDue(ctx)
		}
	}
}

func (s *Scheduler) emitDue(ctx context.Context) {
	now := s.now()
	var dueIdx []int
	for i := range s.entries {
		if !s.due[i].After(now) {
			dueIdx = append(dueIdx, i)
		}
	}
	if len(dueIdx) == 0 {
		return
	}

	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			s.log.Error("scheduler lock failed", "error", err.Error())
			return
		}
		if !ok {
			// Another instance owns this tick. Advance past it so the next
			// occurrence is scheduled, not this one again.
			for _, i := range dueIdx {
				s.due[i] = s.entries[i].Next(now)
			}
			return
		}
		defer s.lock.Release(ctx)
	}

	for _, i := range dueIdx {
		e := s.entries[i]
		if _, err := s.jobs.EnqueueDefault(ctx, e.Kind, e.Payload); err != nil {
			s.log.Error("schedule emit failed", "kind", string(e.Kind), "error", err.Error())
			// Leave the entry due; the next tick retries the emission.
			continue
		}
		s.log.Info("scheduled job emitted", "kind", string(e.Kind))
		s.due[i] = e.Next(now)
	}
}
