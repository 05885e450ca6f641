package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/queue"
)

type memTransport struct {
	jobs    map[domain.Queue][]*domain.Job
	acked   []int64
	retried []retriedJob
	failed  []*domain.Job
	nextID  int64
}

type retriedJob struct {
	id      int64
	backoff time.Duration
}

func newMemTransport() *memTransport {
	return &memTransport{jobs: map[domain.Queue][]*domain.Job{}}
}

func (m *memTransport) add(q domain.Queue, kind domain.JobKind, retryCount int) *domain.Job {
	m.nextID++
	body, _ := json.Marshal(queue.Envelope{Type: kind, Payload: json.RawMessage(`{}`)})
	job := &domain.Job{
		ID:      m.nextID,
		Body:    body,
		Queue:   q,
		Headers: map[string]string{"type": string(kind)},
	}
	if retryCount > 0 {
		job.Headers["retry_count"] = strconv.Itoa(retryCount)
	}
	m.jobs[q] = append(m.jobs[q], job)
	return job
}

func (m *memTransport) Claim(_ context.Context, q domain.Queue) (*domain.Job, error) {
	pending := m.jobs[q]
	if len(pending) == 0 {
		return nil, nil
	}
	job := pending[0]
	m.jobs[q] = pending[1:]
	return job, nil
}

func (m *memTransport) Ack(_ context.Context, id int64) error {
	m.acked = append(m.acked, id)
	return nil
}

func (m *memTransport) Retry(_ context.Context, job *domain.Job, backoff time.Duration) error {
	m.retried = append(m.retried, retriedJob{id: job.ID, backoff: backoff})
	return nil
}

func (m *memTransport) MoveToFailed(_ context.Context, job *domain.Job) error {
	m.failed = append(m.failed, job)
	return nil
}

func (m *memTransport) Depths(_ context.Context) (map[domain.Queue]int, error) {
	out := map[domain.Queue]int{}
	for q, jobs := range m.jobs {
		out[q] = len(jobs)
	}
	return out, nil
}

func testDispatcher(transport Transport, reg *Registry) *Dispatcher {
	return NewDispatcher(transport, reg, nil, 1, time.Millisecond, nil)
}

func TestProcessAcksSuccessfulJob(t *testing.T) {
	transport := newMemTransport()
	job := transport.add(domain.QueueHigh, domain.JobSendEmail, 0)

	reg := NewRegistry()
	handled := 0
	reg.Register(domain.JobSendEmail, func(context.Context, json.RawMessage) error {
		handled++
		return nil
	})

	d := testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)

	assert.Equal(t, 1, handled)
	assert.Equal(t, []int64{job.ID}, transport.acked)
	assert.Empty(t, transport.retried)
	assert.Empty(t, transport.failed)
}

func TestProcessRetriesRetryableError(t *testing.T) {
	transport := newMemTransport()
	job := transport.add(domain.QueueHigh, domain.JobSendEmail, 0)

	reg := NewRegistry()
	reg.Register(domain.JobSendEmail, func(context.Context, json.RawMessage) error {
		return domain.E(domain.KindUpstreamUnavailable, "provider down")
	})

	d := testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)

	require.Len(t, transport.retried, 1)
	assert.Equal(t, time.Second, transport.retried[0].backoff)
	assert.Empty(t, transport.failed)
}

func TestProcessBackoffGrowsWithRetryCount(t *testing.T) {
	transport := newMemTransport()
	job := transport.add(domain.QueueNormal, domain.JobAnalyzeLead, 1)

	reg := NewRegistry()
	reg.Register(domain.JobAnalyzeLead, func(context.Context, json.RawMessage) error {
		return domain.E(domain.KindUpstreamUnavailable, "still down")
	})

	d := testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)

	// normal queue: base 5s, multiplier 3, second attempt waits 15s
	require.Len(t, transport.retried, 1)
	assert.Equal(t, 15*time.Second, transport.retried[0].backoff)
}

func TestProcessGrantsThirdRetryOnHighQueue(t *testing.T) {
	transport := newMemTransport()
	// retry_count 2 means two retries are spent; the high queue grants three,
	// so this failure schedules the last one with the 4s backoff.
	job := transport.add(domain.QueueHigh, domain.JobSendEmail, 2)

	reg := NewRegistry()
	reg.Register(domain.JobSendEmail, func(context.Context, json.RawMessage) error {
		return domain.E(domain.KindUpstreamUnavailable, "provider down")
	})

	d := testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)

	require.Len(t, transport.retried, 1)
	assert.Equal(t, 4*time.Second, transport.retried[0].backoff)
	assert.Empty(t, transport.failed)
}

func TestProcessExhaustedRetriesMoveToFailed(t *testing.T) {
	transport := newMemTransport()
	// retry_count 3 exhausts the high queue's three retries
	job := transport.add(domain.QueueHigh, domain.JobSendEmail, 3)

	reg := NewRegistry()
	reg.Register(domain.JobSendEmail, func(context.Context, json.RawMessage) error {
		return domain.E(domain.KindUpstreamUnavailable, "provider down")
	})

	d := testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)

	assert.Empty(t, transport.retried)
	require.Len(t, transport.failed, 1)
	assert.Equal(t, job.ID, transport.failed[0].ID)
}

func TestProcessLowQueueRetryBudget(t *testing.T) {
	reg := NewRegistry()
	reg.Register(domain.JobCheckSSL, func(context.Context, json.RawMessage) error {
		return domain.E(domain.KindUpstreamUnavailable, "timeout")
	})

	// second retry on low waits 60s; a third is never granted
	transport := newMemTransport()
	job := transport.add(domain.QueueLow, domain.JobCheckSSL, 1)
	d := testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)
	require.Len(t, transport.retried, 1)
	assert.Equal(t, 60*time.Second, transport.retried[0].backoff)

	transport = newMemTransport()
	job = transport.add(domain.QueueLow, domain.JobCheckSSL, 2)
	d = testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)
	assert.Empty(t, transport.retried)
	require.Len(t, transport.failed, 1)
}

func TestProcessPermanentFailureSkipsRetry(t *testing.T) {
	transport := newMemTransport()
	job := transport.add(domain.QueueHigh, domain.JobSendEmail, 0)

	reg := NewRegistry()
	reg.Register(domain.JobSendEmail, func(context.Context, json.RawMessage) error {
		return domain.E(domain.KindPermanentFailure, "malformed payload")
	})

	d := testDispatcher(transport, reg)
	d.process(context.Background(), job, 0)

	assert.Empty(t, transport.retried)
	require.Len(t, transport.failed, 1)
}

func TestProcessMalformedBodyMovesToFailed(t *testing.T) {
	transport := newMemTransport()
	job := &domain.Job{ID: 99, Body: []byte("not json"), Queue: domain.QueueHigh, Headers: map[string]string{}}

	d := testDispatcher(transport, NewRegistry())
	d.process(context.Background(), job, 0)

	require.Len(t, transport.failed, 1)
	assert.Equal(t, int64(99), transport.failed[0].ID)
}

func TestProcessUnknownKindMovesToFailed(t *testing.T) {
	transport := newMemTransport()
	job := transport.add(domain.QueueLow, domain.JobKind("no_such_kind"), 0)

	d := testDispatcher(transport, NewRegistry())
	d.process(context.Background(), job, 0)

	require.Len(t, transport.failed, 1)
}

func TestClaimNextPrefersHigherPriorityQueue(t *testing.T) {
	transport := newMemTransport()
	low := transport.add(domain.QueueLow, domain.JobCheckSSL, 0)
	high := transport.add(domain.QueueHigh, domain.JobSendEmail, 0)

	d := NewDispatcher(transport, NewRegistry(), nil, 1, time.Millisecond, nil)

	first := d.claimNext(context.Background())
	require.NotNil(t, first)
	assert.Equal(t, high.ID, first.ID)

	second := d.claimNext(context.Background())
	require.NotNil(t, second)
	assert.Equal(t, low.ID, second.ID)
}

func TestRetryPolicyBackoffTable(t *testing.T) {
	high := retryPolicies[domain.QueueHigh]
	assert.Equal(t, time.Second, high.Backoff(0))
	assert.Equal(t, 2*time.Second, high.Backoff(1))
	assert.Equal(t, 4*time.Second, high.Backoff(2))

	low := retryPolicies[domain.QueueLow]
	assert.Equal(t, 30*time.Second, low.Backoff(0))
	assert.Equal(t, 60*time.Second, low.Backoff(1))
}
