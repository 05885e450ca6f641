// Package queue implements the durable job transport on top of the
// messenger_messages table. Claiming is atomic via FOR UPDATE SKIP LOCKED,
// so concurrent workers never deliver the same row twice.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// Header keys carried with every job row.
const (
	headerType        = "type"
	headerRetryCount  = "retry_count"
	headerOriginQueue = "origin_queue"
)

// Envelope is the JSON body of a job row.
type Envelope struct {
	Type    domain.JobKind  `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Transport provides enqueue, claim and failure handling over the job table.
type Transport struct {
	db *sql.DB
}

// NewTransport creates a job transport backed by the given database.
func NewTransport(db *sql.DB) *Transport {
	return &Transport{db: db}
}

// Enqueue inserts a job into the given queue, available after delay.
// The payload is marshalled into the body envelope tagged with the kind.
func (t *Transport) Enqueue(ctx context.Context, kind domain.JobKind, payload interface{}, queue domain.Queue, delay time.Duration) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, domain.Wrap(domain.KindPermanentFailure, "marshal job payload", err)
	}
	body, err := json.Marshal(Envelope{Type: kind, Payload: raw})
	if err != nil {
		return 0, domain.Wrap(domain.KindPermanentFailure, "marshal job envelope", err)
	}
	headers, err := json.Marshal(map[string]string{headerType: string(kind)})
	if err != nil {
		return 0, err
	}

	var id int64
	err = t.db.QueryRowContext(ctx, `
		INSERT INTO messenger_messages (body, headers, queue_name, created_at, available_at)
		VALUES ($1, $2, $3, NOW(), NOW() + $4 * INTERVAL '1 second')
		RETURNING id
	`, string(body), string(headers), string(queue), int64(delay.Seconds())).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s on %s: %w", kind, queue, err)
	}
	return id, nil
}

// EnqueueDefault inserts a job into the kind's default queue with no delay.
func (t *Transport) EnqueueDefault(ctx context.Context, kind domain.JobKind, payload interface{}) (int64, error) {
	q, ok := domain.DefaultQueue[kind]
	if !ok {
		return 0, domain.Ef(domain.KindInvalidInput, "unknown job kind %q", kind)
	}
	return t.Enqueue(ctx, kind, payload, q, 0)
}

// Claim atomically claims the oldest available job in the queue, marking it
// delivered. Returns (nil, nil) when the queue is empty.
func (t *Transport) Claim(ctx context.Context, queue domain.Queue) (*domain.Job, error) {
	row := t.db.QueryRowContext(ctx, `
		WITH claimed AS (
			UPDATE messenger_messages
			SET delivered_at = NOW()
			WHERE id = (
				SELECT m.id FROM messenger_messages m
				WHERE m.queue_name = $1
				  AND m.available_at <= NOW()
				  AND m.delivered_at IS NULL
				ORDER BY m.available_at ASC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, body, headers, queue_name, created_at, available_at, delivered_at
		)
		SELECT id, body, headers, queue_name, created_at, available_at, delivered_at
		FROM claimed
	`, string(queue))

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim from %s: %w", queue, err)
	}
	return job, nil
}

// Ack deletes a successfully handled job row.
func (t *Transport) Ack(ctx context.Context, id int64) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM messenger_messages WHERE id = $1`, id)
	return err
}

// Retry makes a claimed job claimable again after the backoff, with the
// retry counter in its headers incremented.
func (t *Transport) Retry(ctx context.Context, job *domain.Job, backoff time.Duration) error {
	headers := cloneHeaders(job.Headers)
	headers[headerRetryCount] = strconv.Itoa(RetryCount(job) + 1)
	raw, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx, `
		UPDATE messenger_messages
		SET delivered_at = NULL,
		    available_at = NOW() + $2 * INTERVAL '1 second',
		    headers = $3
		WHERE id = $1
	`, job.ID, int64(backoff.Seconds()), string(raw))
	return err
}

// MoveToFailed parks an exhausted or permanently failing job in the failed
// queue, remembering its origin queue for later re-drive.
func (t *Transport) MoveToFailed(ctx context.Context, job *domain.Job) error {
	headers := cloneHeaders(job.Headers)
	if _, ok := headers[headerOriginQueue]; !ok {
		headers[headerOriginQueue] = string(job.Queue)
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx, `
		UPDATE messenger_messages
		SET queue_name = $2,
		    delivered_at = NULL,
		    headers = $3
		WHERE id = $1
	`, job.ID, string(domain.QueueFailed), string(raw))
	return err
}

// Redrive moves up to limit failed jobs back to their origin queues with the
// retry counter reset. Returns the number of jobs moved.
func (t *Transport) Redrive(ctx context.Context, limit int) (int, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, body, headers, queue_name, created_at, available_at, delivered_at
		FROM messenger_messages
		WHERE queue_name = $1
		ORDER BY id
		LIMIT $2
	`, string(domain.QueueFailed), limit)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var failed []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return 0, err
		}
		failed = append(failed, job)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	moved := 0
	for _, job := range failed {
		origin := job.Headers[headerOriginQueue]
		if origin == "" || origin == string(domain.QueueFailed) {
			origin = string(domain.QueueNormal)
		}
		headers := cloneHeaders(job.Headers)
		delete(headers, headerOriginQueue)
		headers[headerRetryCount] = "0"
		raw, err := json.Marshal(headers)
		if err != nil {
			return moved, err
		}
		_, err = t.db.ExecContext(ctx, `
			UPDATE messenger_messages
			SET queue_name = $2,
			    available_at = NOW(),
			    delivered_at = NULL,
			    headers = $3
			WHERE id = $1
		`, job.ID, origin, string(raw))
		if err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// RecoverStale releases jobs whose delivery lease expired, typically after a
// worker crash. Released jobs become claimable again immediately. The failed
// queue is exempt.
func (t *Transport) RecoverStale(ctx context.Context, lease time.Duration) (int64, error) {
	res, err := t.db.ExecContext(ctx, `
		UPDATE messenger_messages
		SET delivered_at = NULL
		WHERE delivered_at IS NOT NULL
		  AND delivered_at < NOW() - $1 * INTERVAL '1 second'
		  AND queue_name <> $2
	`, int64(lease.Seconds()), string(domain.QueueFailed))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Depths returns the count of pending (undelivered) jobs per queue.
func (t *Transport) Depths(ctx context.Context) (map[domain.Queue]int, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT queue_name, COUNT(*)
		FROM messenger_messages
		WHERE delivered_at IS NULL
		GROUP BY queue_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	depths := make(map[domain.Queue]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		depths[domain.Queue(name)] = count
	}
	return depths, rows.Err()
}

// RetryCount reads the retry counter from a job's headers; absent means 0.
func RetryCount(job *domain.Job) int {
	n, err := strconv.Atoi(job.Headers[headerRetryCount])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Decode unmarshals a job body into its envelope.
func Decode(job *domain.Job) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(job.Body, &env); err != nil {
		return nil, domain.Wrap(domain.KindPermanentFailure, "malformed job body", err)
	}
	if env.Type == "" {
		return nil, domain.E(domain.KindPermanentFailure, "job body missing type tag")
	}
	return &env, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job       domain.Job
		body      string
		headers   string
		queueName string
		delivered sql.NullTime
	)
	err := row.Scan(&job.ID, &body, &headers, &queueName, &job.CreatedAt, &job.AvailableAt, &delivered)
	if err != nil {
		return nil, err
	}
	job.Body = []byte(body)
	job.Queue = domain.Queue(queueName)
	if delivered.Valid {
		t := delivered.Time
		job.DeliveredAt = &t
	}
	job.Headers = map[string]string{}
	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &job.Headers); err != nil {
			return nil, fmt.Errorf("malformed headers on job %d: %w", job.ID, err)
		}
	}
	return &job, nil
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}
