// Package mailer abstracts the outbound mail provider. The send gate only
// needs a single-message transmit that returns the provider message id.
package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one outbound email, fully composed.
type Message struct {
	To            string
	Subject       string
	HTMLBody      string
	PlainTextBody string
}

// Result carries the provider-assigned message id used to route callbacks.
type Result struct {
	MessageID string
	SentAt    time.Time
}

// Mailer transmits a single message. Implementations must return an error
// classified as upstream-unavailable on provider failures so the dispatcher
// retries.
type Mailer interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// NullMailer accepts every message without transmitting. Used when no
// provider is configured (local development) and in tests.
type NullMailer struct {
	mu   sync.Mutex
	sent []Message
}

// NewNullMailer creates a no-op mailer.
func NewNullMailer() *NullMailer { return &NullMailer{} }

func (m *NullMailer) Send(_ context.Context, msg *Message) (*Result, error) {
	m.mu.Lock()
	m.sent = append(m.sent, *msg)
	m.mu.Unlock()
	return &Result{MessageID: "null-" + uuid.New().String(), SentAt: time.Now()}, nil
}

// Sent returns a copy of every message accepted so far.
func (m *NullMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
