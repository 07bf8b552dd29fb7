package webhooks

import (
	"errors"
	"slices"

	"github.com/google/uuid"
)

// TestEvent is the synthetic event delivered by the test endpoint. It bypasses
// the subscription's event filter.
const TestEvent = "webhook.test"

var (
	ErrNotFound     = errors.New("webhooks: subscription not found")
	ErrInvalidInput = errors.New("webhooks: invalid input")
)

// Webhook is a project's registered endpoint plus its subscribed event names
// and delivery secret.
type Webhook struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret"`
	Events    []string  `json:"events"`
	IsActive  bool      `json:"is_active"`
	// FailureCount counts consecutive failed deliveries. Reset to zero on any
	// successful delivery; the subscription is deactivated when it reaches the
	// configured threshold.
	FailureCount    int    `json:"failure_count"`
	LastTriggeredAt *int64 `json:"last_triggered_at"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// SubscribesTo reports whether the subscription's event set contains the
// event name. Exact string match, no wildcard expansion.
func (w *Webhook) SubscribesTo(event string) bool {
	return slices.Contains(w.Events, event)
}

// Log is one append-only delivery record. Rows are never mutated or deleted.
type Log struct {
	ID        uuid.UUID `json:"id"`
	WebhookID uuid.UUID `json:"webhook_id"`
	Event     string    `json:"event"`
	Payload   string    `json:"payload"`
	// StatusCode is nil when the request never produced a response
	// (network error, timeout).
	StatusCode   *int   `json:"status_code"`
	ResponseBody string `json:"response_body"`
	DurationMs   int64  `json:"duration_ms"`
	Success      bool   `json:"success"`
	CreatedAt    int64  `json:"created_at"`
}
