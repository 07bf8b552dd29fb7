package webhooks

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Envelope is the JSON body POSTed to subscriber endpoints.
type Envelope struct {
	Event string `json:"event"`
	// Timestamp is ISO-8601 (RFC 3339) in UTC.
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// deliveryJob is the queue message for one pending delivery attempt. The
// attempt number travels with the message so retries can compute their own
// backoff and cap.
type deliveryJob struct {
	WebhookID uuid.UUID       `json:"webhook_id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Attempt   int             `json:"attempt"`
}
