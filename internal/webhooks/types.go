package webhooks

// Subscription is the API representation of a webhook. The delivery secret is
// never included; it is returned once, by the create endpoint.
type Subscription struct {
	ID              string   `json:"id"                doc:"Subscription ID"`
	ProjectID       string   `json:"project_id"        doc:"Owning project"`
	URL             string   `json:"url"               doc:"Delivery endpoint"`
	Events          []string `json:"events"            doc:"Subscribed event names"`
	IsActive        bool     `json:"is_active"         doc:"Whether deliveries are attempted"`
	FailureCount    int      `json:"failure_count"     doc:"Consecutive failed deliveries"`
	LastTriggeredAt *int64   `json:"last_triggered_at" doc:"Unix time of last successful delivery"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

// SubscriptionWithSecret is the create response: the only place the secret is
// ever exposed.
type SubscriptionWithSecret struct {
	Subscription
	Secret string `json:"secret" doc:"HMAC signing secret, shown only on creation"`
}

// DeliveryLog is the API representation of one delivery attempt.
type DeliveryLog struct {
	ID           string `json:"id"`
	WebhookID    string `json:"webhook_id"`
	Event        string `json:"event"`
	Payload      string `json:"payload"       doc:"Exact JSON body sent to the endpoint"`
	StatusCode   *int   `json:"status_code"   doc:"HTTP status, null when no response was received"`
	ResponseBody string `json:"response_body" doc:"Response body or transport error, truncated"`
	DurationMs   int64  `json:"duration_ms"`
	Success      bool   `json:"success"`
	CreatedAt    int64  `json:"created_at"`
}

func ToSubscription(w *Webhook) Subscription {
	return Subscription{
		ID:              w.ID.String(),
		ProjectID:       w.ProjectID.String(),
		URL:             w.URL,
		Events:          w.Events,
		IsActive:        w.IsActive,
		FailureCount:    w.FailureCount,
		LastTriggeredAt: w.LastTriggeredAt,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func ToDeliveryLog(l *Log) DeliveryLog {
	return DeliveryLog{
		ID:           l.ID.String(),
		WebhookID:    l.WebhookID.String(),
		Event:        l.Event,
		Payload:      l.Payload,
		StatusCode:   l.StatusCode,
		ResponseBody: l.ResponseBody,
		DurationMs:   l.DurationMs,
		Success:      l.Success,
		CreatedAt:    l.CreatedAt,
	}
}
