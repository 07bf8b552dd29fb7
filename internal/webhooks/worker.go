package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/google/uuid"
	"github.com/iamolegga/goqite"

	"github.com/zenithhq/zenith/internal/infra/config"
	"github.com/zenithhq/zenith/internal/infra/logger"
	"github.com/zenithhq/zenith/internal/infra/metrics"
)

const (
	signatureHeader = "X-Webhook-Signature"
	eventHeader     = "X-Webhook-Event"

	// responseBodyLimit bounds how much of the subscriber's response is kept
	// in the delivery log.
	responseBodyLimit = 1000
)

// Worker processes queued delivery jobs: it signs and POSTs the envelope,
// writes exactly one log row per attempt, maintains the failure counter, and
// schedules backoff retries.
type Worker struct {
	repo        *Repo
	queue       *goqite.Queue
	client      *http.Client
	maxAttempts int
	threshold   int
}

func NewWorker(repo *Repo, queue *goqite.Queue, cfg config.WebhooksConfig) *Worker {
	return &Worker{
		repo:        repo,
		queue:       queue,
		client:      &http.Client{Timeout: cfg.DeliveryTimeout},
		maxAttempts: cfg.MaxAttempts,
		threshold:   cfg.FailureThreshold,
	}
}

// Handle processes one delivery job from the queue. Delivery failures are
// handled internally (logged, counted, retried); an error return is reserved
// for infrastructure problems, which make the message visible again for
// redelivery.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job deliveryJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to unmarshal delivery job: %w", err)
	}

	sub, err := w.repo.GetWebhook(ctx, job.WebhookID)
	if err != nil {
		return err
	}
	if sub == nil || !sub.IsActive {
		// Deleted or deactivated since this attempt was scheduled. Dropping
		// the message here is what cancels pending retries.
		logger.FromContext(ctx).Debug(
			"dropping delivery for missing or inactive subscription",
			"webhook_id", job.WebhookID,
			"event", job.Event,
			"attempt", job.Attempt,
		)
		return nil
	}

	return w.deliver(ctx, sub, job)
}

func (w *Worker) deliver(ctx context.Context, sub *Webhook, job deliveryJob) error {
	envelope := Envelope{
		Event:     job.Event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      job.Data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	statusCode, respBody, duration, reqErr := w.post(ctx, sub, job.Event, body)

	success := reqErr == nil && statusCode != nil &&
		*statusCode >= 200 && *statusCode < 300

	log := logger.FromContext(ctx)

	entry := &Log{
		ID:           uuid.New(),
		WebhookID:    sub.ID,
		Event:        job.Event,
		Payload:      string(body),
		StatusCode:   statusCode,
		ResponseBody: respBody,
		DurationMs:   duration.Milliseconds(),
		Success:      success,
		CreatedAt:    time.Now().Unix(),
	}
	if reqErr != nil {
		entry.ResponseBody = truncate(reqErr.Error(), responseBodyLimit)
	}
	if err := w.repo.InsertLog(ctx, entry); err != nil {
		log.Error("failed to write delivery log", "webhook_id", sub.ID, "error", err)
	}

	metrics.RecordWebhookDelivery(success, duration)

	if success {
		if err := w.repo.MarkSuccess(ctx, sub.ID, time.Now().Unix()); err != nil {
			return err
		}
		log.Debug("webhook delivered",
			"webhook_id", sub.ID,
			"event", job.Event,
			"status", *statusCode,
			"attempt", job.Attempt,
		)
		return nil
	}

	count, deactivated, err := w.repo.MarkFailure(ctx, sub.ID, w.threshold, time.Now().Unix())
	if err != nil {
		return err
	}
	if deactivated {
		metrics.RecordWebhookDeactivated()
		log.Warn("subscription deactivated after repeated failures",
			"webhook_id", sub.ID,
			"failure_count", count,
		)
	}

	log.Info("webhook delivery failed",
		"webhook_id", sub.ID,
		"event", job.Event,
		"attempt", job.Attempt,
		"failure_count", count,
		"error", reqErr,
	)

	if job.Attempt < w.maxAttempts && !deactivated {
		retry := job
		retry.Attempt++
		backoff := time.Duration(1<<job.Attempt) * time.Second
		if err := enqueueDelivery(ctx, w.queue, retry, backoff); err != nil {
			return err
		}
	}
	return nil
}

// post performs one HTTP delivery attempt. statusCode is nil when no response
// was produced (network error, timeout).
func (w *Worker) post(
	ctx context.Context,
	sub *Webhook,
	event string,
	body []byte,
) (statusCode *int, respBody string, duration time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headers.ContentType, "application/json")
	req.Header.Set(eventHeader, event)
	req.Header.Set(signatureHeader, Sign(sub.Secret, body))

	start := time.Now()
	resp, err := w.client.Do(req)
	duration = time.Since(start)
	if err != nil {
		return nil, "", duration, err
	}
	defer resp.Body.Close()

	limited, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	status := resp.StatusCode
	return &status, string(limited), duration, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
