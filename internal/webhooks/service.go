package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/iamolegga/goqite"
	"github.com/iamolegga/goqite/jobs"

	"github.com/zenithhq/zenith/internal/infra/logger"
	"github.com/zenithhq/zenith/internal/infra/metrics"
)

// QueueName is the goqite queue / job name for webhook deliveries.
const QueueName = "webhook_delivery"

// Service owns the subscription lifecycle and fans domain events out to the
// delivery queue. Actual HTTP delivery happens in Worker.
type Service struct {
	repo  *Repo
	queue *goqite.Queue
}

func NewService(repo *Repo, queue *goqite.Queue) *Service {
	return &Service{repo: repo, queue: queue}
}

// Trigger enqueues one delivery per active subscription of the project whose
// event set contains the event. Returns how many deliveries were queued.
// A failure to enqueue for one subscription never affects the others.
func (s *Service) Trigger(
	ctx context.Context,
	projectID uuid.UUID,
	event string,
	data json.RawMessage,
) (int, error) {
	subs, err := s.repo.ListActiveWebhooks(ctx, projectID)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, sub := range subs {
		if !sub.SubscribesTo(event) {
			continue
		}
		if err := s.enqueue(ctx, sub.ID, event, data, 0); err != nil {
			logger.FromContext(ctx).Error(
				"failed to queue webhook delivery",
				"webhook_id", sub.ID,
				"event", event,
				"error", err,
			)
			continue
		}
		queued++
	}
	return queued, nil
}

// Test enqueues a synthetic webhook.test delivery for one subscription,
// regardless of its event set. Inactive subscriptions are still dropped by
// the worker.
func (s *Service) Test(ctx context.Context, id uuid.UUID) error {
	sub, err := s.repo.GetWebhook(ctx, id)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrNotFound
	}

	data, err := json.Marshal(map[string]string{"webhook_id": id.String()})
	if err != nil {
		return fmt.Errorf("webhooks: failed to encode test payload: %w", err)
	}
	return s.enqueue(ctx, id, TestEvent, data, 0)
}

func (s *Service) enqueue(
	ctx context.Context,
	webhookID uuid.UUID,
	event string,
	data json.RawMessage,
	delay time.Duration,
) error {
	job := deliveryJob{WebhookID: webhookID, Event: event, Data: data, Attempt: 1}
	if err := enqueueDelivery(ctx, s.queue, job, delay); err != nil {
		return err
	}
	metrics.RecordWebhookQueued(event)
	return nil
}

// enqueueDelivery persists one delivery attempt on the queue. Shared with the
// worker, which uses it to schedule backoff retries.
func enqueueDelivery(ctx context.Context, q *goqite.Queue, job deliveryJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("webhooks: failed to encode delivery job: %w", err)
	}
	if _, err := jobs.Create(ctx, q, QueueName, goqite.Message{Body: body, Delay: delay}); err != nil {
		return fmt.Errorf("webhooks: failed to queue delivery: %w", err)
	}
	return nil
}

// CreateParams carries validated input for Create.
type CreateParams struct {
	URL    string
	Events []string
}

func (p CreateParams) validate() error {
	u, err := url.ParseRequestURI(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid endpoint url", ErrInvalidInput)
	}
	if len(p.Events) == 0 {
		return fmt.Errorf("%w: at least one event name is required", ErrInvalidInput)
	}
	for _, e := range p.Events {
		if e == "" {
			return fmt.Errorf("%w: event names must be non-empty", ErrInvalidInput)
		}
	}
	return nil
}

// Create registers a new subscription with a freshly generated secret. The
// secret is returned exactly once, in the Create response.
func (s *Service) Create(ctx context.Context, projectID uuid.UUID, p CreateParams) (*Webhook, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	w := &Webhook{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       p.URL,
		Secret:    secret,
		Events:    p.Events,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateWebhook(ctx, w); err != nil {
		return nil, err
	}
	s.refreshActiveGauge(ctx)
	return w, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Webhook, error) {
	w, err := s.repo.GetWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNotFound
	}
	return w, nil
}

func (s *Service) List(ctx context.Context, projectID uuid.UUID) ([]*Webhook, error) {
	return s.repo.ListWebhooks(ctx, projectID)
}

// UpdateParams carries partial updates; nil fields are left untouched.
type UpdateParams struct {
	URL      *string
	Events   []string
	IsActive *bool
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Webhook, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.URL != nil {
		w.URL = *p.URL
	}
	if p.Events != nil {
		w.Events = p.Events
	}
	if p.IsActive != nil {
		w.IsActive = *p.IsActive
	}

	if err := (CreateParams{URL: w.URL, Events: w.Events}).validate(); err != nil {
		return nil, err
	}

	w.UpdatedAt = time.Now().Unix()
	if err := s.repo.UpdateWebhook(ctx, w); err != nil {
		return nil, err
	}
	s.refreshActiveGauge(ctx)
	return w, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteWebhook(ctx, id); err != nil {
		return err
	}
	s.refreshActiveGauge(ctx)
	return nil
}

func (s *Service) Logs(ctx context.Context, id uuid.UUID, limit int) ([]*Log, error) {
	w, err := s.repo.GetWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNotFound
	}
	return s.repo.ListLogs(ctx, id, limit)
}

func (s *Service) refreshActiveGauge(ctx context.Context) {
	count, err := s.repo.CountActive(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to count active webhooks", "error", err)
		return
	}
	metrics.SetActiveWebhooks(float64(count))
}
