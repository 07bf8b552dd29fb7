package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zenithhq/zenith/internal/infra/db"
)

type Repo struct {
	db *db.DB
}

func NewRepo(database *db.DB) *Repo {
	return &Repo{db: database}
}

const webhookColumns = `id, project_id, url, secret, events, is_active,
		failure_count, last_triggered_at, created_at, updated_at`

func (r *Repo) CreateWebhook(ctx context.Context, w *Webhook) error {
	events, err := json.Marshal(w.Events)
	if err != nil {
		return fmt.Errorf("webhooks: failed to encode events: %w", err)
	}

	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, table, webhookColumns))

	_, err = r.db.ExecContext(
		ctx,
		query,
		w.ID,
		w.ProjectID,
		w.URL,
		w.Secret,
		string(events),
		w.IsActive,
		w.FailureCount,
		w.LastTriggeredAt,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("webhooks: failed to insert subscription: %w", err)
	}
	return nil
}

func (r *Repo) GetWebhook(ctx context.Context, id uuid.UUID) (*Webhook, error) {
	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1
	`, webhookColumns, table))

	w, err := scanWebhook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("webhooks: failed to load subscription: %w", err)
	}
	return w, nil
}

func (r *Repo) ListWebhooks(ctx context.Context, projectID uuid.UUID) ([]*Webhook, error) {
	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s FROM %s WHERE project_id = $1 ORDER BY created_at
	`, webhookColumns, table))

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("webhooks: failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var result []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("webhooks: failed to scan row: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("webhooks: rows error: %w", err)
	}
	return result, nil
}

// ListActiveWebhooks returns active subscriptions for a project. Event
// filtering happens in the dispatcher; the event set is an opaque JSON
// document to the store.
func (r *Repo) ListActiveWebhooks(ctx context.Context, projectID uuid.UUID) ([]*Webhook, error) {
	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s FROM %s WHERE project_id = $1 AND is_active = $2 ORDER BY created_at
	`, webhookColumns, table))

	rows, err := r.db.QueryContext(ctx, query, projectID, true)
	if err != nil {
		return nil, fmt.Errorf("webhooks: failed to query active subscriptions: %w", err)
	}
	defer rows.Close()

	var result []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("webhooks: failed to scan row: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("webhooks: rows error: %w", err)
	}
	return result, nil
}

func (r *Repo) UpdateWebhook(ctx context.Context, w *Webhook) error {
	events, err := json.Marshal(w.Events)
	if err != nil {
		return fmt.Errorf("webhooks: failed to encode events: %w", err)
	}

	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s
		SET url = $1, events = $2, is_active = $3, updated_at = $4
		WHERE id = $5
	`, table))

	res, err := r.db.ExecContext(ctx, query, w.URL, string(events), w.IsActive, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("webhooks: failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table))

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("webhooks: failed to delete subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSuccess resets the consecutive-failure counter and records the delivery
// time.
func (r *Repo) MarkSuccess(ctx context.Context, id uuid.UUID, triggeredAt int64) error {
	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s
		SET failure_count = 0, last_triggered_at = $1, updated_at = $1
		WHERE id = $2
	`, table))

	if _, err := r.db.ExecContext(ctx, query, triggeredAt, id); err != nil {
		return fmt.Errorf("webhooks: failed to record delivery success: %w", err)
	}
	return nil
}

// MarkFailure increments the consecutive-failure counter and deactivates the
// subscription once the counter reaches threshold. Returns the new counter
// value and whether this call deactivated the subscription.
func (r *Repo) MarkFailure(ctx context.Context, id uuid.UUID, threshold int, now int64) (int, bool, error) {
	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s
		SET failure_count = failure_count + 1,
			is_active = (failure_count + 1 < $1) AND is_active,
			updated_at = $2
		WHERE id = $3
		RETURNING failure_count, is_active
	`, table))

	var count int
	var active bool
	err := r.db.QueryRowContext(ctx, query, threshold, now, id).Scan(&count, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrNotFound
		}
		return 0, false, fmt.Errorf("webhooks: failed to record delivery failure: %w", err)
	}
	return count, count == threshold && !active, nil
}

func (r *Repo) CountActive(ctx context.Context) (int, error) {
	table := r.db.TableName("webhooks")
	query := r.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE is_active = $1`, table))

	var count int
	if err := r.db.QueryRowContext(ctx, query, true).Scan(&count); err != nil {
		return 0, fmt.Errorf("webhooks: failed to count active subscriptions: %w", err)
	}
	return count, nil
}

func (r *Repo) InsertLog(ctx context.Context, l *Log) error {
	table := r.db.TableName("webhook_logs")
	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (id, webhook_id, event, payload, status_code,
			response_body, duration_ms, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, table))

	_, err := r.db.ExecContext(
		ctx,
		query,
		l.ID,
		l.WebhookID,
		l.Event,
		l.Payload,
		l.StatusCode,
		l.ResponseBody,
		l.DurationMs,
		l.Success,
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("webhooks: failed to insert delivery log: %w", err)
	}
	return nil
}

func (r *Repo) ListLogs(ctx context.Context, webhookID uuid.UUID, limit int) ([]*Log, error) {
	table := r.db.TableName("webhook_logs")
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT id, webhook_id, event, payload, status_code,
			response_body, duration_ms, success, created_at
		FROM %s
		WHERE webhook_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, table))

	rows, err := r.db.QueryContext(ctx, query, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("webhooks: failed to query delivery logs: %w", err)
	}
	defer rows.Close()

	var result []*Log
	for rows.Next() {
		var l Log
		var payload []byte
		err := rows.Scan(
			&l.ID, &l.WebhookID, &l.Event, &payload, &l.StatusCode,
			&l.ResponseBody, &l.DurationMs, &l.Success, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("webhooks: failed to scan log row: %w", err)
		}
		l.Payload = string(payload)
		result = append(result, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("webhooks: rows error: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebhook(row rowScanner) (*Webhook, error) {
	var w Webhook
	var events []byte
	err := row.Scan(
		&w.ID, &w.ProjectID, &w.URL, &w.Secret, &events, &w.IsActive,
		&w.FailureCount, &w.LastTriggeredAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(events, &w.Events); err != nil {
		return nil, fmt.Errorf("invalid events document: %w", err)
	}
	return &w, nil
}
