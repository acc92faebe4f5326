package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func insertEvent(ctx context.Context, exec sqlx.ExecerContext, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, aggregate_id, payload, status, retry_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.UpdatedAt = event.CreatedAt

	_, err := exec.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		[]byte(event.Payload),
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) FetchPending(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, aggregate_id, payload, status, error_message,
			retry_count, retry_at, created_at, updated_at, processed_at
		FROM outbox_events
		WHERE status = $1 OR (status = $2 AND retry_at <= $3)
		ORDER BY created_at ASC
		LIMIT $4
	`
	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, query,
		model.OutboxStatusPending,
		model.OutboxStatusRetry,
		now,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = $2, error_message = NULL, updated_at = $2
		WHERE id = $3
	`
	return r.exec(ctx, "mark event processed", query, model.OutboxStatusProcessed, at, id)
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = $2, retry_at = $3,
			retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $4
	`
	return r.exec(ctx, "schedule event retry", query, model.OutboxStatusRetry, errMsg, retryAt, id)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $3
	`
	return r.exec(ctx, "mark event failed", query, model.OutboxStatusFailed, errMsg, id)
}

func (r *outboxRepository) exec(ctx context.Context, action, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrOutboxEventNotFound
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
