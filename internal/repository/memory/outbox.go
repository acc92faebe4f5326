package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
)

type outboxRepository struct{ s *Store }

func (r *outboxRepository) FetchPending(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if len(out) == limit {
			break
		}
		due := e.Status == model.OutboxStatusPending ||
			(e.Status == model.OutboxStatusRetry && e.RetryAt != nil && !e.RetryAt.After(now))
		if due {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *outboxRepository) update(id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outbox {
		if e.ID == id {
			fn(e)
			e.UpdatedAt = r.s.now()
			return nil
		}
	}
	return repository.ErrOutboxEventNotFound
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &at
		e.ErrorMessage = nil
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errMsg
		e.RetryAt = &retryAt
		e.RetryCount++
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryCount++
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	var deleted int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return deleted, nil
}
