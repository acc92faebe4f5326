package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/pkg/logger"
)

// OutboxCleanupWorker deletes processed outbox events older than retention.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, log *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up outbox")
			}
		}
	}
}

func (w *OutboxCleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)
	deleted, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		w.logger.Info("Deleted processed outbox events", "count", deleted, "before", cutoff)
	}
	return deleted, nil
}
