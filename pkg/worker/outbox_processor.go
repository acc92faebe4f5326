package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/pkg/logger"
	"github.com/jwalitptl/ward-api/pkg/messaging"
	"github.com/jwalitptl/ward-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	// RetryDelay is the first backoff; it doubles on every failed attempt.
	RetryDelay time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	}
	return nil
}

// OutboxProcessor publishes outbox events to the broker, one channel per
// event type. Only one processor should drain a given outbox.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch publishes one batch of due events and returns how many were
// published successfully.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.FetchPending(ctx, p.config.BatchSize, p.now())
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		published++
	}

	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.broker.Publish(ctx, event.EventType, event.Payload); err != nil {
		return p.handleFailure(ctx, event, err)
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID, p.now()); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) handleFailure(ctx context.Context, event *model.OutboxEvent, cause error) error {
	attempt := event.RetryCount + 1
	if attempt >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if err := p.repo.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
			p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		}
		return cause
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(backoff(p.config.RetryDelay, event.RetryCount))
	if err := p.repo.MarkRetry(ctx, event.ID, cause.Error(), retryAt); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
	return cause
}

// backoff doubles delay per previous attempt, capped at 64x.
func backoff(delay time.Duration, attempts int) time.Duration {
	if attempts > 6 {
		attempts = 6
	}
	return delay << attempts
}
