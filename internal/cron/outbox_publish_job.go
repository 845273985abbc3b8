package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/logger"
)

const (
	defaultOutboxBatchSize   = 50
	defaultOutboxMaxAttempts = 10
	publishTimeout           = 15 * time.Second
)

// OutboxPublishJobParams configure the outbox drain.
type OutboxPublishJobParams struct {
	Logger      *logger.Logger
	Repository  outboxPublishRepo
	Publisher   eventPublisher
	BatchSize   int
	MaxAttempts int
}

type outboxPublishRepo interface {
	FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type eventPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// NewOutboxPublishJob builds the job that drains pending outbox events to
// the domain events topic.
func NewOutboxPublishJob(params OutboxPublishJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOutboxBatchSize
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultOutboxMaxAttempts
	}
	return &outboxPublishJob{
		logg:        params.Logger,
		repo:        params.Repository,
		publisher:   params.Publisher,
		batchSize:   batch,
		maxAttempts: maxAttempts,
	}, nil
}

type outboxPublishJob struct {
	logg        *logger.Logger
	repo        outboxPublishRepo
	publisher   eventPublisher
	batchSize   int
	maxAttempts int
}

func (j *outboxPublishJob) Name() string { return "outbox-publish" }

func (j *outboxPublishJob) Run(ctx context.Context) error {
	events, err := j.repo.FetchUnpublished(j.batchSize, j.maxAttempts)
	if err != nil {
		return fmt.Errorf("fetch unpublished: %w", err)
	}

	var errs error
	for _, event := range events {
		fields := map[string]any{
			"outbox_id":      event.ID.String(),
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
			"attempt_count":  event.AttemptCount,
		}

		if err := j.publish(ctx, event); err != nil {
			logCtx := j.logg.WithFields(ctx, fields)
			j.logg.Error(logCtx, "outbox publish failed", err)
			if markErr := j.repo.MarkFailed(event.ID, err); markErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark failed %s: %w", event.ID, markErr))
			}
			continue
		}

		if err := j.repo.MarkPublished(event.ID); err != nil {
			// pubsub consumers must dedupe; the next cycle republishes
			errs = multierr.Append(errs, fmt.Errorf("mark published %s: %w", event.ID, err))
			continue
		}
		j.logg.Info(j.logg.WithFields(ctx, fields), "outbox event published")
	}
	return errs
}

func (j *outboxPublishJob) publish(ctx context.Context, event models.OutboxEvent) error {
	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := j.publisher.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

// NewGCPEventPublisher adapts a pubsub publisher to the job interface.
func NewGCPEventPublisher(p *gcppubsub.Publisher) eventPublisher {
	return &gcpEventPublisher{publisher: p}
}

type gcpEventPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p *gcpEventPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, msg)
}
