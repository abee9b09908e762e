package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/models"
	"github.com/openlearnhq/lms-api/pkg/jobs"
)

type outboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id string) error
}

// DispatcherConfig tunes the outbox polling loop.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
}

// OutboxDispatcher drains pending outbox events through a worker queue.
// Delivery is a structured log line per event; external brokers can hook
// in by replacing the queue handler.
type OutboxDispatcher struct {
	outbox outboxRepository
	queue  *jobs.Queue
	logger *zap.Logger
	config DispatcherConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxDispatcher constructs a dispatcher.
func NewOutboxDispatcher(outbox outboxRepository, logger *zap.Logger, config DispatcherConfig) *OutboxDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}

	d := &OutboxDispatcher{outbox: outbox, logger: logger, config: config}
	d.queue = jobs.NewQueue("outbox", d.deliver, jobs.QueueConfig{
		Workers:    config.Workers,
		BufferSize: config.BatchSize * 2,
		Logger:     logger,
	})
	return d
}

// Start launches the queue workers and the polling loop.
func (d *OutboxDispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.queue.Start(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.poll(ctx)
			}
		}
	}()
}

// Stop halts polling and waits for in-flight deliveries.
func (d *OutboxDispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.queue.Stop()
}

func (d *OutboxDispatcher) poll(ctx context.Context) {
	events, err := d.outbox.FetchPending(ctx, d.config.BatchSize)
	if err != nil {
		d.logger.Warn("outbox poll failed", zap.Error(err))
		return
	}
	for _, event := range events {
		job := jobs.Job{ID: event.ID, Type: event.Topic, Payload: event}
		if err := d.queue.Enqueue(job); err != nil {
			d.logger.Warn("outbox enqueue failed", zap.String("event_id", event.ID), zap.Error(err))
			return
		}
	}
}

func (d *OutboxDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.OutboxEvent)
	if !ok {
		d.logger.Error("unexpected outbox job payload", zap.String("job_id", job.ID))
		return nil
	}

	d.logger.Info("event dispatched",
		zap.String("event_id", event.ID),
		zap.String("topic", event.Topic),
		zap.ByteString("payload", event.Payload))

	return d.outbox.MarkDispatched(ctx, event.ID)
}
