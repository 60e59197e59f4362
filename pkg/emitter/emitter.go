// Package emitter is the client side of the analytics service. A task-owning
// service calls it on every mutation; events are queued and delivered in the
// background so the caller never blocks or fails because analytics is down.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/okian/taskpulse/internal/adapters/mq/queue"
	"github.com/okian/taskpulse/internal/adapters/mq/worker"
	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/logger"
	"github.com/okian/taskpulse/pkg/metrics"
)

// Task is the upstream view of a task needed to build events.
type Task struct {
	ID        any
	Title     string
	Completed bool
}

// Emitter queues task events for fire-and-forget delivery.
type Emitter struct {
	queue  *queue.InMemoryQueue
	pool   *worker.Pool
	sender worker.Sender
	client *http.Client
	logger logger.Logger
}

// New validates cfg and starts the delivery workers.
func New(cfg Config, opts ...Option) (*Emitter, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid emitter config: %w", err)
	}

	e := &Emitter{
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Get().Named("emitter"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sender == nil {
		e.sender = NewHTTPSender(e.client, cfg.URL)
	}

	e.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	e.pool = worker.NewPool(cfg.Workers, e.queue, e.sender,
		worker.WithSendTimeout(cfg.Timeout),
		worker.WithLogger(e.logger.Named("worker")),
	)
	// Workers must outlive any single caller's request context.
	e.pool.Start(context.Background())

	e.logger.Info(context.Background(), "emitter started",
		logger.String("url", cfg.URL),
		logger.Int("queueSize", cfg.QueueSize),
		logger.Int("workers", cfg.Workers),
	)
	return e, nil
}

// TaskCreated emits task.created.
func (e *Emitter) TaskCreated(ctx context.Context, t Task) bool {
	return e.Emit(ctx, model.TaskCreated, t.ID, map[string]any{"title": t.Title})
}

// TaskUpdated emits task.completed when the task became completed, then
// task.updated. A nil previous counts as not completed.
func (e *Emitter) TaskUpdated(ctx context.Context, previous *Task, current Task) bool {
	ok := true
	if current.Completed && (previous == nil || !previous.Completed) {
		ok = e.Emit(ctx, model.TaskCompleted, current.ID, map[string]any{"title": current.Title})
	}
	return e.Emit(ctx, model.TaskUpdated, current.ID, map[string]any{
		"title":     current.Title,
		"completed": current.Completed,
	}) && ok
}

// TaskDeleted emits task.deleted.
func (e *Emitter) TaskDeleted(ctx context.Context, t Task) bool {
	return e.Emit(ctx, model.TaskDeleted, t.ID, map[string]any{"title": t.Title})
}

// Emit queues an arbitrary event without blocking. It reports whether the
// event was queued; a dropped event is logged and counted, never returned as
// an error.
func (e *Emitter) Emit(ctx context.Context, eventType string, taskID any, metadata map[string]any) bool {
	err := e.queue.Enqueue(ctx, model.Emission{
		EventType: eventType,
		TaskID:    taskID,
		Metadata:  metadata,
	})
	if err == nil {
		return true
	}

	reason := "context"
	switch {
	case errors.Is(err, queue.ErrFull):
		reason = "queue_full"
	case errors.Is(err, queue.ErrClosed):
		reason = "closed"
	}
	metrics.RecordEmitDropped(reason)
	e.logger.Warn(ctx, "analytics event dropped",
		logger.String("eventType", eventType),
		logger.String("reason", reason),
		logger.Error(err),
	)
	return false
}

// Pending returns the number of queued, undelivered events.
func (e *Emitter) Pending() int { return e.queue.Len() }

// Close stops intake and waits for queued events to be delivered, up to the
// ctx deadline.
func (e *Emitter) Close(ctx context.Context) error {
	if err := e.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("emitter close: %w", err)
	}
	e.logger.Info(ctx, "emitter stopped")
	return nil
}
