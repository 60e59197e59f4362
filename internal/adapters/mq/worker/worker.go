// Package worker delivers queued emissions to the ingestion endpoint.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/taskpulse/internal/adapters/mq/queue"
	"github.com/okian/taskpulse/pkg/logger"
	"github.com/okian/taskpulse/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultSendTimeout = 5 * time.Second
	defaultMaxWorkers  = 4
)

// Sender delivers one emission. Implementations must honour ctx.
type Sender interface {
	Send(ctx context.Context, it queue.Item) error
}

// Queue defines how workers receive items.
type Queue interface {
	Dequeue() <-chan queue.Item
}

// Worker processes items until its queue is drained.
type Worker interface {
	// Run starts the worker loop until the queue channel closes or ctx is canceled.
	Run(ctx context.Context)
}

// InMemoryWorker sends each item once. Failures are logged and the item is
// dropped; there is no retry.
type InMemoryWorker struct {
	queue       Queue
	sender      Sender
	name        string
	sendTimeout time.Duration

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sender Sender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		sender:      sender,
		name:        "worker",
		sendTimeout: defaultSendTimeout,
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-items:
			if !ok {
				return
			}
			_ = w.process(ctx, it)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, it queue.Item) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, it); err != nil {
		metrics.RecordEmitFailed()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "send_error")
		w.logger.Error(ctx, "event delivery failed, dropping",
			logger.String("eventType", it.EventType),
			logger.Any("taskId", it.TaskID),
			logger.Error(err),
		)
		return fmt.Errorf("send %s: %w", it.EventType, err)
	}
	metrics.RecordEmitSent()
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   *queue.InMemoryQueue

	cancel context.CancelFunc
	once   sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive workerCount picks
// min(NumCPU, 4).
func NewPool(workerCount int, q *queue.InMemoryQueue, sender Sender, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = min(runtime.NumCPU(), defaultMaxWorkers)
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, sender, wopts...)
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool. The workers outlive ctx only until
// Shutdown; canceling ctx stops them at once.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it. When ctx
// ends first, in-flight deliveries are canceled and the rest are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		_ = p.queue.Close()
		if p.cancel == nil {
			return
		}
		defer metrics.UpdateWorkerActiveCount(0)

		for _, w := range p.workers {
			select {
			case <-w.done:
			case <-ctx.Done():
				dropped := p.queue.Len()
				p.logger.Warn(ctx, "worker pool shutdown timed out",
					logger.Int("dropped", dropped),
				)
				if dropped > 0 {
					metrics.RecordEmitDropped("shutdown")
				}
				p.cancel()
				err = fmt.Errorf("shutdown timed out: %w", ctx.Err())
				return
			}
		}
		p.cancel()
	})
	return err
}
