// Package queue defines the bounded buffer between event producers and the
// workers that deliver them.
package queue

import (
	"context"
	"sync"

	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Item is the payload type flowing through the queue.
type Item = model.Emission

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an item without blocking. It fails with ErrFull or
	// ErrClosed, or the context error.
	Enqueue(ctx context.Context, it Item) error

	// Dequeue returns the channel workers receive from. It is closed, after
	// the remaining items, once the queue is closed.
	Dequeue() <-chan Item

	// Len returns the current number of queued items.
	Len() int

	// Close stops intake. Items already queued stay receivable.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateEmitQueueCapacity(q.capacity)
	q.observe()
	return q
}

// Enqueue adds an item to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, it Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The read lock keeps Close from closing the channel mid-send.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.items <- it:
		metrics.RecordEmitEnqueued(it.EventType)
		q.observe()
		return nil
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan Item {
	return q.items
}

// Len returns the current number of queued items.
func (q *InMemoryQueue) Len() int {
	q.observe()
	return len(q.items)
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops intake. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.items)
	metrics.UpdateEmitQueueSize(size)
	metrics.UpdateEmitQueueUtilization(float64(size) / float64(q.capacity))
}
