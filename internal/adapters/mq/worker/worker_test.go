package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/taskpulse/internal/adapters/mq/queue"
	worker "github.com/okian/taskpulse/internal/adapters/mq/worker"
	model "github.com/okian/taskpulse/internal/domain/model"
	logging "github.com/okian/taskpulse/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockSender records deliveries and fails the event types listed in fail.
type mockSender struct {
	mu    sync.Mutex
	sent  []queue.Item
	fail  map[string]error
	delay time.Duration
}

func newMockSender() *mockSender {
	return &mockSender{fail: make(map[string]error)}
}

func (m *mockSender) Send(ctx context.Context, it queue.Item) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[it.EventType]; ok {
		return err
	}
	m.sent = append(m.sent, it)
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		sender := newMockSender()
		w := worker.NewInMemoryWorker(q, sender, worker.WithName("test-worker"))
		ctx := context.Background()

		convey.Convey("When items are queued and the queue is closed", func() {
			convey.So(q.Enqueue(ctx, model.Emission{EventType: model.TaskCreated, TaskID: 1}), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, model.Emission{EventType: model.TaskCompleted, TaskID: 1}), convey.ShouldBeNil)
			_ = q.Close()
			w.Run(ctx)

			convey.Convey("Then every item is sent in order and Run returns", func() {
				convey.So(sender.count(), convey.ShouldEqual, 2)
				convey.So(sender.sent[0].EventType, convey.ShouldEqual, model.TaskCreated)
				convey.So(sender.sent[1].EventType, convey.ShouldEqual, model.TaskCompleted)

				select {
				case <-w.Done():
				default:
					convey.So("worker not done", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When a send fails", func() {
			sender.fail[model.TaskDeleted] = errors.New("connection refused")
			convey.So(q.Enqueue(ctx, model.Emission{EventType: model.TaskDeleted}), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, model.Emission{EventType: model.TaskCreated}), convey.ShouldBeNil)
			_ = q.Close()
			w.Run(ctx)

			convey.Convey("Then the item is dropped and the worker carries on", func() {
				convey.So(sender.count(), convey.ShouldEqual, 1)
				convey.So(sender.sent[0].EventType, convey.ShouldEqual, model.TaskCreated)
			})
		})

		convey.Convey("When the context is canceled", func() {
			cctx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				w.Run(cctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then Run returns without the queue closing", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestInMemoryWorker_SendTimeout(t *testing.T) {
	convey.Convey("Given a slow sender and a short send timeout", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		sender := newMockSender()
		sender.delay = time.Second
		w := worker.NewInMemoryWorker(q, sender, worker.WithSendTimeout(10*time.Millisecond))

		ctx := context.Background()
		convey.So(q.Enqueue(ctx, model.Emission{EventType: model.TaskCreated}), convey.ShouldBeNil)
		_ = q.Close()

		start := time.Now()
		w.Run(ctx)

		convey.So(time.Since(start), convey.ShouldBeLessThan, 500*time.Millisecond)
		convey.So(sender.count(), convey.ShouldEqual, 0)
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		_ = logging.Init()
		ctx := context.Background()

		convey.Convey("Shutdown drains everything queued", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(100))
			sender := newMockSender()
			pool := worker.NewPool(3, q, sender)
			convey.So(pool.Size(), convey.ShouldEqual, 3)
			pool.Start(ctx)

			for i := range 50 {
				convey.So(q.Enqueue(ctx, model.Emission{EventType: model.TaskUpdated, TaskID: i}), convey.ShouldBeNil)
			}

			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			convey.So(pool.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(sender.count(), convey.ShouldEqual, 50)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)

			convey.So(pool.Shutdown(sctx), convey.ShouldBeNil)
		})

		convey.Convey("Shutdown gives up at the deadline", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(10))
			sender := newMockSender()
			sender.delay = time.Second
			pool := worker.NewPool(1, q, sender)
			pool.Start(ctx)

			for range 5 {
				convey.So(q.Enqueue(ctx, model.Emission{EventType: model.TaskCreated}), convey.ShouldBeNil)
			}

			sctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(sctx)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})

		convey.Convey("Shutdown before Start only closes the queue", func() {
			q := queue.NewInMemoryQueue()
			pool := worker.NewPool(0, q, newMockSender())
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})
}
