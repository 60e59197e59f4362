package emitter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/okian/taskpulse/internal/adapters/http/api"
	"github.com/okian/taskpulse/internal/adapters/mq/queue"
	service "github.com/okian/taskpulse/internal/app"
	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/emitter"
	"github.com/okian/taskpulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newAnalyticsServer() (*httptest.Server, *service.Service) {
	svc := service.New()
	mux := http.NewServeMux()
	api.NewServer(svc, nil).Register(context.Background(), mux)
	return httptest.NewServer(mux), svc
}

func closeWithin(e *emitter.Emitter, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return e.Close(ctx)
}

// blockingSender holds every send until release is closed.
type blockingSender struct {
	release chan struct{}
	mu      sync.Mutex
	sent    []queue.Item
}

func (b *blockingSender) Send(ctx context.Context, it queue.Item) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	b.sent = append(b.sent, it)
	b.mu.Unlock()
	return nil
}

func TestEmitterDeliversLifecycle(t *testing.T) {
	Convey("Given an emitter pointed at a live analytics server", t, func() {
		srv, svc := newAnalyticsServer()
		defer srv.Close()

		e, err := emitter.New(emitter.DefaultConfig(srv.URL))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("A task lifecycle arrives as the expected events", func() {
			task := emitter.Task{ID: 1, Title: "ship it"}
			So(e.TaskCreated(ctx, task), ShouldBeTrue)

			done := task
			done.Completed = true
			So(e.TaskUpdated(ctx, &task, done), ShouldBeTrue)
			So(e.TaskUpdated(ctx, &done, done), ShouldBeTrue)
			So(e.TaskDeleted(ctx, done), ShouldBeTrue)

			So(closeWithin(e, 5*time.Second), ShouldBeNil)

			counts, err := svc.CountsByType(ctx)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, map[string]int64{
				model.TaskCreated:   1,
				model.TaskCompleted: 1,
				model.TaskUpdated:   2,
				model.TaskDeleted:   1,
			})

			recent, err := svc.Recent(ctx, 10)
			So(err, ShouldBeNil)
			var updated model.Event
			for _, ev := range recent {
				if ev.EventType == model.TaskUpdated {
					updated = ev
					break
				}
			}
			So(updated.Metadata["completed"], ShouldEqual, true)
			So(updated.Metadata["title"], ShouldEqual, "ship it")
			So(string(updated.TaskID), ShouldEqual, "1")
		})

		Convey("An update with unknown previous state emits completed once", func() {
			So(e.TaskUpdated(ctx, nil, emitter.Task{ID: "a", Completed: true}), ShouldBeTrue)
			So(e.TaskUpdated(ctx, nil, emitter.Task{ID: "b"}), ShouldBeTrue)
			So(closeWithin(e, 5*time.Second), ShouldBeNil)

			counts, _ := svc.CountsByType(ctx)
			So(counts[model.TaskCompleted], ShouldEqual, 1)
			So(counts[model.TaskUpdated], ShouldEqual, 2)
		})

		Convey("Emit after Close is dropped without error", func() {
			So(closeWithin(e, time.Second), ShouldBeNil)
			So(e.Emit(ctx, "custom.kind", nil, nil), ShouldBeFalse)
		})
	})
}

func TestEmitterToleratesFailures(t *testing.T) {
	Convey("Given an analytics server that always fails", t, func() {
		var hits sync.WaitGroup
		hits.Add(2)
		var once sync.Map
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if _, seen := once.LoadOrStore(body["eventType"], true); !seen {
				hits.Done()
			}
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to log event"}`))
		}))
		defer srv.Close()

		e, err := emitter.New(emitter.DefaultConfig(srv.URL))
		So(err, ShouldBeNil)

		Convey("The caller still succeeds and nothing is retried", func() {
			ctx := context.Background()
			So(e.TaskCreated(ctx, emitter.Task{ID: 9}), ShouldBeTrue)
			So(e.TaskDeleted(ctx, emitter.Task{ID: 9}), ShouldBeTrue)
			hits.Wait()
			So(closeWithin(e, 5*time.Second), ShouldBeNil)
			So(e.Pending(), ShouldEqual, 0)
		})
	})

	Convey("Given an unreachable analytics server", t, func() {
		e, err := emitter.New(emitter.Config{
			URL:       "http://127.0.0.1:1",
			QueueSize: 4,
			Workers:   1,
			Timeout:   200 * time.Millisecond,
		})
		So(err, ShouldBeNil)

		So(e.TaskCreated(context.Background(), emitter.Task{ID: 1}), ShouldBeTrue)
		So(closeWithin(e, 5*time.Second), ShouldBeNil)
	})
}

func TestEmitterBackpressure(t *testing.T) {
	Convey("Given a full queue behind a stalled sender", t, func() {
		sender := &blockingSender{release: make(chan struct{})}
		e, err := emitter.New(emitter.Config{
			URL:       "http://analytics.invalid",
			QueueSize: 2,
			Workers:   1,
			Timeout:   5 * time.Second,
		}, emitter.WithSender(sender))
		So(err, ShouldBeNil)
		ctx := context.Background()

		// One item is taken by the worker, two fill the queue.
		So(e.Emit(ctx, model.TaskCreated, 1, nil), ShouldBeTrue)
		So(waitFor(func() bool { return e.Pending() == 0 }), ShouldBeTrue)
		So(e.Emit(ctx, model.TaskCreated, 2, nil), ShouldBeTrue)
		So(e.Emit(ctx, model.TaskCreated, 3, nil), ShouldBeTrue)

		Convey("Further emits are dropped immediately", func() {
			start := time.Now()
			So(e.Emit(ctx, model.TaskCreated, 4, nil), ShouldBeFalse)
			So(time.Since(start), ShouldBeLessThan, 100*time.Millisecond)

			close(sender.release)
			So(closeWithin(e, 5*time.Second), ShouldBeNil)
			So(sender.sent, ShouldHaveLength, 3)
		})
	})
}

func TestEmitterConfigValidation(t *testing.T) {
	Convey("Invalid configs are rejected", t, func() {
		_, err := emitter.New(emitter.Config{})
		So(err, ShouldNotBeNil)

		bad := emitter.DefaultConfig("not a url")
		_, err = emitter.New(bad)
		So(err, ShouldNotBeNil)

		bad = emitter.DefaultConfig("http://localhost:8080")
		bad.Workers = 0
		_, err = emitter.New(bad)
		So(err, ShouldNotBeNil)
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
