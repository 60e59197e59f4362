// Package aggregate derives task metrics from the full event history.
//
// The aggregator keeps no state between calls: every result is recomputed
// from event store counts, so a snapshot is always a pure function of the log.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/metrics"
)

// Counter is the read side of an event store the aggregator needs.
type Counter interface {
	CountByType(ctx context.Context, eventType string) (int64, error)
}

// Aggregator computes a snapshot-shaped metric record.
type Aggregator interface {
	// Aggregate recomputes metrics from the event log. The returned snapshot
	// carries no Date or UpdatedAt.
	Aggregate(ctx context.Context) (model.Snapshot, error)
}

// Option applies a configuration option to the StoreAggregator.
type Option func(*StoreAggregator)

// WithEventTypes overrides the event types counted as created, completed and
// deleted. Empty values keep the defaults.
func WithEventTypes(created, completed, deleted string) Option {
	return func(a *StoreAggregator) {
		if created != "" {
			a.createdType = created
		}
		if completed != "" {
			a.completedType = completed
		}
		if deleted != "" {
			a.deletedType = deleted
		}
	}
}

// StoreAggregator implements Aggregator over a Counter.
type StoreAggregator struct {
	counter       Counter
	createdType   string
	completedType string
	deletedType   string
}

// NewStoreAggregator creates an aggregator reading from counter.
func NewStoreAggregator(counter Counter, opts ...Option) *StoreAggregator {
	a := &StoreAggregator{
		counter:       counter,
		createdType:   model.TaskCreated,
		completedType: model.TaskCompleted,
		deletedType:   model.TaskDeleted,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate issues three independent count queries and derives the metrics.
// Counts are not read under a common snapshot; under concurrent ingestion the
// result may be transiently inconsistent and is corrected on the next call.
func (a *StoreAggregator) Aggregate(ctx context.Context) (model.Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregationLatency(float64(time.Since(start).Milliseconds()))
	}()

	created, err := a.counter.CountByType(ctx, a.createdType)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("count %s: %w", a.createdType, err)
	}
	completed, err := a.counter.CountByType(ctx, a.completedType)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("count %s: %w", a.completedType, err)
	}
	deleted, err := a.counter.CountByType(ctx, a.deletedType)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("count %s: %w", a.deletedType, err)
	}
	return Derive(created, completed, deleted), nil
}

// Derive applies the derivation rule to full-history counts.
func Derive(created, completed, deleted int64) model.Snapshot {
	active := created - deleted
	incomplete := active - completed
	if incomplete < 0 {
		incomplete = 0
	}
	var rate float64
	if active > 0 {
		rate = round2(float64(completed) / float64(active) * 100)
	}
	return model.Snapshot{
		TotalTasks:      active,
		CompletedTasks:  completed,
		IncompleteTasks: incomplete,
		DeletedTasks:    deleted,
		CompletionRate:  rate,
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
