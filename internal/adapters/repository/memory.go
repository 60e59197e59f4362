package repository

import (
	"bytes"
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/metrics"
)

// MemoryStore is an in-process EventStore and SnapshotStore.
//
// Events are kept in a slice ordered by timestamp (append order, since
// timestamps never go backwards), so range queries binary-search the start
// and count queries read a per-type counter. The mutex only makes each single
// operation atomic; callers get no multi-operation consistency.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []model.Event
	byType    map[string]int64
	snapshots map[string]model.Snapshot
	last      time.Time
	closed    bool

	now func() time.Time
}

var (
	_ EventStore    = (*MemoryStore)(nil)
	_ SnapshotStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		byType:    make(map[string]int64),
		snapshots: make(map[string]model.Snapshot),
		now:       o.now,
	}
}

// Append implements EventStore.
func (s *MemoryStore) Append(ctx context.Context, e model.NewEvent) (model.Event, error) {
	start := time.Now()
	defer observe("append", start)

	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Event{}, ErrClosed
	}

	ts := s.now().UTC().Truncate(time.Millisecond)
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts

	stored := model.Event{
		ID:        uuid.NewString(),
		EventType: e.EventType,
		TaskID:    bytes.Clone(e.TaskID),
		Timestamp: ts,
		Metadata:  cloneMetadata(e.Metadata),
	}
	s.events = append(s.events, stored)
	s.byType[stored.EventType]++
	metrics.UpdateEventsStored(len(s.events))

	return cloneEvent(stored), nil
}

// CountByType implements EventStore.
func (s *MemoryStore) CountByType(_ context.Context, eventType string) (int64, error) {
	start := time.Now()
	defer observe("count_by_type", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.byType[eventType], nil
}

// CountsByType implements EventStore.
func (s *MemoryStore) CountsByType(_ context.Context) (map[string]int64, error) {
	start := time.Now()
	defer observe("counts_by_type", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make(map[string]int64, len(s.byType))
	for t, n := range s.byType {
		if n > 0 {
			out[t] = n
		}
	}
	return out, nil
}

// QueryRange implements EventStore.
func (s *MemoryStore) QueryRange(_ context.Context, from time.Time, types []string) ([]model.Event, error) {
	start := time.Now()
	defer observe("query_range", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	want := make(map[string]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}

	i := sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].Timestamp.Before(from)
	})
	out := make([]model.Event, 0, len(s.events)-i)
	for _, e := range s.events[i:] {
		if len(want) > 0 {
			if _, ok := want[e.EventType]; !ok {
				continue
			}
		}
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

// ListRecent implements EventStore.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]model.Event, error) {
	start := time.Now()
	defer observe("list_recent", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return []model.Event{}, nil
	}
	n := min(limit, len(s.events))
	out := make([]model.Event, 0, n)
	for i := len(s.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cloneEvent(s.events[i]))
	}
	return out, nil
}

// PurgeAll implements EventStore. Snapshots are left untouched.
func (s *MemoryStore) PurgeAll(_ context.Context) (int64, error) {
	start := time.Now()
	defer observe("purge_all", start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := int64(len(s.events))
	s.events = nil
	s.byType = make(map[string]int64)
	metrics.UpdateEventsStored(0)
	return n, nil
}

// Ping implements EventStore.
func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Upsert implements SnapshotStore.
func (s *MemoryStore) Upsert(_ context.Context, date string, snap model.Snapshot) error {
	start := time.Now()
	defer observe("snapshot_upsert", start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	snap.Date = date
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now().UTC()
	}
	s.snapshots[date] = snap
	return nil
}

// Get implements SnapshotStore.
func (s *MemoryStore) Get(_ context.Context, date string) (model.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Snapshot{}, false, ErrClosed
	}
	snap, ok := s.snapshots[date]
	return snap, ok, nil
}

// List implements SnapshotStore.
func (s *MemoryStore) List(_ context.Context, from, to string) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Snapshot, 0, len(s.snapshots))
	for date, snap := range s.snapshots {
		if from != "" && date < from {
			continue
		}
		if to != "" && date > to {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close marks the store closed; later operations fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}

func cloneEvent(e model.Event) model.Event {
	e.TaskID = bytes.Clone(e.TaskID)
	e.Metadata = cloneMetadata(e.Metadata)
	return e
}
