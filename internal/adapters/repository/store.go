// Package repository defines event and snapshot store interfaces and their
// in-memory and SQLite implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/taskpulse/internal/domain/model"
)

// EventStore is append-only persistence of events.
type EventStore interface {
	// Append assigns id and timestamp and persists the event. Timestamps are
	// millisecond precision and never go backwards within one store.
	Append(ctx context.Context, e model.NewEvent) (model.Event, error)

	// CountByType returns the number of events of eventType.
	CountByType(ctx context.Context, eventType string) (int64, error)

	// CountsByType groups all events by type.
	CountsByType(ctx context.Context) (map[string]int64, error)

	// QueryRange returns events with timestamp >= start whose type is in
	// types (all types when empty), ascending by timestamp.
	QueryRange(ctx context.Context, start time.Time, types []string) ([]model.Event, error)

	// ListRecent returns at most limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.Event, error)

	// PurgeAll removes every event and returns how many were removed.
	PurgeAll(ctx context.Context) (int64, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// SnapshotStore keeps at most one metric snapshot per calendar date.
type SnapshotStore interface {
	// Upsert creates or replaces the snapshot for date. A zero UpdatedAt is
	// set from the store clock.
	Upsert(ctx context.Context, date string, s model.Snapshot) error

	// Get returns the snapshot for date; found is false when none exists.
	Get(ctx context.Context, date string) (s model.Snapshot, found bool, err error)

	// List returns snapshots with from <= date <= to, ascending. Empty bounds
	// are open.
	List(ctx context.Context, from, to string) ([]model.Snapshot, error)

	Close() error
}
