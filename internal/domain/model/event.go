// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// Well-known task lifecycle event types. The set is open; any non-empty
// string is a valid event type.
const (
	TaskCreated   = "task.created"
	TaskCompleted = "task.completed"
	TaskUpdated   = "task.updated"
	TaskDeleted   = "task.deleted"
)

// DateLayout is the calendar date format used for snapshot keys and timeline buckets.
const DateLayout = "2006-01-02"

// NewEvent is the caller-supplied part of an event, before the store assigns
// identity and timestamp.
type NewEvent struct {
	EventType string
	TaskID    json.RawMessage // opaque; nil when absent
	Metadata  map[string]any
}

// Event is an immutable fact about a task's lifecycle.
type Event struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	TaskID    json.RawMessage `json:"taskId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  map[string]any  `json:"metadata"`
}

// Snapshot is the derived metric record. Date and UpdatedAt are only set on
// records held by a snapshot store.
type Snapshot struct {
	Date            string    `json:"date,omitempty"`
	TotalTasks      int64     `json:"totalTasks"`
	CompletedTasks  int64     `json:"completedTasks"`
	IncompleteTasks int64     `json:"incompleteTasks"`
	DeletedTasks    int64     `json:"deletedTasks"`
	CompletionRate  float64   `json:"completionRate"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
}

// TimelinePoint is one day of the created/completed series.
type TimelinePoint struct {
	Date      string `json:"date"`
	Created   int64  `json:"created"`
	Completed int64  `json:"completed"`
}

// Emission is what an upstream producer hands to the emitter queue.
type Emission struct {
	EventType string         `json:"eventType"`
	TaskID    any            `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
