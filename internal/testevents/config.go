package testevents

import (
	"errors"
	"time"
)

// ErrVerification is returned when the service's aggregates disagree with
// the locally computed expectation.
var ErrVerification = errors.New("verification failed")

// Config holds configuration for the event test
type Config struct {
	BaseURL       string        // Base URL of the service
	NumTasks      int           // Number of task lifecycles to generate
	Workers       int           // Emitter delivery workers
	QueueSize     int           // Emitter queue capacity
	Timeout       time.Duration // HTTP request timeout
	CompleteRatio float64       // Share of tasks that get completed
	DeleteRatio   float64       // Share of tasks that get deleted
	Purge         bool          // Purge events before the run
	Settle        time.Duration // Wait after draining before verifying
	OutputFile    string        // Output file for generated lifecycles
	LogFile       string        // Log file for test output
	Verbose       bool          // Enable verbose logging
}

// Lifecycle is the synthetic history of one task.
type Lifecycle struct {
	TaskID    string `json:"taskId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Deleted   bool   `json:"deleted"`
}

// Counts are per event type totals.
type Counts map[string]int64

// Summary mirrors GET /analytics/summary.
type Summary struct {
	TotalTasks      int64     `json:"totalTasks"`
	CompletedTasks  int64     `json:"completedTasks"`
	IncompleteTasks int64     `json:"incompleteTasks"`
	DeletedTasks    int64     `json:"deletedTasks"`
	CompletionRate  float64   `json:"completionRate"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// Stats holds test statistics
type Stats struct {
	TasksGenerated int
	EventsEmitted  int
	EventsDropped  int
	Purged         int64
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
