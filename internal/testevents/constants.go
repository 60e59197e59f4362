package testevents

import "time"

// Runner configuration constants.
const (
	DefaultSettle        = 500 * time.Millisecond
	drainTimeout         = 30 * time.Second
	backpressurePoll     = time.Millisecond
	PercentageMultiplier = 100
)
