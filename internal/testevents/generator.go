package testevents

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/logger"
)

const randomFloatDivisor = 1000000

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateLifecycles creates config.NumTasks task histories. Each task is
// created, completed with probability CompleteRatio and deleted with
// probability DeleteRatio.
func generateLifecycles(ctx context.Context, config *Config, stats *Stats) ([]Lifecycle, error) {
	logger.Get().Info(ctx, "generating task lifecycles", logger.Int("tasks", config.NumTasks))

	out := make([]Lifecycle, config.NumTasks)
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		out[i] = Lifecycle{
			TaskID:    uuid.NewString(),
			Title:     "load test task " + strconv.Itoa(i+1),
			Completed: getRandomFloat() < config.CompleteRatio,
			Deleted:   getRandomFloat() < config.DeleteRatio,
		}
	}

	stats.TasksGenerated = len(out)
	logger.Get().Info(ctx, "generated lifecycles", logger.Int("count", len(out)))
	return out, nil
}

// expectedCounts returns the event counts the lifecycles produce once
// emitted. A completion also emits task.updated.
func expectedCounts(lifecycles []Lifecycle) Counts {
	c := Counts{}
	for _, l := range lifecycles {
		c[model.TaskCreated]++
		if l.Completed {
			c[model.TaskCompleted]++
			c[model.TaskUpdated]++
		}
		if l.Deleted {
			c[model.TaskDeleted]++
		}
	}
	return c
}

// eventCount is the number of events a single lifecycle emits.
func (l Lifecycle) eventCount() int {
	n := 1
	if l.Completed {
		n += 2
	}
	if l.Deleted {
		n++
	}
	return n
}
