package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/taskpulse/pkg/emitter"
	"github.com/okian/taskpulse/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete event test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}
	client := newHTTPClient(config.BaseURL, config.Timeout)

	logger.Get().Info(ctx, "starting taskpulse event test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("tasks", config.NumTasks),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("purge", config.Purge),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Start from a known state
	if config.Purge {
		n, err := client.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		stats.Purged = n
	}
	baseline, err := client.Counts(ctx)
	if err != nil {
		return fmt.Errorf("baseline counts failed: %w", err)
	}

	// Step 3: Generate lifecycles
	lifecycles, err := generateLifecycles(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("lifecycle generation failed: %w", err)
	}

	// Step 4: Emit through the client library and drain
	if err := emitLifecycles(ctx, config, lifecycles, stats); err != nil {
		return fmt.Errorf("event emission failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(config.Settle):
	}

	// Step 5: Verify aggregates
	counts, err := client.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counts retrieval failed: %w", err)
	}
	summary, err := client.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summary retrieval failed: %w", err)
	}
	verifyErr := verifyResults(ctx, baseline, expectedCounts(lifecycles), counts, summary)

	// Step 6: Save lifecycles to file
	if config.OutputFile != "" {
		if err := saveLifecycles(ctx, config.OutputFile, lifecycles); err != nil {
			logger.Get().Warn(ctx, "failed to save lifecycles to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if verifyErr != nil {
		if stats.EventsDropped > 0 {
			return fmt.Errorf("%w (%d events dropped by emitter)", verifyErr, stats.EventsDropped)
		}
		return verifyErr
	}
	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// emitLifecycles pushes every lifecycle through an emitter. Emission waits
// for queue room so the bounded queue does not shed load.
func emitLifecycles(ctx context.Context, config *Config, lifecycles []Lifecycle, stats *Stats) error {
	em, err := emitter.New(emitter.Config{
		URL:       config.BaseURL,
		QueueSize: config.QueueSize,
		Workers:   config.Workers,
		Timeout:   config.Timeout,
	}, emitter.WithLogger(logger.Get().Named("emitter")))
	if err != nil {
		return err
	}

	for i, l := range lifecycles {
		for em.Pending()+l.eventCount() > config.QueueSize {
			select {
			case <-ctx.Done():
				_ = em.Close(context.Background())
				return ctx.Err()
			case <-time.After(backpressurePoll):
			}
		}
		emitLifecycle(ctx, em, l, stats)

		if config.Verbose && (i+1)%1000 == 0 {
			logger.Get().Info(ctx, "emission progress",
				logger.Int("tasks", i+1),
				logger.Int("pending", em.Pending()))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	return em.Close(drainCtx)
}

func emitLifecycle(ctx context.Context, em *emitter.Emitter, l Lifecycle, stats *Stats) {
	task := emitter.Task{ID: l.TaskID, Title: l.Title}
	track := func(ok bool, n int) {
		if ok {
			stats.EventsEmitted += n
		} else {
			stats.EventsDropped += n
		}
	}

	track(em.TaskCreated(ctx, task), 1)
	if l.Completed {
		prev := task
		task.Completed = true
		track(em.TaskUpdated(ctx, &prev, task), 2)
	}
	if l.Deleted {
		track(em.TaskDeleted(ctx, task), 1)
	}
}

// saveLifecycles writes the generated lifecycles as a JSON array.
func saveLifecycles(ctx context.Context, filename string, lifecycles []Lifecycle) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(lifecycles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycles: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "lifecycles saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var queuedRate, eventsPerSecond float64

	if total := stats.EventsEmitted + stats.EventsDropped; total > 0 {
		queuedRate = float64(stats.EventsEmitted) / float64(total) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsEmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("tasksGenerated", stats.TasksGenerated),
		logger.Int("eventsEmitted", stats.EventsEmitted),
		logger.Int("eventsDropped", stats.EventsDropped),
		logger.Int64("purged", stats.Purged),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("queuedRate", queuedRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
