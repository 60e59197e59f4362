package testevents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/taskpulse/pkg/emitter"
	"github.com/okian/taskpulse/pkg/logger"
	"github.com/spf13/cobra"
)

// Default flag values.
const (
	defaultBaseURL       = "http://localhost:8080"
	defaultNumTasks      = 1000
	defaultCompleteRatio = 0.6
	defaultDeleteRatio   = 0.2
	defaultTestTimeout   = 10 * time.Minute
	logFilePermission    = 0600
)

var errInvalidFlags = errors.New("invalid flags")

// NewRootCommand builds the test-events command.
func NewRootCommand() *cobra.Command {
	config := &Config{}

	cmd := &cobra.Command{
		Use:   "test-events",
		Short: "Drive synthetic task lifecycles through taskpulse and verify its aggregates",
		Long: `test-events generates task lifecycles (create, maybe complete, maybe delete),
sends them through the emitter client library to a running taskpulse service,
waits for delivery and then checks /analytics/tasks/count and
/analytics/summary against the expected totals.

Examples:
  test-events --url http://localhost:8080 --tasks 5000
  test-events --purge --complete-ratio 0.9 --verbose`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateConfig(config)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := SetupLogging(config.LogFile, config.Verbose); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()
			return Run(ctx, config)
		},
	}

	f := cmd.Flags()
	f.StringVar(&config.BaseURL, "url", defaultBaseURL, "base URL of the service")
	f.IntVarP(&config.NumTasks, "tasks", "n", defaultNumTasks, "number of task lifecycles to generate")
	f.IntVarP(&config.Workers, "workers", "w", emitter.DefaultWorkers, "emitter delivery workers")
	f.IntVar(&config.QueueSize, "queue-size", emitter.DefaultQueueSize, "emitter queue capacity")
	f.DurationVar(&config.Timeout, "timeout", emitter.DefaultTimeout, "HTTP request timeout")
	f.Float64Var(&config.CompleteRatio, "complete-ratio", defaultCompleteRatio, "share of tasks completed (0-1)")
	f.Float64Var(&config.DeleteRatio, "delete-ratio", defaultDeleteRatio, "share of tasks deleted (0-1)")
	f.BoolVar(&config.Purge, "purge", false, "purge all events before the run")
	f.DurationVar(&config.Settle, "settle", DefaultSettle, "wait after draining before verifying")
	f.StringVarP(&config.OutputFile, "output", "o", "", "write generated lifecycles to this JSON file")
	f.StringVar(&config.LogFile, "log", "", "also write logs to this file")
	f.BoolVarP(&config.Verbose, "verbose", "v", false, "enable verbose logging")

	return cmd
}

func validateConfig(c *Config) error {
	switch {
	case c.NumTasks < 1:
		return fmt.Errorf("%w: --tasks must be at least 1", errInvalidFlags)
	case c.Workers < 1:
		return fmt.Errorf("%w: --workers must be at least 1", errInvalidFlags)
	case c.QueueSize < 4:
		// One lifecycle emits up to four events.
		return fmt.Errorf("%w: --queue-size must be at least 4", errInvalidFlags)
	case c.CompleteRatio < 0 || c.CompleteRatio > 1:
		return fmt.Errorf("%w: --complete-ratio must be within [0,1]", errInvalidFlags)
	case c.DeleteRatio < 0 || c.DeleteRatio > 1:
		return fmt.Errorf("%w: --delete-ratio must be within [0,1]", errInvalidFlags)
	}
	return nil
}

// SetupLogging configures logging to the console and, when logFile is set,
// to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}
