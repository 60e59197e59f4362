package testevents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/okian/taskpulse/internal/domain/aggregate"
	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/logger"
)

const rateTolerance = 0.01

// verifyResults compares what the service reports against baseline plus
// the generated lifecycles. Every mismatch is listed in the returned error.
func verifyResults(ctx context.Context, baseline, generated, got Counts, summary Summary) error {
	logger.Get().Info(ctx, "verifying results")

	want := Counts{}
	for k, v := range baseline {
		want[k] += v
	}
	for k, v := range generated {
		want[k] += v
	}

	var problems []string
	for _, typ := range []string{model.TaskCreated, model.TaskCompleted, model.TaskUpdated, model.TaskDeleted} {
		if got[typ] != want[typ] {
			problems = append(problems, fmt.Sprintf("count %s: want %d, got %d", typ, want[typ], got[typ]))
		}
	}

	// The summary must follow the derivation rule over the counts the
	// service itself reports.
	derived := aggregate.Derive(got[model.TaskCreated], got[model.TaskCompleted], got[model.TaskDeleted])
	if summary.TotalTasks != derived.TotalTasks {
		problems = append(problems, fmt.Sprintf("totalTasks: want %d, got %d", derived.TotalTasks, summary.TotalTasks))
	}
	if summary.CompletedTasks != derived.CompletedTasks {
		problems = append(problems, fmt.Sprintf("completedTasks: want %d, got %d", derived.CompletedTasks, summary.CompletedTasks))
	}
	if summary.IncompleteTasks != derived.IncompleteTasks {
		problems = append(problems, fmt.Sprintf("incompleteTasks: want %d, got %d", derived.IncompleteTasks, summary.IncompleteTasks))
	}
	if summary.DeletedTasks != derived.DeletedTasks {
		problems = append(problems, fmt.Sprintf("deletedTasks: want %d, got %d", derived.DeletedTasks, summary.DeletedTasks))
	}
	if math.Abs(summary.CompletionRate-derived.CompletionRate) > rateTolerance {
		problems = append(problems, fmt.Sprintf("completionRate: want %.2f, got %.2f", derived.CompletionRate, summary.CompletionRate))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrVerification, strings.Join(problems, "; "))
	}

	logger.Get().Info(ctx, "result verification completed",
		logger.Int64("totalTasks", summary.TotalTasks),
		logger.Int64("completedTasks", summary.CompletedTasks),
		logger.Float64("completionRate", summary.CompletionRate),
	)
	return nil
}
