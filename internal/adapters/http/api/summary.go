package api

import (
	"context"
	"net/http"

	service "github.com/okian/taskpulse/internal/app"
	"github.com/okian/taskpulse/pkg/logger"
)

// SummaryDependencies defines the live aggregate queries.
type SummaryDependencies interface {
	Summary(ctx context.Context) (service.Summary, error)
	CountsByType(ctx context.Context) (map[string]int64, error)
}

// SummaryHandler handles summary and count requests.
type SummaryHandler struct {
	deps SummaryDependencies
	log  logger.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(deps SummaryDependencies, log logger.Logger) *SummaryHandler {
	return &SummaryHandler{deps: deps, log: log}
}

// HandleSummary handles GET /analytics/summary requests.
func (h *SummaryHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sum, err := h.deps.Summary(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to fetch summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleCounts handles GET /analytics/tasks/count requests.
func (h *SummaryHandler) HandleCounts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_counts"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	counts, err := h.deps.CountsByType(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to fetch counts")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
