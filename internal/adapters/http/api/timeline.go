package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/logger"
)

// TimelineDependencies defines the timeline query.
type TimelineDependencies interface {
	Timeline(ctx context.Context, days int) ([]model.TimelinePoint, error)
	DefaultTimelineDays() int
}

// TimelineHandler handles timeline requests.
type TimelineHandler struct {
	deps TimelineDependencies
	log  logger.Logger
}

// NewTimelineHandler creates a new timeline handler.
func NewTimelineHandler(deps TimelineDependencies, log logger.Logger) *TimelineHandler {
	return &TimelineHandler{deps: deps, log: log}
}

type timelineResponse struct {
	Period string                `json:"period"`
	Data   []model.TimelinePoint `json:"data"`
}

// HandleTimeline handles GET /analytics/tasks/timeline?days=N requests.
func (h *TimelineHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_timeline"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	days := queryInt(r, "days", h.deps.DefaultTimelineDays())
	points, err := h.deps.Timeline(r.Context(), days)
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to fetch timeline")
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse{
		Period: strconv.Itoa(days) + "days",
		Data:   points,
	})
}
