// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	service "github.com/okian/taskpulse/internal/app"
	"github.com/okian/taskpulse/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	SummaryDependencies
	TimelineDependencies
	SnapshotDependencies
	HealthDependencies
	StatsProvider
}

// Server wires HTTP routes for the analytics API.
type Server struct {
	healthHandler    *HealthHandler
	eventsHandler    *EventsHandler
	summaryHandler   *SummaryHandler
	timelineHandler  *TimelineHandler
	snapshotsHandler *SnapshotsHandler
	log              logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:    NewHealthHandler(deps, deps, log),
		eventsHandler:    NewEventsHandler(deps, log),
		summaryHandler:   NewSummaryHandler(deps, log),
		timelineHandler:  NewTimelineHandler(deps, log),
		snapshotsHandler: NewSnapshotsHandler(deps, log),
		log:              log,
	}
}

// Register attaches all HTTP routes to mux. Every route answers CORS
// preflights and recovers from handler panics.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(path, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(path, CORSMiddleware(RecoverMiddleware(MetricsMiddleware(h, endpoint), s.log)))
	}

	route("/health", "health", s.healthHandler.HandleHealth)
	route("/stats", "stats", s.healthHandler.HandleStats)
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())

	route("/analytics/events", "events", s.eventsHandler.HandleEvents)
	route("/analytics/summary", "summary", s.summaryHandler.HandleSummary)
	route("/analytics/tasks/count", "counts", s.summaryHandler.HandleCounts)
	route("/analytics/tasks/timeline", "timeline", s.timelineHandler.HandleTimeline)
	route("/analytics/snapshots", "snapshots", s.snapshotsHandler.HandleList)
	route("/analytics/snapshots/", "snapshot", s.snapshotsHandler.HandleGet)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a service error onto a status and envelope.
// Validation errors keep their message; anything else answers with fallback
// and is logged in full.
func writeServiceError(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Error(ctx, "request failed", logger.Error(Wrap(op, err)))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// queryInt returns the integer query parameter key, or def when it is absent
// or not an integer.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
