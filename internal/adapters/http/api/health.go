package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/taskpulse/pkg/logger"
	"github.com/okian/taskpulse/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPingTimeout = 2 * time.Second

// HealthDependencies reports storage reachability.
type HealthDependencies interface {
	Ping(ctx context.Context) error
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// HealthHandler handles health, stats and metrics requests.
type HealthHandler struct {
	deps  HealthDependencies
	stats StatsProvider
	log   logger.Logger
	now   func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies, stats StatsProvider, log logger.Logger) *HealthHandler {
	return &HealthHandler{deps: deps, stats: stats, log: log, now: time.Now}
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleHealth handles GET /health requests. It answers 503 when the event
// store cannot be reached.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	if err := h.deps.Ping(ctx); err != nil {
		h.log.Warn(r.Context(), "health check failed", logger.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    "storage unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Database:  "connected",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

// HandleStats handles GET /stats requests.
func (h *HealthHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}

// MetricsHandler serves the custom Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
