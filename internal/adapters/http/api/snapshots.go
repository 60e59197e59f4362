package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/logger"
)

const snapshotsPrefix = "/analytics/snapshots/"

// SnapshotDependencies defines read access to stored daily snapshots.
type SnapshotDependencies interface {
	Snapshot(ctx context.Context, date string) (model.Snapshot, error)
	Snapshots(ctx context.Context, from, to string) ([]model.Snapshot, error)
}

// SnapshotsHandler serves the snapshot history.
type SnapshotsHandler struct {
	deps SnapshotDependencies
	log  logger.Logger
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(deps SnapshotDependencies, log logger.Logger) *SnapshotsHandler {
	return &SnapshotsHandler{deps: deps, log: log}
}

// HandleList handles GET /analytics/snapshots?from=&to= requests.
func (h *SnapshotsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_snapshots"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	snaps, err := h.deps.Snapshots(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to fetch snapshots")
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// HandleGet handles GET /analytics/snapshots/{date} requests.
func (h *SnapshotsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_snapshot"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	date := strings.TrimPrefix(r.URL.Path, snapshotsPrefix)
	if date == "" || strings.Contains(date, "/") {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.Snapshot(r.Context(), date)
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to fetch snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
