package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/taskpulse/internal/app"
	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/logger"
)

const maxEventBodyBytes = 1 << 20

// EventDependencies defines the interface for event write and list operations.
type EventDependencies interface {
	Ingest(ctx context.Context, in service.IngestInput) (model.Event, error)
	Recent(ctx context.Context, limit int) ([]model.Event, error)
	Purge(ctx context.Context) (int64, error)
}

// EventsHandler handles /analytics/events requests.
type EventsHandler struct {
	deps EventDependencies
	log  logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, log logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, log: log}
}

// eventRequest mirrors the OpenAPI schema for POST /analytics/events.
type eventRequest struct {
	EventType string          `json:"eventType"`
	TaskID    json.RawMessage `json:"taskId"`
	Metadata  json.RawMessage `json:"metadata"`
}

var jsonNull = []byte("null")

func (e eventRequest) toInput() (service.IngestInput, error) {
	in := service.IngestInput{EventType: e.EventType}
	if len(e.TaskID) > 0 && !bytes.Equal(e.TaskID, jsonNull) {
		in.TaskID = e.TaskID
	}
	if len(e.Metadata) > 0 && !bytes.Equal(e.Metadata, jsonNull) {
		if err := json.Unmarshal(e.Metadata, &in.Metadata); err != nil {
			return in, errors.New("metadata must be an object")
		}
	}
	return in, nil
}

type createdResponse struct {
	Message string      `json:"message"`
	Event   model.Event `json:"event"`
}

type purgeResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

// HandleEvents dispatches on method: POST ingests, GET lists, DELETE purges.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandlePostEvent(w, r)
	case http.MethodGet:
		h.HandleListEvents(w, r)
	case http.MethodDelete:
		h.HandlePurgeEvents(w, r)
	default:
		http.NotFound(w, r)
	}
}

// HandlePostEvent handles POST /analytics/events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"

	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBodyBytes)).Decode(&req); err != nil {
		h.log.Debug(r.Context(), "rejected event body", logger.Error(WrapKind(op, ErrBadRequest, err)))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.log.Debug(r.Context(), "rejected event body", logger.Error(WrapKind(op, ErrBadRequest, err)))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.deps.Ingest(r.Context(), in)
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to log event")
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Message: "Event logged successfully", Event: event})
}

// HandleListEvents handles GET /analytics/events?limit=N requests.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"

	events, err := h.deps.Recent(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to fetch events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandlePurgeEvents handles DELETE /analytics/events requests.
func (h *EventsHandler) HandlePurgeEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.purge_events"

	n, err := h.deps.Purge(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err, "Failed to delete events")
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{Message: "All events deleted", DeletedCount: n})
}
