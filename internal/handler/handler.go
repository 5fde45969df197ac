package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"graphwatch/internal/codec"
	"graphwatch/internal/domain"
	"graphwatch/internal/incident"
	"graphwatch/internal/lod"
	"graphwatch/internal/remote"
	"graphwatch/internal/service"
	"graphwatch/internal/store"
	"graphwatch/internal/timeline"
)

// maxImportBytes bounds uploaded graph documents
const maxImportBytes = 8 << 20

// GraphHandler handles graph API requests
type GraphHandler struct {
	svc    *service.GraphService
	logger *slog.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(svc *service.GraphService, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphHandler{svc: svc, logger: logger.With("component", "http")}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetGraph returns the displayed graph reduced to ?level= around ?focus=.
// focus is a node id or an "x,y,z" point.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	level := h.svc.DefaultLevel()
	if s := r.URL.Query().Get("level"); s != "" {
		l, err := lod.ParseLevel(s)
		if err != nil {
			writeError(w, h.logger, "Invalid level", err.Error(), http.StatusBadRequest)
			return
		}
		level = l
	}

	focus, err := parseFocus(r.URL.Query().Get("focus"))
	if err != nil {
		writeError(w, h.logger, "Invalid focus", err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.Graph(level, focus)
	if err != nil {
		h.fail(w, "Failed to reduce graph", err)
		return
	}
	writeJSON(w, h.logger, res, http.StatusOK)
}

func parseFocus(s string) (lod.Focus, error) {
	if s == "" {
		return lod.Focus{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return lod.Focus{NodeID: s}, nil
	}
	var xyz [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return lod.Focus{}, fmt.Errorf("point %q: %w", s, err)
		}
		xyz[i] = f
	}
	return lod.Focus{Point: domain.NewPosition(xyz[0], xyz[1], xyz[2])}, nil
}

// GetRawGraph returns the displayed view without reduction
func (h *GraphHandler) GetRawGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, h.svc.View(), http.StatusOK)
}

// GetStatus reports connectivity, display mode and playback state
func (h *GraphHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, h.svc.Status(), http.StatusOK)
}

// IncidentsResponse is the triage view
type IncidentsResponse struct {
	Groups     []incident.Group    `json:"groups"`
	Highlights incident.Highlights `json:"highlights"`
}

// ListIncidents returns open incidents by severity with their highlights
func (h *GraphHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, IncidentsResponse{
		Groups:     h.svc.Incidents(),
		Highlights: h.svc.Highlights(),
	}, http.StatusOK)
}

// GetIncidentChain renders one incident's causality chain
func (h *GraphHandler) GetIncidentChain(w http.ResponseWriter, r *http.Request) {
	steps, err := h.svc.IncidentChain(r.PathValue("id"))
	if err != nil {
		h.fail(w, "Failed to render chain", err)
		return
	}
	writeJSON(w, h.logger, steps, http.StatusOK)
}

// ResolveIncident asks the orchestrator to resolve an incident. A refusal is
// a 200 with success false.
func (h *GraphHandler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ResolveIncident(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "Failed to resolve incident", err)
		return
	}
	writeJSON(w, h.logger, res, http.StatusOK)
}

// ListGaps returns the agents the graph appears to be missing
func (h *GraphHandler) ListGaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, h.svc.Gaps(), http.StatusOK)
}

// ActionBody is the body of an agent action request
type ActionBody struct {
	Action domain.ActionType `json:"action"`
	Params map[string]any    `json:"params,omitempty"`
}

// AgentAction forwards an operator action for the agent in the path
func (h *GraphHandler) AgentAction(w http.ResponseWriter, r *http.Request) {
	var body ActionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.Action(r.Context(), domain.ActionRequest{
		AgentID: r.PathValue("id"),
		Action:  body.Action,
		Params:  body.Params,
	})
	if err != nil {
		h.fail(w, "Action failed", err)
		return
	}
	writeJSON(w, h.logger, res, http.StatusOK)
}

// WatchAgent subscribes to detailed updates of one agent
func (h *GraphHandler) WatchAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.WatchAgent(r.PathValue("id")); err != nil {
		h.fail(w, "Failed to watch agent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnwatchAgent ends detailed updates of one agent
func (h *GraphHandler) UnwatchAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.UnwatchAgent(r.PathValue("id")); err != nil {
		h.fail(w, "Failed to unwatch agent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerSync pulls a full refresh from the configured sources
func (h *GraphHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Sync(r.Context()); err != nil {
		h.fail(w, "Sync failed", err)
		return
	}
	writeJSON(w, h.logger, map[string]any{"status": "synced", "version": h.svc.View().Version}, http.StatusOK)
}

// Export writes the displayed graph as JSON or YAML
func (h *GraphHandler) Export(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, h.logger, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=graph."+c.Format())
	if err := c.Export(h.svc.View().Graph, w); err != nil {
		// Can't write error response as we already set headers
		h.logger.Error("failed to export graph", "format", c.Format(), "error", err)
	}
}

// Import replaces the live graph with an uploaded JSON or YAML document
func (h *GraphHandler) Import(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, h.logger, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	g, err := c.Parse(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, h.logger, "Invalid graph document", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.svc.Import(r.Context(), "import-"+c.Format(), g); err != nil {
		h.fail(w, "Import rejected", err)
		return
	}
	writeJSON(w, h.logger, h.svc.Status(), http.StatusOK)
}

// fail maps service errors to status codes
func (h *GraphHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn(msg, "error", err)
	}
	writeError(w, h.logger, msg, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownAgent),
		errors.Is(err, incident.ErrUnknownIncident):
		return http.StatusNotFound
	case errors.Is(err, service.ErrActionNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, incident.ErrNoResolver),
		errors.Is(err, timeline.ErrNoLoader):
		return http.StatusServiceUnavailable
	case errors.Is(err, remote.ErrStatus):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrInvalidGraph),
		errors.Is(err, lod.ErrUnknownLevel),
		errors.Is(err, timeline.ErrInvalidSpeed),
		errors.Is(err, timeline.ErrInvalidRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, error, details string, statusCode int) {
	writeJSON(w, logger, ErrorResponse{Error: error, Details: details}, statusCode)
}
