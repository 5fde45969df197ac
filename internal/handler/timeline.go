package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"graphwatch/internal/timeline"
)

// TimelineHandler drives the snapshot player
type TimelineHandler struct {
	player *timeline.Player
	logger *slog.Logger
}

// NewTimelineHandler creates a handler for player. A nil player answers 503.
func NewTimelineHandler(player *timeline.Player, logger *slog.Logger) *TimelineHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimelineHandler{player: player, logger: logger.With("component", "http")}
}

// LoadBody selects the range to load: either a duration string in Span or
// a number of hours
type LoadBody struct {
	Span  string  `json:"span,omitempty"`
	Hours float64 `json:"hours,omitempty"`
}

func (b LoadBody) duration() (time.Duration, error) {
	if b.Span != "" {
		return time.ParseDuration(b.Span)
	}
	if b.Hours > 0 {
		return time.Duration(b.Hours * float64(time.Hour)), nil
	}
	return 0, fmt.Errorf("%w: span or hours required", timeline.ErrInvalidRange)
}

// SeekBody addresses a snapshot by index or by time
type SeekBody struct {
	Index *int       `json:"index,omitempty"`
	Time  *time.Time `json:"time,omitempty"`
}

// SpeedBody sets the playback multiplier
type SpeedBody struct {
	Speed float64 `json:"speed"`
}

// GetState returns the player state
func (h *TimelineHandler) GetState(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	writeJSON(w, h.logger, h.player.State(), http.StatusOK)
}

// Load loads the snapshot range ending now
func (h *TimelineHandler) Load(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var body LoadBody
	if !h.decode(w, r, &body) {
		return
	}
	span, err := body.duration()
	if err != nil {
		writeError(w, h.logger, "Invalid range", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.player.LoadRange(r.Context(), span); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		h.logger.Warn("failed to load timeline", "span", span, "error", err)
		writeError(w, h.logger, "Failed to load timeline", err.Error(), status)
		return
	}
	h.reply(w)
}

// Control runs one of play, pause, start, end and live
func (h *TimelineHandler) Control(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	switch op := r.PathValue("op"); op {
	case "play":
		h.player.Play()
	case "pause":
		h.player.Pause()
	case "start":
		h.player.SkipToStart()
	case "end":
		h.player.SkipToEnd()
	case "live":
		h.player.EnterLiveMode()
	default:
		writeError(w, h.logger, "Unknown timeline operation", op, http.StatusNotFound)
		return
	}
	h.reply(w)
}

// Seek jumps to an index or to the latest snapshot at or before a time
func (h *TimelineHandler) Seek(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var body SeekBody
	if !h.decode(w, r, &body) {
		return
	}
	switch {
	case body.Index != nil:
		h.player.Seek(*body.Index)
	case body.Time != nil:
		h.player.SeekTime(*body.Time)
	default:
		writeError(w, h.logger, "Invalid seek", "index or time required", http.StatusBadRequest)
		return
	}
	h.reply(w)
}

// SetSpeed changes the playback multiplier
func (h *TimelineHandler) SetSpeed(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var body SpeedBody
	if !h.decode(w, r, &body) {
		return
	}
	speed, err := timeline.ParseSpeed(body.Speed)
	if err == nil {
		err = h.player.SetSpeed(speed)
	}
	if err != nil {
		writeError(w, h.logger, "Invalid speed", err.Error(), http.StatusBadRequest)
		return
	}
	h.reply(w)
}

func (h *TimelineHandler) available(w http.ResponseWriter) bool {
	if h.player == nil {
		writeError(w, h.logger, "Timeline unavailable", "no snapshot source configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *TimelineHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, h.logger, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *TimelineHandler) reply(w http.ResponseWriter) {
	writeJSON(w, h.logger, h.player.State(), http.StatusOK)
}
