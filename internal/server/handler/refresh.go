package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// RefreshTrigger requests an out-of-schedule price refresh.
type RefreshTrigger interface {
	Trigger() bool
}

// RefreshHandler serves the manual refresh endpoint.
type RefreshHandler struct {
	trigger RefreshTrigger
	logger  *slog.Logger
}

// NewRefreshHandler creates a RefreshHandler. trigger may be nil when the
// refresher does not run in this process.
func NewRefreshHandler(trigger RefreshTrigger, logger *slog.Logger) *RefreshHandler {
	return &RefreshHandler{trigger: trigger, logger: logHandler(logger, "refresh")}
}

// Trigger enqueues one refresh cycle. A request made while one is already
// pending is coalesced with it.
// POST /refresh
func (h *RefreshHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		WriteError(w, http.StatusServiceUnavailable, "price refresh is not running in this process")
		return
	}

	queued := h.trigger.Trigger()
	h.logger.InfoContext(r.Context(), "refresh requested", slog.Bool("queued", queued))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"queued":       queued,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
