package handler

import (
	"net/http"
	"time"
)

// handleContinuityStats handles GET /admin/v1/metrics.
func (h *Handler) handleContinuityStats(w http.ResponseWriter, r *http.Request) {
	if h.continuity == nil {
		h.writeError(w, r, http.StatusNotFound, "WP-SYS-4040", "continuity metrics are disabled", nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.continuity.Snapshot())
}

// handleResetMetrics handles POST /admin/v1/metrics/reset.
func (h *Handler) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.continuity == nil {
		h.writeError(w, r, http.StatusNotFound, "WP-SYS-4040", "continuity metrics are disabled", nil)
		return
	}
	h.continuity.Reset()
	h.logger.Info("continuity metrics reset", "request_id", requestID(r))
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"reset":    true,
		"reset_at": time.Now().UTC().Format(time.RFC3339),
	})
}
