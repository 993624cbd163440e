package handler

import (
	"net/http"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// handleListSavePoints handles GET /characters/{id}/save-points.
// Payloads are left out; each entry carries a freshly computed integrity score.
func (h *Handler) handleListSavePoints(w http.ResponseWriter, r *http.Request) {
	characterID := r.PathValue("id")
	points, err := h.savePoints.List(r.Context(), characterID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	items := make([]SavePointSummary, len(points))
	for i, sp := range points {
		sp.Verified = h.verifier.Verify(sp)
		items[i] = SavePointSummary{SavePoint: sp.Header(), Integrity: h.verifier.Score(sp)}
	}
	h.writeJSON(w, r, http.StatusOK, ListSavePointsResponse{
		CharacterID: characterID,
		Items:       items,
		Total:       len(items),
	})
}

// handleRestore handles POST /characters/{id}/restore.
func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SavePointID == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("save_point_id is required"))
		return
	}
	opts := domain.FullRestoreOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	h.writeRestoreResult(w, r, h.restorer.Restore(r.Context(), r.PathValue("id"), req.SavePointID, opts))
}

// handleAutoRestore handles POST /characters/{id}/auto-restore.
func (h *Handler) handleAutoRestore(w http.ResponseWriter, r *http.Request) {
	h.writeRestoreResult(w, r, h.restorer.AutoRestore(r.Context(), r.PathValue("id")))
}

// writeRestoreResult reports a failed restore as 422 with the full result as details.
func (h *Handler) writeRestoreResult(w http.ResponseWriter, r *http.Request, res *domain.RestoreResult) {
	if res.Success {
		h.writeJSON(w, r, http.StatusOK, res)
		return
	}
	h.writeError(w, r, http.StatusUnprocessableEntity, domain.ErrRestoreAborted.Code, domain.ErrRestoreAborted.Message, res)
}
