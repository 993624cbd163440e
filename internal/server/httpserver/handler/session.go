package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// handleStartSession handles POST /sessions.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.sessions.StartSession(r.Context(), req.PlayerID, req.CharacterID, req.Preferences)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, StartSessionResponse{SessionID: id})
}

// handleListSessions handles GET /sessions?state=active,paused.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var states []domain.SessionState
	if raw := r.URL.Query().Get("state"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			states = append(states, domain.SessionState(strings.TrimSpace(s)))
		}
	}

	sessions, err := h.sessions.List(r.Context(), states...)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.GameSession{}
	}
	h.writeJSON(w, r, http.StatusOK, ListSessionsResponse{Items: sessions, Total: len(sessions)})
}

// handleGetSession handles GET /sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, sess)
}

// handlePauseSession handles POST /sessions/{id}/pause.
func (h *Handler) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := h.sessions.PauseSession(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !ok {
		h.handleServiceError(w, r, h.rejected(r, id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"paused": true})
}

// handleResumeSession handles POST /sessions/{id}/resume.
func (h *Handler) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.sessions.ResumeSession(r.Context(), id) {
		h.handleServiceError(w, r, h.rejected(r, id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"resumed": true})
}

// rejected explains why a state transition did not happen: the session is
// unknown, or it exists in a state the transition does not start from.
func (h *Handler) rejected(r *http.Request, id string) error {
	sess, err := h.sessions.Lookup(r.Context(), id)
	if err != nil {
		return domain.ErrSessionNotFound.WithDetails(id)
	}
	return domain.ErrSessionState.WithDetails(fmt.Sprintf("session %s is %s", id, sess.State))
}

// handleEndSession handles POST /sessions/{id}/end.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req EndSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "ended by operator"
	}

	id := r.PathValue("id")
	ok, err := h.sessions.EndSession(r.Context(), id, req.Reason)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !ok {
		h.handleServiceError(w, r, domain.ErrSessionNotFound.WithDetails(id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"ended": true})
}

// handleSaveSession handles POST /sessions/{id}/save.
func (h *Handler) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = domain.SaveManual
	}
	if !domain.ValidSaveType(req.Type) {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("unknown save type "+string(req.Type)))
		return
	}

	sp, err := h.sessions.CreateSavePoint(r.Context(), r.PathValue("id"), req.Type, req.Description)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, sp.Header())
}
