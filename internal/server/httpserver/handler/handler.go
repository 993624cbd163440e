package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/core/service"
	"github.com/yndnr/waypoint-go/internal/telemetry/logger"
	"github.com/yndnr/waypoint-go/internal/telemetry/metric"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Sessions is the part of the session manager the API drives.
type Sessions interface {
	StartSession(ctx context.Context, playerID, characterID string, prefs *domain.PreferencesOverride) (string, error)
	PauseSession(ctx context.Context, sessionID string) (bool, error)
	ResumeSession(ctx context.Context, sessionID string) bool
	EndSession(ctx context.Context, sessionID, reason string) (bool, error)
	CreateSavePoint(ctx context.Context, sessionID string, saveType domain.SaveType, description string) (*domain.SavePoint, error)
	Lookup(ctx context.Context, sessionID string) (*domain.GameSession, error)
	List(ctx context.Context, states ...domain.SessionState) ([]*domain.GameSession, error)
	ActiveCount() int
}

// SavePoints lists a character's save points.
type SavePoints interface {
	List(ctx context.Context, characterID string) ([]*domain.SavePoint, error)
}

// Restorer applies save points.
type Restorer interface {
	Restore(ctx context.Context, characterID, savePointID string, opts domain.RestoreOptions) *domain.RestoreResult
	AutoRestore(ctx context.Context, characterID string) *domain.RestoreResult
}

// Config wires the handler to the engine.
type Config struct {
	Sessions   Sessions
	SavePoints SavePoints
	Restorer   Restorer
	Verifier   *service.Verifier
	Continuity *metric.Continuity
	Logger     *slog.Logger
	Version    string
}

// Handler serves the admin API.
type Handler struct {
	sessions   Sessions
	savePoints SavePoints
	restorer   Restorer
	verifier   *service.Verifier
	continuity *metric.Continuity
	logger     *slog.Logger
	version    string
	started    time.Time
	mux        *http.ServeMux
}

// New creates a Handler and registers its routes.
func New(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = service.NewVerifier()
	}
	h := &Handler{
		sessions:   cfg.Sessions,
		savePoints: cfg.SavePoints,
		restorer:   cfg.Restorer,
		verifier:   verifier,
		continuity: cfg.Continuity,
		logger:     log,
		version:    cfg.Version,
		started:    time.Now(),
		mux:        http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("GET /sessions", h.handleListSessions)
	h.mux.HandleFunc("POST /sessions", h.handleStartSession)
	h.mux.HandleFunc("GET /sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("POST /sessions/{id}/pause", h.handlePauseSession)
	h.mux.HandleFunc("POST /sessions/{id}/resume", h.handleResumeSession)
	h.mux.HandleFunc("POST /sessions/{id}/end", h.handleEndSession)
	h.mux.HandleFunc("POST /sessions/{id}/save", h.handleSaveSession)

	h.mux.HandleFunc("GET /characters/{id}/save-points", h.handleListSavePoints)
	h.mux.HandleFunc("POST /characters/{id}/restore", h.handleRestore)
	h.mux.HandleFunc("POST /characters/{id}/auto-restore", h.handleAutoRestore)

	h.mux.HandleFunc("GET /admin/v1/metrics", h.handleContinuityStats)
	h.mux.HandleFunc("POST /admin/v1/metrics/reset", h.handleResetMetrics)
}

// writeJSON writes a success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	id := requestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(id, data)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	id := requestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NewErrorResponse(id, code, message, details))
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", err.Error())
		return false
	}
	return true
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := de.Status()
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		}
		h.writeError(w, r, status, de.Code, de.Message, de.Details)
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "error", err, "path", r.URL.Path)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error", nil)
}

func requestID(r *http.Request) string {
	return logger.RequestIDFromContext(r.Context())
}
