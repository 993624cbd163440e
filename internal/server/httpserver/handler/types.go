package handler

import (
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use it; /metrics uses the Prometheus text format.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// StartSessionRequest is the request body for POST /sessions.
type StartSessionRequest struct {
	PlayerID    string                      `json:"player_id"`
	CharacterID string                      `json:"character_id"`
	Preferences *domain.PreferencesOverride `json:"preferences,omitempty"`
}

// StartSessionResponse is the response body for POST /sessions.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// EndSessionRequest is the request body for POST /sessions/{id}/end.
type EndSessionRequest struct {
	Reason string `json:"reason"`
}

// SaveRequest is the request body for POST /sessions/{id}/save.
type SaveRequest struct {
	Type        domain.SaveType `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ListSessionsResponse is the response body for GET /sessions.
type ListSessionsResponse struct {
	Items []*domain.GameSession `json:"items"`
	Total int                   `json:"total"`
}

// SavePointSummary is a save point header with its current integrity score.
type SavePointSummary struct {
	*domain.SavePoint
	Integrity float64 `json:"integrity"`
}

// ListSavePointsResponse is the response body for GET /characters/{id}/save-points.
type ListSavePointsResponse struct {
	CharacterID string             `json:"character_id"`
	Items       []SavePointSummary `json:"items"`
	Total       int                `json:"total"`
}

// RestoreRequest is the request body for POST /characters/{id}/restore.
// Options default to a full restore.
type RestoreRequest struct {
	SavePointID string                 `json:"save_point_id"`
	Options     *domain.RestoreOptions `json:"options,omitempty"`
}
