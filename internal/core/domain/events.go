package domain

import "time"

// EventType names a continuity notification.
type EventType string

const (
	EventSessionStarted   EventType = "sessionStarted"
	EventSessionPaused    EventType = "sessionPaused"
	EventSessionResumed   EventType = "sessionResumed"
	EventSessionEnded     EventType = "sessionEnded"
	EventSessionCrashed   EventType = "sessionCrashed"
	EventSavePointCreated EventType = "savePointCreated"
	EventGameRestored     EventType = "gameStateRestored"
)

// Event is delivered asynchronously to subscribers.
type Event struct {
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id,omitempty"`
	CharacterID string    `json:"character_id,omitempty"`
	SavePointID string    `json:"save_point_id,omitempty"`
	At          time.Time `json:"at"`

	// Payload carries the result value for the event, e.g. *RestoreResult or *SavePoint header.
	Payload any `json:"payload,omitempty"`
}
