package service

import (
	"context"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// SavePointRepository is the durable store for save points.
// Save points are append-only; only the retention pruner deletes them.
type SavePointRepository interface {
	// AppendSavePoint durably writes a new save point.
	AppendSavePoint(ctx context.Context, sp *domain.SavePoint) error

	// DeleteSavePoint removes a save point. Deleting a missing save point is not an error.
	DeleteSavePoint(ctx context.Context, characterID, savePointID string) error

	// ListSavePoints returns all save points of a character, oldest first.
	ListSavePoints(ctx context.Context, characterID string) ([]*domain.SavePoint, error)

	// ListCharacters returns every character that owns at least one save point.
	ListCharacters(ctx context.Context) ([]string, error)
}

// SessionRepository persists session records with upsert semantics.
type SessionRepository interface {
	// UpsertSession writes the session record, replacing any previous version.
	UpsertSession(ctx context.Context, session *domain.GameSession) error

	// GetSession returns a persisted session, or domain.ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (*domain.GameSession, error)

	// ListSessions returns persisted sessions in the given states (all when empty).
	ListSessions(ctx context.Context, states ...domain.SessionState) ([]*domain.GameSession, error)
}

// Repository is implemented by every storage backend.
type Repository interface {
	SavePointRepository
	SessionRepository
}

// SavePointMirror receives a copy of save points for sessions with cloud sync enabled.
type SavePointMirror interface {
	Mirror(ctx context.Context, sp *domain.SavePoint) error
}
