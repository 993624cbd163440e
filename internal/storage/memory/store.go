package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/pkg/cmap"
)

// Store keeps save points and session records in memory.
//
// Records are cloned on the way in and on the way out so callers never
// share memory with the store.
type Store struct {
	// Primary index: SavePointID -> SavePoint
	savePoints *cmap.Map[string, *domain.SavePoint]

	// Secondary index: CharacterID -> set of SavePointIDs
	characters *OwnerIndex

	// Primary index: SessionID -> GameSession
	sessions *cmap.Map[string, *domain.GameSession]

	// Serializes writes that touch more than one index.
	mu sync.Mutex
}

// New creates an empty store.
func New() *Store {
	return &Store{
		savePoints: cmap.New[string, *domain.SavePoint](),
		characters: NewOwnerIndex(),
		sessions:   cmap.New[string, *domain.GameSession](),
	}
}

// AppendSavePoint stores a save point. Re-appending an existing ID replaces it,
// which keeps WAL replay idempotent.
func (s *Store) AppendSavePoint(_ context.Context, sp *domain.SavePoint) error {
	if sp.ID == "" || sp.CharacterID == "" {
		return domain.ErrInvalidArgument.WithDetails("save point id and character id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.savePoints.Set(sp.ID, sp.Clone())
	s.characters.Add(sp.CharacterID, sp.ID)
	return nil
}

// DeleteSavePoint removes a save point. Missing save points are ignored.
func (s *Store) DeleteSavePoint(_ context.Context, characterID, savePointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sp, ok := s.savePoints.Pop(savePointID); ok {
		characterID = sp.CharacterID
	}
	s.characters.Remove(characterID, savePointID)
	return nil
}

// ListSavePoints returns a character's save points, oldest first.
func (s *Store) ListSavePoints(_ context.Context, characterID string) ([]*domain.SavePoint, error) {
	ids := s.characters.Get(characterID)
	out := make([]*domain.SavePoint, 0, len(ids))
	for _, id := range ids {
		if sp, ok := s.savePoints.Get(id); ok {
			out = append(out, sp.Clone())
		}
	}
	SortSavePoints(out)
	return out, nil
}

// ListCharacters returns every character with at least one save point.
func (s *Store) ListCharacters(_ context.Context) ([]string, error) {
	owners := s.characters.Owners()
	sort.Strings(owners)
	return owners, nil
}

// UpsertSession stores the latest version of a session record.
func (s *Store) UpsertSession(_ context.Context, sess *domain.GameSession) error {
	if sess.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("session id is required")
	}
	s.sessions.Set(sess.ID, sess.Clone())
	return nil
}

// GetSession returns a session record or domain.ErrSessionNotFound.
func (s *Store) GetSession(_ context.Context, id string) (*domain.GameSession, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// ListSessions returns session records in the given states (all when none given),
// ordered by start time.
func (s *Store) ListSessions(_ context.Context, states ...domain.SessionState) ([]*domain.GameSession, error) {
	var out []*domain.GameSession
	s.sessions.Range(func(_ string, sess *domain.GameSession) bool {
		if len(states) == 0 || slices.Contains(states, sess.State) {
			out = append(out, sess.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SavePointCount returns the number of stored save points.
func (s *Store) SavePointCount() int {
	return s.savePoints.Count()
}

// SessionCount returns the number of stored session records.
func (s *Store) SessionCount() int {
	return s.sessions.Count()
}

// All returns clones of every record, for snapshots.
func (s *Store) All() ([]*domain.GameSession, []*domain.SavePoint) {
	sessions := make([]*domain.GameSession, 0, s.sessions.Count())
	s.sessions.Range(func(_ string, sess *domain.GameSession) bool {
		sessions = append(sessions, sess.Clone())
		return true
	})
	points := make([]*domain.SavePoint, 0, s.savePoints.Count())
	s.savePoints.Range(func(_ string, sp *domain.SavePoint) bool {
		points = append(points, sp.Clone())
		return true
	})
	return sessions, points
}

// Reset drops every record. Used before loading a snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savePoints.Clear()
	s.sessions.Clear()
	s.characters.Clear()
}

// SortSavePoints orders save points oldest first; IDs break timestamp ties.
func SortSavePoints(points []*domain.SavePoint) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].CreatedAt != points[j].CreatedAt {
			return points[i].CreatedAt < points[j].CreatedAt
		}
		return points[i].ID < points[j].ID
	})
}
