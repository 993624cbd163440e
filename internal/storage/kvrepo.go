package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/storage/memory"
)

// Key layout:
//
//	sp/<characterID>/<savePointID> -> SavePoint JSON
//	gs/<sessionID>                 -> GameSession JSON
const (
	savePointPrefix = "sp/"
	sessionPrefix   = "gs/"
)

// KVRepository stores save points and session records in a KVEngine.
type KVRepository struct {
	kv KVEngine
}

// NewKVRepository creates a repository over kv. Closing the repository closes kv.
func NewKVRepository(kv KVEngine) *KVRepository {
	return &KVRepository{kv: kv}
}

func savePointKey(characterID, id string) []byte {
	return []byte(savePointPrefix + characterID + "/" + id)
}

// AppendSavePoint stores a save point.
func (r *KVRepository) AppendSavePoint(ctx context.Context, sp *domain.SavePoint) error {
	if sp.ID == "" || sp.CharacterID == "" {
		return domain.ErrInvalidArgument.WithDetails("save point id and character id are required")
	}
	data, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("kv: encode save point: %w", err)
	}
	err = r.kv.Update(ctx, func(w KVWriter) error {
		return w.Set(savePointKey(sp.CharacterID, sp.ID), data)
	})
	if err != nil {
		return fmt.Errorf("kv: put save point: %w", err)
	}
	return nil
}

// DeleteSavePoint removes a save point. Missing keys are ignored.
func (r *KVRepository) DeleteSavePoint(ctx context.Context, characterID, savePointID string) error {
	err := r.kv.Update(ctx, func(w KVWriter) error {
		return w.Delete(savePointKey(characterID, savePointID))
	})
	if err != nil {
		return fmt.Errorf("kv: delete save point: %w", err)
	}
	return nil
}

// ListSavePoints returns a character's save points, oldest first.
func (r *KVRepository) ListSavePoints(ctx context.Context, characterID string) ([]*domain.SavePoint, error) {
	var (
		out    []*domain.SavePoint
		decErr error
	)
	err := r.kv.Scan(ctx, []byte(savePointPrefix+characterID+"/"), func(key, value []byte) bool {
		sp := &domain.SavePoint{}
		if err := json.Unmarshal(value, sp); err != nil {
			decErr = fmt.Errorf("kv: decode %s: %w", key, err)
			return false
		}
		out = append(out, sp)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("kv: scan save points: %w", err)
	}
	if decErr != nil {
		return nil, decErr
	}
	memory.SortSavePoints(out)
	return out, nil
}

// ListCharacters returns every character with at least one save point.
func (r *KVRepository) ListCharacters(ctx context.Context) ([]string, error) {
	var out []string
	err := r.kv.Scan(ctx, []byte(savePointPrefix), func(key, _ []byte) bool {
		rest := bytes.TrimPrefix(key, []byte(savePointPrefix))
		i := bytes.LastIndexByte(rest, '/')
		if i <= 0 {
			return true
		}
		character := string(rest[:i])
		// Keys arrive sorted, so duplicates are adjacent.
		if n := len(out); n == 0 || out[n-1] != character {
			out = append(out, character)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("kv: scan characters: %w", err)
	}
	return out, nil
}

// UpsertSession writes the latest version of a session record.
func (r *KVRepository) UpsertSession(ctx context.Context, sess *domain.GameSession) error {
	if sess.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("session id is required")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("kv: encode session: %w", err)
	}
	err = r.kv.Update(ctx, func(w KVWriter) error {
		return w.Set([]byte(sessionPrefix+sess.ID), data)
	})
	if err != nil {
		return fmt.Errorf("kv: put session: %w", err)
	}
	return nil
}

// GetSession returns a session record or domain.ErrSessionNotFound.
func (r *KVRepository) GetSession(ctx context.Context, id string) (*domain.GameSession, error) {
	data, err := r.kv.Get(ctx, []byte(sessionPrefix+id))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get session: %w", err)
	}
	sess := &domain.GameSession{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("kv: decode session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns session records in the given states, ordered by start time.
func (r *KVRepository) ListSessions(ctx context.Context, states ...domain.SessionState) ([]*domain.GameSession, error) {
	var (
		out    []*domain.GameSession
		decErr error
	)
	err := r.kv.Scan(ctx, []byte(sessionPrefix), func(key, value []byte) bool {
		sess := &domain.GameSession{}
		if err := json.Unmarshal(value, sess); err != nil {
			decErr = fmt.Errorf("kv: decode %s: %w", key, err)
			return false
		}
		if len(states) == 0 || slices.Contains(states, sess.State) {
			out = append(out, sess)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("kv: scan sessions: %w", err)
	}
	if decErr != nil {
		return nil, decErr
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// KV exposes the underlying engine, for backups.
func (r *KVRepository) KV() KVEngine {
	return r.kv
}

// Compressed reports whether save points are compressed at rest.
func (r *KVRepository) Compressed() bool { return false }

// Encrypted reports whether save points are encrypted at rest.
func (r *KVRepository) Encrypted() bool { return false }

// Close closes the underlying engine.
func (r *KVRepository) Close() error {
	return r.kv.Close()
}
