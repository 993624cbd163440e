// Package sqlite provides a SQLite-backed save point and session store.
//
// Writes go through Exec and reads through Query, each taking one statement
// and its parameters. Sessions are upserted; save points are insert-only and
// removed solely by retention.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
  id           TEXT PRIMARY KEY,
  player_id    TEXT NOT NULL,
  character_id TEXT NOT NULL,
  state        TEXT NOT NULL,
  start_time   INTEGER NOT NULL,
  last_active  INTEGER NOT NULL,
  record       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_sessions_state ON game_sessions (state);

CREATE TABLE IF NOT EXISTS save_points (
  id           TEXT PRIMARY KEY,
  character_id TEXT NOT NULL,
  session_id   TEXT NOT NULL,
  save_type    TEXT NOT NULL,
  created_at   INTEGER NOT NULL,
  record       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_save_points_character ON save_points (character_id, created_at);
`

// Store persists save points and sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at path and creates its tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Exec runs one write statement and returns the number of affected rows.
func (s *Store) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Query runs one read statement and calls scan once per row.
func (s *Store) Query(ctx context.Context, stmt string, scan func(*sql.Rows) error, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := s.sqlDB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// AppendSavePoint inserts a save point.
func (s *Store) AppendSavePoint(ctx context.Context, sp *domain.SavePoint) error {
	if sp.ID == "" || sp.CharacterID == "" {
		return domain.ErrInvalidArgument.WithDetails("save point id and character id are required")
	}
	record, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("encode save point: %w", err)
	}
	_, err = s.Exec(ctx,
		`INSERT INTO save_points (id, character_id, session_id, save_type, created_at, record)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.CharacterID, sp.SessionID, string(sp.Type), sp.CreatedAt, string(record),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvalidArgument.WithDetails("save point " + sp.ID + " already exists")
		}
		return fmt.Errorf("insert save point: %w", err)
	}
	return nil
}

// DeleteSavePoint removes a save point. Missing rows are ignored.
func (s *Store) DeleteSavePoint(ctx context.Context, characterID, savePointID string) error {
	if _, err := s.Exec(ctx,
		`DELETE FROM save_points WHERE character_id = ? AND id = ?`,
		characterID, savePointID,
	); err != nil {
		return fmt.Errorf("delete save point: %w", err)
	}
	return nil
}

// ListSavePoints returns a character's save points, oldest first.
func (s *Store) ListSavePoints(ctx context.Context, characterID string) ([]*domain.SavePoint, error) {
	var out []*domain.SavePoint
	err := s.Query(ctx,
		`SELECT record FROM save_points WHERE character_id = ? ORDER BY created_at, id`,
		func(rows *sql.Rows) error {
			var record string
			if err := rows.Scan(&record); err != nil {
				return err
			}
			sp := &domain.SavePoint{}
			if err := json.Unmarshal([]byte(record), sp); err != nil {
				return fmt.Errorf("decode save point: %w", err)
			}
			out = append(out, sp)
			return nil
		},
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list save points: %w", err)
	}
	return out, nil
}

// ListCharacters returns every character with at least one save point.
func (s *Store) ListCharacters(ctx context.Context) ([]string, error) {
	var out []string
	err := s.Query(ctx,
		`SELECT DISTINCT character_id FROM save_points ORDER BY character_id`,
		func(rows *sql.Rows) error {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return out, nil
}

// UpsertSession writes the latest version of a session record.
func (s *Store) UpsertSession(ctx context.Context, sess *domain.GameSession) error {
	if sess.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("session id is required")
	}
	record, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.Exec(ctx,
		`INSERT INTO game_sessions (id, player_id, character_id, state, start_time, last_active, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state,
		   last_active = excluded.last_active,
		   record = excluded.record`,
		sess.ID, sess.PlayerID, sess.CharacterID, string(sess.State), sess.StartTime, sess.LastActive, string(record),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession returns a session record or domain.ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.GameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT record FROM game_sessions WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess := &domain.GameSession{}
	if err := json.Unmarshal([]byte(record), sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// ListSessions returns session records in the given states, ordered by start time.
func (s *Store) ListSessions(ctx context.Context, states ...domain.SessionState) ([]*domain.GameSession, error) {
	stmt := `SELECT record FROM game_sessions`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		stmt += ` WHERE state IN (?` + strings.Repeat(`, ?`, len(states)-1) + `)`
		for _, st := range states {
			args = append(args, string(st))
		}
	}
	stmt += ` ORDER BY start_time, id`

	var out []*domain.GameSession
	err := s.Query(ctx, stmt, func(rows *sql.Rows) error {
		var record string
		if err := rows.Scan(&record); err != nil {
			return err
		}
		sess := &domain.GameSession{}
		if err := json.Unmarshal([]byte(record), sess); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		out = append(out, sess)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// Compressed reports whether save points are compressed at rest.
func (s *Store) Compressed() bool { return false }

// Encrypted reports whether save points are encrypted at rest.
func (s *Store) Encrypted() bool { return false }

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
