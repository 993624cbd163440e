package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/pkg/cmap"
)

// Reasons recorded when the engine ends a session itself.
const (
	EndReasonTimeout = "timeout"
	EndReasonCrash   = "unclean shutdown"
)

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	Repository SessionRepository
	Store      *SavePointStore
	Metrics    Metrics
	Events     *EventBus
	Logger     *slog.Logger

	// Defaults are merged under the preferences supplied at session start.
	Defaults domain.Preferences
}

// SessionManager owns the lifecycle of game sessions.
//
// The active set is only mutated here. Each session additionally has a save
// lock so at most one save point per session is in flight at any time.
type SessionManager struct {
	repo     SessionRepository
	store    *SavePointStore
	metrics  Metrics
	events   *EventBus
	logger   *slog.Logger
	defaults domain.Preferences

	active    *cmap.Map[string, *domain.GameSession]
	saveLocks *cmap.Map[string, *sync.Mutex]
	now       func() time.Time
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := cfg.Defaults
	if defaults == (domain.Preferences{}) {
		defaults = domain.DefaultPreferences()
	}
	return &SessionManager{
		repo:      cfg.Repository,
		store:     cfg.Store,
		metrics:   metricsOrNop(cfg.Metrics),
		events:    cfg.Events,
		logger:    logger,
		defaults:  defaults,
		active:    cmap.New[string, *domain.GameSession](),
		saveLocks: cmap.New[string, *sync.Mutex](),
		now:       time.Now,
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// StartSession creates an active session and takes a "session start" auto save.
// It fails only when the identifiers are invalid.
func (m *SessionManager) StartSession(ctx context.Context, playerID, characterID string, prefs *domain.PreferencesOverride) (string, error) {
	// 1. Build and validate
	sess, err := domain.NewGameSession(playerID, characterID, prefs.Merge(m.defaults))
	if err != nil {
		return "", err
	}
	if err := sess.Validate(); err != nil {
		return "", err
	}

	// 2. Register
	m.active.Set(sess.ID, sess)
	m.saveLocks.Set(sess.ID, &sync.Mutex{})
	m.metrics.SessionStarted()
	m.persist(ctx, sess)

	// 3. Initial save point; auto save failures are logged, not surfaced
	if _, err := m.save(ctx, sess, domain.SaveAuto, "session start"); err != nil {
		m.logger.Warn("session start save failed", "session_id", sess.ID, "error", err)
	}

	m.events.Publish(domain.Event{
		Type:        domain.EventSessionStarted,
		SessionID:   sess.ID,
		CharacterID: characterID,
	})
	m.logger.Info("session started", "session_id", sess.ID, "player_id", playerID, "character_id", characterID)
	return sess.ID, nil
}

// PauseSession moves an active session to paused and takes a manual save.
// It returns false when the session is unknown or not active. A non-nil error
// reports a failed manual save; the pause itself still happened.
func (m *SessionManager) PauseSession(ctx context.Context, sessionID string) (bool, error) {
	sess, ok := m.active.Get(sessionID)
	if !ok {
		return false, nil
	}

	sess.Lock()
	if sess.State != domain.SessionActive {
		sess.Unlock()
		return false, nil
	}
	now := m.now().UnixMilli()
	sess.RefreshDuration(now)
	sess.MarkPaused(now)
	sess.Unlock()

	_, err := m.save(ctx, sess, domain.SaveManual, "session paused")
	m.persist(ctx, sess)
	m.events.Publish(domain.Event{Type: domain.EventSessionPaused, SessionID: sessionID, CharacterID: sess.CharacterID})
	return true, err
}

// ResumeSession moves a paused session back to active.
// It returns false when the session is unknown or not paused.
func (m *SessionManager) ResumeSession(ctx context.Context, sessionID string) bool {
	sess, ok := m.active.Get(sessionID)
	if !ok {
		return false
	}

	sess.Lock()
	if sess.State != domain.SessionPaused {
		sess.Unlock()
		return false
	}
	sess.MarkResumed(m.now().UnixMilli())
	sess.Unlock()

	m.persist(ctx, sess)
	m.events.Publish(domain.Event{Type: domain.EventSessionResumed, SessionID: sessionID, CharacterID: sess.CharacterID})
	return true
}

// EndSession freezes the session, takes a final manual save, persists the
// record and removes it from the active set. It returns false for an unknown
// or already ended session without touching any counter. A non-nil error
// reports a failed final save.
func (m *SessionManager) EndSession(ctx context.Context, sessionID, reason string) (bool, error) {
	// Removing first makes a concurrent or repeated end a no-op.
	sess, ok := m.active.Pop(sessionID)
	if !ok {
		return false, nil
	}

	// Holding the save lock across the transition lets an in-flight save
	// finish first; saves queued behind it see the ended state and give up.
	mu := m.saveLock(sessionID)
	mu.Lock()
	sess.Lock()
	if sess.State.IsTerminal() {
		sess.Unlock()
		mu.Unlock()
		return false, nil
	}
	sess.Finish(domain.SessionEnded, reason, m.now().UnixMilli())
	duration := time.Duration(sess.Duration) * time.Millisecond
	sess.Unlock()

	_, err := m.saveLocked(ctx, sess, domain.SaveManual, describeEnd(reason))
	m.persist(ctx, sess)
	mu.Unlock()
	m.metrics.SessionEnded(duration)
	m.saveLocks.Delete(sessionID)

	m.events.Publish(domain.Event{
		Type:        domain.EventSessionEnded,
		SessionID:   sessionID,
		CharacterID: sess.CharacterID,
		Payload:     sess.Clone(),
	})
	m.logger.Info("session ended", "session_id", sessionID, "reason", reason, "duration", duration)
	return true, err
}

func describeEnd(reason string) string {
	if reason == "" {
		return "session ended"
	}
	return "session ended: " + reason
}

// CrashSession marks an active session crashed after an abnormal termination.
// No save is taken here; callers take the emergency save first.
func (m *SessionManager) CrashSession(ctx context.Context, sessionID string) bool {
	sess, ok := m.active.Pop(sessionID)
	if !ok {
		return false
	}
	mu := m.saveLock(sessionID)
	mu.Lock()
	sess.Lock()
	sess.Finish(domain.SessionCrashed, EndReasonCrash, m.now().UnixMilli())
	sess.Unlock()

	m.persist(ctx, sess)
	mu.Unlock()
	m.metrics.SessionCrashed()
	m.saveLocks.Delete(sessionID)
	m.events.Publish(domain.Event{Type: domain.EventSessionCrashed, SessionID: sessionID, CharacterID: sess.CharacterID})
	return true
}

// ============================================================================
// Save points
// ============================================================================

// CreateSavePoint takes a save point for an active session.
func (m *SessionManager) CreateSavePoint(ctx context.Context, sessionID string, saveType domain.SaveType, description string) (*domain.SavePoint, error) {
	sess, ok := m.active.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound.WithDetails(sessionID)
	}
	return m.save(ctx, sess, saveType, description)
}

// save serializes save points per session and records the result on the
// session. Sessions that ended or crashed while the caller waited are refused.
func (m *SessionManager) save(ctx context.Context, sess *domain.GameSession, saveType domain.SaveType, description string) (*domain.SavePoint, error) {
	mu := m.saveLock(sess.ID)
	mu.Lock()
	defer mu.Unlock()

	sess.Lock()
	state := sess.State
	sess.Unlock()
	if state.IsTerminal() {
		return nil, domain.ErrSessionState.WithDetails(fmt.Sprintf("session %s is %s", sess.ID, state))
	}
	return m.saveLocked(ctx, sess, saveType, description)
}

// saveLocked takes the save point. The caller holds the session's save lock.
func (m *SessionManager) saveLocked(ctx context.Context, sess *domain.GameSession, saveType domain.SaveType, description string) (*domain.SavePoint, error) {
	if m.store == nil {
		return nil, domain.ErrServiceUnavailable.WithDetails("no save point store")
	}

	sess.Lock()
	req := &CreateSavePointRequest{
		SessionID:   sess.ID,
		CharacterID: sess.CharacterID,
		Type:        saveType,
		Description: description,
		Area:        sess.CurrentArea,
		Preferences: sess.Preferences,
	}
	if sess.Position != nil {
		p := *sess.Position
		req.Position = &p
	}
	sess.Unlock()

	sp, err := m.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	sess.SavePoints = append(sess.SavePoints, sp.ID)
	sess.LastSaveAt = sp.CreatedAt
	sess.Unlock()
	return sp, nil
}

func (m *SessionManager) saveLock(sessionID string) *sync.Mutex {
	mu, _ := m.saveLocks.GetOrSet(sessionID, &sync.Mutex{})
	return mu
}

// persist upserts the session record. Failures are logged; the in-memory
// session remains authoritative until the next lifecycle transition.
func (m *SessionManager) persist(ctx context.Context, sess *domain.GameSession) {
	if m.repo == nil {
		return
	}
	sess.Lock()
	sess.RefreshDuration(m.now().UnixMilli())
	c := sess.Clone()
	sess.Unlock()

	if err := m.repo.UpsertSession(ctx, c); err != nil {
		m.logger.Error("persist session failed", "session_id", c.ID, "error", err)
	}
}

// ============================================================================
// Queries
// ============================================================================

// Get returns a copy of an active session with its duration refreshed.
func (m *SessionManager) Get(sessionID string) (*domain.GameSession, bool) {
	sess, ok := m.active.Get(sessionID)
	if !ok {
		return nil, false
	}
	sess.Lock()
	defer sess.Unlock()
	sess.RefreshDuration(m.now().UnixMilli())
	return sess.Clone(), true
}

// ActiveSessions returns copies of every session in the active set.
func (m *SessionManager) ActiveSessions() []*domain.GameSession {
	now := m.now().UnixMilli()
	sessions := m.active.Values()
	out := make([]*domain.GameSession, 0, len(sessions))
	for _, sess := range sessions {
		sess.Lock()
		sess.RefreshDuration(now)
		out = append(out, sess.Clone())
		sess.Unlock()
	}
	return out
}

// ActiveCount returns the size of the active set.
func (m *SessionManager) ActiveCount() int {
	return m.active.Count()
}

// Lookup returns a session from the active set or, failing that, the repository.
func (m *SessionManager) Lookup(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	if sess, ok := m.Get(sessionID); ok {
		return sess, nil
	}
	if m.repo == nil {
		return nil, domain.ErrSessionNotFound
	}
	return m.repo.GetSession(ctx, sessionID)
}

// List returns sessions in the given states. With no states it returns the
// active set; otherwise the repository is queried, with live sessions taking
// precedence over their persisted records.
func (m *SessionManager) List(ctx context.Context, states ...domain.SessionState) ([]*domain.GameSession, error) {
	if len(states) == 0 {
		return m.ActiveSessions(), nil
	}
	if m.repo == nil {
		return nil, nil
	}
	persisted, err := m.repo.ListSessions(ctx, states...)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	for i, sess := range persisted {
		if live, ok := m.Get(sess.ID); ok {
			persisted[i] = live
		}
	}
	return persisted, nil
}
