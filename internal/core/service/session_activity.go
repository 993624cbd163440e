package service

import (
	"context"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// ============================================================================
// Activity tracking
// ============================================================================

// RecordActivity appends an activity and folds its rewards into the session
// statistics. It returns false for unknown or non-active sessions.
func (m *SessionManager) RecordActivity(sessionID string, a domain.Activity) bool {
	if !domain.ValidActivityType(a.Type) {
		return false
	}
	return m.mutateActive(sessionID, func(s *domain.GameSession, now int64) {
		if a.Timestamp == 0 {
			a.Timestamp = now
		}
		s.Activities = append(s.Activities, a)
		s.Stats.ExperienceEarned += a.Rewards.Experience
		s.Stats.CurrencyEarned += a.Rewards.Currency
		s.Stats.ItemsFound += int64(len(a.Rewards.Items))

		if !a.Success {
			if a.Type == domain.ActivityCombat {
				s.Stats.Deaths++
			}
			return
		}
		switch a.Type {
		case domain.ActivityCombat:
			s.Stats.Kills++
			if n := len(s.Areas); n > 0 {
				s.Areas[n-1].Kills++
			}
		case domain.ActivityCrafting:
			s.Stats.ItemsCrafted++
		case domain.ActivityTrading:
			s.Stats.TradesCompleted++
		case domain.ActivityQuest:
			s.Stats.QuestsCompleted++
		}
		if n := len(s.Areas); n > 0 {
			s.Areas[n-1].ItemsFound += len(a.Rewards.Items)
		}
	})
}

// RecordAreaVisit closes the current area summary and opens a new one.
func (m *SessionManager) RecordAreaVisit(sessionID, areaID string) bool {
	if areaID == "" {
		return false
	}
	return m.mutateActive(sessionID, func(s *domain.GameSession, now int64) {
		if n := len(s.Areas); n > 0 && s.Areas[n-1].LeftAt == 0 {
			if s.Areas[n-1].AreaID == areaID {
				return
			}
			s.Areas[n-1].LeftAt = now
		}
		s.Areas = append(s.Areas, domain.AreaVisit{AreaID: areaID, EnteredAt: now})
		s.CurrentArea = areaID
		s.Stats.AreasVisited++
	})
}

// UnlockAchievement records an achievement once per session.
func (m *SessionManager) UnlockAchievement(sessionID, achievementID, name string) bool {
	if achievementID == "" {
		return false
	}
	return m.mutateActive(sessionID, func(s *domain.GameSession, now int64) {
		for _, a := range s.Achievements {
			if a.ID == achievementID {
				return
			}
		}
		s.Achievements = append(s.Achievements, domain.Achievement{ID: achievementID, Name: name, UnlockedAt: now})
	})
}

// UpdatePosition records where the character currently is.
func (m *SessionManager) UpdatePosition(sessionID string, pos domain.Position) bool {
	return m.mutateActive(sessionID, func(s *domain.GameSession, _ int64) {
		p := pos
		s.Position = &p
		if pos.AreaID != "" {
			s.CurrentArea = pos.AreaID
		}
	})
}

func (m *SessionManager) mutateActive(sessionID string, fn func(s *domain.GameSession, now int64)) bool {
	sess, ok := m.active.Get(sessionID)
	if !ok {
		return false
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.State != domain.SessionActive {
		return false
	}
	now := m.now().UnixMilli()
	fn(sess, now)
	sess.LastActive = now
	sess.RefreshDuration(now)
	return true
}

// ============================================================================
// Timeouts and crash recovery
// ============================================================================

// ExpireIdle ends sessions idle for longer than their session timeout and
// returns their IDs.
func (m *SessionManager) ExpireIdle(ctx context.Context) []string {
	now := m.now()
	var expired []string
	for _, sess := range m.ActiveSessions() {
		timeout := sess.Preferences.SessionTimeout
		if timeout <= 0 {
			continue
		}
		if now.Sub(time.UnixMilli(sess.LastActive)) < timeout {
			continue
		}
		ok, err := m.EndSession(ctx, sess.ID, EndReasonTimeout)
		if err != nil {
			m.logger.Warn("final save for idle session failed", "session_id", sess.ID, "error", err)
		}
		if ok {
			expired = append(expired, sess.ID)
		}
	}
	return expired
}

// RecoverCrashed marks persisted sessions that never ended as crashed and
// returns them. It runs once at startup, before new sessions are accepted.
func (m *SessionManager) RecoverCrashed(ctx context.Context) ([]*domain.GameSession, error) {
	if m.repo == nil {
		return nil, nil
	}
	stale, err := m.repo.ListSessions(ctx, domain.SessionActive, domain.SessionPaused)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	var recovered []*domain.GameSession
	for _, sess := range stale {
		if m.active.Has(sess.ID) {
			continue
		}
		// Freeze at the last moment the session was known alive.
		sess.Finish(domain.SessionCrashed, EndReasonCrash, sess.LastActive)
		if err := m.repo.UpsertSession(ctx, sess); err != nil {
			m.logger.Error("persist crashed session failed", "session_id", sess.ID, "error", err)
			continue
		}
		m.metrics.SessionCrashed()
		m.events.Publish(domain.Event{Type: domain.EventSessionCrashed, SessionID: sess.ID, CharacterID: sess.CharacterID})
		recovered = append(recovered, sess)
	}
	if len(recovered) > 0 {
		m.logger.Warn("recovered sessions from unclean shutdown", "count", len(recovered))
	}
	return recovered, nil
}

// MarkRestored records that a crashed session's character was restored.
func (m *SessionManager) MarkRestored(ctx context.Context, sessionID string) error {
	if m.repo == nil {
		return nil
	}
	sess, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State != domain.SessionCrashed {
		return domain.ErrSessionState.WithDetails("session is " + string(sess.State))
	}
	sess.State = domain.SessionRestored
	if err := m.repo.UpsertSession(ctx, sess); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}
