package domain

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Identifier formats and session constraints.
const (
	// SessionIDPrefix is the prefix for game session IDs.
	SessionIDPrefix = "gs-"

	// SavePointIDPrefix is the prefix for save point IDs.
	SavePointIDPrefix = "sp-"

	MaxPlayerIDLength    = 128
	MaxCharacterIDLength = 128
	MaxEndReasonLength   = 256
)

// SessionState is the lifecycle state of a game session.
type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionPaused   SessionState = "paused"
	SessionEnded    SessionState = "ended"
	SessionCrashed  SessionState = "crashed"
	SessionRestored SessionState = "restored"
)

// IsTerminal reports whether the session duration is frozen in this state.
func (s SessionState) IsTerminal() bool {
	return s == SessionEnded || s == SessionCrashed
}

// ActivityType classifies a recorded activity.
type ActivityType string

const (
	ActivityCombat      ActivityType = "combat"
	ActivityCrafting    ActivityType = "crafting"
	ActivityTrading     ActivityType = "trading"
	ActivityExploration ActivityType = "exploration"
	ActivityQuest       ActivityType = "quest"
	ActivitySocial      ActivityType = "social"
	ActivityIdle        ActivityType = "idle"
)

// ValidActivityType reports whether t is a known activity type.
func ValidActivityType(t ActivityType) bool {
	switch t {
	case ActivityCombat, ActivityCrafting, ActivityTrading, ActivityExploration,
		ActivityQuest, ActivitySocial, ActivityIdle:
		return true
	}
	return false
}

// Rewards granted by an activity.
type Rewards struct {
	Experience int64    `json:"experience,omitempty"`
	Currency   int64    `json:"currency,omitempty"`
	Items      []string `json:"items,omitempty"`
}

// Activity is a timestamped thing the player did during a session.
type Activity struct {
	Type      ActivityType   `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Duration  int64          `json:"duration_ms,omitempty"`
	Success   bool           `json:"success"`
	Rewards   Rewards        `json:"rewards"`
	Details   map[string]any `json:"details,omitempty"`
}

// AreaVisit summarizes time spent in one area.
type AreaVisit struct {
	AreaID     string `json:"area_id"`
	EnteredAt  int64  `json:"entered_at"`
	LeftAt     int64  `json:"left_at,omitempty"`
	Kills      int    `json:"kills,omitempty"`
	ItemsFound int    `json:"items_found,omitempty"`
}

// Achievement unlocked during a session.
type Achievement struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UnlockedAt int64  `json:"unlocked_at"`
}

// SessionStats aggregates what happened during a session.
type SessionStats struct {
	PlayTime         int64 `json:"play_time_ms"`
	Kills            int64 `json:"kills"`
	Deaths           int64 `json:"deaths"`
	CurrencyEarned   int64 `json:"currency_earned"`
	ExperienceEarned int64 `json:"experience_earned"`
	ItemsFound       int64 `json:"items_found"`
	ItemsCrafted     int64 `json:"items_crafted"`
	QuestsCompleted  int64 `json:"quests_completed"`
	TradesCompleted  int64 `json:"trades_completed"`
	AreasVisited     int64 `json:"areas_visited"`
}

// GameSession is a player's live session with one character.
type GameSession struct {
	// ID is the unique identifier. Format: gs-{ulid_lowercase}.
	ID          string `json:"id"`
	PlayerID    string `json:"player_id"`
	CharacterID string `json:"character_id"`

	// StartTime and EndTime are Unix milliseconds; EndTime is 0 until the session ends.
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time,omitempty"`

	// Duration in milliseconds. Frozen once the session is ended or crashed.
	Duration int64 `json:"duration_ms"`

	// LastActive is the last lifecycle or activity timestamp (Unix milliseconds).
	LastActive int64 `json:"last_active"`

	// LastSaveAt is when the last save point of this session was created.
	LastSaveAt int64 `json:"last_save_at,omitempty"`

	State     SessionState `json:"state"`
	EndReason string       `json:"end_reason,omitempty"`

	CurrentArea string    `json:"current_area,omitempty"`
	Position    *Position `json:"position,omitempty"`

	Areas        []AreaVisit   `json:"areas,omitempty"`
	Activities   []Activity    `json:"activities,omitempty"`
	Achievements []Achievement `json:"achievements,omitempty"`
	Stats        SessionStats  `json:"stats"`

	// SavePoints lists the IDs of save points created during this session, oldest first.
	SavePoints []string `json:"save_points,omitempty"`

	Preferences Preferences `json:"preferences"`

	// pausedAt tracks the current pause so paused time is not counted as play time.
	pausedAt    int64
	pausedTotal int64

	mu sync.Mutex
}

// NewGameSession creates an active session with a generated ID.
func NewGameSession(playerID, characterID string, prefs Preferences) (*GameSession, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	return &GameSession{
		ID:          id,
		PlayerID:    playerID,
		CharacterID: characterID,
		StartTime:   now,
		LastActive:  now,
		State:       SessionActive,
		Preferences: prefs,
	}, nil
}

// GenerateSessionID generates a new session ID using ULID.
func GenerateSessionID() (string, error) {
	return generateID(SessionIDPrefix)
}

// GenerateSavePointID generates a new save point ID using ULID.
// IDs generated by one process sort in creation order.
func GenerateSavePointID() (string, error) {
	return generateID(SavePointIDPrefix)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func generateID(prefix string) (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return prefix + strings.ToLower(id.String()), nil
}

// IsValidSessionID checks if a string is a valid session ID.
func IsValidSessionID(id string) bool {
	return isValidID(id, SessionIDPrefix)
}

// IsValidSavePointID checks if a string is a valid save point ID.
func IsValidSavePointID(id string) bool {
	return isValidID(id, SavePointIDPrefix)
}

func isValidID(id, prefix string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, prefix) || len(id) != len(prefix)+ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id[len(prefix):]))
	return err == nil
}

// Validate validates identity fields.
func (s *GameSession) Validate() error {
	var violations []string
	if s.PlayerID == "" {
		violations = append(violations, "player_id is required")
	}
	if s.CharacterID == "" {
		violations = append(violations, "character_id is required")
	}
	if len(s.PlayerID) > MaxPlayerIDLength {
		violations = append(violations, "player_id exceeds 128 characters")
	}
	if len(s.CharacterID) > MaxCharacterIDLength {
		violations = append(violations, "character_id exceeds 128 characters")
	}
	if len(violations) > 0 {
		return ErrSessionValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Lock serializes mutations of the session. Only the session manager holds it.
func (s *GameSession) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *GameSession) Unlock() { s.mu.Unlock() }

// RefreshDuration recomputes Duration from the wall clock unless it is frozen.
// Paused time does not count towards play time.
func (s *GameSession) RefreshDuration(now int64) {
	if s.State.IsTerminal() {
		return
	}
	paused := s.pausedTotal
	if s.pausedAt > 0 {
		paused += now - s.pausedAt
	}
	d := now - s.StartTime
	if d < 0 {
		d = 0
	}
	s.Duration = d
	play := d - paused
	if play < 0 {
		play = 0
	}
	s.Stats.PlayTime = play
}

// MarkPaused records the start of a pause.
func (s *GameSession) MarkPaused(now int64) {
	s.State = SessionPaused
	s.pausedAt = now
	s.LastActive = now
}

// MarkResumed closes the current pause.
func (s *GameSession) MarkResumed(now int64) {
	if s.pausedAt > 0 {
		s.pausedTotal += now - s.pausedAt
		s.pausedAt = 0
	}
	s.State = SessionActive
	s.LastActive = now
}

// Finish freezes the session in a terminal state.
func (s *GameSession) Finish(state SessionState, reason string, now int64) {
	s.RefreshDuration(now)
	if s.pausedAt > 0 {
		s.pausedTotal += now - s.pausedAt
		s.pausedAt = 0
	}
	if len(reason) > MaxEndReasonLength {
		reason = reason[:MaxEndReasonLength]
	}
	s.EndTime = now
	s.State = state
	s.EndReason = reason
	s.LastActive = now
}

// Clone creates a deep copy of the session. The copy has its own lock.
func (s *GameSession) Clone() *GameSession {
	c := &GameSession{
		ID:          s.ID,
		PlayerID:    s.PlayerID,
		CharacterID: s.CharacterID,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Duration:    s.Duration,
		LastActive:  s.LastActive,
		LastSaveAt:  s.LastSaveAt,
		State:       s.State,
		EndReason:   s.EndReason,
		CurrentArea: s.CurrentArea,
		Stats:       s.Stats,
		Preferences: s.Preferences,
		pausedAt:    s.pausedAt,
		pausedTotal: s.pausedTotal,
	}
	if s.Position != nil {
		p := *s.Position
		c.Position = &p
	}
	c.Areas = append([]AreaVisit(nil), s.Areas...)
	c.Achievements = append([]Achievement(nil), s.Achievements...)
	c.SavePoints = append([]string(nil), s.SavePoints...)
	if s.Activities != nil {
		c.Activities = make([]Activity, len(s.Activities))
		for i, a := range s.Activities {
			a.Rewards.Items = append([]string(nil), a.Rewards.Items...)
			if a.Details != nil {
				d := make(map[string]any, len(a.Details))
				for k, v := range a.Details {
					d[k] = v
				}
				a.Details = d
			}
			c.Activities[i] = a
		}
	}
	return c
}

// StartTimeTime returns StartTime as time.Time.
func (s *GameSession) StartTimeTime() time.Time {
	return time.UnixMilli(s.StartTime)
}

// LastSaveTime returns LastSaveAt as time.Time, or the start time if nothing was saved yet.
func (s *GameSession) LastSaveTime() time.Time {
	if s.LastSaveAt == 0 {
		return time.UnixMilli(s.StartTime)
	}
	return time.UnixMilli(s.LastSaveAt)
}
