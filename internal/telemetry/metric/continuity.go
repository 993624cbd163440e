package metric

import (
	"sync/atomic"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// SaveTypes lists the save types counted individually.
var SaveTypes = []domain.SaveType{
	domain.SaveAuto,
	domain.SaveManual,
	domain.SaveCheckpoint,
	domain.SaveEmergency,
	domain.SaveLogout,
}

// Continuity holds process-wide continuity counters. All methods are safe
// for concurrent use.
type Continuity struct {
	sessionsStarted atomic.Int64
	sessionsEnded   atomic.Int64
	sessionsCrashed atomic.Int64

	saves        map[domain.SaveType]*atomic.Int64
	saveFailures map[domain.SaveType]*atomic.Int64

	restoresSucceeded atomic.Int64
	restoresFailed    atomic.Int64
	restoreLoadTotal  atomic.Int64 // milliseconds
	restoreCount      atomic.Int64

	sessionLengthTotal atomic.Int64 // milliseconds
	sessionLengthCount atomic.Int64

	integrityFailures atomic.Int64
}

// ContinuityStats is a point-in-time copy of the counters.
type ContinuityStats struct {
	SessionsStarted int64 `json:"sessions_started"`
	SessionsEnded   int64 `json:"sessions_ended"`
	SessionsCrashed int64 `json:"sessions_crashed"`

	Saves        map[domain.SaveType]int64 `json:"saves"`
	SaveFailures map[domain.SaveType]int64 `json:"save_failures"`

	RestoresSucceeded int64 `json:"restores_succeeded"`
	RestoresFailed    int64 `json:"restores_failed"`

	// AverageRestoreLoadMs and AverageSessionLengthMs are 0 when nothing was measured.
	AverageRestoreLoadMs   float64 `json:"average_restore_load_ms"`
	AverageSessionLengthMs float64 `json:"average_session_length_ms"`

	IntegrityFailures int64 `json:"integrity_failures"`
}

// NewContinuity creates zeroed counters.
func NewContinuity() *Continuity {
	c := &Continuity{
		saves:        make(map[domain.SaveType]*atomic.Int64, len(SaveTypes)),
		saveFailures: make(map[domain.SaveType]*atomic.Int64, len(SaveTypes)),
	}
	for _, t := range SaveTypes {
		c.saves[t] = new(atomic.Int64)
		c.saveFailures[t] = new(atomic.Int64)
	}
	return c
}

// The recording methods below implement service.Metrics.

// SessionStarted counts a new session.
func (c *Continuity) SessionStarted() { c.sessionsStarted.Add(1) }

// SessionEnded counts an ended session and adds its length to the average.
func (c *Continuity) SessionEnded(length time.Duration) {
	c.sessionsEnded.Add(1)
	c.sessionLengthTotal.Add(length.Milliseconds())
	c.sessionLengthCount.Add(1)
}

// SessionCrashed counts a session lost to an abnormal termination.
func (c *Continuity) SessionCrashed() { c.sessionsCrashed.Add(1) }

// SaveCreated counts a save point by type. Unknown types are ignored.
func (c *Continuity) SaveCreated(t domain.SaveType) {
	if n, ok := c.saves[t]; ok {
		n.Add(1)
	}
}

// SaveFailed counts a failed save by type. Unknown types are ignored.
func (c *Continuity) SaveFailed(t domain.SaveType) {
	if n, ok := c.saveFailures[t]; ok {
		n.Add(1)
	}
}

// RestoreCompleted counts a restore outcome and its load time.
func (c *Continuity) RestoreCompleted(success bool, loadTime time.Duration) {
	if success {
		c.restoresSucceeded.Add(1)
	} else {
		c.restoresFailed.Add(1)
	}
	c.restoreLoadTotal.Add(loadTime.Milliseconds())
	c.restoreCount.Add(1)
}

// IntegrityFailure counts a save point that failed verification.
func (c *Continuity) IntegrityFailure() { c.integrityFailures.Add(1) }

// Snapshot returns a copy of the counters.
func (c *Continuity) Snapshot() ContinuityStats {
	s := ContinuityStats{
		SessionsStarted:   c.sessionsStarted.Load(),
		SessionsEnded:     c.sessionsEnded.Load(),
		SessionsCrashed:   c.sessionsCrashed.Load(),
		Saves:             make(map[domain.SaveType]int64, len(c.saves)),
		SaveFailures:      make(map[domain.SaveType]int64, len(c.saveFailures)),
		RestoresSucceeded: c.restoresSucceeded.Load(),
		RestoresFailed:    c.restoresFailed.Load(),
		IntegrityFailures: c.integrityFailures.Load(),
	}
	for t, n := range c.saves {
		s.Saves[t] = n.Load()
	}
	for t, n := range c.saveFailures {
		s.SaveFailures[t] = n.Load()
	}
	if n := c.restoreCount.Load(); n > 0 {
		s.AverageRestoreLoadMs = float64(c.restoreLoadTotal.Load()) / float64(n)
	}
	if n := c.sessionLengthCount.Load(); n > 0 {
		s.AverageSessionLengthMs = float64(c.sessionLengthTotal.Load()) / float64(n)
	}
	return s
}

// Reset zeroes every counter.
func (c *Continuity) Reset() {
	for _, n := range []*atomic.Int64{
		&c.sessionsStarted, &c.sessionsEnded, &c.sessionsCrashed,
		&c.restoresSucceeded, &c.restoresFailed, &c.restoreLoadTotal, &c.restoreCount,
		&c.sessionLengthTotal, &c.sessionLengthCount, &c.integrityFailures,
	} {
		n.Store(0)
	}
	for _, n := range c.saves {
		n.Store(0)
	}
	for _, n := range c.saveFailures {
		n.Store(0)
	}
}
