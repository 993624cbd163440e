package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// Scheduler defaults.
const (
	DefaultAutoSaveTick      = 60 * time.Second
	DefaultRetentionSchedule = "@every 1h"
	DefaultMaxConcurrent     = 8
	DefaultEmergencyTimeout  = 10 * time.Second
)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Sessions *SessionManager
	Store    *SavePointStore
	Logger   *slog.Logger

	// Tick is how often auto-save candidates are examined.
	Tick time.Duration

	// RetentionSchedule is a cron spec for the retention sweep. "-" disables it.
	RetentionSchedule string

	// MaxConcurrent bounds parallel saves per tick.
	MaxConcurrent int

	// SavesPerSecond paces auto saves. Zero means unlimited.
	SavesPerSecond float64

	// EmergencyTimeout bounds the whole emergency save.
	EmergencyTimeout time.Duration
}

// AutoSaveReport summarizes one auto-save pass.
type AutoSaveReport struct {
	Saved   int
	Failed  int
	Skipped int
	Expired int
}

// Scheduler drives periodic auto saves, the retention sweep and the
// single-shot emergency save.
type Scheduler struct {
	cfg      SchedulerConfig
	sessions *SessionManager
	store    *SavePointStore
	logger   *slog.Logger
	limiter  *rate.Limiter
	cron     *cron.Cron

	emergencyFired atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler creates a Scheduler. Start must be called to run it.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultAutoSaveTick
	}
	if cfg.RetentionSchedule == "" {
		cfg.RetentionSchedule = DefaultRetentionSchedule
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.EmergencyTimeout <= 0 {
		cfg.EmergencyTimeout = DefaultEmergencyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	burst := cfg.MaxConcurrent
	if cfg.SavesPerSecond > 0 {
		limit = rate.Limit(cfg.SavesPerSecond)
	}
	return &Scheduler{
		cfg:      cfg,
		sessions: cfg.Sessions,
		store:    cfg.Store,
		logger:   cfg.Logger,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Start launches the auto-save loop and the retention cron job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if s.cfg.RetentionSchedule != "-" && s.store != nil {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.RetentionSchedule, s.sweep); err != nil {
			return fmt.Errorf("invalid retention schedule %q: %w", s.cfg.RetentionSchedule, err)
		}
		c.Start()
		s.cron = c
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(loopCtx)

	s.logger.Info("scheduler started",
		"tick", s.cfg.Tick,
		"retention_schedule", s.cfg.RetentionSchedule,
		"max_concurrent", s.cfg.MaxConcurrent,
	)
	return nil
}

// Stop halts the loop and waits for the current pass and sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.done
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	<-done
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r := s.AutoSaveOnce(ctx)
			if r.Saved+r.Failed+r.Expired > 0 {
				s.logger.Debug("auto-save pass",
					"saved", r.Saved, "failed", r.Failed, "skipped", r.Skipped, "expired", r.Expired)
			}
		}
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Tick)
	defer cancel()
	if _, err := s.store.Sweep(ctx); err != nil {
		s.logger.Error("retention sweep failed", "error", err)
	}
}

// AutoSaveOnce ends idle sessions, then takes an auto save for every active
// session with auto save enabled whose interval has elapsed. A failed save
// is logged and never blocks the other sessions.
func (s *Scheduler) AutoSaveOnce(ctx context.Context) AutoSaveReport {
	var report AutoSaveReport
	report.Expired = len(s.sessions.ExpireIdle(ctx))

	// Half a tick of slack keeps a session whose interval equals the tick
	// from slipping to every other tick.
	slack := s.cfg.Tick / 2
	now := time.Now()

	var saved, failed, skipped atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrent)
	for _, sess := range s.sessions.ActiveSessions() {
		if sess.State != domain.SessionActive || !sess.Preferences.AutoSave {
			continue
		}
		if now.Sub(sess.LastSaveTime()) < sess.Preferences.SaveInterval-slack {
			continue
		}
		id := sess.ID
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				skipped.Add(1)
				return nil
			}
			if _, err := s.sessions.CreateSavePoint(ctx, id, domain.SaveAuto, "auto save"); err != nil {
				failed.Add(1)
				s.logger.Warn("auto save failed", "session_id", id, "error", err)
				return nil
			}
			saved.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Saved = int(saved.Load())
	report.Failed = int(failed.Load())
	report.Skipped = int(skipped.Load())
	return report
}

// EmergencySave takes an emergency save for every active session that allows
// it and marks every active session crashed. Only the first call does any
// work; later calls return 0 immediately. It never panics.
func (s *Scheduler) EmergencySave(ctx context.Context) (attempted int) {
	if !s.emergencyFired.CompareAndSwap(false, true) {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("emergency save panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EmergencyTimeout)
	defer cancel()

	sessions := s.sessions.ActiveSessions()
	s.logger.Warn("emergency save triggered", "sessions", len(sessions))

	var count atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrent)
	for _, sess := range sessions {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("emergency save panicked", "session_id", sess.ID, "panic", r)
				}
			}()
			if sess.Preferences.EmergencySave {
				count.Add(1)
				if _, err := s.sessions.CreateSavePoint(ctx, sess.ID, domain.SaveEmergency, "emergency save"); err != nil {
					s.logger.Error("emergency save failed", "session_id", sess.ID, "error", err)
				}
			}
			s.sessions.CrashSession(ctx, sess.ID)
			return nil
		})
	}
	_ = g.Wait()
	return int(count.Load())
}

// EmergencyFired reports whether the emergency save already ran.
func (s *Scheduler) EmergencyFired() bool {
	return s.emergencyFired.Load()
}
