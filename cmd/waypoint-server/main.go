// Command waypoint-server runs the Waypoint continuity engine: it tracks game
// sessions, takes save points, restores characters after crashes and serves
// the admin HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/core/service"
	"github.com/yndnr/waypoint-go/internal/infra/buildinfo"
	"github.com/yndnr/waypoint-go/internal/infra/confloader"
	"github.com/yndnr/waypoint-go/internal/infra/shutdown"
	"github.com/yndnr/waypoint-go/internal/server/config"
	"github.com/yndnr/waypoint-go/internal/server/httpserver"
	"github.com/yndnr/waypoint-go/internal/server/httpserver/handler"
	"github.com/yndnr/waypoint-go/internal/storage"
	"github.com/yndnr/waypoint-go/internal/storage/cloudsync"
	"github.com/yndnr/waypoint-go/internal/storage/gamestate"
	"github.com/yndnr/waypoint-go/internal/telemetry/logger"
	"github.com/yndnr/waypoint-go/internal/telemetry/metric"
	"github.com/yndnr/waypoint-go/internal/telemetry/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	build := buildinfo.Get()
	if *showVersion {
		fmt.Printf("waypoint-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stdout})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	log.Info("starting waypoint-server",
		"version", build.Version,
		"commit", build.Commit,
		"config", *configFile,
		"backend", cfg.Storage.Backend)
	log.Debug("effective configuration", "config", config.ToMap(config.Sanitize(cfg)))

	ctx := context.Background()
	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout)

	traces, err := tracer.New(ctx, tracer.Config{
		Exporter: cfg.Telemetry.Exporter,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	shutdownHandler.OnShutdown(traces.Shutdown)

	// Metrics come first so the backend can register its collectors.
	continuity := metric.NewContinuity()
	var sessions *service.SessionManager
	registry := metric.NewRegistry(continuity, func() int {
		if sessions == nil {
			return 0
		}
		return sessions.ActiveCount()
	})

	opts := cfg.StorageOptions(log)
	opts.Registerer = registry.Registerer()
	repo, err := storage.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing storage")
		return repo.Close()
	})

	collabs, err := initGameState(cfg, shutdownHandler)
	if err != nil {
		return err
	}

	var mirror service.SavePointMirror
	if cfg.CloudSync.Enabled {
		m, err := cloudsync.New(cloudsync.Config{
			Addr:            cfg.CloudSync.Addr,
			Password:        cfg.CloudSync.Password,
			DB:              cfg.CloudSync.DB,
			Prefix:          cfg.CloudSync.Prefix,
			TTL:             cfg.CloudSync.TTL,
			MaxPerCharacter: cfg.CloudSync.MaxPerCharacter,
		})
		if err != nil {
			return err
		}
		mirror = m
		shutdownHandler.OnShutdown(func(context.Context) error { return m.Close() })
		log.Info("cloud sync enabled", "addr", cfg.CloudSync.Addr)
	}

	events := service.NewEventBus(cfg.Engine.EventBuffer, log)
	events.Subscribe(func(e domain.Event) {
		log.Debug("event", "type", e.Type, "session_id", e.SessionID, "character_id", e.CharacterID, "save_point_id", e.SavePointID)
	})
	shutdownHandler.OnShutdown(func(context.Context) error {
		events.Close()
		return nil
	})

	local := service.NewLocalState()
	verifier := service.NewVerifier()
	store := service.NewSavePointStore(service.SavePointStoreConfig{
		Repository:       repo,
		Capturer:         service.NewCapturer(collabs, local, log),
		Verifier:         verifier,
		Mirror:           mirror,
		Metrics:          continuity,
		Events:           events,
		Logger:           log,
		RetentionHorizon: cfg.Engine.RetentionHorizon,
	})
	sessions = service.NewSessionManager(service.SessionManagerConfig{
		Repository: repo,
		Store:      store,
		Metrics:    continuity,
		Events:     events,
		Logger:     log,
		Defaults:   cfg.Defaults,
	})
	restorer := service.NewRestoreOrchestrator(service.RestoreConfig{
		Store:           store,
		Collaborators:   collabs,
		LocalState:      local,
		Metrics:         continuity,
		Events:          events,
		Logger:          log,
		TrustThreshold:  cfg.Engine.TrustThreshold,
		CategoryTimeout: cfg.Engine.RestoreCategoryTimeout,
	})

	if err := recoverCrashed(ctx, cfg, sessions, restorer, log); err != nil {
		return err
	}

	scheduler := service.NewScheduler(service.SchedulerConfig{
		Sessions:          sessions,
		Store:             store,
		Logger:            log,
		Tick:              cfg.Engine.AutoSaveInterval,
		RetentionSchedule: cfg.Engine.RetentionSchedule,
		MaxConcurrent:     cfg.Engine.MaxConcurrentSaves,
		SavesPerSecond:    cfg.Engine.SavesPerSecond,
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("stopping scheduler")
		scheduler.Stop()
		return nil
	})

	// Signals and crashes take one emergency save of every active session
	// before the graceful hooks run.
	shutdownHandler.OnEmergency(func(reason string) {
		n := scheduler.EmergencySave(context.Background())
		log.Warn("emergency save", "reason", reason, "sessions", n)
	})
	defer func() {
		if r := recover(); r != nil {
			shutdownHandler.RunEmergency(fmt.Sprint(r))
			panic(r)
		}
	}()

	apiHandler := handler.New(handler.Config{
		Sessions:   sessions,
		SavePoints: store,
		Restorer:   restorer,
		Verifier:   verifier,
		Continuity: continuity,
		Logger:     log,
		Version:    build.Version,
	})
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:        apiHandler,
		Metrics:        registry,
		Logger:         log,
		RateLimit:      cfg.Server.HTTP.RateLimit,
		RateBurst:      cfg.Server.HTTP.RateBurst,
		AdminAllowList: cfg.Server.HTTP.AdminAllowList,
		AccessLog:      cfg.Server.HTTP.AccessLog,
	})
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	if *configFile != "" {
		stop, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				stop()
				return nil
			})
		}
	}

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			cancelServe()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(serveCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(configFile)).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initGameState connects the collaborator stores. The "none" backend leaves
// every collaborator nil.
func initGameState(cfg *config.ServerConfig, h *shutdown.Handler) (service.Collaborators, error) {
	if cfg.GameState.Backend != "redis" {
		return service.Collaborators{}, nil
	}
	stores, err := gamestate.New(gamestate.Config{
		Addr:     cfg.GameState.Addr,
		Password: cfg.GameState.Password,
		DB:       cfg.GameState.DB,
		Prefix:   cfg.GameState.Prefix,
	})
	if err != nil {
		return service.Collaborators{}, err
	}
	h.OnShutdown(func(context.Context) error { return stores.Close() })
	return stores.Collaborators(), nil
}

// recoverCrashed marks sessions left open by an unclean shutdown as crashed
// and, when configured, restores their characters from the latest verified
// save point.
func recoverCrashed(ctx context.Context, cfg *config.ServerConfig, sessions *service.SessionManager, restorer *service.RestoreOrchestrator, log *slog.Logger) error {
	crashed, err := sessions.RecoverCrashed(ctx)
	if err != nil {
		return fmt.Errorf("recover crashed sessions: %w", err)
	}
	if !cfg.Engine.AutoRestoreCrashed {
		return nil
	}
	for _, sess := range crashed {
		result := restorer.AutoRestore(ctx, sess.CharacterID)
		if !result.Success {
			log.Warn("auto restore failed",
				"session_id", sess.ID,
				"character_id", sess.CharacterID,
				"errors", result.Errors)
			continue
		}
		if err := sessions.MarkRestored(ctx, sess.ID); err != nil {
			log.Warn("mark restored failed", "session_id", sess.ID, "error", err)
			continue
		}
		log.Info("character restored after crash",
			"session_id", sess.ID,
			"character_id", sess.CharacterID,
			"save_point_id", result.SavePointID,
			"integrity", result.DataIntegrity)
	}
	return nil
}

// watchConfig re-applies log.level when the config file changes. Other
// settings need a restart. The returned func stops the watcher.
func watchConfig(path string, log *slog.Logger) (func(), error) {
	w, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx, func() {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	return cancel, nil
}
