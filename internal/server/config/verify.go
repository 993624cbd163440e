package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/telemetry/logger"
)

// Verify validates the configuration. It creates the data directory if needed.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyStorage(&cfg.Storage),
		verifyEngine(&cfg.Engine),
		verifyDefaults(&cfg.Defaults),
		verifyCloudSync(&cfg.CloudSync),
		verifyGameState(&cfg.GameState),
		verifyTelemetry(&cfg.Telemetry),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if cfg.HTTP.RateLimit < 0 || cfg.HTTP.RateBurst < 0 {
		return errors.New("server.http.rate_limit and rate_burst must not be negative")
	}
	for _, entry := range cfg.HTTP.AdminAllowList {
		if net.ParseIP(entry) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(entry); err != nil {
			return fmt.Errorf("server.http.admin_allow_list: %q is neither an IP nor a CIDR", entry)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case "engine", "badger", "sqlite":
	default:
		return fmt.Errorf("storage.backend %q is not one of engine, badger, sqlite", cfg.Backend)
	}
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if cfg.WALSyncInterval < 0 {
		return errors.New("storage.wal_sync_interval must not be negative")
	}
	if cfg.SnapshotKeep < 1 {
		return errors.New("storage.snapshot_keep must be at least 1")
	}
	if cfg.Badger.GCInterval < 0 {
		return errors.New("storage.badger.gc_interval must not be negative")
	}
	if r := cfg.Badger.GCDiscardRatio; r <= 0 || r >= 1 {
		return errors.New("storage.badger.gc_discard_ratio must be between 0 and 1")
	}
	return nil
}

func verifyEngine(cfg *EngineSection) error {
	var errs []error
	if cfg.AutoSaveInterval < domain.MinSaveInterval {
		errs = append(errs, fmt.Errorf("engine.autosave_interval must be at least %s", domain.MinSaveInterval))
	}
	if cfg.RetentionHorizon <= 0 {
		errs = append(errs, errors.New("engine.retention_horizon must be positive"))
	}
	if cfg.RetentionSchedule != "-" {
		if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
			errs = append(errs, fmt.Errorf("engine.retention_schedule: %w", err))
		}
	}
	if cfg.MaxConcurrentSaves < 1 {
		errs = append(errs, errors.New("engine.max_concurrent_saves must be at least 1"))
	}
	if cfg.SavesPerSecond < 0 {
		errs = append(errs, errors.New("engine.saves_per_second must not be negative"))
	}
	if cfg.TrustThreshold <= 0 || cfg.TrustThreshold > 1 {
		errs = append(errs, errors.New("engine.trust_threshold must be in (0, 1]"))
	}
	return errors.Join(errs...)
}

func verifyDefaults(p *domain.Preferences) error {
	if p.SaveInterval < domain.MinSaveInterval {
		return fmt.Errorf("defaults.save_interval must be at least %s", domain.MinSaveInterval)
	}
	if p.MaxSavePoints < 1 {
		return errors.New("defaults.max_save_points must be at least 1")
	}
	if p.CompressionLevel < 0 || p.CompressionLevel > domain.MaxCompressionLevel {
		return fmt.Errorf("defaults.compression_level must be between 0 and %d", domain.MaxCompressionLevel)
	}
	return nil
}

func verifyCloudSync(cfg *CloudSyncSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Addr == "" {
		return errors.New("cloud_sync.addr is required when cloud sync is enabled")
	}
	if cfg.TTL < 0 {
		return errors.New("cloud_sync.ttl must not be negative")
	}
	return nil
}

func verifyGameState(cfg *GameStateSection) error {
	switch cfg.Backend {
	case "", "none":
		return nil
	case "redis":
		if cfg.Addr == "" {
			return errors.New("game_state.addr is required for the redis backend")
		}
		return nil
	}
	return fmt.Errorf("game_state.backend %q is not one of none, redis", cfg.Backend)
}

func verifyTelemetry(cfg *TelemetrySection) error {
	switch cfg.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if cfg.Endpoint == "" {
			return errors.New("telemetry.endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("telemetry.exporter %q is not one of none, stdout, otlp", cfg.Exporter)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not valid", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text", "console":
		return nil
	}
	return fmt.Errorf("log.format %q is not one of json, text, console", cfg.Format)
}
