package config

import (
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// ServerConfig is the root configuration for waypoint-server.
type ServerConfig struct {
	Server    ServerSection      `koanf:"server"`
	Storage   StorageSection     `koanf:"storage"`
	Engine    EngineSection      `koanf:"engine"`
	Defaults  domain.Preferences `koanf:"defaults"`
	CloudSync CloudSyncSection   `koanf:"cloud_sync"`
	GameState GameStateSection   `koanf:"game_state"`
	Telemetry TelemetrySection   `koanf:"telemetry"`
	Log       LogSection         `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the admin HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// AdminAllowList restricts /admin/ to these IPs or CIDRs.
	AdminAllowList []string `koanf:"admin_allow_list"`

	AccessLog bool `koanf:"access_log"`
}

// StorageSection configures the durable backend.
type StorageSection struct {
	// Backend is one of "engine", "badger" or "sqlite".
	Backend               string        `koanf:"backend"`
	DataDir               string        `koanf:"data_dir"`
	WALSyncInterval       time.Duration `koanf:"wal_sync_interval"`
	SnapshotInterval      time.Duration `koanf:"snapshot_interval"`
	SnapshotKeep          int           `koanf:"snapshot_keep"`
	SnapshotRetentionDays int           `koanf:"snapshot_retention_days"`

	// EncryptionKey is either "wpk_<64 hex>" or a passphrase. Empty disables encryption.
	EncryptionKey string `koanf:"encryption_key"`

	Badger BadgerSection `koanf:"badger"`
}

// BadgerSection tunes the badger backend.
type BadgerSection struct {
	SyncWrites     bool          `koanf:"sync_writes"`
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
	CacheSize      int64         `koanf:"cache_size"`
}

// EngineSection tunes the continuity engine.
type EngineSection struct {
	AutoSaveInterval       time.Duration `koanf:"autosave_interval"`
	RetentionHorizon       time.Duration `koanf:"retention_horizon"`
	RetentionSchedule      string        `koanf:"retention_schedule"`
	MaxConcurrentSaves     int           `koanf:"max_concurrent_saves"`
	SavesPerSecond         float64       `koanf:"saves_per_second"`
	RestoreCategoryTimeout time.Duration `koanf:"restore_category_timeout"`
	TrustThreshold         float64       `koanf:"trust_threshold"`
	EventBuffer            int           `koanf:"event_buffer"`
	AutoRestoreCrashed     bool          `koanf:"auto_restore_crashed"`
}

// CloudSyncSection configures the Redis save point mirror.
type CloudSyncSection struct {
	Enabled         bool          `koanf:"enabled"`
	Addr            string        `koanf:"addr"`
	Password        string        `koanf:"password"`
	DB              int           `koanf:"db"`
	Prefix          string        `koanf:"prefix"`
	TTL             time.Duration `koanf:"ttl"`
	MaxPerCharacter int           `koanf:"max_per_character"`
}

// TelemetrySection configures tracing.
type TelemetrySection struct {
	// Exporter is one of "none", "stdout" or "otlp".
	Exporter string `koanf:"exporter"`
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GameStateSection selects where collaborator sub-state lives.
type GameStateSection struct {
	// Backend is "none" (capture empty sub-state, accept every restore) or "redis".
	Backend  string `koanf:"backend"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}
