package config

import (
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:7180"
	DefaultShutdownTimeout = 10 * time.Second

	DefaultBackend               = "engine"
	DefaultDataDir               = "/var/lib/waypoint/data"
	DefaultWALSyncInterval       = 0
	DefaultSnapshotInterval      = 15 * time.Minute
	DefaultSnapshotKeep          = 3
	DefaultSnapshotRetentionDays = 7

	DefaultBadgerGCInterval     = 10 * time.Minute
	DefaultBadgerGCDiscardRatio = 0.5
	DefaultBadgerCacheSize      = 64 << 20

	DefaultAutoSaveInterval       = 60 * time.Second
	DefaultRetentionHorizon       = 7 * 24 * time.Hour
	DefaultRetentionSchedule      = "@every 1h"
	DefaultMaxConcurrentSaves     = 8
	DefaultRestoreCategoryTimeout = 5 * time.Second
	DefaultTrustThreshold         = 0.5
	DefaultEventBuffer            = 256

	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultCloudPrefix     = "waypoint:"
	DefaultCloudTTL        = 30 * 24 * time.Hour
	DefaultCloudMaxEntries = 10

	DefaultGameStateBackend = "none"

	DefaultExporter = "none"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ShutdownTimeout: DefaultShutdownTimeout,
			},
		},
		Storage: StorageSection{
			Backend:               DefaultBackend,
			DataDir:               DefaultDataDir,
			WALSyncInterval:       DefaultWALSyncInterval,
			SnapshotInterval:      DefaultSnapshotInterval,
			SnapshotKeep:          DefaultSnapshotKeep,
			SnapshotRetentionDays: DefaultSnapshotRetentionDays,
			Badger: BadgerSection{
				SyncWrites:     true,
				GCInterval:     DefaultBadgerGCInterval,
				GCDiscardRatio: DefaultBadgerGCDiscardRatio,
				CacheSize:      DefaultBadgerCacheSize,
			},
		},
		Engine: EngineSection{
			AutoSaveInterval:       DefaultAutoSaveInterval,
			RetentionHorizon:       DefaultRetentionHorizon,
			RetentionSchedule:      DefaultRetentionSchedule,
			MaxConcurrentSaves:     DefaultMaxConcurrentSaves,
			RestoreCategoryTimeout: DefaultRestoreCategoryTimeout,
			TrustThreshold:         DefaultTrustThreshold,
			EventBuffer:            DefaultEventBuffer,
			AutoRestoreCrashed:     true,
		},
		Defaults: domain.DefaultPreferences(),
		CloudSync: CloudSyncSection{
			Addr:            DefaultRedisAddr,
			Prefix:          DefaultCloudPrefix,
			TTL:             DefaultCloudTTL,
			MaxPerCharacter: DefaultCloudMaxEntries,
		},
		GameState: GameStateSection{
			Backend: DefaultGameStateBackend,
			Addr:    DefaultRedisAddr,
			Prefix:  DefaultCloudPrefix,
		},
		Telemetry: TelemetrySection{
			Exporter: DefaultExporter,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
