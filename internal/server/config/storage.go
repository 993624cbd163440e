package config

import (
	"log/slog"

	"github.com/yndnr/waypoint-go/internal/storage"
)

// StorageOptions maps the storage section onto storage.Open options.
func (c *ServerConfig) StorageOptions(logger *slog.Logger) storage.OpenOptions {
	s := c.Storage
	return storage.OpenOptions{
		Backend: s.Backend,
		Engine: storage.Config{
			DataDir:               s.DataDir,
			WALSyncInterval:       s.WALSyncInterval,
			SnapshotInterval:      s.SnapshotInterval,
			SnapshotKeep:          s.SnapshotKeep,
			SnapshotRetentionDays: s.SnapshotRetentionDays,
			EncryptionKey:         s.EncryptionKey,
			Badger: storage.BadgerOptions{
				SyncWrites:     s.Badger.SyncWrites,
				GCInterval:     s.Badger.GCInterval,
				GCDiscardRatio: s.Badger.GCDiscardRatio,
				BlockCacheSize: s.Badger.CacheSize,
			},
			Logger: logger,
		},
	}
}
