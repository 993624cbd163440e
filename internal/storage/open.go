package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/waypoint-go/internal/core/service"
	"github.com/yndnr/waypoint-go/internal/storage/sqlite"
)

// Backend names accepted by Open.
const (
	BackendEngine = "engine"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Backend is a repository that owns resources.
type Backend interface {
	service.Repository
	Close() error
}

// OpenOptions selects and configures a backend.
type OpenOptions struct {
	Backend string
	Engine  Config

	// Registerer receives backend metrics when set.
	Registerer prometheus.Registerer
}

// Open opens the configured backend under opts.Engine.DataDir. The engine
// backend is recovered before it is returned.
func Open(ctx context.Context, opts OpenOptions) (Backend, error) {
	logger := opts.Engine.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dataDir := opts.Engine.DataDir
	if dataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}

	switch opts.Backend {
	case "", BackendEngine:
		e, err := New(opts.Engine)
		if err != nil {
			return nil, err
		}
		if err := e.Recover(ctx); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("storage: recover: %w", err)
		}
		return e, nil

	case BackendBadger:
		if opts.Engine.EncryptionKey != "" {
			logger.Warn("encryption_key is ignored by the badger backend")
		}
		kv, err := OpenBadger(filepath.Join(dataDir, "badger"), opts.Engine.Badger, logger)
		if err != nil {
			return nil, err
		}
		if opts.Registerer != nil {
			for _, c := range kv.Collectors() {
				if err := opts.Registerer.Register(c); err != nil {
					_ = kv.Close()
					return nil, fmt.Errorf("storage: register badger metrics: %w", err)
				}
			}
		}
		return NewKVRepository(kv), nil

	case BackendSQLite:
		if opts.Engine.EncryptionKey != "" {
			logger.Warn("encryption_key is ignored by the sqlite backend")
		}
		if err := mkdirFor(filepath.Join(dataDir, "waypoint.db")); err != nil {
			return nil, err
		}
		return sqlite.Open(filepath.Join(dataDir, "waypoint.db"))

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}
