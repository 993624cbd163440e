package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/storage/memory"
	"github.com/yndnr/waypoint-go/internal/storage/snapshot"
	"github.com/yndnr/waypoint-go/internal/storage/wal"
	"github.com/yndnr/waypoint-go/pkg/crypto/adaptive"
)

// Default configuration values.
const (
	DefaultSnapshotInterval = 15 * time.Minute
	DefaultWALDir           = "wal"
	DefaultSnapshotDir      = "snapshots"
	saltFile                = "keysalt"
)

// Config configures the storage engine.
type Config struct {
	// DataDir is the base directory for WAL segments and snapshot files.
	DataDir string

	// WALSyncInterval switches the WAL to batch mode when positive.
	// Zero keeps every append synchronous.
	WALSyncInterval time.Duration

	// SnapshotInterval is the interval between automatic snapshots.
	SnapshotInterval time.Duration

	// SnapshotKeep and SnapshotRetentionDays bound the snapshot files kept on disk.
	SnapshotKeep          int
	SnapshotRetentionDays int

	// EncryptionKey enables encryption at rest: a "wpk_" raw key or a passphrase.
	EncryptionKey string

	// Badger is used only by the badger backend.
	Badger BadgerOptions

	Logger *slog.Logger
}

// DefaultConfig returns the default engine configuration for dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		SnapshotInterval: DefaultSnapshotInterval,
		SnapshotKeep:     snapshot.DefaultRetentionCount,
		Badger:           DefaultBadgerOptions(),
	}
}

// Engine is the default backend: an in-memory store made durable by a WAL
// and periodic snapshots.
type Engine struct {
	cfg Config

	store    *memory.Store
	wal      *wal.Writer
	walCfg   wal.Config
	snapshot *snapshot.Manager

	encrypted bool
	logger    *slog.Logger

	// mu orders WAL appends with their memory application, so replay order
	// matches the order readers observed.
	mu sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
	closed bool
}

// New opens the engine's directories. Call Recover before serving.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = DefaultSnapshotInterval
	}

	walCfg := wal.DefaultConfig(filepath.Join(cfg.DataDir, DefaultWALDir))
	if cfg.WALSyncInterval > 0 {
		walCfg.SyncMode = wal.SyncModeBatch
		walCfg.SyncInterval = cfg.WALSyncInterval
	}
	snapCfg := snapshot.DefaultConfig(filepath.Join(cfg.DataDir, DefaultSnapshotDir))
	if cfg.SnapshotKeep > 0 {
		snapCfg.RetentionCount = cfg.SnapshotKeep
	}
	if cfg.SnapshotRetentionDays > 0 {
		snapCfg.RetentionDays = cfg.SnapshotRetentionDays
	}

	if cfg.EncryptionKey != "" {
		walCipher, snapCipher, err := ciphers(cfg.EncryptionKey, filepath.Join(cfg.DataDir, saltFile))
		if err != nil {
			return nil, fmt.Errorf("storage: encryption: %w", err)
		}
		walCfg.Cipher = walCipher
		snapCfg.Cipher = snapCipher
	}

	snapMgr, err := snapshot.NewManager(snapCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
	}
	walWriter, err := wal.NewWriter(walCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create wal writer: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		store:     memory.New(),
		wal:       walWriter,
		walCfg:    walCfg,
		snapshot:  snapMgr,
		encrypted: walCfg.Cipher != nil,
		logger:    cfg.Logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go e.backgroundLoop()
	return e, nil
}

func ciphers(secret, saltPath string) (adaptive.Cipher, adaptive.Cipher, error) {
	if err := mkdirFor(saltPath); err != nil {
		return nil, nil, err
	}
	master, err := adaptive.MasterKey(secret, saltPath)
	if err != nil {
		return nil, nil, err
	}
	defer adaptive.Zero(master)

	out := make([]adaptive.Cipher, 0, 2)
	for _, purpose := range []string{"wal", "snapshot"} {
		key, err := adaptive.Subkey(master, purpose)
		if err != nil {
			return nil, nil, err
		}
		c, err := adaptive.New(key)
		adaptive.Zero(key)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}
	return out[0], out[1], nil
}

// Recover rebuilds memory from the newest valid snapshot plus the WAL written after it.
func (e *Engine) Recover(ctx context.Context) error {
	start := time.Now()
	e.store.Reset()

	var offset uint64
	state, info, err := e.snapshot.Load()
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshots):
		e.logger.Info("no snapshot found, replaying full wal")
	case err != nil:
		return fmt.Errorf("load snapshot: %w", err)
	default:
		for _, sess := range state.Sessions {
			e.store.UpsertSession(ctx, sess)
		}
		for _, sp := range state.SavePoints {
			e.store.AppendSavePoint(ctx, sp)
		}
		offset = info.WALLastOffset
		e.logger.Info("snapshot loaded",
			"snapshot_id", info.ID,
			"session_count", info.SessionCount,
			"save_point_count", info.SavePointCount)
	}

	applied, err := e.replay(ctx, offset)
	if err != nil {
		return fmt.Errorf("replay wal: %w", err)
	}

	e.logger.Info("storage recovery completed",
		"wal_entries_applied", applied,
		"save_point_count", e.store.SavePointCount(),
		"session_count", e.store.SessionCount(),
		"elapsed", time.Since(start))
	return nil
}

func (e *Engine) replay(ctx context.Context, from uint64) (int, error) {
	r, err := wal.NewReader(e.walCfg.Dir, e.walCfg.Cipher)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	r.Seek(from)

	applied := 0
	for {
		entry, err := r.Read()
		if errors.Is(err, io.EOF) {
			return applied, nil
		}
		if err != nil {
			return applied, err
		}
		if err := e.apply(ctx, entry); err != nil {
			e.logger.Warn("skip wal entry", "op", entry.OpType.String(), "error", err)
			continue
		}
		applied++
	}
}

func (e *Engine) apply(ctx context.Context, entry *wal.Entry) error {
	switch entry.OpType {
	case wal.OpTypeSavePut:
		return e.store.AppendSavePoint(ctx, entry.SavePoint)
	case wal.OpTypeSaveDelete:
		return e.store.DeleteSavePoint(ctx, entry.CharacterID, entry.SavePointID)
	case wal.OpTypeSessionUpsert:
		return e.store.UpsertSession(ctx, entry.Session)
	default:
		return wal.ErrInvalidEntryType
	}
}

// write logs the entry and then applies it to memory.
func (e *Engine) write(ctx context.Context, entry *wal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.wal.Append(entry); err != nil {
		return fmt.Errorf("write wal: %w", err)
	}
	return e.apply(ctx, entry)
}

// AppendSavePoint durably stores a save point.
func (e *Engine) AppendSavePoint(ctx context.Context, sp *domain.SavePoint) error {
	if sp.ID == "" || sp.CharacterID == "" {
		return domain.ErrInvalidArgument.WithDetails("save point id and character id are required")
	}
	return e.write(ctx, wal.NewSavePutEntry(sp))
}

// DeleteSavePoint durably removes a save point.
func (e *Engine) DeleteSavePoint(ctx context.Context, characterID, savePointID string) error {
	return e.write(ctx, wal.NewSaveDeleteEntry(characterID, savePointID))
}

// ListSavePoints returns a character's save points, oldest first.
func (e *Engine) ListSavePoints(ctx context.Context, characterID string) ([]*domain.SavePoint, error) {
	return e.store.ListSavePoints(ctx, characterID)
}

// ListCharacters returns every character with save points.
func (e *Engine) ListCharacters(ctx context.Context) ([]string, error) {
	return e.store.ListCharacters(ctx)
}

// UpsertSession durably stores the latest version of a session.
func (e *Engine) UpsertSession(ctx context.Context, sess *domain.GameSession) error {
	if sess.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("session id is required")
	}
	return e.write(ctx, wal.NewSessionUpsertEntry(sess))
}

// GetSession returns a session record.
func (e *Engine) GetSession(ctx context.Context, id string) (*domain.GameSession, error) {
	return e.store.GetSession(ctx, id)
}

// ListSessions returns session records in the given states.
func (e *Engine) ListSessions(ctx context.Context, states ...domain.SessionState) ([]*domain.GameSession, error) {
	return e.store.ListSessions(ctx, states...)
}

// Compressed reports whether save points are compressed at rest.
func (e *Engine) Compressed() bool { return false }

// Encrypted reports whether WAL bodies and snapshots are encrypted.
func (e *Engine) Encrypted() bool { return e.encrypted }

// TriggerSnapshot writes a snapshot, prunes old ones and compacts the WAL.
//
// The WAL is rotated under the write lock so the snapshot covers exactly the
// finalized segments; compaction never touches the active segment.
func (e *Engine) TriggerSnapshot(ctx context.Context) (*snapshot.Info, error) {
	e.mu.Lock()
	if err := e.wal.Rotate(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("rotate wal: %w", err)
	}
	offset := e.wal.CurrentOffset()
	sessions, points := e.store.All()
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := e.snapshot.Create(&snapshot.State{Sessions: sessions, SavePoints: points}, offset)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	e.logger.Info("snapshot created",
		"snapshot_id", info.ID,
		"session_count", info.SessionCount,
		"save_point_count", info.SavePointCount,
		"size_bytes", info.Size)

	if _, err := e.snapshot.Prune(); err != nil {
		e.logger.Warn("snapshot prune failed", "error", err)
	}
	if removed, err := wal.NewCompactor(e.walCfg.Dir).Compact(offset); err != nil {
		e.logger.Warn("wal compaction failed", "error", err)
	} else if removed > 0 {
		e.logger.Debug("wal compacted", "segments_removed", removed)
	}
	return info, nil
}

func (e *Engine) backgroundLoop() {
	defer close(e.doneCh)
	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := e.TriggerSnapshot(ctx); err != nil {
				e.logger.Error("auto snapshot failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// Close stops the snapshot loop and finalizes the WAL.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stopCh)
	<-e.doneCh

	if err := e.wal.Close(); err != nil {
		return fmt.Errorf("close wal: %w", err)
	}
	e.logger.Info("storage engine closed")
	return nil
}

func mkdirFor(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return nil
}
