package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrKeyNotFound is returned by KVEngine.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// KVEngine is an ordered, embedded key-value store.
type KVEngine interface {
	// Get returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Update runs fn in a read-write transaction. Writes made through the
	// KVWriter commit together or not at all.
	Update(ctx context.Context, fn func(w KVWriter) error) error

	// Scan visits keys with prefix in key order until fn returns false.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Backup writes a full dump to w and returns the version it covers.
	Backup(ctx context.Context, w io.Writer) (uint64, error)

	// Restore replaces all content with a dump produced by Backup.
	Restore(ctx context.Context, r io.Reader) error

	Close() error
}

// KVWriter stages writes inside KVEngine.Update.
type KVWriter interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// BadgerOptions tunes the badger backend.
type BadgerOptions struct {
	// SyncWrites fsyncs every commit. Save points must survive a crash,
	// so it defaults to true.
	SyncWrites bool

	// GCInterval is the period of value-log garbage collection. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the share of stale data a value-log file needs
	// before GC rewrites it.
	GCDiscardRatio float64

	BlockCacheSize   int64
	ValueLogFileSize int64
}

// DefaultBadgerOptions returns the defaults used when the config leaves
// the badger section empty.
func DefaultBadgerOptions() BadgerOptions {
	return BadgerOptions{
		SyncWrites:       true,
		GCInterval:       10 * time.Minute,
		GCDiscardRatio:   0.5,
		BlockCacheSize:   64 << 20,
		ValueLogFileSize: 256 << 20,
	}
}

func (o *BadgerOptions) applyDefaults() {
	d := DefaultBadgerOptions()
	if o.GCDiscardRatio <= 0 || o.GCDiscardRatio >= 1 {
		o.GCDiscardRatio = d.GCDiscardRatio
	}
	if o.BlockCacheSize <= 0 {
		o.BlockCacheSize = d.BlockCacheSize
	}
	if o.ValueLogFileSize <= 0 {
		o.ValueLogFileSize = d.ValueLogFileSize
	}
}
