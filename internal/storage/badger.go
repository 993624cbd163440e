package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerEngine is a KVEngine backed by Badger v3. It runs value-log GC in
// the background until closed.
type BadgerEngine struct {
	db     *badger.DB
	opts   BadgerOptions
	logger *slog.Logger

	gcRuns     prometheus.Counter
	gcRewrites prometheus.Counter

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// OpenBadger opens or creates a database in dir.
func OpenBadger(dir string, opts BadgerOptions, logger *slog.Logger) (*BadgerEngine, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()

	bopts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger.With("component", "badger")}).
		WithSyncWrites(opts.SyncWrites).
		WithBlockCacheSize(opts.BlockCacheSize).
		WithValueLogFileSize(opts.ValueLogFileSize)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", dir, err)
	}

	e := &BadgerEngine{
		db:     db,
		opts:   opts,
		logger: logger,
		gcRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waypoint", Subsystem: "badger", Name: "gc_runs_total",
			Help: "Value-log garbage collection passes.",
		}),
		gcRewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waypoint", Subsystem: "badger", Name: "gc_rewrites_total",
			Help: "Value-log files rewritten by garbage collection.",
		}),
		stop: make(chan struct{}),
	}
	if opts.GCInterval > 0 {
		e.wg.Add(1)
		go e.gcLoop()
	}
	logger.Info("badger opened", "dir", dir, "sync_writes", opts.SyncWrites, "gc_interval", opts.GCInterval)
	return e, nil
}

func (e *BadgerEngine) Get(_ context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

func (e *BadgerEngine) Update(ctx context.Context, fn func(w KVWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return fn(txn)
	})
}

func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	return e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   64,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				return nil
			}
		}
		return nil
	})
}

// Backup streams a full dump in Badger's native backup format.
func (e *BadgerEngine) Backup(_ context.Context, w io.Writer) (uint64, error) {
	version, err := e.db.Backup(w, 0)
	if err != nil {
		return 0, fmt.Errorf("badger: backup: %w", err)
	}
	return version, nil
}

// Restore drops every key, then loads a dump written by Backup.
func (e *BadgerEngine) Restore(_ context.Context, r io.Reader) error {
	if err := e.db.DropAll(); err != nil {
		return fmt.Errorf("badger: drop existing data: %w", err)
	}
	if err := e.db.Load(r, 256); err != nil {
		return fmt.Errorf("badger: load backup: %w", err)
	}
	return nil
}

// CollectGarbage rewrites value-log files until Badger reports nothing left
// worth rewriting, and returns how many it rewrote.
func (e *BadgerEngine) CollectGarbage(ctx context.Context) (int, error) {
	e.gcRuns.Inc()
	n := 0
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.opts.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("badger: value-log gc: %w", err)
		}
		n++
		e.gcRewrites.Inc()
	}
	return n, nil
}

// Collectors returns the engine's metrics. Sizes are read at scrape time.
func (e *BadgerEngine) Collectors() []prometheus.Collector {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 { return float64(pick(e.db.Size())) }
	}
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "waypoint", Subsystem: "badger", Name: "lsm_size_bytes",
			Help: "Size of the LSM tree on disk.",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "waypoint", Subsystem: "badger", Name: "value_log_size_bytes",
			Help: "Size of the value log on disk.",
		}, size(func(_, vlog int64) int64 { return vlog })),
		e.gcRuns,
		e.gcRewrites,
	}
}

// Close stops GC and closes the database. Later calls return the first result.
func (e *BadgerEngine) Close() error {
	e.closeOnce.Do(func() {
		close(e.stop)
		e.wg.Wait()
		if err := e.db.Close(); err != nil {
			e.closeErr = fmt.Errorf("badger: close: %w", err)
		}
	})
	return e.closeErr
}

func (e *BadgerEngine) gcLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.opts.GCInterval)
			n, err := e.CollectGarbage(ctx)
			cancel()
			if err != nil {
				e.logger.Error("badger gc failed", "error", err)
			} else if n > 0 {
				e.logger.Debug("badger gc rewrote value-log files", "files", n)
			}
		}
	}
}

// badgerLogger routes Badger's printf logging into slog. Badger's info
// output is chatty, so it is logged at debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, args ...any)   { b.l.Error(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Warningf(f string, args ...any) { b.l.Warn(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Infof(f string, args ...any)    { b.l.Debug(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Debugf(f string, args ...any)   { b.l.Debug(fmt.Sprintf(f, args...)) }
