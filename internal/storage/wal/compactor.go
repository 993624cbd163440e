package wal

import (
	"errors"
	"fmt"
	"os"
)

// DefaultRetainCount is the number of segments kept regardless of snapshot coverage.
const DefaultRetainCount = 2

// Compactor removes segments already covered by a snapshot.
type Compactor struct {
	dir         string
	retainCount int
}

// CompactorOption configures the Compactor.
type CompactorOption func(*Compactor)

// WithRetainCount sets the number of segments to keep.
func WithRetainCount(n int) CompactorOption {
	return func(c *Compactor) {
		if n > 0 {
			c.retainCount = n
		}
	}
}

// NewCompactor creates a compactor for dir.
func NewCompactor(dir string, opts ...CompactorOption) *Compactor {
	c := &Compactor{dir: dir, retainCount: DefaultRetainCount}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compact deletes segments whose id is below the snapshot offset's segment,
// always keeping the newest retainCount segments. It returns the number removed.
func (c *Compactor) Compact(snapshotOffset uint64) (int, error) {
	segs, err := listSegments(c.dir)
	if err != nil {
		return 0, err
	}

	covered := snapshotOffset >> 32
	limit := len(segs) - c.retainCount
	var errs []error
	removed := 0
	for i := 0; i < limit; i++ {
		if segs[i].id >= covered {
			break
		}
		if err := os.Remove(segs[i].path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", segs[i].path, err))
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("wal: compaction: %w", errors.Join(errs...))
	}
	return removed, nil
}

// TotalSize returns the size of all segments in bytes.
func (c *Compactor) TotalSize() (int64, error) {
	segs, err := listSegments(c.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range segs {
		if st, err := os.Stat(s.path); err == nil {
			total += st.Size()
		}
	}
	return total, nil
}
