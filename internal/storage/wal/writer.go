package wal

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/waypoint-go/pkg/crypto/adaptive"
)

var (
	errInvalidMagic = errors.New("wal: invalid magic bytes")
	errClosed       = errors.New("wal: writer is closed")
)

// Segment file layout.
const (
	FilePrefix      = "wal-"
	FileExtension   = ".log"
	MagicBytes      = "WAYPWAL\x01"
	MagicBytesSize  = 8
	ChecksumSize    = sha256.Size
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// Defaults.
const (
	DefaultBatchCount           = 64
	DefaultSyncInterval         = time.Second
	DefaultMaxSegmentSize int64 = 32 << 20 // 32MB
)

// SyncMode defines when appended entries reach the disk.
type SyncMode string

const (
	// SyncModeSync writes and fsyncs on every append.
	SyncModeSync SyncMode = "sync"
	// SyncModeBatch buffers entries and flushes on count or interval.
	SyncModeBatch SyncMode = "batch"
)

// Config configures the WAL writer.
type Config struct {
	Dir string

	SyncMode     SyncMode
	SyncInterval time.Duration
	BatchCount   int

	MaxSegmentSize int64

	Cipher adaptive.Cipher
}

// DefaultConfig returns the default WAL configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		SyncMode:       SyncModeSync,
		SyncInterval:   DefaultSyncInterval,
		BatchCount:     DefaultBatchCount,
		MaxSegmentSize: DefaultMaxSegmentSize,
	}
}

func (c *Config) applyDefaults() {
	if c.SyncMode == "" {
		c.SyncMode = SyncModeSync
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.BatchCount <= 0 {
		c.BatchCount = DefaultBatchCount
	}
	if c.MaxSegmentSize <= 0 {
		c.MaxSegmentSize = DefaultMaxSegmentSize
	}
}

// Writer appends entries to rotating segment files.
//
// A finalized segment ends with a SHA-256 trailer over everything before it.
// The active segment has no trailer until Close or rotation.
type Writer struct {
	cfg Config

	mu        sync.Mutex
	segmentID uint64
	file      *os.File
	size      int64 // bytes written, trailer excluded
	hash      hash.Hash
	pending   [][]byte
	closed    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWriter opens the WAL directory and continues the latest open segment,
// or starts a new one when the latest is finalized.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wal: dir is required")
	}
	cfg.applyDefaults()
	if err := os.MkdirAll(cfg.Dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}

	w := &Writer{cfg: cfg, stopCh: make(chan struct{})}

	segs, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	reopened := false
	if n := len(segs); n > 0 {
		reopened, err = w.reopen(segs[n-1])
		if err != nil {
			return nil, err
		}
		w.segmentID = segs[n-1].id
	}
	if !reopened {
		w.segmentID++
		if err := w.openSegment(); err != nil {
			return nil, err
		}
	}

	if cfg.SyncMode == SyncModeBatch {
		w.wg.Add(1)
		go w.syncLoop()
	}
	return w, nil
}

// CurrentOffset returns (segmentID<<32 | bytes written in the segment).
// Everything appended before the call is covered by the offset once flushed.
func (w *Writer) CurrentOffset() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return (w.segmentID << 32) | uint64(uint32(w.size+pendingSize(w.pending)))
}

// Append writes one entry. In sync mode the entry is on disk when Append returns.
func (w *Writer) Append(entry *Entry) error {
	frame, err := encodeEntryFrame(entry, w.cfg.Cipher)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errClosed
	}

	w.pending = append(w.pending, frame)
	if w.cfg.SyncMode == SyncModeSync || len(w.pending) >= w.cfg.BatchCount {
		return w.flushLocked()
	}
	return nil
}

// Flush writes buffered entries and fsyncs the active segment.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.flushLocked()
}

// Rotate finalizes the active segment and opens the next one.
// Compaction only removes finalized segments.
func (w *Writer) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errClosed
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.finalizeLocked(); err != nil {
		return err
	}
	w.segmentID++
	return w.openSegment()
}

// Close flushes pending entries and finalizes the active segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	return w.finalizeLocked()
}

func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 || w.file == nil {
		return nil
	}

	var buf bytes.Buffer
	for _, frame := range w.pending {
		buf.Write(frame)
	}

	if w.size > MagicBytesSize && w.size+int64(buf.Len()) > w.cfg.MaxSegmentSize {
		if err := w.finalizeLocked(); err != nil {
			return err
		}
		w.segmentID++
		if err := w.openSegment(); err != nil {
			return err
		}
	}

	if err := w.write(buf.Bytes()); err != nil {
		return fmt.Errorf("wal: write: %w", err)
	}
	w.pending = w.pending[:0]
	return w.file.Sync()
}

func (w *Writer) syncLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Writer) openSegment() error {
	path := filepath.Join(w.cfg.Dir, segmentName(w.segmentID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}
	w.file = f
	w.size = 0
	w.hash = sha256.New()
	if err := w.write([]byte(MagicBytes)); err != nil {
		f.Close()
		w.file = nil
		return fmt.Errorf("wal: write magic: %w", err)
	}
	return nil
}

// reopen continues an unfinalized segment. It returns false when the segment
// is finalized and a new one must be started.
func (w *Writer) reopen(seg segment) (bool, error) {
	f, err := os.OpenFile(seg.path, os.O_RDWR, DefaultFilePerm)
	if err != nil {
		return false, fmt.Errorf("wal: open segment: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return false, err
	}

	finalized, dataLen, err := inspectSegment(f, st.Size())
	if err != nil || finalized {
		f.Close()
		if errors.Is(err, errInvalidMagic) {
			return false, nil
		}
		return false, err
	}

	// Drop a torn tail so new frames are not appended behind garbage.
	if end := validEnd(f, dataLen); end < dataLen {
		if err := f.Truncate(end); err != nil {
			f.Close()
			return false, fmt.Errorf("wal: truncate torn tail: %w", err)
		}
		dataLen = end
	}

	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, dataLen)); err != nil {
		f.Close()
		return false, fmt.Errorf("wal: hash segment: %w", err)
	}
	if _, err := f.Seek(dataLen, io.SeekStart); err != nil {
		f.Close()
		return false, err
	}
	w.file = f
	w.size = dataLen
	w.hash = h
	return true, nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.file.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
		w.size += int64(n)
	}
	return err
}

func (w *Writer) finalizeLocked() error {
	if w.file == nil {
		return nil
	}
	if _, err := w.file.Write(w.hash.Sum(nil)); err != nil {
		return fmt.Errorf("wal: write checksum: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// validEnd returns the offset just past the last intact frame.
func validEnd(f *os.File, dataLen int64) int64 {
	off := int64(MagicBytesSize)
	var lenBuf [4]byte
	for off+4 <= dataLen {
		if _, err := f.ReadAt(lenBuf[:], off); err != nil {
			break
		}
		length := int64(binary.BigEndian.Uint32(lenBuf[:]))
		if length < 5 || length > maxFrameSize || off+4+length > dataLen {
			break
		}
		frame := make([]byte, length)
		if _, err := f.ReadAt(frame, off+4); err != nil {
			break
		}
		if crc32.ChecksumIEEE(frame[4:]) != binary.BigEndian.Uint32(frame[:4]) {
			break
		}
		off += 4 + length
	}
	return off
}

func pendingSize(frames [][]byte) int64 {
	var n int64
	for _, f := range frames {
		n += int64(len(f))
	}
	return n
}

type segment struct {
	id   uint64
	path string
}

func segmentName(id uint64) string {
	return fmt.Sprintf("%s%08d%s", FilePrefix, id, FileExtension)
}

func parseSegmentName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExtension) {
		return 0, false
	}
	var id uint64
	_, err := fmt.Sscanf(name, FilePrefix+"%d"+FileExtension, &id)
	return id, err == nil
}

// listSegments returns the segments of dir ordered by id.
func listSegments(dir string) ([]segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: read dir: %w", err)
	}
	var segs []segment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := parseSegmentName(e.Name()); ok {
			segs = append(segs, segment{id: id, path: filepath.Join(dir, e.Name())})
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].id < segs[j].id })
	return segs, nil
}

// inspectSegment validates the magic and reports whether the segment carries
// a valid checksum trailer. dataLen excludes the trailer when present.
func inspectSegment(f *os.File, size int64) (finalized bool, dataLen int64, err error) {
	if size < MagicBytesSize {
		return false, 0, errInvalidMagic
	}
	magic := make([]byte, MagicBytesSize)
	if _, err := f.ReadAt(magic, 0); err != nil {
		return false, 0, fmt.Errorf("wal: read magic: %w", err)
	}
	if string(magic) != MagicBytes {
		return false, 0, errInvalidMagic
	}
	if size < MagicBytesSize+ChecksumSize {
		return false, size, nil
	}

	trailer := make([]byte, ChecksumSize)
	if _, err := f.ReadAt(trailer, size-ChecksumSize); err != nil {
		return false, 0, fmt.Errorf("wal: read trailer: %w", err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, size-ChecksumSize)); err != nil {
		return false, 0, fmt.Errorf("wal: hash: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), trailer) {
		return false, size, nil
	}
	return true, size - ChecksumSize, nil
}
