package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/pkg/crypto/adaptive"
)

var magicBytes = []byte("WPSNAP\x00\x01")

const (
	filePrefix    = "snapshot-"
	fileExtension = ".snap"
	checksumSize  = sha256.Size
	headerVersion = 1

	DefaultRetentionCount = 5
	DefaultRetentionDays  = 7
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrNoSnapshots      = errors.New("snapshot: no snapshots available")
)

// aad binds encrypted snapshot data to this file type.
var aad = []byte("waypoint-snapshot")

type header struct {
	Version        int    `json:"version"`
	CreatedAt      int64  `json:"created_at"`
	SessionCount   int    `json:"session_count"`
	SavePointCount int    `json:"save_point_count"`
	WALLastOffset  uint64 `json:"wal_last_offset"`
	Encrypted      bool   `json:"encrypted"`
}

// State is the full content of a snapshot.
type State struct {
	Sessions   []*domain.GameSession `json:"sessions"`
	SavePoints []*domain.SavePoint   `json:"save_points"`
}

// Info describes a snapshot file.
type Info struct {
	ID string `json:"id"`

	// WALLastOffset is the WAL composite offset covered by this snapshot.
	WALLastOffset uint64 `json:"wal_last_offset"`

	SessionCount   int    `json:"session_count"`
	SavePointCount int    `json:"save_point_count"`
	CreatedAt      int64  `json:"created_at"`
	Size           int64  `json:"size"`
	Path           string `json:"path"`
	Checksum       string `json:"checksum,omitempty"`
}

// Config configures the snapshot manager.
type Config struct {
	Dir string

	// RetentionCount keeps the newest N snapshots.
	RetentionCount int
	// RetentionDays keeps snapshots younger than N days.
	RetentionDays int

	Cipher adaptive.Cipher
}

// DefaultConfig returns the default snapshot configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
		RetentionDays:  DefaultRetentionDays,
	}
}

// Manager writes, loads and prunes snapshot files.
type Manager struct {
	cfg Config
	now func() time.Time
}

// NewManager creates the snapshot directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if cfg.RetentionDays < 0 {
		cfg.RetentionDays = 0
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// Create writes state to a new snapshot file. The file appears atomically
// under its final name once fully written and synced.
func (m *Manager) Create(state *State, walLastOffset uint64) (*Info, error) {
	now := m.now()
	id := m.nextID(now)

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal state: %w", err)
	}
	if m.cfg.Cipher != nil {
		if data, err = m.cfg.Cipher.Encrypt(data, aad); err != nil {
			return nil, fmt.Errorf("snapshot: encrypt: %w", err)
		}
	}

	hdr, err := json.Marshal(header{
		Version:        headerVersion,
		CreatedAt:      now.UnixMilli(),
		SessionCount:   len(state.Sessions),
		SavePointCount: len(state.SavePoints),
		WALLastOffset:  walLastOffset,
		Encrypted:      m.cfg.Cipher != nil,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}

	tmp := filepath.Join(m.cfg.Dir, id+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tmp)

	h := sha256.New()
	w := bufio.NewWriter(io.MultiWriter(f, h))
	w.Write(magicBytes)
	writeBlock(w, hdr)
	writeBlock(w, data)
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("snapshot: write: %w", err)
	}

	sum := h.Sum(nil)
	if _, err := f.Write(sum); err != nil {
		f.Close()
		return nil, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	final := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tmp, final); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}
	st, err := os.Stat(final)
	if err != nil {
		return nil, err
	}

	return &Info{
		ID:             id,
		WALLastOffset:  walLastOffset,
		SessionCount:   len(state.Sessions),
		SavePointCount: len(state.SavePoints),
		CreatedAt:      now.UnixMilli(),
		Size:           st.Size(),
		Path:           final,
		Checksum:       hex.EncodeToString(sum),
	}, nil
}

// Load returns the newest snapshot that passes its checksum, falling back to
// older files when the newest is damaged.
func (m *Manager) Load() (*State, *Info, error) {
	infos, err := m.List()
	if err != nil {
		return nil, nil, err
	}
	for i := len(infos) - 1; i >= 0; i-- {
		state, info, err := m.load(infos[i].Path)
		if err == nil {
			return state, info, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, ErrNoSnapshots
}

func (m *Manager) load(path string) (*State, *Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) < len(magicBytes)+checksumSize {
		return nil, nil, ErrChecksumMismatch
	}

	body, trailer := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], trailer) {
		return nil, nil, ErrChecksumMismatch
	}
	if !bytes.HasPrefix(body, magicBytes) {
		return nil, nil, ErrInvalidMagic
	}

	rest := body[len(magicBytes):]
	hdrJSON, rest, err := readBlock(rest)
	if err != nil {
		return nil, nil, err
	}
	data, _, err := readBlock(rest)
	if err != nil {
		return nil, nil, err
	}

	var hdr header
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}
	switch {
	case hdr.Encrypted && m.cfg.Cipher == nil:
		return nil, nil, fmt.Errorf("snapshot: %s is encrypted and no key is configured", filepath.Base(path))
	case hdr.Encrypted:
		if data, err = m.cfg.Cipher.Decrypt(data, aad); err != nil {
			return nil, nil, fmt.Errorf("snapshot: decrypt: %w", err)
		}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal state: %w", err)
	}

	return &state, &Info{
		ID:             strings.TrimSuffix(filepath.Base(path), fileExtension),
		WALLastOffset:  hdr.WALLastOffset,
		SessionCount:   hdr.SessionCount,
		SavePointCount: hdr.SavePointCount,
		CreatedAt:      hdr.CreatedAt,
		Size:           int64(len(raw)),
		Path:           path,
		Checksum:       hex.EncodeToString(trailer),
	}, nil
}

// List returns snapshot files oldest first (metadata from the file system only).
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []*Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			ID:        strings.TrimSuffix(name, fileExtension),
			Path:      filepath.Join(m.cfg.Dir, name),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime().UnixMilli(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Prune keeps the newest RetentionCount snapshots plus any younger than
// RetentionDays. The newest snapshot is never removed. It returns the number deleted.
func (m *Manager) Prune() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().AddDate(0, 0, -m.cfg.RetentionDays).UnixMilli()
	keepFrom := len(infos) - m.cfg.RetentionCount

	var errs []error
	removed := 0
	for i, info := range infos {
		if i >= keepFrom || (m.cfg.RetentionDays > 0 && info.CreatedAt > cutoff) {
			continue
		}
		if err := os.Remove(info.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// nextID returns snapshot-<yyyymmddhhmmss>-<seq>; ids sort by creation.
func (m *Manager) nextID(t time.Time) string {
	ts := t.UTC().Format("20060102150405")
	seq := 1
	entries, _ := os.ReadDir(m.cfg.Dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), filePrefix+ts+"-") {
			seq++
		}
	}
	return fmt.Sprintf("%s%s-%04d", filePrefix, ts, seq)
}

func writeBlock(w io.Writer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	w.Write(n[:])
	w.Write(b)
}

func readBlock(b []byte) (block, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("snapshot: truncated block length")
	}
	n := binary.BigEndian.Uint32(b[:4])
	if uint64(len(b)-4) < uint64(n) {
		return nil, nil, fmt.Errorf("snapshot: truncated block")
	}
	return b[4 : 4+n], b[4+n:], nil
}
