package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/yndnr/waypoint-go/pkg/crypto/adaptive"
)

// maxFrameSize bounds a single frame so a corrupted length cannot allocate unbounded memory.
const maxFrameSize = 64 << 20

// Reader replays entries across all segments in order.
//
// A torn or corrupted tail ends the current segment; replay continues
// with the next one.
type Reader struct {
	cipher adaptive.Cipher

	segments []segment
	next     int
	startAt  int64 // offset within the first segment, 0 means after the magic

	file *os.File
	buf  *bufio.Reader
}

// NewReader creates a reader over every segment in dir.
func NewReader(dir string, cipher adaptive.Cipher) (*Reader, error) {
	segs, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{cipher: cipher, segments: segs}, nil
}

// Seek positions the reader at a composite offset as returned by Writer.CurrentOffset.
func (r *Reader) Seek(offset uint64) {
	segID := offset >> 32
	r.close()
	r.next = len(r.segments)
	r.startAt = 0
	for i, s := range r.segments {
		if s.id >= segID {
			r.next = i
			if s.id == segID {
				r.startAt = int64(uint32(offset))
			}
			break
		}
	}
}

// Read returns the next entry, or io.EOF after the last segment.
func (r *Reader) Read() (*Entry, error) {
	for {
		if r.buf == nil {
			if err := r.open(); err != nil {
				return nil, err
			}
			continue
		}

		e, err := r.readFrame()
		if err == nil {
			return e, nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
			errors.Is(err, ErrCorruptedEntry) || errors.Is(err, ErrChecksumMismatch) ||
			errors.Is(err, ErrInvalidEntryType) {
			r.close()
			continue
		}
		return nil, err
	}
}

// ReadAll reads every remaining entry.
func (r *Reader) ReadAll() ([]*Entry, error) {
	var out []*Entry
	for {
		e, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

// Close releases the open segment.
func (r *Reader) Close() error {
	return r.close()
}

func (r *Reader) open() error {
	for r.next < len(r.segments) {
		seg := r.segments[r.next]
		r.next++
		start := r.startAt
		r.startAt = 0

		f, err := os.Open(seg.path)
		if err != nil {
			return err
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}
		_, dataLen, err := inspectSegment(f, st.Size())
		if err != nil {
			f.Close()
			if errors.Is(err, errInvalidMagic) {
				continue
			}
			return err
		}
		if start < MagicBytesSize {
			start = MagicBytesSize
		}
		if start >= dataLen {
			f.Close()
			continue
		}
		r.file = f
		r.buf = bufio.NewReader(io.NewSectionReader(f, start, dataLen-start))
		return nil
	}
	return io.EOF
}

func (r *Reader) readFrame() (*Entry, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.buf, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 5 || length > maxFrameSize {
		return nil, ErrCorruptedEntry
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r.buf, frame); err != nil {
		return nil, err
	}
	return decodeEntryFrame(frame, r.cipher)
}

func (r *Reader) close() error {
	r.buf = nil
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
