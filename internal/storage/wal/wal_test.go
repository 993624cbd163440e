package wal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/pkg/crypto/adaptive"
)

func testSavePoint(id, character string) *domain.SavePoint {
	return &domain.SavePoint{
		ID:          id,
		SessionID:   "gs-1",
		CharacterID: character,
		CreatedAt:   1700000000000,
		Type:        domain.SaveManual,
		Level:       12,
		Snapshot: domain.StateSnapshot{
			Character: json.RawMessage(`{"hp":10}`),
			Settings:  map[string]string{"lang": "en"},
		},
		Metadata: domain.SaveMetadata{FormatVersion: domain.FormatVersion, Checksum: "abc"},
		Verified: true,
	}
}

func testSession(id string) *domain.GameSession {
	return &domain.GameSession{
		ID:          id,
		PlayerID:    "p1",
		CharacterID: "c1",
		StartTime:   1700000000000,
		State:       domain.SessionActive,
		Preferences: domain.DefaultPreferences(),
	}
}

func openWriter(t *testing.T, dir string, cipher adaptive.Cipher) *Writer {
	t.Helper()
	cfg := DefaultConfig(dir)
	cfg.Cipher = cipher
	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	return w
}

func readAll(t *testing.T, dir string, cipher adaptive.Cipher, offset uint64) []*Entry {
	t.Helper()
	r, err := NewReader(dir, cipher)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close()
	r.Seek(offset)
	entries, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return entries
}

func TestWriter_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w := openWriter(t, dir, nil)

	sp := testSavePoint("sp-1", "c1")
	if err := w.Append(NewSavePutEntry(sp)); err != nil {
		t.Fatalf("Append(put) error = %v", err)
	}
	if err := w.Append(NewSessionUpsertEntry(testSession("gs-1"))); err != nil {
		t.Fatalf("Append(upsert) error = %v", err)
	}
	if err := w.Append(NewSaveDeleteEntry("c1", "sp-1")); err != nil {
		t.Fatalf("Append(delete) error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readAll(t, dir, nil, 0)
	if len(entries) != 3 {
		t.Fatalf("replayed %d entries, want 3", len(entries))
	}
	if entries[0].OpType != OpTypeSavePut || entries[0].SavePoint == nil {
		t.Fatalf("entry 0 = %+v, want SAVE_PUT with body", entries[0])
	}
	if entries[0].SavePoint.Level != 12 || string(entries[0].SavePoint.Snapshot.Character) != `{"hp":10}` {
		t.Errorf("save point body not preserved: %+v", entries[0].SavePoint)
	}
	if entries[1].OpType != OpTypeSessionUpsert || entries[1].Session.ID != "gs-1" {
		t.Errorf("entry 1 = %+v, want SESSION_UPSERT gs-1", entries[1])
	}
	if entries[2].OpType != OpTypeSaveDelete || entries[2].SavePointID != "sp-1" || entries[2].CharacterID != "c1" {
		t.Errorf("entry 2 = %+v, want SAVE_DELETE c1/sp-1", entries[2])
	}
}

func TestWriter_ReopenContinuesSegment(t *testing.T) {
	dir := t.TempDir()

	w := openWriter(t, dir, nil)
	if err := w.Append(NewSavePutEntry(testSavePoint("sp-1", "c1"))); err != nil {
		t.Fatal(err)
	}
	// Simulate a crash: no Close, so the segment has no trailer.
	w.file.Close()

	w2 := openWriter(t, dir, nil)
	if err := w2.Append(NewSavePutEntry(testSavePoint("sp-2", "c1"))); err != nil {
		t.Fatal(err)
	}
	if err := w2.Close(); err != nil {
		t.Fatal(err)
	}

	segs, _ := listSegments(dir)
	if len(segs) != 1 {
		t.Errorf("segments = %d, want 1 (open segment continued)", len(segs))
	}
	if got := len(readAll(t, dir, nil, 0)); got != 2 {
		t.Errorf("replayed %d entries, want 2", got)
	}
}

func TestWriter_TornTailTruncated(t *testing.T) {
	dir := t.TempDir()

	w := openWriter(t, dir, nil)
	if err := w.Append(NewSavePutEntry(testSavePoint("sp-1", "c1"))); err != nil {
		t.Fatal(err)
	}
	path := w.file.Name()
	w.file.Close()

	// Half-written frame at the end of the segment.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte{0, 0, 1, 0, 0xde, 0xad})
	f.Close()

	w2 := openWriter(t, dir, nil)
	if err := w2.Append(NewSavePutEntry(testSavePoint("sp-2", "c1"))); err != nil {
		t.Fatal(err)
	}
	w2.Close()

	entries := readAll(t, dir, nil, 0)
	if len(entries) != 2 {
		t.Fatalf("replayed %d entries, want 2", len(entries))
	}
	if entries[1].SavePointID != "sp-2" {
		t.Errorf("second entry = %s, want sp-2", entries[1].SavePointID)
	}
}

func TestWriter_RotateAndSeek(t *testing.T) {
	dir := t.TempDir()
	w := openWriter(t, dir, nil)

	w.Append(NewSavePutEntry(testSavePoint("sp-1", "c1")))
	if err := w.Rotate(); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	offset := w.CurrentOffset()
	w.Append(NewSavePutEntry(testSavePoint("sp-2", "c1")))
	w.Append(NewSavePutEntry(testSavePoint("sp-3", "c1")))
	w.Close()

	entries := readAll(t, dir, nil, offset)
	if len(entries) != 2 {
		t.Fatalf("replayed %d entries after offset, want 2", len(entries))
	}
	if entries[0].SavePointID != "sp-2" {
		t.Errorf("first entry after offset = %s, want sp-2", entries[0].SavePointID)
	}
}

func TestWriter_Encrypted(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := adaptive.New(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	w := openWriter(t, dir, cipher)
	w.Append(NewSavePutEntry(testSavePoint("sp-1", "c1")))
	w.Close()

	raw, err := os.ReadFile(filepath.Join(dir, segmentName(1)))
	if err != nil {
		t.Fatal(err)
	}
	if containsBytes(raw, []byte(`"hp"`)) {
		t.Error("encrypted segment leaks plaintext body")
	}

	entries := readAll(t, dir, cipher, 0)
	if len(entries) != 1 || entries[0].SavePoint == nil {
		t.Fatalf("entries = %v, want one decrypted save point", entries)
	}

	r, _ := NewReader(dir, nil)
	defer r.Close()
	if _, err := r.ReadAll(); err == nil {
		t.Error("ReadAll() without cipher succeeded on encrypted log")
	}
}

func TestCompactor_Compact(t *testing.T) {
	dir := t.TempDir()
	w := openWriter(t, dir, nil)
	for i := 0; i < 4; i++ {
		w.Append(NewSaveDeleteEntry("c1", "sp"))
		if err := w.Rotate(); err != nil {
			t.Fatal(err)
		}
	}
	offset := w.CurrentOffset() // segment 5
	w.Close()

	removed, err := NewCompactor(dir, WithRetainCount(2)).Compact(offset)
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	segs, _ := listSegments(dir)
	if len(segs) != 2 || segs[0].id != 4 {
		t.Errorf("remaining segments = %+v, want ids 4 and 5", segs)
	}
}

func TestEncodeEntryFrame_Invalid(t *testing.T) {
	if _, err := encodeEntryFrame(&Entry{}, nil); err != ErrInvalidEntryType {
		t.Errorf("unspecified op error = %v, want ErrInvalidEntryType", err)
	}
	if _, err := encodeEntryFrame(&Entry{OpType: OpTypeSavePut}, nil); err == nil {
		t.Error("put without body should fail")
	}

	frame, err := encodeEntryFrame(NewSaveDeleteEntry("c1", "sp-1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	frame[len(frame)-1] ^= 0xff
	if _, err := decodeEntryFrame(frame[4:], nil); err != ErrChecksumMismatch {
		t.Errorf("decode corrupted frame error = %v, want ErrChecksumMismatch", err)
	}
}

func containsBytes(haystack, needle []byte) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return true
		}
	}
	return false
}
