package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

func saveFor(t *testing.T, f *fixture, characterID string) *domain.SavePoint {
	t.Helper()
	sp, err := f.store.Create(context.Background(), &CreateSavePointRequest{
		CharacterID: characterID,
		Type:        domain.SaveManual,
		Preferences: domain.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sp
}

func TestRestore_VacuousRestore(t *testing.T) {
	f := newFixture()
	f.game.seed("c")
	sp := saveFor(t, f, "c")

	res := f.restorer.Restore(context.Background(), "c", sp.ID, domain.RestoreOptions{})
	if !res.Success || len(res.Restored) != 0 || len(res.Errors) != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.DataIntegrity != 1.0 {
		t.Errorf("DataIntegrity = %v", res.DataIntegrity)
	}
}

func TestRestore_AllCategories(t *testing.T) {
	f := newFixture()
	f.game.seed("c")
	f.local.SetWorld("c", domain.WorldState{CurrentArea: "keep", Weather: "snow"})
	f.local.SetUI("c", domain.UIState{OpenWindows: []string{"inventory"}})
	f.local.SetSettings("c", map[string]string{"difficulty": "hard"}, map[string]bool{"intro": true})
	sp := saveFor(t, f, "c")

	// Diverge from the save point.
	f.game.set("character", "c", `{"name":"Aria","hp":1}`)
	f.game.set("inventory", "c", `{"items":[]}`)
	f.local.SetWorld("c", domain.WorldState{CurrentArea: "dungeon"})
	f.local.SetSettings("c", nil, nil)

	res := f.restorer.Restore(context.Background(), "c", sp.ID, domain.FullRestoreOptions())
	if !res.Success {
		t.Fatalf("Restore() failed: %+v", res)
	}
	if len(res.Restored) != len(domain.RestoreOrder) {
		t.Errorf("Restored = %v", res.Restored)
	}
	for i, c := range domain.RestoreOrder {
		if res.Restored[i] != c {
			t.Errorf("Restored[%d] = %s, want %s", i, res.Restored[i], c)
		}
	}
	if got := f.game.get("character", "c"); got != `{"name":"Aria","hp":100}` {
		t.Errorf("character = %s", got)
	}
	if got := f.game.get("inventory", "c"); got != `{"items":["sword","potion"]}` {
		t.Errorf("inventory = %s", got)
	}
	b := f.local.Get("c")
	if b.World.CurrentArea != "keep" || b.Settings["difficulty"] != "hard" || !b.Flags["intro"] {
		t.Errorf("local state = %+v", b)
	}
	if f.metrics.restoreSuccesses != 1 {
		t.Errorf("restore successes = %d", f.metrics.restoreSuccesses)
	}
}

func TestRestore_UnknownSavePoint(t *testing.T) {
	f := newFixture()
	res := f.restorer.Restore(context.Background(), "c", "sp-missing", domain.FullRestoreOptions())
	if res.Success || len(res.Errors) != 1 || len(res.Restored) != 0 {
		t.Errorf("result = %+v", res)
	}
	if f.metrics.restoreFailures != 1 {
		t.Errorf("restore failures = %d", f.metrics.restoreFailures)
	}
}

func TestRestore_PartialFailureTolerated(t *testing.T) {
	f := newFixture()
	f.game.seed("c")
	sp := saveFor(t, f, "c")
	f.game.applyErr["inventory"] = errors.New("stash locked")

	opts := domain.RestoreOptions{
		RestoreCharacter: true,
		RestoreInventory: true,
		RestoreProgress:  true,
		RestoreSettings:  true,
		RestoreWorld:     true,
		SkipCorrupted:    true,
	}
	res := f.restorer.Restore(context.Background(), "c", sp.ID, opts)
	if len(res.Restored) != 4 || len(res.Errors) != 1 || !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Errors[0], "inventory:") {
		t.Errorf("error = %q", res.Errors[0])
	}
}

func TestRestore_FailureStopsWithoutSkipCorrupted(t *testing.T) {
	f := newFixture()
	f.game.seed("c")
	sp := saveFor(t, f, "c")
	f.game.applyErr["inventory"] = errors.New("stash locked")

	opts := domain.FullRestoreOptions()
	opts.SkipCorrupted = false
	res := f.restorer.Restore(context.Background(), "c", sp.ID, opts)
	if res.Success {
		t.Fatal("Success = true")
	}
	if len(res.Restored) != 1 || res.Restored[0] != domain.CategoryCharacter {
		t.Errorf("Restored = %v", res.Restored)
	}
	if len(res.Skipped) != 4 {
		t.Errorf("Skipped = %v, want the 4 categories after inventory", res.Skipped)
	}
}

func TestRestore_PanicAndTimeoutIsolated(t *testing.T) {
	f := newFixture()
	f.game.seed("c")
	sp := saveFor(t, f, "c")
	f.game.panicOn = "quests"

	res := f.restorer.Restore(context.Background(), "c", sp.ID, domain.FullRestoreOptions())
	if !res.Success || len(res.Errors) != 1 || len(res.Restored) != 5 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Errors[0], "panic") {
		t.Errorf("error = %q", res.Errors[0])
	}

	slow := NewRestoreOrchestrator(RestoreConfig{
		Store:           f.store,
		Collaborators:   Collaborators{Characters: blockingCharacters{}},
		CategoryTimeout: 20 * time.Millisecond,
		Logger:          discardLogger(),
	})
	res = slow.Restore(context.Background(), "c", sp.ID, domain.RestoreOptions{RestoreCharacter: true, RestoreUI: true, SkipCorrupted: true})
	if !res.Success || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "timed out") {
		t.Errorf("result = %+v", res)
	}
}

type blockingCharacters struct{}

func (blockingCharacters) LoadCharacter(context.Context, string) ([]byte, error) { return nil, nil }
func (blockingCharacters) ApplyCharacter(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()
	time.Sleep(5 * time.Millisecond)
	return nil
}

func TestRestore_IntegrityGate(t *testing.T) {
	f := newFixture()
	f.game.seed("c")
	sp := saveFor(t, f, "c")

	l := f.store.ledgerFor("c")
	l.mu.Lock()
	l.points[0].Metadata.Checksum = "tampered"
	l.mu.Unlock()

	opts := domain.FullRestoreOptions()
	opts.SkipCorrupted = false
	res := f.restorer.Restore(context.Background(), "c", sp.ID, opts)
	if res.Success || len(res.Restored) != 0 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.DataIntegrity != 0.5 {
		t.Errorf("DataIntegrity = %v", res.DataIntegrity)
	}
	if f.game.applied["character"] != 0 {
		t.Error("collaborator touched despite failed integrity gate")
	}

	res = f.restorer.Restore(context.Background(), "c", sp.ID, domain.FullRestoreOptions())
	if !res.Success || len(res.Warnings) == 0 {
		t.Errorf("tolerant restore = %+v", res)
	}
}

func TestRestore_ValidateData(t *testing.T) {
	f := newFixture()
	f.game.seed("c")
	sp := saveFor(t, f, "c")

	l := f.store.ledgerFor("c")
	l.mu.Lock()
	l.points[0].Snapshot.Quests = []byte(`{"main":`)
	l.mu.Unlock()

	opts := domain.FullRestoreOptions()
	res := f.restorer.Restore(context.Background(), "c", sp.ID, opts)
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "progress:") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestRestore_EmptyCategorySkipped(t *testing.T) {
	f := newFixture()
	f.game.set("character", "c", `{"name":"Aria"}`)
	f.game.set("skills", "c", `{"slash":1}`)
	sp := saveFor(t, f, "c")

	res := f.restorer.Restore(context.Background(), "c", sp.ID, domain.RestoreOptions{
		RestoreCharacter: true,
		RestoreInventory: true,
		SkipCorrupted:    true,
	})
	if !res.Success || len(res.Restored) != 1 || len(res.Skipped) != 1 || res.Skipped[0] != domain.CategoryInventory {
		t.Errorf("result = %+v", res)
	}
}

func TestAutoRestore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res := f.restorer.AutoRestore(ctx, "c")
	if res.Success || len(res.Errors) != 1 || res.Errors[0] == "" {
		t.Fatalf("AutoRestore() without save points = %+v", res)
	}
	if res.Errors[0] != "no valid save points found" {
		t.Errorf("error = %q", res.Errors[0])
	}

	f.game.seed("c")
	older := saveFor(t, f, "c")
	newer := saveFor(t, f, "c")

	l := f.store.ledgerFor("c")
	l.mu.Lock()
	l.points[1].Metadata.Checksum = "tampered"
	l.mu.Unlock()

	res = f.restorer.AutoRestore(ctx, "c")
	if !res.Success || res.SavePointID != older.ID {
		t.Errorf("AutoRestore() = %+v, want restore from %s (not %s)", res, older.ID, newer.ID)
	}

	l.mu.Lock()
	l.points[0].Metadata.Checksum = "tampered"
	l.mu.Unlock()
	res = f.restorer.AutoRestore(ctx, "c")
	if res.Success || len(res.Errors) != 1 {
		t.Errorf("AutoRestore() with only corrupted saves = %+v", res)
	}
}
