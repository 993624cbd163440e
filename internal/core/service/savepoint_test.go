package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

func createN(t *testing.T, f *fixture, characterID string, n, limit int, saveType domain.SaveType) []string {
	t.Helper()
	prefs := domain.DefaultPreferences()
	prefs.MaxSavePoints = limit
	var ids []string
	for i := 0; i < n; i++ {
		sp, err := f.store.Create(context.Background(), &CreateSavePointRequest{
			CharacterID: characterID,
			Type:        saveType,
			Description: fmt.Sprintf("save %d", i+1),
			Preferences: prefs,
		})
		if err != nil {
			t.Fatalf("Create() #%d error = %v", i+1, err)
		}
		ids = append(ids, sp.ID)
	}
	return ids
}

func idsOf(points []*domain.SavePoint) []string {
	out := make([]string, len(points))
	for i, sp := range points {
		out[i] = sp.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSavePointStore_CreateThenVerify(t *testing.T) {
	f := newFixture()
	f.game.seed("char-1")
	f.local.SetWorld("char-1", domain.WorldState{CurrentArea: "harbor", Weather: "fog"})

	sp, err := f.store.Create(context.Background(), &CreateSavePointRequest{
		SessionID:   "gs-test",
		CharacterID: "char-1",
		Type:        domain.SaveManual,
		Description: "before boss",
		Preferences: domain.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !sp.Verified {
		t.Error("new save point should be verified")
	}
	if !f.store.Verifier().Verify(sp) {
		t.Error("Verify() = false right after Create()")
	}
	if sp.Metadata.FormatVersion != domain.FormatVersion || sp.Metadata.Checksum == "" {
		t.Errorf("metadata = %+v", sp.Metadata)
	}
	if sp.Area != "harbor" || sp.Level != 7 || sp.Size <= 0 {
		t.Errorf("area=%q level=%d size=%d", sp.Area, sp.Level, sp.Size)
	}
	if len(sp.Metadata.Dependencies) != 4 {
		t.Errorf("dependencies = %v", sp.Metadata.Dependencies)
	}
	if f.metrics.savesOf(domain.SaveManual) != 1 {
		t.Error("manual save counter not incremented")
	}

	// The stored copy verifies too.
	stored := f.repo.stored("char-1")
	if len(stored) != 1 || !f.store.Verifier().Verify(stored[0]) {
		t.Fatalf("stored save point does not verify")
	}
}

func TestSavePointStore_CaptureNeverFails(t *testing.T) {
	f := newFixture()
	f.game.loadErr["inventory"] = errors.New("inventory service down")
	f.game.set("skills", "char-1", "not json")

	sp, err := f.store.Create(context.Background(), &CreateSavePointRequest{
		CharacterID: "char-1",
		Type:        domain.SaveAuto,
		Preferences: domain.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sp.Snapshot.Character != nil || sp.Snapshot.Inventory != nil || sp.Snapshot.Skills != nil {
		t.Errorf("expected empty sub-states, got %+v", sp.Snapshot)
	}
	if !sp.Verified {
		t.Error("empty snapshot should still verify")
	}
}

func TestSavePointStore_RetentionKeepsMostRecent(t *testing.T) {
	tests := []struct {
		n, k int
	}{
		{n: 5, k: 3},
		{n: 10, k: 10},
		{n: 12, k: 1},
		{n: 2, k: 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("N=%d,k=%d", tt.n, tt.k), func(t *testing.T) {
			f := newFixture()
			ids := createN(t, f, "char-1", tt.n, tt.k, domain.SaveAuto)

			list, err := f.store.List(context.Background(), "char-1")
			if err != nil {
				t.Fatal(err)
			}
			want := ids
			if len(ids) > tt.k {
				want = ids[len(ids)-tt.k:]
			}
			if !equalIDs(idsOf(list), want) {
				t.Errorf("List() = %v, want %v", idsOf(list), want)
			}
			if got := len(f.repo.stored("char-1")); got != len(want) {
				t.Errorf("repository holds %d save points, want %d", got, len(want))
			}
		})
	}
}

func TestSavePointStore_RetentionExemptsManual(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	manual := createN(t, f, "char-1", 2, 3, domain.SaveManual)
	autos := createN(t, f, "char-1", 4, 3, domain.SaveAuto)

	list, err := f.store.List(ctx, "char-1")
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]string(nil), manual...), autos[3])
	if !equalIDs(idsOf(list), want) {
		t.Errorf("List() = %v, want %v", idsOf(list), want)
	}

	// Once only manual saves remain, the ledger grows past the cap.
	more := createN(t, f, "char-1", 2, 3, domain.SaveManual)
	list, _ = f.store.List(ctx, "char-1")
	want = append(append([]string(nil), manual...), more...)
	if !equalIDs(idsOf(list), want) {
		t.Errorf("List() = %v, want %v", idsOf(list), want)
	}
}

func TestSavePointStore_StorageFailureSurfaced(t *testing.T) {
	f := newFixture()
	f.repo.appendErr = errors.New("disk full")

	_, err := f.store.Create(context.Background(), &CreateSavePointRequest{
		CharacterID: "char-1",
		Type:        domain.SaveManual,
		Preferences: domain.DefaultPreferences(),
	})
	if !errors.Is(err, domain.ErrSaveFailed) {
		t.Fatalf("Create() error = %v, want ErrSaveFailed", err)
	}
	if f.metrics.failures[domain.SaveManual] != 1 {
		t.Error("failure counter not incremented")
	}
	list, _ := f.store.List(context.Background(), "char-1")
	if len(list) != 0 {
		t.Errorf("failed save left %d entries in the ledger", len(list))
	}
}

func TestSavePointStore_InvalidRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.store.Create(ctx, &CreateSavePointRequest{Type: domain.SaveAuto}); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("missing character: err = %v", err)
	}
	if _, err := f.store.Create(ctx, &CreateSavePointRequest{CharacterID: "c", Type: "quick"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("bad type: err = %v", err)
	}
}

func TestSavePointStore_GetAndLatestVerified(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.store.LatestVerified(ctx, "char-1"); !errors.Is(err, domain.ErrNoValidSavePoint) {
		t.Fatalf("LatestVerified() on empty ledger err = %v", err)
	}

	ids := createN(t, f, "char-1", 3, 10, domain.SaveAuto)
	if _, err := f.store.Get(ctx, "char-1", "sp-missing"); !errors.Is(err, domain.ErrSavePointNotFound) {
		t.Errorf("Get(missing) err = %v", err)
	}
	sp, err := f.store.Get(ctx, "char-1", ids[1])
	if err != nil || sp.ID != ids[1] {
		t.Fatalf("Get() = %v, %v", sp, err)
	}

	// Corrupt the newest entry in place; the previous one becomes the latest verified.
	l := f.store.ledgerFor("char-1")
	l.mu.Lock()
	l.points[2].Metadata.Checksum = "corrupted"
	l.mu.Unlock()

	latest, err := f.store.LatestVerified(ctx, "char-1")
	if err != nil {
		t.Fatalf("LatestVerified() error = %v", err)
	}
	if latest.ID != ids[1] {
		t.Errorf("LatestVerified() = %s, want %s", latest.ID, ids[1])
	}
}

func TestSavePointStore_LedgerHydratesFromRepository(t *testing.T) {
	f := newFixture()
	ids := createN(t, f, "char-1", 3, 10, domain.SaveAuto)

	// A fresh store over the same repository sees the same ledger.
	fresh := NewSavePointStore(SavePointStoreConfig{Repository: f.repo, Logger: discardLogger()})
	list, err := fresh.List(context.Background(), "char-1")
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(idsOf(list), ids) {
		t.Errorf("List() = %v, want %v", idsOf(list), ids)
	}
	for _, sp := range list {
		if !sp.Verified {
			t.Errorf("%s not verified after reload", sp.ID)
		}
	}
}

func TestSavePointStore_Sweep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	now := time.Now()
	f.store.now = func() time.Time { return now.Add(-8 * 24 * time.Hour) }
	old := createN(t, f, "char-1", 2, 10, domain.SaveAuto)
	oldManual := createN(t, f, "char-1", 1, 10, domain.SaveManual)
	f.store.now = func() time.Time { return now }
	fresh := createN(t, f, "char-1", 1, 10, domain.SaveAuto)
	createN(t, f, "char-2", 1, 10, domain.SaveCheckpoint)

	removed, err := f.store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != len(old) {
		t.Errorf("Sweep() removed %d, want %d", removed, len(old))
	}
	list, _ := f.store.List(ctx, "char-1")
	want := []string{oldManual[0], fresh[0]}
	if !equalIDs(idsOf(list), want) {
		t.Errorf("List() = %v, want %v", idsOf(list), want)
	}
	if len(f.repo.stored("char-2")) != 1 {
		t.Error("fresh save point of another character was swept")
	}
}

type recordingMirror struct {
	ids []string
}

func (m *recordingMirror) Mirror(_ context.Context, sp *domain.SavePoint) error {
	m.ids = append(m.ids, sp.ID)
	return nil
}

func TestSavePointStore_MirrorOnlyWithCloudSync(t *testing.T) {
	f := newFixture()
	mirror := &recordingMirror{}
	f.store.mirror = mirror
	ctx := context.Background()

	prefs := domain.DefaultPreferences()
	if _, err := f.store.Create(ctx, &CreateSavePointRequest{CharacterID: "c", Type: domain.SaveAuto, Preferences: prefs}); err != nil {
		t.Fatal(err)
	}
	prefs.CloudSync = true
	prefs.OfflineMode = true
	if _, err := f.store.Create(ctx, &CreateSavePointRequest{CharacterID: "c", Type: domain.SaveAuto, Preferences: prefs}); err != nil {
		t.Fatal(err)
	}
	prefs.OfflineMode = false
	sp, err := f.store.Create(ctx, &CreateSavePointRequest{CharacterID: "c", Type: domain.SaveAuto, Preferences: prefs})
	if err != nil {
		t.Fatal(err)
	}
	if len(mirror.ids) != 1 || mirror.ids[0] != sp.ID {
		t.Errorf("mirrored = %v, want [%s]", mirror.ids, sp.ID)
	}
}
