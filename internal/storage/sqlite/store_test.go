package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/core/service"
)

var _ service.Repository = (*Store)(nil)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "waypoint.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestSavePointsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for _, sp := range []*domain.SavePoint{
		{ID: "sp-2", CharacterID: "c1", SessionID: "gs-1", CreatedAt: 200, Type: domain.SaveAuto},
		{ID: "sp-1", CharacterID: "c1", SessionID: "gs-1", CreatedAt: 100, Type: domain.SaveManual, Description: "before the boss"},
		{ID: "sp-3", CharacterID: "c2", SessionID: "gs-2", CreatedAt: 50, Type: domain.SaveAuto},
	} {
		if err := store.AppendSavePoint(ctx, sp); err != nil {
			t.Fatalf("append %s: %v", sp.ID, err)
		}
	}

	got, err := store.ListSavePoints(ctx, "c1")
	if err != nil {
		t.Fatalf("list save points: %v", err)
	}
	if len(got) != 2 || got[0].ID != "sp-1" || got[1].ID != "sp-2" {
		t.Fatalf("save points = %d, want sp-1 then sp-2", len(got))
	}
	if got[0].Description != "before the boss" {
		t.Fatalf("description = %q, want %q", got[0].Description, "before the boss")
	}

	chars, err := store.ListCharacters(ctx)
	if err != nil {
		t.Fatalf("list characters: %v", err)
	}
	if len(chars) != 2 || chars[0] != "c1" {
		t.Fatalf("characters = %v, want [c1 c2]", chars)
	}

	if err := store.DeleteSavePoint(ctx, "c2", "sp-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteSavePoint(ctx, "c2", "sp-3"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if chars, _ := store.ListCharacters(ctx); len(chars) != 1 {
		t.Fatalf("characters after delete = %v, want [c1]", chars)
	}
}

func TestAppendSavePointRejectsDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	sp := &domain.SavePoint{ID: "sp-1", CharacterID: "c1", CreatedAt: 1, Type: domain.SaveAuto}
	if err := store.AppendSavePoint(ctx, sp); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendSavePoint(ctx, sp); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("duplicate append error = %v, want ErrInvalidArgument", err)
	}
}

func TestSessionsUpsert(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.GetSession(ctx, "gs-missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("get missing session error = %v, want ErrSessionNotFound", err)
	}

	sess := &domain.GameSession{ID: "gs-1", PlayerID: "p1", CharacterID: "c1", StartTime: 10, State: domain.SessionActive}
	if err := store.UpsertSession(ctx, sess); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	sess.State = domain.SessionEnded
	sess.EndReason = "logout"
	if err := store.UpsertSession(ctx, sess); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	store.UpsertSession(ctx, &domain.GameSession{ID: "gs-2", StartTime: 5, State: domain.SessionPaused})

	got, err := store.GetSession(ctx, "gs-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.State != domain.SessionEnded || got.EndReason != "logout" {
		t.Fatalf("session = %s/%q, want ended/logout", got.State, got.EndReason)
	}

	all, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(all) != 2 || all[0].ID != "gs-2" {
		t.Fatalf("sessions = %d, want gs-2 first", len(all))
	}
	live, err := store.ListSessions(ctx, domain.SessionActive, domain.SessionPaused)
	if err != nil {
		t.Fatalf("list live sessions: %v", err)
	}
	if len(live) != 1 || live[0].ID != "gs-2" {
		t.Fatalf("live sessions = %d, want only gs-2", len(live))
	}
}

func TestQueryHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Exec(ctx, `DELETE FROM save_points`); !errors.Is(err, context.Canceled) {
		t.Fatalf("exec error = %v, want context.Canceled", err)
	}
}

func TestSavePointVerifiesAfterReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "waypoint.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	local := service.NewLocalState()
	local.SetWorld("c1", domain.WorldState{
		CurrentArea: "harbor",
		NPCStates: map[string]map[string]any{
			"merchant": {"gold": int64(9007199254740993), "ledger": uint64(18446744073709551615)},
		},
		ObjectStates: map[string]map[string]any{
			"chest": {"opened": true, "contents": struct{ Coins int }{Coins: 12}},
		},
	})
	created, err := service.NewSavePointStore(service.SavePointStoreConfig{
		Repository: store,
		Capturer:   service.NewCapturer(service.Collaborators{}, local, nil),
	}).Create(ctx, &service.CreateSavePointRequest{
		SessionID:   "gs-1",
		CharacterID: "c1",
		Type:        domain.SaveManual,
		Preferences: domain.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("create save point: %v", err)
	}
	if !created.Verified {
		t.Fatal("save point not verified at creation")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	points := service.NewSavePointStore(service.SavePointStoreConfig{Repository: reopened})
	got, err := points.Get(ctx, "c1", created.ID)
	if err != nil {
		t.Fatalf("get save point: %v", err)
	}
	if got.Metadata.Checksum != created.Metadata.Checksum {
		t.Fatalf("checksum = %s, want %s", got.Metadata.Checksum, created.Metadata.Checksum)
	}
	if !points.Verifier().Verify(got) {
		t.Fatal("save point no longer verifies after reopening the store")
	}
	if gold := got.Snapshot.World.NPCStates["merchant"]["gold"]; gold != json.Number("9007199254740993") {
		t.Fatalf("merchant gold = %v (%T), want 9007199254740993", gold, gold)
	}
}
