package service

import (
	"encoding/json"
	"testing"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

func fullSnapshot() domain.StateSnapshot {
	return domain.StateSnapshot{
		Character: json.RawMessage(`{"name":"Aria","level":12}`),
		Inventory: json.RawMessage(`{"slots":["sword","potion"]}`),
		Skills:    json.RawMessage(`{"fireball":3}`),
		Quests:    json.RawMessage(`{"main":2}`),
		World:     domain.WorldState{CurrentArea: "harbor", Weather: "rain", TimeOfDay: 13.5},
		UI:        domain.UIState{OpenWindows: []string{"map"}, MapZoom: 1.5},
		Settings:  map[string]string{"difficulty": "hard", "lang": "en"},
		Flags:     map[string]bool{"tutorial_done": true},

		CapturedAt: 1700000000000,
	}
}

func TestVerifier_ChecksumDeterministic(t *testing.T) {
	v := NewVerifier()
	a := fullSnapshot()
	b := fullSnapshot()

	sa, err := v.Checksum(&a)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		sb, err := v.Checksum(&b)
		if err != nil {
			t.Fatalf("Checksum() error = %v", err)
		}
		if sa != sb {
			t.Fatalf("checksum not deterministic: %s vs %s", sa, sb)
		}
	}
	if len(sa) != 32 {
		t.Errorf("checksum length = %d, want 32 hex chars", len(sa))
	}
}

func TestVerifier_ChecksumIgnoresPayloadWhitespace(t *testing.T) {
	v := NewVerifier()
	a := fullSnapshot()
	b := fullSnapshot()
	b.Character = json.RawMessage("{ \"name\": \"Aria\",\n \"level\": 12 }")

	sa, _ := v.Checksum(&a)
	sb, _ := v.Checksum(&b)
	if sa != sb {
		t.Error("equivalent payloads should produce the same checksum")
	}
}

func TestVerifier_ChecksumDetectsMutation(t *testing.T) {
	v := NewVerifier()
	base := fullSnapshot()
	want, _ := v.Checksum(&base)

	mutations := map[string]func(s *domain.StateSnapshot){
		"character": func(s *domain.StateSnapshot) { s.Character = json.RawMessage(`{"name":"Aria","level":13}`) },
		"inventory": func(s *domain.StateSnapshot) { s.Inventory = nil },
		"skills":    func(s *domain.StateSnapshot) { s.Skills = json.RawMessage(`{"fireball":4}`) },
		"quests":    func(s *domain.StateSnapshot) { s.Quests = json.RawMessage(`{"main":3}`) },
		"world":     func(s *domain.StateSnapshot) { s.World.Weather = "sun" },
		"ui":        func(s *domain.StateSnapshot) { s.UI.MapZoom = 2 },
		"settings":  func(s *domain.StateSnapshot) { s.Settings["lang"] = "de" },
		"flags":     func(s *domain.StateSnapshot) { s.Flags["boss_dead"] = true },
		"time":      func(s *domain.StateSnapshot) { s.CapturedAt++ },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := fullSnapshot()
			mutate(&s)
			got, err := v.Checksum(&s)
			if err != nil {
				t.Fatalf("Checksum() error = %v", err)
			}
			if got == want {
				t.Errorf("mutation of %s did not change the checksum", name)
			}
		})
	}
}

func TestVerifier_VerifyAndScore(t *testing.T) {
	v := NewVerifier()
	snap := fullSnapshot()
	sum, _ := v.Checksum(&snap)

	tests := []struct {
		name      string
		sp        *domain.SavePoint
		verified  bool
		wantScore float64
	}{
		{
			name:      "intact",
			sp:        &domain.SavePoint{Snapshot: fullSnapshot(), Metadata: domain.SaveMetadata{Checksum: sum}},
			verified:  true,
			wantScore: 1.0,
		},
		{
			name:      "checksum mismatch",
			sp:        &domain.SavePoint{Snapshot: fullSnapshot(), Metadata: domain.SaveMetadata{Checksum: "deadbeef"}},
			verified:  false,
			wantScore: 0.5,
		},
		{
			name:      "missing checksum",
			sp:        &domain.SavePoint{Snapshot: fullSnapshot()},
			verified:  false,
			wantScore: 0.5,
		},
		{
			name:      "nil",
			sp:        nil,
			verified:  false,
			wantScore: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Verify(tt.sp); got != tt.verified {
				t.Errorf("Verify() = %v, want %v", got, tt.verified)
			}
			if got := v.Score(tt.sp); got != tt.wantScore {
				t.Errorf("Score() = %v, want %v", got, tt.wantScore)
			}
		})
	}
}

func TestVerifier_ScoreEmptySubState(t *testing.T) {
	v := NewVerifier()

	snap := fullSnapshot()
	snap.Character = nil
	snap.Skills = json.RawMessage(`{}`)
	sum, _ := v.Checksum(&snap)
	sp := &domain.SavePoint{Snapshot: snap, Metadata: domain.SaveMetadata{Checksum: sum}}

	if !v.Verify(sp) {
		t.Fatal("Verify() = false for intact save point")
	}
	if got := v.Score(sp); got != 0.7 {
		t.Errorf("Score() = %v, want 0.7", got)
	}

	empty := domain.StateSnapshot{}
	sum, _ = v.Checksum(&empty)
	sp = &domain.SavePoint{Snapshot: empty, Metadata: domain.SaveMetadata{Checksum: "x" + sum}}
	if got := v.Score(sp); got != 0.1 {
		t.Errorf("Score() = %v, want 0.1", got)
	}
}
