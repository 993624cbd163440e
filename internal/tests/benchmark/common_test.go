package benchmark

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// SavePointCounts are the store sizes the recovery benchmarks run at.
var SavePointCounts = []int{1000, 10000, 50000}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newID(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return prefix + strings.ToLower(id.String())
}

// world returns a world block of roughly realistic size.
func world(area string) domain.WorldState {
	npcs := make(map[string]map[string]any, 20)
	for i := 0; i < 20; i++ {
		npcs[fmt.Sprintf("npc-%02d", i)] = map[string]any{"mood": "calm", "hp": 100 - i}
	}
	return domain.WorldState{
		CurrentArea:  area,
		Weather:      "rain",
		TimeOfDay:    13.5,
		ActiveEvents: []string{"harvest-festival", "bandit-raid"},
		NPCStates:    npcs,
	}
}

func savePoint(characterID string) *domain.SavePoint {
	return &domain.SavePoint{
		ID:          newID("sp-"),
		SessionID:   "gs-bench",
		CharacterID: characterID,
		CreatedAt:   time.Now().UnixMilli(),
		Type:        domain.SaveAuto,
		Area:        "riverside",
		Level:       12,
		Experience:  48000,
		Snapshot: domain.StateSnapshot{
			Character: []byte(`{"level":12,"experience":48000,"class":"ranger"}`),
			Inventory: []byte(`{"gold":350,"items":["bow","arrows","cloak"]}`),
			World:     world("riverside"),
		},
		Metadata: domain.SaveMetadata{FormatVersion: "1.0", Checksum: "bench"},
	}
}

func reportMemory(b *testing.B) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), "heap_MB")
}
