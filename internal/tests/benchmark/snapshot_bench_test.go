package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/storage"
	"github.com/yndnr/waypoint-go/internal/storage/snapshot"
)

func snapshotState(n int) *snapshot.State {
	state := &snapshot.State{SavePoints: make([]*domain.SavePoint, n)}
	for i := range state.SavePoints {
		state.SavePoints[i] = savePoint(fmt.Sprintf("char-%d", i%500))
	}
	return state
}

func BenchmarkSnapshotCreate(b *testing.B) {
	for _, n := range SavePointCounts {
		b.Run(fmt.Sprintf("save_points_%d", n), func(b *testing.B) {
			cfg := snapshot.DefaultConfig(b.TempDir())
			cfg.RetentionCount = 2
			m, err := snapshot.NewManager(cfg)
			if err != nil {
				b.Fatal(err)
			}
			state := snapshotState(n)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := m.Create(state, uint64(i)); err != nil {
					b.Fatalf("Create() error = %v", err)
				}
			}
		})
	}
}

// BenchmarkEngineRecover measures startup: snapshot load plus WAL replay.
func BenchmarkEngineRecover(b *testing.B) {
	for _, n := range SavePointCounts {
		b.Run(fmt.Sprintf("save_points_%d", n), func(b *testing.B) {
			ctx := context.Background()

			cfg := storage.DefaultConfig(b.TempDir())
			cfg.WALSyncInterval = 100 * time.Millisecond
			cfg.Logger = quietLogger()
			e, err := storage.New(cfg)
			if err != nil {
				b.Fatal(err)
			}
			if err := e.Recover(ctx); err != nil {
				b.Fatal(err)
			}
			for i := 0; i < n; i++ {
				if err := e.AppendSavePoint(ctx, savePoint(fmt.Sprintf("char-%d", i%500))); err != nil {
					b.Fatal(err)
				}
				if i == n/2 {
					if _, err := e.TriggerSnapshot(ctx); err != nil {
						b.Fatal(err)
					}
				}
			}
			if err := e.Close(); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				e, err := storage.New(cfg)
				if err != nil {
					b.Fatal(err)
				}
				if err := e.Recover(ctx); err != nil {
					b.Fatal(err)
				}
				e.Close()
			}
			reportMemory(b)
		})
	}
}
