package benchmark

import (
	"fmt"
	"testing"

	"github.com/yndnr/waypoint-go/internal/storage/wal"
	"github.com/yndnr/waypoint-go/pkg/crypto/adaptive"
)

func benchAppend(b *testing.B, cfg wal.Config) {
	w, err := wal.NewWriter(cfg)
	if err != nil {
		b.Fatalf("NewWriter() error = %v", err)
	}
	defer w.Close()

	sp := savePoint("char-1")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.Append(wal.NewSavePutEntry(sp)); err != nil {
			b.Fatalf("Append() error = %v", err)
		}
	}
}

func BenchmarkWALAppend(b *testing.B) {
	b.Run("batch", func(b *testing.B) {
		cfg := wal.DefaultConfig(b.TempDir())
		cfg.SyncMode = wal.SyncModeBatch
		benchAppend(b, cfg)
	})
	b.Run("sync", func(b *testing.B) {
		benchAppend(b, wal.DefaultConfig(b.TempDir()))
	})
	b.Run("batch_encrypted", func(b *testing.B) {
		cipher, err := adaptive.New(make([]byte, adaptive.KeySize))
		if err != nil {
			b.Fatal(err)
		}
		cfg := wal.DefaultConfig(b.TempDir())
		cfg.SyncMode = wal.SyncModeBatch
		cfg.Cipher = cipher
		benchAppend(b, cfg)
	})
}

func BenchmarkWALReadAll(b *testing.B) {
	for _, n := range SavePointCounts {
		b.Run(fmt.Sprintf("entries_%d", n), func(b *testing.B) {
			dir := b.TempDir()
			cfg := wal.DefaultConfig(dir)
			cfg.SyncMode = wal.SyncModeBatch
			w, err := wal.NewWriter(cfg)
			if err != nil {
				b.Fatal(err)
			}
			for i := 0; i < n; i++ {
				if err := w.Append(wal.NewSavePutEntry(savePoint(fmt.Sprintf("char-%d", i%500)))); err != nil {
					b.Fatal(err)
				}
			}
			if err := w.Close(); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				r, err := wal.NewReader(dir, nil)
				if err != nil {
					b.Fatal(err)
				}
				entries, err := r.ReadAll()
				r.Close()
				if err != nil || len(entries) != n {
					b.Fatalf("ReadAll() = %d entries, %v", len(entries), err)
				}
			}
		})
	}
}
