// Package benchmark holds end-to-end performance benchmarks for the save
// path: capture and checksum, WAL appends, snapshots and recovery.
//
// Run them with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// and compare runs with benchstat.
package benchmark
