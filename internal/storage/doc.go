// Package storage provides the persistence backends for save points and
// session records.
//
// The default Engine keeps everything in memory and makes it durable with a
// write-ahead log and periodic snapshots:
//
//   - every mutation is appended to the WAL before it is applied in memory
//   - a snapshot rotates the WAL, captures memory, then compacts old segments
//   - on startup the newest valid snapshot is loaded and the WAL replayed
//
// When an encryption key is configured, WAL bodies and snapshot files are
// sealed with keys derived from it.
//
// Badger and SQLite backends implement the same repository for deployments
// that prefer an embedded database; Open selects one from configuration.
package storage
