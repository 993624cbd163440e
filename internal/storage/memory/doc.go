// Package memory provides the in-memory half of the storage engine.
//
// Save points are indexed by ID and by owning character; session records
// are indexed by ID. The store holds no durability of its own: the engine
// writes every mutation to the WAL first and rebuilds the store from the
// latest snapshot plus WAL replay on startup.
package memory
