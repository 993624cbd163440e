// Package domain defines the core models of the continuity engine.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - GameSession: a player's live session, its preferences and statistics
//   - SavePoint: a persisted, checksummed capture of a character's state
//   - StateSnapshot: the captured state blocks carried by a save point
//   - RestoreOptions / RestoreResult: inputs and outcome of a restore
//   - Event: notifications emitted on lifecycle transitions
//   - Errors: domain error codes
package domain
