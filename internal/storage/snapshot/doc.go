// Package snapshot writes full dumps of the storage engine's state so that
// recovery only replays the WAL written after the newest snapshot.
//
// File format:
//
//	snapshot-<timestamp>-<sequence>.snap
//	[magic:8 "WPSNAP\x00\x01"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON sessions and save points, or cipher output)
//	[checksum:32 SHA-256 of all bytes above]
//
// Recovery:
//
//  1. Load the newest snapshot whose checksum verifies
//  2. Replay WAL entries after the snapshot's WAL offset
package snapshot
