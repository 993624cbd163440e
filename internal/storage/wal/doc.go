// Package wal provides the write-ahead log of the storage engine.
//
// Every save point and session mutation is appended here before it is
// applied to memory, so a crash loses nothing that was acknowledged.
//
// Entry types:
//
//   - SAVE_PUT: a new save point
//   - SAVE_DELETE: a save point removed by retention
//   - SESSION_UPSERT: the latest version of a session record
//
// Segment format:
//
//	wal-<segment-id>.log
//	[magic:8 "WAYPWAL\x01"]
//	[Entry]*
//	[checksum:32 SHA-256 of all bytes above] (absent on the active segment)
//
// Entry wire format:
//
//	[Length:4][CRC32:4][Type:1][Payload:Length-5]
//
// Length covers CRC32, Type and Payload (big-endian). CRC32 (IEEE) covers
// Type and Payload. Payload is JSON; the record body is encrypted when a
// cipher is configured.
package wal
