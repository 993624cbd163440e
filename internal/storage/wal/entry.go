package wal

import (
	"errors"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// Errors for WAL operations.
var (
	ErrCorruptedEntry   = errors.New("wal: corrupted entry")
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")
	ErrInvalidEntryType = errors.New("wal: invalid entry type")
)

// OpType identifies the mutation recorded by an entry.
type OpType uint8

const (
	OpTypeUnspecified OpType = iota
	OpTypeSavePut
	OpTypeSaveDelete
	OpTypeSessionUpsert
)

// String returns the log-friendly name of the op.
func (o OpType) String() string {
	switch o {
	case OpTypeSavePut:
		return "SAVE_PUT"
	case OpTypeSaveDelete:
		return "SAVE_DELETE"
	case OpTypeSessionUpsert:
		return "SESSION_UPSERT"
	default:
		return "UNSPECIFIED"
	}
}

func (o OpType) valid() bool {
	return o >= OpTypeSavePut && o <= OpTypeSessionUpsert
}

// Entry is one durable mutation.
//
// Exactly one of SavePoint or Session is set for put/upsert entries;
// delete entries carry only the identifiers.
type Entry struct {
	OpType      OpType
	Timestamp   int64 // Unix milliseconds
	CharacterID string
	SavePointID string

	SavePoint *domain.SavePoint
	Session   *domain.GameSession
}

// NewSavePutEntry records a new save point.
func NewSavePutEntry(sp *domain.SavePoint) *Entry {
	return &Entry{
		OpType:      OpTypeSavePut,
		Timestamp:   time.Now().UnixMilli(),
		CharacterID: sp.CharacterID,
		SavePointID: sp.ID,
		SavePoint:   sp,
	}
}

// NewSaveDeleteEntry records a pruned save point.
func NewSaveDeleteEntry(characterID, savePointID string) *Entry {
	return &Entry{
		OpType:      OpTypeSaveDelete,
		Timestamp:   time.Now().UnixMilli(),
		CharacterID: characterID,
		SavePointID: savePointID,
	}
}

// NewSessionUpsertEntry records the latest version of a session.
func NewSessionUpsertEntry(sess *domain.GameSession) *Entry {
	return &Entry{
		OpType:      OpTypeSessionUpsert,
		Timestamp:   time.Now().UnixMilli(),
		CharacterID: sess.CharacterID,
		Session:     sess,
	}
}
