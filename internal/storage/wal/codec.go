package wal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/pkg/crypto/adaptive"
)

type wirePayload struct {
	Timestamp   int64  `json:"ts"`
	CharacterID string `json:"cid,omitempty"`
	SavePointID string `json:"spid,omitempty"`

	// Record holds the JSON body in plaintext logs; Sealed holds the cipher
	// output when the log is encrypted.
	Record json.RawMessage `json:"record,omitempty"`
	Sealed []byte          `json:"sealed,omitempty"`
}

func encodeEntryFrame(e *Entry, cipher adaptive.Cipher) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("wal: entry is nil")
	}
	if !e.OpType.valid() {
		return nil, ErrInvalidEntryType
	}

	p := wirePayload{
		Timestamp:   e.Timestamp,
		CharacterID: e.CharacterID,
		SavePointID: e.SavePointID,
	}

	var record any
	switch e.OpType {
	case OpTypeSavePut:
		if e.SavePoint == nil {
			return nil, fmt.Errorf("wal: missing save point for %s", e.OpType)
		}
		record = e.SavePoint
	case OpTypeSessionUpsert:
		if e.Session == nil {
			return nil, fmt.Errorf("wal: missing session for %s", e.OpType)
		}
		record = e.Session
	}

	if record != nil {
		body, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("wal: marshal %s: %w", e.OpType, err)
		}
		if cipher == nil {
			p.Record = body
		} else {
			// Bind the ciphertext to its op so a frame cannot be replayed as another type.
			p.Sealed, err = cipher.Encrypt(body, []byte{byte(e.OpType)})
			if err != nil {
				return nil, fmt.Errorf("wal: encrypt: %w", err)
			}
		}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal payload: %w", err)
	}

	// Frame: [length:4][crc32:4][type:1][payload], length covers crc+type+payload.
	frame := make([]byte, 4+4+1+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(4+1+len(payload)))
	frame[8] = byte(e.OpType)
	copy(frame[9:], payload)
	binary.BigEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(frame[8:]))
	return frame, nil
}

// decodeEntryFrame decodes [crc32:4][type:1][payload].
func decodeEntryFrame(frame []byte, cipher adaptive.Cipher) (*Entry, error) {
	if len(frame) < 5 {
		return nil, ErrCorruptedEntry
	}
	if crc32.ChecksumIEEE(frame[4:]) != binary.BigEndian.Uint32(frame[:4]) {
		return nil, ErrChecksumMismatch
	}

	op := OpType(frame[4])
	if !op.valid() {
		return nil, ErrInvalidEntryType
	}

	var p wirePayload
	if err := json.Unmarshal(frame[5:], &p); err != nil {
		return nil, fmt.Errorf("wal: unmarshal payload: %w", err)
	}

	out := &Entry{
		OpType:      op,
		Timestamp:   p.Timestamp,
		CharacterID: p.CharacterID,
		SavePointID: p.SavePointID,
	}
	if op == OpTypeSaveDelete {
		return out, nil
	}

	body := []byte(p.Record)
	if len(p.Sealed) > 0 {
		if cipher == nil {
			return nil, fmt.Errorf("wal: encrypted entry requires cipher")
		}
		plain, err := cipher.Decrypt(p.Sealed, []byte{byte(op)})
		if err != nil {
			return nil, fmt.Errorf("wal: decrypt: %w", err)
		}
		body = plain
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("wal: missing %s body", op)
	}

	switch op {
	case OpTypeSavePut:
		var sp domain.SavePoint
		if err := json.Unmarshal(body, &sp); err != nil {
			return nil, fmt.Errorf("wal: unmarshal save point: %w", err)
		}
		out.SavePoint = &sp
	case OpTypeSessionUpsert:
		var sess domain.GameSession
		if err := json.Unmarshal(body, &sess); err != nil {
			return nil, fmt.Errorf("wal: unmarshal session: %w", err)
		}
		out.Session = &sess
	}
	return out, nil
}
