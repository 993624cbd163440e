package service

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// DefaultTrustThreshold is the integrity score below which a restore is refused
// unless the caller tolerates corruption.
const DefaultTrustThreshold = 0.9

// Integrity score penalties, in hundredths.
const (
	penaltyChecksum  = 50
	penaltyCharacter = 20
	penaltyInventory = 10
	penaltySkills    = 10
)

// Verifier computes and checks snapshot checksums.
type Verifier struct{}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Checksum returns the hex murmur3 128-bit digest of the snapshot's canonical JSON.
// encoding/json sorts map keys and compacts raw payloads, so equal snapshots
// always serialize to the same bytes.
func (v *Verifier) Checksum(snap *domain.StateSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	h := murmur3.New128()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the checksum and compares it to the stored one.
func (v *Verifier) Verify(sp *domain.SavePoint) bool {
	if sp == nil || sp.Metadata.Checksum == "" {
		return false
	}
	sum, err := v.Checksum(&sp.Snapshot)
	if err != nil {
		return false
	}
	return sum == sp.Metadata.Checksum
}

// Score rates how trustworthy a save point is, from 0 to 1.
func (v *Verifier) Score(sp *domain.SavePoint) float64 {
	if sp == nil {
		return 0
	}
	points := 100
	if !v.Verify(sp) {
		points -= penaltyChecksum
	}
	if domain.IsEmptyPayload(sp.Snapshot.Character) {
		points -= penaltyCharacter
	}
	if domain.IsEmptyPayload(sp.Snapshot.Inventory) {
		points -= penaltyInventory
	}
	if domain.IsEmptyPayload(sp.Snapshot.Skills) {
		points -= penaltySkills
	}
	if points < 0 {
		points = 0
	}
	return float64(points) / 100
}
