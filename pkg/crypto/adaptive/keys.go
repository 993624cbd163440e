package adaptive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeyPrefix marks a configured secret as a hex-encoded raw key rather than a passphrase.
const KeyPrefix = "wpk_"

const (
	// KeySize is the size of every derived key.
	KeySize = 32

	// SaltSize is the size of the passphrase salt.
	SaltSize = 16

	// MinPassphraseLength is the shortest accepted passphrase.
	MinPassphraseLength = 12

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

var (
	ErrWeakPassphrase = errors.New("adaptive: passphrase too short")
	ErrInvalidKey     = errors.New("adaptive: raw key must be 32 hex-encoded bytes")
)

// MasterKey resolves a configured secret into a 32-byte key.
//
// Secrets of the form "wpk_<64 hex chars>" are used as-is. Anything else is a
// passphrase stretched with Argon2id; its salt is read from saltPath, or
// generated and written there on first use so the same key comes back on restart.
func MasterKey(secret, saltPath string) ([]byte, error) {
	if raw, ok := strings.CutPrefix(secret, KeyPrefix); ok {
		key, err := hex.DecodeString(raw)
		if err != nil || len(key) != KeySize {
			return nil, ErrInvalidKey
		}
		return key, nil
	}

	if len(secret) < MinPassphraseLength {
		return nil, ErrWeakPassphrase
	}
	salt, err := loadOrCreateSalt(saltPath)
	if err != nil {
		return nil, err
	}
	return argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, KeySize), nil
}

// Subkey derives an independent key for one purpose (e.g. "wal", "snapshot") with HKDF-SHA256.
func Subkey(master []byte, purpose string) ([]byte, error) {
	if len(master) < KeySize {
		return nil, ErrInvalidKey
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte("waypoint/"+purpose)), key); err != nil {
		return nil, fmt.Errorf("adaptive: derive %s key: %w", purpose, err)
	}
	return key, nil
}

// GenerateSecret returns a new random raw key in configuration form.
func GenerateSecret() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("adaptive: generate key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(key), nil
}

// Zero overwrites key material.
func Zero(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != SaltSize {
			return nil, fmt.Errorf("adaptive: salt file %s is damaged", path)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("adaptive: read salt: %w", err)
	}

	salt = make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("adaptive: generate salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("adaptive: write salt: %w", err)
	}
	return salt, nil
}
