// Package adaptive seals WAL entries and snapshot files.
//
// New picks AES-256-GCM where the CPU accelerates AES and
// ChaCha20-Poly1305 elsewhere. Ciphertexts carry their random nonce as a
// prefix, so a Cipher is safe for concurrent use. Keys come from
// MasterKey, which accepts a raw "wpk_" key or stretches a passphrase with
// Argon2id, and Subkey, which derives one key per purpose with HKDF.
package adaptive
