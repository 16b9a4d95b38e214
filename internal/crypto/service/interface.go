// Package service provides the cryptographic building blocks of field encryption: AEAD ciphers,
// per-record key derivation, secret generation and validation, search hashing, the in-memory
// key store and the engine that combines them.
package service

import (
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
//
// The authentication tag is returned separately from the ciphertext so it can be stored in
// its own payload segment.
type AEAD interface {
	// Encrypt seals plaintext with a freshly generated random nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, tag, nonce []byte, err error)

	// Decrypt verifies the tag and returns the plaintext.
	Decrypt(ciphertext, tag, nonce, aad []byte) ([]byte, error)
}

// AEADManager creates AEAD cipher instances for a derived key.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KeyDeriver derives a per-record encryption key from a master secret and a salt.
// Derivation is deterministic: the same secret and salt always yield the same key.
type KeyDeriver interface {
	Derive(secret, salt []byte) ([]byte, error)
}

// KeyValidator generates master secrets and grades candidate ones.
type KeyValidator interface {
	// Generate returns a new base64-encoded master secret of sufficient entropy.
	Generate() (string, error)

	// Validate checks format, length and entropy of a base64-encoded secret.
	Validate(secret string) cryptoDomain.ValidationResult
}

// SearchIndexer computes keyed, deterministic lookup hashes for equality search.
type SearchIndexer interface {
	Hash(plaintext []byte, fieldName string) string
}

// KeyStore holds the active and previous master secrets.
//
// Implementations must make SwapAtomically observable as a single step: a concurrent reader
// sees either the old pair or the new pair, never a mix.
type KeyStore interface {
	// Active returns the key used for new encryptions.
	Active() (*cryptoDomain.Key, error)

	// Previous returns the outgoing key kept for fallback decryption, or nil.
	Previous() *cryptoDomain.Key

	// SwapAtomically replaces both pointers. previous may be nil.
	SwapAtomically(active, previous *cryptoDomain.Key) error

	// IndexKey returns the secret keying search hashes.
	IndexKey() []byte
}

// Engine encrypts and decrypts individual field values.
type Engine interface {
	// Encrypt seals plaintext under the active secret. When searchable is set and fieldName is
	// not empty the payload carries a search hash.
	Encrypt(plaintext []byte, fieldName string, searchable bool) (*cryptoDomain.EncryptedPayload, error)

	// Decrypt opens a payload with the active secret, falling back to the previous one.
	Decrypt(payload *cryptoDomain.EncryptedPayload) ([]byte, error)

	// DecryptWith opens a payload with one specific key and no fallback.
	DecryptWith(payload *cryptoDomain.EncryptedPayload, key *cryptoDomain.Key) ([]byte, error)

	// SearchHash returns the lookup hash of plaintext for fieldName.
	SearchHash(plaintext []byte, fieldName string) string
}
