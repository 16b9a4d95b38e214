package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// KeyStatus is the lifecycle state of a master secret.
type KeyStatus string

const (
	// KeyStatusActive marks the secret used for new encryptions. Exactly one key is active.
	KeyStatusActive KeyStatus = "active"
	// KeyStatusRotating marks the outgoing secret while records are being migrated away from it.
	KeyStatusRotating KeyStatus = "rotating"
	// KeyStatusRetired marks a secret kept only for fallback decryption.
	KeyStatusRetired KeyStatus = "retired"
	// KeyStatusCompromised marks a secret that must be rotated out immediately.
	KeyStatusCompromised KeyStatus = "compromised"
)

// KeyUsage counts the operations performed with one secret.
type KeyUsage struct {
	Encryptions int64 `json:"encryptions"`
	Decryptions int64 `json:"decryptions"`
}

// KeyMetadata describes a master secret without exposing it.
type KeyMetadata struct {
	KeyID     string     `json:"key_id"`
	Version   uint       `json:"version"`
	Algorithm Algorithm  `json:"algorithm"`
	CreatedAt time.Time  `json:"created_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Status    KeyStatus  `json:"status"`
	Usage     KeyUsage   `json:"usage"`
}

// Key is a master secret together with its lifecycle metadata.
//
// Secret is immutable after construction. Status changes go through the Mark* methods and
// usage counters are updated atomically, so a Key can be shared by concurrent encryptions.
type Key struct {
	Secret []byte

	mu          sync.RWMutex
	metadata    KeyMetadata
	encryptions atomic.Int64
	decryptions atomic.Int64
}

// NewKeyID derives the stable public identifier of a secret: "key-" followed by the
// hex of the first 8 bytes of its SHA-256 digest.
func NewKeyID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return "key-" + hex.EncodeToString(sum[:8])
}

// NewKey wraps a decoded secret as an active key.
func NewKey(secret []byte, version uint, alg Algorithm, createdAt time.Time) *Key {
	return &Key{
		Secret: secret,
		metadata: KeyMetadata{
			KeyID:     NewKeyID(secret),
			Version:   version,
			Algorithm: alg,
			CreatedAt: createdAt.UTC(),
			Status:    KeyStatusActive,
		},
	}
}

// ID returns the key identifier.
func (k *Key) ID() string {
	return k.metadata.KeyID
}

// Version returns the version label written into payloads encrypted with this key.
func (k *Key) Version() uint {
	return k.metadata.Version
}

// Algorithm returns the AEAD used for new payloads under this key.
func (k *Key) Algorithm() Algorithm {
	return k.metadata.Algorithm
}

// Status returns the current lifecycle state.
func (k *Key) Status() KeyStatus {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.metadata.Status
}

// Metadata returns a snapshot of the key metadata including usage counters.
func (k *Key) Metadata() KeyMetadata {
	k.mu.RLock()
	md := k.metadata
	k.mu.RUnlock()

	md.Usage = KeyUsage{
		Encryptions: k.encryptions.Load(),
		Decryptions: k.decryptions.Load(),
	}
	return md
}

// Restore overwrites lifecycle fields and counters with persisted metadata.
// Identity fields (KeyID, Version, Algorithm) are kept.
func (k *Key) Restore(md KeyMetadata) {
	k.mu.Lock()
	k.metadata.CreatedAt = md.CreatedAt
	k.metadata.RotatedAt = md.RotatedAt
	k.metadata.ExpiresAt = md.ExpiresAt
	k.metadata.Status = md.Status
	k.mu.Unlock()

	k.encryptions.Store(md.Usage.Encryptions)
	k.decryptions.Store(md.Usage.Decryptions)
}

// RecordEncryption increments the encryption counter.
func (k *Key) RecordEncryption() {
	k.encryptions.Inc()
}

// RecordDecryption increments the decryption counter.
func (k *Key) RecordDecryption() {
	k.decryptions.Inc()
}

// MarkActive makes the key the active one and clears any expiry.
func (k *Key) MarkActive() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.metadata.Status = KeyStatusActive
	k.metadata.ExpiresAt = nil
}

// MarkRotating flags the key as the outgoing secret of a rotation in progress.
func (k *Key) MarkRotating() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.metadata.Status = KeyStatusRotating
}

// MarkRetired keeps the key for fallback decryption until now+retention.
func (k *Key) MarkRetired(now time.Time, retention time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	rotatedAt := now.UTC()
	expiresAt := rotatedAt.Add(retention)
	k.metadata.Status = KeyStatusRetired
	k.metadata.RotatedAt = &rotatedAt
	k.metadata.ExpiresAt = &expiresAt
}

// SetStatus changes the status without touching timestamps.
func (k *Key) SetStatus(status KeyStatus) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.metadata.Status = status
}

// MarkCompromised flags the key for immediate rotation.
func (k *Key) MarkCompromised() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.metadata.Status = KeyStatusCompromised
}

// Expired reports whether a retired key passed its retention window.
func (k *Key) Expired(now time.Time) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.metadata.ExpiresAt != nil && !now.Before(*k.metadata.ExpiresAt)
}

// Age returns how long the key has existed.
func (k *Key) Age(now time.Time) time.Duration {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return now.Sub(k.metadata.CreatedAt)
}

// Zero clears the secret from memory.
func (k *Key) Zero() {
	Zero(k.Secret)
}
