package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// MemoryKeyStore keeps the active and previous master secrets in process memory.
type MemoryKeyStore struct {
	mu       sync.RWMutex
	active   *cryptoDomain.Key
	previous *cryptoDomain.Key
	indexKey []byte
}

// NewMemoryKeyStore creates a key store. previous and indexKey may be nil; without an index
// key search hashes are keyed by the active secret.
func NewMemoryKeyStore(active, previous *cryptoDomain.Key, indexKey []byte) (*MemoryKeyStore, error) {
	if active == nil {
		return nil, cryptoDomain.ErrNoActiveKey
	}
	return &MemoryKeyStore{active: active, previous: previous, indexKey: indexKey}, nil
}

// Active returns the key used for new encryptions.
func (s *MemoryKeyStore) Active() (*cryptoDomain.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, cryptoDomain.ErrNoActiveKey
	}
	return s.active, nil
}

// Previous returns the fallback key or nil.
func (s *MemoryKeyStore) Previous() *cryptoDomain.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// SwapAtomically replaces the active and previous keys in one step.
func (s *MemoryKeyStore) SwapAtomically(active, previous *cryptoDomain.Key) error {
	if active == nil {
		return cryptoDomain.ErrNoActiveKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
	s.previous = previous
	return nil
}

// IndexKey returns the dedicated search index secret, or the active secret when none is set.
func (s *MemoryKeyStore) IndexKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.indexKey) > 0 {
		return s.indexKey
	}
	return s.active.Secret
}

// HasDedicatedIndexKey reports whether search hashes survive a rotation unchanged.
func (s *MemoryKeyStore) HasDedicatedIndexKey() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.indexKey) > 0
}

// Close zeroes every secret held by the store.
func (s *MemoryKeyStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Zero()
	}
	if s.previous != nil {
		s.previous.Zero()
	}
	cryptoDomain.Zero(s.indexKey)
}

// KeyStoreConfig lists the configured secrets a MemoryKeyStore is loaded from.
type KeyStoreConfig struct {
	ActiveSecret   string
	ActiveVersion  uint
	PreviousSecret string
	// PreviousVersion is the version label of PreviousSecret. Zero means ActiveVersion-1.
	PreviousVersion   uint
	SearchIndexSecret string
	Algorithm         cryptoDomain.Algorithm
}

// LoadMemoryKeyStore decodes the configured secrets into a MemoryKeyStore.
//
// Secrets are standard base64. When keeper is not nil each value is instead the base64
// KMS ciphertext of the secret and is unwrapped through the keeper.
func LoadMemoryKeyStore(
	ctx context.Context,
	cfg KeyStoreConfig,
	keeper cryptoDomain.KMSKeeper,
) (*MemoryKeyStore, error) {
	if cfg.ActiveSecret == "" {
		return nil, cryptoDomain.ErrNoActiveKey
	}
	alg, err := cryptoDomain.ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	activeSecret, err := DecodeSecret(ctx, cfg.ActiveSecret, keeper)
	if err != nil {
		return nil, fmt.Errorf("active secret: %w", err)
	}
	active := cryptoDomain.NewKey(activeSecret, cfg.ActiveVersion, alg, now)

	var previous *cryptoDomain.Key
	if cfg.PreviousSecret != "" {
		previousSecret, err := DecodeSecret(ctx, cfg.PreviousSecret, keeper)
		if err != nil {
			active.Zero()
			return nil, fmt.Errorf("previous secret: %w", err)
		}
		version := cfg.PreviousVersion
		if version == 0 && cfg.ActiveVersion > 0 {
			version = cfg.ActiveVersion - 1
		}
		if version == cfg.ActiveVersion {
			active.Zero()
			cryptoDomain.Zero(previousSecret)
			return nil, fmt.Errorf("%w: previous secret version %d equals active version",
				cryptoDomain.ErrInvalidSecret, version)
		}
		previous = cryptoDomain.NewKey(previousSecret, version, alg, now)
		// expiry stays unset until persisted metadata is restored
		previous.Restore(cryptoDomain.KeyMetadata{CreatedAt: now, Status: cryptoDomain.KeyStatusRetired})
	}

	var indexKey []byte
	if cfg.SearchIndexSecret != "" {
		indexKey, err = DecodeSecret(ctx, cfg.SearchIndexSecret, keeper)
		if err != nil {
			active.Zero()
			if previous != nil {
				previous.Zero()
			}
			return nil, fmt.Errorf("search index secret: %w", err)
		}
	}

	return NewMemoryKeyStore(active, previous, indexKey)
}

// DecodeSecret turns a configured secret into raw key material, unwrapping it through
// keeper when one is given.
func DecodeSecret(ctx context.Context, value string, keeper cryptoDomain.KMSKeeper) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidSecret, err)
	}
	if len(decoded) == 0 {
		return nil, cryptoDomain.ErrInvalidSecret
	}
	if keeper == nil {
		return decoded, nil
	}

	secret, err := keeper.Decrypt(ctx, decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap secret with KMS: %w", err)
	}
	return secret, nil
}

// EncodeSecret renders raw key material in configuration form, wrapping it through keeper
// when one is given.
func EncodeSecret(ctx context.Context, secret []byte, keeper cryptoDomain.KMSKeeper) (string, error) {
	if keeper == nil {
		return base64.StdEncoding.EncodeToString(secret), nil
	}
	wrapped, err := keeper.Encrypt(ctx, secret)
	if err != nil {
		return "", fmt.Errorf("failed to wrap secret with KMS: %w", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}
