package service

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func newTestKey(t *testing.T, version uint) *cryptoDomain.Key {
	t.Helper()
	return cryptoDomain.NewKey(randomBytes(t, 32), version, cryptoDomain.AESGCM, time.Now())
}

func TestNewMemoryKeyStore(t *testing.T) {
	_, err := NewMemoryKeyStore(nil, nil, nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrNoActiveKey)

	active := newTestKey(t, 1)
	store, err := NewMemoryKeyStore(active, nil, nil)
	require.NoError(t, err)

	got, err := store.Active()
	require.NoError(t, err)
	assert.Same(t, active, got)
	assert.Nil(t, store.Previous())
}

func TestMemoryKeyStore_IndexKey(t *testing.T) {
	active := newTestKey(t, 1)

	t.Run("falls back to active secret", func(t *testing.T) {
		store, err := NewMemoryKeyStore(active, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, active.Secret, store.IndexKey())
		assert.False(t, store.HasDedicatedIndexKey())
	})

	t.Run("dedicated index secret", func(t *testing.T) {
		index := []byte("index secret")
		store, err := NewMemoryKeyStore(active, nil, index)
		require.NoError(t, err)
		assert.Equal(t, index, store.IndexKey())
		assert.True(t, store.HasDedicatedIndexKey())

		require.NoError(t, store.SwapAtomically(newTestKey(t, 2), active))
		assert.Equal(t, index, store.IndexKey())
	})
}

func TestMemoryKeyStore_SwapAtomically(t *testing.T) {
	oldKey := newTestKey(t, 1)
	newKey := newTestKey(t, 2)

	store, err := NewMemoryKeyStore(oldKey, nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, store.SwapAtomically(nil, oldKey), cryptoDomain.ErrNoActiveKey)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			active, err := store.Active()
			assert.NoError(t, err)
			// a reader sees either the old pair or the new pair
			if active == newKey {
				assert.Same(t, oldKey, store.Previous())
			}
		}()
	}

	require.NoError(t, store.SwapAtomically(newKey, oldKey))
	wg.Wait()

	active, err := store.Active()
	require.NoError(t, err)
	assert.Same(t, newKey, active)
	assert.Same(t, oldKey, store.Previous())
}

func TestMemoryKeyStore_Close(t *testing.T) {
	active := newTestKey(t, 1)
	store, err := NewMemoryKeyStore(active, nil, []byte{1, 2, 3})
	require.NoError(t, err)

	store.Close()
	assert.Equal(t, make([]byte, 32), active.Secret)
}

func TestLoadMemoryKeyStore(t *testing.T) {
	ctx := context.Background()
	activeSecret := randomBytes(t, 32)
	previousSecret := randomBytes(t, 32)

	t.Run("active and previous", func(t *testing.T) {
		store, err := LoadMemoryKeyStore(ctx, KeyStoreConfig{
			ActiveSecret:   base64.StdEncoding.EncodeToString(activeSecret),
			ActiveVersion:  3,
			PreviousSecret: base64.StdEncoding.EncodeToString(previousSecret),
			Algorithm:      cryptoDomain.ChaCha20,
		}, nil)
		require.NoError(t, err)

		active, err := store.Active()
		require.NoError(t, err)
		assert.Equal(t, activeSecret, active.Secret)
		assert.Equal(t, uint(3), active.Version())
		assert.Equal(t, cryptoDomain.ChaCha20, active.Algorithm())
		assert.Equal(t, cryptoDomain.KeyStatusActive, active.Status())

		previous := store.Previous()
		require.NotNil(t, previous)
		assert.Equal(t, previousSecret, previous.Secret)
		assert.Equal(t, uint(2), previous.Version())
		assert.Equal(t, cryptoDomain.KeyStatusRetired, previous.Status())
	})

	t.Run("previous version above active after rollback", func(t *testing.T) {
		store, err := LoadMemoryKeyStore(ctx, KeyStoreConfig{
			ActiveSecret:    base64.StdEncoding.EncodeToString(activeSecret),
			ActiveVersion:   1,
			PreviousSecret:  base64.StdEncoding.EncodeToString(previousSecret),
			PreviousVersion: 2,
		}, nil)
		require.NoError(t, err)

		active, err := store.Active()
		require.NoError(t, err)
		assert.Equal(t, uint(1), active.Version())

		previous := store.Previous()
		require.NotNil(t, previous)
		assert.Equal(t, uint(2), previous.Version())
		assert.Equal(t, previousSecret, previous.Secret)
	})

	t.Run("previous version equal to active", func(t *testing.T) {
		_, err := LoadMemoryKeyStore(ctx, KeyStoreConfig{
			ActiveSecret:    base64.StdEncoding.EncodeToString(activeSecret),
			ActiveVersion:   2,
			PreviousSecret:  base64.StdEncoding.EncodeToString(previousSecret),
			PreviousVersion: 2,
		}, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidSecret)
	})

	t.Run("missing active secret", func(t *testing.T) {
		_, err := LoadMemoryKeyStore(ctx, KeyStoreConfig{}, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrNoActiveKey)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := LoadMemoryKeyStore(ctx, KeyStoreConfig{ActiveSecret: "%%%"}, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidSecret)
	})

	t.Run("invalid previous secret", func(t *testing.T) {
		_, err := LoadMemoryKeyStore(ctx, KeyStoreConfig{
			ActiveSecret:   base64.StdEncoding.EncodeToString(activeSecret),
			PreviousSecret: "%%%",
		}, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidSecret)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := LoadMemoryKeyStore(ctx, KeyStoreConfig{
			ActiveSecret: base64.StdEncoding.EncodeToString(activeSecret),
			Algorithm:    "des",
		}, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})
}
