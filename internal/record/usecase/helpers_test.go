package usecase

import (
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

func newTestKey(t *testing.T, version uint) *cryptoDomain.Key {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return cryptoDomain.NewKey(secret, version, cryptoDomain.AESGCM, time.Now())
}

func newTestEngine(t *testing.T, active, previous *cryptoDomain.Key) (*cryptoService.EngineService, *cryptoService.MemoryKeyStore) {
	t.Helper()
	store, err := cryptoService.NewMemoryKeyStore(active, previous, []byte("search index secret"))
	require.NoError(t, err)
	deriver, err := cryptoService.NewPBKDF2Deriver(cryptoDomain.MinIterationCount)
	require.NoError(t, err)
	engine := cryptoService.NewEngine(
		cryptoService.NewAEADManager(),
		deriver,
		cryptoService.NewHMACSearchIndexer(store),
		store,
	)
	return engine, store
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
