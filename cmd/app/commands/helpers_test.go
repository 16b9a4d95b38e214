package commands

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

type MockKMSService struct {
	mock.Mock
}

func (m *MockKMSService) OpenKeeper(ctx context.Context, uri string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

type MockKMSKeeper struct {
	mock.Mock
}

func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

type MockRotationUseCase struct {
	mock.Mock
}

func (m *MockRotationUseCase) RotateKey(ctx context.Context, newSecret string) (*rotationDomain.RotationStatus, error) {
	args := m.Called(ctx, newSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.RotationStatus), args.Error(1)
}

func (m *MockRotationUseCase) ShouldRotate(ctx context.Context) (bool, string) {
	args := m.Called(ctx)
	return args.Bool(0), args.String(1)
}

func (m *MockRotationUseCase) RevokeKey(ctx context.Context, reason string) (*rotationDomain.RotationStatus, error) {
	args := m.Called(ctx, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.RotationStatus), args.Error(1)
}

func (m *MockRotationUseCase) PruneRetired(ctx context.Context, now time.Time) (bool, error) {
	args := m.Called(ctx, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRotationUseCase) SyncMetadata(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRotationUseCase) Status() rotationDomain.RotationStatus {
	return m.Called().Get(0).(rotationDomain.RotationStatus)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKey(t *testing.T, version uint) *cryptoDomain.Key {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return cryptoDomain.NewKey(secret, version, cryptoDomain.AESGCM, time.Now())
}

func newKeyStore(t *testing.T, active, previous *cryptoDomain.Key) *cryptoService.MemoryKeyStore {
	t.Helper()
	store, err := cryptoService.NewMemoryKeyStore(active, previous, nil)
	require.NoError(t, err)
	return store
}
