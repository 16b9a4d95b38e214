package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/metrics"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type mockRotationUseCase struct {
	mock.Mock
}

func (m *mockRotationUseCase) RotateKey(ctx context.Context, newSecret string) (*rotationDomain.RotationStatus, error) {
	args := m.Called(ctx, newSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.RotationStatus), args.Error(1)
}

func (m *mockRotationUseCase) ShouldRotate(ctx context.Context) (bool, string) {
	args := m.Called(ctx)
	return args.Bool(0), args.String(1)
}

func (m *mockRotationUseCase) RevokeKey(ctx context.Context, reason string) (*rotationDomain.RotationStatus, error) {
	args := m.Called(ctx, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.RotationStatus), args.Error(1)
}

func (m *mockRotationUseCase) PruneRetired(ctx context.Context, now time.Time) (bool, error) {
	args := m.Called(ctx, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockRotationUseCase) SyncMetadata(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRotationUseCase) Status() rotationDomain.RotationStatus {
	return m.Called().Get(0).(rotationDomain.RotationStatus)
}

type mockKeyMetadataRepository struct {
	mock.Mock
}

func (m *mockKeyMetadataRepository) Save(ctx context.Context, metadata *cryptoDomain.KeyMetadata) error {
	return m.Called(ctx, metadata).Error(0)
}

func (m *mockKeyMetadataRepository) Get(ctx context.Context, keyID string) (*cryptoDomain.KeyMetadata, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.KeyMetadata), args.Error(1)
}

func (m *mockKeyMetadataRepository) List(ctx context.Context) ([]*cryptoDomain.KeyMetadata, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.KeyMetadata), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestServer() *Server {
	return NewServer(nil, "localhost", 8080, discardLogger())
}

func newTestKeyStore(t *testing.T) *cryptoService.MemoryKeyStore {
	t.Helper()
	key := cryptoDomain.NewKey(make([]byte, 32), 1, cryptoDomain.AESGCM, time.Now())
	store, err := cryptoService.NewMemoryKeyStore(key, nil, nil)
	require.NoError(t, err)
	return store
}

func TestHealthHandler(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	server.healthHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessHandler(t *testing.T) {
	t.Run("NotReady_NilDBAndKeyStore", func(t *testing.T) {
		server := createTestServer()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "not_ready", response["status"])

		components, ok := response["components"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "error", components["database"])
		assert.Equal(t, "error", components["key_store"])
	})

	t.Run("Ready", func(t *testing.T) {
		db, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		sqlMock.ExpectPing()

		server := NewServer(db, "localhost", 8080, discardLogger())
		server.SetupRouter(newTestKeyStore(t), nil, nil, nil, "")

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "ready", response["status"])
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("NotReady_PingFails", func(t *testing.T) {
		db, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		sqlMock.ExpectPing().WillReturnError(assert.AnError)

		server := NewServer(db, "localhost", 8080, discardLogger())
		server.SetupRouter(newTestKeyStore(t), nil, nil, nil, "")

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		components := response["components"].(map[string]interface{})
		assert.Equal(t, "error", components["database"])
		assert.Equal(t, "ok", components["key_store"])
	})
}

func TestRotationEndpoints(t *testing.T) {
	rotation := &mockRotationUseCase{}
	server := createTestServer()
	server.SetupRouter(newTestKeyStore(t), rotation, nil, nil, "")

	t.Run("Status", func(t *testing.T) {
		rotation.On("Status").Return(rotationDomain.RotationStatus{
			Phase:    rotationDomain.PhaseReEncrypting,
			Progress: rotationDomain.Progress{Total: 10, Processed: 4},
		}).Once()

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rotation/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var status rotationDomain.RotationStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, rotationDomain.PhaseReEncrypting, status.Phase)
		assert.Equal(t, int64(4), status.Progress.Processed)
	})

	t.Run("Due", func(t *testing.T) {
		rotation.On("ShouldRotate", mock.Anything).Return(true, "key age exceeds rotation interval").Once()

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rotation/due", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, true, response["should_rotate"])
		assert.Equal(t, "key age exceeds rotation interval", response["reason"])
	})

	rotation.AssertExpectations(t)
}

func TestKeyEndpoints(t *testing.T) {
	keys := &mockKeyMetadataRepository{}
	server := createTestServer()
	server.SetupRouter(newTestKeyStore(t), nil, keys, nil, "")

	t.Run("List", func(t *testing.T) {
		keys.On("List", mock.Anything).Return([]*cryptoDomain.KeyMetadata{
			{KeyID: "key-0001", Version: 1, Status: cryptoDomain.KeyStatusRetired},
			{KeyID: "key-0002", Version: 2, Status: cryptoDomain.KeyStatusActive},
		}, nil).Once()

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Data []cryptoDomain.KeyMetadata `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 2)
		assert.Equal(t, "key-0002", response.Data[1].KeyID)
		assert.NotContains(t, w.Body.String(), "secret")
	})

	t.Run("Get", func(t *testing.T) {
		keys.On("Get", mock.Anything, "key-0002").
			Return(&cryptoDomain.KeyMetadata{KeyID: "key-0002", Version: 2}, nil).
			Once()

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys/key-0002", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var md cryptoDomain.KeyMetadata
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &md))
		assert.Equal(t, uint(2), md.Version)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		keys.On("Get", mock.Anything, "key-missing").
			Return(nil, rotationDomain.ErrKeyMetadataNotFound).
			Once()

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys/key-missing", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("List_Error", func(t *testing.T) {
		keys.On("List", mock.Anything).Return(nil, errors.New("connection refused")).Once()

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/keys", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	keys.AssertExpectations(t)
}

func TestCustomLoggerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	requestID := w.Header().Get("X-Request-Id")
	parsed, err := uuid.Parse(requestID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	t.Run("Enabled", func(t *testing.T) {
		provider, err := metrics.NewProvider("test_app")
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, provider.Shutdown(context.Background()))
		}()

		server := createTestServer()
		server.SetupRouter(newTestKeyStore(t), nil, nil, provider, "test_app")

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	})

	t.Run("Disabled", func(t *testing.T) {
		server := createTestServer()
		server.SetupRouter(newTestKeyStore(t), nil, nil, nil, "")

		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rotation/status", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_ShutdownGracefully(t *testing.T) {
	server := NewServer(nil, "localhost", 0, discardLogger())
	server.SetupRouter(newTestKeyStore(t), nil, nil, nil, "")

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(shutdownCtx))
	assert.NoError(t, <-errChan)
}

func TestServer_StartWithoutRouter(t *testing.T) {
	err := createTestServer().Start(context.Background())
	assert.Error(t, err)
}
