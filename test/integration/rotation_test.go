// Package integration provides end-to-end tests that rotate the master secret over real
// PostgreSQL and MySQL databases and check the status endpoints of the running container.
package integration

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
	"github.com/allisson/fieldcrypt/internal/testutil"
)

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	engine    cryptoService.Engine
	dbDriver  string

	users    map[int64]string
	messages map[int64]string
}

func randomSecret(t *testing.T) string {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(secret)
}

// setupIntegrationTest migrates a clean database, builds the container and starts the
// status server over it.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)
	testutil.SkipIfNoDB(t, dbDriver)
	db := testutil.SetupDB(t, dbDriver)

	cfg := &config.Config{
		ServerHost:                   "localhost",
		ServerPort:                   8081,
		DBDriver:                     dbDriver,
		DBConnectionString:           testutil.GetTestDSN(dbDriver),
		DBMaxOpenConnections:         10,
		DBMaxIdleConnections:         5,
		DBConnMaxLifetime:            time.Hour,
		LogLevel:                     "error",
		ActiveSecret:                 randomSecret(t),
		ActiveSecretVersion:          1,
		SearchIndexSecret:            randomSecret(t),
		IterationCount:               cryptoDomain.MinIterationCount,
		MinKeyLength:                 32,
		CryptoAlgorithm:              string(cryptoDomain.AESGCM),
		RotationInterval:             90 * 24 * time.Hour,
		RetentionPeriod:              30 * 24 * time.Hour,
		RotationTargets:              testutil.FixtureTargets,
		RotationBatchSize:            3,
		RotationBatchTimeout:         10 * time.Second,
		RotationWorkers:              2,
		RotationBatchRetries:         1,
		RotationValidationSampleSize: 20,
		MetricsEnabled:               true,
		MetricsNamespace:             "fieldcrypt_integration",
	}

	container := app.NewContainer(cfg)

	engine, err := container.Engine()
	require.NoError(t, err, "failed to build engine")

	rotation, err := container.RotationUseCase()
	require.NoError(t, err, "failed to build rotation use case")
	require.NoError(t, rotation.SyncMetadata(context.Background()), "failed to sync key metadata")

	server, err := container.HTTPServer()
	require.NoError(t, err, "failed to build status server")

	return &integrationTestContext{
		container: container,
		db:        db,
		server:    httptest.NewServer(server.GetHandler()),
		engine:    engine,
		dbDriver:  dbDriver,
		users:     make(map[int64]string),
		messages:  make(map[int64]string),
	}
}

func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()

	ctx.server.Close()
	if err := ctx.container.Shutdown(context.Background()); err != nil {
		t.Logf("Warning: container shutdown: %v", err)
	}
	testutil.TeardownDB(t, ctx.db)
}

// seed writes users with a NULL national id every fourth row, and messages.
func (ctx *integrationTestContext) seed(t *testing.T, users, messages int) {
	t.Helper()

	for i := 1; i <= users; i++ {
		id := int64(i)
		if i%4 == 0 {
			testutil.InsertUser(t, ctx.db, ctx.dbDriver, id, "", "")
			continue
		}
		plaintext := fmt.Sprintf("NID-%06d", i)
		payload, err := ctx.engine.Encrypt([]byte(plaintext), "national_id", true)
		require.NoError(t, err)
		testutil.InsertUser(t, ctx.db, ctx.dbDriver, id, payload.String(), payload.SearchHash)
		ctx.users[id] = plaintext
	}

	for i := 1; i <= messages; i++ {
		id := int64(i)
		plaintext := fmt.Sprintf("message body %d", i)
		payload, err := ctx.engine.Encrypt([]byte(plaintext), "body", false)
		require.NoError(t, err)
		testutil.InsertMessage(t, ctx.db, ctx.dbDriver, id, payload.String())
		ctx.messages[id] = plaintext
	}
}

// assertColumn checks every seeded value of a column is under version and decrypts.
func (ctx *integrationTestContext) assertColumn(
	t *testing.T,
	table, column string,
	want map[int64]string,
	version uint,
) {
	t.Helper()

	for id, plaintext := range want {
		stored := testutil.ReadColumn(t, ctx.db, ctx.dbDriver, table, column, id)
		payload, err := cryptoDomain.ParsePayload(stored)
		require.NoError(t, err, "%s.%s id %d", table, column, id)
		assert.Equal(t, version, payload.KeyVersion, "%s.%s id %d", table, column, id)

		decrypted, err := ctx.engine.Decrypt(payload)
		require.NoError(t, err, "%s.%s id %d", table, column, id)
		assert.Equal(t, plaintext, string(decrypted))
	}
}

// getJSON performs a GET request against the status server and decodes the body.
func (ctx *integrationTestContext) getJSON(t *testing.T, path string, out any) int {
	t.Helper()

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Get(ctx.server.URL + path)
	require.NoError(t, err, "failed to perform request")
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), "body: %s", body)
	}
	return resp.StatusCode
}

// TestIntegration_Rotation_CompleteFlow rotates the master secret over both drivers and
// checks every record, the persisted key metadata and the status endpoints.
func TestIntegration_Rotation_CompleteFlow(t *testing.T) {
	// Skip if short mode (integration tests can be slow)
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testCases := []struct {
		name     string
		dbDriver string
	}{
		{"PostgreSQL", "postgres"},
		{"MySQL", "mysql"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			ctx.seed(t, 12, 7)

			t.Run("01_Readiness", func(t *testing.T) {
				var response map[string]any
				status := ctx.getJSON(t, "/ready", &response)
				assert.Equal(t, http.StatusOK, status)
				assert.Equal(t, "ready", response["status"])
			})

			t.Run("02_RotationNotDue", func(t *testing.T) {
				var response map[string]any
				status := ctx.getJSON(t, "/rotation/due", &response)
				assert.Equal(t, http.StatusOK, status)
				assert.Equal(t, false, response["should_rotate"])
			})

			var searchBefore string
			t.Run("03_RotateKey", func(t *testing.T) {
				searchBefore = testutil.ReadColumn(t, ctx.db, ctx.dbDriver, "users", "national_id_search", 1)

				rotation, err := ctx.container.RotationUseCase()
				require.NoError(t, err)

				result, err := rotation.RotateKey(context.Background(), "")
				require.NoError(t, err)
				require.NotNil(t, result)

				assert.Equal(t, rotationDomain.PhaseCompleted, result.Phase)
				assert.Equal(t, int64(len(ctx.users)+len(ctx.messages)), result.Progress.Total)
				assert.Equal(t, result.Progress.Total, result.Progress.Processed)
				assert.Zero(t, result.Progress.Failed)
				assert.Empty(t, result.Errors)
			})

			t.Run("04_RecordsMigrated", func(t *testing.T) {
				ctx.assertColumn(t, "users", "national_id", ctx.users, 2)
				ctx.assertColumn(t, "messages", "body", ctx.messages, 2)

				assert.Empty(t, testutil.ReadColumn(t, ctx.db, ctx.dbDriver, "users", "national_id", 4))
				assert.Equal(t, searchBefore,
					testutil.ReadColumn(t, ctx.db, ctx.dbDriver, "users", "national_id_search", 1),
					"a dedicated index secret keeps search hashes stable")
				assert.Equal(t, ctx.engine.SearchHash([]byte(ctx.users[1]), "national_id"), searchBefore)
			})

			t.Run("05_StatusEndpoint", func(t *testing.T) {
				var response rotationDomain.RotationStatus
				status := ctx.getJSON(t, "/rotation/status", &response)
				assert.Equal(t, http.StatusOK, status)
				assert.Equal(t, rotationDomain.PhaseCompleted, response.Phase)
				assert.False(t, response.InProgress)
				assert.NotEmpty(t, response.FromKeyID)
				assert.NotEmpty(t, response.ToKeyID)
			})

			t.Run("06_KeyMetadataPersisted", func(t *testing.T) {
				assert.Equal(t, 2, testutil.CountKeyMetadata(t, ctx.db))

				var response struct {
					Data []cryptoDomain.KeyMetadata `json:"data"`
				}
				status := ctx.getJSON(t, "/keys", &response)
				assert.Equal(t, http.StatusOK, status)
				require.Len(t, response.Data, 2)
				assert.Equal(t, uint(1), response.Data[0].Version)
				assert.Equal(t, cryptoDomain.KeyStatusRetired, response.Data[0].Status)
				assert.NotNil(t, response.Data[0].ExpiresAt)
				assert.Equal(t, uint(2), response.Data[1].Version)
				assert.Equal(t, cryptoDomain.KeyStatusActive, response.Data[1].Status)

				var key cryptoDomain.KeyMetadata
				status = ctx.getJSON(t, "/keys/"+response.Data[1].KeyID, &key)
				assert.Equal(t, http.StatusOK, status)
				assert.Equal(t, response.Data[1].KeyID, key.KeyID)

				status = ctx.getJSON(t, "/keys/missing", nil)
				assert.Equal(t, http.StatusNotFound, status)
			})

			t.Run("07_PruneKeepsRetainedKey", func(t *testing.T) {
				rotation, err := ctx.container.RotationUseCase()
				require.NoError(t, err)

				pruned, err := rotation.PruneRetired(context.Background(), time.Now().UTC())
				require.NoError(t, err)
				assert.False(t, pruned, "the previous key is still within its retention period")
			})

			t.Run("08_Metrics", func(t *testing.T) {
				status := ctx.getJSON(t, "/metrics", nil)
				assert.Equal(t, http.StatusOK, status)
			})
		})
	}
}
