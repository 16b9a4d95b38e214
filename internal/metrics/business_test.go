package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a business metric
// matching the given name, partial label pattern, and value. Uses regex to handle
// extra OTel scope labels injected by the Prometheus exporter.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	businessMetrics, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)
	assert.NotNil(t, businessMetrics)
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	noOpMetrics := NewNoOpBusinessMetrics()
	assert.IsType(t, &NoOpBusinessMetrics{}, noOpMetrics)

	assert.NotPanics(t, func() {
		ctx := context.Background()
		noOpMetrics.RecordOperation(ctx, "crypto", "encrypt", "success")
		noOpMetrics.RecordDuration(ctx, "rotation", "rotate_key", time.Second, "error")
		noOpMetrics.RecordRecords(ctx, "rotation", "reencrypt", 10)
	})
}

func TestBusinessMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	ctx := context.Background()

	bm.RecordOperation(ctx, "crypto", "encrypt", "success")
	bm.RecordOperation(ctx, "crypto", "encrypt", "success")
	bm.RecordOperation(ctx, "crypto", "decrypt", "error")
	bm.RecordOperation(ctx, "rotation", "rotate_key", "success")

	bm.RecordDuration(ctx, "rotation", "rotate_key", 150*time.Millisecond, "success")
	bm.RecordDuration(ctx, "rotation", "rotate_key", 250*time.Millisecond, "success")

	bm.RecordRecords(ctx, "rotation", "reencrypt", 40)
	bm.RecordRecords(ctx, "rotation", "reencrypt", 2)
	bm.RecordRecords(ctx, "rotation", "reencrypt", 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(w, req)

	output := w.Body.String()

	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="crypto".*operation="encrypt".*status="success"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="crypto".*operation="decrypt".*status="error"`,
		`1`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operation_duration_seconds_count`,
		`domain="rotation".*operation="rotate_key".*status="success"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_records_total`,
		`domain="rotation".*operation="reencrypt"`,
		`42`,
	)
}
