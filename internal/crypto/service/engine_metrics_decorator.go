package service

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/metrics"
)

// engineWithMetrics decorates Engine with metrics instrumentation.
type engineWithMetrics struct {
	next    Engine
	metrics metrics.BusinessMetrics
}

// NewEngineWithMetrics wraps an Engine with metrics recording.
func NewEngineWithMetrics(engine Engine, m metrics.BusinessMetrics) Engine {
	return &engineWithMetrics{
		next:    engine,
		metrics: m,
	}
}

// Encrypt records metrics for field encryption.
func (e *engineWithMetrics) Encrypt(
	plaintext []byte,
	fieldName string,
	searchable bool,
) (*cryptoDomain.EncryptedPayload, error) {
	start := time.Now()
	payload, err := e.next.Encrypt(plaintext, fieldName, searchable)
	e.record("encrypt", start, err)
	return payload, err
}

// Decrypt records metrics for field decryption.
func (e *engineWithMetrics) Decrypt(payload *cryptoDomain.EncryptedPayload) ([]byte, error) {
	start := time.Now()
	plaintext, err := e.next.Decrypt(payload)
	e.record("decrypt", start, err)
	return plaintext, err
}

// DecryptWith records metrics for single-key decryption.
func (e *engineWithMetrics) DecryptWith(
	payload *cryptoDomain.EncryptedPayload,
	key *cryptoDomain.Key,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := e.next.DecryptWith(payload, key)
	e.record("decrypt_with", start, err)
	return plaintext, err
}

// SearchHash is not instrumented.
func (e *engineWithMetrics) SearchHash(plaintext []byte, fieldName string) string {
	return e.next.SearchHash(plaintext, fieldName)
}

func (e *engineWithMetrics) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ctx := context.Background()
	e.metrics.RecordOperation(ctx, "crypto", operation, status)
	e.metrics.RecordDuration(ctx, "crypto", operation, time.Since(start), status)
}
