package usecase

import (
	"context"
	"time"

	"github.com/allisson/fieldcrypt/internal/metrics"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// RotateKey records metrics for rotations, including the number of migrated records.
func (r *rotationUseCaseWithMetrics) RotateKey(
	ctx context.Context,
	newSecret string,
) (*rotationDomain.RotationStatus, error) {
	start := time.Now()
	status, err := r.next.RotateKey(ctx, newSecret)
	r.record(ctx, "rotate_key", start, status, err)
	return status, err
}

// RevokeKey records metrics for revocations.
func (r *rotationUseCaseWithMetrics) RevokeKey(
	ctx context.Context,
	reason string,
) (*rotationDomain.RotationStatus, error) {
	start := time.Now()
	status, err := r.next.RevokeKey(ctx, reason)
	r.record(ctx, "revoke_key", start, status, err)
	return status, err
}

// PruneRetired records metrics for pruning.
func (r *rotationUseCaseWithMetrics) PruneRetired(ctx context.Context, now time.Time) (bool, error) {
	start := time.Now()
	pruned, err := r.next.PruneRetired(ctx, now)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "prune_retired", status)
	r.metrics.RecordDuration(ctx, "rotation", "prune_retired", time.Since(start), status)

	return pruned, err
}

// ShouldRotate delegates without instrumentation.
func (r *rotationUseCaseWithMetrics) ShouldRotate(ctx context.Context) (bool, string) {
	return r.next.ShouldRotate(ctx)
}

// SyncMetadata delegates without instrumentation.
func (r *rotationUseCaseWithMetrics) SyncMetadata(ctx context.Context) error {
	return r.next.SyncMetadata(ctx)
}

// Status delegates without instrumentation.
func (r *rotationUseCaseWithMetrics) Status() rotationDomain.RotationStatus {
	return r.next.Status()
}

func (r *rotationUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	rotationStatus *rotationDomain.RotationStatus,
	err error,
) {
	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", operation, status)
	r.metrics.RecordDuration(ctx, "rotation", operation, time.Since(start), status)
	if rotationStatus != nil && rotationStatus.Progress.Processed > 0 {
		r.metrics.RecordRecords(ctx, "rotation", operation, rotationStatus.Progress.Processed)
	}
}
