// Package usecase implements master secret rotation: swapping the active secret, migrating
// every encrypted column to it in batches and validating the result, with rollback on failure.
package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

// RecordStore reads and rewrites encrypted column values.
//
// A value is pending when it is not NULL and does not start with the active version marker.
type RecordStore interface {
	// Count returns the number of pending values of a column.
	Count(ctx context.Context, entityType, field, activeMarker string) (int64, error)

	// CountWithMarker returns the number of values written under marker.
	CountWithMarker(ctx context.Context, entityType, field, marker string) (int64, error)

	// FetchBatch returns up to limit pending values ordered by id.
	FetchBatch(
		ctx context.Context,
		entityType, field, activeMarker string,
		limit int,
	) ([]*rotationDomain.StoredValue, error)

	// WriteBack replaces current with payload, and the search companion when the payload
	// carries a hash. A value changed concurrently since it was read is left alone.
	WriteBack(
		ctx context.Context,
		entityType, field string,
		current *rotationDomain.StoredValue,
		payload *cryptoDomain.EncryptedPayload,
	) error

	// ValidateSample passes up to sampleSize random non-NULL values to verify and returns how
	// many were checked. The first verify error is returned.
	ValidateSample(
		ctx context.Context,
		entityType, field string,
		sampleSize int,
		verify func(value string) error,
	) (int, error)
}

// KeyMetadataRepository persists key metadata.
type KeyMetadataRepository interface {
	// Save inserts or updates metadata by key id.
	Save(ctx context.Context, metadata *cryptoDomain.KeyMetadata) error

	// Get returns metadata by key id, or ErrNotFound.
	Get(ctx context.Context, keyID string) (*cryptoDomain.KeyMetadata, error)

	// List returns every stored key ordered by version.
	List(ctx context.Context) ([]*cryptoDomain.KeyMetadata, error)
}

// RotationUseCase manages the master secret lifecycle.
type RotationUseCase interface {
	// RotateKey replaces the active secret with newSecret, or a generated one when empty,
	// and migrates every registered column. Returns the final status.
	RotateKey(ctx context.Context, newSecret string) (*rotationDomain.RotationStatus, error)

	// ShouldRotate reports whether rotation is due and why.
	ShouldRotate(ctx context.Context) (bool, string)

	// RevokeKey marks the active secret compromised and rotates away from it.
	RevokeKey(ctx context.Context, reason string) (*rotationDomain.RotationStatus, error)

	// PruneRetired drops the previous secret once its retention expired at now.
	// Returns whether a key was dropped.
	PruneRetired(ctx context.Context, now time.Time) (bool, error)

	// SyncMetadata merges persisted key metadata into the held keys and saves them back.
	SyncMetadata(ctx context.Context) error

	// Status returns a snapshot of the current or last rotation.
	Status() rotationDomain.RotationStatus
}
