package domain

import (
	"github.com/allisson/fieldcrypt/internal/errors"
)

// Rotation error definitions.
var (
	// ErrRotationInProgress indicates another rotation holds the single-flight guard.
	ErrRotationInProgress = errors.Wrap(errors.ErrConflict, "rotation already in progress")

	// ErrRotationFailed indicates a rotation was rolled back. The cause is wrapped alongside.
	ErrRotationFailed = errors.Wrap(errors.ErrInternal, "rotation failed and was rolled back")

	// ErrBatchFailed indicates a re-encryption batch could not be completed.
	ErrBatchFailed = errors.Wrap(errors.ErrInternal, "re-encryption batch failed")

	// ErrValidationSampleFailed indicates a migrated record did not decrypt under the new key.
	ErrValidationSampleFailed = errors.Wrap(errors.ErrInternal, "post-rotation validation failed")

	// ErrPreviousKeyInUse indicates records are still encrypted under the previous key, so it
	// cannot be dropped by a new rotation or by pruning.
	ErrPreviousKeyInUse = errors.Wrap(errors.ErrFailedPrecondition, "records still encrypted under previous key")

	// ErrCompromisedCandidate indicates an attempt to rotate to a key marked compromised.
	ErrCompromisedCandidate = errors.Wrap(errors.ErrInvalidInput, "cannot rotate to a compromised key")

	// ErrRetiredCandidate indicates an attempt to rotate back to a key a completed rotation
	// moved away from.
	ErrRetiredCandidate = errors.Wrap(errors.ErrInvalidInput, "candidate secret was already rotated away from")

	// ErrKeyVersionInUse indicates values are already encrypted under the version a new
	// candidate would take, so the configured previous key version is wrong.
	ErrKeyVersionInUse = errors.Wrap(
		errors.ErrFailedPrecondition,
		"records already encrypted under candidate key version",
	)

	// ErrKeyMetadataNotFound indicates no metadata is stored for a key id.
	ErrKeyMetadataNotFound = errors.Wrap(errors.ErrNotFound, "key metadata not found")

	// ErrNoPreviousKey indicates there is no retired key to prune.
	ErrNoPreviousKey = errors.Wrap(errors.ErrNotFound, "no previous key")
)
