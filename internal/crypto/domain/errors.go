package domain

import (
	"github.com/allisson/fieldcrypt/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so callers can
// branch on the category (invalid input, failed precondition) as well as on the exact failure.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a derived key does not have the 32 bytes the AEADs require.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates no candidate secret could open the payload.
	//
	// This error can occur due to:
	//   - The payload was encrypted under a secret that is no longer held
	//   - Ciphertext, nonce, salt or tag have been tampered with
	//
	// The specific cause is not disclosed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrInvalidPayload indicates a stored value is not a well-formed encrypted payload.
	ErrInvalidPayload = errors.Wrap(errors.ErrInvalidInput, "invalid encrypted payload")

	// ErrLowEntropy indicates secret generation could not reach the required entropy.
	ErrLowEntropy = errors.Wrap(errors.ErrInternal, "generated secret has insufficient entropy")

	// ErrValidationFailed indicates a candidate secret failed format, length or entropy checks.
	ErrValidationFailed = errors.Wrap(errors.ErrInvalidInput, "secret validation failed")

	// ErrInvalidSecret indicates a secret is empty or not valid base64.
	ErrInvalidSecret = errors.Wrap(errors.ErrInvalidInput, "invalid secret")

	// ErrInvalidSalt indicates the salt passed to key derivation is too short.
	ErrInvalidSalt = errors.Wrap(errors.ErrInvalidInput, "invalid salt")

	// ErrInvalidIterationCount indicates a PBKDF2 cost below MinIterationCount.
	ErrInvalidIterationCount = errors.Wrap(errors.ErrInvalidInput, "invalid iteration count")

	// ErrNoActiveKey indicates the key store holds no active secret.
	ErrNoActiveKey = errors.Wrap(errors.ErrFailedPrecondition, "no active key")
)
