package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	appvalidation "github.com/allisson/fieldcrypt/internal/validation"
)

// EntropyKeyValidator generates and grades master secrets by normalized Shannon entropy.
type EntropyKeyValidator struct {
	minKeyLength int
	randRead     func([]byte) (int, error)
}

// NewEntropyKeyValidator creates a validator requiring secrets of at least minKeyLength
// decoded bytes. A non-positive value falls back to DefaultMinKeyLength.
func NewEntropyKeyValidator(minKeyLength int) *EntropyKeyValidator {
	if minKeyLength <= 0 {
		minKeyLength = cryptoDomain.DefaultMinKeyLength
	}
	return &EntropyKeyValidator{minKeyLength: minKeyLength, randRead: rand.Read}
}

// Generate returns a base64-encoded random secret whose normalized entropy reaches
// MinGeneratedEntropy, retrying up to MaxGenerateAttempts times.
func (v *EntropyKeyValidator) Generate() (string, error) {
	size := max(cryptoDomain.GeneratedSecretSize, v.minKeyLength)
	buf := make([]byte, size)
	defer cryptoDomain.Zero(buf)

	for range cryptoDomain.MaxGenerateAttempts {
		if _, err := v.randRead(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		if NormalizedEntropy(buf) >= cryptoDomain.MinGeneratedEntropy {
			return base64.StdEncoding.EncodeToString(buf), nil
		}
	}
	return "", cryptoDomain.ErrLowEntropy
}

// Validate grades a base64-encoded secret.
//
// Strength tiers by normalized entropy: below 6.0 weak (invalid), below 7.0 medium,
// otherwise strong.
func (v *EntropyKeyValidator) Validate(secret string) cryptoDomain.ValidationResult {
	result := cryptoDomain.ValidationResult{Strength: cryptoDomain.StrengthWeak}

	err := validation.Validate(secret,
		validation.Required,
		appvalidation.Base64,
		appvalidation.MinDecodedLength(v.minKeyLength),
	)
	if err != nil {
		result.Issues = append(result.Issues, err.Error())
	}

	decoded, decodeErr := base64.StdEncoding.DecodeString(secret)
	if decodeErr != nil || len(decoded) == 0 {
		return result
	}
	defer cryptoDomain.Zero(decoded)

	result.Entropy = NormalizedEntropy(decoded)
	switch {
	case result.Entropy < cryptoDomain.WeakEntropyThreshold:
		result.Strength = cryptoDomain.StrengthWeak
		result.Issues = append(result.Issues, "low entropy")
	case result.Entropy < cryptoDomain.StrongEntropyThreshold:
		result.Strength = cryptoDomain.StrengthMedium
	default:
		result.Strength = cryptoDomain.StrengthStrong
	}

	result.IsValid = len(result.Issues) == 0
	return result
}

// NormalizedEntropy returns the Shannon entropy of b in bits per byte, scaled so that a
// sample using every possible symbol equally scores 8.
//
// Raw entropy of n bytes cannot exceed log2(min(256, n)), so short samples are scaled by
// that bound.
func NormalizedEntropy(b []byte) float64 {
	n := len(b)
	if n < 2 {
		return 0
	}

	var freq [256]int
	for _, c := range b {
		freq[c]++
	}

	entropy := 0.0
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(n)
		entropy -= p * math.Log2(p)
	}

	maxPossible := math.Log2(math.Min(256, float64(n)))
	return entropy / maxPossible * 8
}
