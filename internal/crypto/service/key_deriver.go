package service

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// PBKDF2Deriver derives per-record keys with PBKDF2-HMAC-SHA256.
type PBKDF2Deriver struct {
	iterations int
}

// NewPBKDF2Deriver creates a deriver with the given iteration count.
//
// Returns ErrInvalidIterationCount when iterations is below MinIterationCount.
func NewPBKDF2Deriver(iterations int) (*PBKDF2Deriver, error) {
	if iterations < cryptoDomain.MinIterationCount {
		return nil, cryptoDomain.ErrInvalidIterationCount
	}
	return &PBKDF2Deriver{iterations: iterations}, nil
}

// Derive returns a 32-byte key for secret and salt.
func (d *PBKDF2Deriver) Derive(secret, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, cryptoDomain.ErrInvalidSecret
	}
	if len(salt) < cryptoDomain.SaltSize {
		return nil, cryptoDomain.ErrInvalidSalt
	}
	return pbkdf2.Key(secret, salt, d.iterations, cryptoDomain.KeySize, sha256.New), nil
}
