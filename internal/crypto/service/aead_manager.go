package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// AEADManagerService implements AEADManager for AES-256-GCM and ChaCha20-Poly1305.
type AEADManagerService struct{}

// NewAEADManager creates a new AEADManagerService instance.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher returns an AEAD for a 32-byte key.
//
// Returns ErrInvalidKeySize for any other key length and ErrUnsupportedAlgorithm for an
// unknown algorithm.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch alg {
	case cryptoDomain.AESGCM:
		aead, err = newAESGCM(key)
	case cryptoDomain.ChaCha20:
		aead, err = chacha20poly1305.New(key)
		if err != nil {
			err = fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
		}
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	if err != nil {
		return nil, err
	}

	return &detachedTagCipher{aead: aead}, nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// detachedTagCipher adapts a cipher.AEAD so the tag is carried next to the ciphertext
// instead of appended to it.
type detachedTagCipher struct {
	aead cipher.AEAD
}

// Encrypt seals plaintext with a random nonce and splits the tag off the sealed output.
func (c *detachedTagCipher) Encrypt(plaintext, aad []byte) (ciphertext, tag, nonce []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - c.aead.Overhead()
	return sealed[:split], sealed[split:], nonce, nil
}

// Decrypt rejoins ciphertext and tag and opens them.
func (c *detachedTagCipher) Decrypt(ciphertext, tag, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() || len(tag) != c.aead.Overhead() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
