package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()
	validKey := randomBytes(t, 32)

	t.Run("create cipher with unsupported algorithm", func(t *testing.T) {
		_, err := manager.CreateCipher(validKey, cryptoDomain.Algorithm("unsupported"))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})

	t.Run("create cipher with invalid key size - too short", func(t *testing.T) {
		_, err := manager.CreateCipher(make([]byte, 16), cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("create cipher with invalid key size - too long", func(t *testing.T) {
		_, err := manager.CreateCipher(make([]byte, 64), cryptoDomain.ChaCha20)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})
}

func TestAEAD_RoundTrip(t *testing.T) {
	manager := NewAEADManager()

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			aead, err := manager.CreateCipher(randomBytes(t, 32), alg)
			require.NoError(t, err)

			plaintext := []byte("+1-555-0100")
			aad := []byte(alg)

			ciphertext, tag, nonce, err := aead.Encrypt(plaintext, aad)
			require.NoError(t, err)
			assert.Len(t, ciphertext, len(plaintext))
			assert.Len(t, tag, cryptoDomain.TagSize)
			assert.Len(t, nonce, cryptoDomain.NonceSize)

			decrypted, err := aead.Decrypt(ciphertext, tag, nonce, aad)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})
	}
}

func TestAEAD_TamperRejection(t *testing.T) {
	aead, err := NewAEADManager().CreateCipher(randomBytes(t, 32), cryptoDomain.AESGCM)
	require.NoError(t, err)

	aad := []byte("aes-gcm")
	ciphertext, tag, nonce, err := aead.Encrypt([]byte("national id"), aad)
	require.NoError(t, err)

	flip := func(b []byte) []byte {
		c := append([]byte(nil), b...)
		c[0] ^= 0x01
		return c
	}

	t.Run("modified ciphertext", func(t *testing.T) {
		_, err := aead.Decrypt(flip(ciphertext), tag, nonce, aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("modified tag", func(t *testing.T) {
		_, err := aead.Decrypt(ciphertext, flip(tag), nonce, aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("modified nonce", func(t *testing.T) {
		_, err := aead.Decrypt(ciphertext, tag, flip(nonce), aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("different aad", func(t *testing.T) {
		_, err := aead.Decrypt(ciphertext, tag, nonce, []byte("chacha20-poly1305"))
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("truncated nonce", func(t *testing.T) {
		_, err := aead.Decrypt(ciphertext, tag, nonce[:4], aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}
