package service

import (
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// EngineService implements Engine.
//
// Every payload gets its own random salt, so every record is sealed with its own derived key.
// The algorithm id is bound as associated data.
type EngineService struct {
	aeadManager AEADManager
	deriver     KeyDeriver
	indexer     SearchIndexer
	keyStore    KeyStore
}

// NewEngine creates a new EngineService.
func NewEngine(
	aeadManager AEADManager,
	deriver KeyDeriver,
	indexer SearchIndexer,
	keyStore KeyStore,
) *EngineService {
	return &EngineService{
		aeadManager: aeadManager,
		deriver:     deriver,
		indexer:     indexer,
		keyStore:    keyStore,
	}
}

// Encrypt seals plaintext under the active key.
func (e *EngineService) Encrypt(
	plaintext []byte,
	fieldName string,
	searchable bool,
) (*cryptoDomain.EncryptedPayload, error) {
	active, err := e.keyStore.Active()
	if err != nil {
		return nil, err
	}

	salt := make([]byte, cryptoDomain.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	alg := active.Algorithm()
	aead, err := e.cipherFor(active, salt, alg)
	if err != nil {
		return nil, err
	}

	ciphertext, tag, nonce, err := aead.Encrypt(plaintext, []byte(alg))
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, len(salt)+len(ciphertext))
	body = append(body, salt...)
	body = append(body, ciphertext...)

	payload := &cryptoDomain.EncryptedPayload{
		Ciphertext: body,
		IV:         nonce,
		AuthTag:    tag,
		KeyVersion: active.Version(),
		Algorithm:  alg,
	}
	if searchable && fieldName != "" {
		payload.SearchHash = e.indexer.Hash(plaintext, fieldName)
	}

	active.RecordEncryption()
	return payload, nil
}

// Decrypt tries the active key, then the previous key.
//
// Returns ErrInvalidPayload for malformed payloads and ErrDecryptionFailed when no held key
// verifies the tag.
func (e *EngineService) Decrypt(payload *cryptoDomain.EncryptedPayload) ([]byte, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	active, err := e.keyStore.Active()
	if err != nil {
		return nil, err
	}
	candidates := []*cryptoDomain.Key{active}
	if previous := e.keyStore.Previous(); previous != nil {
		candidates = append(candidates, previous)
	}

	for _, key := range candidates {
		plaintext, err := e.open(payload, key)
		if err == nil {
			key.RecordDecryption()
			return plaintext, nil
		}
	}
	return nil, cryptoDomain.ErrDecryptionFailed
}

// DecryptWith opens payload with key only.
func (e *EngineService) DecryptWith(
	payload *cryptoDomain.EncryptedPayload,
	key *cryptoDomain.Key,
) ([]byte, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	plaintext, err := e.open(payload, key)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	key.RecordDecryption()
	return plaintext, nil
}

// SearchHash returns the lookup hash of plaintext for fieldName.
func (e *EngineService) SearchHash(plaintext []byte, fieldName string) string {
	return e.indexer.Hash(plaintext, fieldName)
}

func (e *EngineService) open(payload *cryptoDomain.EncryptedPayload, key *cryptoDomain.Key) ([]byte, error) {
	aead, err := e.cipherFor(key, payload.Salt(), payload.Algorithm)
	if err != nil {
		return nil, err
	}
	return aead.Decrypt(payload.Body(), payload.AuthTag, payload.IV, []byte(payload.Algorithm))
}

func (e *EngineService) cipherFor(
	key *cryptoDomain.Key,
	salt []byte,
	alg cryptoDomain.Algorithm,
) (AEAD, error) {
	derived, err := e.deriver.Derive(key.Secret, salt)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(derived)

	return e.aeadManager.CreateCipher(derived, alg)
}
