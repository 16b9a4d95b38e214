package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	recordDomain "github.com/allisson/fieldcrypt/internal/record/domain"
)

type fileCodec struct {
	engine cryptoService.Engine
}

// NewFileCodec creates a FileCodec.
func NewFileCodec(engine cryptoService.Engine) FileCodec {
	return &fileCodec{engine: engine}
}

// EncryptFile seals body and attributes as two payloads under fresh UUIDv7 identifiers.
func (c *fileCodec) EncryptFile(
	ctx context.Context,
	body []byte,
	attributes map[string]any,
) (*recordDomain.EncryptedFile, error) {
	fileID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate file id: %w", err)
	}
	metadataID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata id: %w", err)
	}

	bodyPayload, err := c.engine.Encrypt(body, "", false)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file body: %w", err)
	}

	metadata, err := json.Marshal(recordDomain.FileMetadata{FileID: fileID, Attributes: attributes})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize file metadata: %w", err)
	}
	defer cryptoDomain.Zero(metadata)

	metadataPayload, err := c.engine.Encrypt(metadata, "", false)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file metadata: %w", err)
	}

	return &recordDomain.EncryptedFile{
		ID:         fileID,
		Body:       bodyPayload.String(),
		MetadataID: metadataID,
		Metadata:   metadataPayload.String(),
	}, nil
}

// DecryptFile opens both payloads and checks that the metadata names this file.
func (c *fileCodec) DecryptFile(
	ctx context.Context,
	file *recordDomain.EncryptedFile,
) ([]byte, map[string]any, error) {
	bodyPayload, err := cryptoDomain.ParsePayload(file.Body)
	if err != nil {
		return nil, nil, err
	}
	body, err := c.engine.Decrypt(bodyPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt file body: %w", err)
	}

	metadataPayload, err := cryptoDomain.ParsePayload(file.Metadata)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := c.engine.Decrypt(metadataPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt file metadata: %w", err)
	}
	defer cryptoDomain.Zero(plaintext)

	var metadata recordDomain.FileMetadata
	if err := json.Unmarshal(plaintext, &metadata); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file metadata: %w", err)
	}
	if metadata.FileID != file.ID {
		return nil, nil, recordDomain.ErrFileMetadataMismatch
	}

	return body, metadata.Attributes, nil
}
