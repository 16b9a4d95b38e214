package domain

import "github.com/google/uuid"

// EncryptedFile is an uploaded file stored as two independent payloads: the body and its
// metadata. The metadata payload names the file it belongs to.
type EncryptedFile struct {
	ID         uuid.UUID `json:"id"`
	Body       string    `json:"body"`
	MetadataID uuid.UUID `json:"metadata_id"`
	Metadata   string    `json:"metadata"`
}

// FileMetadata is the plaintext sealed into EncryptedFile.Metadata.
type FileMetadata struct {
	FileID     uuid.UUID      `json:"file_id"`
	Attributes map[string]any `json:"attributes"`
}
