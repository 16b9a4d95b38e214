// Package usecase implements field-level encryption of records and files on top of the
// crypto engine.
package usecase

import (
	"context"

	recordDomain "github.com/allisson/fieldcrypt/internal/record/domain"
)

// FieldCodec encrypts and decrypts selected fields of a record.
type FieldCodec interface {
	// EncryptObject returns a copy of record with every listed, present and non-nil field
	// replaced by its encoded payload. Searchable fields get a <field>_search companion.
	// Fields already listed in the manifest are left untouched.
	EncryptObject(
		ctx context.Context,
		entityType string,
		record recordDomain.Record,
		fields []string,
	) (recordDomain.Record, error)

	// DecryptObject returns a copy of record with the listed fields decrypted. Without
	// fields every manifest entry is decrypted. Search companions and the manifest are removed.
	DecryptObject(
		ctx context.Context,
		entityType string,
		record recordDomain.Record,
		fields ...string,
	) (recordDomain.Record, error)

	// SearchHash returns the lookup hash callers compare against <field>_search.
	SearchHash(field string, value any) (string, error)
}

// FileCodec encrypts uploaded files.
type FileCodec interface {
	EncryptFile(ctx context.Context, body []byte, attributes map[string]any) (*recordDomain.EncryptedFile, error)
	DecryptFile(ctx context.Context, file *recordDomain.EncryptedFile) ([]byte, map[string]any, error)
}
