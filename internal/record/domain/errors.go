package domain

import (
	"github.com/allisson/fieldcrypt/internal/errors"
)

// Record encryption error definitions.
var (
	// ErrInvalidTarget indicates a malformed "table.column[:search]" target.
	ErrInvalidTarget = errors.Wrap(errors.ErrInvalidInput, "invalid encryption target")

	// ErrUnsupportedEncoding indicates a manifest entry with an unknown encoding.
	ErrUnsupportedEncoding = errors.Wrap(errors.ErrInvalidInput, "unsupported field encoding")

	// ErrFieldNotEncrypted indicates an encrypted field whose stored value is not a payload string.
	ErrFieldNotEncrypted = errors.Wrap(errors.ErrInvalidInput, "field value is not an encrypted payload")

	// ErrFileMetadataMismatch indicates encrypted metadata that belongs to another file.
	ErrFileMetadataMismatch = errors.Wrap(errors.ErrInvalidInput, "file metadata does not belong to file")
)
