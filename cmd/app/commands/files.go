package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	recordDomain "github.com/allisson/fieldcrypt/internal/record/domain"
	recordUseCase "github.com/allisson/fieldcrypt/internal/record/usecase"
)

// RunSearchHash prints the lookup hash of value for field, the value to compare against the
// <field>_search column.
func RunSearchHash(
	codec recordUseCase.FieldCodec,
	writer io.Writer,
	field, value, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if field == "" {
		return fmt.Errorf("--field is required")
	}

	hash, err := codec.SearchHash(field, value)
	if err != nil {
		return fmt.Errorf("failed to compute search hash: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]string{
			"field":       field,
			"search_hash": hash,
		})
	}
	_, _ = fmt.Fprintln(writer, hash)
	return nil
}

// RunEncryptFile reads a file body from reader and writes its encrypted form as JSON.
// attributes are "key=value" pairs sealed into the metadata payload.
func RunEncryptFile(
	ctx context.Context,
	codec recordUseCase.FileCodec,
	logger *slog.Logger,
	rw IOTuple,
	attributes []string,
) error {
	attrs := make(map[string]any, len(attributes))
	for _, attr := range attributes {
		key, value, ok := strings.Cut(attr, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid attribute %q: must be key=value", attr)
		}
		attrs[key] = value
	}

	body, err := io.ReadAll(rw.Reader)
	if err != nil {
		return fmt.Errorf("failed to read file body: %w", err)
	}

	file, err := codec.EncryptFile(ctx, body, attrs)
	if err != nil {
		return fmt.Errorf("failed to encrypt file: %w", err)
	}
	logger.Info("file encrypted", slog.String("file_id", file.ID.String()), slog.Int("size", len(body)))

	return writeJSON(rw.Writer, file)
}

// RunDecryptFile reads an encrypted file JSON document from reader and writes the plaintext
// body to writer. Attributes are logged, never written with the body.
func RunDecryptFile(
	ctx context.Context,
	codec recordUseCase.FileCodec,
	logger *slog.Logger,
	rw IOTuple,
) error {
	var file recordDomain.EncryptedFile
	if err := json.NewDecoder(rw.Reader).Decode(&file); err != nil {
		return fmt.Errorf("failed to parse encrypted file: %w", err)
	}

	body, attrs, err := codec.DecryptFile(ctx, &file)
	if err != nil {
		return fmt.Errorf("failed to decrypt file: %w", err)
	}
	logger.Info("file decrypted",
		slog.String("file_id", file.ID.String()),
		slog.Int("attributes", len(attrs)),
	)

	_, err = rw.Writer.Write(body)
	return err
}
