package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	recordDomain "github.com/allisson/fieldcrypt/internal/record/domain"
)

// FieldCodecOption configures a FieldCodec.
type FieldCodecOption func(*fieldCodec)

// WithStrictDecrypt makes DecryptObject fail on the first field that cannot be decrypted
// instead of leaving its ciphertext in place.
func WithStrictDecrypt() FieldCodecOption {
	return func(c *fieldCodec) {
		c.strict = true
	}
}

type fieldCodec struct {
	engine   cryptoService.Engine
	registry *recordDomain.FieldRegistry
	logger   *slog.Logger
	strict   bool
}

// NewFieldCodec creates a FieldCodec. registry decides which fields are searchable.
func NewFieldCodec(
	engine cryptoService.Engine,
	registry *recordDomain.FieldRegistry,
	logger *slog.Logger,
	opts ...FieldCodecOption,
) FieldCodec {
	if registry == nil {
		registry, _ = recordDomain.NewFieldRegistry()
	}
	c := &fieldCodec{
		engine:   engine,
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EncryptObject encrypts fields of record.
func (c *fieldCodec) EncryptObject(
	ctx context.Context,
	entityType string,
	record recordDomain.Record,
	fields []string,
) (recordDomain.Record, error) {
	out := record.Clone()
	manifest := out.Manifest()

	for _, field := range fields {
		if _, done := manifest[field]; done {
			continue
		}
		value, ok := out[field]
		if !ok || value == nil {
			continue
		}

		plaintext, encoding, err := serialize(value)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize field %s: %w", field, err)
		}

		searchable := c.registry.Searchable(entityType, field)
		payload, err := c.engine.Encrypt(plaintext, field, searchable)
		cryptoDomain.Zero(plaintext)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt field %s: %w", field, err)
		}

		out[field] = payload.String()
		if payload.SearchHash != "" {
			out[recordDomain.SearchField(field)] = payload.SearchHash
		}
		manifest[field] = encoding
	}

	out.SetManifest(manifest)
	return out, nil
}

// DecryptObject decrypts fields of record.
func (c *fieldCodec) DecryptObject(
	ctx context.Context,
	entityType string,
	record recordDomain.Record,
	fields ...string,
) (recordDomain.Record, error) {
	out := record.Clone()
	manifest := out.Manifest()
	if len(fields) == 0 {
		fields = manifest.Fields()
	}

	for _, field := range fields {
		encoding, ok := manifest[field]
		if !ok {
			continue
		}

		value, err := c.decryptField(out[field], encoding)
		if err != nil {
			if c.strict {
				return nil, fmt.Errorf("failed to decrypt field %s: %w", field, err)
			}
			c.logger.WarnContext(ctx, "leaving field encrypted",
				slog.String("entity_type", entityType),
				slog.String("field", field),
				slog.Any("error", err),
			)
			continue
		}

		out[field] = value
		delete(out, recordDomain.SearchField(field))
		delete(manifest, field)
	}

	out.SetManifest(manifest)
	return out, nil
}

// SearchHash serializes value the way EncryptObject does and hashes it for field.
func (c *fieldCodec) SearchHash(field string, value any) (string, error) {
	plaintext, _, err := serialize(value)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(plaintext)
	return c.engine.SearchHash(plaintext, field), nil
}

func (c *fieldCodec) decryptField(stored any, encoding recordDomain.Encoding) (any, error) {
	encoded, ok := stored.(string)
	if !ok {
		return nil, recordDomain.ErrFieldNotEncrypted
	}
	payload, err := cryptoDomain.ParsePayload(encoded)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.engine.Decrypt(payload)
	if err != nil {
		return nil, err
	}
	return deserialize(plaintext, encoding)
}

func serialize(value any) ([]byte, recordDomain.Encoding, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), recordDomain.EncodingRaw, nil
	case []byte:
		return append([]byte(nil), v...), recordDomain.EncodingBytes, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return b, recordDomain.EncodingJSON, nil
	}
}

func deserialize(plaintext []byte, encoding recordDomain.Encoding) (any, error) {
	switch encoding {
	case recordDomain.EncodingRaw:
		return string(plaintext), nil
	case recordDomain.EncodingBytes:
		return plaintext, nil
	case recordDomain.EncodingJSON:
		var v any
		if err := json.Unmarshal(plaintext, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", recordDomain.ErrUnsupportedEncoding, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", recordDomain.ErrUnsupportedEncoding, encoding)
	}
}
