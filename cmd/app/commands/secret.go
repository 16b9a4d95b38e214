package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// RunGenerateSecret generates a master secret that passes the entropy gate and prints it in
// configuration form. With kmsKeyURI the secret is wrapped by the KMS key before output, and
// the raw secret never leaves the process.
//
// Security: never use the localsecrets provider (base64key://) in production.
func RunGenerateSecret(
	ctx context.Context,
	validator cryptoService.KeyValidator,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	kmsKeyURI, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	secret, err := validator.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	result := validator.Validate(secret)

	keeper, closeKeeper, err := openKeeper(ctx, kmsService, kmsKeyURI, logger)
	if err != nil {
		return err
	}
	defer closeKeeper()

	if keeper != nil {
		raw, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return fmt.Errorf("failed to decode generated secret: %w", err)
		}
		secret, err = cryptoService.EncodeSecret(ctx, raw, keeper)
		cryptoDomain.Zero(raw)
		if err != nil {
			return err
		}
	}

	logger.Info("secret generated",
		slog.String("strength", string(result.Strength)),
		slog.Bool("kms", keeper != nil),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"secret":   secret,
			"strength": result.Strength,
			"entropy":  result.Entropy,
			"kms":      keeper != nil,
		})
	}

	if keeper != nil {
		_, _ = fmt.Fprintln(writer, "# KMS Mode: the secret below is wrapped with the KMS key")
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "# Strength: %s (entropy %.2f bits/byte)\n", result.Strength, result.Entropy)
	_, _ = fmt.Fprintf(writer, "ACTIVE_SECRET=\"%s\"\n", secret)
	return nil
}

// RunValidateSecret grades a base64 secret, unwrapping it through KMS first when kmsKeyURI
// is set. An invalid secret is reported and returned as ErrValidationFailed.
func RunValidateSecret(
	ctx context.Context,
	validator cryptoService.KeyValidator,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	secret, kmsKeyURI, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("--secret is required")
	}

	keeper, closeKeeper, err := openKeeper(ctx, kmsService, kmsKeyURI, logger)
	if err != nil {
		return err
	}
	defer closeKeeper()

	if keeper != nil {
		raw, err := cryptoService.DecodeSecret(ctx, secret, keeper)
		if err != nil {
			return err
		}
		secret = base64.StdEncoding.EncodeToString(raw)
		cryptoDomain.Zero(raw)
	}

	result := validator.Validate(secret)

	if format == "json" {
		if err := writeJSON(writer, result); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Valid: %t\n", result.IsValid)
		_, _ = fmt.Fprintf(writer, "Strength: %s\n", result.Strength)
		_, _ = fmt.Fprintf(writer, "Entropy: %.2f bits/byte\n", result.Entropy)
		for _, issue := range result.Issues {
			_, _ = fmt.Fprintf(writer, "Issue: %s\n", issue)
		}
	}

	if !result.IsValid {
		return cryptoDomain.ErrValidationFailed
	}
	return nil
}
