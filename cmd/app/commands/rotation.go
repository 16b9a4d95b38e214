package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
	rotationUseCase "github.com/allisson/fieldcrypt/internal/rotation/usecase"
)

// rotationResult is the JSON output of the rotation commands.
type rotationResult struct {
	Status *rotationDomain.RotationStatus `json:"status,omitempty"`
	Config map[string]string              `json:"config,omitempty"`
	Error  string                         `json:"error,omitempty"`
}

// RunRotateSecret rotates to newSecret, or to a generated secret when empty, and migrates every
// configured column. newSecret is plain base64, or KMS ciphertext when keeper is set.
//
// On success the new secrets and their versions are printed; the running configuration
// must be updated with them before the next start. After a rollback the printed configuration
// keeps the outgoing secret active and the candidate as previous.
func RunRotateSecret(
	ctx context.Context,
	rotation rotationUseCase.RotationUseCase,
	keyStore cryptoService.KeyStore,
	keeper cryptoDomain.KMSKeeper,
	logger *slog.Logger,
	writer io.Writer,
	newSecret, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if err := rotation.SyncMetadata(ctx); err != nil {
		return fmt.Errorf("failed to sync key metadata: %w", err)
	}

	if newSecret != "" && keeper != nil {
		raw, err := cryptoService.DecodeSecret(ctx, newSecret, keeper)
		if err != nil {
			return err
		}
		newSecret, _ = cryptoService.EncodeSecret(ctx, raw, nil)
		cryptoDomain.Zero(raw)
	}

	status, err := rotation.RotateKey(ctx, newSecret)
	return writeRotationResult(ctx, keyStore, keeper, logger, writer, format, status, err)
}

// RunRevokeSecret marks the active secret compromised and rotates to a generated secret.
func RunRevokeSecret(
	ctx context.Context,
	rotation rotationUseCase.RotationUseCase,
	keyStore cryptoService.KeyStore,
	keeper cryptoDomain.KMSKeeper,
	logger *slog.Logger,
	writer io.Writer,
	reason, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if reason == "" {
		return fmt.Errorf("--reason is required")
	}
	if err := rotation.SyncMetadata(ctx); err != nil {
		return fmt.Errorf("failed to sync key metadata: %w", err)
	}

	status, err := rotation.RevokeKey(ctx, reason)
	return writeRotationResult(ctx, keyStore, keeper, logger, writer, format, status, err)
}

// RunShouldRotate reports whether the active secret is due for rotation.
func RunShouldRotate(
	ctx context.Context,
	rotation rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if err := rotation.SyncMetadata(ctx); err != nil {
		return fmt.Errorf("failed to sync key metadata: %w", err)
	}

	due, reason := rotation.ShouldRotate(ctx)
	logger.Info("rotation check", slog.Bool("should_rotate", due), slog.String("reason", reason))

	if format == "json" {
		return writeJSON(writer, map[string]any{"should_rotate": due, "reason": reason})
	}
	if due {
		_, _ = fmt.Fprintf(writer, "Rotation is due: %s\n", reason)
	} else {
		_, _ = fmt.Fprintln(writer, "Rotation is not due")
	}
	return nil
}

// RunPruneSecrets drops the previous secret once its retention period has passed and no
// record is still encrypted under it.
func RunPruneSecrets(
	ctx context.Context,
	rotation rotationUseCase.RotationUseCase,
	keyStore cryptoService.KeyStore,
	keeper cryptoDomain.KMSKeeper,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if err := rotation.SyncMetadata(ctx); err != nil {
		return fmt.Errorf("failed to sync key metadata: %w", err)
	}

	pruned, err := rotation.PruneRetired(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to prune retired secret: %w", err)
	}
	logger.Info("prune completed", slog.Bool("pruned", pruned))

	if !pruned {
		if format == "json" {
			return writeJSON(writer, map[string]any{"pruned": false})
		}
		_, _ = fmt.Fprintln(writer, "Previous secret is still within its retention period")
		return nil
	}

	cfg, err := secretConfig(ctx, keyStore, keeper)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(writer, map[string]any{"pruned": true, "config": cfg})
	}
	_, _ = fmt.Fprintln(writer, "Previous secret pruned")
	writeSecretConfigText(writer, cfg)
	return nil
}

// writeRotationResult prints the rotation outcome. The key configuration is printed after a
// rollback too, since the rolled back candidate may already protect migrated records.
func writeRotationResult(
	ctx context.Context,
	keyStore cryptoService.KeyStore,
	keeper cryptoDomain.KMSKeeper,
	logger *slog.Logger,
	writer io.Writer,
	format string,
	status *rotationDomain.RotationStatus,
	rotationErr error,
) error {
	if status == nil {
		return fmt.Errorf("rotation failed: %w", rotationErr)
	}

	cfg, err := secretConfig(ctx, keyStore, keeper)
	if err != nil {
		logger.Error("failed to render key configuration", slog.Any("error", err))
		return err
	}

	if format == "json" {
		result := rotationResult{Status: status, Config: cfg}
		if rotationErr != nil {
			result.Error = rotationErr.Error()
		}
		if err := writeJSON(writer, result); err != nil {
			return err
		}
	} else {
		writeStatusText(writer, status)
		_, _ = fmt.Fprintln(writer)
		writeSecretConfigText(writer, cfg)
	}

	if rotationErr != nil {
		return fmt.Errorf("rotation failed: %w", rotationErr)
	}
	return nil
}
