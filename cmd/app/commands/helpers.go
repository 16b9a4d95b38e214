// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/allisson/fieldcrypt/internal/app"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// validateFormat accepts the output formats every command supports.
func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(writer io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(writer, string(jsonBytes))
	return err
}

// openKeeper opens the KMS keeper for kmsKeyURI. Without a URI it returns a nil keeper
// and a no-op close function.
func openKeeper(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	kmsKeyURI string,
	logger *slog.Logger,
) (cryptoDomain.KMSKeeper, func(), error) {
	if kmsKeyURI == "" {
		return nil, func() {}, nil
	}
	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}, nil
}

// secretConfig renders the key store as the environment variables the next process must be
// started with. Secrets are wrapped through keeper when one is given.
func secretConfig(
	ctx context.Context,
	keyStore cryptoService.KeyStore,
	keeper cryptoDomain.KMSKeeper,
) (map[string]string, error) {
	active, err := keyStore.Active()
	if err != nil {
		return nil, err
	}
	activeSecret, err := cryptoService.EncodeSecret(ctx, active.Secret, keeper)
	if err != nil {
		return nil, err
	}

	cfg := map[string]string{
		"ACTIVE_SECRET":           activeSecret,
		"ACTIVE_SECRET_VERSION":   strconv.FormatUint(uint64(active.Version()), 10),
		"PREVIOUS_SECRET":         "",
		"PREVIOUS_SECRET_VERSION": "",
	}
	if previous := keyStore.Previous(); previous != nil {
		previousSecret, err := cryptoService.EncodeSecret(ctx, previous.Secret, keeper)
		if err != nil {
			return nil, err
		}
		cfg["PREVIOUS_SECRET"] = previousSecret
		cfg["PREVIOUS_SECRET_VERSION"] = strconv.FormatUint(uint64(previous.Version()), 10)
	}
	return cfg, nil
}

// writeSecretConfigText prints cfg in .env form.
func writeSecretConfigText(writer io.Writer, cfg map[string]string) {
	_, _ = fmt.Fprintln(writer, "# Update these environment variables in your .env file or secrets manager")
	for _, name := range []string{
		"ACTIVE_SECRET",
		"ACTIVE_SECRET_VERSION",
		"PREVIOUS_SECRET",
		"PREVIOUS_SECRET_VERSION",
	} {
		_, _ = fmt.Fprintf(writer, "%s=\"%s\"\n", name, cfg[name])
	}
}

// writeStatusText prints a rotation status summary.
func writeStatusText(writer io.Writer, status *rotationDomain.RotationStatus) {
	_, _ = fmt.Fprintf(writer, "Rotation %s: %s\n", status.ID, status.Phase)
	if status.FromKeyID != "" {
		_, _ = fmt.Fprintf(writer, "From key: %s\n", status.FromKeyID)
	}
	_, _ = fmt.Fprintf(writer, "To key: %s\n", status.ToKeyID)
	_, _ = fmt.Fprintf(writer, "Records: %d total, %d processed, %d failed\n",
		status.Progress.Total, status.Progress.Processed, status.Progress.Failed)
	for _, batchErr := range status.Errors {
		_, _ = fmt.Fprintf(writer, "Batch error: %s.%s batch %d: %s\n",
			batchErr.EntityType, batchErr.Field, batchErr.Batch, batchErr.Message)
	}
}
