package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

// RunServer starts the status server with graceful shutdown support.
// Persisted key metadata is restored before the server starts so the status endpoints report
// real key age and usage. Blocks until SIGINT/SIGTERM or a fatal server error.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	rotation, err := container.RotationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize rotation use case: %w", err)
	}
	if err := rotation.SyncMetadata(ctx); err != nil {
		return fmt.Errorf("failed to sync key metadata: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		if shutErr := server.Shutdown(shutdownCtx); shutErr != nil {
			return errors.Join(err, fmt.Errorf("server shutdown: %w", shutErr))
		}
		return err
	}

	return nil
}
