package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	rotationUseCase "github.com/allisson/fieldcrypt/internal/rotation/usecase"
)

type rotationDependencies struct {
	rotation rotationUseCase.RotationUseCase
	keyStore cryptoService.KeyStore
	keeper   cryptoDomain.KMSKeeper
}

func rotationDeps(container *app.Container) (*rotationDependencies, error) {
	rotation, err := container.RotationUseCase()
	if err != nil {
		return nil, err
	}
	keyStore, err := container.KeyStore()
	if err != nil {
		return nil, err
	}
	keeper, err := container.KMSKeeper()
	if err != nil {
		return nil, err
	}
	return &rotationDependencies{rotation: rotation, keyStore: keyStore, keeper: keeper}, nil
}

func getRotationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate-secret",
			Usage: "Rotate the active master secret and re-encrypt every configured column",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "secret",
					Aliases: []string{"s"},
					Usage:   "New secret (generated when empty); KMS ciphertext when KMS_KEY_URI is set",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deps, err := rotationDeps(container)
				if err != nil {
					return err
				}
				return commands.RunRotateSecret(
					ctx,
					deps.rotation,
					deps.keyStore,
					deps.keeper,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("secret"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "revoke-secret",
			Usage: "Mark the active secret compromised and rotate away from it",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "reason",
					Aliases:  []string{"r"},
					Required: true,
					Usage:    "Why the secret is revoked (logged)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deps, err := rotationDeps(container)
				if err != nil {
					return err
				}
				return commands.RunRevokeSecret(
					ctx,
					deps.rotation,
					deps.keyStore,
					deps.keeper,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("reason"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "should-rotate",
			Usage: "Report whether the active secret is due for rotation",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rotation, err := container.RotationUseCase()
				if err != nil {
					return err
				}
				return commands.RunShouldRotate(
					ctx,
					rotation,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "prune-secrets",
			Usage: "Drop the previous secret once its retention period has passed",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deps, err := rotationDeps(container)
				if err != nil {
					return err
				}
				return commands.RunPruneSecrets(
					ctx,
					deps.rotation,
					deps.keyStore,
					deps.keeper,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
