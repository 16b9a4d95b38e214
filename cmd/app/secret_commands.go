package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

func kmsKeyURIFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kms-key-uri",
		Sources: cli.EnvVars("KMS_KEY_URI"),
		Usage:   "KMS key URI wrapping the secret (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
	}
}

func getSecretCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "generate-secret",
			Usage: "Generate a new master secret",
			Flags: []cli.Flag{kmsKeyURIFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunGenerateSecret(
					ctx,
					container.KeyValidator(),
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("kms-key-uri"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "validate-secret",
			Usage: "Check the length and entropy of a master secret",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "secret",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "Base64 secret, or its KMS ciphertext with --kms-key-uri",
				},
				kmsKeyURIFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunValidateSecret(
					ctx,
					container.KeyValidator(),
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("secret"),
					cmd.String("kms-key-uri"),
					cmd.String("format"),
				)
			},
		},
	}
}
