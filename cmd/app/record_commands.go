package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

func getRecordCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "search-hash",
			Usage: "Compute the lookup hash of a value for a searchable field",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "field",
					Required: true,
					Usage:    "Field name (e.g., phone_number)",
				},
				&cli.StringFlag{
					Name:     "value",
					Required: true,
					Usage:    "Plaintext value to hash",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				codec, err := container.FieldCodec()
				if err != nil {
					return err
				}
				return commands.RunSearchHash(
					codec,
					commands.DefaultIO().Writer,
					cmd.String("field"),
					cmd.String("value"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "encrypt-file",
			Usage: "Encrypt a file read from stdin and print the encrypted document as JSON",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:    "attribute",
					Aliases: []string{"a"},
					Usage:   "Metadata attribute as key=value (repeatable)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				codec, err := container.FileCodec()
				if err != nil {
					return err
				}
				return commands.RunEncryptFile(
					ctx,
					codec,
					container.Logger(),
					commands.DefaultIO(),
					cmd.StringSlice("attribute"),
				)
			},
		},
		{
			Name:  "decrypt-file",
			Usage: "Decrypt an encrypted file document read from stdin and print the body",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				codec, err := container.FileCodec()
				if err != nil {
					return err
				}
				return commands.RunDecryptFile(ctx, codec, container.Logger(), commands.DefaultIO())
			},
		},
	}
}
