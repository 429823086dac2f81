// msa-create builds a MesaOS software package (.msa) from a directory
// tree on the host.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mesaos/go-mesafs/internal/config"
	"github.com/mesaos/go-mesafs/msa"
)

func main() {
	app := cli.App{
		Name:        "msa-create",
		Usage:       "build a MesaOS software package from a directory tree",
		ArgsUsage:   "OUTPUT",
		HideVersion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "package name",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "package version string",
				Value:   "1.0.0",
			},
			&cli.StringFlag{
				Name:    "author",
				Aliases: []string{"a"},
				Usage:   "package author",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "one-line package description",
			},
			&cli.StringSliceFlag{
				Name:    "depends",
				Aliases: []string{"D"},
				Usage:   "name of a package this one depends on (repeatable)",
			},
			&cli.StringFlag{
				Name:     "path",
				Aliases:  []string{"p"},
				Usage:    "directory tree to package",
				Required: true,
			},
		},
		Before: func(*cli.Context) error {
			_, err := config.Setup()
			return err
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return fmt.Errorf("expected exactly one OUTPUT argument")
			}
			output := ctx.Args().First()

			b, err := msa.NewBuilder(ctx.String("name"), ctx.String("version"),
				ctx.String("author"), ctx.String("description"))
			if err != nil {
				return err
			}
			for _, dep := range ctx.StringSlice("depends") {
				if err := b.AddDependency(dep); err != nil {
					return err
				}
			}
			if err := b.AddTree(ctx.String("path")); err != nil {
				return err
			}

			out, err := b.Bytes()
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return err
			}

			fmt.Printf("created %s: %s %s\n", output, ctx.String("name"), ctx.String("version"))
			fmt.Printf("  %d entries, %d payload bytes, %d bytes total\n",
				b.Files(), b.PayloadSize(), len(out))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
