// mesafs-mkimage creates a raw disk image containing a partition table
// with a single MesaFS partition. The partition is not formatted; that is
// mesafs-format's job.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mesaos/go-mesafs/disk"
	"github.com/mesaos/go-mesafs/internal/config"
)

func main() {
	app := cli.App{
		Name:      "mesafs-mkimage",
		Usage:     "create a raw disk image with an empty MesaFS partition",
		ArgsUsage: "IMAGE",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:    "size",
				Aliases: []string{"s"},
				Usage:   "image size in MiB",
				Value:   16,
			},
			&cli.Uint64Flag{
				Name:  "lba",
				Usage: "first sector of the partition",
				Value: uint64(disk.DefaultPartitionLBA),
			},
		},
		Before: func(*cli.Context) error {
			_, err := config.Setup()
			return err
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return fmt.Errorf("expected exactly one IMAGE argument")
			}
			path := ctx.Args().First()
			sizeMiB := ctx.Int64("size")

			d, err := disk.Create(path, sizeMiB*1024*1024, uint32(ctx.Uint64("lba")))
			if err != nil {
				return err
			}
			defer d.Close()

			e, err := d.Mesa()
			if err != nil {
				return err
			}
			fmt.Printf("created %s: %d MiB\n", path, sizeMiB)
			fmt.Printf("  MesaFS partition at LBA %d, %d sectors (%d bytes)\n", e.StartLBA, e.Sectors, e.Size())
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
