// mesafs-format formats the MesaFS partition of a disk image, replacing
// whatever the partition held before with an empty filesystem.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mesaos/go-mesafs/disk"
	"github.com/mesaos/go-mesafs/filesystem/mesafs"
	"github.com/mesaos/go-mesafs/internal/config"
)

func main() {
	app := cli.App{
		Name:      "mesafs-format",
		Usage:     "create an empty MesaFS filesystem on a disk image's MesaFS partition",
		ArgsUsage: "IMAGE",
		Before: func(*cli.Context) error {
			_, err := config.Setup()
			return err
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return fmt.Errorf("expected exactly one IMAGE argument")
			}
			path := ctx.Args().First()

			d, err := disk.Open(path)
			if err != nil {
				return err
			}
			defer d.Close()

			e, err := d.Mesa()
			if err != nil {
				return err
			}
			fsys, err := mesafs.Format(d.File(), e.Start(), e.Size())
			if err != nil {
				return err
			}

			info := fsys.Info()
			fmt.Printf("formatted MesaFS partition on %s\n", path)
			fmt.Printf("  blocks: %d total, %d free, %d bytes each\n", info.TotalBlocks, info.FreeBlocks, info.BlockSize)
			fmt.Printf("  inodes: %d total, %d free\n", info.TotalInodes, info.FreeInodes)
			fmt.Printf("  root inode %d, data region starts at block %d\n", info.RootInode, info.FirstDataBlock)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
