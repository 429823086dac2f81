// mesafs-list prints the superblock summary and the root directory of the
// MesaFS filesystem on a disk image. It never writes to the image.
package main

import (
	"fmt"
	"os"

	"github.com/rodaine/table"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mesaos/go-mesafs/disk"
	"github.com/mesaos/go-mesafs/filesystem/mesafs"
	"github.com/mesaos/go-mesafs/internal/config"
)

func main() {
	app := cli.App{
		Name:      "mesafs-list",
		Usage:     "show the contents of the MesaFS filesystem on a disk image",
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

			d, err := disk.OpenReadOnly(path)
			if err != nil {
				return err
			}
			defer d.Close()

			e, err := d.Mesa()
			if err != nil {
				return err
			}
			fsys, err := mesafs.Read(d.File(), e.Start(), e.Size())
			if err != nil {
				return err
			}
			entries, err := fsys.ReadDir()
			if err != nil {
				return err
			}

			info := fsys.Info()
			fmt.Printf("MesaFS version %d on %s, partition at LBA %d\n", info.Version, path, e.StartLBA)
			fmt.Printf("  blocks: %d free of %d, %d bytes each\n", info.FreeBlocks, info.TotalBlocks, info.BlockSize)
			fmt.Printf("  inodes: %d free of %d\n", info.FreeInodes, info.TotalInodes)

			if len(entries) == 0 {
				fmt.Println("root directory is empty")
				return nil
			}
			fmt.Println()

			tbl := table.New("name", "inode", "type", "size", "blocks", "modified")
			for _, fi := range entries {
				tbl.AddRow(fi.Name, fi.Inode, typeName(fi.Type), fi.Size, fi.BlocksUsed,
					fi.Modified.Format("2006-01-02 15:04:05"))
			}
			tbl.Print()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func typeName(t mesafs.FileType) string {
	switch t {
	case mesafs.TypeFile:
		return "file"
	case mesafs.TypeDir:
		return "dir"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}
