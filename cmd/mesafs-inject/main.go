// mesafs-inject copies a host file into the root directory of the MesaFS
// filesystem on a disk image. The inode records the host file's
// timestamps where the platform exposes them.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gopkg.in/djherbis/times.v1"

	"github.com/mesaos/go-mesafs/disk"
	"github.com/mesaos/go-mesafs/filesystem/mesafs"
	"github.com/mesaos/go-mesafs/internal/config"
)

func main() {
	app := cli.App{
		Name:      "mesafs-inject",
		Usage:     "copy a host file into the MesaFS filesystem on a disk image",
		ArgsUsage: "IMAGE FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "name to store the file under (default: base name of FILE)",
			},
		},
		Before: func(*cli.Context) error {
			_, err := config.Setup()
			return err
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return fmt.Errorf("expected IMAGE and FILE arguments")
			}
			image := ctx.Args().Get(0)
			source := ctx.Args().Get(1)

			data, err := os.ReadFile(source)
			if err != nil {
				return err
			}
			name := ctx.String("name")
			if name == "" {
				name = filepath.Base(source)
			}
			created, modified := fileTimes(source)

			d, err := disk.Open(image)
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

			info, err := fsys.CreateFile(name, data, created, modified)
			if err != nil {
				return err
			}
			fmt.Printf("injected %s into %s: inode %d, %d bytes in %d blocks\n",
				name, image, info.Inode, info.Size, info.BlocksUsed)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// fileTimes reads the source file's timestamps. Creation time only exists
// on some platforms and filesystems; everywhere else the modification
// time stands in for it.
func fileTimes(path string) (created, modified time.Time) {
	now := time.Now()
	ts, err := times.Stat(path)
	if err != nil {
		logrus.WithField("path", path).WithError(err).Warn("could not read file times, using current time")
		return now, now
	}
	modified = ts.ModTime()
	created = modified
	if ts.HasBirthTime() {
		created = ts.BirthTime()
	}
	return created, modified
}
