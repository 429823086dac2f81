// Package disk opens and creates the raw image files that carry a MesaFS
// partition. It owns the os.File handle and the first-sector partition
// table; the filesystem engine itself only ever sees a util.File and a
// byte offset.
package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/mesaos/go-mesafs/partition"
	"github.com/mesaos/go-mesafs/util"
)

// DefaultPartitionLBA is where Create starts the MesaFS partition when the
// caller does not choose one: sector 2048, the conventional 1 MiB
// alignment boundary.
const DefaultPartitionLBA uint32 = 2048

// Disk is an open raw disk image.
type Disk struct {
	path     string
	file     *os.File
	size     int64
	readOnly bool
}

// Open opens an existing image read-write. Exactly one process is assumed
// to hold the image open at a time; no locking is attempted.
func Open(path string) (*Disk, error) {
	return open(path, false)
}

// OpenReadOnly opens an existing image for inspection only.
func OpenReadOnly(path string) (*Disk, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*Disk, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open disk image %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("could not stat disk image %s: %w", path, err)
	}
	return &Disk{path: path, file: f, size: fi.Size(), readOnly: readOnly}, nil
}

// Create makes a new image file of the given size with a partition table
// whose first slot is a MesaFS partition running from startLBA to the end
// of the disk. Pass startLBA 0 for the default. The rest of the image
// reads as zeroes. An existing file at path is truncated.
func Create(path string, size int64, startLBA uint32) (*Disk, error) {
	if size <= 0 || size%partition.SectorSize != 0 {
		return nil, fmt.Errorf("image size %d is not a positive multiple of the %d-byte sector", size, partition.SectorSize)
	}
	if startLBA == 0 {
		startLBA = DefaultPartitionLBA
	}
	totalSectors := size / partition.SectorSize
	if totalSectors > int64(^uint32(0)) {
		return nil, fmt.Errorf("image size %d exceeds 32-bit LBA addressing", size)
	}

	table, err := partition.NewTable(uint32(totalSectors), startLBA)
	if err != nil {
		return nil, err
	}
	table.DiskSignature = newDiskSignature()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not create disk image %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not size disk image %s to %d bytes: %w", path, size, err)
	}
	if _, err := f.WriteAt(table.ToBytes(), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not write partition table to %s: %w", path, err)
	}
	log.WithFields(log.Fields{
		"path":      path,
		"size":      size,
		"startLBA":  startLBA,
		"signature": fmt.Sprintf("%#08x", table.DiskSignature),
	}).Debug("created disk image")

	return &Disk{path: path, file: f, size: size}, nil
}

// newDiskSignature derives a 32-bit MBR disk signature from a random v4
// UUID.
func newDiskSignature() uint32 {
	u := uuid.New()
	return binary.LittleEndian.Uint32(u[0:4])
}

// Table reads and parses the partition table from the first sector.
func (d *Disk) Table() (*partition.Table, error) {
	sector := make([]byte, partition.SectorSize)
	n, err := d.file.ReadAt(sector, 0)
	if err != nil {
		return nil, fmt.Errorf("could not read first sector of %s: %w", d.path, err)
	}
	if n != partition.SectorSize {
		return nil, fmt.Errorf("only read %d of %d first-sector bytes from %s", n, partition.SectorSize, d.path)
	}
	return partition.TableFromBytes(sector)
}

// Mesa locates the MesaFS partition on this disk. The returned entry is
// rejected if it runs past the end of the image file.
func (d *Disk) Mesa() (*partition.Entry, error) {
	table, err := d.Table()
	if err != nil {
		return nil, err
	}
	e, err := table.Mesa()
	if err != nil {
		return nil, err
	}
	if e.Start()+e.Size() > d.size {
		return nil, fmt.Errorf("MesaFS partition (LBA %d, %d sectors) runs past the end of the %d-byte image", e.StartLBA, e.Sectors, d.size)
	}
	return e, nil
}

// File exposes the backing store for the filesystem engine.
func (d *Disk) File() util.File {
	return d.file
}

// Path returns the image path this disk was opened from.
func (d *Disk) Path() string {
	return d.path
}

// Size returns the image size in bytes.
func (d *Disk) Size() int64 {
	return d.size
}

// ReadOnly reports whether the image was opened for inspection only.
func (d *Disk) ReadOnly() bool {
	return d.readOnly
}

// Close releases the underlying file handle.
func (d *Disk) Close() error {
	if d.file == nil {
		return errors.New("disk already closed")
	}
	err := d.file.Close()
	d.file = nil
	return err
}
