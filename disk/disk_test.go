package disk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesaos/go-mesafs/partition"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	const size = 16 * 1024 * 1024

	d, err := Create(path, size, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d, err = Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if d.Size() != size {
		t.Errorf("size %d instead of %d", d.Size(), size)
	}
	e, err := d.Mesa()
	if err != nil {
		t.Fatalf("Mesa: %v", err)
	}
	if e.StartLBA != DefaultPartitionLBA {
		t.Errorf("partition starts at LBA %d instead of %d", e.StartLBA, DefaultPartitionLBA)
	}
	wantSectors := uint32(size/partition.SectorSize) - DefaultPartitionLBA
	if e.Sectors != wantSectors {
		t.Errorf("partition spans %d sectors instead of %d", e.Sectors, wantSectors)
	}
}

func TestCreateValidation(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(filepath.Join(dir, "a.img"), 0, 0); err == nil {
		t.Errorf("expected error for zero-size image")
	}
	if _, err := Create(filepath.Join(dir, "b.img"), 12345, 0); err == nil {
		t.Errorf("expected error for size not a multiple of the sector size")
	}
	if _, err := Create(filepath.Join(dir, "c.img"), 1024*1024, 4096); err == nil {
		t.Errorf("expected error for partition start beyond the disk")
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.img")); err == nil {
		t.Errorf("expected error opening a missing image")
	}
}

func TestMesaNotFound(t *testing.T) {
	// an image with an empty first sector has no partition table entries
	path := filepath.Join(t.TempDir(), "blank.img")
	if err := os.WriteFile(path, make([]byte, 1024*1024), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer d.Close()
	if !d.ReadOnly() {
		t.Errorf("expected read-only handle")
	}
	if _, err := d.Mesa(); !errors.Is(err, partition.ErrNotFound) {
		t.Errorf("expected partition.ErrNotFound, got %v", err)
	}
}

func TestMesaBeyondImage(t *testing.T) {
	// a valid table whose partition claims more sectors than the file has
	path := filepath.Join(t.TempDir(), "short.img")
	table, err := partition.NewTable(32768, 2048)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	b := make([]byte, 1024*1024)
	copy(b, table.ToBytes())
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if _, err := d.Mesa(); err == nil {
		t.Errorf("expected error for partition running past the image end")
	}
}
