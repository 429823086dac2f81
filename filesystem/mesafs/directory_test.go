package mesafs

import (
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDirentRoundTrip(t *testing.T) {
	for _, name := range []string{"a", "kernel.bin", strings.Repeat("x", MaxNameLength)} {
		de := &directoryEntry{inode: 42, fileType: TypeFile, name: name}
		b := de.toBytes()
		if len(b) != DirentSize {
			t.Fatalf("serialized entry is %d bytes, expected %d", len(b), DirentSize)
		}
		parsed, err := direntFromBytes(b)
		if err != nil {
			t.Fatalf("parse error for %q: %v", name, err)
		}
		if !reflect.DeepEqual(de, parsed) {
			t.Fatalf("entry mismatch for %q: %+v vs %+v", name, de, parsed)
		}
	}
}

func TestDirentFieldOffsets(t *testing.T) {
	de := &directoryEntry{inode: 0x01020304, fileType: TypeDir, name: "boot"}
	b := de.toBytes()

	if got := binary.LittleEndian.Uint32(b[0:4]); got != 0x01020304 {
		t.Errorf("inode at 0: %#x", got)
	}
	if b[4] != byte(TypeDir) {
		t.Errorf("type at 4: %d", b[4])
	}
	if b[5] != 4 {
		t.Errorf("name length at 5: %d", b[5])
	}
	if string(b[6:10]) != "boot" {
		t.Errorf("name at 6: %q", b[6:10])
	}
	for i := 10; i < DirentSize; i++ {
		if b[i] != 0 {
			t.Fatalf("padding byte %d is %#x, expected zero", i, b[i])
		}
	}
}

// A 58-byte name fills the field exactly; there is no terminator and the
// recorded length is the only bound.
func TestDirentFullWidthName(t *testing.T) {
	name := strings.Repeat("n", MaxNameLength)
	b := (&directoryEntry{inode: 1, fileType: TypeFile, name: name}).toBytes()
	if b[5] != MaxNameLength {
		t.Fatalf("name length %d, expected %d", b[5], MaxNameLength)
	}
	if string(b[6:6+MaxNameLength]) != name {
		t.Fatal("name bytes do not fill the field")
	}
}

func TestValidateName(t *testing.T) {
	if err := validateName(""); err == nil {
		t.Error("empty name accepted")
	}
	if err := validateName(strings.Repeat("x", MaxNameLength)); err != nil {
		t.Errorf("maximum-length name rejected: %v", err)
	}
	err := validateName(strings.Repeat("x", MaxNameLength+1))
	if !errors.Is(err, ErrNameTooLong) {
		t.Errorf("expected ErrNameTooLong, got %v", err)
	}
}

func TestDirentBadNameLength(t *testing.T) {
	b := make([]byte, DirentSize)
	binary.LittleEndian.PutUint32(b[0:4], 5)
	b[5] = MaxNameLength + 1
	_, err := direntFromBytes(b)
	if !errors.Is(err, ErrInvalidFilesystem) {
		t.Fatalf("expected ErrInvalidFilesystem, got %v", err)
	}
}

func TestDirentsFromBlock(t *testing.T) {
	block := make([]byte, BlockSize)
	first := &directoryEntry{inode: 2, fileType: TypeFile, name: "first"}
	third := &directoryEntry{inode: 5, fileType: TypeFile, name: "third"}
	copy(block[0:], first.toBytes())
	copy(block[3*DirentSize:], third.toBytes())

	entries, err := direntsFromBlock(block)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("parsed %d entries, expected 2", len(entries))
	}
	if !reflect.DeepEqual(entries[0], first) || !reflect.DeepEqual(entries[1], third) {
		t.Fatalf("entries out of order or corrupted: %+v", entries)
	}
}

func TestFreeSlotOffset(t *testing.T) {
	block := make([]byte, BlockSize)
	offset, ok := freeSlotOffset(block)
	if !ok || offset != 0 {
		t.Fatalf("empty block: offset %d ok %v, expected 0 true", offset, ok)
	}

	for i := 0; i < DirentsPerBlock; i++ {
		de := &directoryEntry{inode: uint32(i + 1), fileType: TypeFile, name: "f"}
		copy(block[i*DirentSize:], de.toBytes())
	}
	if _, ok := freeSlotOffset(block); ok {
		t.Fatal("full block reported a free slot")
	}

	// Punch a hole in slot 2.
	copy(block[2*DirentSize:], make([]byte, DirentSize))
	offset, ok = freeSlotOffset(block)
	if !ok || offset != 2*DirentSize {
		t.Fatalf("offset %d ok %v, expected %d true", offset, ok, 2*DirentSize)
	}
}
