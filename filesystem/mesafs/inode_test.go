package mesafs

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func testInode() *inode {
	in := &inode{
		number:     7,
		fileType:   TypeFile,
		flags:      flagInUse,
		links:      1,
		size:       9000,
		blocksUsed: 3,
		indirect:   0,
		created:    0x1122334455667788,
		modified:   0x8877665544332211,
	}
	in.direct[0] = 11
	in.direct[1] = 12
	in.direct[2] = 13
	in.direct[9] = 99
	return in
}

func TestInodeRoundTrip(t *testing.T) {
	in := testInode()
	b := in.toBytes()
	if len(b) != InodeSize {
		t.Fatalf("serialized inode is %d bytes, expected %d", len(b), InodeSize)
	}
	parsed, err := inodeFromBytes(b)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !reflect.DeepEqual(in, parsed) {
		t.Fatalf("inode mismatch: %+v vs %+v", in, parsed)
	}
}

func TestInodeFieldOffsets(t *testing.T) {
	b := testInode().toBytes()

	if got := binary.LittleEndian.Uint32(b[0:4]); got != 7 {
		t.Errorf("number at 0: %d", got)
	}
	if b[4] != byte(TypeFile) {
		t.Errorf("type at 4: %d", b[4])
	}
	if b[5] != flagInUse {
		t.Errorf("flags at 5: %d", b[5])
	}
	if got := binary.LittleEndian.Uint16(b[6:8]); got != 1 {
		t.Errorf("links at 6: %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[8:12]); got != 9000 {
		t.Errorf("size at 8: %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[12:16]); got != 3 {
		t.Errorf("blocksUsed at 12: %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[16:20]); got != 11 {
		t.Errorf("direct[0] at 16: %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[52:56]); got != 99 {
		t.Errorf("direct[9] at 52: %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[56:60]); got != 0 {
		t.Errorf("indirect at 56: %d", got)
	}
	if got := binary.LittleEndian.Uint64(b[60:68]); got != 0x1122334455667788 {
		t.Errorf("created at 60: %#x", got)
	}
	if got := binary.LittleEndian.Uint64(b[68:76]); got != 0x8877665544332211 {
		t.Errorf("modified at 68: %#x", got)
	}
	for i := 76; i < InodeSize; i++ {
		if b[i] != 0 {
			t.Fatalf("reserved byte %d is %#x, expected zero", i, b[i])
		}
	}
}

func TestInodeLocation(t *testing.T) {
	cases := []struct {
		number uint32
		block  uint32
		offset int
	}{
		{1, InodeTableStart, InodeSize},
		{2, InodeTableStart, 2 * InodeSize},
		{31, InodeTableStart, 31 * InodeSize},
		{32, InodeTableStart + 1, 0},
		{255, InodeTableStart + 7, 31 * InodeSize},
	}
	for _, c := range cases {
		block, offset := inodeLocation(c.number)
		if block != c.block || offset != c.offset {
			t.Errorf("inode %d at block %d offset %d, expected block %d offset %d",
				c.number, block, offset, c.block, c.offset)
		}
	}
}

func TestInodeShortBuffer(t *testing.T) {
	if _, err := inodeFromBytes(make([]byte, 64)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}
