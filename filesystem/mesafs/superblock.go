package mesafs

import (
	"encoding/binary"
	"fmt"
)

// superblock is the filesystem-wide metadata record.
//
// On disk it is a 512-byte little-endian record at the start of block 0:
// magic at 0x0, version at 0x4, block size at 0x8, total blocks at 0xc,
// free blocks at 0x10, total inodes at 0x14, free inodes at 0x18, root
// inode number at 0x1c, first data block at 0x20, reserved padding to 512.
//
// Block 0 is shared: the superblock owns bytes 0-511 and the block bitmap
// owns the rest (see bitmap.go). Callers hold a mutable copy and persist it
// explicitly with FileSystem.flushSuperblock; there is no autosave.
type superblock struct {
	version        uint32
	blockSize      uint32
	totalBlocks    uint32
	freeBlocks     uint32
	totalInodes    uint32
	freeInodes     uint32
	rootInode      uint32
	firstDataBlock uint32
}

// newSuperblock computes the initial record for a freshly formatted
// filesystem: every block past the metadata region is free except the one
// reserved for the root directory's data, and every inode is free except
// inode 0 (never allocated) and inode 1 (the root directory).
func newSuperblock(totalBlocks uint32) *superblock {
	return &superblock{
		version:        Version,
		blockSize:      BlockSize,
		totalBlocks:    totalBlocks,
		freeBlocks:     totalBlocks - DataStart - 1,
		totalInodes:    TotalInodes,
		freeInodes:     TotalInodes - 2,
		rootInode:      RootInode,
		firstDataBlock: DataStart,
	}
}

// superblockFromBytes parses and validates the superblock record. A magic
// mismatch fails before any other field is trusted; a recorded block size
// other than the fixed 4096 invalidates the filesystem too, since every
// offset computation depends on it.
func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) != superblockSize {
		return nil, fmt.Errorf("cannot read superblock from %d bytes instead of expected %d", len(b), superblockSize)
	}

	magic := binary.LittleEndian.Uint32(b[0x0:0x4])
	if magic != Magic {
		return nil, fmt.Errorf("%w: magic %#08x instead of expected %#08x", ErrInvalidFilesystem, magic, Magic)
	}

	sb := superblock{
		version:        binary.LittleEndian.Uint32(b[0x4:0x8]),
		blockSize:      binary.LittleEndian.Uint32(b[0x8:0xc]),
		totalBlocks:    binary.LittleEndian.Uint32(b[0xc:0x10]),
		freeBlocks:     binary.LittleEndian.Uint32(b[0x10:0x14]),
		totalInodes:    binary.LittleEndian.Uint32(b[0x14:0x18]),
		freeInodes:     binary.LittleEndian.Uint32(b[0x18:0x1c]),
		rootInode:      binary.LittleEndian.Uint32(b[0x1c:0x20]),
		firstDataBlock: binary.LittleEndian.Uint32(b[0x20:0x24]),
	}

	if sb.blockSize != BlockSize {
		return nil, fmt.Errorf("%w: superblock records block size %d instead of %d", ErrInvalidFilesystem, sb.blockSize, BlockSize)
	}

	return &sb, nil
}

// toBytes serializes the superblock into its 512-byte on-disk form.
func (sb *superblock) toBytes() []byte {
	b := make([]byte, superblockSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], Magic)
	binary.LittleEndian.PutUint32(b[0x4:0x8], sb.version)
	binary.LittleEndian.PutUint32(b[0x8:0xc], sb.blockSize)
	binary.LittleEndian.PutUint32(b[0xc:0x10], sb.totalBlocks)
	binary.LittleEndian.PutUint32(b[0x10:0x14], sb.freeBlocks)
	binary.LittleEndian.PutUint32(b[0x14:0x18], sb.totalInodes)
	binary.LittleEndian.PutUint32(b[0x18:0x1c], sb.freeInodes)
	binary.LittleEndian.PutUint32(b[0x1c:0x20], sb.rootInode)
	binary.LittleEndian.PutUint32(b[0x20:0x24], sb.firstDataBlock)
	return b
}
