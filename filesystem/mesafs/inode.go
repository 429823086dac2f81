package mesafs

import (
	"encoding/binary"
	"fmt"
)

// FileType identifies what an inode points at.
type FileType uint8

const (
	// TypeFile is a regular file.
	TypeFile FileType = 1
	// TypeDir is a directory.
	TypeDir FileType = 2
)

// flagInUse marks an allocated inode. The authoritative allocation record
// is the inode bitmap; the flag is written alongside it so a raw dump of
// the inode table is self-describing.
const flagInUse = 0x01

// inode is a single 128-byte inode table record.
//
// Layout, little-endian: number at 0x0, type at 0x4, flags at 0x5, link
// count at 0x6, size in bytes at 0x8, blocks used at 0xc, ten direct block
// pointers at 0x10, indirect pointer at 0x38, created at 0x3c and modified
// at 0x44 as 64-bit Unix seconds, reserved padding to 128.
//
// The indirect pointer is carried but never followed; with ten direct
// blocks the maximum file size is MaxFileSize and nothing past the direct
// range is addressable.
type inode struct {
	number     uint32
	fileType   FileType
	flags      uint8
	links      uint16
	size       uint32
	blocksUsed uint32
	direct     [DirectBlocks]uint32
	indirect   uint32
	created    uint64
	modified   uint64
}

// inodeFromBytes parses one inode table record.
func inodeFromBytes(b []byte) (*inode, error) {
	if len(b) != InodeSize {
		return nil, fmt.Errorf("cannot read inode from %d bytes instead of expected %d", len(b), InodeSize)
	}

	in := inode{
		number:     binary.LittleEndian.Uint32(b[0x0:0x4]),
		fileType:   FileType(b[0x4]),
		flags:      b[0x5],
		links:      binary.LittleEndian.Uint16(b[0x6:0x8]),
		size:       binary.LittleEndian.Uint32(b[0x8:0xc]),
		blocksUsed: binary.LittleEndian.Uint32(b[0xc:0x10]),
		indirect:   binary.LittleEndian.Uint32(b[0x38:0x3c]),
		created:    binary.LittleEndian.Uint64(b[0x3c:0x44]),
		modified:   binary.LittleEndian.Uint64(b[0x44:0x4c]),
	}
	for i := 0; i < DirectBlocks; i++ {
		in.direct[i] = binary.LittleEndian.Uint32(b[0x10+i*4 : 0x14+i*4])
	}
	return &in, nil
}

// toBytes serializes the inode into its 128-byte on-disk form.
func (in *inode) toBytes() []byte {
	b := make([]byte, InodeSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], in.number)
	b[0x4] = byte(in.fileType)
	b[0x5] = in.flags
	binary.LittleEndian.PutUint16(b[0x6:0x8], in.links)
	binary.LittleEndian.PutUint32(b[0x8:0xc], in.size)
	binary.LittleEndian.PutUint32(b[0xc:0x10], in.blocksUsed)
	for i := 0; i < DirectBlocks; i++ {
		binary.LittleEndian.PutUint32(b[0x10+i*4:0x14+i*4], in.direct[i])
	}
	binary.LittleEndian.PutUint32(b[0x38:0x3c], in.indirect)
	binary.LittleEndian.PutUint64(b[0x3c:0x44], in.created)
	binary.LittleEndian.PutUint64(b[0x44:0x4c], in.modified)
	return b
}

// inodeLocation returns the inode table block holding the record for the
// given inode number and the record's byte offset inside that block.
func inodeLocation(number uint32) (block uint32, offset int) {
	return InodeTableStart + number/InodesPerBlock, int(number%InodesPerBlock) * InodeSize
}
