package mesafs

import (
	"encoding/binary"
	"fmt"
)

// directoryEntry is one 64-byte directory slot.
//
// Layout, little-endian: inode number at 0x0, type at 0x4, name length at
// 0x5, name bytes at 0x6. A slot with inode 0 is free. The stored name is
// bounded by the recorded length, not by a terminator; a full-length name
// occupies all 58 name bytes with no NUL.
type directoryEntry struct {
	inode    uint32
	fileType FileType
	name     string
}

// validateName rejects names a directory slot cannot represent.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty file name")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name %q is %d bytes, maximum is %d", ErrNameTooLong, name, len(name), MaxNameLength)
	}
	return nil
}

// direntFromBytes parses one directory slot. Free slots parse to an entry
// with inode 0 and an empty name.
func direntFromBytes(b []byte) (*directoryEntry, error) {
	if len(b) != DirentSize {
		return nil, fmt.Errorf("cannot read directory entry from %d bytes instead of expected %d", len(b), DirentSize)
	}

	nameLen := int(b[0x5])
	if nameLen > MaxNameLength {
		return nil, fmt.Errorf("%w: directory entry name length %d exceeds maximum %d", ErrInvalidFilesystem, nameLen, MaxNameLength)
	}

	return &directoryEntry{
		inode:    binary.LittleEndian.Uint32(b[0x0:0x4]),
		fileType: FileType(b[0x4]),
		name:     string(b[0x6 : 0x6+nameLen]),
	}, nil
}

// toBytes serializes the entry into its 64-byte slot form. The name must
// have passed validateName.
func (de *directoryEntry) toBytes() []byte {
	b := make([]byte, DirentSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], de.inode)
	b[0x4] = byte(de.fileType)
	b[0x5] = byte(len(de.name))
	copy(b[0x6:0x6+MaxNameLength], de.name)
	return b
}

// direntsFromBlock parses the occupied slots of a directory block in slot
// order, skipping free ones.
func direntsFromBlock(b []byte) ([]*directoryEntry, error) {
	if len(b) != BlockSize {
		return nil, fmt.Errorf("cannot read directory block from %d bytes instead of expected %d", len(b), BlockSize)
	}

	var entries []*directoryEntry
	for i := 0; i < DirentsPerBlock; i++ {
		de, err := direntFromBytes(b[i*DirentSize : (i+1)*DirentSize])
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		if de.inode == 0 {
			continue
		}
		entries = append(entries, de)
	}
	return entries, nil
}

// freeSlotOffset returns the byte offset of the first free slot in a
// directory block.
func freeSlotOffset(b []byte) (int, bool) {
	for i := 0; i < DirentsPerBlock; i++ {
		if binary.LittleEndian.Uint32(b[i*DirentSize:i*DirentSize+4]) == 0 {
			return i * DirentSize, true
		}
	}
	return 0, false
}
