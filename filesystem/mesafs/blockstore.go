package mesafs

import (
	"fmt"

	"github.com/mesaos/go-mesafs/util"
)

// blockStore translates partition-relative block numbers into byte offsets
// on the backing store and moves whole blocks at a time. It is the only
// place that touches the util.File; everything above it deals in blocks.
type blockStore struct {
	file   util.File
	base   int64  // byte offset of the partition on the backing store
	blocks uint32 // number of whole blocks the partition holds
}

func newBlockStore(f util.File, base, size int64) *blockStore {
	return &blockStore{
		file:   f,
		base:   base,
		blocks: uint32(size / BlockSize),
	}
}

// readBlock reads block n into a fresh BlockSize buffer.
func (d *blockStore) readBlock(n uint32) ([]byte, error) {
	if n >= d.blocks {
		return nil, fmt.Errorf("%w: block %d is beyond the %d-block partition", ErrIO, n, d.blocks)
	}
	b := make([]byte, BlockSize)
	read, err := d.file.ReadAt(b, d.base+int64(n)*BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading block %d: %v", ErrIO, n, err)
	}
	if read != BlockSize {
		return nil, fmt.Errorf("%w: read %d of %d bytes of block %d", ErrIO, read, BlockSize, n)
	}
	return b, nil
}

// writeBlock writes a full block. Callers must hand over exactly BlockSize
// bytes; there are no partial block writes anywhere in the layout.
func (d *blockStore) writeBlock(n uint32, b []byte) error {
	if n >= d.blocks {
		return fmt.Errorf("%w: block %d is beyond the %d-block partition", ErrIO, n, d.blocks)
	}
	if len(b) != BlockSize {
		return fmt.Errorf("writeBlock: %d bytes instead of a %d-byte block", len(b), BlockSize)
	}
	written, err := d.file.WriteAt(b, d.base+int64(n)*BlockSize)
	if err != nil {
		return fmt.Errorf("%w: writing block %d: %v", ErrIO, n, err)
	}
	if written != BlockSize {
		return fmt.Errorf("%w: wrote %d of %d bytes of block %d", ErrIO, written, BlockSize, n)
	}
	return nil
}

// updateBlock splices data into block n at the given byte offset,
// read-modify-write at block granularity. Records that share a block (the
// superblock and the block bitmap in block 0, inodes in a table block,
// entries in a directory block) each update only their own byte range, so
// neighbours are preserved.
func (d *blockStore) updateBlock(n uint32, offset int, data []byte) error {
	if offset < 0 || offset+len(data) > BlockSize {
		return fmt.Errorf("updateBlock: %d bytes at offset %d do not fit a %d-byte block", len(data), offset, BlockSize)
	}
	b, err := d.readBlock(n)
	if err != nil {
		return err
	}
	copy(b[offset:], data)
	return d.writeBlock(n, b)
}
