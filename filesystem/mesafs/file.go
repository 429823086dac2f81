package mesafs

import (
	"fmt"
	"io"
	"os"
)

// File represents a single file in a mesafs filesystem. It implements
// io.Reader, io.Seeker and io.Closer. Writes are rejected: file content is
// written whole at creation time via FileSystem.CreateFile.
type File struct {
	*directoryEntry
	inode      *inode
	offset     int64
	filesystem *FileSystem
}

// Read reads up to len(b) bytes from the File. It returns the number of
// bytes read and any error encountered. At end of file, Read returns
// 0, io.EOF. Reads continue from the offset set by the last Read or Seek.
func (fl *File) Read(b []byte) (int, error) {
	if fl.filesystem == nil {
		return 0, os.ErrClosed
	}
	size := int64(fl.inode.size)
	if fl.offset >= size {
		return 0, io.EOF
	}

	count := int64(len(b))
	if fl.offset+count > size {
		count = size - fl.offset
	}
	data, err := fl.filesystem.readFileBytes(fl.inode, fl.offset, count)
	if err != nil {
		return 0, err
	}
	n := copy(b, data)
	fl.offset += int64(n)
	return n, nil
}

// Write always fails; mesafs file content is immutable once created.
func (fl *File) Write(_ []byte) (int, error) {
	return 0, fmt.Errorf("file content is written at creation time, in-place writes not supported")
}

// Seek sets the offset for the next Read, interpreted per whence exactly
// as io.Seeker describes.
func (fl *File) Seek(offset int64, whence int) (int64, error) {
	if fl.filesystem == nil {
		return 0, os.ErrClosed
	}
	newOffset := int64(0)
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekEnd:
		newOffset = int64(fl.inode.size) + offset
	case io.SeekCurrent:
		newOffset = fl.offset + offset
	default:
		return fl.offset, fmt.Errorf("unknown whence value %d", whence)
	}
	if newOffset < 0 {
		return fl.offset, fmt.Errorf("cannot set offset %d before start of file", offset)
	}
	fl.offset = newOffset
	return fl.offset, nil
}

// Close releases the handle. Further reads return os.ErrClosed.
func (fl *File) Close() error {
	fl.filesystem = nil
	return nil
}
