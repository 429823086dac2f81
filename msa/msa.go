// Package msa reads and writes MesaOS software packages.
//
// An msa package is a single flat file: a fixed 1578-byte header, a table
// of 324-byte file entries, then the file payloads back to back. All
// integers are little-endian. Text fields are fixed-width, NUL-terminated
// and NUL-padded. The header carries a CRC32 (IEEE) checksum computed over
// the entire package with the checksum field itself zeroed.
package msa

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	// Magic identifies an msa package header.
	Magic = 0x4153454d
	// Version is the only package format revision.
	Version = 1

	// HeaderSize is the fixed header length in bytes; file entries start
	// right after it.
	HeaderSize = 1578
	// EntrySize is the length of one file table entry in bytes.
	EntrySize = 324

	// MaxDependencies is the widest dependency list the header can hold.
	MaxDependencies = 16

	// Widest strings the fixed header fields can hold. Each field keeps
	// one byte for the terminator.
	MaxNameLength        = 63
	MaxVersionLength     = 15
	MaxAuthorLength      = 63
	MaxDescriptionLength = 255
	MaxPathLength        = 255
	maxDependencyLength  = 63

	checksumOffset = 1446
)

// EntryType identifies what a file table entry describes.
type EntryType uint8

const (
	// TypeFile is a regular file with payload bytes in the package.
	TypeFile EntryType = 0
	// TypeDir is a directory; it carries no payload.
	TypeDir EntryType = 1
	// TypeSymlink is a symbolic link. Defined by the format; the builder
	// here never emits one.
	TypeSymlink EntryType = 2
)

var (
	// ErrInvalidPackage means the header magic, version or geometry does
	// not describe an msa package.
	ErrInvalidPackage = errors.New("not a valid msa package")

	// ErrChecksum means the package content does not match the checksum
	// recorded in its header.
	ErrChecksum = errors.New("package checksum mismatch")
)

// Entry describes one archived file, directory or symlink.
type Entry struct {
	Path       string
	Size       uint32
	Offset     uint32
	Mode       uint32
	Type       EntryType
	Executable bool
}

// Package is a decoded msa package. The raw bytes are retained so payloads
// can be sliced out and the checksum re-verified.
type Package struct {
	Name         string
	Version      string
	Author       string
	Description  string
	Dependencies []string
	Entries      []Entry
	TotalSize    uint32
	Checksum     uint32

	raw []byte
}

// Decode parses a package from its raw bytes. The checksum is not checked
// here; call Verify for that.
func Decode(b []byte) (*Package, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the %d-byte header", ErrInvalidPackage, len(b), HeaderSize)
	}
	if magic := binary.LittleEndian.Uint32(b[0:4]); magic != Magic {
		return nil, fmt.Errorf("%w: magic %#08x instead of expected %#08x", ErrInvalidPackage, magic, Magic)
	}
	if version := binary.LittleEndian.Uint32(b[4:8]); version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPackage, version)
	}

	numFiles := binary.LittleEndian.Uint32(b[408:412])
	headerSize := binary.LittleEndian.Uint32(b[416:420])
	if headerSize != HeaderSize+numFiles*EntrySize {
		return nil, fmt.Errorf("%w: header size %d does not match %d entries", ErrInvalidPackage, headerSize, numFiles)
	}
	if uint32(len(b)) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes cannot hold the %d-byte header and file table", ErrInvalidPackage, len(b), headerSize)
	}

	numDeps := binary.LittleEndian.Uint16(b[420:422])
	if numDeps > MaxDependencies {
		return nil, fmt.Errorf("%w: %d dependencies exceeds maximum %d", ErrInvalidPackage, numDeps, MaxDependencies)
	}
	deps := make([]string, 0, numDeps)
	for i := 0; i < int(numDeps); i++ {
		off := 422 + i*(maxDependencyLength+1)
		deps = append(deps, cstring(b[off:off+maxDependencyLength+1]))
	}

	p := &Package{
		Name:         cstring(b[8:72]),
		Version:      cstring(b[72:88]),
		Author:       cstring(b[88:152]),
		Description:  cstring(b[152:408]),
		Dependencies: deps,
		TotalSize:    binary.LittleEndian.Uint32(b[412:416]),
		Checksum:     binary.LittleEndian.Uint32(b[checksumOffset : checksumOffset+4]),
		raw:          b,
	}

	for i := uint32(0); i < numFiles; i++ {
		e, err := entryFromBytes(b[HeaderSize+i*EntrySize : HeaderSize+(i+1)*EntrySize])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Type == TypeFile && int64(e.Offset)+int64(e.Size) > int64(len(b)) {
			return nil, fmt.Errorf("%w: entry %q payload (%d+%d) runs past the %d-byte package", ErrInvalidPackage, e.Path, e.Offset, e.Size, len(b))
		}
		p.Entries = append(p.Entries, *e)
	}
	return p, nil
}

// Verify recomputes the package checksum and compares it against the one
// recorded in the header.
func (p *Package) Verify() error {
	buf := make([]byte, len(p.raw))
	copy(buf, p.raw)
	binary.LittleEndian.PutUint32(buf[checksumOffset:checksumOffset+4], 0)
	if got := crc32.ChecksumIEEE(buf); got != p.Checksum {
		return fmt.Errorf("%w: computed %#08x, header records %#08x", ErrChecksum, got, p.Checksum)
	}
	return nil
}

// Payload returns the content bytes of a file entry. Directories and
// symlinks have no payload.
func (p *Package) Payload(e Entry) ([]byte, error) {
	if e.Type != TypeFile {
		return nil, fmt.Errorf("entry %q is not a regular file", e.Path)
	}
	return p.raw[e.Offset : e.Offset+e.Size], nil
}

// entryFromBytes parses one file table entry.
//
// Layout, little-endian: path at 0x0 (256 bytes), size at 0x100, payload
// offset at 0x104, mode at 0x108, type at 0x10c, executable flag at 0x10d,
// reserved padding to 324.
func entryFromBytes(b []byte) (*Entry, error) {
	if len(b) != EntrySize {
		return nil, fmt.Errorf("cannot read file entry from %d bytes instead of expected %d", len(b), EntrySize)
	}
	return &Entry{
		Path:       cstring(b[0:256]),
		Size:       binary.LittleEndian.Uint32(b[256:260]),
		Offset:     binary.LittleEndian.Uint32(b[260:264]),
		Mode:       binary.LittleEndian.Uint32(b[264:268]),
		Type:       EntryType(b[268]),
		Executable: b[269] != 0,
	}, nil
}

// toBytes serializes the entry into its 324-byte table form.
func (e *Entry) toBytes() []byte {
	b := make([]byte, EntrySize)
	copy(b[0:255], e.Path)
	binary.LittleEndian.PutUint32(b[256:260], e.Size)
	binary.LittleEndian.PutUint32(b[260:264], e.Offset)
	binary.LittleEndian.PutUint32(b[264:268], e.Mode)
	b[268] = byte(e.Type)
	if e.Executable {
		b[269] = 1
	}
	return b
}

// cstring reads a NUL-terminated string from a fixed-width field.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
