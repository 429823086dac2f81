package msa

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io/fs"
	"math"
	"os"
	"path/filepath"
)

// Builder accumulates package metadata and file content, then lays the
// whole package out in one pass. Input is validated as it is added; Bytes
// cannot fail on content that got past the Add calls.
//
// The file table has no fixed capacity. Only the dependency list is
// bounded, at MaxDependencies, because it lives inside the fixed header.
type Builder struct {
	name        string
	version     string
	author      string
	description string
	deps        []string
	files       []builderEntry
}

type builderEntry struct {
	path       string
	data       []byte
	mode       uint32
	entryType  EntryType
	executable bool
}

// NewBuilder starts a package. The metadata must fit the fixed header
// fields; each keeps one byte for its terminator.
func NewBuilder(name, version, author, description string) (*Builder, error) {
	if name == "" {
		return nil, fmt.Errorf("package name must not be empty")
	}
	fields := []struct {
		field string
		value string
		max   int
	}{
		{"name", name, MaxNameLength},
		{"version", version, MaxVersionLength},
		{"author", author, MaxAuthorLength},
		{"description", description, MaxDescriptionLength},
	}
	for _, f := range fields {
		if len(f.value) > f.max {
			return nil, fmt.Errorf("%s %q is %d bytes, maximum is %d", f.field, f.value, len(f.value), f.max)
		}
	}
	return &Builder{
		name:        name,
		version:     version,
		author:      author,
		description: description,
	}, nil
}

// AddDependency records a package this one depends on.
func (b *Builder) AddDependency(dep string) error {
	if dep == "" {
		return fmt.Errorf("dependency name must not be empty")
	}
	if len(dep) > maxDependencyLength {
		return fmt.Errorf("dependency %q is %d bytes, maximum is %d", dep, len(dep), maxDependencyLength)
	}
	if len(b.deps) >= MaxDependencies {
		return fmt.Errorf("dependency list is full at %d entries", MaxDependencies)
	}
	b.deps = append(b.deps, dep)
	return nil
}

// AddFile records a regular file under the given package-relative path.
// Only the permission bits of mode are stored; the owner-execute bit also
// sets the entry's executable flag.
func (b *Builder) AddFile(path string, data []byte, mode fs.FileMode) error {
	if err := validatePath(path); err != nil {
		return err
	}
	b.files = append(b.files, builderEntry{
		path:       path,
		data:       data,
		mode:       uint32(mode.Perm()),
		entryType:  TypeFile,
		executable: mode.Perm()&0o100 != 0,
	})
	return nil
}

// AddDir records a directory entry. Directories carry no payload.
func (b *Builder) AddDir(path string, mode fs.FileMode) error {
	if err := validatePath(path); err != nil {
		return err
	}
	b.files = append(b.files, builderEntry{
		path:      path,
		mode:      uint32(mode.Perm()),
		entryType: TypeDir,
	})
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("entry path must not be empty")
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("path %q is %d bytes, maximum is %d", path, len(path), MaxPathLength)
	}
	return nil
}

// AddTree walks a host directory and records everything under it, with
// paths relative to root in slash form, directories first in lexical walk
// order. Symlinks and other non-regular entries are skipped.
func (b *Builder) AddTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return b.AddDir(rel, info.Mode())
		case d.Type().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return b.AddFile(rel, data, info.Mode())
		default:
			return nil
		}
	})
}

// Files returns the number of recorded entries, directories included.
func (b *Builder) Files() int {
	return len(b.files)
}

// PayloadSize returns the total file content recorded so far, in bytes.
func (b *Builder) PayloadSize() int {
	total := 0
	for _, f := range b.files {
		total += len(f.data)
	}
	return total
}

// Bytes serializes the package: header, file table, then payloads back to
// back. Payload offsets are assigned here, in table order, starting right
// after the table. The checksum is computed over the finished output with
// the checksum field zeroed, then patched in.
func (b *Builder) Bytes() ([]byte, error) {
	headerSize := HeaderSize + EntrySize*len(b.files)
	totalPayload := b.PayloadSize()
	if int64(headerSize)+int64(totalPayload) > math.MaxUint32 {
		return nil, fmt.Errorf("package of %d bytes exceeds 32-bit offset addressing", int64(headerSize)+int64(totalPayload))
	}

	out := make([]byte, headerSize+totalPayload)
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint32(out[4:8], Version)
	copy(out[8:8+MaxNameLength], b.name)
	copy(out[72:72+MaxVersionLength], b.version)
	copy(out[88:88+MaxAuthorLength], b.author)
	copy(out[152:152+MaxDescriptionLength], b.description)
	binary.LittleEndian.PutUint32(out[408:412], uint32(len(b.files)))
	binary.LittleEndian.PutUint32(out[412:416], uint32(totalPayload))
	binary.LittleEndian.PutUint32(out[416:420], uint32(headerSize))
	binary.LittleEndian.PutUint16(out[420:422], uint16(len(b.deps)))
	for i, dep := range b.deps {
		off := 422 + i*(maxDependencyLength+1)
		copy(out[off:off+maxDependencyLength], dep)
	}

	offset := uint32(headerSize)
	for i, f := range b.files {
		e := Entry{
			Path:       f.path,
			Mode:       f.mode,
			Type:       f.entryType,
			Executable: f.executable,
		}
		if f.entryType == TypeFile {
			e.Size = uint32(len(f.data))
			e.Offset = offset
			copy(out[offset:], f.data)
			offset += e.Size
		}
		copy(out[HeaderSize+i*EntrySize:], e.toBytes())
	}

	checksum := crc32.ChecksumIEEE(out)
	binary.LittleEndian.PutUint32(out[checksumOffset:checksumOffset+4], checksum)
	return out, nil
}
