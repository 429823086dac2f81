// Package partition reads and writes the MBR-style partition table in the
// first sector of a raw disk image, and locates the MesaFS partition in it.
package partition

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// SectorSize is the logical sector size used for all LBA arithmetic.
	SectorSize = 512
	// TypeMesa is the partition type byte reserved for MesaFS.
	TypeMesa byte = 0x77
	// TableEntries is the number of slots in an MBR partition table.
	TableEntries = 4

	entrySize           = 16
	tableOffset         = 446
	signatureOffset     = 440
	bootSignatureOffset = 510
	bootSignature       = 0xaa55
)

// ErrNotFound is returned when no entry in the table carries the MesaFS
// partition type.
var ErrNotFound = errors.New("no MesaFS partition found")

// Entry is a single 16-byte partition table entry.
//
// Byte layout: status at 0x0, first CHS address at 0x1-0x3, type at 0x4,
// last CHS address at 0x5-0x7, starting LBA as little-endian uint32 at
// 0x8-0xb, sector count as little-endian uint32 at 0xc-0xf. The CHS fields
// are carried through untouched; all addressing here is LBA.
type Entry struct {
	Status   byte
	Type     byte
	StartLBA uint32
	Sectors  uint32
	firstCHS [3]byte
	lastCHS  [3]byte
}

func entryFromBytes(b []byte) (*Entry, error) {
	if len(b) != entrySize {
		return nil, fmt.Errorf("cannot read partition entry from %d bytes instead of expected %d", len(b), entrySize)
	}
	e := Entry{
		Status:   b[0x0],
		Type:     b[0x4],
		StartLBA: binary.LittleEndian.Uint32(b[0x8:0xc]),
		Sectors:  binary.LittleEndian.Uint32(b[0xc:0x10]),
	}
	copy(e.firstCHS[:], b[0x1:0x4])
	copy(e.lastCHS[:], b[0x5:0x8])
	return &e, nil
}

func (e *Entry) toBytes() []byte {
	b := make([]byte, entrySize)
	b[0x0] = e.Status
	copy(b[0x1:0x4], e.firstCHS[:])
	b[0x4] = e.Type
	copy(b[0x5:0x8], e.lastCHS[:])
	binary.LittleEndian.PutUint32(b[0x8:0xc], e.StartLBA)
	binary.LittleEndian.PutUint32(b[0xc:0x10], e.Sectors)
	return b
}

// Start returns the byte offset of the partition from the beginning of the
// disk.
func (e *Entry) Start() int64 {
	return int64(e.StartLBA) * SectorSize
}

// Size returns the length of the partition in bytes.
func (e *Entry) Size() int64 {
	return int64(e.Sectors) * SectorSize
}

// Table is the partition table held in the first sector of a disk, along
// with the 32-bit disk signature that precedes it.
type Table struct {
	DiskSignature uint32
	Entries       [TableEntries]*Entry
}

// TableFromBytes parses a partition table from the first sector of a disk.
// The two-byte boot signature is deliberately not required: the MesaFS host
// tools accept any sector whose table slots parse, matching the companion
// kernel's own scan.
func TableFromBytes(b []byte) (*Table, error) {
	if len(b) != SectorSize {
		return nil, fmt.Errorf("cannot read partition table from %d bytes instead of expected %d", len(b), SectorSize)
	}
	t := Table{
		DiskSignature: binary.LittleEndian.Uint32(b[signatureOffset : signatureOffset+4]),
	}
	for i := 0; i < TableEntries; i++ {
		start := tableOffset + i*entrySize
		e, err := entryFromBytes(b[start : start+entrySize])
		if err != nil {
			return nil, fmt.Errorf("failed to parse partition entry %d: %v", i, err)
		}
		t.Entries[i] = e
	}
	return &t, nil
}

// ToBytes serializes the table into a full 512-byte sector. The boot code
// area is zeroed and the boot signature is always written.
func (t *Table) ToBytes() []byte {
	b := make([]byte, SectorSize)
	binary.LittleEndian.PutUint32(b[signatureOffset:signatureOffset+4], t.DiskSignature)
	for i, e := range t.Entries {
		if e == nil {
			continue
		}
		start := tableOffset + i*entrySize
		copy(b[start:start+entrySize], e.toBytes())
	}
	binary.LittleEndian.PutUint16(b[bootSignatureOffset:bootSignatureOffset+2], bootSignature)
	return b
}

// FindType returns the first entry whose partition type matches, scanning
// slots in table order.
func (t *Table) FindType(partType byte) (*Entry, bool) {
	for _, e := range t.Entries {
		if e != nil && e.Type == partType {
			return e, true
		}
	}
	return nil, false
}

// Mesa locates the MesaFS partition. An entry carrying the MesaFS type but
// a zero starting LBA is treated as absent. Every operation that depends on
// the partition fails when this does.
func (t *Table) Mesa() (*Entry, error) {
	e, ok := t.FindType(TypeMesa)
	if !ok || e.StartLBA == 0 {
		return nil, ErrNotFound
	}
	return e, nil
}

// NewTable builds a table with a single MesaFS partition spanning from
// startLBA to the end of a disk of totalSectors sectors. Used when creating
// fresh images; the signature is left for the caller to stamp.
func NewTable(totalSectors, startLBA uint32) (*Table, error) {
	if startLBA == 0 {
		return nil, errors.New("partition cannot start at LBA 0")
	}
	if startLBA >= totalSectors {
		return nil, fmt.Errorf("partition start LBA %d is beyond the %d-sector disk", startLBA, totalSectors)
	}
	t := Table{}
	t.Entries[0] = &Entry{
		Type:     TypeMesa,
		StartLBA: startLBA,
		Sectors:  totalSectors - startLBA,
	}
	for i := 1; i < TableEntries; i++ {
		t.Entries[i] = &Entry{}
	}
	return &t, nil
}
