// Package mesafs provides the host-side implementation of the MesaFS
// filesystem: formatting a partition, injecting files into the root
// directory, and reading the filesystem back for listing and extraction.
//
// The on-disk format is fixed. Blocks are 4096 bytes. Block 0 holds the
// 512-byte superblock followed by the block allocation bitmap, block 1
// holds the inode allocation bitmap, blocks 2 through 9 hold the inode
// table, and data starts at block 10. There is a single root directory,
// held in inode 1, and files are addressed through ten direct block
// pointers, which caps a file at MaxFileSize bytes.
package mesafs

import (
	"fmt"
	"os"
	"time"

	"github.com/mesaos/go-mesafs/util"
	log "github.com/sirupsen/logrus"
)

const (
	// SectorSize is the disk sector size in bytes.
	SectorSize = 512
	// BlockSize is the filesystem block size in bytes.
	BlockSize = 4096
	// SectorsPerBlock is the number of disk sectors in one block.
	SectorsPerBlock = BlockSize / SectorSize

	// Magic identifies a MesaFS superblock. The constant reads "MESA" as
	// ASCII from the high byte down.
	Magic = 0x4d455341
	// Version is the only on-disk format revision.
	Version = 1

	// BlockBitmapBlock holds the superblock and the block bitmap.
	BlockBitmapBlock = 0
	// InodeBitmapBlock holds the inode bitmap.
	InodeBitmapBlock = 1
	// InodeTableStart is the first inode table block.
	InodeTableStart = 2
	// InodeTableBlocks is the number of inode table blocks.
	InodeTableBlocks = 8
	// DataStart is the first data block. Format hands it to the root
	// directory.
	DataStart = 10

	// DirectBlocks is the number of direct block pointers per inode.
	DirectBlocks = 10
	// InodeSize is the size of one inode table record in bytes.
	InodeSize = 128
	// InodesPerBlock is the number of inode records in one table block.
	InodesPerBlock = BlockSize / InodeSize
	// TotalInodes is the fixed inode count. Inode 0 is never allocated.
	TotalInodes = InodeTableBlocks * InodesPerBlock
	// RootInode is the root directory's inode number.
	RootInode = 1

	// DirentSize is the size of one directory slot in bytes.
	DirentSize = 64
	// DirentsPerBlock is the number of directory slots in one block.
	DirentsPerBlock = BlockSize / DirentSize
	// MaxNameLength is the widest file name a directory slot can hold.
	MaxNameLength = 58

	// MaxFileSize is the largest storable file: ten direct blocks, no
	// indirection.
	MaxFileSize = DirectBlocks * BlockSize

	// superblockSize is the on-disk superblock record size; the rest of
	// block 0 belongs to the block bitmap.
	superblockSize   = 512
	blockBitmapBytes = BlockSize - superblockSize
	inodeBitmapBytes = TotalInodes / 8

	// MaxBlocks is the largest block count the block bitmap can track.
	// Partitions holding more are clamped at format time.
	MaxBlocks = blockBitmapBytes * 8

	// minBlocks is the smallest formattable filesystem: the metadata
	// region plus the root directory's data block.
	minBlocks = DataStart + 1
)

// FileSystem provides access to a MesaFS filesystem inside a disk image.
// Obtain one with Format or Read. A FileSystem is not safe for concurrent
// use; the tools it serves run one operation at a time.
type FileSystem struct {
	superblock  *superblock
	blockBitmap *bitmap
	inodeBitmap *bitmap
	store       *blockStore
	size        int64
	start       int64
}

// FileInfo describes one root directory entry, joined with the fields of
// the inode it points at.
type FileInfo struct {
	Name       string
	Inode      uint32
	Type       FileType
	Size       int64
	BlocksUsed uint32
	Created    time.Time
	Modified   time.Time
}

// Info reports the filesystem-wide counters from the superblock.
type Info struct {
	Version        uint32
	BlockSize      uint32
	TotalBlocks    uint32
	FreeBlocks     uint32
	TotalInodes    uint32
	FreeInodes     uint32
	RootInode      uint32
	FirstDataBlock uint32
}

// Format creates a MesaFS filesystem in a given file or device. It
// requires the util.File where to create the filesystem, where to begin it
// on the file, and its size in bytes. Partitions holding more than
// MaxBlocks blocks are clamped to MaxBlocks with a warning; the tail is
// left untouched and never referenced.
//
// The new filesystem has an empty root directory in inode 1, backed by
// block 10, and every other inode and data block free.
func Format(f util.File, start, size int64) (*FileSystem, error) {
	if size < minBlocks*BlockSize {
		return nil, fmt.Errorf("requested size %d is smaller than minimum %d", size, minBlocks*BlockSize)
	}

	totalBlocks := uint32(size / BlockSize)
	if totalBlocks > MaxBlocks {
		log.WithFields(log.Fields{
			"blocks": totalBlocks,
			"max":    MaxBlocks,
		}).Warn("partition exceeds addressable block range, clamping")
		totalBlocks = MaxBlocks
	}

	sb := newSuperblock(totalBlocks)

	// Metadata blocks 0-9 plus the root directory's data block.
	blockBitmap := newBitmap(blockBitmapBytes)
	for i := uint(0); i <= DataStart; i++ {
		blockBitmap.set(i)
	}

	// Inode 0 is reserved unused, inode 1 is the root directory.
	inodeBitmap := newBitmap(inodeBitmapBytes)
	inodeBitmap.set(0)
	inodeBitmap.set(RootInode)

	store := newBlockStore(f, start, size)

	block0 := make([]byte, BlockSize)
	copy(block0[:superblockSize], sb.toBytes())
	copy(block0[superblockSize:], blockBitmap.toBytes())
	if err := store.writeBlock(BlockBitmapBlock, block0); err != nil {
		return nil, fmt.Errorf("failed to write superblock and block bitmap: %w", err)
	}

	block1 := make([]byte, BlockSize)
	copy(block1, inodeBitmap.toBytes())
	if err := store.writeBlock(InodeBitmapBlock, block1); err != nil {
		return nil, fmt.Errorf("failed to write inode bitmap: %w", err)
	}

	zero := make([]byte, BlockSize)
	for b := uint32(InodeTableStart); b < InodeTableStart+InodeTableBlocks; b++ {
		if err := store.writeBlock(b, zero); err != nil {
			return nil, fmt.Errorf("failed to zero inode table block %d: %w", b, err)
		}
	}
	if err := store.writeBlock(DataStart, zero); err != nil {
		return nil, fmt.Errorf("failed to zero root directory block: %w", err)
	}

	fs := &FileSystem{
		superblock:  sb,
		blockBitmap: blockBitmap,
		inodeBitmap: inodeBitmap,
		store:       store,
		size:        size,
		start:       start,
	}

	now := uint64(time.Now().Unix())
	root := &inode{
		number:     RootInode,
		fileType:   TypeDir,
		flags:      flagInUse,
		links:      1,
		blocksUsed: 1,
		created:    now,
		modified:   now,
	}
	root.direct[0] = DataStart
	if err := fs.putInode(root); err != nil {
		return nil, fmt.Errorf("failed to write root inode: %w", err)
	}

	log.WithFields(log.Fields{
		"start":       start,
		"totalBlocks": totalBlocks,
		"freeBlocks":  sb.freeBlocks,
	}).Debug("formatted filesystem")

	return fs, nil
}

// Read reads a MesaFS filesystem from a given file or device. It requires
// the util.File where to read the filesystem, where the filesystem begins
// on the file, and its size in bytes. The superblock is validated before
// anything else is trusted: a bad magic or block size, or a recorded
// geometry that cannot fit the given size, fails with
// ErrInvalidFilesystem.
func Read(f util.File, start, size int64) (*FileSystem, error) {
	if size < minBlocks*BlockSize {
		return nil, fmt.Errorf("%w: %d bytes is too small to hold a filesystem", ErrInvalidFilesystem, size)
	}

	fs := &FileSystem{
		store: newBlockStore(f, start, size),
		size:  size,
		start: start,
	}
	if err := fs.reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// reload re-reads the superblock and both allocation bitmaps from disk,
// discarding any in-memory copies. Every operation starts here so that
// nothing is trusted across calls.
func (fs *FileSystem) reload() error {
	block0, err := fs.store.readBlock(BlockBitmapBlock)
	if err != nil {
		return fmt.Errorf("failed to read superblock: %w", err)
	}
	sb, err := superblockFromBytes(block0[:superblockSize])
	if err != nil {
		return err
	}
	if sb.totalBlocks < minBlocks || int64(sb.totalBlocks)*BlockSize > fs.size {
		return fmt.Errorf("%w: superblock records %d blocks, partition holds %d", ErrInvalidFilesystem, sb.totalBlocks, fs.size/BlockSize)
	}
	if sb.totalBlocks > MaxBlocks {
		return fmt.Errorf("%w: superblock records %d blocks, bitmap tracks at most %d", ErrInvalidFilesystem, sb.totalBlocks, MaxBlocks)
	}

	block1, err := fs.store.readBlock(InodeBitmapBlock)
	if err != nil {
		return fmt.Errorf("failed to read inode bitmap: %w", err)
	}

	fs.superblock = sb
	fs.blockBitmap = bitmapFromBytes(block0[superblockSize:])
	fs.inodeBitmap = bitmapFromBytes(block1[:inodeBitmapBytes])
	return nil
}

// Info reports the superblock counters as of the last operation.
func (fs *FileSystem) Info() Info {
	return Info{
		Version:        fs.superblock.version,
		BlockSize:      fs.superblock.blockSize,
		TotalBlocks:    fs.superblock.totalBlocks,
		FreeBlocks:     fs.superblock.freeBlocks,
		TotalInodes:    fs.superblock.totalInodes,
		FreeInodes:     fs.superblock.freeInodes,
		RootInode:      fs.superblock.rootInode,
		FirstDataBlock: fs.superblock.firstDataBlock,
	}
}

// CreateFile stores data as a new file in the root directory. The name
// must fit a directory slot and data must not exceed MaxFileSize; both are
// checked before anything is allocated. The given timestamps are recorded
// in the inode at second precision.
//
// Allocation is first-fit and every step is persisted as it happens. If a
// later step fails, earlier allocations stay committed; the filesystem
// remains structurally valid but the space is not reclaimed. A name
// already present in the directory is not rejected, the new entry is
// simply appended.
func (fs *FileSystem) CreateFile(name string, data []byte, created, modified time.Time) (*FileInfo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum file size %d", ErrFileTooLarge, len(data), MaxFileSize)
	}
	if err := fs.reload(); err != nil {
		return nil, err
	}

	number, err := fs.allocInode()
	if err != nil {
		return nil, err
	}

	blocks := blocksNeeded(len(data))
	in := &inode{
		number:     number,
		fileType:   TypeFile,
		flags:      flagInUse,
		links:      1,
		size:       uint32(len(data)),
		blocksUsed: uint32(blocks),
		created:    uint64(created.Unix()),
		modified:   uint64(modified.Unix()),
	}

	for i := 0; i < blocks; i++ {
		block, err := fs.allocBlock()
		if err != nil {
			return nil, err
		}
		in.direct[i] = block

		chunk := make([]byte, BlockSize)
		end := (i + 1) * BlockSize
		if end > len(data) {
			end = len(data)
		}
		copy(chunk, data[i*BlockSize:end])
		if err := fs.store.writeBlock(block, chunk); err != nil {
			return nil, fmt.Errorf("failed to write data block %d: %w", block, err)
		}
	}

	if err := fs.putInode(in); err != nil {
		return nil, fmt.Errorf("failed to write inode %d: %w", number, err)
	}
	if err := fs.insertEntry(name, number, TypeFile); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"name":   name,
		"inode":  number,
		"size":   len(data),
		"blocks": blocks,
	}).Debug("created file")

	info := newFileInfo(&directoryEntry{inode: number, fileType: TypeFile, name: name}, in)
	return &info, nil
}

// ReadDir returns the contents of the root directory, one FileInfo per
// occupied slot in slot order. Entries whose inode cannot be read fail
// the whole listing rather than being silently dropped.
func (fs *FileSystem) ReadDir() ([]FileInfo, error) {
	if err := fs.reload(); err != nil {
		return nil, err
	}
	root, err := fs.getInode(fs.superblock.rootInode)
	if err != nil {
		return nil, fmt.Errorf("failed to read root inode: %w", err)
	}

	var infos []FileInfo
	for i := uint32(0); i < root.blocksUsed && i < DirectBlocks; i++ {
		b, err := fs.store.readBlock(root.direct[i])
		if err != nil {
			return nil, fmt.Errorf("failed to read directory block %d: %w", root.direct[i], err)
		}
		entries, err := direntsFromBlock(b)
		if err != nil {
			return nil, err
		}
		for _, de := range entries {
			in, err := fs.getInode(de.inode)
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", de.name, err)
			}
			infos = append(infos, newFileInfo(de, in))
		}
	}
	return infos, nil
}

// ReadFile returns the full content of the named file. A name not present
// in the root directory fails with an error satisfying
// errors.Is(err, os.ErrNotExist). With duplicate names the first slot
// wins.
func (fs *FileSystem) ReadFile(name string) ([]byte, error) {
	if err := fs.reload(); err != nil {
		return nil, err
	}
	_, in, err := fs.lookup(name)
	if err != nil {
		return nil, err
	}
	return fs.readFileBytes(in, 0, int64(in.size))
}

// OpenFile returns a File from which the named file's content can be read
// and seeked. The handle snapshots the inode at open time.
func (fs *FileSystem) OpenFile(name string) (*File, error) {
	if err := fs.reload(); err != nil {
		return nil, err
	}
	de, in, err := fs.lookup(name)
	if err != nil {
		return nil, err
	}
	return &File{
		directoryEntry: de,
		inode:          in,
		filesystem:     fs,
	}, nil
}

// lookup scans the root directory for name and resolves its inode.
func (fs *FileSystem) lookup(name string) (*directoryEntry, *inode, error) {
	root, err := fs.getInode(fs.superblock.rootInode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read root inode: %w", err)
	}
	for i := uint32(0); i < root.blocksUsed && i < DirectBlocks; i++ {
		b, err := fs.store.readBlock(root.direct[i])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read directory block %d: %w", root.direct[i], err)
		}
		entries, err := direntsFromBlock(b)
		if err != nil {
			return nil, nil, err
		}
		for _, de := range entries {
			if de.name != name {
				continue
			}
			in, err := fs.getInode(de.inode)
			if err != nil {
				return nil, nil, fmt.Errorf("entry %q: %w", name, err)
			}
			return de, in, nil
		}
	}
	return nil, nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
}

// readFileBytes reads count bytes of a file's content starting at offset,
// walking the direct block pointers. The caller bounds offset and count by
// the inode's size.
func (fs *FileSystem) readFileBytes(in *inode, offset, count int64) ([]byte, error) {
	out := make([]byte, 0, count)
	for count > 0 {
		idx := offset / BlockSize
		if idx >= int64(in.blocksUsed) || idx >= DirectBlocks {
			return nil, fmt.Errorf("%w: inode %d size %d exceeds its %d allocated blocks", ErrInvalidFilesystem, in.number, in.size, in.blocksUsed)
		}
		b, err := fs.store.readBlock(in.direct[idx])
		if err != nil {
			return nil, fmt.Errorf("failed to read data block %d: %w", in.direct[idx], err)
		}

		from := offset % BlockSize
		n := int64(BlockSize) - from
		if n > count {
			n = count
		}
		out = append(out, b[from:from+n]...)
		offset += n
		count -= n
	}
	return out, nil
}

// getInode reads one inode record from the inode table.
func (fs *FileSystem) getInode(number uint32) (*inode, error) {
	if number == 0 || number >= TotalInodes {
		return nil, fmt.Errorf("%w: inode number %d out of range", ErrInvalidFilesystem, number)
	}
	block, offset := inodeLocation(number)
	b, err := fs.store.readBlock(block)
	if err != nil {
		return nil, fmt.Errorf("failed to read inode table block %d: %w", block, err)
	}
	return inodeFromBytes(b[offset : offset+InodeSize])
}

// putInode writes one inode record into the inode table, leaving the rest
// of its block untouched.
func (fs *FileSystem) putInode(in *inode) error {
	block, offset := inodeLocation(in.number)
	return fs.store.updateBlock(block, offset, in.toBytes())
}

// insertEntry records a name to inode binding in the first free root
// directory slot. The root directory never grows; with every slot
// occupied the insert fails with ErrDirectoryFull.
func (fs *FileSystem) insertEntry(name string, number uint32, fileType FileType) error {
	root, err := fs.getInode(fs.superblock.rootInode)
	if err != nil {
		return fmt.Errorf("failed to read root inode: %w", err)
	}
	de := directoryEntry{inode: number, fileType: fileType, name: name}
	for i := uint32(0); i < root.blocksUsed && i < DirectBlocks; i++ {
		block := root.direct[i]
		b, err := fs.store.readBlock(block)
		if err != nil {
			return fmt.Errorf("failed to read directory block %d: %w", block, err)
		}
		offset, ok := freeSlotOffset(b)
		if !ok {
			continue
		}
		if err := fs.store.updateBlock(block, offset, de.toBytes()); err != nil {
			return fmt.Errorf("failed to write directory entry: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: no free slots in the root directory", ErrDirectoryFull)
}

// allocBlock claims the lowest free data block, persisting the bitmap and
// the superblock counter before returning.
func (fs *FileSystem) allocBlock() (uint32, error) {
	if fs.superblock.freeBlocks == 0 {
		return 0, fmt.Errorf("%w: no free blocks", ErrOutOfSpace)
	}
	i, ok := fs.blockBitmap.firstClear(uint(fs.superblock.firstDataBlock))
	if !ok || uint32(i) >= fs.superblock.totalBlocks {
		return 0, fmt.Errorf("%w: no free blocks", ErrOutOfSpace)
	}
	fs.blockBitmap.set(i)
	fs.superblock.freeBlocks--
	if err := fs.flushBlockBitmap(); err != nil {
		return 0, err
	}
	if err := fs.flushSuperblock(); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"block": i}).Debug("allocated block")
	return uint32(i), nil
}

// allocInode claims the lowest free inode past the root, persisting the
// bitmap and the superblock counter before returning.
func (fs *FileSystem) allocInode() (uint32, error) {
	if fs.superblock.freeInodes == 0 {
		return 0, fmt.Errorf("%w: no free inodes", ErrOutOfInodes)
	}
	i, ok := fs.inodeBitmap.firstClear(RootInode + 1)
	if !ok || uint32(i) >= TotalInodes {
		return 0, fmt.Errorf("%w: no free inodes", ErrOutOfInodes)
	}
	fs.inodeBitmap.set(i)
	fs.superblock.freeInodes--
	if err := fs.flushInodeBitmap(); err != nil {
		return 0, err
	}
	if err := fs.flushSuperblock(); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"inode": i}).Debug("allocated inode")
	return uint32(i), nil
}

func (fs *FileSystem) flushSuperblock() error {
	if err := fs.store.updateBlock(BlockBitmapBlock, 0, fs.superblock.toBytes()); err != nil {
		return fmt.Errorf("failed to write superblock: %w", err)
	}
	return nil
}

func (fs *FileSystem) flushBlockBitmap() error {
	if err := fs.store.updateBlock(BlockBitmapBlock, superblockSize, fs.blockBitmap.toBytes()); err != nil {
		return fmt.Errorf("failed to write block bitmap: %w", err)
	}
	return nil
}

func (fs *FileSystem) flushInodeBitmap() error {
	if err := fs.store.updateBlock(InodeBitmapBlock, 0, fs.inodeBitmap.toBytes()); err != nil {
		return fmt.Errorf("failed to write inode bitmap: %w", err)
	}
	return nil
}

// blocksNeeded returns the data blocks a file of the given size occupies.
// Empty files still take one block.
func blocksNeeded(size int) int {
	blocks := (size + BlockSize - 1) / BlockSize
	if blocks == 0 {
		blocks = 1
	}
	return blocks
}

func newFileInfo(de *directoryEntry, in *inode) FileInfo {
	return FileInfo{
		Name:       de.name,
		Inode:      de.inode,
		Type:       de.fileType,
		Size:       int64(in.size),
		BlocksUsed: in.blocksUsed,
		Created:    time.Unix(int64(in.created), 0).UTC(),
		Modified:   time.Unix(int64(in.modified), 0).UTC(),
	}
}
