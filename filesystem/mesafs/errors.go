package mesafs

import "errors"

// The filesystem error taxonomy. Every failure an operation can surface
// wraps one of these, so callers can test with errors.Is. All of them are
// terminal for the invoking operation: nothing is retried internally, and
// bitmap or table writes already committed by earlier steps of the same
// operation are not rolled back.
var (
	// ErrInvalidFilesystem means the superblock magic did not match, or a
	// recorded geometry field contradicts the fixed layout. Nothing else in
	// the partition is trusted after this.
	ErrInvalidFilesystem = errors.New("not a valid MesaFS filesystem")

	// ErrIO wraps a short read or write, or a failure of the backing store
	// itself. Partial writes are never retried.
	ErrIO = errors.New("I/O error")

	// ErrOutOfSpace means the block bitmap has no free block at or after
	// the data region.
	ErrOutOfSpace = errors.New("no free blocks")

	// ErrOutOfInodes means the inode bitmap has no free slot at or after
	// the first allocatable inode.
	ErrOutOfInodes = errors.New("no free inodes")

	// ErrFileTooLarge means the file needs more than the ten direct blocks
	// an inode can address. Reported before any allocation happens.
	ErrFileTooLarge = errors.New("file too large")

	// ErrDirectoryFull means the directory's single data block has no free
	// entry slot left.
	ErrDirectoryFull = errors.New("directory full")

	// ErrNameTooLong means the file name does not fit the 58-byte name
	// field of a directory entry.
	ErrNameTooLong = errors.New("file name too long")
)
