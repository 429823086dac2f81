// Package util provides shared helpers for the go-mesafs packages.
package util

import "io"

// File is the backing store every layer reads from and writes to. A raw
// disk image opened with os.OpenFile satisfies it, as does any in-memory
// implementation used in tests.
type File interface {
	io.ReaderAt
	io.WriterAt
}
