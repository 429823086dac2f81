package mesafs

import (
	"github.com/bits-and-blooms/bitset"
)

// bitmap is an allocation bitmap with a fixed serialized size. On disk,
// bit i lives in byte i/8 under mask 1<<(i%8).
type bitmap struct {
	bits *bitset.BitSet
	size int
}

// newBitmap returns an all-clear bitmap serializing to size bytes.
func newBitmap(size int) *bitmap {
	return &bitmap{
		bits: bitset.New(uint(size * 8)),
		size: size,
	}
}

// bitmapFromBytes parses a serialized bitmap. Every byte of b is part of
// the map; callers that track fewer units than len(b)*8 enforce their own
// upper bound.
func bitmapFromBytes(b []byte) *bitmap {
	bm := newBitmap(len(b))
	for i, by := range b {
		for j := 0; j < 8; j++ {
			if by&(1<<j) != 0 {
				bm.bits.Set(uint(i*8 + j))
			}
		}
	}
	return bm
}

// test reports whether unit i is marked in use.
func (bm *bitmap) test(i uint) bool {
	return bm.bits.Test(i)
}

// set marks unit i in use.
func (bm *bitmap) set(i uint) {
	bm.bits.Set(i)
}

// firstClear returns the lowest free unit at or after from, scanning in
// index order so allocation is first-fit.
func (bm *bitmap) firstClear(from uint) (uint, bool) {
	return bm.bits.NextClear(from)
}

// setCount returns the number of units marked in use.
func (bm *bitmap) setCount() uint {
	return bm.bits.Count()
}

// toBytes serializes the bitmap into its fixed on-disk size.
func (bm *bitmap) toBytes() []byte {
	b := make([]byte, bm.size)
	for i := range b {
		var by byte
		for j := 0; j < 8; j++ {
			if bm.bits.Test(uint(i*8 + j)) {
				by |= 1 << j
			}
		}
		b[i] = by
	}
	return b
}
