package mesafs

import (
	"testing"
)

// The on-disk layout puts bit i in byte i/8 under mask 1<<(i%8). Every
// reader of the image depends on that byte order, so it is locked here
// against the serializer.
func TestBitmapByteLayout(t *testing.T) {
	bm := newBitmap(8)
	bm.set(0)
	bm.set(9)
	bm.set(17)
	bm.set(63)

	b := bm.toBytes()
	if len(b) != 8 {
		t.Fatalf("serialized to %d bytes, expected 8", len(b))
	}
	want := []byte{0x01, 0x02, 0x02, 0x00, 0x00, 0x00, 0x00, 0x80}
	for i := range want {
		if b[i] != want[i] {
			t.Errorf("byte %d is %#02x, expected %#02x", i, b[i], want[i])
		}
	}
}

func TestBitmapRoundTrip(t *testing.T) {
	bm := newBitmap(blockBitmapBytes)
	marked := []uint{0, 1, 7, 8, 100, 4095, MaxBlocks - 1}
	for _, i := range marked {
		bm.set(i)
	}

	parsed := bitmapFromBytes(bm.toBytes())
	if parsed.size != blockBitmapBytes {
		t.Fatalf("parsed size %d, expected %d", parsed.size, blockBitmapBytes)
	}
	if parsed.setCount() != uint(len(marked)) {
		t.Fatalf("set count %d, expected %d", parsed.setCount(), len(marked))
	}
	for _, i := range marked {
		if !parsed.test(i) {
			t.Errorf("bit %d lost in round trip", i)
		}
	}
	if parsed.test(2) || parsed.test(MaxBlocks-2) {
		t.Error("unmarked bit set after round trip")
	}
}

func TestBitmapFirstClear(t *testing.T) {
	bm := newBitmap(inodeBitmapBytes)
	for i := uint(0); i <= 10; i++ {
		bm.set(i)
	}

	i, ok := bm.firstClear(0)
	if !ok || i != 11 {
		t.Fatalf("first clear from 0: %d %v, expected 11 true", i, ok)
	}
	i, ok = bm.firstClear(20)
	if !ok || i != 20 {
		t.Fatalf("first clear from 20: %d %v, expected 20 true", i, ok)
	}

	bm.set(20)
	i, ok = bm.firstClear(20)
	if !ok || i != 21 {
		t.Fatalf("first clear from 20 with 20 set: %d %v, expected 21 true", i, ok)
	}
}

func TestBitmapExhausted(t *testing.T) {
	bm := newBitmap(2)
	for i := uint(0); i < 16; i++ {
		bm.set(i)
	}
	if _, ok := bm.firstClear(0); ok {
		t.Fatal("expected no clear bit in a full bitmap")
	}
}

func TestBitmapFromShortBuffer(t *testing.T) {
	// 3 bytes is shorter than the set's internal word size; the
	// serialized length must stay 3.
	bm := bitmapFromBytes([]byte{0x01, 0x00, 0x80})
	if !bm.test(0) || !bm.test(23) {
		t.Fatal("bits lost parsing a short buffer")
	}
	if bm.setCount() != 2 {
		t.Fatalf("set count %d, expected 2", bm.setCount())
	}
	b := bm.toBytes()
	if len(b) != 3 {
		t.Fatalf("serialized to %d bytes, expected 3", len(b))
	}
	if b[0] != 0x01 || b[2] != 0x80 {
		t.Fatalf("round trip altered bytes: %#v", b)
	}
}
