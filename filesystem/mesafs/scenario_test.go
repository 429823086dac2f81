package mesafs_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesaos/go-mesafs/filesystem/mesafs"
)

// testState drives one filesystem through the public API and tracks what
// it should contain.
type testState struct {
	t        *testing.T
	fsys     *mesafs.FileSystem
	stamp    time.Time
	contents map[string][]byte
}

func newTestState(t *testing.T, blocks int) *testState {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.img")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	size := int64(blocks) * mesafs.BlockSize
	require.NoError(t, f.Truncate(size))
	fsys, err := mesafs.Format(f, 0, size)
	require.NoError(t, err)

	return &testState{
		t:        t,
		fsys:     fsys,
		stamp:    time.Unix(1700000000, 0).UTC(),
		contents: map[string][]byte{},
	}
}

func (ts *testState) create(name string, data []byte) {
	info, err := ts.fsys.CreateFile(name, data, ts.stamp, ts.stamp)
	require.NoError(ts.t, err, "create %s", name)
	assert.Equal(ts.t, int64(len(data)), info.Size)
	if _, dup := ts.contents[name]; !dup {
		ts.contents[name] = data
	}
}

// checkAll lists the directory and reads every file back, comparing
// against the tracked contents.
func (ts *testState) checkAll() {
	ts.t.Helper()
	entries, err := ts.fsys.ReadDir()
	require.NoError(ts.t, err)
	assert.Equal(ts.t, len(ts.contents), len(entries))

	for _, e := range entries {
		want, ok := ts.contents[e.Name]
		require.True(ts.t, ok, "unexpected entry %s", e.Name)
		assert.Equal(ts.t, int64(len(want)), e.Size, "size of %s", e.Name)
		assert.Equal(ts.t, mesafs.TypeFile, e.Type, "type of %s", e.Name)
		assert.True(ts.t, e.Modified.Equal(ts.stamp), "modified time of %s", e.Name)

		data, err := ts.fsys.ReadFile(e.Name)
		require.NoError(ts.t, err, "read %s", e.Name)
		assert.True(ts.t, bytes.Equal(want, data), "content of %s", e.Name)
	}
}

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed ^ byte(i*13)
	}
	return b
}

// Sizes straddling every block boundary, then the directory filled to its
// last slot, verified after each phase.
func TestFillScenario(t *testing.T) {
	ts := newTestState(t, 1024)

	sizes := []int{
		0,
		1,
		mesafs.BlockSize - 1,
		mesafs.BlockSize,
		mesafs.BlockSize + 1,
		3*mesafs.BlockSize + 17,
		mesafs.MaxFileSize,
	}
	for i, n := range sizes {
		ts.create(fmt.Sprintf("file-%02d", i), payload(n, byte(i)))
	}
	ts.checkAll()

	for i := len(sizes); i < mesafs.DirentsPerBlock; i++ {
		ts.create(fmt.Sprintf("file-%02d", i), payload(100+i, byte(i)))
	}
	ts.checkAll()

	_, err := ts.fsys.CreateFile("one-too-many", []byte("x"), ts.stamp, ts.stamp)
	require.ErrorIs(t, err, mesafs.ErrDirectoryFull)

	// The failed create must not have disturbed anything readable.
	ts.checkAll()
}
