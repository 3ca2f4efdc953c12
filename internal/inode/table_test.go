package inode

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskvfs/blockstore"
	"github.com/hupe1980/diskvfs/internal/alloc"
	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/layout"
)

type fixture struct {
	geo   layout.Geometry
	alloc *alloc.Allocator
	table *Table
	clock *clock.Mock
}

func newFixture(t *testing.T, blockCount uint32) *fixture {
	t.Helper()

	geo, err := layout.Compute(1024, blockCount, 0)
	require.NoError(t, err)

	store, err := blockstore.New(blockstore.NewMemoryDevice(int64(blockCount)*1024), 1024)
	require.NoError(t, err)

	f := &fixture{
		geo:   geo,
		alloc: alloc.New(store, geo),
		clock: clock.NewMock(),
	}
	f.clock.Set(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	f.table = New(store, geo, f.clock)

	require.NoError(t, f.alloc.Format())
	require.NoError(t, f.table.Format())
	return f
}

func TestRecordSize(t *testing.T) {
	assert.Len(t, encodeRecord(&Inode{}), layout.InodeSize)
}

func TestTable_AllocRead(t *testing.T) {
	f := newFixture(t, 64)

	root, err := f.table.Alloc(TypeDirectory)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), root.Index)

	file, err := f.table.Alloc(TypeFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), file.Index)

	got, err := f.table.Read(1)
	require.NoError(t, err)
	assert.Equal(t, TypeFile, got.Type)
	assert.Zero(t, got.Size)
	assert.Empty(t, got.Blocks)
	assert.True(t, got.Created.Equal(f.clock.Now()))
	assert.True(t, got.Modified.Equal(f.clock.Now()))

	used, err := f.table.Used()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, used)
}

func TestTable_ReadErrors(t *testing.T) {
	f := newFixture(t, 64)

	_, err := f.table.Read(3)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = f.table.Read(f.geo.InodeCount)
	assert.True(t, errors.Is(err, errs.ErrOutOfRange))

	ok, err := f.table.InUse(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTable_CapacityExceeded(t *testing.T) {
	f := newFixture(t, 64)

	for i := uint32(0); i < f.table.Capacity(); i++ {
		_, err := f.table.Alloc(TypeFile)
		require.NoError(t, err)
	}
	_, err := f.table.Alloc(TypeFile)
	assert.True(t, errors.Is(err, errs.ErrCapacityExceeded))
}

func TestTable_IndirectBlocks(t *testing.T) {
	f := newFixture(t, 64)

	in, err := f.table.Alloc(TypeFile)
	require.NoError(t, err)

	for i := 0; i < DirectBlocks+3; i++ {
		b, err := f.alloc.Alloc()
		require.NoError(t, err)
		in.Blocks = append(in.Blocks, b)
	}
	in.Indirect, err = f.alloc.Alloc()
	require.NoError(t, err)
	in.Size = uint64(len(in.Blocks)) * 1024
	require.NoError(t, f.table.Write(in))

	got, err := f.table.Read(in.Index)
	require.NoError(t, err)
	assert.Equal(t, in.Blocks, got.Blocks)
	assert.Equal(t, in.Indirect, got.Indirect)
	assert.Equal(t, in.Size, got.Size)

	freeBefore, err := f.alloc.FreeCount()
	require.NoError(t, err)

	require.NoError(t, f.table.Free(in.Index, f.alloc))

	freeAfter, err := f.alloc.FreeCount()
	require.NoError(t, err)
	assert.Equal(t, freeBefore+uint32(DirectBlocks+4), freeAfter)

	_, err = f.table.Read(in.Index)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestTable_WriteTooManyBlocks(t *testing.T) {
	f := newFixture(t, 64)

	in, err := f.table.Alloc(TypeFile)
	require.NoError(t, err)
	in.Blocks = make([]uint32, MaxBlocks(1024)+1)
	in.Indirect = f.geo.DataStart

	err = f.table.Write(in)
	assert.True(t, errors.Is(err, errs.ErrFileTooLarge))
}

func TestTable_FreeNonEmptyDirectory(t *testing.T) {
	f := newFixture(t, 64)

	dir, err := f.table.Alloc(TypeDirectory)
	require.NoError(t, err)
	b, err := f.alloc.Alloc()
	require.NoError(t, err)
	dir.Blocks = []uint32{b}
	dir.Size = 32
	require.NoError(t, f.table.Write(dir))

	err = f.table.Free(dir.Index, f.alloc)
	assert.True(t, errors.Is(err, errs.ErrDirectoryNotEmpty))

	// Nothing was released.
	ok, err := f.alloc.IsAllocated(b)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = f.table.Read(dir.Index)
	assert.NoError(t, err)
}

func TestTable_FreeReusesSlot(t *testing.T) {
	f := newFixture(t, 64)

	_, err := f.table.Alloc(TypeDirectory)
	require.NoError(t, err)
	a, err := f.table.Alloc(TypeFile)
	require.NoError(t, err)
	_, err = f.table.Alloc(TypeFile)
	require.NoError(t, err)

	require.NoError(t, f.table.Free(a.Index, f.alloc))

	c, err := f.table.Alloc(TypeDirectory)
	require.NoError(t, err)
	assert.Equal(t, a.Index, c.Index)
	assert.True(t, c.IsDir())

	err = f.table.Free(99, f.alloc)
	assert.True(t, errors.Is(err, errs.ErrOutOfRange))
}
