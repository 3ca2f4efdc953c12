package diskvfs

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskvfs/internal/fs"
)

func withFS(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// newFaultyImage formats a healthy image and returns its path.
func newFaultyImage(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "disk.img")
	vfs, err := Init(path, 64)
	require.NoError(t, err)
	require.NoError(t, vfs.WriteFile([]string{"keep"}, []byte("kept")))
	require.NoError(t, vfs.Unmount())
	return path
}

func TestFault_WriteErrors(t *testing.T) {
	path := newFaultyImage(t)

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("disk.img", fs.Fault{FailAfterBytes: 0})

	vfs, err := Init(path, 64, withFS(ffs))
	require.NoError(t, err)
	defer vfs.UnmountForce()

	err = vfs.Creat([]string{"new"}, false)
	assert.True(t, errors.Is(err, fs.ErrInjected))

	_, err = vfs.Stat([]string{"new"})
	assert.True(t, errors.Is(err, ErrNotFound))

	got, err := vfs.ReadFile([]string{"keep"})
	require.NoError(t, err)
	assert.Equal(t, "kept", string(got))
}

func TestFault_ReadErrors(t *testing.T) {
	path := newFaultyImage(t)

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("disk.img", fs.Fault{FailAfterBytes: -1, FailReads: true})

	_, err := Init(path, 64, withFS(ffs))
	assert.True(t, errors.Is(err, fs.ErrInjected))
}

func TestFault_SyncErrorOnUnmount(t *testing.T) {
	path := newFaultyImage(t)

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("disk.img", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	vfs, err := Init(path, 64, withFS(ffs))
	require.NoError(t, err)

	assert.True(t, errors.Is(vfs.Unmount(), fs.ErrInjected))
	_, err = vfs.Stat(nil)
	assert.True(t, errors.Is(err, ErrUnmounted))
}

func TestFault_OpenError(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("disk.img", fs.Fault{FailOpen: true})

	_, err := Init(filepath.Join(t.TempDir(), "disk.img"), 64, withFS(ffs))
	assert.True(t, errors.Is(err, fs.ErrInjected))
}
