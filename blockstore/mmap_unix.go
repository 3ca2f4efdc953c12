//go:build unix

package blockstore

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/hupe1980/diskvfs/internal/fs"
)

// MmapDevice maps the image file read-write with MAP_SHARED, so block writes
// land in the page cache directly and Sync flushes them with msync(2).
type MmapDevice struct {
	data   []byte
	f      fs.File
	closed atomic.Bool
}

// OpenMmapDevice opens or creates the image at path with exactly size bytes and
// maps it into memory.
func OpenMmapDevice(path string, size int64) (dev *MmapDevice, created bool, err error) {
	return openMmapDevice(fs.Default, path, size)
}

func openMmapDevice(fsys fs.FileSystem, path string, size int64) (*MmapDevice, bool, error) {
	f, created, err := openSized(fsys, path, size)
	if err != nil {
		return nil, false, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}

	// Block access is random; the hint is advisory.
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil && !errors.Is(err, unix.EINVAL) {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, false, err
	}

	return &MmapDevice{data: data, f: f}, created, nil
}

// ReadAt implements io.ReaderAt on the mapping.
func (m *MmapDevice) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, os.ErrClosed
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt on the mapping.
func (m *MmapDevice) WriteAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, os.ErrClosed
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.ErrShortWrite
	}
	n := copy(m.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Size returns the mapped size in bytes.
func (m *MmapDevice) Size() int64 { return int64(len(m.data)) }

// Sync flushes dirty pages of the mapping to the file.
func (m *MmapDevice) Sync() error {
	if m.closed.Load() {
		return os.ErrClosed
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close unmaps the memory and closes the underlying file. It is idempotent.
func (m *MmapDevice) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if closeErr := m.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func openMmap(fsys fs.FileSystem, path string, size int64) (Device, bool, error) {
	return openMmapDevice(fsys, path, size)
}
