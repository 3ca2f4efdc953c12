package blockstore

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/diskvfs/internal/fs"
)

// Device is the byte store a disk image lives in.
type Device interface {
	io.ReaderAt
	io.WriterAt
	// Size returns the size of the device in bytes.
	Size() int64
	// Sync flushes pending writes to stable storage.
	Sync() error
	// Close releases the device.
	Close() error
}

// DeviceKind selects the Device implementation used by Open.
type DeviceKind int

const (
	// DeviceFile performs positioned reads and writes on the image file.
	DeviceFile DeviceKind = iota
	// DeviceMmap maps the image file read-write (unix only).
	DeviceMmap
	// DeviceMemory keeps the image in memory; the path is ignored.
	DeviceMemory
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceFile:
		return "file"
	case DeviceMmap:
		return "mmap"
	case DeviceMemory:
		return "memory"
	default:
		return fmt.Sprintf("DeviceKind(%d)", int(k))
	}
}

// ParseDeviceKind parses "file", "mmap" or "memory".
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch s {
	case "file", "":
		return DeviceFile, nil
	case "mmap":
		return DeviceMmap, nil
	case "memory":
		return DeviceMemory, nil
	default:
		return 0, fmt.Errorf("blockstore: unknown device kind %q", s)
	}
}

// ErrSizeMismatch is returned when an existing image does not have the expected size.
var ErrSizeMismatch = errors.New("image size mismatch")

// FileDevice implements Device with positioned I/O on an *os.File.
type FileDevice struct {
	f    fs.File
	size int64
}

// OpenFileDevice opens or creates the image at path with exactly size bytes.
// created reports whether the file was created (or was empty) and has been sized.
func OpenFileDevice(path string, size int64) (dev *FileDevice, created bool, err error) {
	return openFileDevice(fs.Default, path, size)
}

func openFileDevice(fsys fs.FileSystem, path string, size int64) (*FileDevice, bool, error) {
	f, created, err := openSized(fsys, path, size)
	if err != nil {
		return nil, false, err
	}
	return &FileDevice{f: f, size: size}, created, nil
}

// ReadAt implements io.ReaderAt.
func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

// Size returns the image size in bytes.
func (d *FileDevice) Size() int64 { return d.size }

// Sync commits the file contents to stable storage.
func (d *FileDevice) Sync() error { return d.f.Sync() }

// Close closes the image file.
func (d *FileDevice) Close() error { return d.f.Close() }

// openSized opens path on fsys read-write, creating it with the given size when it is
// missing or empty. An existing non-empty file must already have that size.
func openSized(fsys fs.FileSystem, path string, size int64) (fs.File, bool, error) {
	if size <= 0 {
		return nil, false, fmt.Errorf("blockstore: invalid image size %d", size)
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, false, fmt.Errorf("blockstore: open image: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, fmt.Errorf("blockstore: stat image: %w", err)
	}

	switch st.Size() {
	case 0:
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, false, fmt.Errorf("blockstore: size image: %w", err)
		}
		return f, true, nil
	case size:
		return f, false, nil
	default:
		_ = f.Close()
		return nil, false, fmt.Errorf("%w: %s is %d bytes, want %d", ErrSizeMismatch, path, st.Size(), size)
	}
}
