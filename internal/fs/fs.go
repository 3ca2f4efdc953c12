package fs

import (
	"io"
	"os"
)

// File is an open image file.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	// Fd returns the file descriptor, used to map the file.
	Fd() uintptr
}

// FileSystem opens image files.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm) //nolint:gosec // G304: image path is user supplied
}

// Default is the default local file system.
var Default FileSystem = LocalFS{}
