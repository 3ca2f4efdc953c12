package diskvfs

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// File adapts a descriptor to the io interfaces. Read returns io.EOF at the
// end of the file and Write returns io.ErrShortWrite when the disk fills up.
// Once closed, a File never touches its descriptor slot again, even after
// the slot is handed out to another Open.
type File struct {
	fs     *FS
	fd     FD
	path   []string
	closed atomic.Bool
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// OpenFile opens path and wraps the descriptor in a File.
func (fs *FS) OpenFile(path []string) (*File, error) {
	fd, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{fs: fs, fd: fd, path: path}, nil
}

// FD returns the underlying descriptor.
func (f *File) FD() FD { return f.fd }

// Name returns the slash-separated path the file was opened with.
func (f *File) Name() string { return JoinPath(f.path) }

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if f.closed.Load() {
		return 0, fdError("read", f.fd, ErrInvalidDescriptor)
	}
	n, err := f.fs.Read(f.fd, p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	if f.closed.Load() {
		return 0, fdError("write", f.fd, ErrInvalidDescriptor)
	}
	n, err := f.fs.Write(f.fd, p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed.Load() {
		return 0, fdError("seek", f.fd, ErrInvalidDescriptor)
	}
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		cur, err := f.fs.Tell(f.fd)
		if err != nil {
			return 0, err
		}
		base = cur
	case io.SeekEnd:
		st, err := f.fs.Fstat(f.fd)
		if err != nil {
			return 0, err
		}
		base = int64(st.Size)
	default:
		return 0, fmt.Errorf("%w: whence %d", ErrInvalidOffset, whence)
	}

	abs := base + offset
	if err := f.fs.Seek(f.fd, abs); err != nil {
		return 0, err
	}
	return abs, nil
}

// Stat returns the metadata of the open file.
func (f *File) Stat() (Stat, error) {
	if f.closed.Load() {
		return Stat{}, fdError("fstat", f.fd, ErrInvalidDescriptor)
	}
	return f.fs.Fstat(f.fd)
}

// Close implements io.Closer. Closing twice returns ErrInvalidDescriptor.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return fdError("close", f.fd, ErrInvalidDescriptor)
	}
	return f.fs.Close(f.fd)
}

// ReadFile returns the contents of the file at path.
func (fs *FS) ReadFile(path []string) ([]byte, error) {
	f, err := fs.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// WriteFile creates the file at path if needed and writes data at offset 0.
// Bytes of an existing file past len(data) are kept.
func (fs *FS) WriteFile(path []string, data []byte) error {
	if err := fs.Creat(path, false); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}

	f, err := fs.OpenFile(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
