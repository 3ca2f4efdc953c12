package diskvfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/diskvfs/internal/inode"
)

// FD is an open file or directory descriptor. Descriptors are small integers;
// the lowest free slot is handed out first and reused after Close.
type FD int

type descriptor struct {
	ino    uint32
	name   string
	offset uint64
	// cursor is the entry position of a directory traversal.
	cursor int
}

// Open opens the file or directory at path with offset 0.
func (fs *FS) Open(path []string) (fd FD, err error) {
	start := fs.clock.Now()
	fd = -1
	defer func() {
		fs.metrics.RecordOpen(fs.clock.Since(start), err)
		fs.logger.LogOpen(JoinPath(path), fd, err)
	}()

	if err := fs.checkMounted(); err != nil {
		return -1, err
	}

	in, err := fs.resolver.Resolve(path)
	if err != nil {
		return -1, pathError("open", path, err)
	}

	for i, d := range fs.fds {
		if d != nil {
			continue
		}
		name := "/"
		if len(path) > 0 {
			name = path[len(path)-1]
		}
		fs.fds[i] = &descriptor{ino: in.Index, name: name}
		return FD(i), nil
	}
	return -1, pathError("open", path, fmt.Errorf("%w: %d descriptors open", ErrCapacityExceeded, len(fs.fds)))
}

// Close releases fd.
func (fs *FS) Close(fd FD) (err error) {
	start := fs.clock.Now()
	defer func() {
		fs.metrics.RecordClose(fs.clock.Since(start), err)
		fs.logger.LogClose(fd, err)
	}()

	if _, err := fs.descriptor(fd); err != nil {
		return fdError("close", fd, err)
	}
	fs.fds[fd] = nil
	return nil
}

func (fs *FS) descriptor(fd FD) (*descriptor, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}
	if fd < 0 || int(fd) >= len(fs.fds) || fs.fds[fd] == nil {
		return nil, ErrInvalidDescriptor
	}
	return fs.fds[fd], nil
}

// open resolves fd to its descriptor and current inode.
func (fs *FS) open(fd FD) (*descriptor, *inode.Inode, error) {
	d, err := fs.descriptor(fd)
	if err != nil {
		return nil, nil, err
	}
	in, err := fs.inodes.Read(d.ino)
	if err != nil {
		return nil, nil, err
	}
	return d, in, nil
}

func (fs *FS) isOpen(ino uint32) bool {
	for _, d := range fs.fds {
		if d != nil && d.ino == ino {
			return true
		}
	}
	return false
}

// OpenCount returns the number of open descriptors.
func (fs *FS) OpenCount() int {
	n := 0
	for _, d := range fs.fds {
		if d != nil {
			n++
		}
	}
	return n
}

// Fstat returns the metadata of the object fd refers to.
func (fs *FS) Fstat(fd FD) (_ Stat, err error) {
	defer func() { fs.logger.LogDescriptor("fstat", fd, err) }()

	d, in, err := fs.open(fd)
	if err != nil {
		return Stat{}, fdError("fstat", fd, err)
	}
	return newStat(in, d.name), nil
}

// Seek sets the offset of fd. Offsets past the end are allowed; a following
// write fills the gap with zeros.
func (fs *FS) Seek(fd FD, offset int64) (err error) {
	defer func() { fs.logger.LogDescriptor("seek", fd, err) }()

	d, err := fs.descriptor(fd)
	if err != nil {
		return fdError("seek", fd, err)
	}
	if offset < 0 {
		return fdError("seek", fd, fmt.Errorf("%w: %d", ErrInvalidOffset, offset))
	}
	d.offset = uint64(offset)
	return nil
}

// Tell returns the current offset of fd.
func (fs *FS) Tell(fd FD) (_ int64, err error) {
	defer func() { fs.logger.LogDescriptor("tell", fd, err) }()

	d, err := fs.descriptor(fd)
	if err != nil {
		return 0, fdError("tell", fd, err)
	}
	return int64(d.offset), nil
}

// Read reads up to len(buf) bytes from the offset of fd and advances it.
// At or past the end of the file it returns 0 and a nil error.
func (fs *FS) Read(fd FD, buf []byte) (n int, err error) {
	start := fs.clock.Now()
	defer func() {
		fs.metrics.RecordRead(n, fs.clock.Since(start), err)
	}()

	d, in, err := fs.open(fd)
	if err != nil {
		return 0, fdError("read", fd, err)
	}
	if in.IsDir() {
		return 0, fdError("read", fd, ErrNotAFile)
	}

	got, err := fs.data.ReadAt(in, d.offset, len(buf))
	if err != nil {
		return 0, fdError("read", fd, err)
	}
	n = copy(buf, got)
	d.offset += uint64(n)
	return n, nil
}

// Write writes buf at the offset of fd and advances it. If the disk fills
// up, or the file reaches its maximum size, after some bytes were stored the
// short count is returned with a nil error; if nothing could be stored the
// error is returned.
func (fs *FS) Write(fd FD, buf []byte) (n int, err error) {
	start := fs.clock.Now()
	defer func() {
		fs.metrics.RecordWrite(n, fs.clock.Since(start), err)
	}()

	d, in, err := fs.open(fd)
	if err != nil {
		return 0, fdError("write", fd, err)
	}
	if in.IsDir() {
		return 0, fdError("write", fd, ErrNotAFile)
	}

	n, err = fs.data.WriteAt(in, d.offset, buf)
	d.offset += uint64(n)
	if err != nil {
		if n > 0 && (errors.Is(err, ErrDiskFull) || errors.Is(err, ErrFileTooLarge)) {
			return n, nil
		}
		return n, fdError("write", fd, err)
	}
	return n, nil
}

// StatChild restarts the traversal of the directory fd and returns its first
// entry without advancing. It returns ErrEndOfDirectory for an empty directory.
func (fs *FS) StatChild(fd FD) (_ Stat, err error) {
	defer func() { fs.logger.LogDescriptor("statchild", fd, err) }()

	d, err := fs.descriptor(fd)
	if err != nil {
		return Stat{}, fdError("statchild", fd, err)
	}
	d.cursor = 0
	return fs.statAt(fd, d, "statchild", false)
}

// StatNext returns the entry at the traversal cursor of the directory fd and
// advances the cursor. It returns ErrEndOfDirectory once every entry has been
// visited.
func (fs *FS) StatNext(fd FD) (_ Stat, err error) {
	defer func() { fs.logger.LogDescriptor("statnext", fd, err) }()

	d, err := fs.descriptor(fd)
	if err != nil {
		return Stat{}, fdError("statnext", fd, err)
	}
	return fs.statAt(fd, d, "statnext", true)
}

// statAt materializes the child at the cursor by reading its inode only; no
// descriptor slot is used for it.
func (fs *FS) statAt(fd FD, d *descriptor, op string, advance bool) (Stat, error) {
	dir, err := fs.inodes.Read(d.ino)
	if err != nil {
		return Stat{}, fdError(op, fd, err)
	}
	if !dir.IsDir() {
		return Stat{}, fdError(op, fd, ErrNotADirectory)
	}

	e, err := fs.data.EntryAt(dir, d.cursor)
	if err != nil {
		// ErrEndOfDirectory is returned unwrapped, like io.EOF.
		if errors.Is(err, ErrEndOfDirectory) {
			return Stat{}, ErrEndOfDirectory
		}
		return Stat{}, fdError(op, fd, err)
	}
	st, err := fs.statEntry(e)
	if err != nil {
		return Stat{}, fdError(op, fd, err)
	}
	if advance {
		d.cursor++
	}
	return st, nil
}
