package diskvfs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/diskvfs/internal/alloc"
	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/layout"
)

// Errors returned by FS operations. They are shared with the storage layers,
// so errors.Is matches them regardless of which layer produced the error.
var (
	ErrNotFound          = errs.ErrNotFound
	ErrAlreadyExists     = errs.ErrAlreadyExists
	ErrNotADirectory     = errs.ErrNotADirectory
	ErrNotAFile          = errs.ErrNotAFile
	ErrDirectoryNotEmpty = errs.ErrDirectoryNotEmpty
	ErrDiskFull          = errs.ErrDiskFull
	ErrInvalidDescriptor = errs.ErrInvalidDescriptor
	ErrEndOfDirectory    = errs.ErrEndOfDirectory
	ErrCapacityExceeded  = errs.ErrCapacityExceeded
	ErrFileTooLarge      = errs.ErrFileTooLarge
	ErrInvalidPath       = errs.ErrInvalidPath
	ErrInvalidOffset     = errs.ErrInvalidOffset
	ErrBusy              = errs.ErrBusy
	ErrCorrupt           = errs.ErrCorrupt
	ErrOutOfRange        = errs.ErrOutOfRange

	// ErrReserved is returned when a metadata block would be freed.
	ErrReserved = alloc.ErrReserved

	// ErrUnmounted is returned by operations on an FS after Unmount.
	ErrUnmounted = errors.New("file system is unmounted")

	// ErrBlockSizeMismatch is returned by Init when an existing image was
	// formatted with a different block size than requested.
	ErrBlockSizeMismatch = errors.New("block size mismatch")
)

// PathError records an error and the operation and path that caused it.
//
// The original underlying error can be accessed via errors.Unwrap.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// FDError records an error and the operation and descriptor that caused it.
type FDError struct {
	Op  string
	FD  FD
	Err error
}

func (e *FDError) Error() string {
	return fmt.Sprintf("%s fd %d: %v", e.Op, int(e.FD), e.Err)
}

func (e *FDError) Unwrap() error { return e.Err }

// IsChecksumMismatch reports whether err was caused by a control block whose
// checksum does not match its contents.
func IsChecksumMismatch(err error) bool {
	return layout.IsChecksumMismatch(err)
}

func pathError(op string, path []string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: JoinPath(path), Err: err}
}

func fdError(op string, fd FD, err error) error {
	if err == nil {
		return nil
	}
	return &FDError{Op: op, FD: fd, Err: err}
}

// JoinPath renders path components as an absolute slash-separated path.
func JoinPath(path []string) string {
	return "/" + strings.Join(path, "/")
}

// SplitPath splits a slash-separated path into components. Empty components
// are dropped, so "/", "" and "//" all name the root.
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
