// Package errs holds the sentinel errors shared by every storage layer so that
// errors.Is works from the block allocator up to the public API.
package errs

import "errors"

var (
	// ErrNotFound is returned when a path, directory entry or inode does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a directory entry with the same name exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotADirectory is returned when a directory was required.
	ErrNotADirectory = errors.New("not a directory")

	// ErrNotAFile is returned when a regular file was required.
	ErrNotAFile = errors.New("not a file")

	// ErrDirectoryNotEmpty is returned when removing a directory that still has entries.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrDiskFull is returned when the allocator has no free block left.
	ErrDiskFull = errors.New("disk full")

	// ErrInvalidDescriptor is returned for descriptors that are not open.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrEndOfDirectory is returned when a directory traversal is exhausted.
	ErrEndOfDirectory = errors.New("end of directory")

	// ErrCapacityExceeded is returned when the inode table or descriptor table is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrFileTooLarge is returned when a write would exceed the addressable blocks of an inode.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidPath is returned for malformed path components or an empty path where a
	// name is required.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidOffset is returned for negative seek offsets.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrBusy is returned when an inode or the image still has open descriptors.
	ErrBusy = errors.New("resource busy")

	// ErrOutOfRange is returned for block or inode indices beyond the image geometry.
	ErrOutOfRange = errors.New("index out of range")

	// ErrCorrupt is returned when on-disk structures fail validation.
	ErrCorrupt = errors.New("corrupt file system")
)
