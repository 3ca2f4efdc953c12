package blockstore

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/fs"
)

var (
	// ErrOutOfRange is returned for block indices beyond the image.
	ErrOutOfRange = errs.ErrOutOfRange

	// ErrShortWrite is returned when a block write is incomplete.
	ErrShortWrite = io.ErrShortWrite

	// ErrBlockTooLarge is returned when Put is given more than one block of data.
	ErrBlockTooLarge = errors.New("block data exceeds block size")
)

// Options configures Open.
type Options struct {
	// BlockSize is the block size in bytes. Defaults to 1024.
	BlockSize int
	// Device selects the device implementation. Defaults to DeviceFile.
	Device DeviceKind
	// FS opens the image file for the file and mmap devices. Defaults to fs.Default.
	FS fs.FileSystem
}

// DefaultOptions are the options used by Open before applying option functions.
var DefaultOptions = Options{
	BlockSize: 1024,
	Device:    DeviceFile,
	FS:        fs.Default,
}

// Stats is a snapshot of the block I/O counters.
type Stats struct {
	Reads     uint64
	Writes    uint64
	BlockSize int
}

// BytesRead returns the number of bytes read through Get.
func (s Stats) BytesRead() uint64 { return s.Reads * uint64(s.BlockSize) }

// BytesWritten returns the number of bytes written through Put.
func (s Stats) BytesWritten() uint64 { return s.Writes * uint64(s.BlockSize) }

// Store reads and writes fixed-size blocks on a Device.
type Store struct {
	dev       Device
	blockSize int
	count     uint32
	created   bool

	reads  atomic.Uint64
	writes atomic.Uint64
}

// Open opens or creates the image at path holding blockCount blocks.
// A missing or empty file is created and sized; Created reports this case.
func Open(path string, blockCount uint32, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BlockSize <= 0 {
		return nil, fmt.Errorf("blockstore: invalid block size %d", opts.BlockSize)
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	size := int64(blockCount) * int64(opts.BlockSize)

	var (
		dev     Device
		created bool
		err     error
	)
	switch opts.Device {
	case DeviceFile:
		dev, created, err = openFileDevice(opts.FS, path, size)
	case DeviceMmap:
		dev, created, err = openMmap(opts.FS, path, size)
	case DeviceMemory:
		dev, created = NewMemoryDevice(size), true
	default:
		err = fmt.Errorf("blockstore: unknown device kind %v", opts.Device)
	}
	if err != nil {
		return nil, err
	}

	s, err := New(dev, opts.BlockSize)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	s.created = created
	return s, nil
}

// New wraps an existing device. The device size must be a multiple of blockSize.
func New(dev Device, blockSize int) (*Store, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("blockstore: invalid block size %d", blockSize)
	}
	size := dev.Size()
	if size <= 0 || size%int64(blockSize) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte blocks", ErrSizeMismatch, size, blockSize)
	}
	return &Store{
		dev:       dev,
		blockSize: blockSize,
		count:     uint32(size / int64(blockSize)),
	}, nil
}

// Get reads block i into a new buffer of BlockSize bytes.
func (s *Store) Get(i uint32) ([]byte, error) {
	if i >= s.count {
		return nil, fmt.Errorf("%w: block %d of %d", ErrOutOfRange, i, s.count)
	}

	s.reads.Add(1)
	buf := make([]byte, s.blockSize)
	n, err := s.dev.ReadAt(buf, int64(i)*int64(s.blockSize))
	if n == len(buf) {
		// io.ReaderAt may report io.EOF together with a full read of the last block.
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("blockstore: read block %d: %w", i, err)
}

// Put writes buf to block i. Shorter buffers are zero padded.
func (s *Store) Put(i uint32, buf []byte) error {
	if i >= s.count {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, i, s.count)
	}
	if len(buf) > s.blockSize {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, len(buf), s.blockSize)
	}
	if len(buf) < s.blockSize {
		padded := make([]byte, s.blockSize)
		copy(padded, buf)
		buf = padded
	}

	s.writes.Add(1)
	n, err := s.dev.WriteAt(buf, int64(i)*int64(s.blockSize))
	if err != nil {
		return fmt.Errorf("blockstore: write block %d: %w", i, err)
	}
	if n != len(buf) {
		return fmt.Errorf("blockstore: write block %d: %w", i, ErrShortWrite)
	}
	return nil
}

// BlockSize returns the block size in bytes.
func (s *Store) BlockSize() int { return s.blockSize }

// Count returns the number of blocks.
func (s *Store) Count() uint32 { return s.count }

// Created reports whether Open created (or sized an empty) image.
func (s *Store) Created() bool { return s.created }

// Device returns the underlying device.
func (s *Store) Device() Device { return s.dev }

// Stats returns the current block read and write totals.
func (s *Store) Stats() Stats {
	return Stats{
		Reads:     s.reads.Load(),
		Writes:    s.writes.Load(),
		BlockSize: s.blockSize,
	}
}

// Sync flushes the device.
func (s *Store) Sync() error { return s.dev.Sync() }

// Close closes the device.
func (s *Store) Close() error { return s.dev.Close() }
