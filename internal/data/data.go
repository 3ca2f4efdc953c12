// Package data reads and writes the byte contents of inodes and keeps directory
// contents as packed arrays of fixed-size entries.
package data

import (
	"fmt"

	"github.com/hupe1980/diskvfs/internal/alloc"
	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/inode"
)

// BlockIO is the block access the layer needs.
type BlockIO interface {
	Get(i uint32) ([]byte, error)
	Put(i uint32, buf []byte) error
}

// Layer maps byte ranges of inodes onto data blocks.
type Layer struct {
	io        BlockIO
	inodes    *inode.Table
	alloc     *alloc.Allocator
	blockSize uint64
}

// New returns a data layer.
func New(io BlockIO, inodes *inode.Table, a *alloc.Allocator, blockSize uint32) *Layer {
	return &Layer{io: io, inodes: inodes, alloc: a, blockSize: uint64(blockSize)}
}

// MaxFileSize returns the largest size an inode can reach.
func (l *Layer) MaxFileSize() uint64 {
	return uint64(inode.MaxBlocks(uint32(l.blockSize))) * l.blockSize
}

func (l *Layer) blocksFor(size uint64) int {
	return int((size + l.blockSize - 1) / l.blockSize)
}

// ReadAt returns up to n bytes of in starting at off. Reads are clamped to
// the inode size; an offset at or past the end yields no bytes.
func (l *Layer) ReadAt(in *inode.Inode, off uint64, n int) ([]byte, error) {
	if n <= 0 || off >= in.Size {
		return nil, nil
	}
	end := min(off+uint64(n), in.Size)

	out := make([]byte, 0, end-off)
	for pos := off; pos < end; {
		lb := pos / l.blockSize
		if lb >= uint64(len(in.Blocks)) {
			return nil, fmt.Errorf("%w: inode %d size %d exceeds its %d blocks", errs.ErrCorrupt, in.Index, in.Size, len(in.Blocks))
		}

		buf, err := l.io.Get(in.Blocks[lb])
		if err != nil {
			return nil, fmt.Errorf("data: read inode %d block %d: %w", in.Index, lb, err)
		}

		start := pos - lb*l.blockSize
		stop := min(l.blockSize, end-lb*l.blockSize)
		out = append(out, buf[start:stop]...)
		pos = lb*l.blockSize + stop
	}
	return out, nil
}

// WriteAt writes p into in at off, growing the block list as needed. Blocks
// between the old end of the inode and off are zero filled.
//
// When the disk fills up or the inode reaches its maximum size, the bytes
// written so far are kept, the inode is persisted and the count is returned
// together with errs.ErrDiskFull or errs.ErrFileTooLarge.
func (l *Layer) WriteAt(in *inode.Inode, off uint64, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var limitErr error
	if maxSize := l.MaxFileSize(); off+uint64(len(p)) > maxSize {
		if off >= maxSize {
			return 0, fmt.Errorf("%w: offset %d", errs.ErrFileTooLarge, off)
		}
		p = p[:maxSize-off]
		limitErr = errs.ErrFileTooLarge
	}

	oldSize := in.Size
	end := off + uint64(len(p))

	var (
		written uint64
		werr    error
	)
	for lb := min(oldSize, off) / l.blockSize; lb*l.blockSize < end; lb++ {
		blockStart := lb * l.blockSize
		blockEnd := blockStart + l.blockSize

		var buf []byte
		if lb >= uint64(len(in.Blocks)) {
			if err := l.grow(in); err != nil {
				werr = err
				break
			}
			buf = make([]byte, l.blockSize)
		} else if off <= blockStart && end >= blockEnd {
			buf = make([]byte, l.blockSize)
		} else {
			existing, err := l.io.Get(in.Blocks[lb])
			if err != nil {
				werr = fmt.Errorf("data: read inode %d block %d: %w", in.Index, lb, err)
				break
			}
			buf = existing
			// Bytes past the old end may be stale from an earlier shrink.
			if oldSize < blockEnd {
				clear(buf[max(oldSize, blockStart)-blockStart:])
			}
		}

		dataStart, dataEnd := max(off, blockStart), min(end, blockEnd)
		if dataStart < dataEnd {
			copy(buf[dataStart-blockStart:], p[dataStart-off:dataEnd-off])
		}

		if err := l.io.Put(in.Blocks[lb], buf); err != nil {
			werr = fmt.Errorf("data: write inode %d block %d: %w", in.Index, lb, err)
			break
		}
		if dataStart < dataEnd {
			written = dataEnd - off
		}
	}

	if written > 0 {
		in.Size = max(oldSize, off+written)
		in.Modified = l.inodes.Now()
	}

	// Blocks allocated for a write that did not reach them are returned.
	released := l.trim(in)
	if err := l.inodes.Write(in); err != nil {
		return int(written), err
	}
	if err := l.release(in.Index, released); err != nil {
		return int(written), err
	}

	if werr != nil {
		return int(written), werr
	}
	return int(written), limitErr
}

// Truncate shrinks in to size bytes and frees the blocks past the new end.
// Sizes at or above the current size are a no-op.
func (l *Layer) Truncate(in *inode.Inode, size uint64) error {
	if size >= in.Size {
		return nil
	}
	in.Size = size
	in.Modified = l.inodes.Now()

	released := l.trim(in)
	// The inode must stop referencing blocks before they become reusable.
	if err := l.inodes.Write(in); err != nil {
		return err
	}
	return l.release(in.Index, released)
}

// grow appends a freshly allocated block to in, allocating the indirect
// block first when the list outgrows the direct pointers.
func (l *Layer) grow(in *inode.Inode) error {
	if len(in.Blocks) >= inode.MaxBlocks(uint32(l.blockSize)) {
		return errs.ErrFileTooLarge
	}
	if len(in.Blocks) == inode.DirectBlocks && in.Indirect == 0 {
		ind, err := l.alloc.Alloc()
		if err != nil {
			return err
		}
		in.Indirect = ind
	}

	b, err := l.alloc.Alloc()
	if err != nil {
		return err
	}
	in.Blocks = append(in.Blocks, b)
	return nil
}

// trim cuts the block list down to what the size covers and returns the
// blocks that are no longer referenced.
func (l *Layer) trim(in *inode.Inode) []uint32 {
	keep := l.blocksFor(in.Size)

	var released []uint32
	if keep < len(in.Blocks) {
		released = append(released, in.Blocks[keep:]...)
		in.Blocks = in.Blocks[:keep]
	}
	if keep <= inode.DirectBlocks && in.Indirect != 0 {
		released = append(released, in.Indirect)
		in.Indirect = 0
	}
	return released
}

func (l *Layer) release(ino uint32, blocks []uint32) error {
	for _, b := range blocks {
		if err := l.alloc.Free(b); err != nil {
			return fmt.Errorf("data: free block %d of inode %d: %w", b, ino, err)
		}
	}
	return nil
}
