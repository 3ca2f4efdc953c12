// Package alloc manages the persisted free-block map.
//
// The map stores one bit per block of the image (1 = allocated) in the blocks
// starting at Geometry.MapStart. Bits are packed little-endian into 64-bit words,
// so bit i of the image lives in byte i/8, bit i%8 of the map. Bits past the
// last block of the image are kept set and are never handed out.
package alloc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/layout"
)

var (
	// ErrReserved is returned when freeing a metadata block.
	ErrReserved = errors.New("alloc: block is reserved")

	// ErrAlreadyFree is returned when freeing a block that is not allocated.
	ErrAlreadyFree = errors.New("alloc: block is already free")
)

// BlockIO is the block access the allocator needs.
type BlockIO interface {
	Get(i uint32) ([]byte, error)
	Put(i uint32, buf []byte) error
}

// Allocator hands out data blocks first-fit by index.
type Allocator struct {
	io  BlockIO
	geo layout.Geometry
}

// New returns an allocator for the map described by geo.
func New(io BlockIO, geo layout.Geometry) *Allocator {
	return &Allocator{io: io, geo: geo}
}

func (a *Allocator) bitsPerBlock() uint32 {
	return a.geo.BlockSize * 8
}

// Format writes the initial map: every block before DataStart and every
// padding bit beyond BlockCount is marked allocated, the rest is free.
func (a *Allocator) Format() error {
	per := a.bitsPerBlock()
	for mb := uint32(0); mb < a.geo.MapBlocks; mb++ {
		bs := bitset.New(uint(per))
		base := mb * per
		for bit := uint32(0); bit < per; bit++ {
			block := base + bit
			if block < a.geo.DataStart || block >= a.geo.BlockCount {
				bs.Set(uint(bit))
			}
		}
		if err := a.io.Put(a.geo.MapStart+mb, encodeWords(bs.Words(), a.geo.BlockSize)); err != nil {
			return fmt.Errorf("alloc: format map block %d: %w", mb, err)
		}
	}
	return nil
}

// Alloc marks the lowest-indexed free block allocated and returns it.
// It returns errs.ErrDiskFull when every block is in use.
func (a *Allocator) Alloc() (uint32, error) {
	per := a.bitsPerBlock()
	for mb := uint32(0); mb < a.geo.MapBlocks; mb++ {
		bs, err := a.load(mb)
		if err != nil {
			return 0, err
		}

		bit, ok := bs.NextClear(0)
		if !ok || bit >= uint(per) {
			continue
		}
		block := mb*per + uint32(bit)
		if block >= a.geo.BlockCount {
			// Padding bits are set on format; a clear one here means the map is damaged.
			return 0, fmt.Errorf("%w: free bit %d beyond image end", errs.ErrCorrupt, block)
		}

		bs.Set(bit)
		if err := a.store(mb, bs); err != nil {
			return 0, err
		}
		return block, nil
	}
	return 0, errs.ErrDiskFull
}

// Free marks block b free.
func (a *Allocator) Free(b uint32) error {
	if b >= a.geo.BlockCount {
		return fmt.Errorf("%w: block %d", errs.ErrOutOfRange, b)
	}
	if b < a.geo.DataStart {
		return fmt.Errorf("%w: %d", ErrReserved, b)
	}

	mb, bit := b/a.bitsPerBlock(), uint(b%a.bitsPerBlock())
	bs, err := a.load(mb)
	if err != nil {
		return err
	}
	if !bs.Test(bit) {
		return fmt.Errorf("%w: %d", ErrAlreadyFree, b)
	}
	bs.Clear(bit)
	return a.store(mb, bs)
}

// IsAllocated reports whether block b is marked allocated.
func (a *Allocator) IsAllocated(b uint32) (bool, error) {
	if b >= a.geo.BlockCount {
		return false, fmt.Errorf("%w: block %d", errs.ErrOutOfRange, b)
	}
	bs, err := a.load(b / a.bitsPerBlock())
	if err != nil {
		return false, err
	}
	return bs.Test(uint(b % a.bitsPerBlock())), nil
}

// FreeCount returns the number of free blocks.
func (a *Allocator) FreeCount() (uint32, error) {
	var free uint32
	for mb := uint32(0); mb < a.geo.MapBlocks; mb++ {
		bs, err := a.load(mb)
		if err != nil {
			return 0, err
		}
		free += a.bitsPerBlock() - uint32(bs.Count())
	}
	return free, nil
}

// Bitmap returns the allocation state of every block in the image.
func (a *Allocator) Bitmap() (*bitset.BitSet, error) {
	out := bitset.New(uint(a.geo.BlockCount))
	per := a.bitsPerBlock()
	for mb := uint32(0); mb < a.geo.MapBlocks; mb++ {
		bs, err := a.load(mb)
		if err != nil {
			return nil, err
		}
		for bit, ok := bs.NextSet(0); ok; bit, ok = bs.NextSet(bit + 1) {
			block := mb*per + uint32(bit)
			if block >= a.geo.BlockCount {
				break
			}
			out.Set(uint(block))
		}
	}
	return out, nil
}

func (a *Allocator) load(mb uint32) (*bitset.BitSet, error) {
	buf, err := a.io.Get(a.geo.MapStart + mb)
	if err != nil {
		return nil, fmt.Errorf("alloc: read map block %d: %w", mb, err)
	}
	return bitset.From(decodeWords(buf)), nil
}

func (a *Allocator) store(mb uint32, bs *bitset.BitSet) error {
	if err := a.io.Put(a.geo.MapStart+mb, encodeWords(bs.Words(), a.geo.BlockSize)); err != nil {
		return fmt.Errorf("alloc: write map block %d: %w", mb, err)
	}
	return nil
}

func decodeWords(buf []byte) []uint64 {
	words := make([]uint64, len(buf)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return words
}

func encodeWords(words []uint64, blockSize uint32) []byte {
	buf := make([]byte, blockSize)
	for i, w := range words {
		if (i+1)*8 > len(buf) {
			break
		}
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return buf
}
