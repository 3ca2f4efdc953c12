package inode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/layout"
)

// BlockIO is the block access the table needs.
type BlockIO interface {
	Get(i uint32) ([]byte, error)
	Put(i uint32, buf []byte) error
}

// BlockFreer releases data blocks.
type BlockFreer interface {
	Free(b uint32) error
}

// Table reads and writes inode records in the table blocks of an image.
type Table struct {
	io    BlockIO
	geo   layout.Geometry
	clock clock.Clock
}

// New returns a table over the inode region of geo. A nil clock uses the wall clock.
func New(io BlockIO, geo layout.Geometry, clk clock.Clock) *Table {
	if clk == nil {
		clk = clock.New()
	}
	return &Table{io: io, geo: geo, clock: clk}
}

// Capacity returns the number of inode slots.
func (t *Table) Capacity() uint32 { return t.geo.InodeCount }

// Now returns the current time of the table's clock.
func (t *Table) Now() time.Time { return t.clock.Now() }

// Format marks every slot unused.
func (t *Table) Format() error {
	zero := make([]byte, t.geo.BlockSize)
	for b := uint32(0); b < t.geo.InodeBlocks; b++ {
		if err := t.io.Put(t.geo.InodeStart+b, zero); err != nil {
			return fmt.Errorf("inode: format table block %d: %w", b, err)
		}
	}
	return nil
}

// locate returns the table block and byte offset of slot i.
func (t *Table) locate(i uint32) (uint32, int) {
	per := t.geo.InodesPerBlock()
	return t.geo.InodeStart + i/per, int(i%per) * layout.InodeSize
}

// Alloc claims the lowest unused slot for a new, empty inode of type typ.
func (t *Table) Alloc(typ Type) (*Inode, error) {
	per := t.geo.InodesPerBlock()
	for b := uint32(0); b < t.geo.InodeBlocks; b++ {
		buf, err := t.io.Get(t.geo.InodeStart + b)
		if err != nil {
			return nil, fmt.Errorf("inode: read table block %d: %w", b, err)
		}

		for slot := uint32(0); slot < per; slot++ {
			off := int(slot) * layout.InodeSize
			if buf[off]&flagInUse != 0 {
				continue
			}

			now := t.clock.Now()
			in := &Inode{
				Index:    b*per + slot,
				Type:     typ,
				Created:  now,
				Modified: now,
			}
			copy(buf[off:off+layout.InodeSize], encodeRecord(in))
			if err := t.io.Put(t.geo.InodeStart+b, buf); err != nil {
				return nil, fmt.Errorf("inode: write table block %d: %w", b, err)
			}
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: all %d inodes in use", errs.ErrCapacityExceeded, t.geo.InodeCount)
}

// Read loads inode i, including its indirect block pointers.
func (t *Table) Read(i uint32) (*Inode, error) {
	if i >= t.geo.InodeCount {
		return nil, fmt.Errorf("%w: inode %d", errs.ErrOutOfRange, i)
	}

	blk, off := t.locate(i)
	buf, err := t.io.Get(blk)
	if err != nil {
		return nil, fmt.Errorf("inode: read %d: %w", i, err)
	}
	r, err := decodeRecord(buf[off : off+layout.InodeSize])
	if err != nil {
		return nil, err
	}
	if r.Flags&flagInUse == 0 {
		return nil, fmt.Errorf("%w: inode %d", errs.ErrNotFound, i)
	}

	n := int(r.NBlocks)
	if n > MaxBlocks(t.geo.BlockSize) {
		return nil, fmt.Errorf("%w: inode %d lists %d blocks", errs.ErrCorrupt, i, n)
	}

	in := &Inode{
		Index:    i,
		Type:     Type(r.Type),
		Size:     r.Size,
		Created:  time.Unix(0, r.Created),
		Modified: time.Unix(0, r.Modified),
		Blocks:   make([]uint32, 0, n),
		Indirect: r.Indirect,
	}
	in.Blocks = append(in.Blocks, r.Direct[:min(n, DirectBlocks)]...)

	if n > DirectBlocks {
		if r.Indirect == 0 {
			return nil, fmt.Errorf("%w: inode %d has no indirect block", errs.ErrCorrupt, i)
		}
		ind, err := t.io.Get(r.Indirect)
		if err != nil {
			return nil, fmt.Errorf("inode: read indirect block of %d: %w", i, err)
		}
		for k := 0; k < n-DirectBlocks; k++ {
			in.Blocks = append(in.Blocks, binary.LittleEndian.Uint32(ind[k*4:]))
		}
	}
	return in, nil
}

// Write persists in. When the block list spills past the direct pointers the
// indirect block is written before the record that references it.
func (t *Table) Write(in *Inode) error {
	if in.Index >= t.geo.InodeCount {
		return fmt.Errorf("%w: inode %d", errs.ErrOutOfRange, in.Index)
	}
	if len(in.Blocks) > MaxBlocks(t.geo.BlockSize) {
		return fmt.Errorf("%w: inode %d", errs.ErrFileTooLarge, in.Index)
	}

	if len(in.Blocks) > DirectBlocks {
		if in.Indirect == 0 {
			return fmt.Errorf("inode: %d needs an indirect block", in.Index)
		}
		ind := make([]byte, t.geo.BlockSize)
		for k, b := range in.Blocks[DirectBlocks:] {
			binary.LittleEndian.PutUint32(ind[k*4:], b)
		}
		if err := t.io.Put(in.Indirect, ind); err != nil {
			return fmt.Errorf("inode: write indirect block of %d: %w", in.Index, err)
		}
	}

	return t.writeRecord(in.Index, encodeRecord(in))
}

func (t *Table) writeRecord(i uint32, rec []byte) error {
	blk, off := t.locate(i)
	buf, err := t.io.Get(blk)
	if err != nil {
		return fmt.Errorf("inode: read %d: %w", i, err)
	}
	copy(buf[off:off+layout.InodeSize], rec)
	if err := t.io.Put(blk, buf); err != nil {
		return fmt.Errorf("inode: write %d: %w", i, err)
	}
	return nil
}

// Free releases inode i and every block it owns.
// Directories must be empty.
func (t *Table) Free(i uint32, freer BlockFreer) error {
	in, err := t.Read(i)
	if err != nil {
		return err
	}
	if in.IsDir() && in.Size > 0 {
		return fmt.Errorf("%w: inode %d", errs.ErrDirectoryNotEmpty, i)
	}

	for _, b := range in.Blocks {
		if err := freer.Free(b); err != nil {
			return fmt.Errorf("inode: free block %d of %d: %w", b, i, err)
		}
	}
	if in.Indirect != 0 {
		if err := freer.Free(in.Indirect); err != nil {
			return fmt.Errorf("inode: free indirect block of %d: %w", i, err)
		}
	}

	return t.writeRecord(i, make([]byte, layout.InodeSize))
}

// InUse reports whether slot i holds an inode.
func (t *Table) InUse(i uint32) (bool, error) {
	_, err := t.Read(i)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errs.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Used returns the indices of all slots in use, in ascending order.
func (t *Table) Used() ([]uint32, error) {
	per := t.geo.InodesPerBlock()
	var used []uint32
	for b := uint32(0); b < t.geo.InodeBlocks; b++ {
		buf, err := t.io.Get(t.geo.InodeStart + b)
		if err != nil {
			return nil, fmt.Errorf("inode: read table block %d: %w", b, err)
		}
		for slot := uint32(0); slot < per; slot++ {
			if buf[int(slot)*layout.InodeSize]&flagInUse != 0 {
				used = append(used, b*per+slot)
			}
		}
	}
	return used, nil
}
