// Package inode persists the fixed-size inode table.
package inode

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/layout"
)

// Type is the kind of object an inode describes.
type Type uint8

const (
	// TypeFile is a regular file.
	TypeFile Type = 1
	// TypeDirectory is a directory.
	TypeDirectory Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// DirectBlocks is the number of block pointers stored in the inode record.
const DirectBlocks = 12

// MaxBlocks returns the largest block list an inode can address with the
// given block size: the direct pointers plus one indirect block of pointers.
func MaxBlocks(blockSize uint32) int {
	return DirectBlocks + int(blockSize/4)
}

// Inode is the in-memory form of a table record.
type Inode struct {
	Index    uint32
	Type     Type
	Size     uint64
	Created  time.Time
	Modified time.Time

	// Blocks lists the data blocks in logical order.
	Blocks []uint32

	// Indirect is the block holding Blocks[DirectBlocks:], or 0.
	Indirect uint32
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.Type == TypeDirectory }

const flagInUse = 1 << 0

// record is the persisted layout of one inode (layout.InodeSize bytes).
type record struct {
	Flags    uint8
	Type     uint8
	_        [2]byte
	NBlocks  uint32
	Size     uint64
	Created  int64
	Modified int64
	Direct   [DirectBlocks]uint32
	Indirect uint32
	_        [44]byte
}

func encodeRecord(in *Inode) []byte {
	r := record{
		Flags:    flagInUse,
		Type:     uint8(in.Type),
		NBlocks:  uint32(len(in.Blocks)),
		Size:     in.Size,
		Created:  in.Created.UnixNano(),
		Modified: in.Modified.UnixNano(),
		Indirect: in.Indirect,
	}
	copy(r.Direct[:], in.Blocks)

	buf := make([]byte, layout.InodeSize)
	// record is fixed-size and buf is exactly its length.
	_, _ = binary.Encode(buf, binary.LittleEndian, &r)
	return buf
}

func decodeRecord(buf []byte) (record, error) {
	var r record
	if _, err := binary.Decode(buf, binary.LittleEndian, &r); err != nil {
		return record{}, fmt.Errorf("%w: inode record: %v", errs.ErrCorrupt, err)
	}
	return r, nil
}
