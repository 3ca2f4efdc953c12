// Package layout describes the on-disk geometry of a disk image and encodes the
// control block (block 0).
//
// Image layout, in blocks:
//
//	┌─────────┬──────────────────┬──────────────────┬─────────────────────────┐
//	│ 0       │ free-block map   │ inode table      │ data blocks             │
//	│ control │ MapStart..       │ InodeStart..     │ DataStart..BlockCount-1 │
//	└─────────┴──────────────────┴──────────────────┴─────────────────────────┘
//
// All integers are little-endian.
package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/diskvfs/internal/errs"
)

const (
	// Magic identifies a diskvfs control block (ASCII: "DVFS").
	Magic = 0x53465644

	// DefaultBlockSize is used when no block size is configured.
	DefaultBlockSize = 1024

	// MinBlockSize is the smallest supported block size.
	MinBlockSize = 512

	// MaxBlockSize is the largest supported block size.
	MaxBlockSize = 64 * 1024

	// InodeSize is the size of one persisted inode record.
	InodeSize = 128

	// RootInode is the inode index of the root directory.
	RootInode = 0

	superblockSize = 44
)

// Geometry is the block layout of an image.
type Geometry struct {
	BlockSize   uint32
	BlockCount  uint32
	InodeCount  uint32
	MapStart    uint32
	MapBlocks   uint32
	InodeStart  uint32
	InodeBlocks uint32
	DataStart   uint32
	RootInode   uint32
}

// Compute derives the geometry for blockCount blocks of blockSize bytes.
// If inodeCount is 0 a quarter of the block count is used, rounded up to whole
// inode-table blocks.
func Compute(blockSize, blockCount, inodeCount uint32) (Geometry, error) {
	if blockSize < MinBlockSize || blockSize > MaxBlockSize || blockSize&(blockSize-1) != 0 {
		return Geometry{}, fmt.Errorf("layout: invalid block size %d", blockSize)
	}

	perBlock := blockSize / InodeSize
	if inodeCount == 0 {
		inodeCount = blockCount / 4
	}
	inodeCount = divCeil(max(inodeCount, 1), perBlock) * perBlock

	bitsPerBlock := blockSize * 8
	g := Geometry{
		BlockSize:   blockSize,
		BlockCount:  blockCount,
		InodeCount:  inodeCount,
		MapStart:    1,
		MapBlocks:   divCeil(blockCount, bitsPerBlock),
		InodeBlocks: inodeCount / perBlock,
		RootInode:   RootInode,
	}
	g.InodeStart = g.MapStart + g.MapBlocks
	g.DataStart = g.InodeStart + g.InodeBlocks

	if blockCount == 0 || g.DataStart >= blockCount {
		return Geometry{}, fmt.Errorf("layout: %d blocks cannot hold %d metadata blocks and data", blockCount, g.DataStart)
	}
	return g, nil
}

// InodesPerBlock returns the number of inode records in one table block.
func (g Geometry) InodesPerBlock() uint32 {
	return g.BlockSize / InodeSize
}

// DataBlocks returns the number of blocks available for file and directory data.
func (g Geometry) DataBlocks() uint32 {
	return g.BlockCount - g.DataStart
}

// Superblock is the persisted form of the control block.
type Superblock struct {
	Magic       uint32
	BlockSize   uint32
	BlockCount  uint32
	InodeCount  uint32
	MapStart    uint32
	MapBlocks   uint32
	InodeStart  uint32
	InodeBlocks uint32
	DataStart   uint32
	RootInode   uint32
	Checksum    uint32 // CRC32 of the preceding fields
}

// Encode serializes the geometry into a control block of g.BlockSize bytes.
func Encode(g Geometry) ([]byte, error) {
	sb := Superblock{
		Magic:       Magic,
		BlockSize:   g.BlockSize,
		BlockCount:  g.BlockCount,
		InodeCount:  g.InodeCount,
		MapStart:    g.MapStart,
		MapBlocks:   g.MapBlocks,
		InodeStart:  g.InodeStart,
		InodeBlocks: g.InodeBlocks,
		DataStart:   g.DataStart,
		RootInode:   g.RootInode,
	}

	buf := make([]byte, g.BlockSize)
	if _, err := binary.Encode(buf, binary.LittleEndian, &sb); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(buf[superblockSize-4:], CalculateChecksum(buf[:superblockSize-4]))
	return buf, nil
}

// Decode parses and validates a control block.
func Decode(block []byte) (Geometry, error) {
	if len(block) < superblockSize {
		return Geometry{}, fmt.Errorf("%w: control block too short", errs.ErrCorrupt)
	}

	var sb Superblock
	if _, err := binary.Decode(block, binary.LittleEndian, &sb); err != nil {
		return Geometry{}, err
	}
	if sb.Magic != Magic {
		return Geometry{}, fmt.Errorf("%w: invalid magic number 0x%08x", errs.ErrCorrupt, sb.Magic)
	}
	if actual := CalculateChecksum(block[:superblockSize-4]); actual != sb.Checksum {
		return Geometry{}, &ChecksumMismatchError{Expected: sb.Checksum, Actual: actual}
	}

	g := Geometry{
		BlockSize:   sb.BlockSize,
		BlockCount:  sb.BlockCount,
		InodeCount:  sb.InodeCount,
		MapStart:    sb.MapStart,
		MapBlocks:   sb.MapBlocks,
		InodeStart:  sb.InodeStart,
		InodeBlocks: sb.InodeBlocks,
		DataStart:   sb.DataStart,
		RootInode:   sb.RootInode,
	}

	// The stored layout must be the one Compute derives, otherwise the
	// allocator and inode table would disagree with the image.
	want, err := Compute(sb.BlockSize, sb.BlockCount, sb.InodeCount)
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", errs.ErrCorrupt, err)
	}
	if want != g {
		return Geometry{}, fmt.Errorf("%w: inconsistent geometry", errs.ErrCorrupt)
	}
	return g, nil
}

func divCeil(a, b uint32) uint32 {
	return (a + b - 1) / b
}
