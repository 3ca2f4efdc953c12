package diskvfs

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/diskvfs/internal/data"
	"github.com/hupe1980/diskvfs/internal/inode"
)

// CheckReport lists the inconsistencies found by Check.
type CheckReport struct {
	// Files and Directories count the reachable objects, root included.
	Files       int
	Directories int

	// ReferencedFree lists blocks used by an inode but marked free.
	ReferencedFree []uint32
	// DoubleReferenced lists blocks referenced more than once.
	DoubleReferenced []uint32
	// Leaked lists data blocks marked allocated but referenced by no inode.
	Leaked []uint32
	// InvalidBlocks lists block pointers outside the data region.
	InvalidBlocks []uint32
	// Dangling lists directory entries whose inode is not in use.
	Dangling []string
	// Unreachable lists in-use inodes no directory entry leads to.
	Unreachable []uint32
	// Relinked lists inodes reached through more than one entry.
	Relinked []uint32
	// SizeMismatch lists inodes whose size does not match their block count.
	SizeMismatch []uint32
}

// OK reports whether no problem was found.
func (r *CheckReport) OK() bool {
	return r.Err() == nil
}

// Err returns every problem as a single error, or nil.
func (r *CheckReport) Err() error {
	var result *multierror.Error
	for _, b := range r.ReferencedFree {
		result = multierror.Append(result, fmt.Errorf("%w: block %d is referenced but free", ErrCorrupt, b))
	}
	for _, b := range r.DoubleReferenced {
		result = multierror.Append(result, fmt.Errorf("%w: block %d is referenced twice", ErrCorrupt, b))
	}
	for _, b := range r.Leaked {
		result = multierror.Append(result, fmt.Errorf("%w: block %d is allocated but unreferenced", ErrCorrupt, b))
	}
	for _, b := range r.InvalidBlocks {
		result = multierror.Append(result, fmt.Errorf("%w: block pointer %d outside the data region", ErrCorrupt, b))
	}
	for _, p := range r.Dangling {
		result = multierror.Append(result, fmt.Errorf("%w: entry %s points to an unused inode", ErrCorrupt, p))
	}
	for _, i := range r.Unreachable {
		result = multierror.Append(result, fmt.Errorf("%w: inode %d is unreachable", ErrCorrupt, i))
	}
	for _, i := range r.Relinked {
		result = multierror.Append(result, fmt.Errorf("%w: inode %d has more than one entry", ErrCorrupt, i))
	}
	for _, i := range r.SizeMismatch {
		result = multierror.Append(result, fmt.Errorf("%w: inode %d size does not match its blocks", ErrCorrupt, i))
	}
	return result.ErrorOrNil()
}

// Check walks the tree from the root and cross-checks it against the
// free-block map and the inode table. It only reads the image.
func (fs *FS) Check() (*CheckReport, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}

	report := &CheckReport{}
	referenced := roaring.New()
	reachable := roaring.New()

	type item struct {
		ino  uint32
		path []string
	}
	queue := []item{{ino: fs.geo.RootInode}}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		if !reachable.CheckedAdd(it.ino) {
			report.Relinked = append(report.Relinked, it.ino)
			continue
		}

		in, err := fs.inodes.Read(it.ino)
		if err != nil {
			return nil, err
		}
		if in.IsDir() {
			report.Directories++
		} else {
			report.Files++
		}

		owned := in.Blocks
		if in.Indirect != 0 {
			owned = append(owned[:len(owned):len(owned)], in.Indirect)
		}
		for _, b := range owned {
			if b < fs.geo.DataStart || b >= fs.geo.BlockCount {
				report.InvalidBlocks = append(report.InvalidBlocks, b)
				continue
			}
			if !referenced.CheckedAdd(b) {
				report.DoubleReferenced = append(report.DoubleReferenced, b)
			}
		}

		bs := uint64(fs.geo.BlockSize)
		if want := int((in.Size + bs - 1) / bs); want != len(in.Blocks) || (len(in.Blocks) > inode.DirectBlocks) != (in.Indirect != 0) {
			report.SizeMismatch = append(report.SizeMismatch, in.Index)
			continue
		}
		if in.IsDir() && in.Size%data.EntrySize != 0 {
			report.SizeMismatch = append(report.SizeMismatch, in.Index)
			continue
		}

		if !in.IsDir() {
			continue
		}
		entries, err := fs.data.ListEntries(in)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			child := append(it.path[:len(it.path):len(it.path)], e.Name)
			ok, err := fs.inodes.InUse(e.Inode)
			if err != nil && !errors.Is(err, ErrOutOfRange) {
				return nil, err
			}
			if !ok {
				report.Dangling = append(report.Dangling, JoinPath(child))
				continue
			}
			queue = append(queue, item{ino: e.Inode, path: child})
		}
	}

	allocated, err := fs.alloc.Bitmap()
	if err != nil {
		return nil, err
	}
	it := referenced.Iterator()
	for it.HasNext() {
		if b := it.Next(); !allocated.Test(uint(b)) {
			report.ReferencedFree = append(report.ReferencedFree, b)
		}
	}
	for b, ok := allocated.NextSet(uint(fs.geo.DataStart)); ok && b < uint(fs.geo.BlockCount); b, ok = allocated.NextSet(b + 1) {
		if !referenced.Contains(uint32(b)) {
			report.Leaked = append(report.Leaked, uint32(b))
		}
	}

	used, err := fs.inodes.Used()
	if err != nil {
		return nil, err
	}
	for _, i := range used {
		if !reachable.Contains(i) {
			report.Unreachable = append(report.Unreachable, i)
		}
	}

	return report, nil
}
