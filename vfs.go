package diskvfs

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/diskvfs/blockstore"
	"github.com/hupe1980/diskvfs/internal/alloc"
	"github.com/hupe1980/diskvfs/internal/data"
	"github.com/hupe1980/diskvfs/internal/inode"
	"github.com/hupe1980/diskvfs/internal/layout"
	"github.com/hupe1980/diskvfs/internal/pathres"
)

// FS is a file system living inside a single disk image.
//
// An FS is not safe for concurrent use. Separate FS values on separate
// images are independent.
type FS struct {
	path     string
	store    *blockstore.Store
	geo      layout.Geometry
	alloc    *alloc.Allocator
	inodes   *inode.Table
	data     *data.Layer
	resolver *pathres.Resolver
	fds      []*descriptor

	logger  *Logger
	metrics MetricsCollector
	clock   clock.Clock
	closed  bool
}

// Init opens the image at path holding blockCount blocks. A missing or empty
// image is formatted with a fresh file system containing only the root
// directory; an existing one is mounted after its control block is validated.
func Init(path string, blockCount uint32, optFns ...Option) (*FS, error) {
	o := applyOptions(optFns)

	store, err := blockstore.Open(path, blockCount, func(bo *blockstore.Options) {
		bo.BlockSize = int(o.blockSize)
		bo.Device = o.device
		bo.FS = o.fsys
	})
	if err != nil {
		return nil, pathError("init", nil, err)
	}

	fs := &FS{
		path:    path,
		store:   store,
		fds:     make([]*descriptor, o.maxOpenFiles),
		logger:  o.logger.WithImage(path),
		metrics: o.metricsCollector,
		clock:   o.clock,
	}

	if store.Created() || o.format {
		err = fs.format(o.blockSize, blockCount, o.inodeCount)
	} else {
		err = fs.mount(o.blockSize)
	}
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FS) wire(geo layout.Geometry) {
	fs.geo = geo
	fs.alloc = alloc.New(fs.store, geo)
	fs.inodes = inode.New(fs.store, geo, fs.clock)
	fs.data = data.New(fs.store, fs.inodes, fs.alloc, geo.BlockSize)
	fs.resolver = pathres.New(fs.inodes, fs.data, geo.RootInode)
}

// format lays out an empty file system. The control block is written last so
// an interrupted format is not mistaken for a valid image.
func (fs *FS) format(blockSize, blockCount, inodeCount uint32) (err error) {
	defer func() {
		fs.logger.LogFormat(blockSize, blockCount, fs.geo.InodeCount, err)
	}()

	geo, err := layout.Compute(blockSize, blockCount, inodeCount)
	if err != nil {
		return err
	}
	fs.wire(geo)

	if err := fs.alloc.Format(); err != nil {
		return err
	}
	if err := fs.inodes.Format(); err != nil {
		return err
	}
	root, err := fs.inodes.Alloc(inode.TypeDirectory)
	if err != nil {
		return err
	}
	if root.Index != geo.RootInode {
		return fmt.Errorf("%w: root allocated as inode %d", ErrCorrupt, root.Index)
	}

	sb, err := layout.Encode(geo)
	if err != nil {
		return err
	}
	if err := fs.store.Put(0, sb); err != nil {
		return err
	}
	return fs.store.Sync()
}

func (fs *FS) mount(blockSize uint32) (err error) {
	defer func() {
		fs.logger.LogMount(fs.geo.BlockSize, fs.geo.BlockCount, err)
	}()

	block, err := fs.store.Get(0)
	if err != nil {
		return err
	}
	geo, err := layout.Decode(block)
	if err != nil {
		return pathError("mount", nil, err)
	}
	if geo.BlockSize != blockSize {
		return fmt.Errorf("%w: image uses %d-byte blocks, want %d", ErrBlockSizeMismatch, geo.BlockSize, blockSize)
	}
	if geo.BlockCount != fs.store.Count() {
		return fmt.Errorf("%w: control block describes %d blocks, image has %d", ErrCorrupt, geo.BlockCount, fs.store.Count())
	}
	fs.wire(geo)

	root, err := fs.inodes.Read(geo.RootInode)
	if err != nil {
		return fmt.Errorf("%w: root directory: %w", ErrCorrupt, err)
	}
	if !root.IsDir() {
		return fmt.Errorf("%w: root is not a directory", ErrCorrupt)
	}
	return nil
}

func (fs *FS) checkMounted() error {
	if fs.closed {
		return ErrUnmounted
	}
	return nil
}

// Creat creates an empty file, or a directory when isDir is set, at path.
// The parent directory must exist.
func (fs *FS) Creat(path []string, isDir bool) (err error) {
	start := fs.clock.Now()
	var ino uint32
	defer func() {
		fs.metrics.RecordCreat(isDir, fs.clock.Since(start), err)
		fs.logger.LogCreat(JoinPath(path), isDir, ino, err)
	}()

	if err := fs.checkMounted(); err != nil {
		return err
	}
	ino, err = fs.creat(path, isDir)
	return pathError("creat", path, err)
}

func (fs *FS) creat(path []string, isDir bool) (uint32, error) {
	parent, name, err := fs.resolver.ResolveParent(path)
	if err != nil {
		return 0, err
	}
	if _, _, err := fs.data.Lookup(parent, name); err == nil {
		return 0, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	typ := inode.TypeFile
	if isDir {
		typ = inode.TypeDirectory
	}
	in, err := fs.inodes.Alloc(typ)
	if err != nil {
		return 0, err
	}

	if err := fs.data.AddEntry(parent, name, in.Index); err != nil {
		// The inode was never linked; release it again.
		if ferr := fs.inodes.Free(in.Index, fs.alloc); ferr != nil {
			return 0, multierror.Append(err, ferr)
		}
		return 0, err
	}
	return in.Index, nil
}

// Unlink removes the file or empty directory at path. The root cannot be
// removed, and neither can an inode that still has open descriptors.
func (fs *FS) Unlink(path []string) (err error) {
	start := fs.clock.Now()
	defer func() {
		fs.metrics.RecordUnlink(fs.clock.Since(start), err)
		fs.logger.LogUnlink(JoinPath(path), err)
	}()

	if err := fs.checkMounted(); err != nil {
		return err
	}
	return pathError("unlink", path, fs.unlink(path))
}

func (fs *FS) unlink(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: cannot remove the root directory", ErrInvalidPath)
	}

	parent, name, err := fs.resolver.ResolveParent(path)
	if err != nil {
		return err
	}
	e, _, err := fs.data.Lookup(parent, name)
	if err != nil {
		return err
	}
	target, err := fs.inodes.Read(e.Inode)
	if err != nil {
		return err
	}

	if fs.isOpen(target.Index) {
		return ErrBusy
	}
	if target.IsDir() && target.Size > 0 {
		return ErrDirectoryNotEmpty
	}

	if _, err := fs.data.RemoveEntry(parent, name); err != nil {
		return err
	}
	return fs.inodes.Free(target.Index, fs.alloc)
}

// Stat returns the metadata of the object at path.
func (fs *FS) Stat(path []string) (Stat, error) {
	if err := fs.checkMounted(); err != nil {
		return Stat{}, err
	}

	in, err := fs.resolver.Resolve(path)
	if err != nil {
		return Stat{}, pathError("stat", path, err)
	}
	name := "/"
	if len(path) > 0 {
		name = path[len(path)-1]
	}
	return newStat(in, name), nil
}

// ReadDir returns the metadata of every entry of the directory at path, in
// storage order.
func (fs *FS) ReadDir(path []string) ([]Stat, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}

	dir, err := fs.resolver.Resolve(path)
	if err != nil {
		return nil, pathError("readdir", path, err)
	}
	entries, err := fs.data.ListEntries(dir)
	if err != nil {
		return nil, pathError("readdir", path, err)
	}

	out := make([]Stat, 0, len(entries))
	for _, e := range entries {
		st, err := fs.statEntry(e)
		if err != nil {
			return nil, pathError("readdir", path, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func (fs *FS) statEntry(e data.Entry) (Stat, error) {
	in, err := fs.inodes.Read(e.Inode)
	if err != nil {
		return Stat{}, fmt.Errorf("entry %q: %w", e.Name, err)
	}
	return newStat(in, e.Name), nil
}

// Stats returns the block I/O totals since Init.
func (fs *FS) Stats() blockstore.Stats {
	return fs.store.Stats()
}

// Usage describes the capacity of the file system.
type Usage struct {
	BlockSize   uint32
	Blocks      uint32
	DataBlocks  uint32
	FreeBlocks  uint32
	Inodes      uint32
	FreeInodes  uint32
	MaxFileSize uint64
}

// Usage reports block and inode capacity and how much of it is free.
func (fs *FS) Usage() (Usage, error) {
	if err := fs.checkMounted(); err != nil {
		return Usage{}, err
	}

	free, err := fs.alloc.FreeCount()
	if err != nil {
		return Usage{}, err
	}
	used, err := fs.inodes.Used()
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		BlockSize:   fs.geo.BlockSize,
		Blocks:      fs.geo.BlockCount,
		DataBlocks:  fs.geo.DataBlocks(),
		FreeBlocks:  free,
		Inodes:      fs.geo.InodeCount,
		FreeInodes:  fs.geo.InodeCount - uint32(len(used)),
		MaxFileSize: fs.data.MaxFileSize(),
	}, nil
}

// Path returns the image path the file system was opened from.
func (fs *FS) Path() string { return fs.path }
