// Package pathres turns component paths into inodes.
package pathres

import (
	"fmt"

	"github.com/hupe1980/diskvfs/internal/data"
	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/inode"
)

// Resolver walks directories starting at the root inode.
type Resolver struct {
	inodes *inode.Table
	data   *data.Layer
	root   uint32
}

// New returns a resolver rooted at inode root.
func New(inodes *inode.Table, layer *data.Layer, root uint32) *Resolver {
	return &Resolver{inodes: inodes, data: layer, root: root}
}

// Validate checks every component of path.
func Validate(path []string) error {
	for _, name := range path {
		if err := data.ValidName(name); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the inode named by path. The empty path names the root.
// A component below a regular file fails with errs.ErrNotFound wrapping
// errs.ErrNotADirectory.
func (r *Resolver) Resolve(path []string) (*inode.Inode, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}

	cur, err := r.inodes.Read(r.root)
	if err != nil {
		return nil, fmt.Errorf("pathres: read root: %w", err)
	}
	for _, name := range path {
		if !cur.IsDir() {
			return nil, fmt.Errorf("%w: %w before %q", errs.ErrNotFound, errs.ErrNotADirectory, name)
		}
		e, _, err := r.data.Lookup(cur, name)
		if err != nil {
			return nil, err
		}
		if cur, err = r.inodes.Read(e.Inode); err != nil {
			return nil, fmt.Errorf("pathres: entry %q: %w", name, err)
		}
	}
	return cur, nil
}

// ResolveParent returns the directory that holds the last component of path,
// together with that component.
func (r *Resolver) ResolveParent(path []string) (*inode.Inode, string, error) {
	if len(path) == 0 {
		return nil, "", fmt.Errorf("%w: empty path", errs.ErrInvalidPath)
	}
	name := path[len(path)-1]
	if err := data.ValidName(name); err != nil {
		return nil, "", err
	}

	parent, err := r.Resolve(path[:len(path)-1])
	if err != nil {
		return nil, "", err
	}
	if !parent.IsDir() {
		return nil, "", fmt.Errorf("%w: parent of %q", errs.ErrNotADirectory, name)
	}
	return parent, name, nil
}
