package pathres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskvfs/blockstore"
	"github.com/hupe1980/diskvfs/internal/alloc"
	"github.com/hupe1980/diskvfs/internal/data"
	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/inode"
	"github.com/hupe1980/diskvfs/internal/layout"
)

// newTree builds /docs/readme (file) and /docs/img (directory).
func newTree(t *testing.T) (*Resolver, map[string]uint32) {
	t.Helper()

	geo, err := layout.Compute(1024, 64, 0)
	require.NoError(t, err)
	store, err := blockstore.New(blockstore.NewMemoryDevice(64*1024), 1024)
	require.NoError(t, err)

	a := alloc.New(store, geo)
	table := inode.New(store, geo, nil)
	layer := data.New(store, table, a, 1024)
	require.NoError(t, a.Format())
	require.NoError(t, table.Format())

	root, err := table.Alloc(inode.TypeDirectory)
	require.NoError(t, err)
	docs, err := table.Alloc(inode.TypeDirectory)
	require.NoError(t, err)
	readme, err := table.Alloc(inode.TypeFile)
	require.NoError(t, err)
	img, err := table.Alloc(inode.TypeDirectory)
	require.NoError(t, err)

	require.NoError(t, layer.AddEntry(root, "docs", docs.Index))
	require.NoError(t, layer.AddEntry(docs, "readme", readme.Index))
	require.NoError(t, layer.AddEntry(docs, "img", img.Index))

	ids := map[string]uint32{"root": root.Index, "docs": docs.Index, "readme": readme.Index, "img": img.Index}
	return New(table, layer, root.Index), ids
}

func TestResolve(t *testing.T) {
	r, ids := newTree(t)

	tests := []struct {
		name string
		path []string
		want uint32
		err  error
	}{
		{"Root", nil, ids["root"], nil},
		{"Directory", []string{"docs"}, ids["docs"], nil},
		{"File", []string{"docs", "readme"}, ids["readme"], nil},
		{"Nested", []string{"docs", "img"}, ids["img"], nil},
		{"Missing", []string{"nope"}, 0, errs.ErrNotFound},
		{"MissingLeaf", []string{"docs", "nope"}, 0, errs.ErrNotFound},
		{"ThroughFile", []string{"docs", "readme", "x"}, 0, errs.ErrNotADirectory},
		{"EmptyComponent", []string{"docs", ""}, 0, errs.ErrInvalidPath},
		{"Slash", []string{"a/b"}, 0, errs.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := r.Resolve(tt.path)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Index)
		})
	}
}

func TestResolve_ThroughFileIsAlsoNotFound(t *testing.T) {
	r, _ := newTree(t)

	_, err := r.Resolve([]string{"docs", "readme", "x"})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestResolveParent(t *testing.T) {
	r, ids := newTree(t)

	parent, name, err := r.ResolveParent([]string{"docs", "new"})
	require.NoError(t, err)
	assert.Equal(t, ids["docs"], parent.Index)
	assert.Equal(t, "new", name)

	parent, name, err = r.ResolveParent([]string{"top"})
	require.NoError(t, err)
	assert.Equal(t, ids["root"], parent.Index)
	assert.Equal(t, "top", name)

	_, _, err = r.ResolveParent(nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidPath))

	_, _, err = r.ResolveParent([]string{"docs", "readme", "x"})
	assert.True(t, errors.Is(err, errs.ErrNotADirectory))

	_, _, err = r.ResolveParent([]string{"missing", "x"})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
