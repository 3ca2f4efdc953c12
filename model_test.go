package diskvfs_test

import (
	"errors"
	"io"
	"path"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskvfs"
	"github.com/hupe1980/diskvfs/testutil"
)

// model mirrors the expected tree: path -> contents, nil for directories.
type model map[string][]byte

func (m model) isDir(p string) bool {
	data, ok := m[p]
	return ok && data == nil
}

func (m model) sorted(filter func(p string) bool) []string {
	var out []string
	for p := range m {
		if filter(p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func (m model) children(dir string) []string {
	var out []string
	for p := range m {
		if p != "/" && path.Dir(p) == dir {
			out = append(out, path.Base(p))
		}
	}
	return out
}

func isCapacityError(err error) bool {
	return errors.Is(err, diskvfs.ErrDiskFull) ||
		errors.Is(err, diskvfs.ErrCapacityExceeded) ||
		errors.Is(err, diskvfs.ErrFileTooLarge) ||
		errors.Is(err, io.ErrShortWrite)
}

func TestRandomWorkload(t *testing.T) {
	for _, seed := range []int64{1, 42, 4711} {
		t.Run("", func(t *testing.T) {
			runWorkload(t, testutil.NewRNG(seed))
		})
	}
}

func runWorkload(t *testing.T, rng *testutil.RNG) {
	imagePath := filepath.Join(t.TempDir(), "disk.img")
	fs, err := diskvfs.Init(imagePath, 128)
	require.NoError(t, err)
	defer func() { _ = fs.UnmountForce() }()

	usage, err := fs.Usage()
	require.NoError(t, err)
	sizeLimit := int(min(usage.MaxFileSize, 24*1024))

	m := model{"/": nil}
	dirs := func() []string { return m.sorted(m.isDir) }
	entries := func() []string { return m.sorted(func(p string) bool { return p != "/" }) }

	for i := range 400 {
		switch op := rng.Intn(10); {
		case op < 2: // mkdir
			d := dirs()
			p := path.Join(d[rng.Intn(len(d))], rng.Name(3))

			err := fs.Creat(diskvfs.SplitPath(p), true)
			switch {
			case m[p] != nil || m.isDir(p):
				require.ErrorIs(t, err, diskvfs.ErrAlreadyExists, "op %d seed %d", i, rng.Seed())
			case isCapacityError(err):
			default:
				require.NoError(t, err, "op %d seed %d", i, rng.Seed())
				m[p] = nil
			}

		case op < 6: // write a file, replacing any previous one
			d := dirs()
			p := path.Join(d[rng.Intn(len(d))], rng.Name(3))
			if m.isDir(p) {
				continue
			}
			split := diskvfs.SplitPath(p)
			if _, ok := m[p]; ok {
				require.NoError(t, fs.Unlink(split))
				delete(m, p)
			}

			data := rng.Bytes(rng.FileSize(sizeLimit))
			if err := fs.WriteFile(split, data); err != nil {
				require.True(t, isCapacityError(err), "op %d seed %d: %v", i, rng.Seed(), err)
				if uerr := fs.Unlink(split); uerr != nil {
					require.ErrorIs(t, uerr, diskvfs.ErrNotFound)
				}
				continue
			}
			m[p] = data

		case op < 8: // unlink
			e := entries()
			if len(e) == 0 {
				continue
			}
			p := e[rng.Intn(len(e))]

			err := fs.Unlink(diskvfs.SplitPath(p))
			if m.isDir(p) && len(m.children(p)) > 0 {
				require.ErrorIs(t, err, diskvfs.ErrDirectoryNotEmpty)
				continue
			}
			require.NoError(t, err, "op %d seed %d", i, rng.Seed())
			delete(m, p)

		default: // read back
			files := m.sorted(func(p string) bool { return m[p] != nil })
			if len(files) == 0 {
				continue
			}
			p := files[rng.Intn(len(files))]
			got, err := fs.ReadFile(diskvfs.SplitPath(p))
			require.NoError(t, err)
			require.Equal(t, m[p], got, p)
		}
	}

	verifyModel(t, fs, m)

	require.NoError(t, fs.Unmount())
	fs, err = diskvfs.Init(imagePath, 128)
	require.NoError(t, err)
	verifyModel(t, fs, m)
}

func verifyModel(t *testing.T, fs *diskvfs.FS, m model) {
	t.Helper()

	for p, data := range m {
		split := diskvfs.SplitPath(p)
		if data == nil {
			entries, err := fs.ReadDir(split)
			require.NoError(t, err, p)
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name)
			}
			assert.ElementsMatch(t, m.children(p), names, p)
			continue
		}

		got, err := fs.ReadFile(split)
		require.NoError(t, err, p)
		assert.Equal(t, data, got, p)
	}

	report, err := fs.Check()
	require.NoError(t, err)
	require.NoError(t, report.Err())

	files := len(m.sorted(func(p string) bool { return m[p] != nil }))
	assert.Equal(t, files, report.Files)
	assert.Equal(t, len(m)-files, report.Directories)
}
