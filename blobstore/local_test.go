package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"Local":  NewLocalStore(t.TempDir()),
		"Memory": NewMemoryStore(),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// 1. Create a blob
			blobName := "images/disk-001.img"
			data := []byte("hello world, this is a test blob for diskvfs")

			w, err := store.Create(ctx, blobName)
			require.NoError(t, err)

			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.NoError(t, w.Sync())

			// Not visible before Close.
			_, err = store.Open(ctx, blobName)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, w.Close())
			assert.Error(t, w.Close())

			// 2. Open and ReadAt
			blob, err := store.Open(ctx, blobName)
			require.NoError(t, err)
			defer blob.Close()

			require.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			require.Equal(t, 5, n)
			require.Equal(t, "world", string(buf))

			// 3. ReadRange
			rangeReader, err := blob.ReadRange(ctx, 13, 4)
			require.NoError(t, err)
			rangeContent, err := io.ReadAll(rangeReader)
			require.NoError(t, err)
			require.NoError(t, rangeReader.Close())
			require.Equal(t, "this", string(rangeContent))

			// 4. Put and List
			require.NoError(t, store.Put(ctx, "CURRENT", []byte("manifests/a.json")))
			require.NoError(t, store.Put(ctx, "images/disk-002.img", nil))

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			require.Equal(t, []string{"CURRENT", blobName, "images/disk-002.img"}, all)

			images, err := store.List(ctx, "images/")
			require.NoError(t, err)
			require.Equal(t, []string{blobName, "images/disk-002.img"}, images)

			got, err := ReadAll(ctx, store, "CURRENT")
			require.NoError(t, err)
			assert.Equal(t, "manifests/a.json", string(got))

			got, err = ReadAll(ctx, store, "images/disk-002.img")
			require.NoError(t, err)
			assert.Empty(t, got)

			// 5. Delete
			require.NoError(t, store.Delete(ctx, blobName))
			require.NoError(t, store.Delete(ctx, blobName))

			images, err = store.List(ctx, "images/")
			require.NoError(t, err)
			require.Equal(t, []string{"images/disk-002.img"}, images)

			_, err = store.Open(ctx, blobName)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ReadRange_Boundaries(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			data := []byte("0123456789")
			require.NoError(t, store.Put(ctx, "boundary.bin", data))

			blob, err := store.Open(ctx, "boundary.bin")
			require.NoError(t, err)
			defer blob.Close()

			// Full range
			r, err := blob.ReadRange(ctx, 0, 10)
			require.NoError(t, err)
			content, _ := io.ReadAll(r)
			r.Close()
			require.True(t, bytes.Equal(data, content))

			// Past end
			r, err = blob.ReadRange(ctx, 8, 5)
			require.NoError(t, err)
			content, err = io.ReadAll(r)
			require.NoError(t, err)
			require.Equal(t, "89", string(content))
			r.Close()

			// Offset past EOF
			_, err = blob.ReadRange(ctx, 20, 5)
			require.ErrorIs(t, err, io.EOF)

			// Short ReadAt
			buf := make([]byte, 4)
			n, err := blob.ReadAt(ctx, buf, 8)
			assert.Equal(t, 2, n)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestStore_Abort(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			w, err := store.Create(ctx, "partial")
			require.NoError(t, err)
			_, err = w.Write([]byte("half"))
			require.NoError(t, err)

			a, ok := w.(Aborter)
			require.True(t, ok)
			require.NoError(t, a.Abort())

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestLocalStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	require.NoError(t, store.Put(context.Background(), "a", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name())

	_, err = os.Stat(filepath.Join(dir, "a"))
	require.NoError(t, err)
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = store.Open(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewLocalStore(t.TempDir())
	_, err := store.Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Create(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
