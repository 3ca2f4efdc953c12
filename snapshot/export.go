package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/diskvfs/blobstore"
	"github.com/hupe1980/diskvfs/internal/hash"
	"github.com/hupe1980/diskvfs/internal/layout"
	"github.com/hupe1980/diskvfs/resource"
)

// ErrSizeMismatch is returned when an image's length disagrees with its geometry.
var ErrSizeMismatch = errors.New("snapshot: image size does not match geometry")

// Export streams the size bytes of src into store as a new snapshot and makes
// it CURRENT. src must hold a formatted image.
func Export(ctx context.Context, src io.ReaderAt, size int64, store blobstore.Store, optFns ...func(*Options)) (*Manifest, error) {
	opts := applyOptions(optFns)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := make([]byte, layout.MinBlockSize)
	if n, err := src.ReadAt(head, 0); err != nil && !(errors.Is(err, io.EOF) && n == len(head)) {
		return nil, fmt.Errorf("snapshot: read control block: %w", err)
	}
	geo, err := layout.Decode(head)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if int64(geo.BlockSize)*int64(geo.BlockCount) != size {
		return nil, fmt.Errorf("%w: %d bytes for %d blocks of %d", ErrSizeMismatch, size, geo.BlockCount, geo.BlockSize)
	}

	if err := opts.Controller.AcquireTransfer(ctx); err != nil {
		return nil, err
	}
	defer opts.Controller.ReleaseTransfer()

	m := &Manifest{
		Version:     manifestVersion,
		ID:          uuid.NewString(),
		BlockSize:   geo.BlockSize,
		BlockCount:  geo.BlockCount,
		Size:        size,
		Compression: opts.Compression,
		CreatedAt:   opts.Clock.Now().UTC(),
	}
	m.Blob = ImagePrefix + m.ID + m.Compression.Ext()

	w, err := store.Create(ctx, m.Blob)
	if err != nil {
		return nil, err
	}

	crc := hash.NewCRC32C()
	var stored atomic.Int64

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	// Compress into the pipe.
	g.Go(func() error {
		r := resource.NewRateLimitedReader(gctx, io.NewSectionReader(src, 0, size), opts.Controller)

		cw, err := m.Compression.NewWriter(pw)
		if err != nil {
			pw.CloseWithError(err)
			return err
		}
		if _, err = io.Copy(cw, io.TeeReader(r, crc)); err == nil {
			err = cw.Close()
		}
		pw.CloseWithError(err)
		return err
	})

	// Upload from the pipe.
	g.Go(func() error {
		n, err := io.Copy(w, pr)
		stored.Store(n)
		if err != nil {
			pr.CloseWithError(err)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		abort(w)
		return nil, fmt.Errorf("snapshot: export %s: %w", m.Blob, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: finish %s: %w", m.Blob, err)
	}

	m.CRC32C = crc.Sum32()
	m.StoredSize = stored.Load()

	data, err := marshalManifest(opts.Codec, m)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, m.Name(), data); err != nil {
		return nil, fmt.Errorf("snapshot: write manifest: %w", err)
	}
	if err := store.Put(ctx, CurrentName, []byte(m.Name())); err != nil {
		return nil, fmt.Errorf("snapshot: commit %s: %w", m.Name(), err)
	}

	opts.Logger.Info("snapshot exported",
		"id", m.ID,
		"size", humanize.IBytes(uint64(m.Size)),
		"stored", humanize.IBytes(uint64(m.StoredSize)),
		"compression", string(m.Compression),
	)
	return m, nil
}

// ExportFile exports the image file at path. The image must not be mounted.
func ExportFile(ctx context.Context, path string, store blobstore.Store, optFns ...func(*Options)) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Export(ctx, f, info.Size(), store, optFns...)
}

func abort(w blobstore.WritableBlob) {
	if a, ok := w.(blobstore.Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}
