package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/diskvfs/blobstore"
	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/hash"
	"github.com/hupe1980/diskvfs/resource"
)

// Import restores the snapshot named by ref (empty for CURRENT) into dst.
// The image is written from offset 0; dst receives exactly Manifest.Size bytes.
func Import(ctx context.Context, store blobstore.Store, ref string, dst io.WriterAt, optFns ...func(*Options)) (*Manifest, error) {
	opts := applyOptions(optFns)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := LoadManifest(ctx, store, ref, optFns...)
	if err != nil {
		return nil, err
	}

	if err := opts.Controller.AcquireTransfer(ctx); err != nil {
		return nil, err
	}
	defer opts.Controller.ReleaseTransfer()

	blob, err := store.Open(ctx, m.Blob)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", m.Blob, err)
	}
	defer blob.Close()

	if blob.Size() != m.StoredSize {
		return nil, fmt.Errorf("snapshot: %s is %d bytes, manifest says %d: %w", m.Blob, blob.Size(), m.StoredSize, errs.ErrCorrupt)
	}

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dr, err := m.Compression.NewReader(resource.NewRateLimitedReader(ctx, rc, opts.Controller))
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	crc := hash.NewCRC32C()
	// One extra byte detects blobs that decompress to more than Size.
	n, err := io.Copy(io.MultiWriter(io.NewOffsetWriter(dst, 0), crc), io.LimitReader(dr, m.Size+1))
	if err != nil {
		return nil, fmt.Errorf("snapshot: import %s: %w", m.Blob, err)
	}
	if n != m.Size {
		return nil, fmt.Errorf("snapshot: %s decompressed to %d bytes, want %d: %w", m.Blob, n, m.Size, errs.ErrCorrupt)
	}
	if sum := crc.Sum32(); sum != m.CRC32C {
		return nil, fmt.Errorf("%w: %s has crc32c 0x%08x, want 0x%08x", ErrChecksumMismatch, m.Blob, sum, m.CRC32C)
	}

	opts.Logger.Info("snapshot imported",
		"id", m.ID,
		"size", humanize.IBytes(uint64(m.Size)),
	)
	return m, nil
}

// ImportFile restores a snapshot into a new image file at path.
// The file is removed again if the import fails.
func ImportFile(ctx context.Context, store blobstore.Store, ref, path string, optFns ...func(*Options)) (*Manifest, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}

	m, err := Import(ctx, store, ref, f, optFns...)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return m, nil
}

// Prune deletes all snapshots except the newest keep ones. The snapshot CURRENT
// points to is never deleted. It returns the ids of the removed snapshots.
func Prune(ctx context.Context, store blobstore.Store, keep int, optFns ...func(*Options)) ([]string, error) {
	keep = max(keep, 0)

	all, err := List(ctx, store, optFns...)
	if err != nil {
		return nil, err
	}

	current, err := resolve(ctx, store, "")
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	var (
		removed []string
		result  error
	)
	for i, m := range all {
		if i >= len(all)-keep || m.Name() == current {
			continue
		}
		if err := store.Delete(ctx, m.Blob); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", m.Blob, err))
			continue
		}
		if err := store.Delete(ctx, m.Name()); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", m.Name(), err))
			continue
		}
		removed = append(removed, m.ID)
	}
	return removed, result
}
