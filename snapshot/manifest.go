package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/diskvfs/blobstore"
	"github.com/hupe1980/diskvfs/codec"
	"github.com/hupe1980/diskvfs/internal/conv"
	"github.com/hupe1980/diskvfs/internal/errs"
)

const (
	// CurrentName is the pointer blob naming the latest manifest.
	CurrentName = "CURRENT"

	// ManifestPrefix is the blob prefix of all manifests.
	ManifestPrefix = "manifests/"

	// ImagePrefix is the blob prefix of all image blobs.
	ImagePrefix = "images/"

	manifestVersion = 1
)

var (
	// ErrNoSnapshot is returned when a store has no CURRENT pointer.
	ErrNoSnapshot = errors.New("snapshot: no snapshot committed")

	// ErrChecksumMismatch is returned when an imported image fails verification.
	ErrChecksumMismatch = fmt.Errorf("snapshot: checksum mismatch: %w", errs.ErrCorrupt)
)

// Manifest describes one exported image.
type Manifest struct {
	Version     int         `json:"version"`
	ID          string      `json:"id"`
	Blob        string      `json:"blob"`
	BlockSize   uint32      `json:"block_size"`
	BlockCount  uint32      `json:"block_count"`
	Size        int64       `json:"size"`
	StoredSize  int64       `json:"stored_size"`
	Compression Compression `json:"compression"`
	CRC32C      uint32      `json:"crc32c"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Name returns the blob name of the manifest.
func (m *Manifest) Name() string {
	return manifestName(m.ID)
}

func manifestName(id string) string {
	return ManifestPrefix + id + ".json"
}

// resolve maps a snapshot reference to a manifest blob name.
// An empty reference means CURRENT; a bare id is expanded.
func resolve(ctx context.Context, store blobstore.Store, ref string) (string, error) {
	switch {
	case ref == "" || ref == CurrentName:
		b, err := blobstore.ReadAll(ctx, store, CurrentName)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return "", ErrNoSnapshot
			}
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	case strings.HasPrefix(ref, ManifestPrefix):
		return ref, nil
	default:
		return manifestName(ref), nil
	}
}

// LoadManifest reads the manifest named by ref (empty for CURRENT, an id, or
// a full manifest blob name).
func LoadManifest(ctx context.Context, store blobstore.Store, ref string, optFns ...func(*Options)) (*Manifest, error) {
	opts := applyOptions(optFns)

	name, err := resolve(ctx, store, ref)
	if err != nil {
		return nil, err
	}

	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read manifest %s: %w", name, err)
	}

	m := &Manifest{}
	if err := opts.Codec.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("snapshot: decode manifest %s (%s): %w", name, opts.Codec.Name(), err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("snapshot: unsupported manifest version %d", m.Version)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("snapshot: manifest %s: %w: %w", name, errs.ErrCorrupt, err)
	}
	return m, nil
}

func (m *Manifest) validate() error {
	size, err := conv.Int64ToUint64(m.Size)
	if err != nil {
		return err
	}
	if _, err := conv.Int64ToUint64(m.StoredSize); err != nil {
		return err
	}
	if want := uint64(m.BlockSize) * uint64(m.BlockCount); size != want {
		return fmt.Errorf("size %d does not match %d blocks of %d bytes", size, m.BlockCount, m.BlockSize)
	}
	if !strings.HasPrefix(m.Blob, ImagePrefix) {
		return fmt.Errorf("blob %q outside %s", m.Blob, ImagePrefix)
	}
	return nil
}

// Latest returns the manifest CURRENT points to.
func Latest(ctx context.Context, store blobstore.Store, optFns ...func(*Options)) (*Manifest, error) {
	return LoadManifest(ctx, store, "", optFns...)
}

// List returns all manifests in the store, oldest first.
func List(ctx context.Context, store blobstore.Store, optFns ...func(*Options)) ([]*Manifest, error) {
	names, err := store.List(ctx, ManifestPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]*Manifest, 0, len(names))
	for _, name := range names {
		m, err := LoadManifest(ctx, store, name, optFns...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func marshalManifest(c codec.Codec, m *Manifest) ([]byte, error) {
	if gj, ok := c.(codec.GoJSON); ok {
		return gj.MarshalIndent(m)
	}
	return c.Marshal(m)
}
