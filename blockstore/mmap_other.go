//go:build !unix

package blockstore

import (
	"errors"

	"github.com/hupe1980/diskvfs/internal/fs"
)

// ErrMmapUnsupported is returned by Open with DeviceMmap on platforms without mmap support.
var ErrMmapUnsupported = errors.New("blockstore: mmap device is not supported on this platform")

func openMmap(fs.FileSystem, string, int64) (Device, bool, error) {
	return nil, false, ErrMmapUnsupported
}
