package snapshot

import (
	"io"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/hupe1980/diskvfs/codec"
	"github.com/hupe1980/diskvfs/resource"
)

// Options configures exports and imports.
type Options struct {
	// Compression is used for new image blobs. Imports use the manifest's.
	Compression Compression

	// Codec encodes manifests. Default: codec.Default.
	Codec codec.Codec

	// Controller throttles transfer bandwidth and concurrency. Nil means unlimited.
	Controller *resource.Controller

	// Clock stamps manifests. Default: the wall clock.
	Clock clock.Clock

	Logger *slog.Logger
}

func applyOptions(optFns []func(*Options)) Options {
	opts := Options{
		Compression: CompressionZstd,
		Codec:       codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return opts
}
