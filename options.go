package diskvfs

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/hupe1980/diskvfs/blockstore"
	"github.com/hupe1980/diskvfs/internal/fs"
)

// DefaultMaxOpenFiles is the default size of the descriptor table.
const DefaultMaxOpenFiles = 32

type options struct {
	blockSize        uint32
	inodeCount       uint32
	maxOpenFiles     int
	device           blockstore.DeviceKind
	format           bool
	metricsCollector MetricsCollector
	logger           *Logger
	clock            clock.Clock
	fsys             fs.FileSystem
}

// Option configures Init.
type Option func(*options)

// WithBlockSize sets the block size used when formatting a new image.
// It must be a power of two between 512 and 65536. Existing images keep the
// block size they were formatted with, and Init fails if the sizes differ.
func WithBlockSize(size uint32) Option {
	return func(o *options) {
		o.blockSize = size
	}
}

// WithInodeCount sets the number of inode slots of a new image.
// The count is rounded up to fill whole table blocks. Zero selects one
// inode per four blocks.
func WithInodeCount(n uint32) Option {
	return func(o *options) {
		o.inodeCount = n
	}
}

// WithMaxOpenFiles sets the size of the descriptor table.
func WithMaxOpenFiles(n int) Option {
	return func(o *options) {
		o.maxOpenFiles = n
	}
}

// WithDevice selects how the image file is accessed.
func WithDevice(kind blockstore.DeviceKind) Option {
	return func(o *options) {
		o.device = kind
	}
}

// WithFormat forces formatting, discarding any file system already in the image.
func WithFormat(format bool) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &diskvfs.BasicMetricsCollector{}
//	fs, _ := diskvfs.Init("disk.img", 1024, diskvfs.WithMetricsCollector(metrics))
//	// ... use fs ...
//	stats := metrics.GetStats()
//	fmt.Printf("Writes: %d, bytes: %d\n", stats.WriteCount, stats.WriteBytes)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := diskvfs.NewJSONLogger(slog.LevelInfo)
//	fs, _ := diskvfs.Init("disk.img", 1024, diskvfs.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithClock sets the clock used for inode timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		blockSize:        1024,
		maxOpenFiles:     DefaultMaxOpenFiles,
		device:           blockstore.DeviceFile,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		clock:            clock.New(),
		fsys:             fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.maxOpenFiles <= 0 {
		o.maxOpenFiles = DefaultMaxOpenFiles
	}
	return o
}
