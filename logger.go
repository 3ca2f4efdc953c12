package diskvfs

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with diskvfs-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToUpper(s)))
	return level, err
}

// WithImage adds the image path to the logger.
func (l *Logger) WithImage(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("image", path),
	}
}

// LogFormat logs the creation of a fresh file system.
func (l *Logger) LogFormat(blockSize, blockCount, inodeCount uint32, err error) {
	if err != nil {
		l.Error("format failed",
			"block_size", blockSize,
			"blocks", blockCount,
			"error", err,
		)
	} else {
		l.Info("file system formatted",
			"block_size", blockSize,
			"blocks", blockCount,
			"inodes", inodeCount,
		)
	}
}

// LogMount logs opening an existing file system.
func (l *Logger) LogMount(blockSize, blockCount uint32, err error) {
	if err != nil {
		l.Error("mount failed",
			"error", err,
		)
	} else {
		l.Info("file system mounted",
			"block_size", blockSize,
			"blocks", blockCount,
		)
	}
}

// LogCreat logs a creat operation.
func (l *Logger) LogCreat(path string, isDir bool, ino uint32, err error) {
	if err != nil {
		l.Error("creat failed",
			"path", path,
			"dir", isDir,
			"error", err,
		)
	} else {
		l.Debug("creat completed",
			"path", path,
			"dir", isDir,
			"inode", ino,
		)
	}
}

// LogOpen logs an open operation.
func (l *Logger) LogOpen(path string, fd FD, err error) {
	if err != nil {
		l.Error("open failed",
			"path", path,
			"error", err,
		)
	} else {
		l.Debug("open completed",
			"path", path,
			"fd", int(fd),
		)
	}
}

// LogClose logs releasing a descriptor.
func (l *Logger) LogClose(fd FD, err error) {
	if err != nil {
		l.Error("close failed",
			"fd", int(fd),
			"error", err,
		)
	} else {
		l.Debug("close completed",
			"fd", int(fd),
		)
	}
}

// LogDescriptor logs a descriptor operation such as seek or statnext.
// The end of a directory traversal is not a failure.
func (l *Logger) LogDescriptor(op string, fd FD, err error) {
	switch {
	case err == nil:
		l.Debug(op+" completed",
			"fd", int(fd),
		)
	case errors.Is(err, ErrEndOfDirectory):
		l.Debug(op+" reached end of directory",
			"fd", int(fd),
		)
	default:
		l.Error(op+" failed",
			"fd", int(fd),
			"error", err,
		)
	}
}

// LogUnlink logs an unlink operation.
func (l *Logger) LogUnlink(path string, err error) {
	if err != nil {
		l.Error("unlink failed",
			"path", path,
			"error", err,
		)
	} else {
		l.Debug("unlink completed",
			"path", path,
		)
	}
}

// LogUnmount logs releasing the image.
func (l *Logger) LogUnmount(openFiles int, err error) {
	if err != nil {
		l.Error("unmount failed",
			"open_files", openFiles,
			"error", err,
		)
	} else {
		l.Info("file system unmounted",
			"open_files", openFiles,
		)
	}
}
