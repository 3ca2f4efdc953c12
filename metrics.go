package diskvfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
// Block-level I/O counts are kept by the block store itself; see FS.Stats.
type MetricsCollector interface {
	// RecordCreat is called after each creat operation.
	RecordCreat(isDir bool, duration time.Duration, err error)

	// RecordOpen is called after each open operation.
	RecordOpen(duration time.Duration, err error)

	// RecordClose is called after each close operation.
	RecordClose(duration time.Duration, err error)

	// RecordUnlink is called after each unlink operation.
	RecordUnlink(duration time.Duration, err error)

	// RecordRead is called after each read with the number of bytes returned.
	RecordRead(bytes int, duration time.Duration, err error)

	// RecordWrite is called after each write with the number of bytes stored.
	RecordWrite(bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreat(bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordOpen(time.Duration, error)        {}
func (NoopMetricsCollector) RecordClose(time.Duration, error)       {}
func (NoopMetricsCollector) RecordUnlink(time.Duration, error)      {}
func (NoopMetricsCollector) RecordRead(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CreatCount      atomic.Int64
	CreatDirCount   atomic.Int64
	CreatErrors     atomic.Int64
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	CloseCount      atomic.Int64
	CloseErrors     atomic.Int64
	UnlinkCount     atomic.Int64
	UnlinkErrors    atomic.Int64
	ReadCount       atomic.Int64
	ReadBytes       atomic.Int64
	ReadErrors      atomic.Int64
	ReadTotalNanos  atomic.Int64
	WriteCount      atomic.Int64
	WriteBytes      atomic.Int64
	WriteErrors     atomic.Int64
	WriteTotalNanos atomic.Int64
}

// RecordCreat implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreat(isDir bool, duration time.Duration, err error) {
	b.CreatCount.Add(1)
	if isDir {
		b.CreatDirCount.Add(1)
	}
	if err != nil {
		b.CreatErrors.Add(1)
	}
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(duration time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordClose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClose(duration time.Duration, err error) {
	b.CloseCount.Add(1)
	if err != nil {
		b.CloseErrors.Add(1)
	}
}

// RecordUnlink implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnlink(duration time.Duration, err error) {
	b.UnlinkCount.Add(1)
	if err != nil {
		b.UnlinkErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadBytes.Add(int64(bytes))
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteBytes.Add(int64(bytes))
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreatCount:    b.CreatCount.Load(),
		CreatDirCount: b.CreatDirCount.Load(),
		CreatErrors:   b.CreatErrors.Load(),
		OpenCount:     b.OpenCount.Load(),
		OpenErrors:    b.OpenErrors.Load(),
		CloseCount:    b.CloseCount.Load(),
		CloseErrors:   b.CloseErrors.Load(),
		UnlinkCount:   b.UnlinkCount.Load(),
		UnlinkErrors:  b.UnlinkErrors.Load(),
		ReadCount:     b.ReadCount.Load(),
		ReadBytes:     b.ReadBytes.Load(),
		ReadErrors:    b.ReadErrors.Load(),
		ReadAvgNanos:  avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		WriteCount:    b.WriteCount.Load(),
		WriteBytes:    b.WriteBytes.Load(),
		WriteErrors:   b.WriteErrors.Load(),
		WriteAvgNanos: avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreatCount    int64
	CreatDirCount int64
	CreatErrors   int64
	OpenCount     int64
	OpenErrors    int64
	CloseCount    int64
	CloseErrors   int64
	UnlinkCount   int64
	UnlinkErrors  int64
	ReadCount     int64
	ReadBytes     int64
	ReadErrors    int64
	ReadAvgNanos  int64
	WriteCount    int64
	WriteBytes    int64
	WriteErrors   int64
	WriteAvgNanos int64
}
