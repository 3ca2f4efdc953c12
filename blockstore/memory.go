package blockstore

import (
	"io"
	"sync"
)

// MemoryDevice is an in-memory Device for testing.
// It stores the image without any filesystem dependency.
type MemoryDevice struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryDevice creates a zeroed in-memory device of size bytes.
func NewMemoryDevice(size int64) *MemoryDevice {
	return &MemoryDevice{data: make([]byte, size)}
}

// ReadAt implements io.ReaderAt.
func (m *MemoryDevice) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes past the end are truncated.
func (m *MemoryDevice) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.ErrShortWrite
	}
	n := copy(m.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Size returns the device size in bytes.
func (m *MemoryDevice) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// Bytes returns a copy of the device contents.
func (m *MemoryDevice) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copied := make([]byte, len(m.data))
	copy(copied, m.data)
	return copied
}

// Sync is a no-op.
func (m *MemoryDevice) Sync() error { return nil }

// Close is a no-op; the contents stay readable for inspection in tests.
func (m *MemoryDevice) Close() error { return nil }
