package layout

import (
	"errors"
	"fmt"

	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/hash"
)

// Checksums use CRC32-Castagnoli. They detect accidental corruption of
// the control block, not tampering.

// CalculateChecksum calculates the CRC32C checksum of data.
func CalculateChecksum(data []byte) uint32 {
	return hash.CRC32C(data)
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Unwrap reports a checksum mismatch as corruption.
func (e *ChecksumMismatchError) Unwrap() error { return errs.ErrCorrupt }

// IsChecksumMismatch returns true if err is or wraps a checksum mismatch error.
func IsChecksumMismatch(err error) bool {
	var target *ChecksumMismatchError
	return errors.As(err, &target)
}
