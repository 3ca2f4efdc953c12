// Package conv provides safe integer type conversion utilities.
//
// These functions perform bounds checking to prevent integer overflow/underflow
// when converting between signed/unsigned and different bit-width integer types.
//
// Use cases:
//   - Validating untrusted data (snapshot manifests, command-line flags)
//   - Converting between Go's uint (platform-dependent) and fixed-width types
//
// For conversions that are provably safe by domain constraints (e.g., block
// indices below the block count), use direct type casts instead.
package conv
