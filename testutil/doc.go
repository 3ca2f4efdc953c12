// Package testutil provides seeded random workloads for diskvfs tests.
//
// This package is intended for use in tests only.
//
//	rng := testutil.NewRNG(4711)
//	name := rng.Name(6)              // short lowercase entry name
//	data := rng.Bytes(rng.FileSize(64 * 1024))
//
// Runs are reproducible: a failing test can log rng.Seed() and replay it.
package testutil
