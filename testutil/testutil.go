package testutil

import (
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Chance reports true with probability p.
func (r *RNG) Chance(p float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64() < p
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

const nameAlphabet = "abcdefgh"

// Name returns a name of 1 to maxLen characters from a small alphabet, so
// that repeated calls collide often.
func (r *RNG) Name(maxLen int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := make([]byte, 1+r.rand.Intn(max(maxLen, 1)))
	for i := range b {
		b[i] = nameAlphabet[r.rand.Intn(len(nameAlphabet))]
	}
	return string(b)
}

// FileSize returns a size in [0, limit) skewed towards small files: most
// sizes are below one kilobyte, a few approach the limit.
func (r *RNG) FileSize(limit int) int {
	if limit <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	const buckets = 16
	b := r.zipfLocked(buckets, 1.2)
	lo := limit * b / buckets
	hi := limit * (b + 1) / buckets
	return lo + r.rand.Intn(max(hi-lo, 1))
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Harmonic number with exponent s.
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform.
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}
