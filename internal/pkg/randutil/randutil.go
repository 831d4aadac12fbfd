// Package randutil provides the random source shared by the signal
// generators and the scheduler. Production code uses the goroutine-safe
// global generator; tests inject a seeded source for reproducibility.
package randutil

import (
	"math/rand/v2"
	"sync"
)

// Source is the subset of math/rand/v2 the generators draw from.
type Source interface {
	Float64() float64
	IntN(n int) int
	Int64N(n int64) int64
}

type globalSource struct{}

func (globalSource) Float64() float64     { return rand.Float64() }
func (globalSource) IntN(n int) int       { return rand.IntN(n) }
func (globalSource) Int64N(n int64) int64 { return rand.Int64N(n) }

// Default returns a Source backed by the global generator.
func Default() Source { return globalSource{} }

// lockedSource serializes access to a seeded *rand.Rand.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *lockedSource) Int64N(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Int64N(n)
}

// Seeded returns a deterministic Source, safe for concurrent use.
func Seeded(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Between returns a uniform integer in [lo, hi]. hi < lo returns lo.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Range64 returns a uniform integer in [lo, hi).
func Range64(src Source, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + src.Int64N(hi-lo)
}

// Uniform returns a uniform float in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Pick returns a uniformly chosen element of items. items must be non-empty.
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}
