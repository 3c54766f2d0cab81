// Package clock isolates wall/monotonic time and randomness behind small
// interfaces so the pipeline stages are testable under a virtual clock,
// per the design note that randomly generated or mock results must not
// stand in for real network effects unobserved by tests. Split out of
// internal/engine so internal/quote (which needs a Clock to timestamp
// and evict cache entries) does not import internal/engine, which in
// turn wires *quote.Registry into its own Deps.
package clock

import (
	"math/rand"
	"sync"
	"time"
)

// Clock isolates wall/monotonic time behind an interface.
type Clock interface {
	// Now returns a monotonic duration since an arbitrary, fixed epoch.
	Now() time.Duration
	// Sleep suspends the caller for d, cooperatively (honors ctx
	// cancellation in callers that select on ctx.Done()).
	Sleep(d time.Duration)
}

// RealClock is backed by the OS monotonic clock.
type RealClock struct {
	start time.Time
}

// NewRealClock returns a Clock whose zero point is the moment of creation.
func NewRealClock() *RealClock { return &RealClock{start: time.Now()} }

func (c *RealClock) Now() time.Duration     { return time.Since(c.start) }
func (c *RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// VirtualClock lets tests advance time deterministically without real
// sleeps.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func NewVirtualClock(start time.Duration) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep on a VirtualClock advances time immediately rather than blocking;
// tests that need to observe intermediate state should call Advance
// directly instead.
func (c *VirtualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Advance moves the virtual clock forward by d and returns the new value.
func (c *VirtualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Rng isolates randomness (jitter, randomized delay) behind an interface
// so tests can supply a scripted or seeded source.
type Rng interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// MathRng wraps math/rand with its own lock, since *rand.Rand is not
// safe for concurrent use and many per-provider actors share one source.
type MathRng struct {
	mu  sync.Mutex
	src *rand.Rand
}

func NewMathRng(seed int64) *MathRng {
	return &MathRng{src: rand.New(rand.NewSource(seed))}
}

func (r *MathRng) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *MathRng) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}
