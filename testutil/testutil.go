package testutil

import (
	"math/rand/v2"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewPCG(r.seed, r.seed^0x9e3779b97f4a7c15))
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// IntN returns a non-negative pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Float64 returns a pseudo-random number in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with values in [0, 1).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// FillGaussian fills dst with standard normal values.
func (r *RNG) FillGaussian(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.NormFloat64()
	}
}

// Batch generates particles rows of width uniform values, row-major.
func (r *RNG) Batch(particles, width int) []float64 {
	states := make([]float64, particles*width)
	r.FillUniform(states)
	return states
}

// Ancestors draws particles ancestor indices uniformly from [0, previous).
func (r *RNG) Ancestors(particles, previous int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ancestors := make([]int, particles)
	for i := range ancestors {
		ancestors[i] = r.rand.IntN(previous)
	}
	return ancestors
}

// Survivors draws particles ancestor indices from a small random subset of
// [0, previous), mimicking the lineage collapse of resampling.
func (r *RNG) Survivors(particles, previous, survivors int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	survivors = max(1, min(survivors, previous))
	pool := r.rand.Perm(previous)[:survivors]

	ancestors := make([]int, particles)
	for i := range ancestors {
		ancestors[i] = pool[r.rand.IntN(survivors)]
	}
	return ancestors
}

// Identity returns the ancestor vector [0, 1, ..., particles-1].
func Identity(particles int) []int {
	ancestors := make([]int, particles)
	for i := range ancestors {
		ancestors[i] = i
	}
	return ancestors
}

// History stores the complete, uncompacted trajectory of every particle.
// It is the reference an ancestry cache must agree with.
type History struct {
	width int
	paths [][]float64
}

// NewHistory creates an empty history of the given width.
func NewHistory(width int) *History {
	return &History{width: width}
}

// Append records one time step. ancestors is ignored for the first step.
func (h *History) Append(states []float64, ancestors []int) {
	n := len(states) / h.width
	paths := make([][]float64, n)
	for i := range n {
		var prefix []float64
		if len(h.paths) > 0 {
			prefix = h.paths[ancestors[i]]
		}
		path := make([]float64, 0, len(prefix)+h.width)
		path = append(path, prefix...)
		paths[i] = append(path, states[i*h.width:(i+1)*h.width]...)
	}
	h.paths = paths
}

// Particles returns the size of the latest step.
func (h *History) Particles() int {
	return len(h.paths)
}

// Trajectory returns the time-major trajectory of particle p.
func (h *History) Trajectory(p int) []float64 {
	return h.paths[p]
}
