package filter

import (
	"math"
	"math/rand/v2"
)

// Model describes the state-space model being filtered.
type Model interface {
	// Width returns the number of values in one particle state.
	Width() int

	// Init draws an initial state into x.
	Init(rng *rand.Rand, x []float64)

	// Propagate advances x in place from step t-1 to step t.
	Propagate(rng *rand.Rand, t int, x []float64)

	// LogWeight returns the log observation density of x at step t.
	LogWeight(t int, x []float64) float64
}

// RandomWalk is a Gaussian random walk observed with Gaussian noise around
// a target that moves by Drift per step in every dimension.
type RandomWalk struct {
	Dim      int
	Sigma    float64 // transition standard deviation
	ObsSigma float64 // observation standard deviation
	Drift    float64
}

var _ Model = RandomWalk{}

// Width implements Model.
func (m RandomWalk) Width() int {
	return m.Dim
}

// Init implements Model.
func (m RandomWalk) Init(rng *rand.Rand, x []float64) {
	for i := range x {
		x[i] = rng.NormFloat64() * m.Sigma
	}
}

// Propagate implements Model.
func (m RandomWalk) Propagate(rng *rand.Rand, _ int, x []float64) {
	for i := range x {
		x[i] += rng.NormFloat64() * m.Sigma
	}
}

// LogWeight implements Model.
func (m RandomWalk) LogWeight(t int, x []float64) float64 {
	target := m.Drift * float64(t)
	v := 2 * m.ObsSigma * m.ObsSigma

	var sum float64
	for _, xi := range x {
		d := xi - target
		sum += d * d
	}
	return -sum/v - float64(len(x))*0.5*math.Log(math.Pi*v)
}
