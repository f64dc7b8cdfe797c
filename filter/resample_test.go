package filter

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func counts(idx []int, n int) []int {
	c := make([]int, n)
	for _, i := range idx {
		c[i]++
	}
	return c
}

func TestSystematic(t *testing.T) {
	rng := newRand(1)
	out := make([]int, 10)

	for i := 0; i < 20; i++ {
		Systematic{}.Resample(rng, []float64{0.1, 0.6, 0.3}, out)
		c := counts(out, 3)
		assert.InDelta(t, 1, c[0], 1)
		assert.InDelta(t, 6, c[1], 1)
		assert.InDelta(t, 3, c[2], 1)
		assert.IsNonDecreasing(t, out)
	}

	Systematic{}.Resample(rng, []float64{0, 1, 0}, out)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, out)

	Systematic{}.Resample(rng, []float64{1}, nil)
}

func TestMultinomial(t *testing.T) {
	rng := newRand(2)
	out := make([]int, 1000)

	Multinomial{}.Resample(rng, []float64{0, 1, 0}, out)
	assert.Equal(t, []int{0, 1000, 0}, counts(out, 3))

	Multinomial{}.Resample(rng, []float64{0.25, 0.75}, out)
	c := counts(out, 2)
	assert.InDelta(t, 250, c[0], 60)
	assert.InDelta(t, 750, c[1], 60)
}

func TestNormalize(t *testing.T) {
	w := make([]float64, 2)
	lse := normalize([]float64{0, 0}, w)
	assert.InDelta(t, math.Log(2), lse, 1e-12)
	assert.Equal(t, []float64{0.5, 0.5}, w)
	assert.InDelta(t, 2, ess(w), 1e-12)

	// Large log weights do not overflow.
	lse = normalize([]float64{1000, 1000 + math.Log(3)}, w)
	assert.InDelta(t, 1000+math.Log(4), lse, 1e-9)
	assert.InDelta(t, 0.25, w[0], 1e-12)
	assert.InDelta(t, 0.75, w[1], 1e-12)

	lse = normalize([]float64{math.Inf(-1), math.Inf(-1)}, w)
	assert.True(t, math.IsInf(lse, -1))
	assert.Equal(t, []float64{0.5, 0.5}, w)

	assert.InDelta(t, math.Log(3), logSumExp([]float64{0, 0, 0}), 1e-12)
}
