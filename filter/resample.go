package filter

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Resampler draws ancestor indices from normalized weights.
type Resampler interface {
	// Resample fills out with indices drawn according to weights, which sum
	// to one. len(out) may differ from len(weights).
	Resample(rng *rand.Rand, weights []float64, out []int)
}

// Systematic is systematic resampling: one uniform draw, evenly spaced
// pointers into the cumulative weights.
type Systematic struct{}

// Resample implements Resampler.
func (Systematic) Resample(rng *rand.Rand, weights []float64, out []int) {
	n := len(out)
	if n == 0 {
		return
	}

	step := 1 / float64(n)
	u := rng.Float64() * step
	cum := weights[0]
	j := 0
	for i := range out {
		for u > cum && j < len(weights)-1 {
			j++
			cum += weights[j]
		}
		out[i] = j
		u += step
	}
}

// Multinomial draws every index independently.
type Multinomial struct{}

// Resample implements Resampler.
func (Multinomial) Resample(rng *rand.Rand, weights []float64, out []int) {
	cdf := make([]float64, len(weights))
	var cum float64
	for i, w := range weights {
		cum += w
		cdf[i] = cum
	}

	last := len(weights) - 1
	for i := range out {
		j := sort.SearchFloat64s(cdf, rng.Float64()*cum)
		out[i] = min(j, last)
	}
}

// normalize turns log weights into weights summing to one. It returns the
// log of the sum of the unnormalized weights.
func normalize(logw, w []float64) float64 {
	maxLog := math.Inf(-1)
	for _, lw := range logw {
		maxLog = max(maxLog, lw)
	}
	if math.IsInf(maxLog, -1) {
		uniform := 1 / float64(len(w))
		for i := range w {
			w[i] = uniform
		}
		return maxLog
	}

	var sum float64
	for i, lw := range logw {
		w[i] = math.Exp(lw - maxLog)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return maxLog + math.Log(sum)
}

// ess returns the effective sample size of normalized weights.
func ess(w []float64) float64 {
	var sq float64
	for _, wi := range w {
		sq += wi * wi
	}
	if sq == 0 {
		return 0
	}
	return 1 / sq
}
