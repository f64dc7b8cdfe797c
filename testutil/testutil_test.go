package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch(t *testing.T) {
	rng := NewRNG(4711)

	b := rng.Batch(8, 3)

	assert.Len(t, b, 24)
	for _, v := range b {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestAncestors(t *testing.T) {
	rng := NewRNG(4711)

	a := rng.Ancestors(100, 7)
	assert.Len(t, a, 100)
	for _, v := range a {
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 7)
	}
}

func TestSurvivors(t *testing.T) {
	rng := NewRNG(4711)

	a := rng.Survivors(50, 20, 2)
	distinct := map[int]struct{}{}
	for _, v := range a {
		distinct[v] = struct{}{}
	}
	assert.LessOrEqual(t, len(distinct), 2)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Batch(1, 10)

	rng.Reset()
	v2 := rng.Batch(1, 10)

	assert.Equal(t, v1, v2)
	assert.Equal(t, uint64(4711), rng.Seed())
}

func TestHistory(t *testing.T) {
	h := NewHistory(1)

	h.Append([]float64{1, 2, 3}, nil)
	h.Append([]float64{4, 5, 6}, []int{2, 2, 0})

	require.Equal(t, 3, h.Particles())
	assert.Equal(t, []float64{3, 4}, h.Trajectory(0))
	assert.Equal(t, []float64{3, 5}, h.Trajectory(1))
	assert.Equal(t, []float64{1, 6}, h.Trajectory(2))
	assert.Equal(t, []int{0, 1, 2}, Identity(3))
}
