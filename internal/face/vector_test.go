package face

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine_Identical(t *testing.T) {
	v := []float32{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosine_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
}

func TestCosine_Opposite(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}
	assert.InDelta(t, -1.0, Cosine(a, b), 1e-9)
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{0.3, -0.7, 0.64}
	b := []float32{0.1, 0.9, -0.42}
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
}

func TestCosine_ZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	assert.Equal(t, 0.0, Cosine(a, b))
}

func TestCosine_DimensionMismatch(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosine_ScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	scaled := []float32{10, 20, 30}
	assert.InDelta(t, 1.0, Cosine(a, scaled), 1e-6)
}

func TestNormalize_UnitLength(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestMean(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{3, 4, 5},
	}
	mean := Mean(vectors)
	require.Len(t, mean, 3)
	assert.InDelta(t, 2.0, float64(mean[0]), 1e-6)
	assert.InDelta(t, 3.0, float64(mean[1]), 1e-6)
	assert.InDelta(t, 4.0, float64(mean[2]), 1e-6)
}

func TestMean_Empty(t *testing.T) {
	assert.Nil(t, Mean(nil))
}

func TestMean_Single(t *testing.T) {
	v := []float32{0.1, 0.2}
	mean := Mean([][]float32{v})
	assert.InDelta(t, float64(v[0]), float64(mean[0]), 1e-6)
	assert.InDelta(t, float64(v[1]), float64(mean[1]), 1e-6)
}
