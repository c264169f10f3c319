package gabor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func TestFilterNormalized(t *testing.T) {
	for size := 7; size <= 29; size += 2 {
		for o := 0; o < 4; o++ {
			f := Filter{Size: size, Gamma: DefaultGamma, Angle: float64(o) * math.Pi / 4}
			w := f.Weights()
			assert.Len(t, w, size*size)
			assert.InDelta(t, 0, stat.Mean(w, nil), 1e-12, "size %d orientation %d", size, o)
			assert.InDelta(t, 1, floats.Norm(w, 2), 1e-12, "size %d orientation %d", size, o)
		}
	}
}

func TestFilterSymmetry(t *testing.T) {
	// Gabor filters with a cosine carrier are point symmetric around the centre.
	f := Filter{Size: 11, Gamma: DefaultGamma, Angle: math.Pi / 4}
	w := f.Weights()
	n := f.Size
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, w[i*n+j], w[(n-1-i)*n+(n-1-j)], 1e-12)
		}
	}
}

func TestFilterDeterministic(t *testing.T) {
	f := Filter{Size: 9, Gamma: DefaultGamma, Angle: math.Pi / 2}
	assert.Equal(t, f.Weights(), f.Weights())
}

func TestFilterParams(t *testing.T) {
	f := Filter{Size: 7}
	assert.InDelta(t, 0.0036*49+0.35*7+0.18, f.Sigma(), 1e-12)
	assert.InDelta(t, f.Sigma()/0.8, f.Lambda(), 1e-12)
}

func TestBank(t *testing.T) {
	sizes := []int{7, 9, 11}
	bank, err := Bank(sizes, 4, DefaultGamma)
	require.NoError(t, err)
	require.Len(t, bank, len(sizes))
	for s, fs := range bank {
		require.Len(t, fs, 4)
		for _, f := range fs {
			assert.Equal(t, []int{sizes[s], sizes[s]}, []int(f.Shape()))
		}
	}

	// orientations differ
	assert.NotEqual(t, bank[0][0].Float64s(), bank[0][1].Float64s())

	_, err = Bank([]int{7, 0}, 4, DefaultGamma)
	assert.Error(t, err)
	_, err = Bank(sizes, 0, DefaultGamma)
	assert.Error(t, err)
}
