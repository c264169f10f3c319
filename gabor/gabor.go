// Package gabor builds the oriented Gabor filters of the first (S1) layer.
package gabor

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

// DefaultGamma is the spatial aspect ratio of the filters.
const DefaultGamma = 0.3

// Filter describes one square Gabor filter.
type Filter struct {
	Size  int     // receptive field in pixels
	Gamma float64 // aspect ratio
	Angle float64 // orientation in radians
}

// Sigma is the width of the Gaussian envelope. It grows with the receptive field.
func (f Filter) Sigma() float64 {
	rf := float64(f.Size)
	return 0.0036*rf*rf + 0.35*rf + 0.18
}

// Lambda is the wavelength of the carrier.
func (f Filter) Lambda() float64 { return f.Sigma() / 0.8 }

// Weights returns the row major Size×Size filter.
//
// Pixels further than Size/2 from the centre are zeroed before the filter is shifted
// to zero mean and scaled to unit L2 norm.
func (f Filter) Weights() []float64 {
	n := f.Size
	half := n / 2
	sigma, lambda := f.Sigma(), f.Lambda()
	cos, sin := math.Cos(f.Angle), math.Sin(f.Angle)

	retVal := make([]float64, n*n)
	for i := 0; i < n; i++ {
		x := float64(i - half)
		for j := 0; j < n; j++ {
			y := float64(j - half)
			if math.Sqrt(x*x+y*y) > float64(half) {
				continue
			}
			x2 := x*cos + y*sin
			y2 := -x*sin + y*cos
			retVal[i*n+j] = math.Exp(-(x2*x2+f.Gamma*f.Gamma*y2*y2)/(2*sigma*sigma)) * math.Cos(2*math.Pi*x2/lambda)
		}
	}

	floats.AddConst(-stat.Mean(retVal, nil), retVal)
	if norm := floats.Norm(retVal, 2); norm > 0 {
		floats.Scale(1/norm, retVal)
	}
	return retVal
}

// Tensor returns the filter as a (Size, Size) tensor.
func (f Filter) Tensor() *tensor.Dense {
	return tensor.New(tensor.WithShape(f.Size, f.Size), tensor.WithBacking(f.Weights()))
}

// Bank builds, for every receptive field size, one filter per orientation. The
// orientations are evenly spaced over [0, π).
func Bank(sizes []int, orientations int, gamma float64) ([][]*tensor.Dense, error) {
	if orientations <= 0 {
		return nil, errors.Errorf("need at least one orientation, got %d", orientations)
	}
	retVal := make([][]*tensor.Dense, len(sizes))
	for s, size := range sizes {
		if size <= 0 {
			return nil, errors.Errorf("receptive field %d at scale %d is not positive", size, s)
		}
		retVal[s] = make([]*tensor.Dense, orientations)
		for o := range retVal[s] {
			f := Filter{Size: size, Gamma: gamma, Angle: float64(o) * math.Pi / float64(orientations)}
			retVal[s][o] = f.Tensor()
		}
	}
	return retVal, nil
}
