package layer

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Stack is the output of one layer: an ordered list of response maps, one per scale.
// Each map is a (channels, rows, cols) Float64 tensor. Maps of different scales are
// allowed to have different spatial shapes but share the same channel count.
type Stack []*tensor.Dense

// NewMap allocates a zeroed (channels, rows, cols) map.
func NewMap(channels, rows, cols int) *tensor.Dense {
	return tensor.New(tensor.WithShape(channels, rows, cols), tensor.Of(tensor.Float64))
}

// FromBacking wraps a backing slice as a (channels, rows, cols) map.
func FromBacking(channels, rows, cols int, data []float64) *tensor.Dense {
	return tensor.New(tensor.WithShape(channels, rows, cols), tensor.WithBacking(data))
}

// Dims returns the (channels, rows, cols) of a map.
func Dims(m *tensor.Dense) (channels, rows, cols int) {
	s := m.Shape()
	return s[0], s[1], s[2]
}

// Channel returns the backing slice of channel k in a (channels, rows, cols) map.
// The returned slice aliases the map.
func Channel(m *tensor.Dense, k int) []float64 {
	_, r, c := Dims(m)
	data := m.Float64s()
	return data[k*r*c : (k+1)*r*c]
}

// Depth returns the common channel count of the stack.
func (s Stack) Depth() (int, error) {
	if len(s) == 0 {
		return 0, errors.New("empty stack")
	}
	d := s[0].Shape()[0]
	for i, m := range s[1:] {
		if m.Shape()[0] != d {
			return 0, errors.Wrapf(ErrDepthMismatch, "scale %d has %d channels, scale 0 has %d", i+1, m.Shape()[0], d)
		}
	}
	return d, nil
}

// Shapes lists the shape of every scale. Useful for logging.
func (s Stack) Shapes() []tensor.Shape {
	retVal := make([]tensor.Shape, len(s))
	for i, m := range s {
		retVal[i] = m.Shape().Clone()
	}
	return retVal
}

func checkMap(m *tensor.Dense) error {
	if m.Dtype() != tensor.Float64 {
		return errors.Errorf("expected Float64 map, got %v", m.Dtype())
	}
	if m.Dims() != 3 {
		return errors.Errorf("expected a (channels, rows, cols) map, got shape %v", m.Shape())
	}
	return nil
}
