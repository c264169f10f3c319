package layer

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Prototype is a sparse filter matched by the S layers above S1.
//
// Weights is shaped (depth, rf, rf). Only the positions flagged in Active take part in
// a match; inactive weights are kept at zero.
type Prototype struct {
	Weights *tensor.Dense
	Active  []bool
}

// tap is one active weight of a prototype.
type tap struct {
	k, i, j int
	w       float64
}

// NewPrototype creates a prototype from a (depth, rf, rf) weight tensor and its active mask.
// Inactive weights are zeroed.
func NewPrototype(weights *tensor.Dense, active []bool) (Prototype, error) {
	if err := checkMap(weights); err != nil {
		return Prototype{}, errors.WithMessage(err, "bad prototype weights")
	}
	data := weights.Float64s()
	if len(active) != len(data) {
		return Prototype{}, errors.Errorf("active mask has %d entries, weights have %d", len(active), len(data))
	}
	s := weights.Shape()
	if s[1] != s[2] {
		return Prototype{}, errors.Errorf("prototype must be square, got %v", s)
	}
	for i, a := range active {
		if !a {
			data[i] = 0
		}
	}
	return Prototype{Weights: weights, Active: active}, nil
}

// Depth is the number of input channels the prototype expects.
func (p Prototype) Depth() int { return p.Weights.Shape()[0] }

// Size is the receptive field of the prototype.
func (p Prototype) Size() int { return p.Weights.Shape()[1] }

// NumActive returns the number of active weights.
func (p Prototype) NumActive() int {
	var n int
	for _, a := range p.Active {
		if a {
			n++
		}
	}
	return n
}

// Norm returns the L2 norm of the active weights.
func (p Prototype) Norm() float64 {
	var sum float64
	for i, w := range p.Weights.Float64s() {
		if p.Active[i] {
			sum += w * w
		}
	}
	return math.Sqrt(sum)
}

// Validate checks the structure of a prototype: shape, mask length, number of active
// weights, unit norm over the active weights and zeroed inactive weights.
func (p Prototype) Validate(depth, size, kept int) error {
	if p.Weights == nil {
		return errors.New("prototype has no weights")
	}
	if err := checkMap(p.Weights); err != nil {
		return err
	}
	if p.Depth() != depth {
		return errors.Wrapf(ErrDepthMismatch, "prototype has depth %d, expected %d", p.Depth(), depth)
	}
	s := p.Weights.Shape()
	if s[1] != size || s[2] != size {
		return errors.Errorf("prototype has shape %v, expected %dx%d", s, size, size)
	}
	data := p.Weights.Float64s()
	if len(p.Active) != len(data) {
		return errors.Errorf("active mask has %d entries, weights have %d", len(p.Active), len(data))
	}
	if n := p.NumActive(); n != kept {
		return errors.Errorf("prototype has %d active weights, expected %d", n, kept)
	}
	for i, a := range p.Active {
		if !a && data[i] != 0 {
			return errors.Errorf("inactive weight %d is %v", i, data[i])
		}
	}
	if n := p.Norm(); math.Abs(n-1) > 1e-6 {
		return errors.Errorf("active weights have norm %v", n)
	}
	return nil
}

// taps lists the active weights, channel by channel. Channels without any active
// weight contribute nothing.
func (p Prototype) taps() []tap {
	_, r, c := Dims(p.Weights)
	data := p.Weights.Float64s()
	retVal := make([]tap, 0, p.NumActive())
	for idx, a := range p.Active {
		if !a {
			continue
		}
		k, rem := idx/(r*c), idx%(r*c)
		retVal = append(retVal, tap{k: k, i: rem / c, j: rem % c, w: data[idx]})
	}
	return retVal
}
