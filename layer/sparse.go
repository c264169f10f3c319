package layer

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/iter"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/vecf64"
)

// Match runs a set of sparse prototypes over every scale of a stack (an S layer).
//
// For every position the response of a prototype is a normalized cross correlation
// restricted to its active weights:
//
//	Σ w·x / (sqrt(Σ x² + 1e-9) + sigma)
//
// where both sums run over the active positions only. Scales whose maps are not larger
// than the prototypes' receptive field yield a (len(protos), 1, 1) map of zeros.
// The output map of every other scale is shaped (len(protos), rows-rf+1, cols-rf+1).
func Match(s Stack, protos []Prototype, sigma float64) (Stack, error) {
	if len(protos) == 0 {
		return nil, errors.New("no prototypes to match")
	}
	depth, err := s.Depth()
	if err != nil {
		return nil, errors.WithMessage(err, "cannot match")
	}
	rf := protos[0].Size()
	for i, p := range protos {
		if p.Depth() != depth {
			return nil, errors.Wrapf(ErrDepthMismatch, "prototype %d has depth %d, stack has %d", i, p.Depth(), depth)
		}
		if p.Size() != rf {
			return nil, errors.Errorf("prototype %d has size %d, prototype 0 has %d", i, p.Size(), rf)
		}
	}

	taps := make([][]tap, len(protos))
	for i, p := range protos {
		taps[i] = p.taps()
	}

	type job struct{ scale, proto int }
	var jobs []job
	retVal := make(Stack, len(s))
	squares := make([][]float64, len(s))
	for sc, m := range s {
		if err := checkMap(m); err != nil {
			return nil, err
		}
		_, r, c := Dims(m)
		if r <= rf || c <= rf {
			retVal[sc] = NewMap(len(protos), 1, 1)
			continue
		}
		or, oc := ValidSize(r, c, rf, rf)
		retVal[sc] = NewMap(len(protos), or, oc)

		in := m.Float64s()
		sq := make([]float64, len(in))
		copy(sq, in)
		vecf64.Mul(sq, in)
		squares[sc] = sq
		for p := range protos {
			jobs = append(jobs, job{sc, p})
		}
	}

	errs := make([]error, len(jobs))
	iter.ForEachIdx(jobs, func(idx int, j *job) {
		in := s[j.scale].Float64s()
		_, r, c := Dims(s[j.scale])
		_, or, oc := Dims(retVal[j.scale])

		out := Channel(retVal[j.scale], j.proto)
		den := borrowBuf(len(out))
		defer returnBuf(den)
		sq := squares[j.scale]
		for _, t := range taps[j.proto] {
			for y := 0; y < or; y++ {
				start := t.k*r*c + (y+t.i)*c + t.j
				floats.AddScaled(out[y*oc:(y+1)*oc], t.w, in[start:start+oc])
				vecf64.Add(den[y*oc:(y+1)*oc], sq[start:start+oc])
			}
		}
		floats.AddConst(normEps, den)
		vecf64.Sqrt(den)
		floats.AddConst(sigma, den)
		vecf64.Div(out, den)

		for _, v := range out {
			if math.Abs(v) >= 1 {
				errs[idx] = errors.Wrapf(ErrDegenerate, "response %v of prototype %d at scale %d", v, j.proto, j.scale)
				return
			}
		}
	})
	if err := firstErr(errs); err != nil {
		return nil, err
	}
	return retVal, nil
}
