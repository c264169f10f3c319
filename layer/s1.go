package layer

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/iter"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf64"
)

// normEps is added to every local energy term on top of the configured sigma.
const normEps = 1e-9

// S1 computes the oriented edge responses of a grayscale image.
//
// filters holds, for every scale, one square filter per orientation. The output has
// one map per scale, shaped (orientations, rows-rf+1, cols-rf+1), where every value is
//
//	|img ⋆ f| / (sqrt(Σ img² over the window) + 1e-9 + sigma)
//
// The image must be at least as large as the largest filter in both dimensions.
func S1(img *tensor.Dense, filters [][]*tensor.Dense, sigma float64) (Stack, error) {
	if img.Dims() != 2 || img.Dtype() != tensor.Float64 {
		return nil, errors.Errorf("expected a 2D Float64 image, got %v of %v", img.Shape(), img.Dtype())
	}
	rows, cols := img.Shape()[0], img.Shape()[1]
	for s, fs := range filters {
		if len(fs) == 0 {
			return nil, errors.Errorf("scale %d has no filters", s)
		}
		rf := fs[0].Shape()[0]
		if rows < rf || cols < rf {
			return nil, errors.Wrapf(ErrImageTooSmall, "image is %dx%d, S1 scale %d needs %dx%d", rows, cols, s, rf, rf)
		}
	}

	data := img.Float64s()
	sq := make([]float64, len(data))
	copy(sq, data)
	vecf64.Mul(sq, data)
	spec := Transform(data, rows, cols)

	// local energy per scale
	norms := make([][]float64, len(filters))
	normErrs := make([]error, len(filters))
	iter.ForEachIdx(norms, func(s int, norm *[]float64) {
		rf := filters[s][0].Shape()[0]
		n := BoxSum(sq, rows, cols, rf, rf)
		for i, v := range n {
			if v < 0 {
				n[i] = 0
			}
		}
		vecf64.Sqrt(n)
		floats.AddConst(normEps+sigma, n)
		if len(n) > 0 && floats.Min(n) <= 0 {
			normErrs[s] = errors.Wrapf(ErrDegenerate, "non-positive local energy at S1 scale %d", s)
		}
		*norm = n
	})
	if err := firstErr(normErrs); err != nil {
		return nil, err
	}

	type job struct{ scale, orientation int }
	var jobs []job
	retVal := make(Stack, len(filters))
	for s, fs := range filters {
		rf := fs[0].Shape()[0]
		or, oc := ValidSize(rows, cols, rf, rf)
		retVal[s] = NewMap(len(fs), or, oc)
		for o := range fs {
			jobs = append(jobs, job{s, o})
		}
	}

	errs := make([]error, len(jobs))
	iter.ForEachIdx(jobs, func(i int, j *job) {
		f := filters[j.scale][j.orientation]
		rf := f.Shape()[0]
		resp := spec.CorrelateValid(f.Float64s(), rf, rf)
		for k, v := range resp {
			resp[k] = math.Abs(v)
		}
		vecf64.Div(resp, norms[j.scale])
		if len(resp) > 0 && floats.Max(resp) >= 1 {
			errs[i] = errors.Wrapf(ErrDegenerate, "S1 response %v >= 1 at scale %d orientation %d", floats.Max(resp), j.scale, j.orientation)
			return
		}
		copy(Channel(retVal[j.scale], j.orientation), resp)
	})
	if err := firstErr(errs); err != nil {
		return nil, err
	}
	return retVal, nil
}

func firstErr(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
