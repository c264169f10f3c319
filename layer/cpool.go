package layer

import (
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/iter"
	"gorgonia.org/vecf64"
)

// PoolConf holds the constants of a C (complex cell) pooling stage. Within one
// application of Pool, scale pair p is pooled over a window of Start + p*Step pixels
// and subsampled every (window - StrideOffset) pixels.
type PoolConf struct {
	Start        int `json:"start"`
	Step         int `json:"step"`
	StrideOffset int `json:"stride_offset"`
}

// DefaultPoolConf returns the classic HMAX constants: windows 8, 10, 12... subsampled at window-5.
func DefaultPoolConf() PoolConf { return PoolConf{Start: 8, Step: 2, StrideOffset: 5} }

// IsValid returns true if every pooling window and stride is positive.
func (conf PoolConf) IsValid() bool {
	return conf.Start > 0 && conf.Step >= 0 && conf.Start-conf.StrideOffset > 0
}

// Window returns the pooling window and stride used for scale pair p.
func (conf PoolConf) Window(p int) (size, stride int) {
	size = conf.Start + p*conf.Step
	stride = size - conf.StrideOffset
	if stride < 1 {
		stride = 1
	}
	return size, stride
}

// Pool merges each pair of neighbouring scales of the stack.
//
// The second map of a pair is resized (bicubic) to the size of the first, the two are
// combined with a pointwise max and then max pooled over a square window, subsampled
// from the origin. An unpaired last scale is pooled with itself. The result has
// ceil(len(s)/2) scales.
func Pool(s Stack, conf PoolConf) (Stack, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid pooling constants %+v", conf)
	}
	depth, err := s.Depth()
	if err != nil {
		return nil, errors.WithMessage(err, "cannot pool")
	}
	for _, m := range s {
		if err := checkMap(m); err != nil {
			return nil, err
		}
	}

	type job struct{ pair, channel int }
	pairs := (len(s) + 1) / 2
	retVal := make(Stack, pairs)
	jobs := make([]job, 0, pairs*depth)
	for p := 0; p < pairs; p++ {
		_, r, c := Dims(s[2*p])
		_, stride := conf.Window(p)
		retVal[p] = NewMap(depth, subsampled(r, stride), subsampled(c, stride))
		for k := 0; k < depth; k++ {
			jobs = append(jobs, job{p, k})
		}
	}

	iter.ForEachIdx(jobs, func(_ int, j *job) {
		fine := s[2*j.pair]
		coarse := fine
		if 2*j.pair+1 < len(s) {
			coarse = s[2*j.pair+1]
		}
		_, r, c := Dims(fine)
		_, cr, cc := Dims(coarse)

		merged := Resize(Channel(coarse, j.channel), cr, cc, r, c, Bicubic)
		vecf64.Max(merged, Channel(fine, j.channel))

		size, stride := conf.Window(j.pair)
		copy(Channel(retVal[j.pair], j.channel), MaxPool(merged, r, c, size, stride))
	})
	return retVal, nil
}

// MaxPool computes the maximum over a size×size window around every stride-th
// position of a rows×cols map, starting at (0, 0). The window covers offsets
// [-size/2, size/2-1] and is clipped at the borders.
func MaxPool(m []float64, rows, cols, size, stride int) []float64 {
	or, oc := subsampled(rows, stride), subsampled(cols, stride)
	lo, hi := size/2, size-size/2-1

	// horizontal pass on the subsampled columns
	h := make([]float64, rows*oc)
	for y := 0; y < rows; y++ {
		line := m[y*cols : (y+1)*cols]
		for ox := 0; ox < oc; ox++ {
			x := ox * stride
			h[y*oc+ox] = maxOver(line, clip(x-lo, cols), clip(x+hi, cols))
		}
	}

	retVal := make([]float64, or*oc)
	for oy := 0; oy < or; oy++ {
		y := oy * stride
		start, end := clip(y-lo, rows), clip(y+hi, rows)
		out := retVal[oy*oc : (oy+1)*oc]
		copy(out, h[start*oc:(start+1)*oc])
		for yy := start + 1; yy <= end; yy++ {
			vecf64.Max(out, h[yy*oc:(yy+1)*oc])
		}
	}
	return retVal
}

func subsampled(n, stride int) int { return (n + stride - 1) / stride }

func clip(i, n int) int {
	switch {
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}

func maxOver(a []float64, start, end int) float64 {
	retVal := a[start]
	for _, v := range a[start+1 : end+1] {
		if v > retVal {
			retVal = v
		}
	}
	return retVal
}
