package hmax

import (
	"math"
	"math/rand"

	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
)

// Sampler cuts prototypes out of the activations of randomly chosen corpus images.
type Sampler struct {
	Corpus      Corpus
	Stack       StackFunc // computes the stack to sample from
	Size        int       // receptive field of the prototypes
	Kept        int       // active weights per prototype
	MaxAttempts int       // samples drawn before giving up on all-zero patches
}

// Sample draws one prototype.
//
// An image is picked at random and turned into a stack. A scale whose maps are larger
// than Size is then picked, and a Size×Size×depth patch is cut at a random offset. Kept
// weights of the patch, chosen at random, are made active and normalized to unit L2
// norm. The others are zeroed. Patches whose active weights are all zero are drawn again.
func (s Sampler) Sample(r *rand.Rand) (layer.Prototype, Record, error) {
	var rec Record
	if s.Corpus == nil || s.Corpus.Len() == 0 {
		return layer.Prototype{}, rec, ErrEmptyCorpus
	}
	for rec.Attempts = 1; rec.Attempts <= s.MaxAttempts; rec.Attempts++ {
		idx := r.Intn(s.Corpus.Len())
		rec.Image = s.Corpus.Name(idx)
		img, err := s.Corpus.Image(idx)
		if err != nil {
			return layer.Prototype{}, rec, errors.WithMessagef(err, "unable to read %v", rec.Image)
		}
		stack, err := s.Stack(img)
		if err != nil {
			return layer.Prototype{}, rec, errors.WithMessagef(err, "unable to process %v", rec.Image)
		}

		var scales []int
		for sc, m := range stack {
			if _, rows, cols := layer.Dims(m); rows > s.Size && cols > s.Size {
				scales = append(scales, sc)
			}
		}
		if len(scales) == 0 {
			return layer.Prototype{}, rec, errors.Wrapf(ErrImageTooSmall, "%v: no scale larger than %d", rec.Image, s.Size)
		}
		rec.Scale = scales[r.Intn(len(scales))]
		m := stack[rec.Scale]
		depth, rows, cols := layer.Dims(m)
		rec.Row, rec.Col = r.Intn(rows-s.Size), r.Intn(cols-s.Size)

		n := depth * s.Size * s.Size
		if s.Kept > n {
			return layer.Prototype{}, rec, errors.Wrapf(ErrInvalidConfig, "cannot keep %d of %d weights", s.Kept, n)
		}
		patch := make([]float64, n)
		for k := 0; k < depth; k++ {
			ch := layer.Channel(m, k)
			for i := 0; i < s.Size; i++ {
				start := (rec.Row+i)*cols + rec.Col
				copy(patch[(k*s.Size+i)*s.Size:(k*s.Size+i+1)*s.Size], ch[start:start+s.Size])
			}
		}

		active := make([]bool, n)
		var norm float64
		for _, i := range r.Perm(n)[:s.Kept] {
			active[i] = true
			norm += patch[i] * patch[i]
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for i := range patch {
			if active[i] {
				patch[i] /= norm
			}
		}
		p, err := layer.NewPrototype(layer.FromBacking(depth, s.Size, s.Size, patch), active)
		return p, rec, err
	}
	rec.Attempts = s.MaxAttempts
	return layer.Prototype{}, rec, errors.Wrapf(ErrDegenerate, "every patch was zero after %d attempts", s.MaxAttempts)
}
