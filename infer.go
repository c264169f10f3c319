package hmax

import (
	"bytes"
	"log"

	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"gorgonia.org/tensor"
)

// Activations holds the output of every layer of the pyramid for one image.
type Activations struct {
	S1, C1 layer.Stack
	S2, C2 layer.Stack
	S3     layer.Stack
	S2b    []layer.Stack // one stack per S2b scale
}

// Features reduces the activations to a feature vector.
func (a *Activations) Features() (FeatureVector, error) {
	var fv FeatureVector
	var err error
	fv.S2b = make([][]float64, len(a.S2b))
	for i, s := range a.S2b {
		if fv.S2b[i], err = layer.GlobalMax(s); err != nil {
			return FeatureVector{}, errors.WithMessagef(err, "S2b scale %d", i)
		}
	}
	if fv.S3, err = layer.GlobalMax(a.S3); err != nil {
		return FeatureVector{}, errors.WithMessage(err, "S3")
	}
	return fv, nil
}

// Inferencer computes feature vectors with a validated filter bank. It may be used
// from several goroutines at once.
type Inferencer struct {
	bank *FilterBank

	buf    bytes.Buffer
	logger *log.Logger
}

// Infer validates the bank and returns an Inferencer using it. If toLog is true the
// shapes of every layer are recorded and can be retrieved with ExecLog.
func Infer(bank *FilterBank, toLog bool) (*Inferencer, error) {
	if bank == nil {
		return nil, errors.Wrap(ErrInvalidBank, "nil bank")
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	retVal := &Inferencer{bank: bank}
	if toLog {
		retVal.logger = log.New(&retVal.buf, "", 0)
	}
	return retVal, nil
}

// Bank returns the filter bank used by the Inferencer.
func (inf *Inferencer) Bank() *FilterBank { return inf.bank }

// Infer computes the feature vector of a (rows, cols) grayscale image.
func (inf *Inferencer) Infer(img *tensor.Dense) (FeatureVector, error) {
	a, err := inf.Activations(img)
	if err != nil {
		return FeatureVector{}, err
	}
	return a.Features()
}

// Activations runs the whole pyramid on a (rows, cols) grayscale image.
func (inf *Inferencer) Activations(img *tensor.Dense) (*Activations, error) {
	b := inf.bank
	if err := b.checkImage(img); err != nil {
		return nil, err
	}

	a := new(Activations)
	var err error
	if a.S1, err = b.s1(img); err != nil {
		return nil, errors.WithMessage(err, "S1")
	}
	inf.trace("S1", a.S1)
	if a.C1, err = layer.Pool(a.S1, b.Conf.Pool); err != nil {
		return nil, errors.WithMessage(err, "C1")
	}
	inf.trace("C1", a.C1)

	// The S2b branches and the S2-C2-S3 branch only share C1.
	a.S2b = make([]layer.Stack, len(b.S2b))
	p := pool.New().WithErrors()
	for i := range b.S2b {
		i := i
		p.Go(func() (err error) {
			if a.S2b[i], err = layer.Match(a.C1, b.S2b[i], b.Conf.SigmaS); err != nil {
				return errors.WithMessagef(err, "S2b scale %d", i)
			}
			return nil
		})
	}
	p.Go(func() (err error) {
		if a.S2, err = layer.Match(a.C1, b.S2, b.Conf.SigmaS); err != nil {
			return errors.WithMessage(err, "S2")
		}
		if a.C2, err = layer.Pool(a.S2, b.Conf.Pool); err != nil {
			return errors.WithMessage(err, "C2")
		}
		if a.S3, err = layer.Match(a.C2, b.S3, b.Conf.SigmaS); err != nil {
			return errors.WithMessage(err, "S3")
		}
		return nil
	})
	if err = p.Wait(); err != nil {
		return nil, err
	}
	for i, s := range a.S2b {
		inf.trace("S2b", s, b.Conf.S2bSizes[i])
	}
	inf.trace("S2", a.S2)
	inf.trace("C2", a.C2)
	inf.trace("S3", a.S3)
	return a, nil
}

// ExecLog returns the recorded layer shapes. It must not be called concurrently with Infer.
func (inf *Inferencer) ExecLog() string { return inf.buf.String() }

func (inf *Inferencer) trace(name string, s layer.Stack, args ...interface{}) {
	if inf.logger == nil {
		return
	}
	if len(args) > 0 {
		inf.logger.Printf("%s %v: %v", name, args, s.Shapes())
		return
	}
	inf.logger.Printf("%s: %v", name, s.Shapes())
}

func (b *FilterBank) checkImage(img *tensor.Dense) error {
	if img == nil {
		return errors.New("nil image")
	}
	if img.Dims() != 2 || img.Dtype() != tensor.Float64 {
		return errors.Errorf("expected a 2D Float64 image, got %v of %v", img.Shape(), img.Dtype())
	}
	size := b.Conf.MinImageSize()
	if rows, cols := img.Shape()[0], img.Shape()[1]; rows < size || cols < size {
		return errors.Wrapf(ErrImageTooSmall, "image is %dx%d, needs at least %dx%d", rows, cols, size, size)
	}
	return nil
}

func (b *FilterBank) s1(img *tensor.Dense) (layer.Stack, error) {
	return layer.S1(img, b.S1, b.Conf.SigmaS1)
}

func (b *FilterBank) c1(img *tensor.Dense) (layer.Stack, error) {
	if err := b.checkImage(img); err != nil {
		return nil, err
	}
	s1, err := b.s1(img)
	if err != nil {
		return nil, err
	}
	return layer.Pool(s1, b.Conf.Pool)
}

func (b *FilterBank) c2(c1 layer.Stack) (layer.Stack, error) {
	s2, err := layer.Match(c1, b.S2, b.Conf.SigmaS)
	if err != nil {
		return nil, err
	}
	return layer.Pool(s2, b.Conf.Pool)
}
