package hmax

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"runtime"
	"sync"

	"github.com/gorgonia/hmax/gabor"
	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"gorgonia.org/tensor"
)

// Builder builds a filter bank from a corpus.
type Builder struct {
	Statistics

	conf   Config
	corpus Corpus
	rng    *rand.Rand
	logger *log.Logger
}

// NewBuilder creates a Builder. rng drives every random choice of the build, so a
// fixed seed yields the same bank. logger may be nil.
func NewBuilder(conf Config, corpus Corpus, rng *rand.Rand, logger *log.Logger) (*Builder, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if corpus == nil || corpus.Len() == 0 {
		return nil, ErrEmptyCorpus
	}
	if rng == nil {
		return nil, errors.New("no random source")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Builder{
		conf:   conf,
		corpus: corpus,
		rng:    rng,
		logger: logger,
	}, nil
}

// Build constructs the S1 filters and samples the S2, S2b and S3 prototypes, in that
// order. S3 prototypes are sampled from C2 stacks computed with the S2 prototypes
// already sampled.
func (b *Builder) Build() (*FilterBank, error) {
	conf := b.conf
	s1, err := gabor.Bank(conf.S1Sizes, conf.Orientations, conf.Gamma)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to build S1 filters")
	}
	bank := &FilterBank{Conf: conf, S1: s1}

	c1 := func(img *tensor.Dense) (layer.Stack, error) { return bank.c1(img) }
	if bank.S2, err = b.sample("S2", conf.S2, c1); err != nil {
		return nil, err
	}

	bank.S2b = make([][]layer.Prototype, len(conf.S2bSizes))
	for i, rf := range conf.S2bSizes {
		pc := ProtoConf{Count: conf.S2bCount, Size: rf, Kept: conf.S2bKept}
		if bank.S2b[i], err = b.sample(fmt.Sprintf("S2b/%d", rf), pc, c1); err != nil {
			return nil, err
		}
	}

	c2 := func(img *tensor.Dense) (layer.Stack, error) {
		c1, err := bank.c1(img)
		if err != nil {
			return nil, err
		}
		return bank.c2(c1)
	}
	if bank.S3, err = b.sample("S3", conf.S3, c2); err != nil {
		return nil, err
	}

	if err = bank.Validate(); err != nil {
		return nil, errors.WithMessage(err, "built an invalid bank")
	}
	return bank, nil
}

// sample draws pc.Count prototypes. The seed of every prototype is drawn up front so
// that the result does not depend on scheduling.
func (b *Builder) sample(name string, pc ProtoConf, stack StackFunc) ([]layer.Prototype, error) {
	b.logger.Printf("Sampling %d %s prototypes (rf %d, %d kept)", pc.Count, name, pc.Size, pc.Kept)
	seeds := make([]int64, pc.Count)
	for i := range seeds {
		seeds[i] = b.rng.Int63()
	}

	s := Sampler{
		Corpus:      b.corpus,
		Stack:       stack,
		Size:        pc.Size,
		Kept:        pc.Kept,
		MaxAttempts: b.conf.MaxAttempts,
	}
	protos := make([]layer.Prototype, pc.Count)
	records := make([]Record, pc.Count)

	var lock sync.Mutex
	var done int
	every := pc.Count / 10
	if every == 0 {
		every = 1
	}

	workers := b.conf.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(workers)
	for i := range protos {
		i := i
		p.Go(func() error {
			r := rand.New(rand.NewSource(seeds[i]))
			proto, rec, err := s.Sample(r)
			if err != nil {
				return errors.WithMessagef(err, "%s prototype %d", name, i)
			}
			rec.Layer, rec.Index = name, i
			protos[i], records[i] = proto, rec

			lock.Lock()
			done++
			if done%every == 0 || done == pc.Count {
				b.logger.Printf("\t%s: %d/%d", name, done, pc.Count)
			}
			lock.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	b.add(records...)
	return protos, nil
}

// Build is a shorthand for NewBuilder followed by Builder.Build.
func Build(conf Config, corpus Corpus, rng *rand.Rand) (*FilterBank, error) {
	b, err := NewBuilder(conf, corpus, rng, nil)
	if err != nil {
		return nil, err
	}
	return b.Build()
}
