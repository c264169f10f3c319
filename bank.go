package hmax

import (
	"encoding/gob"
	"io"
	"os"
	"strings"

	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	bankMagic   = "hmax"
	bankVersion = 1

	// maximum number of problems listed by Validate
	maxReported = 10
)

// FilterBank holds every filter of the pyramid together with the configuration it
// was built with. A bank is built once (see Build) or loaded (see Load) and must not be
// modified afterwards.
type FilterBank struct {
	Conf Config

	S1  [][]*tensor.Dense   // per S1 scale, one (rf, rf) Gabor filter per orientation
	S2  []layer.Prototype   // prototypes over C1
	S2b [][]layer.Prototype // per S2b scale, prototypes over C1
	S3  []layer.Prototype   // prototypes over C2
}

type bankHeader struct {
	Magic   string
	Version int
	Conf    Config
}

// Validate checks that the bank is complete and consistent with its config.
func (b *FilterBank) Validate() error {
	if err := b.Conf.Validate(); err != nil {
		return errors.Wrap(ErrInvalidBank, err.Error())
	}
	conf := b.Conf
	var errs manyErr
	add := func(err error) {
		if len(errs) < maxReported {
			errs = append(errs, err)
		}
	}

	if len(b.S1) != len(conf.S1Sizes) {
		add(errors.Errorf("S1 has %d scales, expected %d", len(b.S1), len(conf.S1Sizes)))
	}
	for s, fs := range b.S1 {
		if len(fs) != conf.Orientations {
			add(errors.Errorf("S1 scale %d has %d filters, expected %d", s, len(fs), conf.Orientations))
		}
		for o, f := range fs {
			if s >= len(conf.S1Sizes) {
				break
			}
			rf := conf.S1Sizes[s]
			if f == nil || f.Dtype() != tensor.Float64 || !f.Shape().Eq(tensor.Shape{rf, rf}) {
				add(errors.Errorf("S1 filter %d of scale %d is not a %dx%d Float64 matrix", o, s, rf, rf))
			}
		}
	}

	checkProtos := func(name string, protos []layer.Prototype, pc ProtoConf, depth int) {
		if len(protos) != pc.Count {
			add(errors.Errorf("%s has %d prototypes, expected %d", name, len(protos), pc.Count))
		}
		for i, p := range protos {
			if err := p.Validate(depth, pc.Size, pc.Kept); err != nil {
				add(errors.WithMessagef(err, "%s prototype %d", name, i))
			}
		}
	}
	checkProtos("S2", b.S2, conf.S2, conf.Orientations)
	if len(b.S2b) != len(conf.S2bSizes) {
		add(errors.Errorf("S2b has %d scales, expected %d", len(b.S2b), len(conf.S2bSizes)))
	}
	for i, protos := range b.S2b {
		if i >= len(conf.S2bSizes) {
			break
		}
		pc := ProtoConf{Count: conf.S2bCount, Size: conf.S2bSizes[i], Kept: conf.S2bKept}
		checkProtos("S2b", protos, pc, conf.Orientations)
	}
	checkProtos("S3", b.S3, conf.S3, conf.S2.Count)

	if len(errs) > 0 {
		return errors.Wrap(ErrInvalidBank, strings.TrimSpace(errs.Error()))
	}
	return nil
}

// Encode writes the bank as a gob stream: a versioned header holding the config, then
// S1, S2, S2b and S3 in that order.
func (b *FilterBank) Encode(w io.Writer) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(bankHeader{Magic: bankMagic, Version: bankVersion, Conf: b.Conf}); err != nil {
		return errors.Wrap(err, "unable to encode header")
	}
	if err := enc.Encode(b.S1); err != nil {
		return errors.Wrap(err, "unable to encode S1")
	}
	if err := enc.Encode(b.S2); err != nil {
		return errors.Wrap(err, "unable to encode S2")
	}
	if err := enc.Encode(b.S2b); err != nil {
		return errors.Wrap(err, "unable to encode S2b")
	}
	if err := enc.Encode(b.S3); err != nil {
		return errors.Wrap(err, "unable to encode S3")
	}
	return nil
}

// Decode reads a bank written by Encode. The bank is validated before it is returned.
func Decode(r io.Reader) (*FilterBank, error) {
	dec := gob.NewDecoder(r)
	var hdr bankHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, errors.Wrapf(ErrInvalidBank, "header: %v", err)
	}
	if hdr.Magic != bankMagic {
		return nil, errors.Wrapf(ErrInvalidBank, "bad magic %q", hdr.Magic)
	}
	if hdr.Version != bankVersion {
		return nil, errors.Wrapf(ErrInvalidBank, "unsupported version %d", hdr.Version)
	}

	b := &FilterBank{Conf: hdr.Conf}
	if err := dec.Decode(&b.S1); err != nil {
		return nil, errors.Wrapf(ErrInvalidBank, "S1: %v", err)
	}
	if err := dec.Decode(&b.S2); err != nil {
		return nil, errors.Wrapf(ErrInvalidBank, "S2: %v", err)
	}
	if err := dec.Decode(&b.S2b); err != nil {
		return nil, errors.Wrapf(ErrInvalidBank, "S2b: %v", err)
	}
	if err := dec.Decode(&b.S3); err != nil {
		return nil, errors.Wrapf(ErrInvalidBank, "S3: %v", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Save writes the bank into filename.
func (b *FilterBank) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = b.Encode(f); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}

// Load reads a bank from filename.
func Load(filename string) (*FilterBank, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	b, err := Decode(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading %q", filename)
	}
	return b, nil
}
