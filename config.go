package hmax

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
)

// ProtoConf configures one set of learned prototypes.
type ProtoConf struct {
	Count int `json:"count"` // number of prototypes
	Size  int `json:"size"`  // receptive field
	Kept  int `json:"kept"`  // active weights per prototype
}

// Config is the configuration of the pyramid. It is stored in every filter bank so
// that inference runs with the constants the bank was built with.
type Config struct {
	S1Sizes      []int   `json:"s1_sizes"`     // S1 receptive fields, one scale each
	Orientations int     `json:"orientations"` // Gabor orientations per scale
	Gamma        float64 `json:"gamma"`        // Gabor aspect ratio
	SigmaS1      float64 `json:"sigma_s1"`     // added to the S1 local energy
	SigmaS       float64 `json:"sigma_s"`      // added to the S2, S2b and S3 normalization

	Pool layer.PoolConf `json:"pool"`

	S2       ProtoConf `json:"s2"`
	S2bSizes []int     `json:"s2b_sizes"`
	S2bCount int       `json:"s2b_count"` // prototypes per S2b scale
	S2bKept  int       `json:"s2b_kept"`
	S3       ProtoConf `json:"s3"`

	Workers     int `json:"workers"`      // concurrent prototype samples during build. 0 is GOMAXPROCS
	MaxAttempts int `json:"max_attempts"` // resamples allowed when a patch is all zeroes
}

// DefaultConfig returns the standard HMAX configuration.
func DefaultConfig() Config {
	s1 := make([]int, 0, 12)
	for rf := 7; rf <= 29; rf += 2 {
		s1 = append(s1, rf)
	}
	return Config{
		S1Sizes:      s1,
		Orientations: 4,
		Gamma:        0.3,
		SigmaS1:      0,
		SigmaS:       0.1,
		Pool:         layer.DefaultPoolConf(),

		S2:       ProtoConf{Count: 1000, Size: 3, Kept: 10},
		S2bSizes: []int{6, 9, 12, 15},
		S2bCount: 250,
		S2bKept:  100,
		S3:       ProtoConf{Count: 1000, Size: 3, Kept: 100},

		MaxAttempts: 100,
	}
}

// LoadConfig reads a JSON config. Fields missing from the file keep their default values.
func LoadConfig(filename string) (Config, error) {
	conf := DefaultConfig()
	f, err := os.Open(filename)
	if err != nil {
		return conf, errors.WithStack(err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(&conf); err != nil {
		return conf, errors.Wrapf(err, "unable to decode config %q", filename)
	}
	return conf, conf.Validate()
}

// IsValid returns true if the config can be used to build a filter bank.
func (conf Config) IsValid() bool { return conf.Validate() == nil }

// Validate reports every problem with the config.
func (conf Config) Validate() error {
	var errs manyErr
	add := func(format string, args ...interface{}) {
		errs = append(errs, errors.Errorf(format, args...))
	}

	if len(conf.S1Sizes) == 0 {
		add("no S1 scales")
	}
	for i, rf := range conf.S1Sizes {
		if rf <= 0 {
			add("S1 scale %d has receptive field %d", i, rf)
		}
	}
	if conf.Orientations <= 0 {
		add("orientations must be positive, got %d", conf.Orientations)
	}
	if conf.SigmaS1 < 0 || conf.SigmaS < 0 {
		add("sigmas must not be negative, got %v and %v", conf.SigmaS1, conf.SigmaS)
	}
	if !conf.Pool.IsValid() {
		add("invalid pooling constants %+v", conf.Pool)
	}
	if conf.MaxAttempts <= 0 {
		add("max attempts must be positive, got %d", conf.MaxAttempts)
	}
	if conf.Workers < 0 {
		add("workers must not be negative, got %d", conf.Workers)
	}

	check := func(name string, pc ProtoConf, depth int) {
		switch {
		case pc.Count <= 0:
			add("%s: count must be positive, got %d", name, pc.Count)
		case pc.Size <= 0:
			add("%s: receptive field must be positive, got %d", name, pc.Size)
		case pc.Kept <= 0 || pc.Kept > pc.Size*pc.Size*depth:
			add("%s: cannot keep %d of %d weights", name, pc.Kept, pc.Size*pc.Size*depth)
		}
	}
	check("S2", conf.S2, conf.Orientations)
	if len(conf.S2bSizes) == 0 {
		add("no S2b scales")
	}
	for _, rf := range conf.S2bSizes {
		check("S2b", ProtoConf{Count: conf.S2bCount, Size: rf, Kept: conf.S2bKept}, conf.Orientations)
	}
	check("S3", conf.S3, conf.S2.Count)

	if len(errs) > 0 {
		return errors.Wrap(ErrInvalidConfig, strings.TrimSpace(errs.Error()))
	}
	return nil
}

// MinImageSize is the smallest height and width an image may have.
func (conf Config) MinImageSize() int {
	var retVal int
	for _, rf := range conf.S1Sizes {
		if rf > retVal {
			retVal = rf
		}
	}
	return retVal
}

// FeatureLen is the length of the feature vectors produced with this config.
func (conf Config) FeatureLen() int { return len(conf.S2bSizes)*conf.S2bCount + conf.S3.Count }
