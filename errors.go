package hmax

import (
	"bytes"
	"fmt"

	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidBank is returned when a filter bank is incomplete, inconsistent or corrupt.
	ErrInvalidBank = errors.New("invalid filter bank")

	// ErrEmptyCorpus is returned when building from a corpus without images.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrImageTooSmall is returned when an image cannot cover the receptive fields of the pyramid.
	ErrImageTooSmall = layer.ErrImageTooSmall

	// ErrDepthMismatch is returned when prototypes and activations disagree on channel depth.
	ErrDepthMismatch = layer.ErrDepthMismatch

	// ErrDegenerate is returned when a normalization collapses.
	ErrDegenerate = layer.ErrDegenerate
)

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

// Unwrap allows errors.Is to look into every collected error.
func (err manyErr) Unwrap() []error { return err }
