package layer

import "github.com/pkg/errors"

var (
	// ErrImageTooSmall is returned when an input is smaller than a receptive field it has to be matched with.
	ErrImageTooSmall = errors.New("image smaller than receptive field")

	// ErrDepthMismatch is returned when a prototype and a stack disagree on channel count.
	ErrDepthMismatch = errors.New("channel depth mismatch")

	// ErrDegenerate is returned when a normalization term or a response falls outside its valid range.
	ErrDegenerate = errors.New("degenerate response")
)
