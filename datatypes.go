package hmax

import (
	"fmt"

	"github.com/gorgonia/hmax/layer"
	"gorgonia.org/tensor"
)

// Corpus is a collection of grayscale training images.
type Corpus interface {
	// Len is the number of images.
	Len() int
	// Image returns image i as a (rows, cols) Float64 tensor.
	Image(i int) (*tensor.Dense, error)
	// Name identifies image i in build statistics.
	Name(i int) string
}

// ImageSet is an in-memory Corpus.
type ImageSet []*tensor.Dense

func (s ImageSet) Len() int                           { return len(s) }
func (s ImageSet) Image(i int) (*tensor.Dense, error) { return s[i], nil }
func (s ImageSet) Name(i int) string                  { return fmt.Sprintf("image%d", i) }

// StackFunc computes the activation stack prototypes are sampled from.
type StackFunc func(img *tensor.Dense) (layer.Stack, error)

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}

// MapEncoder renders intermediate maps, e.g. into an animated GIF.
type MapEncoder interface {
	Encode(caption string, m *tensor.Dense) error
	Flush() error
}
