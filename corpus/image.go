// Package corpus loads images from disk as grayscale matrices.
package corpus

import (
	"image"
	_ "image/gif" // register decoders
	"path/filepath"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

// Preproc configures the preprocessing applied to every image after it is decoded.
type Preproc struct {
	// Square pads the shorter side so that the image becomes square.
	Square bool
	// MatchBackground fills the padding with the mean of the nearest edge row or
	// column instead of zeroes.
	MatchBackground bool
	// Width and Height, when both positive, resize the image after padding.
	Width, Height int
}

// Apply preprocesses a grayscale image.
func (p Preproc) Apply(img *tensor.Dense) *tensor.Dense {
	if p.Square {
		img = SquarePad(img, p.MatchBackground)
	}
	if p.Width > 0 && p.Height > 0 {
		img = Resize(img, p.Height, p.Width)
	}
	return img
}

// Load reads an image file and preprocesses it.
func Load(filename string, p Preproc) (*tensor.Dense, error) {
	img, err := imgio.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode %q", filepath.Base(filename))
	}
	return p.Apply(Gray(img)), nil
}

// Gray converts an image to a (rows, cols) Float64 matrix holding the mean of the red,
// green and blue channels, in [0, 255].
func Gray(img image.Image) *tensor.Dense {
	rgba := clone.AsRGBA(img)
	b := rgba.Bounds()
	rows, cols := b.Dy(), b.Dx()
	backing := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		line := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < cols; x++ {
			px := line[x*4 : x*4+3]
			backing[y*cols+x] = (float64(px[0]) + float64(px[1]) + float64(px[2])) / 3
		}
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

// SquarePad pads the shorter dimension of img on both sides so that the result is
// square. When the difference is odd, the extra row or column goes to the bottom or
// right. With matchBG, each band is filled with the mean of the edge row or column it
// touches.
func SquarePad(img *tensor.Dense, matchBG bool) *tensor.Dense {
	rows, cols := img.Shape()[0], img.Shape()[1]
	data := img.Float64s()
	if rows == cols {
		return img.Clone().(*tensor.Dense)
	}
	n := rows
	if cols > n {
		n = cols
	}
	backing := make([]float64, n*n)
	before := (n - rows) / 2
	left := (n - cols) / 2
	for y := 0; y < rows; y++ {
		copy(backing[(y+before)*n+left:], data[y*cols:(y+1)*cols])
	}
	if !matchBG {
		return tensor.New(tensor.WithShape(n, n), tensor.WithBacking(backing))
	}

	fill := func(y0, y1, x0, x1 int, v float64) {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				backing[y*n+x] = v
			}
		}
	}
	if rows < cols {
		first := stat.Mean(data[:cols], nil)
		last := stat.Mean(data[(rows-1)*cols:], nil)
		fill(0, before, 0, n, first)
		fill(before+rows, n, 0, n, last)
	} else {
		col := make([]float64, rows)
		for y := range col {
			col[y] = data[y*cols]
		}
		first := stat.Mean(col, nil)
		for y := range col {
			col[y] = data[y*cols+cols-1]
		}
		last := stat.Mean(col, nil)
		fill(0, n, 0, left, first)
		fill(0, n, left+cols, n, last)
	}
	return tensor.New(tensor.WithShape(n, n), tensor.WithBacking(backing))
}

// Resize resamples a grayscale matrix with a linear filter.
func Resize(img *tensor.Dense, rows, cols int) *tensor.Dense {
	r, c := img.Shape()[0], img.Shape()[1]
	backing := layer.Resize(img.Float64s(), r, c, rows, cols, transform.Linear)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}
