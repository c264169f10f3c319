// Package frame paints activation maps and filters into captioned grayscale images.
package frame

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
	"gorgonia.org/tensor"
)

var regular *truetype.Font

const (
	dpi        = 72.0
	fontsize   = 12.0
	lineheight = 1.2
	gap        = 2 // pixels between tiled channels
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// Palette is the 256 level gray palette of every painted frame.
var Palette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}()

// Painter draws a caption followed by the channels of one map, tiled left to right
// and scaled up by the largest integer factor that fits.
type Painter struct {
	H, W int
	font.Drawer

	padH, padW int
}

// New creates a Painter of h×w frames.
func New(h, w int) *Painter {
	face := truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	return &Painter{
		H: h,
		W: w,
		Drawer: font.Drawer{
			Src:  image.Black,
			Face: face,
		},
		padH: 4,
		padW: 4,
	}
}

// Paint draws m, which is either a (rows, cols) matrix or a (channels, rows, cols) map.
// Values are scaled so that the smallest maps to black and the largest to white.
func (p *Painter) Paint(caption string, m *tensor.Dense) (*image.Paletted, error) {
	if m == nil || m.Dtype() != tensor.Float64 {
		return nil, errors.New("expected a Float64 tensor")
	}
	var channels, rows, cols int
	switch s := m.Shape(); len(s) {
	case 2:
		channels, rows, cols = 1, s[0], s[1]
	case 3:
		channels, rows, cols = s[0], s[1], s[2]
	default:
		return nil, errors.Errorf("cannot paint shape %v", s)
	}
	data := m.Float64s()

	top, zoom := p.layout(channels, rows, cols)
	if zoom < 1 {
		return nil, errors.Errorf("%d channels of %dx%d do not fit in a %dx%d frame", channels, rows, cols, p.W, p.H)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	im := image.NewPaletted(image.Rect(0, 0, p.W, p.H), Palette)
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)
	for k := 0; k < channels; k++ {
		x0 := p.padW + k*(cols*zoom+gap)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				v := uint8((data[(k*rows+y)*cols+x] - lo) * scale)
				r := image.Rect(x0+x*zoom, top+y*zoom, x0+(x+1)*zoom, top+(y+1)*zoom)
				draw.Draw(im, r, &image.Uniform{color.Gray{v}}, image.Point{}, draw.Src)
			}
		}
	}

	p.Dst = im
	p.Dot = fixed.P(p.padW, p.padH+lineHeight()*4/5)
	p.DrawString(caption)
	return im, nil
}

// layout returns the first row of the tiles and their zoom factor.
func (p *Painter) layout(channels, rows, cols int) (top, zoom int) {
	top = p.padH + lineHeight()
	availW := p.W - 2*p.padW - (channels-1)*gap
	availH := p.H - top - p.padH
	zoom = minInt(availW/maxInt(channels*cols, 1), availH/maxInt(rows, 1))
	return top, zoom
}

func lineHeight() int { return int(math.Ceil(fontsize * lineheight * dpi / 72)) }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
