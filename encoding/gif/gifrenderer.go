package gif

import (
	"image"
	"image/gif"
	"io"

	"github.com/gorgonia/hmax/encoding/frame"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Encoder renders activation maps and filters as the frames of an animated GIF.
type Encoder struct {
	*frame.Painter
	io.Writer

	out   *gif.GIF
	Delay int // per frame, in 100ths of a second
}

// NewGifEncoder creates an Encoder writing h×w frames to w.
func NewGifEncoder(w io.Writer, h, wd int) *Encoder {
	return &Encoder{
		Painter: frame.New(h, wd),
		Writer:  w,
		out: &gif.GIF{
			LoopCount: 0,
			Config:    image.Config{ColorModel: frame.Palette, Width: wd, Height: h},
		},
		Delay: 100,
	}
}

// Encode adds a frame showing m, which is either a (rows, cols) matrix or a
// (channels, rows, cols) map.
func (enc *Encoder) Encode(caption string, m *tensor.Dense) error {
	im, err := enc.Paint(caption, m)
	if err != nil {
		return err
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, enc.Delay)
	return nil
}

// Frames returns the number of encoded frames.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return errors.New("no frames to write")
	}
	return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
}
