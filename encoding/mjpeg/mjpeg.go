// Package mjpeg serves activation maps as a motion JPEG stream over HTTP.
package mjpeg

import (
	"bytes"
	"context"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/gorgonia/hmax/encoding/frame"
	"github.com/mattn/go-mjpeg"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Encoder paints every map it is given and pushes it to the stream. The frames are kept
// so that Play can cycle through them once encoding is done.
type Encoder struct {
	*frame.Painter
	Quality int

	stream *mjpeg.Stream
	sync.Mutex
	frames [][]byte
}

// NewEncoder with height and width
func NewEncoder(h, w int) *Encoder {
	return &Encoder{
		Painter: frame.New(h, w),
		Quality: jpeg.DefaultQuality,
		stream:  mjpeg.NewStream(),
	}
}

func (enc *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	enc.stream.ServeHTTP(w, r)
}

// Encode paints m and makes it the current frame of the stream.
func (enc *Encoder) Encode(caption string, m *tensor.Dense) error {
	enc.Lock()
	defer enc.Unlock()
	im, err := enc.Paint(caption, m)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err = jpeg.Encode(&b, im, &jpeg.Options{Quality: enc.Quality}); err != nil {
		return errors.WithStack(err)
	}
	enc.frames = append(enc.frames, b.Bytes())
	return errors.WithStack(enc.stream.Update(b.Bytes()))
}

// Frames returns the number of encoded frames.
func (enc *Encoder) Frames() int {
	enc.Lock()
	defer enc.Unlock()
	return len(enc.frames)
}

// Frame returns the JPEG bytes of the ith frame.
func (enc *Encoder) Frame(i int) []byte {
	enc.Lock()
	defer enc.Unlock()
	return enc.frames[i]
}

// Flush is a no-op: frames are streamed as they are encoded.
func (enc *Encoder) Flush() error {
	if enc.Frames() == 0 {
		return errors.New("no frames to stream")
	}
	return nil
}

// Play cycles through the encoded frames, showing each for delay, until ctx is done.
func (enc *Encoder) Play(ctx context.Context, delay time.Duration) error {
	if err := enc.Flush(); err != nil {
		return err
	}
	if delay <= 0 {
		delay = time.Second
	}
	t := time.NewTicker(delay)
	defer t.Stop()
	for i := 0; ; i = (i + 1) % enc.Frames() {
		if err := enc.stream.Update(enc.Frame(i)); err != nil {
			return errors.WithStack(err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
