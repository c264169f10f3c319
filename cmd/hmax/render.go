package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorgonia/hmax"
	"github.com/gorgonia/hmax/corpus"
	"github.com/gorgonia/hmax/encoding/gif"
	"github.com/gorgonia/hmax/encoding/mjpeg"
	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorgonia.org/tensor"
)

func createRender() *cobra.Command {
	var (
		bankFile, in, out, which, serve string
		h, w, delay                     int
		pre                             preprocFlags
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "render the S1 filters, or the activations of an image, as an animated GIF",
		Long: `Without an input image, render draws one frame per S1 scale showing its oriented filters.
With an input image, it draws one frame per scale of the requested layer (s1, c1, s2, c2 or s3).
With --serve, the frames are streamed as motion JPEG until interrupted.`,
		Args:    cobra.NoArgs,
		Example: "render --bank filters.gob -i cat.png --layer c1 -o c1.gif",
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := hmax.Load(bankFile)
			if err != nil {
				return err
			}
			render := func(enc hmax.MapEncoder) error {
				if in == "" {
					return renderFilters(enc, bank)
				}
				return renderLayer(enc, bank, in, which, pre)
			}

			if serve != "" {
				enc := mjpeg.NewEncoder(h, w)
				if err = render(enc); err != nil {
					return err
				}
				return play(cmd.Context(), enc, serve, time.Duration(delay)*10*time.Millisecond)
			}

			f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
			if err != nil {
				return errors.WithStack(err)
			}
			defer f.Close()
			enc := gif.NewGifEncoder(f, h, w)
			enc.Delay = delay
			if err = render(enc); err != nil {
				return err
			}
			return enc.Flush()
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&bankFile, "bank", "b", "filters.gob", "filter bank to use")
	fl.StringVarP(&in, "in", "i", "", "input image")
	fl.StringVarP(&out, "out", "o", "hmax.gif", "output GIF")
	fl.StringVar(&which, "layer", "s1", "layer to render: s1, c1, s2, c2 or s3")
	fl.StringVar(&serve, "serve", "", "stream the frames as motion JPEG on this address instead of writing a GIF, e.g. :8080")
	fl.IntVar(&h, "height", 480, "frame height")
	fl.IntVar(&w, "width", 960, "frame width")
	fl.IntVar(&delay, "delay", 100, "delay between frames, in 100ths of a second")
	pre.register(cmd)
	return cmd
}

// play serves the frames of enc on addr until interrupted.
func play(ctx context.Context, enc *mjpeg.Encoder, addr string, delay time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: enc}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Printf("Streaming %d frames on %s", enc.Frames(), addr)

	playc := make(chan error, 1)
	go func() { playc <- enc.Play(ctx, delay) }()

	var err error
	select {
	case err := <-errc:
		return errors.WithStack(err)
	case err = <-playc:
		if err != nil {
			log.Printf("Streaming stopped: %v", err)
			err = errors.WithMessage(err, "streaming")
		}
	case <-ctx.Done():
	}
	if serr := srv.Shutdown(context.Background()); err == nil {
		err = errors.WithStack(serr)
	}
	return err
}

// renderFilters draws the filters of every S1 scale side by side.
func renderFilters(enc hmax.MapEncoder, bank *hmax.FilterBank) error {
	for s, fs := range bank.S1 {
		rf := bank.Conf.S1Sizes[s]
		backing := make([]float64, 0, len(fs)*rf*rf)
		for _, f := range fs {
			backing = append(backing, f.Float64s()...)
		}
		m := layer.FromBacking(len(fs), rf, rf, backing)
		if err := enc.Encode(fmt.Sprintf("S1 filters, rf %d", rf), m); err != nil {
			return err
		}
	}
	return nil
}

// renderLayer draws every scale of one layer of an image's activations.
func renderLayer(enc hmax.MapEncoder, bank *hmax.FilterBank, in, which string, pre preprocFlags) error {
	p, err := pre.preproc()
	if err != nil {
		return err
	}
	img, err := corpus.Load(in, p)
	if err != nil {
		return err
	}
	inf, err := hmax.Infer(bank, false)
	if err != nil {
		return err
	}
	a, err := inf.Activations(img)
	if err != nil {
		return err
	}

	var s layer.Stack
	switch strings.ToLower(which) {
	case "s1":
		s = a.S1
	case "c1":
		s = a.C1
	case "s2":
		s = a.S2
	case "c2":
		s = a.C2
	case "s3":
		s = a.S3
	default:
		return errors.Errorf("unknown layer %q", which)
	}
	for i, m := range s {
		if err := enc.Encode(fmt.Sprintf("%s scale %d %v", strings.ToUpper(which), i, m.Shape()), firstChannels(m, 8)); err != nil {
			return err
		}
	}
	return nil
}

// firstChannels keeps at most n channels of a map so that deep layers fit in a frame.
func firstChannels(m *tensor.Dense, n int) *tensor.Dense {
	c, r, cols := layer.Dims(m)
	if c <= n {
		return m
	}
	return layer.FromBacking(n, r, cols, m.Float64s()[:n*r*cols])
}
