package main

import (
	"log"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/gorgonia/hmax"
	"github.com/gorgonia/hmax/corpus"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

func createBatch() *cobra.Command {
	var (
		bankFile, outDir string
		workers          int
		keepGoing        bool
		pre              preprocFlags
	)

	cmd := &cobra.Command{
		Use:     "batch image...",
		Short:   "compute the feature vectors of many images concurrently",
		Args:    cobra.MinimumNArgs(1),
		Example: "batch --bank filters.gob --outdir features/ img/*.png",
		RunE: func(cmd *cobra.Command, images []string) error {
			if err := checkCollisions(outDir, images); err != nil {
				return err
			}
			p, err := pre.preproc()
			if err != nil {
				return err
			}
			bank, err := hmax.Load(bankFile)
			if err != nil {
				return err
			}
			inf, err := hmax.Infer(bank, false)
			if err != nil {
				return err
			}
			if err = os.MkdirAll(outDir, 0755); err != nil {
				return errors.WithStack(err)
			}

			var done, failed int64
			if workers <= 0 {
				workers = runtime.GOMAXPROCS(0)
			}
			wp := pool.New().WithErrors().WithMaxGoroutines(workers)
			for _, in := range images {
				in := in
				wp.Go(func() error {
					err := extract(inf, in, featureFile(outDir, in), p)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if keepGoing {
							log.Printf("%s failed: %v", in, err)
							return nil
						}
						return err
					}
					n := atomic.AddInt64(&done, 1)
					log.Printf("%d/%d %s", n, len(images), in)
					return nil
				})
			}
			err = wp.Wait()
			log.Printf("Processed %d images, %d failed", done, failed)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&bankFile, "bank", "b", "filters.gob", "filter bank to use")
	f.StringVarP(&outDir, "outdir", "o", ".", "directory for the "+featureExt+" files, named after each image. Images must have distinct base names")
	f.IntVar(&workers, "workers", 0, "images processed concurrently (0: GOMAXPROCS)")
	f.BoolVar(&keepGoing, "keep-going", false, "log failed images instead of stopping")
	pre.register(cmd)
	return cmd
}

func extract(inf *hmax.Inferencer, in, out string, p corpus.Preproc) error {
	img, err := corpus.Load(in, p)
	if err != nil {
		return err
	}
	fv, err := inf.Infer(img)
	if err != nil {
		return errors.WithMessagef(err, "processing %s", in)
	}
	return writeFeatures(fv, out)
}
