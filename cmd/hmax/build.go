package main

import (
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gorgonia/hmax"
	"github.com/gorgonia/hmax/corpus"
	"github.com/spf13/cobra"
)

func createBuild() *cobra.Command {
	var (
		dir, out, confFile, statsFile string
		seed                          int64
		workers, s2, s2b, s3          int
		pre                           preprocFlags
	)

	cmd := &cobra.Command{
		Use:     "build",
		Short:   "sample the prototypes of a filter bank from a directory of images",
		Args:    cobra.NoArgs,
		Example: "build --images ./natural --out filters.gob --seed 1337",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := hmax.DefaultConfig()
			var err error
			if confFile != "" {
				if conf, err = hmax.LoadConfig(confFile); err != nil {
					return err
				}
			}
			flags := cmd.Flags()
			if flags.Changed("workers") {
				conf.Workers = workers
			}
			if flags.Changed("s2") {
				conf.S2.Count = s2
			}
			if flags.Changed("s2b") {
				conf.S2bCount = s2b
			}
			if flags.Changed("s3") {
				conf.S3.Count = s3
			}

			p, err := pre.preproc()
			if err != nil {
				return err
			}
			images, err := corpus.Open(dir, p)
			if err != nil {
				return err
			}

			if !flags.Changed("seed") {
				seed = time.Now().UnixNano()
			}
			logger := log.New(os.Stderr, "", log.Ltime)
			logger.Printf("Building from %d images in %s with seed %d", images.Len(), dir, seed)

			b, err := hmax.NewBuilder(conf, images, rand.New(rand.NewSource(seed)), logger)
			if err != nil {
				return err
			}
			bank, err := b.Build()
			if err != nil {
				return err
			}
			if err = bank.Save(out); err != nil {
				return err
			}
			logger.Printf("Saved filter bank to %s", out)
			if statsFile != "" {
				return b.Dump(statsFile)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&dir, "images", "d", "", "directory of training images")
	f.StringVarP(&out, "out", "o", "filters.gob", "where to save the filter bank")
	f.StringVarP(&confFile, "config", "c", "", "JSON configuration file")
	f.StringVar(&statsFile, "stats", "", "write the provenance of every prototype to this CSV file")
	f.Int64Var(&seed, "seed", 0, "random seed (default: current time)")
	f.IntVar(&workers, "workers", 0, "prototypes sampled concurrently (0: GOMAXPROCS)")
	f.IntVar(&s2, "s2", 0, "number of S2 prototypes")
	f.IntVar(&s2b, "s2b", 0, "number of S2b prototypes per scale")
	f.IntVar(&s3, "s3", 0, "number of S3 prototypes")
	pre.register(cmd)
	cmd.MarkFlagRequired("images")
	return cmd
}
