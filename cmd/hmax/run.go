package main

import (
	"log"

	"github.com/gorgonia/hmax"
	"github.com/gorgonia/hmax/corpus"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func createRun() *cobra.Command {
	var (
		bankFile, in, out string
		trace             bool
		pre               preprocFlags
	)

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "compute the feature vector of one image",
		Args:    cobra.NoArgs,
		Example: "run --bank filters.gob -i cat.png -o cat.ascii",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFeatureExt(out); err != nil {
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
			inf, err := hmax.Infer(bank, trace)
			if err != nil {
				return err
			}
			img, err := corpus.Load(in, p)
			if err != nil {
				return err
			}
			fv, err := inf.Infer(img)
			if err != nil {
				return errors.WithMessagef(err, "processing %s", in)
			}
			if trace {
				log.Print(inf.ExecLog())
			}
			return writeFeatures(fv, out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&bankFile, "bank", "b", "filters.gob", "filter bank to use")
	f.StringVarP(&in, "in", "i", "", "input image")
	f.StringVarP(&out, "out", "o", "", "output file, must end in "+featureExt)
	f.BoolVar(&trace, "trace", false, "log the shape of every layer")
	pre.register(cmd)
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	return cmd
}
