package main

import (
	"fmt"

	"github.com/gorgonia/hmax"
	"github.com/spf13/cobra"
)

func createDot() *cobra.Command {
	var bankFile, confFile string

	cmd := &cobra.Command{
		Use:     "dot",
		Short:   "print the layers of the pyramid as a graphviz graph",
		Args:    cobra.NoArgs,
		Example: "dot --bank filters.gob | dot -Tsvg > pyramid.svg",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := hmax.DefaultConfig()
			switch {
			case bankFile != "":
				bank, err := hmax.Load(bankFile)
				if err != nil {
					return err
				}
				conf = bank.Conf
			case confFile != "":
				var err error
				if conf, err = hmax.LoadConfig(confFile); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), conf.ToDot())
			return err
		},
	}
	cmd.Flags().StringVarP(&bankFile, "bank", "b", "", "describe the pyramid of this filter bank")
	cmd.Flags().StringVarP(&confFile, "config", "c", "", "describe the pyramid of this JSON configuration")
	return cmd
}
