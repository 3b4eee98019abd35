package main

import (
	"github.com/spf13/cobra"

	"github.com/zboralski/dof-dumper/dof/source"
)

func newRawCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "raw <file>",
		Short:   "Dump a raw DOF image",
		Example: `dofdump raw /tmp/probes.dof`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := source.ReadFile(args[0])
			if err != nil {
				return err
			}
			return g.dumpImage(cmd, "", blob)
		},
	}
}
