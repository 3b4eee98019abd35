package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zboralski/dof-dumper/dof/source"
)

func newPidCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "pid <pid> <addr>",
		Short:   "Dump a DOF image from the memory of a running process",
		Example: `dofdump pid 4242 0x7f3a12c00000`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Errorf("bad pid %q", args[0])
			}
			addr, err := strconv.ParseUint(args[1], 0, 64)
			if err != nil {
				return errors.Errorf("bad address %q", args[1])
			}
			proc, err := source.NewProcess(pid)
			if err != nil {
				return err
			}
			return g.dumpImage(cmd, "", source.NewMemory(proc, addr))
		},
	}
}
