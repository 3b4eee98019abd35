package main

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zboralski/dof-dumper/dof/source"
)

func newBinaryCommand(g *globalFlags) *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:     "binary <file>",
		Short:   "Dump the DOF sections of a Mach-O or ELF binary",
		Example: `dofdump binary --section __dof_myprov ./server`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs, err := source.OpenBinary(args[0])
			if err != nil {
				return err
			}
			var merr *multierror.Error
			found := 0
			for _, b := range blobs {
				if section != "" && b.Name != section && !strings.HasSuffix(b.Name, ":"+section) {
					continue
				}
				found++
				log.WithFields(log.Fields{"section": b.Name, "addr": fmt.Sprintf("0x%x", b.Addr()), "size": b.Len()}).Debug("extracted DOF section")
				if err := g.dumpImage(cmd, b.Name, b); err != nil {
					merr = multierror.Append(merr, errors.WithMessage(err, b.Name))
				}
			}
			if found == 0 {
				if section != "" {
					return errors.Errorf("%s: no DOF section named %s", args[0], section)
				}
				return errors.Errorf("%s: no DOF sections", args[0])
			}
			return merr.ErrorOrNil()
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "only dump the named section")
	return cmd
}
