package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/cfg"
	"github.com/zboralski/dof-dumper/dof/cfg/render"
	"github.com/zboralski/dof-dumper/dof/container"
	"github.com/zboralski/dof-dumper/dof/dump"
	"github.com/zboralski/dof-dumper/dof/source"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	mode         string
	layout       string
	maxReadBytes int
	format       string
	verbose      bool
	cfgDir       string

	opt dof.Options
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "dofdump",
		Short:         "Dump DTrace Object Format images",
		Long:          `dofdump decodes DOF containers and disassembles the DIF bytecode they carry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.mode, "mode", "strict", "decode mode: strict, besteffort")
	pf.StringVar(&g.layout, "layout", "", "YAML file with difo_header_size, secidx_size and var_size")
	pf.IntVar(&g.maxReadBytes, "max-read-bytes", 0, "max bytes for a single table or code read (0 uses default)")
	pf.StringVar(&g.format, "format", "text", "output format: text, json, table")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log section resolution")
	pf.StringVar(&g.cfgDir, "cfg", "", "write a Graphviz control flow graph per DIFO header into this directory")

	cmd.AddCommand(
		newRawCommand(g),
		newBinaryCommand(g),
		newPidCommand(g),
	)
	return cmd
}

func (g *globalFlags) setup() error {
	log.SetOutput(os.Stderr)
	if g.verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	switch g.mode {
	case "strict":
		g.opt = dof.DefaultOptions()
	case "besteffort":
		g.opt = dof.Options{Mode: dof.BestEffort, Layout: dof.DefaultLayout()}
	default:
		return errors.Errorf("unknown mode %q (use strict or besteffort)", g.mode)
	}
	switch g.format {
	case "text", "json", "table":
	default:
		return errors.Errorf("unknown format %q (use text, json or table)", g.format)
	}
	if g.layout != "" {
		l, err := dof.LoadLayout(g.layout)
		if err != nil {
			return err
		}
		g.opt.Layout = l
	}
	g.opt.MaxReadBytes = g.maxReadBytes
	return nil
}

// dumpImage decodes one image from src and writes it in the selected format.
// Diagnostics go to stderr. In strict mode a section failure is returned
// after everything else has been written.
func (g *globalFlags) dumpImage(cmd *cobra.Command, name string, src source.Source) error {
	c, err := container.Open(src, g.opt)
	if err != nil {
		return err
	}
	if m, ok := src.(*source.Memory); ok && m.Limit == 0 {
		m.Limit = c.Header().FileSize
	}

	r, buildErr := dump.Build(c, g.opt)
	if r == nil {
		return buildErr
	}
	r.Name = name

	out := cmd.OutOrStdout()
	switch g.format {
	case "json":
		err = dump.JSON(out, r)
	case "table":
		err = dump.Summary(out, r)
	default:
		err = dump.Text(out, r)
	}
	if err != nil {
		return err
	}
	for _, d := range r.Diagnostics {
		printDiag(cmd.ErrOrStderr(), d)
	}
	if g.cfgDir != "" {
		if err := g.writeGraphs(cmd.ErrOrStderr(), name, r); err != nil {
			return err
		}
	}
	return buildErr
}

func (g *globalFlags) writeGraphs(w io.Writer, name string, r *dump.Report) error {
	if err := os.MkdirAll(g.cfgDir, 0755); err != nil {
		return err
	}
	prefix := ""
	if name != "" {
		prefix = render.FileName(filepath.Base(name)) + "_"
	}
	for _, f := range r.Graphs() {
		path := filepath.Join(g.cfgDir, prefix+render.FileName(f.Name)+".dot")
		if err := os.WriteFile(path, []byte(render.DOT([]*cfg.Func{f}, name)), 0644); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}

func printDiag(w io.Writer, d dof.Diagnostic) {
	if d.Section >= 0 {
		fmt.Fprintf(w, "diag [%s] section %d @0x%x: %s\n", d.Kind, d.Section, d.Offset, d.Msg)
	} else {
		fmt.Fprintf(w, "diag [%s] @0x%x: %s\n", d.Kind, d.Offset, d.Msg)
	}
}
