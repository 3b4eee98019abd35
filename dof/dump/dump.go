// Package dump renders a decoded container: a structural text dump with DIF
// listings, a JSON report and a section summary table.
package dump

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/cfg"
	"github.com/zboralski/dof-dumper/dof/container"
	"github.com/zboralski/dof-dumper/dof/disasm"
)

// HeaderInfo is the identification block and header of a container.
type HeaderInfo struct {
	Model    string `json:"model"`
	Encoding string `json:"encoding"`
	Version  uint8  `json:"version"`
	DifVers  uint8  `json:"dif_version"`
	DifIReg  uint8  `json:"dif_iregs"`
	DifTReg  uint8  `json:"dif_tregs"`
	Flags    uint32 `json:"flags"`
	SecNum   uint32 `json:"sections"`
	LoadSize uint64 `json:"load_size"`
	FileSize uint64 `json:"file_size"`
}

// SectionInfo is one section as rendered by every output format.
type SectionInfo struct {
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Size     uint64 `json:"size"`
	EntSize  uint32 `json:"entsize"`
	Loadable bool   `json:"loadable"`
	HdrAddr  uint64 `json:"header_addr"`
	DataAddr uint64 `json:"data_addr"`

	Lines   []string `json:"lines,omitempty"`
	Listing string   `json:"listing,omitempty"`
	Error   string   `json:"error,omitempty"`

	hdrOff uint64
}

// Report is everything decoded from one container.
type Report struct {
	Name        string           `json:"name,omitempty"`
	Addr        uint64           `json:"addr"`
	Header      HeaderInfo       `json:"header"`
	Sections    []SectionInfo    `json:"sections"`
	Diagnostics []dof.Diagnostic `json:"diagnostics,omitempty"`

	programs []program
}

type program struct {
	name string
	p    *disasm.Program
}

// Build decodes every section of c. In Strict mode section failures are
// rendered in place and returned together as one error once every section has
// been visited. In BestEffort mode they become diagnostics.
func Build(c *container.Container, opt dof.Options) (*Report, error) {
	h := c.Header()
	r := &Report{
		Addr: c.Addr(),
		Header: HeaderInfo{
			Model:    dof.ModelString(h.Model),
			Encoding: dof.EncodingString(h.Encoding),
			Version:  h.Version,
			DifVers:  h.DifVers,
			DifIReg:  h.DifIReg,
			DifTReg:  h.DifTReg,
			Flags:    h.Flags,
			SecNum:   h.SecNum,
			LoadSize: h.LoadSize,
			FileSize: h.FileSize,
		},
	}

	var diags []dof.Diagnostic
	n := c.NumSections()
	if max := opt.EffectiveMaxSteps(); n > max {
		if opt.Mode == dof.Strict {
			return nil, errors.Errorf("section count %d exceeds limit %d", n, max)
		}
		diags = append(diags, dof.Diagnostic{
			Kind:    dof.DiagClamped,
			Msg:     fmt.Sprintf("section count %d clamped to %d", n, max),
			Section: -1,
		})
		n = max
	}

	var merr *multierror.Error
	for i := 0; i < n; i++ {
		info, ds, err := r.section(c, i, opt)
		diags = append(diags, ds...)
		if err != nil {
			info.Error = err.Error()
			if opt.Mode == dof.Strict {
				merr = multierror.Append(merr, err)
			} else {
				diags = append(diags, dof.Diagnostic{Offset: info.hdrOff, Kind: kindOf(err), Msg: err.Error(), Section: i})
			}
		}
		r.Sections = append(r.Sections, info)
	}

	r.Diagnostics = append(append([]dof.Diagnostic{}, c.Diagnostics()...), diags...)
	log.WithFields(log.Fields{"sections": n, "diagnostics": len(r.Diagnostics)}).Debug("built dump report")
	return r, merr.ErrorOrNil()
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, dof.ErrOutOfRange):
		return dof.DiagOutOfRange
	case errors.Is(err, dof.ErrUnresolvedSectionReference):
		return dof.DiagUnresolved
	}
	return dof.DiagInvalid
}

func (r *Report) section(c *container.Container, i int, opt dof.Options) (SectionInfo, []dof.Diagnostic, error) {
	info := SectionInfo{Index: i, Type: "?"}
	h, err := c.Descriptor(i)
	if err != nil {
		return info, nil, errors.WithMessagef(err, "section %d", i)
	}
	info.Type = h.Type.String()
	info.Size = h.Size
	info.EntSize = h.EntSize
	info.Loadable = h.Loadable()
	info.hdrOff = h.HdrOffset
	info.HdrAddr = r.Addr + h.HdrOffset
	info.DataAddr = r.Addr + h.Offset

	sec, err := c.GetSection(i)
	if err != nil {
		return info, nil, err
	}

	var lines []string
	add := func(format string, args ...any) { lines = append(lines, fmt.Sprintf(format, args...)) }

	switch s := sec.(type) {
	case *container.Provider:
		add("Provider name: %s (%d probes)", s.Name, len(s.Probes))
		for pi, pr := range s.Probes {
			if pr.Err != nil {
				add("\tprobe %d: %v", pi, pr.Err)
				continue
			}
			if pr.NativeArgs != pr.XlateArgs {
				add("\t%s::%s(%s | %s)", pr.Func, pr.Name, pr.NativeArgs, pr.XlateArgs)
			} else {
				add("\t%s::%s(%s)", pr.Func, pr.Name, pr.NativeArgs)
			}
			if len(pr.ArgMap) > 0 {
				add("\t\targ map %v", pr.ArgMap)
			}
			if len(pr.Offsets) > 0 {
				add("\t\toffsets %s", hexList(pr.Offsets))
			}
			if len(pr.EnOffsets) > 0 {
				add("\t\tis-enabled offsets %s", hexList(pr.EnOffsets))
			}
		}
	case *container.ECBDesc:
		add("\tprobe %s pred %s actions %s", s.ProbesIdx, s.PredIdx, s.ActionsIdx)
	case *container.ProbeDesc:
		add("\tProbe desc %s:%s:%s:%s", s.Provider, s.Module, s.Func, s.Name)
	case *container.ActDesc:
		for ai, a := range s.Actions {
			if a.HasString {
				add("\tAction %d type %s difo in %s arg %q", ai, a.Kind, a.DifoIdx, a.ArgString)
			} else {
				add("\tAction %d type %s difo in %s arg %d", ai, a.Kind, a.DifoIdx, a.Arg)
			}
		}
	case *container.DifoHdr:
		add("DIF %s STRTAB %s INTTAB %s VARTAB %s", s.CodeIdx, s.StrTabIdx, s.IntTabIdx, s.VarTabIdx)
		add("\treturn type kind %d ckind %d flags 0x%x size %d", s.RType.Kind, s.RType.CKind, s.RType.Flags, s.RType.Size)
		p := disasm.FromDifo(s)
		res, err := disasm.Disassemble(p, opt)
		if err != nil {
			info.Lines = lines
			return info, nil, errors.WithMessagef(err, "section %d listing", i)
		}
		info.Listing = res.Value
		r.programs = append(r.programs, program{name: fmt.Sprintf("difo_%d", i), p: p})
		info.Lines = lines
		return info, res.Diags, nil
	case *container.VarTab:
		for _, v := range s.Vars {
			add("\tVar id %d scope %s kind %d flags 0x%x name @%d", v.ID, v.Scope, v.Kind, v.Flags, v.Name)
		}
	case *container.IntTab:
		for ii := 0; ii < s.Len(); ii++ {
			v, _ := s.At(ii)
			add("\t[%d] 0x%x", ii, v)
		}
	case *container.OptDesc:
		for _, o := range s.Options {
			if o.HasString {
				add("\tOption %d value %q", o.Option, o.ValueString)
			} else {
				add("\tOption %d value %d", o.Option, o.Value)
			}
		}
	case *container.RelHdr:
		add("\tstrtab %s relocations %s target %s", s.StrTabIdx, s.RelSecIdx, s.TgtSecIdx)
		for ri, rel := range s.Relocs {
			add("\tRelocation %s type %s offset 0x%x data 0x%x", s.Names[ri], dof.RelocString(rel.Type), rel.Offset, rel.Data)
		}
	case *container.Text:
		for _, l := range strings.Split(strings.TrimRight(s.Text, "\n"), "\n") {
			if l != "" {
				add("\t%s", l)
			}
		}
	}
	info.Lines = lines
	return info, nil, nil
}

func hexList(v []uint32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("0x%x", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Graphs builds the control flow graph of every compiled object whose
// listing was produced, in section order.
func (r *Report) Graphs() []*cfg.Func {
	out := make([]*cfg.Func, len(r.programs))
	for i, p := range r.programs {
		out[i] = cfg.Build(p.p, p.name)
	}
	return out
}

// Text writes the structural dump.
func Text(w io.Writer, r *Report) error {
	var b strings.Builder
	if r.Name != "" {
		fmt.Fprintf(&b, "Section %s\n", r.Name)
	}
	fmt.Fprintf(&b, "DOF data model: %s\n", r.Header.Model)
	fmt.Fprintf(&b, "DOF encoding: %s\n", r.Header.Encoding)
	fmt.Fprintf(&b, "DOF format version: %d\n", r.Header.Version)
	fmt.Fprintf(&b, "DOF instruction set version: %d\n", r.Header.DifVers)
	fmt.Fprintf(&b, "DOF integer register count: %d\n", r.Header.DifIReg)
	fmt.Fprintf(&b, "DOF tuple register count: %d\n", r.Header.DifTReg)
	b.WriteString("Sections:\n")
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "Section %d type %s data size %d ent size %d", s.Index, s.Type, s.Size, s.EntSize)
		if !s.Loadable {
			b.WriteString(" (Non-Loadable)")
		}
		fmt.Fprintf(&b, " header 0x%x data 0x%x\n", s.HdrAddr, s.DataAddr)
		for _, l := range s.Lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
		if s.Listing != "" {
			b.WriteString(s.Listing)
		}
		if s.Error != "" {
			fmt.Fprintf(&b, "\terror: %s\n", s.Error)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
