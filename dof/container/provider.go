package container

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// VoidArgs is reported for a probe without an argument signature.
const VoidArgs = "void"

// Probe is one dof_probe_t of a provider, with its strings resolved against
// the provider's string table.
type Probe struct {
	Addr       uint64
	Func       string
	Name       string
	NativeArgs string // "void" when the nargv offset equals the func offset
	XlateArgs  string // "void" when the xargv offset equals the func offset
	NArgc      uint8
	XArgc      uint8
	ArgMap     []uint8  // PRARGS entries for the translated arguments
	Offsets    []uint32 // PROFFS entries
	EnOffsets  []uint32 // PRENOFFS entries

	// Err is set when this probe's strings or offsets could not be resolved.
	Err error
}

// Provider is a helper provider definition and its probes.
type Provider struct {
	SectionHeader
	StrTabIdx   dof.SecIdx
	ProbesIdx   dof.SecIdx
	PrArgsIdx   dof.SecIdx
	PrOffsIdx   dof.SecIdx
	PrEnOffsIdx dof.SecIdx
	Attrs       [5]uint32 // provider, module, function, name, args stability

	Name   string
	Probes []Probe
}

func (c *Container) newProvider(h SectionHeader) (Section, error) {
	size := uint64(dof.ProviderSize)
	if h.Size < size {
		size = dof.ProviderSize - 4 // pre-PRENOFFS layout
	}
	r, err := c.record(h, 0, size, "provider")
	if err != nil {
		return nil, err
	}
	p := &Provider{
		SectionHeader: h,
		StrTabIdx:     dof.SecIdx(c.order.Uint32(r[0:])),
		ProbesIdx:     dof.SecIdx(c.order.Uint32(r[4:])),
		PrArgsIdx:     dof.SecIdx(c.order.Uint32(r[8:])),
		PrOffsIdx:     dof.SecIdx(c.order.Uint32(r[12:])),
		PrEnOffsIdx:   dof.SecIdxNone,
	}
	nameOff := c.order.Uint32(r[16:])
	for i := range p.Attrs {
		p.Attrs[i] = c.order.Uint32(r[20+4*i:])
	}
	if size == dof.ProviderSize {
		p.PrEnOffsIdx = dof.SecIdx(c.order.Uint32(r[40:]))
	}

	strtab, err := resolveAs[*StrTab](c, p.StrTabIdx, "provider strtab")
	if err != nil {
		return nil, err
	}
	if p.Name, err = strtab.Str(uint64(nameOff)); err != nil {
		return nil, errors.WithMessage(err, "provider name")
	}
	probes, err := c.resolve(p.ProbesIdx, "provider probes")
	if err != nil {
		return nil, err
	}
	var args *ArgMap
	if p.PrArgsIdx != dof.SecIdxNone {
		if args, err = resolveAs[*ArgMap](c, p.PrArgsIdx, "provider prargs"); err != nil {
			return nil, err
		}
	}
	var offs, enoffs *Offsets
	if p.PrOffsIdx != dof.SecIdxNone {
		if offs, err = resolveAs[*Offsets](c, p.PrOffsIdx, "provider proffs"); err != nil {
			return nil, err
		}
	}
	if p.PrEnOffsIdx != dof.SecIdxNone {
		if enoffs, err = resolveAs[*Offsets](c, p.PrEnOffsIdx, "provider prenoffs"); err != nil {
			return nil, err
		}
	}

	ph := probes.Header()
	if ph.Type != dof.SectProbes {
		return nil, errors.Wrapf(dof.ErrUnresolvedSectionReference, "provider probes section %d is %s", ph.Index, ph.Type)
	}
	if ph.EntSize == 0 {
		return nil, errors.Wrapf(dof.ErrUnresolvedSectionReference, "probe section %d has zero entry size", ph.Index)
	}
	if ph.EntSize < dof.ProbeMinSize {
		return nil, errors.Wrapf(dof.ErrUnresolvedSectionReference, "probe section %d entry size %d below %d",
			ph.Index, ph.EntSize, dof.ProbeMinSize)
	}
	n, err := c.clamp(ph.Size/uint64(ph.EntSize), "probes", h.Index)
	if err != nil {
		return nil, err
	}
	p.Probes = make([]Probe, n)
	for i := range p.Probes {
		rel := uint64(i) * uint64(ph.EntSize)
		rec, err := c.record(*ph, rel, dof.ProbeMinSize, "probe")
		if err != nil {
			return nil, err
		}
		pr := &p.Probes[i]
		pr.Err = c.decodeProbe(pr, rec, strtab, args, offs, enoffs)
		if pr.Err != nil {
			c.diag(h.Index, ph.Offset+rel, dof.DiagOutOfRange, fmt.Sprintf("probe %d: %v", i, pr.Err))
		}
	}
	return p, nil
}

func (c *Container) decodeProbe(pr *Probe, r []byte, strtab *StrTab, args *ArgMap, offs, enoffs *Offsets) error {
	pr.Addr = c.order.Uint64(r[0:])
	funcOff := c.order.Uint32(r[8:])
	nameOff := c.order.Uint32(r[12:])
	nargvOff := c.order.Uint32(r[16:])
	xargvOff := c.order.Uint32(r[20:])
	argIdx := c.order.Uint32(r[24:])
	offIdx := c.order.Uint32(r[28:])
	pr.NArgc = r[32]
	pr.XArgc = r[33]
	nOffs := uint32(c.order.Uint16(r[34:]))
	enOffIdx := c.order.Uint32(r[36:])
	nEnOffs := uint32(c.order.Uint16(r[40:]))

	var err error
	if pr.Func, err = strtab.Str(uint64(funcOff)); err != nil {
		return errors.WithMessage(err, "function")
	}
	if pr.Name, err = strtab.Str(uint64(nameOff)); err != nil {
		return errors.WithMessage(err, "name")
	}
	// An argument string offset equal to the function offset means no arguments.
	pr.NativeArgs = VoidArgs
	if nargvOff != funcOff {
		if pr.NativeArgs, err = strtab.Str(uint64(nargvOff)); err != nil {
			return errors.WithMessage(err, "native args")
		}
	}
	pr.XlateArgs = VoidArgs
	if xargvOff != funcOff {
		if pr.XlateArgs, err = strtab.Str(uint64(xargvOff)); err != nil {
			return errors.WithMessage(err, "translated args")
		}
	}
	if args != nil && pr.XArgc > 0 {
		if pr.ArgMap, err = args.Slice(argIdx, uint32(pr.XArgc)); err != nil {
			return err
		}
	}
	if offs != nil && nOffs > 0 {
		if pr.Offsets, err = offs.Slice(offIdx, nOffs); err != nil {
			return err
		}
	}
	if enoffs != nil && nEnOffs > 0 {
		if pr.EnOffsets, err = enoffs.Slice(enOffIdx, nEnOffs); err != nil {
			return err
		}
	}
	return nil
}
