package container

import (
	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// ECBDesc binds a probe description to an optional predicate and actions.
// Any of the three indices may be NONE, in which case the matching pointer is nil.
type ECBDesc struct {
	SectionHeader
	ProbesIdx  dof.SecIdx
	PredIdx    dof.SecIdx
	ActionsIdx dof.SecIdx
	UArg       uint64

	Probe   *ProbeDesc
	Pred    *DifoHdr
	Actions *ActDesc
}

func (c *Container) newECBDesc(h SectionHeader) (Section, error) {
	r, err := c.record(h, 0, dof.ECBDescSize, "ecbdesc")
	if err != nil {
		return nil, err
	}
	e := &ECBDesc{
		SectionHeader: h,
		ProbesIdx:     dof.SecIdx(c.order.Uint32(r[0:])),
		PredIdx:       dof.SecIdx(c.order.Uint32(r[4:])),
		ActionsIdx:    dof.SecIdx(c.order.Uint32(r[8:])),
		UArg:          c.order.Uint64(r[16:]),
	}
	if e.ProbesIdx != dof.SecIdxNone {
		if e.Probe, err = resolveAs[*ProbeDesc](c, e.ProbesIdx, "ecb probe"); err != nil {
			return nil, err
		}
	}
	if e.PredIdx != dof.SecIdxNone {
		if e.Pred, err = resolveAs[*DifoHdr](c, e.PredIdx, "ecb predicate"); err != nil {
			return nil, err
		}
	}
	if e.ActionsIdx != dof.SecIdxNone {
		if e.Actions, err = resolveAs[*ActDesc](c, e.ActionsIdx, "ecb actions"); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ProbeDesc names the probe an ECB enables.
type ProbeDesc struct {
	SectionHeader
	StrTabIdx dof.SecIdx
	Provider  string
	Module    string
	Func      string
	Name      string
	ID        uint32
}

func (c *Container) newProbeDesc(h SectionHeader) (Section, error) {
	r, err := c.record(h, 0, dof.ProbeDescSize, "probedesc")
	if err != nil {
		return nil, err
	}
	p := &ProbeDesc{
		SectionHeader: h,
		StrTabIdx:     dof.SecIdx(c.order.Uint32(r[0:])),
		ID:            c.order.Uint32(r[20:]),
	}
	strtab, err := resolveAs[*StrTab](c, p.StrTabIdx, "probedesc strtab")
	if err != nil {
		return nil, err
	}
	fields := []struct {
		dst  *string
		off  uint32
		what string
	}{
		{&p.Provider, c.order.Uint32(r[4:]), "provider"},
		{&p.Module, c.order.Uint32(r[8:]), "module"},
		{&p.Func, c.order.Uint32(r[12:]), "function"},
		{&p.Name, c.order.Uint32(r[16:]), "name"},
	}
	for _, f := range fields {
		if *f.dst, err = strtab.Str(uint64(f.off)); err != nil {
			return nil, errors.WithMessagef(err, "probedesc %s", f.what)
		}
	}
	return p, nil
}
