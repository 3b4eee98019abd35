package container

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// Option is one dof_optdesc_t.
type Option struct {
	Option    uint32
	StrTabIdx dof.SecIdx
	Value     uint64

	// ValueString is set when the option carries a string table.
	ValueString string
	HasString   bool
	Err         error
}

// OptDesc is an array of option descriptions.
type OptDesc struct {
	SectionHeader
	Options []Option
}

func (c *Container) newOptDesc(h SectionHeader) (Section, error) {
	if h.EntSize < dof.OptDescMinSize {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "option entry size %d below %d", h.EntSize, dof.OptDescMinSize)
	}
	n, err := c.clamp(h.Size/uint64(h.EntSize), "options", h.Index)
	if err != nil {
		return nil, err
	}
	o := &OptDesc{SectionHeader: h, Options: make([]Option, n)}
	for i := range o.Options {
		rel := uint64(i) * uint64(h.EntSize)
		r, err := c.record(h, rel, dof.OptDescMinSize, "option")
		if err != nil {
			return nil, err
		}
		opt := &o.Options[i]
		opt.Option = c.order.Uint32(r[0:])
		opt.StrTabIdx = dof.SecIdx(c.order.Uint32(r[4:]))
		opt.Value = c.order.Uint64(r[8:])
		if opt.StrTabIdx == dof.SecIdxNone {
			continue
		}
		strtab, err := resolveAs[*StrTab](c, opt.StrTabIdx, "option strtab")
		if err == nil {
			opt.ValueString, err = strtab.Str(opt.Value)
		}
		if err != nil {
			opt.Err = err
			c.diag(h.Index, h.Offset+rel, dof.DiagUnresolved, fmt.Sprintf("option %d: %v", i, err))
			continue
		}
		opt.HasString = true
	}
	return o, nil
}
