package container

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// Reloc is one dof_relodesc_t.
type Reloc struct {
	NameOff uint32
	Type    uint32
	Offset  uint64
	Data    uint64
}

// RelTab is a RELTAB section. Names are resolved by the RelHdr that owns it.
type RelTab struct {
	SectionHeader
	Relocs []Reloc
}

func (c *Container) newRelTab(h SectionHeader) (Section, error) {
	if h.EntSize < dof.RelDescMinSize {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "relocation entry size %d below %d", h.EntSize, dof.RelDescMinSize)
	}
	n, err := c.clamp(h.Size/uint64(h.EntSize), "relocations", h.Index)
	if err != nil {
		return nil, err
	}
	t := &RelTab{SectionHeader: h, Relocs: make([]Reloc, n)}
	for i := range t.Relocs {
		r, err := c.record(h, uint64(i)*uint64(h.EntSize), dof.RelDescMinSize, "relocation")
		if err != nil {
			return nil, err
		}
		t.Relocs[i] = Reloc{
			NameOff: c.order.Uint32(r[0:]),
			Type:    c.order.Uint32(r[4:]),
			Offset:  c.order.Uint64(r[8:]),
			Data:    c.order.Uint64(r[16:]),
		}
	}
	return t, nil
}

// RelHdr is a URELHDR or KRELHDR section: relocations to apply to a target section.
type RelHdr struct {
	SectionHeader
	StrTabIdx dof.SecIdx
	RelSecIdx dof.SecIdx
	TgtSecIdx dof.SecIdx

	Relocs []Reloc
	Names  []string // parallel to Relocs; empty when a name is out of range
}

func (c *Container) newRelHdr(h SectionHeader) (Section, error) {
	r, err := c.record(h, 0, dof.RelHdrSize, "relocation header")
	if err != nil {
		return nil, err
	}
	rh := &RelHdr{
		SectionHeader: h,
		StrTabIdx:     dof.SecIdx(c.order.Uint32(r[0:])),
		RelSecIdx:     dof.SecIdx(c.order.Uint32(r[4:])),
		TgtSecIdx:     dof.SecIdx(c.order.Uint32(r[8:])),
	}
	strtab, err := resolveAs[*StrTab](c, rh.StrTabIdx, "relocation strtab")
	if err != nil {
		return nil, err
	}
	tab, err := resolveAs[*RelTab](c, rh.RelSecIdx, "relocation table")
	if err != nil {
		return nil, err
	}
	rh.Relocs = tab.Relocs
	rh.Names = make([]string, len(tab.Relocs))
	for i, rel := range tab.Relocs {
		name, err := strtab.Str(uint64(rel.NameOff))
		if err != nil {
			c.diag(h.Index, tab.Offset+uint64(i)*uint64(tab.EntSize), dof.DiagOutOfRange, fmt.Sprintf("relocation %d: %v", i, err))
			continue
		}
		rh.Names[i] = name
	}
	return rh, nil
}
