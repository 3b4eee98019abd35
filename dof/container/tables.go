package container

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/dif"
)

// StrTab is a string table: NUL-terminated strings addressed by byte offset.
type StrTab struct {
	SectionHeader
	data []byte
}

func (c *Container) newStrTab(h SectionHeader) (Section, error) {
	b, err := c.bytes(h.Offset, h.Size)
	if err != nil {
		return nil, err
	}
	return &StrTab{SectionHeader: h, data: b}, nil
}

// Len returns the table size in bytes.
func (s *StrTab) Len() int { return len(s.data) }

// Str returns the string starting at byte offset off. An unterminated final
// string runs to the end of the table.
func (s *StrTab) Str(off uint64) (string, error) {
	if off >= uint64(len(s.data)) {
		return "", errors.Wrapf(dof.ErrOutOfRange, "string offset %d in table of %d bytes", off, len(s.data))
	}
	b := s.data[off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// IntTab is an integer table of 8-byte values.
type IntTab struct {
	SectionHeader
	ints []uint64
}

func (c *Container) newIntTab(h SectionHeader) (Section, error) {
	n, err := c.clamp(h.Size/dof.IntSize, "integers", h.Index)
	if err != nil {
		return nil, err
	}
	b, err := c.bytes(h.Offset, uint64(n)*dof.IntSize)
	if err != nil {
		return nil, err
	}
	t := &IntTab{SectionHeader: h, ints: make([]uint64, n)}
	for i := range t.ints {
		t.ints[i] = c.order.Uint64(b[i*dof.IntSize:])
	}
	return t, nil
}

// Len returns the number of integers.
func (t *IntTab) Len() int { return len(t.ints) }

// At returns integer i.
func (t *IntTab) At(i int) (uint64, error) {
	if i < 0 || i >= len(t.ints) {
		return 0, errors.Wrapf(dof.ErrOutOfRange, "integer %d in table of %d", i, len(t.ints))
	}
	return t.ints[i], nil
}

// Var is a dtrace_difv_t variable descriptor. Name is a string table offset.
type Var struct {
	Name  uint32
	ID    uint32
	Kind  uint8
	Scope dof.Scope
	Flags uint16
}

// VarTab is a variable table.
type VarTab struct {
	SectionHeader
	Vars []Var
}

func (c *Container) newVarTab(h SectionHeader) (Section, error) {
	stride := c.layout.VarSize
	n, err := c.clamp(h.Size/stride, "variables", h.Index)
	if err != nil {
		return nil, err
	}
	b, err := c.bytes(h.Offset, uint64(n)*stride)
	if err != nil {
		return nil, err
	}
	t := &VarTab{SectionHeader: h, Vars: make([]Var, n)}
	for i := range t.Vars {
		r := b[uint64(i)*stride:]
		t.Vars[i] = Var{
			Name:  c.order.Uint32(r[0:]),
			ID:    c.order.Uint32(r[4:]),
			Kind:  r[8],
			Scope: dof.Scope(r[9]),
			Flags: c.order.Uint16(r[10:]),
		}
	}
	return t, nil
}

// Len returns the number of variables.
func (t *VarTab) Len() int { return len(t.Vars) }

// Lookup scans the table for a variable matching both id and scope.
func (t *VarTab) Lookup(id uint32, scope dof.Scope) (Var, bool) {
	for _, v := range t.Vars {
		if v.ID == id && v.Scope == scope {
			return v, true
		}
	}
	return Var{}, false
}

// Code is a DIF section: an array of instruction words.
type Code struct {
	SectionHeader
	Instrs []dif.Instr
}

func (c *Container) newCode(h SectionHeader) (Section, error) {
	n, err := c.clamp(h.Size/dof.InstrSize, "instructions", h.Index)
	if err != nil {
		return nil, err
	}
	b, err := c.bytes(h.Offset, uint64(n)*dof.InstrSize)
	if err != nil {
		return nil, err
	}
	code := &Code{SectionHeader: h, Instrs: make([]dif.Instr, n)}
	for i := range code.Instrs {
		code.Instrs[i] = dif.Instr(c.order.Uint32(b[i*dof.InstrSize:]))
	}
	return code, nil
}

// Len returns the number of instructions.
func (code *Code) Len() int { return len(code.Instrs) }

// At returns instruction i.
func (code *Code) At(i int) (dif.Instr, error) {
	if i < 0 || i >= len(code.Instrs) {
		return 0, errors.Wrapf(dof.ErrOutOfRange, "instruction %d of %d", i, len(code.Instrs))
	}
	return code.Instrs[i], nil
}

// ArgMap is a PRARGS section: argument mapping bytes indexed by probe argidx.
type ArgMap struct {
	SectionHeader
	Args []uint8
}

func (c *Container) newArgMap(h SectionHeader) (Section, error) {
	b, err := c.bytes(h.Offset, h.Size)
	if err != nil {
		return nil, err
	}
	return &ArgMap{SectionHeader: h, Args: b}, nil
}

// Slice returns n entries starting at i.
func (m *ArgMap) Slice(i, n uint32) ([]uint8, error) {
	if uint64(i)+uint64(n) > uint64(len(m.Args)) {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "args [%d, +%d) in map of %d", i, n, len(m.Args))
	}
	return m.Args[i : i+n], nil
}

// Offsets is a PROFFS or PRENOFFS section: probe offsets relative to the
// function start.
type Offsets struct {
	SectionHeader
	Offs []uint32
}

func (c *Container) newOffsets(h SectionHeader) (Section, error) {
	n, err := c.clamp(h.Size/4, "offsets", h.Index)
	if err != nil {
		return nil, err
	}
	b, err := c.bytes(h.Offset, uint64(n)*4)
	if err != nil {
		return nil, err
	}
	o := &Offsets{SectionHeader: h, Offs: make([]uint32, n)}
	for i := range o.Offs {
		o.Offs[i] = c.order.Uint32(b[i*4:])
	}
	return o, nil
}

// Slice returns n entries starting at i.
func (o *Offsets) Slice(i uint32, n uint32) ([]uint32, error) {
	if uint64(i)+uint64(n) > uint64(len(o.Offs)) {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "offsets [%d, +%d) in table of %d", i, n, len(o.Offs))
	}
	return o.Offs[i : i+n], nil
}
