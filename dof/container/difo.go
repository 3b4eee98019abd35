package container

import (
	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/source"
)

// DifType is a dtrace_diftype_t.
type DifType struct {
	Kind  uint8
	CKind uint8
	Flags uint8
	Size  uint32
}

// DifoHdr is a compiled object header: a return type and the links to the
// code and table sections of one DIF object.
type DifoHdr struct {
	SectionHeader
	RType DifType
	Links []dof.SecIdx

	CodeIdx   dof.SecIdx
	StrTabIdx dof.SecIdx
	IntTabIdx dof.SecIdx
	VarTabIdx dof.SecIdx

	Code   *Code
	StrTab *StrTab
	IntTab *IntTab
	VarTab *VarTab
}

// LinkCount returns the number of link entries in a DIFO header section of
// dataSize bytes. The first link lives inside the fixed header, hence the +1.
func LinkCount(dataSize, headerSize, idxSize uint64) uint64 {
	if dataSize < headerSize || idxSize == 0 {
		return 0
	}
	return (dataSize-headerSize)/idxSize + 1
}

func (c *Container) newDifoHdr(h SectionHeader) (Section, error) {
	hs, w := c.layout.DifoHeaderSize, c.layout.SecIdxSize
	if h.Size < hs {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "difo header size %d below %d", h.Size, hs)
	}
	d := &DifoHdr{
		SectionHeader: h,
		CodeIdx:       dof.SecIdxNone,
		StrTabIdx:     dof.SecIdxNone,
		IntTabIdx:     dof.SecIdxNone,
		VarTabIdx:     dof.SecIdxNone,
	}
	if hs >= w+8 {
		r, err := c.record(h, 0, 8, "difo rtype")
		if err != nil {
			return nil, err
		}
		d.RType = DifType{Kind: r[0], CKind: r[1], Flags: r[2], Size: c.order.Uint32(r[4:])}
	}

	n, err := c.clamp(LinkCount(h.Size, hs, w), "difo links", h.Index)
	if err != nil {
		return nil, err
	}
	d.Links = make([]dof.SecIdx, n)
	for i := range d.Links {
		off, err := addOffset(h.Offset, hs+uint64(i)*w-w)
		if err != nil {
			return nil, errors.WithMessagef(err, "difo link %d", i)
		}
		v, err := source.Int(c.src, c.order, off, int(w))
		if err != nil {
			return nil, errors.WithMessagef(err, "difo link %d", i)
		}
		idx := dof.SecIdx(v)
		d.Links[i] = idx
		sec, err := c.resolve(idx, "difo link")
		if err != nil {
			return nil, err
		}
		switch s := sec.(type) {
		case *Code:
			d.CodeIdx, d.Code = idx, s
		case *StrTab:
			d.StrTabIdx, d.StrTab = idx, s
		case *IntTab:
			d.IntTabIdx, d.IntTab = idx, s
		case *VarTab:
			d.VarTabIdx, d.VarTab = idx, s
		}
	}
	return d, nil
}
