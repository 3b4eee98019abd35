package container

import (
	"bytes"

	"github.com/zboralski/dof-dumper/dof"
)

// Section is one decoded entry of the section table. The concrete types are
// StrTab, IntTab, VarTab, Code, ArgMap, Offsets, Provider, ECBDesc, ProbeDesc,
// ActDesc, DifoHdr, OptDesc, RelHdr, RelTab, Text and Generic.
type Section interface {
	Header() *SectionHeader
}

// SectionHeader holds the dof_sec_t fields common to every section.
type SectionHeader struct {
	Index     int
	Type      dof.SectionType
	Align     uint32
	Flags     uint32
	EntSize   uint32
	Offset    uint64 // data offset within the image
	Size      uint64 // data size
	HdrOffset uint64 // offset of the dof_sec_t itself
}

func (h *SectionHeader) Header() *SectionHeader { return h }

// Loadable reports whether the section is marked loadable.
func (h *SectionHeader) Loadable() bool { return h.Flags&dof.SecFlagLoad != 0 }

// Generic is a section decoded no further than its descriptor.
type Generic struct {
	SectionHeader
}

// Text is a COMMENTS or SOURCE section.
type Text struct {
	SectionHeader
	Text string
}

func (c *Container) newText(h SectionHeader) (Section, error) {
	b, err := c.bytes(h.Offset, h.Size)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return &Text{SectionHeader: h, Text: string(b)}, nil
}
