// Package container decodes a DOF image: the header, the section table and
// the typed sections, which are constructed lazily and memoized by index.
package container

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/source"
)

// Header is the decoded dof_hdr_t.
type Header struct {
	Model    uint8
	Encoding uint8
	Version  uint8
	DifVers  uint8
	DifIReg  uint8
	DifTReg  uint8

	Flags    uint32
	HdrSize  uint32
	SecSize  uint32
	SecNum   uint32
	SecOff   uint64
	LoadSize uint64
	FileSize uint64
}

type entry struct {
	sec Section
	err error
}

// Container is a decoded DOF image. Sections are resolved on first request and
// cached for the container's lifetime. A Container is not safe for concurrent use.
type Container struct {
	src    source.Source
	order  binary.ByteOrder
	opt    dof.Options
	layout dof.Layout
	hdr    Header

	cache    map[int]entry
	building map[int]bool
	diags    []dof.Diagnostic
}

// Open validates the header of the DOF image in src. Section bodies are not read.
func Open(src source.Source, opt dof.Options) (*Container, error) {
	layout := opt.EffectiveLayout()
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	c := &Container{
		src:      src,
		opt:      opt,
		layout:   layout,
		cache:    make(map[int]entry),
		building: make(map[int]bool),
	}

	var ident [dof.IDSize]byte
	if err := src.ReadAt(ident[:], 0); err != nil {
		return nil, errors.Wrapf(dof.ErrMalformedContainer, "reading identification: %v", err)
	}
	if [4]byte(ident[:4]) != dof.Magic {
		return nil, errors.Wrapf(dof.ErrMalformedContainer, "bad DOF magic % x", ident[:4])
	}
	h := &c.hdr
	h.Model = ident[dof.IDModel]
	h.Encoding = ident[dof.IDEncoding]
	h.Version = ident[dof.IDVersion]
	h.DifVers = ident[dof.IDDifVers]
	h.DifIReg = ident[dof.IDDifIReg]
	h.DifTReg = ident[dof.IDDifTReg]
	if h.Encoding == dof.EncodingMSB {
		c.order = binary.BigEndian
	} else {
		c.order = binary.LittleEndian
	}

	rest, err := source.Bytes(src, dof.IDSize, dof.HeaderSize-dof.IDSize)
	if err != nil {
		return nil, errors.Wrapf(dof.ErrMalformedContainer, "reading header: %v", err)
	}
	h.Flags = c.order.Uint32(rest[0:])
	h.HdrSize = c.order.Uint32(rest[4:])
	h.SecSize = c.order.Uint32(rest[8:])
	h.SecNum = c.order.Uint32(rest[12:])
	h.SecOff = c.order.Uint64(rest[16:])
	h.LoadSize = c.order.Uint64(rest[24:])
	h.FileSize = c.order.Uint64(rest[32:])

	if h.SecNum > 0 && h.SecSize < dof.SecHeaderSize {
		return nil, errors.Wrapf(dof.ErrMalformedContainer, "section header size %d below %d", h.SecSize, dof.SecHeaderSize)
	}
	return c, nil
}

// Header returns the decoded container header.
func (c *Container) Header() Header { return c.hdr }

// NumSections returns the number of entries in the section table.
func (c *Container) NumSections() int { return int(c.hdr.SecNum) }

// ByteOrder returns the order declared by the identification block.
func (c *Container) ByteOrder() binary.ByteOrder { return c.order }

// Addr returns the address of the image, for display.
func (c *Container) Addr() uint64 { return c.src.Addr() }

// Layout returns the record layout in effect.
func (c *Container) Layout() dof.Layout { return c.layout }

// Diagnostics returns the anomalies recorded while decoding sections so far.
func (c *Container) Diagnostics() []dof.Diagnostic { return c.diags }

// GetSection returns section index, decoding it on first use. A failure is
// scoped to the one section and is remembered, like a success.
func (c *Container) GetSection(index int) (Section, error) {
	if e, ok := c.cache[index]; ok {
		return e.sec, e.err
	}
	if index < 0 || index >= int(c.hdr.SecNum) {
		return nil, errors.Wrapf(dof.ErrUnresolvedSectionReference, "section %d not in table of %d", index, c.hdr.SecNum)
	}
	if c.building[index] {
		return nil, errors.Wrapf(dof.ErrUnresolvedSectionReference, "section %d refers back to itself", index)
	}
	c.building[index] = true
	defer delete(c.building, index)

	var sec Section
	h, err := c.readSectionHeader(index)
	if err == nil {
		sec, err = c.construct(h)
	}
	if err != nil {
		err = errors.WithMessagef(err, "section %d", index)
		log.WithFields(log.Fields{"index": index, "type": h.Type}).WithError(err).Warn("section decode failed")
	} else {
		log.WithFields(log.Fields{"index": index, "type": h.Type}).Debug("resolved section")
	}
	c.cache[index] = entry{sec: sec, err: err}
	return sec, err
}

// Sections resolves every section in table order. In Strict mode the first
// failure is returned; in BestEffort mode failures are aggregated and the
// sections that did resolve are returned alongside them.
func (c *Container) Sections() ([]Section, error) {
	n, err := c.clamp(uint64(c.hdr.SecNum), "sections", -1)
	if err != nil {
		return nil, err
	}
	var out []Section
	var merr *multierror.Error
	for i := 0; i < n; i++ {
		sec, err := c.GetSection(i)
		if err != nil {
			if c.opt.Mode == dof.Strict {
				return nil, err
			}
			merr = multierror.Append(merr, err)
			continue
		}
		out = append(out, sec)
	}
	return out, merr.ErrorOrNil()
}

// Descriptor reads the table entry for section index without decoding the
// section body. It still succeeds for a section whose body fails to decode.
func (c *Container) Descriptor(index int) (SectionHeader, error) {
	if index < 0 || index >= int(c.hdr.SecNum) {
		return SectionHeader{Index: index}, errors.Wrapf(dof.ErrUnresolvedSectionReference, "section %d not in table of %d", index, c.hdr.SecNum)
	}
	return c.readSectionHeader(index)
}

func (c *Container) readSectionHeader(index int) (SectionHeader, error) {
	off, err := addOffset(c.hdr.SecOff, uint64(index)*uint64(c.hdr.SecSize))
	if err != nil {
		return SectionHeader{Index: index}, errors.WithMessage(err, "section header")
	}
	b, err := source.Bytes(c.src, off, dof.SecHeaderSize)
	if err != nil {
		return SectionHeader{Index: index}, errors.WithMessage(err, "section header")
	}
	return SectionHeader{
		Index:     index,
		Type:      dof.SectionType(c.order.Uint32(b[0:])),
		Align:     c.order.Uint32(b[4:]),
		Flags:     c.order.Uint32(b[8:]),
		EntSize:   c.order.Uint32(b[12:]),
		Offset:    c.order.Uint64(b[16:]),
		Size:      c.order.Uint64(b[24:]),
		HdrOffset: off,
	}, nil
}

// construct dispatches on the type tag. Tags without a dedicated variant,
// including unknown ones, yield a Generic section.
func (c *Container) construct(h SectionHeader) (Section, error) {
	switch h.Type {
	case dof.SectStrTab:
		return c.newStrTab(h)
	case dof.SectIntTab:
		return c.newIntTab(h)
	case dof.SectVarTab:
		return c.newVarTab(h)
	case dof.SectDif:
		return c.newCode(h)
	case dof.SectPrArgs:
		return c.newArgMap(h)
	case dof.SectPrOffs, dof.SectPrEnOffs:
		return c.newOffsets(h)
	case dof.SectProvider:
		return c.newProvider(h)
	case dof.SectECBDesc:
		return c.newECBDesc(h)
	case dof.SectProbeDesc:
		return c.newProbeDesc(h)
	case dof.SectActDesc:
		return c.newActDesc(h)
	case dof.SectDifoHdr:
		return c.newDifoHdr(h)
	case dof.SectOptDesc:
		return c.newOptDesc(h)
	case dof.SectURelHdr, dof.SectKRelHdr:
		return c.newRelHdr(h)
	case dof.SectRelTab:
		return c.newRelTab(h)
	case dof.SectComments, dof.SectSource:
		return c.newText(h)
	}
	return &Generic{SectionHeader: h}, nil
}

// resolve returns the section referenced by idx. Any failure, including a
// NONE index, is an unresolved reference from the caller's point of view.
func (c *Container) resolve(idx dof.SecIdx, what string) (Section, error) {
	if idx == dof.SecIdxNone {
		return nil, errors.Wrapf(dof.ErrUnresolvedSectionReference, "%s section is NONE", what)
	}
	sec, err := c.GetSection(int(idx))
	if err != nil {
		if errors.Is(err, dof.ErrUnresolvedSectionReference) {
			return nil, errors.WithMessagef(err, "%s", what)
		}
		return nil, errors.Wrapf(dof.ErrUnresolvedSectionReference, "%s section %d: %v", what, idx, err)
	}
	return sec, nil
}

// resolveAs resolves idx and checks the variant type.
func resolveAs[T Section](c *Container, idx dof.SecIdx, what string) (T, error) {
	var zero T
	sec, err := c.resolve(idx, what)
	if err != nil {
		return zero, err
	}
	t, ok := sec.(T)
	if !ok {
		return zero, errors.Wrapf(dof.ErrUnresolvedSectionReference, "%s section %d is %s", what, idx, sec.Header().Type)
	}
	return t, nil
}

// clamp bounds a data-driven count by MaxSteps.
func (c *Container) clamp(n uint64, what string, section int) (int, error) {
	max := uint64(c.opt.EffectiveMaxSteps())
	if n <= max {
		return int(n), nil
	}
	if c.opt.Mode == dof.Strict {
		return 0, errors.Errorf("%s count %d exceeds limit %d", what, n, max)
	}
	c.diag(section, 0, dof.DiagClamped, fmt.Sprintf("%s count %d clamped to %d", what, n, max))
	return int(max), nil
}

func (c *Container) diag(section int, off uint64, kind, msg string) {
	c.diags = append(c.diags, dof.Diagnostic{Offset: off, Kind: kind, Msg: msg, Section: section})
}

// bytes reads a data-driven range, bounded by MaxReadBytes.
func (c *Container) bytes(off, n uint64) ([]byte, error) {
	if max := uint64(c.opt.EffectiveMaxReadBytes()); n > max {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "read of %d bytes exceeds max %d", n, max)
	}
	return source.Bytes(c.src, off, n)
}

// record reads a fixed-size record at off, checking it fits in the section.
func (c *Container) record(h SectionHeader, rel, size uint64, what string) ([]byte, error) {
	if rel > h.Size || size > h.Size-rel {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "%s record [%d, +%d) beyond section size %d", what, rel, size, h.Size)
	}
	off, err := addOffset(h.Offset, rel)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s record", what)
	}
	return c.bytes(off, size)
}

// addOffset returns base+rel, or ErrOutOfRange when the sum wraps.
func addOffset(base, rel uint64) (uint64, error) {
	if rel > math.MaxUint64-base {
		return 0, errors.Wrapf(dof.ErrOutOfRange, "offset %#x+%#x wraps", base, rel)
	}
	return base + rel, nil
}
