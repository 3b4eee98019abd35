// Package doftest builds synthetic DOF images for tests.
package doftest

import (
	"encoding/binary"
	"fmt"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/dif"
)

// Sec describes one section to emit. When Raw is set, Offset and Size are
// written as given and Data is ignored; otherwise Data is placed after the
// section table and the descriptor points at it.
type Sec struct {
	Type    dof.SectionType
	Align   uint32
	Flags   uint32
	EntSize uint32
	Data    []byte

	Raw    bool
	Offset uint64
	Size   uint64
}

// Builder assembles a DOF image: header, section table, then section data
// in table order, each aligned to 8 bytes.
type Builder struct {
	Order    Order
	Encoding uint8
	Model    uint8
	DifVers  uint8

	// SecSize overrides the descriptor stride when non-zero.
	SecSize uint32

	secs []Sec
}

// Order is a byte order that can also append.
type Order interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// New returns a little-endian LP64 builder.
func New() *Builder {
	return &Builder{Order: binary.LittleEndian, Encoding: dof.EncodingLSB, Model: dof.ModelLP64, DifVers: 2}
}

// NewMSB returns a big-endian LP64 builder.
func NewMSB() *Builder {
	return &Builder{Order: binary.BigEndian, Encoding: dof.EncodingMSB, Model: dof.ModelLP64, DifVers: 2}
}

// Add appends a section and returns its index.
func (b *Builder) Add(t dof.SectionType, entsize uint32, data []byte) dof.SecIdx {
	return b.AddSec(Sec{Type: t, Align: 8, Flags: dof.SecFlagLoad, EntSize: entsize, Data: data})
}

// AddSec appends a fully specified section and returns its index.
func (b *Builder) AddSec(s Sec) dof.SecIdx {
	b.secs = append(b.secs, s)
	return dof.SecIdx(len(b.secs) - 1)
}

// Set replaces section i. Use it to patch in records that refer to sections
// added later.
func (b *Builder) Set(i dof.SecIdx, data []byte) {
	b.secs[i].Data = data
}

// Bytes lays out the image.
func (b *Builder) Bytes() []byte {
	secsize := b.SecSize
	if secsize == 0 {
		secsize = dof.SecHeaderSize
	}
	tableEnd := uint64(dof.HeaderSize) + uint64(len(b.secs))*uint64(max(secsize, dof.SecHeaderSize))
	offs := make([]uint64, len(b.secs))
	end := align8(tableEnd)
	for i, s := range b.secs {
		if s.Raw {
			continue
		}
		offs[i] = end
		end = align8(end + uint64(len(s.Data)))
	}

	out := make([]byte, end)
	copy(out, dof.Magic[:])
	out[dof.IDModel] = b.Model
	out[dof.IDEncoding] = b.Encoding
	out[dof.IDVersion] = 2
	out[dof.IDDifVers] = b.DifVers
	out[dof.IDDifIReg] = 8
	out[dof.IDDifTReg] = 8
	o := b.Order
	o.PutUint32(out[16:], 0)
	o.PutUint32(out[20:], dof.HeaderSize)
	o.PutUint32(out[24:], secsize)
	o.PutUint32(out[28:], uint32(len(b.secs)))
	o.PutUint64(out[32:], dof.HeaderSize)
	o.PutUint64(out[40:], end)
	o.PutUint64(out[48:], end)

	for i, s := range b.secs {
		h := out[dof.HeaderSize+uint64(i)*uint64(secsize):]
		off, size := offs[i], uint64(len(s.Data))
		if s.Raw {
			off, size = s.Offset, s.Size
		} else {
			copy(out[off:], s.Data)
		}
		o.PutUint32(h[0:], uint32(s.Type))
		o.PutUint32(h[4:], s.Align)
		o.PutUint32(h[8:], s.Flags)
		o.PutUint32(h[12:], s.EntSize)
		o.PutUint64(h[16:], off)
		o.PutUint64(h[24:], size)
	}
	return out
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }

// Record encodes fields in order using the builder's byte order. Supported
// field types are uint8, uint16, uint32, int32, uint64, dof.SecIdx,
// dof.ActionKind and Pad.
func (b *Builder) Record(fields ...any) []byte {
	var out []byte
	for _, f := range fields {
		switch v := f.(type) {
		case uint8:
			out = append(out, v)
		case uint16:
			out = b.Order.AppendUint16(out, v)
		case uint32:
			out = b.Order.AppendUint32(out, v)
		case int32:
			out = b.Order.AppendUint32(out, uint32(v))
		case dof.SecIdx:
			out = b.Order.AppendUint32(out, uint32(v))
		case dof.ActionKind:
			out = b.Order.AppendUint32(out, uint32(v))
		case uint64:
			out = b.Order.AppendUint64(out, v)
		case Pad:
			out = append(out, make([]byte, v)...)
		default:
			panic(fmt.Sprintf("doftest: unsupported record field %T", f))
		}
	}
	return out
}

// Pad is a run of zero bytes in a Record.
type Pad int

// Words encodes 32-bit words, for offset tables.
func (b *Builder) Words(ws ...uint32) []byte {
	var out []byte
	for _, w := range ws {
		out = b.Order.AppendUint32(out, w)
	}
	return out
}

// Code encodes DIF instructions.
func (b *Builder) Code(ins ...dif.Instr) []byte {
	var out []byte
	for _, w := range ins {
		out = b.Order.AppendUint32(out, uint32(w))
	}
	return out
}

// StrTab encodes a string table with a leading empty string and returns the
// offset of each string in strs.
func StrTab(strs ...string) ([]byte, []uint32) {
	b := []byte{0}
	offs := make([]uint32, len(strs))
	for i, s := range strs {
		offs[i] = uint32(len(b))
		b = append(b, s...)
		b = append(b, 0)
	}
	return b, offs
}
