// Package source provides the byte sources a DOF container is decoded from:
// immutable blobs captured from a binary's section, and views over live memory.
package source

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// Source reads bytes at an offset relative to the start of a DOF image.
// Offsets need not be aligned.
type Source interface {
	// ReadAt fills p from offset off. It fails with dof.ErrOutOfRange when
	// off+len(p) exceeds the source's extent.
	ReadAt(p []byte, off uint64) error
	// Addr is the address of offset 0, used for display only.
	Addr() uint64
}

// Bytes returns an owned copy of n bytes at off.
func Bytes(src Source, off, n uint64) ([]byte, error) {
	if n > math.MaxInt32 {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "read of %d bytes at offset %#x", n, off)
	}
	p := make([]byte, n)
	if err := src.ReadAt(p, off); err != nil {
		return nil, err
	}
	return p, nil
}

// Uint decodes an unsigned integer of width 1, 2, 4 or 8 bytes at off.
func Uint(src Source, order binary.ByteOrder, off uint64, width int) (uint64, error) {
	var buf [8]byte
	switch width {
	case 1, 2, 4, 8:
	default:
		return 0, errors.Errorf("unsupported integer width %d", width)
	}
	p := buf[:width]
	if err := src.ReadAt(p, off); err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(p[0]), nil
	case 2:
		return uint64(order.Uint16(p)), nil
	case 4:
		return uint64(order.Uint32(p)), nil
	}
	return order.Uint64(p), nil
}

// Int decodes a sign-extended integer of width 1, 2, 4 or 8 bytes at off.
func Int(src Source, order binary.ByteOrder, off uint64, width int) (int64, error) {
	v, err := Uint(src, order, off, width)
	if err != nil {
		return 0, err
	}
	shift := uint(64 - 8*width)
	return int64(v<<shift) >> shift, nil
}

// checkRange validates off+n against an extent without overflowing.
func checkRange(off, n, size uint64) error {
	if off > size || n > size-off {
		return errors.Wrapf(dof.ErrOutOfRange, "read [%#x, +%d) beyond extent %#x", off, n, size)
	}
	return nil
}
