package source

import (
	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// MemoryReader reads target memory, as exposed by a debugger or the OS.
// It returns the number of bytes read, which may be short at the end of a mapping.
type MemoryReader interface {
	ReadMemory(addr uint64, p []byte) (int, error)
}

// Memory is a view of live target memory starting at Base.
// Every read goes to the target; nothing is cached or retried.
type Memory struct {
	r    MemoryReader
	Base uint64
	// Limit bounds the view when non-zero.
	Limit uint64
}

// NewMemory returns an unbounded view at base.
func NewMemory(r MemoryReader, base uint64) *Memory {
	return &Memory{r: r, Base: base}
}

// ReadAt reads len(p) bytes of target memory at Base+off. A short read is an
// ErrLiveRead.
func (m *Memory) ReadAt(p []byte, off uint64) error {
	if m.Limit != 0 {
		if err := checkRange(off, uint64(len(p)), m.Limit); err != nil {
			return err
		}
	}
	addr := m.Base + off
	if addr < m.Base {
		return errors.Wrapf(dof.ErrOutOfRange, "address overflow at offset %#x", off)
	}
	n, err := m.r.ReadMemory(addr, p)
	if err != nil {
		return errors.Wrapf(dof.ErrLiveRead, "read %d bytes at %#x: %v", len(p), addr, err)
	}
	if n < len(p) {
		return errors.Wrapf(dof.ErrLiveRead, "short read at %#x: %d of %d bytes", addr, n, len(p))
	}
	return nil
}

// Addr returns Base.
func (m *Memory) Addr() uint64 { return m.Base }
