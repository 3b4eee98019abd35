//go:build !linux

package source

import (
	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// Process reads the memory of another process. Only Linux is supported.
type Process struct {
	Pid int
}

// NewProcess always fails on this platform.
func NewProcess(pid int) (*Process, error) {
	return nil, errors.Wrapf(dof.ErrUnsupported, "live memory of pid %d", pid)
}

// ReadMemory implements MemoryReader.
func (pr *Process) ReadMemory(addr uint64, p []byte) (int, error) {
	return 0, errors.Wrap(dof.ErrUnsupported, "live memory")
}
