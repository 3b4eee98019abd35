//go:build linux

package source

import (
	"golang.org/x/sys/unix"
)

// Process reads the memory of another process with process_vm_readv.
// The caller needs ptrace access to the target.
type Process struct {
	Pid int
}

// NewProcess returns a reader for pid.
func NewProcess(pid int) (*Process, error) {
	return &Process{Pid: pid}, nil
}

// ReadMemory implements MemoryReader.
func (pr *Process) ReadMemory(addr uint64, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	local := []unix.Iovec{{Base: &p[0]}}
	local[0].SetLen(len(p))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(p)}}
	return unix.ProcessVMReadv(pr.Pid, local, remote, 0)
}
