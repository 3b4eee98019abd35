package source

import "os"

// Blob is an immutable in-memory DOF image.
type Blob struct {
	Name string // section or file name, informational
	data []byte
	addr uint64
}

// NewBlob wraps data. addr is the display address of offset 0.
// The caller must not modify data afterwards.
func NewBlob(data []byte, addr uint64) *Blob {
	return &Blob{data: data, addr: addr}
}

// ReadFile loads a raw DOF image from disk.
func ReadFile(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b := NewBlob(data, 0)
	b.Name = path
	return b, nil
}

// ReadAt copies len(p) bytes at off, failing with ErrOutOfRange past the end.
func (b *Blob) ReadAt(p []byte, off uint64) error {
	if err := checkRange(off, uint64(len(p)), uint64(len(b.data))); err != nil {
		return err
	}
	copy(p, b.data[off:])
	return nil
}

// Addr returns the display address of offset 0.
func (b *Blob) Addr() uint64 { return b.addr }

// Len returns the blob size.
func (b *Blob) Len() int { return len(b.data) }
