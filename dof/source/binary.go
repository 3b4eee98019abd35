package source

import (
	"debug/elf"
	"debug/macho"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// shtSunwDof is the illumos section type for DOF.
const shtSunwDof = elf.SectionType(0x6ffffff4)

// OpenBinary extracts every DOF section embedded in a Mach-O (thin or
// universal) or ELF file. Sections are returned in file order; for universal
// binaries, names are prefixed with the slice's CPU.
func OpenBinary(path string) ([]*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBinary(f)
}

// ReadBinary is OpenBinary over an already opened file.
func ReadBinary(r io.ReaderAt) ([]*Blob, error) {
	if mf, err := macho.NewFile(r); err == nil {
		defer mf.Close()
		return machoSections(mf, "")
	}
	if ff, err := macho.NewFatFile(r); err == nil {
		defer ff.Close()
		var out []*Blob
		for _, arch := range ff.Arches {
			blobs, err := machoSections(arch.File, arch.Cpu.String()+":")
			if err != nil {
				return nil, err
			}
			out = append(out, blobs...)
		}
		return out, nil
	}
	if ef, err := elf.NewFile(r); err == nil {
		defer ef.Close()
		return elfSections(ef)
	}
	return nil, errors.New("not a Mach-O or ELF file")
}

func machoSections(f *macho.File, prefix string) ([]*Blob, error) {
	var out []*Blob
	for _, s := range f.Sections {
		if s.Seg != "__TEXT" || !strings.HasPrefix(s.Name, "__dof_") {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read %s,%s", s.Seg, s.Name)
		}
		b := NewBlob(data, s.Addr)
		b.Name = prefix + s.Name
		out = append(out, b)
	}
	return out, nil
}

func elfSections(f *elf.File) ([]*Blob, error) {
	var out []*Blob
	for _, s := range f.Sections {
		if s.Name != ".SUNW_dof" && s.Type != shtSunwDof {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read %s", s.Name)
		}
		b := NewBlob(data, s.Addr)
		b.Name = s.Name
		out = append(out, b)
	}
	return out, nil
}
