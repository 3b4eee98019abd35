package dof

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Layout holds the widths of records whose size depends on the producing
// platform's type definitions rather than on the container itself.
type Layout struct {
	// DifoHeaderSize is sizeof(dof_difohdr_t), including the first embedded link.
	DifoHeaderSize uint64 `yaml:"difo_header_size"`
	// SecIdxSize is sizeof(dof_secidx_t).
	SecIdxSize uint64 `yaml:"secidx_size"`
	// VarSize is sizeof(dtrace_difv_t).
	VarSize uint64 `yaml:"var_size"`
}

// Fixed widths.
const (
	HeaderSize     = 64 // dof_hdr_t
	SecHeaderSize  = 32 // dof_sec_t
	InstrSize      = 4  // dif_instr_t
	IntSize        = 8  // uint64_t
	ProviderSize   = 44 // dof_provider_t with dofpv_prenoffs
	ProbeMinSize   = 42 // dof_probe_t up to dofpr_nenoffs
	ECBDescSize    = 24
	ProbeDescSize  = 24
	ActDescMinSize = 24 // dof_actdesc_t up to dofa_arg
	OptDescMinSize = 16
	RelHdrSize     = 12
	RelDescMinSize = 24
	varMinSize     = 12 // name, id, kind, scope, flags
)

// DefaultLayout matches the Darwin and illumos definitions.
func DefaultLayout() Layout {
	return Layout{
		DifoHeaderSize: 12,
		SecIdxSize:     4,
		VarSize:        20,
	}
}

// Validate reports ErrMalformedContainer when a width cannot describe the records.
func (l Layout) Validate() error {
	switch l.SecIdxSize {
	case 2, 4, 8:
	default:
		return errors.Wrapf(ErrMalformedContainer, "layout: secidx_size %d", l.SecIdxSize)
	}
	if l.DifoHeaderSize < l.SecIdxSize {
		return errors.Wrapf(ErrMalformedContainer, "layout: difo_header_size %d smaller than secidx_size %d",
			l.DifoHeaderSize, l.SecIdxSize)
	}
	if l.VarSize < varMinSize {
		return errors.Wrapf(ErrMalformedContainer, "layout: var_size %d below %d", l.VarSize, varMinSize)
	}
	return nil
}

// LoadLayout reads a YAML layout file. Keys not present keep their DefaultLayout value.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	return ParseLayout(data)
}

// ParseLayout decodes a YAML layout document over DefaultLayout.
func ParseLayout(data []byte) (Layout, error) {
	l := DefaultLayout()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && err != io.EOF {
		return Layout{}, errors.Wrap(err, "layout")
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}
