package container

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
)

// Action is one dof_actdesc_t.
type Action struct {
	Kind      dof.ActionKind
	DifoIdx   dof.SecIdx
	StrTabIdx dof.SecIdx
	NTuple    uint32
	Arg       uint64
	UArg      uint64

	// ArgString is the argument resolved through StrTabIdx. It is set only for
	// printf, printa, system and freopen actions with a string table.
	ArgString string
	HasString bool

	// Err is set when the action's string table could not be resolved.
	Err error
}

// ActDesc is an array of action descriptions.
type ActDesc struct {
	SectionHeader
	Actions []Action
}

func (c *Container) newActDesc(h SectionHeader) (Section, error) {
	if h.EntSize < dof.ActDescMinSize {
		return nil, errors.Wrapf(dof.ErrOutOfRange, "action entry size %d below %d", h.EntSize, dof.ActDescMinSize)
	}
	n, err := c.clamp(h.Size/uint64(h.EntSize), "actions", h.Index)
	if err != nil {
		return nil, err
	}
	a := &ActDesc{SectionHeader: h, Actions: make([]Action, n)}
	for i := range a.Actions {
		rel := uint64(i) * uint64(h.EntSize)
		r, err := c.record(h, rel, uint64(h.EntSize), "action")
		if err != nil {
			return nil, err
		}
		act := &a.Actions[i]
		act.DifoIdx = dof.SecIdx(c.order.Uint32(r[0:]))
		act.StrTabIdx = dof.SecIdx(c.order.Uint32(r[4:]))
		act.Kind = dof.ActionKind(c.order.Uint32(r[8:]))
		act.NTuple = c.order.Uint32(r[12:])
		act.Arg = c.order.Uint64(r[16:])
		if h.EntSize >= 32 {
			act.UArg = c.order.Uint64(r[24:])
		}
		if !act.Kind.TakesStringArg() || act.StrTabIdx == dof.SecIdxNone {
			continue
		}
		strtab, err := resolveAs[*StrTab](c, act.StrTabIdx, "action strtab")
		if err == nil {
			act.ArgString, err = strtab.Str(act.Arg)
		}
		if err != nil {
			act.Err = err
			kind := dof.DiagUnresolved
			if errors.Is(err, dof.ErrOutOfRange) {
				kind = dof.DiagOutOfRange
			}
			c.diag(h.Index, h.Offset+rel, kind, fmt.Sprintf("action %d: %v", i, err))
			continue
		}
		act.HasString = true
	}
	return a, nil
}
