// Package disasm renders DIF instruction arrays as text, resolving integer,
// string and variable operands through the tables of their compiled object.
package disasm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/container"
	"github.com/zboralski/dof-dumper/dof/dif"
)

const commentCol = 48

// Program is the code of one compiled object and the tables its operands
// refer to. Any table may be nil; references into a nil table get no annotation.
type Program struct {
	Code   []dif.Instr
	StrTab *container.StrTab
	IntTab *container.IntTab
	VarTab *container.VarTab

	// Section is the DIF section index reported in diagnostics.
	Section int
}

// FromDifo collects the linked sections of a DIFO header.
func FromDifo(d *container.DifoHdr) *Program {
	p := &Program{
		StrTab:  d.StrTab,
		IntTab:  d.IntTab,
		VarTab:  d.VarTab,
		Section: -1,
	}
	if d.Code != nil {
		p.Code = d.Code.Instrs
		p.Section = d.Code.Index
	}
	return p
}

// Line is one formatted instruction.
type Line struct {
	Index    int
	Word     dif.Instr
	Mnemonic string
	Operands string
	Comment  string // annotation without the "! " marker; empty when none
	Known    bool   // false for opcodes beyond the table
}

func (l Line) String() string {
	s := fmt.Sprintf("%02d: %08x    %-4s", l.Index, uint32(l.Word), l.Mnemonic)
	if l.Operands != "" {
		s += " " + l.Operands
	}
	if l.Comment == "" {
		return strings.TrimRight(s, " ")
	}
	pad := commentCol - len(s)
	if pad < 1 {
		pad = 1
	}
	return s + strings.Repeat(" ", pad) + "! " + l.Comment
}

// Disassemble produces the listing for p: a column header, then one line per
// instruction with a label line before every branch target. Unknown opcodes
// render as a placeholder and are reported as diagnostics, never as errors.
// An error is returned only in Strict mode when the code exceeds MaxSteps.
func Disassemble(p *Program, opt dof.Options) (dof.Result[string], error) {
	var b strings.Builder
	var diags []dof.Diagnostic

	code := p.Code
	if max := opt.EffectiveMaxSteps(); len(code) > max {
		if opt.Mode == dof.Strict {
			return dof.Result[string]{}, errors.Errorf("%d instructions exceed step limit %d", len(code), max)
		}
		diags = append(diags, dof.Diagnostic{
			Offset:  uint64(max),
			Kind:    dof.DiagClamped,
			Msg:     fmt.Sprintf("step limit %d reached, truncating %d instructions", max, len(code)),
			Section: p.Section,
		})
		code = code[:max]
	}
	labels := dif.CollectLabels(code)

	fmt.Fprintf(&b, "%-3s %-8s    %s\n", "OFF", "OPCODE", "INSTRUCTION")
	for i, ins := range code {
		if _, ok := labels[uint32(i)]; ok {
			fmt.Fprintf(&b, "L%d:\n", i)
		}
		l := Instruction(p, ins)
		l.Index = i
		if !l.Known {
			diags = append(diags, dof.Diagnostic{
				Offset:  uint64(i),
				Kind:    dof.DiagUnknownOpcode,
				Msg:     errors.Wrapf(dof.ErrUnknownOpcode, "opcode 0x%02x", ins.Op()).Error(),
				Section: p.Section,
			})
		}
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return dof.Result[string]{Value: b.String(), Diags: diags}, nil
}

// Lines formats every instruction of p without the header or label lines.
func Lines(p *Program) []Line {
	out := make([]Line, len(p.Code))
	for i, ins := range p.Code {
		out[i] = Instruction(p, ins)
		out[i].Index = i
	}
	return out
}

// Instruction formats a single instruction word. Index is left zero.
func Instruction(p *Program, ins dif.Instr) Line {
	l := Line{Word: ins}
	info, ok := dif.Lookup(ins.Op())
	if !ok {
		l.Mnemonic = fmt.Sprintf("OP_0x%02X", ins.Op())
		return l
	}
	l.Known = true
	l.Mnemonic = info.Name

	switch info.Format {
	case dif.FmtBare:
	case dif.FmtLog:
		l.Operands = fmt.Sprintf("%%r%d, %%r%d, %%r%d", ins.R1(), ins.R2(), ins.Rd())
	case dif.FmtR1Rd:
		l.Operands = fmt.Sprintf("%%r%d, %%r%d", ins.R1(), ins.Rd())
	case dif.FmtCmp:
		l.Operands = fmt.Sprintf("%%r%d, %%r%d", ins.R1(), ins.R2())
	case dif.FmtTst:
		l.Operands = fmt.Sprintf("%%r%d", ins.R1())
	case dif.FmtBranch:
		l.Operands = fmt.Sprintf("L%d", ins.Label())
	case dif.FmtLoad:
		l.Operands = fmt.Sprintf("[%%r%d], %%r%d", ins.R1(), ins.Rd())
	case dif.FmtStore:
		l.Operands = fmt.Sprintf("%%r%d, [%%r%d]", ins.R1(), ins.Rd())
	case dif.FmtRet:
		l.Operands = fmt.Sprintf("%%r%d", ins.Rd())
	case dif.FmtSetX:
		idx := ins.Integer()
		l.Operands = fmt.Sprintf("DT_INTEGER[%d], %%r%d", idx, ins.Rd())
		if p.IntTab != nil {
			if v, err := p.IntTab.At(int(idx)); err == nil {
				l.Comment = fmt.Sprintf("0x%x", v)
			}
		}
	case dif.FmtSetS:
		off := ins.Str()
		l.Operands = fmt.Sprintf("DT_STRING[%d], %%r%d", off, ins.Rd())
		if p.StrTab != nil {
			if s, err := p.StrTab.Str(uint64(off)); err == nil {
				l.Comment = fmt.Sprintf("%q", s)
			}
		}
	case dif.FmtLda:
		id := uint32(ins.R1())
		l.Operands = fmt.Sprintf("DT_VAR(%d), %%r%d, %%r%d", id, ins.R2(), ins.Rd())
		l.Comment = p.varComment(id, info.Name)
	case dif.FmtLdv:
		id := uint32(ins.Var())
		l.Operands = fmt.Sprintf("DT_VAR(%d), %%r%d", id, ins.Rd())
		l.Comment = p.varComment(id, info.Name)
	case dif.FmtStv:
		id := uint32(ins.Var())
		l.Operands = fmt.Sprintf("%%r%d, DT_VAR(%d)", ins.Rs(), id)
		l.Comment = p.varComment(id, info.Name)
	case dif.FmtCall:
		l.Operands = fmt.Sprintf("DIF_SUBR(%d), %%r%d", ins.Subr(), ins.Rd())
		l.Comment = dif.SubrName(ins.Subr())
	case dif.FmtPushT:
		t := ins.Type()
		l.Operands = fmt.Sprintf("DT_TYPE(%d), %%r%d, %%r%d", t, ins.R2(), ins.Rs())
		switch t {
		case 0:
			l.Comment = "DT_TYPE(0) = D type"
		case 1:
			l.Comment = "DT_TYPE(1) = string"
		}
	case dif.FmtXlate:
		l.Operands = fmt.Sprintf("DT_XLREF[%d], %%r%d", ins.XLRef(), ins.Rd())
	}
	return l
}

// VarName resolves a variable by id and scope. ok is false when the table has
// no match or the name is not in the string table.
func (p *Program) VarName(id uint32, scope dof.Scope) (string, bool) {
	if p.VarTab == nil || p.StrTab == nil {
		return "", false
	}
	v, ok := p.VarTab.Lookup(id, scope)
	if !ok {
		return "", false
	}
	name, err := p.StrTab.Str(uint64(v.Name))
	if err != nil {
		return "", false
	}
	return name, true
}

func (p *Program) varComment(id uint32, mnemonic string) string {
	scope, ok := dif.ScopeOf(mnemonic)
	if !ok {
		return ""
	}
	name, ok := p.VarName(id, scope)
	if !ok {
		return ""
	}
	return fmt.Sprintf("DT_VAR(%d) = %q", id, name)
}
