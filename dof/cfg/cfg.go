// Package cfg splits the code of a compiled object into basic blocks and
// records the subroutine calls and variable accesses of each block.
package cfg

import (
	"fmt"
	"sort"

	"github.com/zboralski/dof-dumper/dof/dif"
	"github.com/zboralski/dof-dumper/dof/disasm"
)

// CallSite records a call instruction.
type CallSite struct {
	Index int
	Subr  uint16
	Name  string // empty for unknown subroutines
}

// VarAccess records a load or store of a named variable.
type VarAccess struct {
	Index int
	Name  string // DT_VAR(id) when the variable table has no match
	Store bool
}

// Successor describes a control flow edge to another basic block.
type Successor struct {
	BlockID int
	Cond    string // "" (unconditional), "T" (branch taken), "F" (fall through)
}

// BasicBlock is a straight-line run of instructions.
type BasicBlock struct {
	ID    int
	Start int
	End   int // exclusive
	Calls []CallSite
	Vars  []VarAccess
	Succs []Successor
	Term  bool // ends with ret or an unconditional branch
}

// Func is the control flow graph of one compiled object.
type Func struct {
	Name   string
	Blocks []*BasicBlock
}

// Build constructs the graph of p's code.
func Build(p *disasm.Program, name string) *Func {
	code := p.Code
	if len(code) == 0 {
		return &Func{Name: name, Blocks: []*BasicBlock{{ID: 0}}}
	}

	// Block starts: entry, branch targets, and whatever follows a transfer.
	starts := map[int]bool{0: true}
	for l := range dif.CollectLabels(code) {
		starts[int(l)] = true
	}
	for i, ins := range code {
		op := ins.Op()
		if (dif.IsBranch(op) || op == dif.OpRet) && i+1 < len(code) {
			starts[i+1] = true
		}
	}
	sorted := make([]int, 0, len(starts))
	for s := range starts {
		sorted = append(sorted, s)
	}
	sort.Ints(sorted)

	blockAt := map[int]int{}
	blocks := make([]*BasicBlock, len(sorted))
	for i, start := range sorted {
		end := len(code)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = &BasicBlock{ID: i, Start: start, End: end}
		blockAt[start] = i
	}

	for _, block := range blocks {
		for i := block.Start; i < block.End; i++ {
			ins := code[i]
			op := ins.Op()
			info, known := dif.Lookup(op)
			if !known {
				continue
			}
			switch info.Format {
			case dif.FmtCall:
				block.Calls = append(block.Calls, CallSite{Index: i, Subr: ins.Subr(), Name: dif.SubrName(ins.Subr())})
			case dif.FmtLda:
				block.Vars = append(block.Vars, varAccess(p, i, uint32(ins.R1()), info.Name, false))
			case dif.FmtLdv:
				block.Vars = append(block.Vars, varAccess(p, i, uint32(ins.Var()), info.Name, false))
			case dif.FmtStv:
				block.Vars = append(block.Vars, varAccess(p, i, uint32(ins.Var()), info.Name, true))
			}

			switch {
			case op == dif.OpBA:
				if bid, ok := blockAt[int(ins.Label())]; ok {
					block.Succs = append(block.Succs, Successor{BlockID: bid})
				}
				block.Term = true
			case dif.IsBranch(op):
				if bid, ok := blockAt[int(ins.Label())]; ok {
					block.Succs = append(block.Succs, Successor{BlockID: bid, Cond: "T"})
				}
				if bid, ok := blockAt[i+1]; ok {
					block.Succs = append(block.Succs, Successor{BlockID: bid, Cond: "F"})
				}
				block.Term = true
			case op == dif.OpRet:
				block.Term = true
			}
		}
		if !block.Term {
			if bid, ok := blockAt[block.End]; ok {
				block.Succs = append(block.Succs, Successor{BlockID: bid})
			}
		}
	}
	return &Func{Name: name, Blocks: blocks}
}

func varAccess(p *disasm.Program, index int, id uint32, mnemonic string, store bool) VarAccess {
	a := VarAccess{Index: index, Name: fmt.Sprintf("DT_VAR(%d)", id), Store: store}
	if scope, ok := dif.ScopeOf(mnemonic); ok {
		if name, ok := p.VarName(id, scope); ok {
			a.Name = name
		}
	}
	return a
}
