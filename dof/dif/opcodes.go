// Package dif describes DIF instruction words: field extraction, the opcode
// table and the subroutine table.
package dif

import "github.com/zboralski/dof-dumper/dof"

// Format is an opcode's operand format class.
type Format uint8

const (
	FmtBare   Format = iota // mnemonic only
	FmtLog                  // r1, r2, rd
	FmtR1Rd                 // r1, rd
	FmtCmp                  // r1, r2
	FmtTst                  // r1
	FmtBranch               // label
	FmtLoad                 // [r1], rd
	FmtStore                // r1, [rd]
	FmtRet                  // rd
	FmtSetX                 // integer table index, rd
	FmtSetS                 // string table offset, rd
	FmtLda                  // variable id in r1, r2, rd
	FmtLdv                  // variable id, rd
	FmtStv                  // rs, variable id
	FmtCall                 // subroutine id, rd
	FmtPushT                // type, r2, rs
	FmtXlate                // translator reference, rd
)

// OpInfo holds metadata about a DIF opcode.
type OpInfo struct {
	Name   string
	Format Format
}

// Opcodes is indexed by opcode. Entry 0 is the illegal opcode.
var Opcodes = [...]OpInfo{
	{"(illegal opcode)", FmtBare},
	{"or", FmtLog},
	{"xor", FmtLog},
	{"and", FmtLog},
	{"sll", FmtLog},
	{"srl", FmtLog},
	{"sub", FmtLog},
	{"add", FmtLog},
	{"mul", FmtLog},
	{"sdiv", FmtLog},
	{"udiv", FmtLog},
	{"srem", FmtLog},
	{"urem", FmtLog},
	{"not", FmtR1Rd},
	{"mov", FmtR1Rd},
	{"cmp", FmtCmp},
	{"tst", FmtTst},
	{"ba", FmtBranch},
	{"be", FmtBranch},
	{"bne", FmtBranch},
	{"bg", FmtBranch},
	{"bgu", FmtBranch},
	{"bge", FmtBranch},
	{"bgeu", FmtBranch},
	{"bl", FmtBranch},
	{"blu", FmtBranch},
	{"ble", FmtBranch},
	{"bleu", FmtBranch},
	{"ldsb", FmtLoad},
	{"ldsh", FmtLoad},
	{"ldsw", FmtLoad},
	{"ldub", FmtLoad},
	{"lduh", FmtLoad},
	{"lduw", FmtLoad},
	{"ldx", FmtLoad},
	{"ret", FmtRet},
	{"nop", FmtBare},
	{"setx", FmtSetX},
	{"sets", FmtSetS},
	{"scmp", FmtCmp},
	{"ldga", FmtLda},
	{"ldgs", FmtLdv},
	{"stgs", FmtStv},
	{"ldta", FmtLda},
	{"ldts", FmtLdv},
	{"stts", FmtStv},
	{"sra", FmtLog},
	{"call", FmtCall},
	{"pushtr", FmtPushT},
	{"pushtv", FmtPushT},
	{"popts", FmtBare},
	{"flushts", FmtBare},
	{"ldgaa", FmtLdv},
	{"ldtaa", FmtLdv},
	{"stgaa", FmtStv},
	{"sttaa", FmtStv},
	{"ldls", FmtLdv},
	{"stls", FmtStv},
	{"allocs", FmtR1Rd},
	{"copys", FmtLog},
	{"stb", FmtStore},
	{"sth", FmtStore},
	{"stw", FmtStore},
	{"stx", FmtStore},
	{"uldsb", FmtLoad},
	{"uldsh", FmtLoad},
	{"uldsw", FmtLoad},
	{"uldub", FmtLoad},
	{"ulduh", FmtLoad},
	{"ulduw", FmtLoad},
	{"uldx", FmtLoad},
	{"rldsb", FmtLoad},
	{"rldsh", FmtLoad},
	{"rldsw", FmtLoad},
	{"rldub", FmtLoad},
	{"rlduh", FmtLoad},
	{"rlduw", FmtLoad},
	{"rldx", FmtLoad},
	{"xlate", FmtXlate},
	{"xlarg", FmtXlate},
}

// Opcode values referenced outside the table.
const (
	OpBA     = 17
	OpBLEU   = 27
	OpRet    = 35
	OpSetX   = 37
	OpSetS   = 38
	OpLdga   = 40
	OpLdgs   = 41
	OpStgs   = 42
	OpLdts   = 44
	OpCall   = 47
	OpPushTR = 48
	OpLdls   = 56
	OpStls   = 57
)

// Lookup returns the table entry for op. ok is false when op is beyond the table.
func Lookup(op uint8) (OpInfo, bool) {
	if int(op) >= len(Opcodes) {
		return OpInfo{}, false
	}
	return Opcodes[op], true
}

// IsBranch reports whether op transfers control to its label.
func IsBranch(op uint8) bool {
	return op >= OpBA && op <= OpBLEU
}

// ScopeOf derives a variable scope from the third character of a variable
// access mnemonic ('g', 't' or 'l'). The instruction itself carries no scope.
func ScopeOf(name string) (dof.Scope, bool) {
	if len(name) < 3 {
		return 0, false
	}
	switch name[2] {
	case 'g':
		return dof.ScopeGlobal, true
	case 't':
		return dof.ScopeThread, true
	case 'l':
		return dof.ScopeLocal, true
	}
	return 0, false
}

// CollectLabels returns the set of instruction indices that are branch targets.
func CollectLabels(code []Instr) map[uint32]struct{} {
	labels := make(map[uint32]struct{})
	for _, ins := range code {
		if IsBranch(ins.Op()) {
			if tgt := ins.Label(); int(tgt) < len(code) {
				labels[tgt] = struct{}{}
			}
		}
	}
	return labels
}
