package dif

// Instr is a 32-bit DIF instruction word. Operand fields are extracted by bit
// position; which fields are meaningful depends on the opcode's Format.
type Instr uint32

// Field accessors. Op is the top byte. R1, R2 and Rd/Rs are the three
// register bytes below it. Label is the low 24 bits. Var, Integer, Str, Subr
// and XLRef are the 16-bit index in bits 8-23. Type is the push type byte.
func (i Instr) Op() uint8       { return uint8(i >> 24) }
func (i Instr) R1() uint8       { return uint8(i >> 16) }
func (i Instr) R2() uint8       { return uint8(i >> 8) }
func (i Instr) Rd() uint8       { return uint8(i) }
func (i Instr) Rs() uint8       { return uint8(i) }
func (i Instr) Label() uint32   { return uint32(i) & 0xffffff }
func (i Instr) Var() uint16     { return uint16(i >> 8) }
func (i Instr) Integer() uint16 { return uint16(i >> 8) }
func (i Instr) Str() uint16     { return uint16(i >> 8) }
func (i Instr) Subr() uint16    { return uint16(i >> 8) }
func (i Instr) Type() uint8     { return uint8(i >> 16) }
func (i Instr) XLRef() uint16   { return uint16(i >> 8) }

// Fmt builds an instruction with three 8-bit operand fields.
func Fmt(op, r1, r2, d uint8) Instr {
	return Instr(uint32(op)<<24 | uint32(r1)<<16 | uint32(r2)<<8 | uint32(d))
}

// EncodeBranch builds a branch instruction.
func EncodeBranch(op uint8, label uint32) Instr {
	return Instr(uint32(op)<<24 | label&0xffffff)
}

// FmtIndex builds an instruction carrying a 16-bit table index and a register.
func FmtIndex(op uint8, idx uint16, d uint8) Instr {
	return Instr(uint32(op)<<24 | uint32(idx)<<8 | uint32(d))
}
