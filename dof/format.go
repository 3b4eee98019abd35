package dof

import "fmt"

// Magic is the four-byte container signature at ident[0..3].
var Magic = [4]byte{0x7f, 'D', 'O', 'F'}

// Identification block byte positions.
const (
	IDModel    = 4
	IDEncoding = 5
	IDVersion  = 6
	IDDifVers  = 7
	IDDifIReg  = 8
	IDDifTReg  = 9
	IDSize     = 16
)

// Data models.
const (
	ModelNone  = 0
	ModelILP32 = 1
	ModelLP64  = 2
)

// Encodings.
const (
	EncodingNone = 0
	EncodingLSB  = 1
	EncodingMSB  = 2
)

// ModelString names a data model.
func ModelString(m uint8) string {
	switch m {
	case ModelNone:
		return "NONE"
	case ModelILP32:
		return "ILP32"
	case ModelLP64:
		return "LP64"
	}
	return fmt.Sprintf("??? (%d)", m)
}

// EncodingString names a byte order encoding.
func EncodingString(e uint8) string {
	switch e {
	case EncodingNone:
		return "NONE"
	case EncodingLSB:
		return "LSB"
	case EncodingMSB:
		return "MSB"
	}
	return fmt.Sprintf("??? (%d)", e)
}

// SectionType is a dof_sec_t type tag.
type SectionType uint32

const (
	SectNone SectionType = iota
	SectComments
	SectSource
	SectECBDesc
	SectProbeDesc
	SectActDesc
	SectDifoHdr
	SectDif
	SectStrTab
	SectVarTab
	SectRelTab
	SectTypTab
	SectURelHdr
	SectKRelHdr
	SectOptDesc
	SectProvider
	SectProbes
	SectPrArgs
	SectPrOffs
	SectIntTab
	SectUtsname
	SectXLTab
	SectXLMembers
	SectXLImport
	SectXLExport
	SectPrExport
	SectPrEnOffs
)

var sectionNames = [...]string{
	"NONE", "COMMENTS", "SOURCE", "ECBDESC", "PROBEDESC",
	"ACTDESC", "DIFOHDR", "DIF", "STRTAB", "VARTAB", "RELTAB", "TYPTAB",
	"URELHDR", "KRELHDR", "OPTDESC", "PROVIDER", "PROBES", "PRARGS",
	"PROFFS", "INTTAB", "UTSNAME", "XLTAB", "XLMEMBERS", "XLIMPORT",
	"XLEXPORT", "PREXPORT", "PRENOFFS",
}

// Known reports whether t is one of the defined tags.
func (t SectionType) Known() bool {
	return int(t) < len(sectionNames)
}

func (t SectionType) String() string {
	if t.Known() {
		return sectionNames[t]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
}

// SecFlagLoad marks a section as loadable.
const SecFlagLoad = 1

// SecIdx is a signed section index as stored in records.
type SecIdx int32

// SecIdxNone is the "no section" sentinel.
const SecIdxNone SecIdx = -1

func (i SecIdx) String() string {
	if i == SecIdxNone {
		return "NONE"
	}
	return fmt.Sprintf("%d", int32(i))
}

// Scope is a DIF variable scope.
type Scope uint8

const (
	ScopeGlobal Scope = 0
	ScopeThread Scope = 1
	ScopeLocal  Scope = 2
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeThread:
		return "thread"
	case ScopeLocal:
		return "local"
	}
	return fmt.Sprintf("scope(%d)", uint8(s))
}

// ActionKind is a dofa_kind value.
type ActionKind uint32

const (
	ActNone            ActionKind = 0
	ActDifExpr         ActionKind = 1
	ActExit            ActionKind = 2
	ActPrintf          ActionKind = 3
	ActPrinta          ActionKind = 4
	ActLibAct          ActionKind = 5
	ActTraceMem        ActionKind = 6
	ActTraceMemDynSize ActionKind = 7

	ActProc   ActionKind = 0x0100
	ActUStack            = ActProc + 1
	ActJStack            = ActProc + 2
	ActUSym              = ActProc + 3
	ActUMod              = ActProc + 4
	ActUAddr             = ActProc + 5

	ActProcDestructive ActionKind = 0x0200
	ActStop                       = ActProcDestructive + 1
	ActRaise                      = ActProcDestructive + 2
	ActSystem                     = ActProcDestructive + 3
	ActFreopen                    = ActProcDestructive + 4

	ActKernel ActionKind = 0x0400
	ActStack             = ActKernel + 1
	ActSym               = ActKernel + 2
	ActMod               = ActKernel + 3

	ActKernelDestructive ActionKind = 0x0500
	ActBreakpoint                   = ActKernelDestructive + 1
	ActPanic                        = ActKernelDestructive + 2
	ActChill                        = ActKernelDestructive + 3

	ActSpeculative ActionKind = 0x0600
	ActSpeculate              = ActSpeculative + 1
	ActCommit                 = ActSpeculative + 2
	ActDiscard                = ActSpeculative + 3

	ActAggregation ActionKind = 0x0700
	AggCount                  = ActAggregation + 1
	AggMin                    = ActAggregation + 2
	AggMax                    = ActAggregation + 3
	AggAvg                    = ActAggregation + 4
	AggSum                    = ActAggregation + 5
	AggStddev                 = ActAggregation + 6
	AggQuantize               = ActAggregation + 7
	AggLQuantize              = ActAggregation + 8
	AggLLQuantize             = ActAggregation + 9
)

var actionNames = map[ActionKind]string{
	ActNone:            "NONE",
	ActDifExpr:         "DIFEXPR",
	ActExit:            "EXIT",
	ActPrintf:          "PRINTF",
	ActPrinta:          "PRINTA",
	ActLibAct:          "LIBACT",
	ActTraceMem:        "TRACEMEM",
	ActTraceMemDynSize: "TRACEMEM_DYNSIZE",
	ActUStack:          "USTACK",
	ActJStack:          "JSTACK",
	ActUSym:            "USYM",
	ActUMod:            "UMOD",
	ActUAddr:           "UADDR",
	ActStop:            "STOP",
	ActRaise:           "RAISE",
	ActSystem:          "SYSTEM",
	ActFreopen:         "FREOPEN",
	ActStack:           "STACK",
	ActSym:             "SYM",
	ActMod:             "MOD",
	ActBreakpoint:      "BREAKPOINT",
	ActPanic:           "PANIC",
	ActChill:           "CHILL",
	ActSpeculate:       "SPECULATE",
	ActCommit:          "COMMIT",
	ActDiscard:         "DISCARD",
	AggCount:           "COUNT",
	AggMin:             "MIN",
	AggMax:             "MAX",
	AggAvg:             "AVG",
	AggSum:             "SUM",
	AggStddev:          "STDDEV",
	AggQuantize:        "QUANTIZE",
	AggLQuantize:       "LQUANTIZE",
	AggLLQuantize:      "LLQUANTIZE",
}

func (k ActionKind) String() string {
	if s, ok := actionNames[k]; ok {
		return s
	}
	return fmt.Sprintf("??? (%d)", uint32(k))
}

// TakesStringArg reports whether the action's argument is a string table offset.
func (k ActionKind) TakesStringArg() bool {
	switch k {
	case ActPrintf, ActPrinta, ActSystem, ActFreopen:
		return true
	}
	return false
}

// Relocation types.
const (
	RelocNone   = 0
	RelocSetX   = 1
	RelocDofRel = 2
)

// RelocString names a relocation type.
func RelocString(t uint32) string {
	switch t {
	case RelocNone:
		return "NONE"
	case RelocSetX:
		return "SETX"
	case RelocDofRel:
		return "DOFREL"
	}
	return fmt.Sprintf("??? (%d)", t)
}
