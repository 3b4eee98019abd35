package dof

// Mode controls error handling behavior for decode and disassembly.
type Mode int

const (
	// Strict returns an error on the first structural invalidity.
	Strict Mode = iota
	// BestEffort continues past broken sections, collecting diagnostics.
	BestEffort
)

// Options configures decode and disassembly behavior.
type Options struct {
	Mode Mode

	// MaxSteps is a safety cap for record and instruction loops; 0 uses DefaultMaxSteps.
	MaxSteps int

	// MaxReadBytes caps any single data-driven read (string tables, code); 0 uses DefaultMaxReadBytes.
	MaxReadBytes int

	// Layout supplies the record widths the container format leaves to the host.
	// The zero value uses DefaultLayout.
	Layout Layout
}

// DefaultOptions returns Strict mode with the default layout and limits.
func DefaultOptions() Options {
	return Options{Mode: Strict, Layout: DefaultLayout()}
}

// DefaultMaxSteps is the default safety cap for iteration loops.
const DefaultMaxSteps = 1 << 20

// DefaultMaxReadBytes caps a single read (64 MB).
const DefaultMaxReadBytes = 1 << 26

// EffectiveMaxSteps returns the effective step limit.
func (o Options) EffectiveMaxSteps() int {
	if o.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return o.MaxSteps
}

// EffectiveMaxReadBytes returns the effective single-read cap.
func (o Options) EffectiveMaxReadBytes() int {
	if o.MaxReadBytes <= 0 {
		return DefaultMaxReadBytes
	}
	return o.MaxReadBytes
}

// EffectiveLayout returns the layout, substituting DefaultLayout for the zero value.
func (o Options) EffectiveLayout() Layout {
	if o.Layout == (Layout{}) {
		return DefaultLayout()
	}
	return o.Layout
}

// Diagnostic kinds.
const (
	DiagUnresolved    = "unresolved"
	DiagOutOfRange    = "out_of_range"
	DiagUnknownOpcode = "unknown_opcode"
	DiagClamped       = "clamped"
	DiagInvalid       = "invalid"
)

// Diagnostic records one anomaly found during decode or disassembly.
type Diagnostic struct {
	Offset  uint64 `json:"offset"` // byte offset in the container, or instruction index in a listing
	Kind    string `json:"kind"`
	Msg     string `json:"msg"`
	Section int    `json:"section"` // section index, -1 when not tied to a section
}

// Result pairs a value with accumulated diagnostics.
type Result[T any] struct {
	Value T
	Diags []Diagnostic
}
