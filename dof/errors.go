package dof

import "github.com/pkg/errors"

// Error kinds. Callers compare with errors.Is; decoders wrap them with context.
var (
	// ErrMalformedContainer is fatal to the whole decode.
	ErrMalformedContainer = errors.New("malformed container")
	// ErrOutOfRange reports a read past a source or a table.
	ErrOutOfRange = errors.New("out of range")
	// ErrUnresolvedSectionReference reports a missing, cyclic or mistyped section reference.
	ErrUnresolvedSectionReference = errors.New("unresolved section reference")
	// ErrUnknownOpcode is only ever carried by diagnostics.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrLiveRead reports a failed read from a live target.
	ErrLiveRead = errors.New("live memory read failed")
	// ErrUnsupported reports a byte source unavailable on this platform.
	ErrUnsupported = errors.New("unsupported")
)
