package program

import "errors"

var (
	// ErrDuplicateBase means a program file declared the same base name
	// more than once.
	ErrDuplicateBase = errors.New("program: duplicate base declaration")
	// ErrUnknownBase means an instruction referenced a base name no base
	// block declared.
	ErrUnknownBase = errors.New("program: reference to undeclared base")
	// ErrUnknownOpcode means an instruction block's label didn't match any
	// known opcode name.
	ErrUnknownOpcode = errors.New("program: unrecognized opcode")
	// ErrMissingConstant means a FILL instruction omitted its constant
	// attribute.
	ErrMissingConstant = errors.New("program: instruction requires a constant attribute")
	// ErrInvalidBaseName means a declared base name is empty or contains a
	// character unsafe to embed in a DOT label.
	ErrInvalidBaseName = errors.New("program: invalid base name")
)
