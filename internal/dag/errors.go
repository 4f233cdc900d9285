package dag

import "errors"

// Sentinel errors matching the flat taxonomy a caller is expected to
// recognize with errors.Is. Every error dag returns either is one of these
// or wraps one of these with fmt.Errorf("...: %w", ...).
var (
	// ErrAlloc means arena growth or a temporary set allocation failed.
	ErrAlloc = errors.New("dag: allocation failed")
	// ErrBuildFrozen means Append was called after Build succeeded.
	ErrBuildFrozen = errors.New("dag: instruction arena is frozen after build")
	// ErrMalformedUserFunc means a USERFUNC instruction's arity was
	// outside nout=1, nin in {0,1,2} (or its operand vector length did not
	// equal nout+nin), or an ordinary opcode is missing from the static
	// arity table.
	ErrMalformedUserFunc = errors.New("dag: malformed user function arity")
	// ErrSelfCycle means addChild(n, n) was attempted.
	ErrSelfCycle = errors.New("dag: self-referential edge")
	// ErrGraphCorruption means parent/child back-pointers were found
	// inconsistent while rewiring an edge.
	ErrGraphCorruption = errors.New("dag: graph corruption detected")
	// ErrCycleDetected means the scheduler made no progress across a full
	// rotation of its work queue.
	ErrCycleDetected = errors.New("dag: cycle detected")
	// ErrBufferTooSmall means Serialize's output buffer could not hold
	// every emitted instruction.
	ErrBufferTooSmall = errors.New("dag: output buffer too small")
	// ErrEndOfStream is returned by the iterator once exhausted. It is
	// benign — callers drain an iterator by checking for it, not treating
	// it as a failure.
	ErrEndOfStream = errors.New("dag: end of stream")
)
