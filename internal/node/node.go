// Package node defines the plain-data building blocks of the instruction
// graph: the opcode table, operand views, and the fixed-fan-in/out Node
// struct the graph builder and scheduler operate on.
//
// Everything here is a value type with no behavior beyond arity lookup and
// formatting. Graph construction lives in internal/dag; this package only
// describes the shapes it assembles.
package node

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Invalid is the sentinel index for an absent node, parent, child, or
// instruction reference. It is distinct from any valid arena index, which
// are always >= 0.
const Invalid = -1

// BaseHandle is an opaque handle to a physical storage region underlying one
// or more views. The core never dereferences it; it exists purely to give
// Base a stable pointer identity to key hazard maps on. Two bases are the
// same array if and only if the pointers are equal.
type BaseHandle struct {
	// Name is advisory only, used for diagnostics (DOT dumps, error
	// messages, the program loader). It plays no role in identity.
	Name string
}

// Base identifies a physical storage region by pointer identity.
type Base = *BaseHandle

// NewBase allocates a fresh, uniquely-identified base array handle.
func NewBase(name string) Base {
	return &BaseHandle{Name: name}
}

// View is a reference into a Base plus shape, stride, and starting offset.
// A View is absent when Base is nil, meaning "operand slot unused."
type View struct {
	Base   Base
	Rank   int
	Shape  []int64
	Stride []int64
	Start  int64
}

// IsAbsent reports whether the view has no underlying base, i.e. the
// operand slot it occupies is unused.
func (v View) IsAbsent() bool {
	return v.Base == nil
}

// Operand is one instruction operand slot: either a View into a base array
// or an inline typed Constant. Exactly one of the two is meaningful,
// determined by IsConstant.
type Operand struct {
	View       View
	Constant   cty.Value
	IsConstant bool
}

// ViewOperand wraps a View as an Operand.
func ViewOperand(v View) Operand {
	return Operand{View: v}
}

// ConstantOperand wraps a typed scalar as an Operand.
func ConstantOperand(c cty.Value) Operand {
	return Operand{Constant: c, IsConstant: true}
}

// Base returns the operand's underlying base, or nil if the operand is a
// constant or an absent view.
func (o Operand) Base() Base {
	if o.IsConstant {
		return nil
	}
	return o.View.Base
}

// Opcode enumerates the recorded array operations a single Instruction can
// carry. Arity (the number of meaningful operand slots) is a static
// property of the opcode, looked up via Arity.
type Opcode int

const (
	// Unary element-wise ops. Operand 0 is output, operand 1 is input.
	IDENTITY Opcode = iota
	NEG
	ABS
	SQRT
	EXP
	LOG

	// Binary element-wise ops. Operand 0 is output, 1 and 2 are inputs.
	ADD
	SUB
	MUL
	DIV
	POW
	MIN
	MAX

	// Reductions fold a view's last axis into operand 0. Unary arity.
	SUM_REDUCE
	PRODUCT_REDUCE
	MAX_REDUCE
	MIN_REDUCE

	// FILL writes a constant into operand 0. Binary arity (output + constant).
	FILL

	// SYNC forces materialization of operand 0 without writing it — a
	// read-only barrier. Unary arity, but decodes as a read, not a write
	// (see internal/dag's decodeOperands).
	SYNC

	// FREE releases a base's storage. Unary arity.
	FREE
	// DISCARD marks a view's storage as no longer needed without freeing
	// the underlying base. Unary arity.
	DISCARD

	// USERFUNC is a variable-arity call into an opaque, externally
	// registered function (e.g. a matrix-multiply kernel). Its arity is
	// carried on the instruction itself (Nout + Nin), not this table.
	USERFUNC
)

var opcodeNames = map[Opcode]string{
	IDENTITY: "IDENTITY", NEG: "NEG", ABS: "ABS", SQRT: "SQRT", EXP: "EXP", LOG: "LOG",
	ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", POW: "POW", MIN: "MIN", MAX: "MAX",
	SUM_REDUCE: "SUM_REDUCE", PRODUCT_REDUCE: "PRODUCT_REDUCE",
	MAX_REDUCE: "MAX_REDUCE", MIN_REDUCE: "MIN_REDUCE",
	FILL: "FILL", SYNC: "SYNC", FREE: "FREE", DISCARD: "DISCARD", USERFUNC: "USERFUNC",
}

// String renders the opcode's canonical name, or a numeric fallback for an
// unrecognized value.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

var opcodeArity = map[Opcode]int{
	IDENTITY: 2, NEG: 2, ABS: 2, SQRT: 2, EXP: 2, LOG: 2,
	ADD: 3, SUB: 3, MUL: 3, DIV: 3, POW: 3, MIN: 3, MAX: 3,
	SUM_REDUCE: 2, PRODUCT_REDUCE: 2, MAX_REDUCE: 2, MIN_REDUCE: 2,
	FILL: 2, SYNC: 1, FREE: 1, DISCARD: 1,
}

var opcodesByName map[string]Opcode

func init() {
	opcodesByName = make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		opcodesByName[name] = op
	}
}

// ParseOpcode looks up an opcode by its canonical name (case-sensitive),
// for front-ends that read opcodes as text, such as the program loader.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// Arity returns the number of meaningful operand slots for a non-USERFUNC
// opcode, and false if the opcode is unrecognized or is USERFUNC (whose
// arity is carried on the instruction, not this table).
func Arity(op Opcode) (int, bool) {
	n, ok := opcodeArity[op]
	return n, ok
}

// MaxOperands bounds the fixed-size operand array every Instruction other
// than USERFUNC carries: self, left, right.
const MaxOperands = 3

// UserFunc holds the out-of-band arity and operand vector for a USERFUNC
// instruction. internal/dag's IR.Append rejects one unless Nout == 1 and
// Nin is in {0, 1, 2}.
type UserFunc struct {
	Name     string
	Nout     int
	Nin      int
	Operands []Operand
}

// Instruction is a single recorded array operation.
type Instruction struct {
	Opcode   Opcode
	Operands [MaxOperands]Operand
	UserFunc *UserFunc // non-nil only when Opcode == USERFUNC
}

// String renders the instruction's opcode and each operand, substituting a
// base's advisory Name where available and the literal constant value
// otherwise, for log lines and CLI output.
func (i Instruction) String() string {
	name := i.Opcode.String()
	if i.Opcode == USERFUNC && i.UserFunc != nil {
		name = fmt.Sprintf("USERFUNC(%s)", i.UserFunc.Name)
	}

	var sb strings.Builder
	sb.WriteString(name)
	for k := 0; k < i.NumOperands(); k++ {
		sb.WriteByte(' ')
		operand := i.Operand(k)
		if operand.IsConstant {
			sb.WriteString(formatConstant(operand.Constant))
			continue
		}
		if base := operand.Base(); base != nil {
			sb.WriteString(base.Name)
		} else {
			sb.WriteString("_")
		}
	}
	return sb.String()
}

// formatConstant renders a scalar constant without depending on cty.Value
// satisfying any particular formatting interface.
func formatConstant(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.Number:
		return v.AsBigFloat().String()
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return fmt.Sprintf("%t", v.True())
	default:
		return v.Type().FriendlyName()
	}
}

// NumOperands returns how many of Operands are meaningful (or, for
// USERFUNC, the length of UserFunc.Operands).
func (i Instruction) NumOperands() int {
	if i.Opcode == USERFUNC {
		if i.UserFunc == nil {
			return 0
		}
		return len(i.UserFunc.Operands)
	}
	n, _ := Arity(i.Opcode)
	return n
}

// Operand returns the k-th operand (0-indexed: 0=self, 1=left, 2=right for
// ordinary opcodes; arbitrary index for USERFUNC).
func (i Instruction) Operand(k int) Operand {
	if i.Opcode == USERFUNC {
		return i.UserFunc.Operands[k]
	}
	return i.Operands[k]
}

// Type discriminates the two kinds of DAG vertex.
type Type int

const (
	// InstructionNode wraps exactly one instruction-arena entry.
	InstructionNode Type = iota
	// CollectionNode is an inert pass-through node synthesized to keep
	// fan-in/fan-out at or below two.
	CollectionNode
)

func (t Type) String() string {
	if t == CollectionNode {
		return "COLLECTION"
	}
	return "INSTRUCTION"
}

// Node is one vertex of the dependency DAG. Parent/child fields are indices
// into the node arena (or node.Invalid); InstructionIndex is an index into
// the instruction arena (or node.Invalid when Type == CollectionNode).
type Node struct {
	Type             Type
	InstructionIndex int

	LeftParent  int
	RightParent int
	LeftChild   int
	RightChild  int
}

// NewInstructionNode builds a Node wrapping the given instruction-arena
// index, with no parents or children yet.
func NewInstructionNode(instructionIndex int) Node {
	return Node{
		Type:             InstructionNode,
		InstructionIndex: instructionIndex,
		LeftParent:       Invalid,
		RightParent:      Invalid,
		LeftChild:        Invalid,
		RightChild:       Invalid,
	}
}

// NewCollectionNode builds an inert pass-through Node with no instruction.
func NewCollectionNode() Node {
	return Node{
		Type:             CollectionNode,
		InstructionIndex: Invalid,
		LeftParent:       Invalid,
		RightParent:      Invalid,
		LeftChild:        Invalid,
		RightChild:       Invalid,
	}
}

// HasParent reports whether the node has at least one parent slot filled.
func (n Node) HasParent() bool {
	return n.LeftParent != Invalid || n.RightParent != Invalid
}
