package dag

import (
	"fmt"

	"github.com/specialistvlad/bhir/internal/arena"
	"github.com/specialistvlad/bhir/internal/node"
)

// defaultInstructionCapacity and defaultNodeCapacity mirror the original
// Bohrium graph's initial bh_dynamic_list sizes (2000 instructions, 4000
// nodes) — nodes outnumber instructions roughly 2:1 once collection nodes
// are synthesized for fan-in/out overflow.
const (
	defaultInstructionCapacity = 2000
	defaultNodeCapacity        = 4000
)

// IR owns the instruction and node arenas for a single batch, plus the root
// node handle. Before Build, root is node.Invalid and the instruction
// arena is appendable; after Build, root is a valid collection node and the
// instruction arena is frozen.
//
// An IR is created empty, populated by Append, built once via Build,
// traversed zero or more times (each traversal via a fresh Iterator), then
// destroyed. It is not safe for concurrent use: append, build, and
// traversal must not run concurrently on the same IR.
type IR struct {
	instructions *arena.Arena[node.Instruction]
	nodes        *arena.Arena[node.Node]
	root         int
}

// Create constructs an empty IR and, if initial is non-empty, appends it
// before returning.
func Create(initial []node.Instruction) (*IR, error) {
	ir := &IR{
		instructions: arena.New[node.Instruction](defaultInstructionCapacity),
		nodes:        arena.New[node.Node](defaultNodeCapacity),
		root:         node.Invalid,
	}
	if len(initial) > 0 {
		if err := ir.Append(initial); err != nil {
			return nil, err
		}
	}
	return ir, nil
}

// Built reports whether Build has already produced a valid root.
func (ir *IR) Built() bool {
	return ir.root != node.Invalid
}

// Root returns the current root node index, or node.Invalid pre-build.
func (ir *IR) Root() int {
	return ir.root
}

// NodeAt returns the node at index i.
func (ir *IR) NodeAt(i int) node.Node {
	return ir.nodes.At(i)
}

// InstructionAt returns the instruction at index i.
func (ir *IR) InstructionAt(i int) node.Instruction {
	return ir.instructions.At(i)
}

// InstructionCount returns the number of instructions appended so far.
func (ir *IR) InstructionCount() int {
	return ir.instructions.Len()
}

// NodeCount returns the number of nodes allocated so far (zero pre-build).
func (ir *IR) NodeCount() int {
	return ir.nodes.Len()
}

// Build runs the hazard-tracking graph construction pass once. Calling it
// again on an already-built IR is a no-op. Once built, the instruction
// arena is frozen and further Append calls fail with ErrBuildFrozen.
func (ir *IR) Build() error {
	return build(ir)
}

// Append copies each instruction into the instruction arena. It fails with
// ErrBuildFrozen if the IR has already been built, and with
// ErrMalformedUserFunc if any instruction in the batch has invalid arity —
// in either failure case none of the batch is appended.
func (ir *IR) Append(instructions []node.Instruction) error {
	if ir.Built() {
		return ErrBuildFrozen
	}
	for i, instr := range instructions {
		if err := validateArity(instr); err != nil {
			return fmt.Errorf("dag: append: instruction %d: %w", i, err)
		}
	}
	for _, instr := range instructions {
		idx, err := ir.instructions.Append()
		if err != nil {
			return fmt.Errorf("dag: append: %w", ErrAlloc)
		}
		ir.instructions.Set(idx, instr)
	}
	return nil
}

// DeleteAllNodes empties the node arena and resets root to node.Invalid.
// It does not touch the instruction arena, so the caller may correct the
// appended instructions and retry Build.
func (ir *IR) DeleteAllNodes() {
	ir.nodes.Destroy()
	ir.nodes = arena.New[node.Node](defaultNodeCapacity)
	ir.root = node.Invalid
}

// Destroy releases both arenas. The IR must not be used afterward.
func (ir *IR) Destroy() {
	ir.instructions.Destroy()
	ir.nodes.Destroy()
	ir.root = node.Invalid
}

// newNode allocates a node in the node arena and returns its index.
func (ir *IR) newNode(n node.Node) (int, error) {
	idx, err := ir.nodes.Append()
	if err != nil {
		return node.Invalid, ErrAlloc
	}
	ir.nodes.Set(idx, n)
	return idx, nil
}

func validateArity(instr node.Instruction) error {
	if instr.Opcode == node.USERFUNC {
		uf := instr.UserFunc
		if uf == nil || uf.Nout != 1 || (uf.Nin != 0 && uf.Nin != 1 && uf.Nin != 2) {
			return ErrMalformedUserFunc
		}
		if len(uf.Operands) != uf.Nout+uf.Nin {
			return ErrMalformedUserFunc
		}
		return nil
	}
	if _, ok := node.Arity(instr.Opcode); !ok {
		return fmt.Errorf("%w: unknown opcode %s", ErrMalformedUserFunc, instr.Opcode)
	}
	return nil
}
