package dag

import (
	"os"

	"github.com/specialistvlad/bhir/internal/dotgraph"
	"github.com/specialistvlad/bhir/internal/node"
)

// Iterator drives a dependency-respecting traversal of an IR's nodes. It is
// single-pass and stateful: NextNode/NextInstruction advance it, and it is
// not safe for concurrent use. Create a fresh Iterator (or Reset an
// existing one) to traverse the same IR again.
type Iterator struct {
	ir *IR

	scheduled   map[int]struct{}
	blocked     []int
	current     int
	lastBlocked int

	// linear is true when the IR was never built (graph construction was
	// skipped) — in that mode the iterator just walks the instruction
	// arena in order instead of the node graph.
	linear bool
}

// NewIterator builds ir if it has not been built yet, unless the
// DISABLE_BHIR_GRAPH environment variable is set, in which case the
// iterator falls back to a linear pass over the instruction arena in
// append order — useful for A/B-testing the scheduler's reordering against
// the trivially-correct baseline.
func NewIterator(ir *IR) (*Iterator, error) {
	if dir := os.Getenv("PRINT_NODE_OUTPUT_GRAPH"); dir != "" && ir.Built() {
		dotgraph.DumpGraph(dir, ir)
	}

	it := &Iterator{
		ir:          ir,
		scheduled:   make(map[int]struct{}),
		current:     node.Invalid,
		lastBlocked: node.Invalid,
	}

	if !ir.Built() {
		if os.Getenv("DISABLE_BHIR_GRAPH") != "" {
			it.linear = true
			return it, nil
		}
		if err := ir.Build(); err != nil {
			return nil, err
		}
		if dir := os.Getenv("PRINT_NODE_OUTPUT_GRAPH"); dir != "" {
			dotgraph.DumpGraph(dir, ir)
		}
	}

	it.current = ir.Root()
	if it.current != node.Invalid {
		it.blocked = append(it.blocked, it.current)
	}
	return it, nil
}

// Reset rewinds the iterator to the start of a fresh traversal of the same
// IR, discarding all scheduling state.
func (it *Iterator) Reset() {
	it.scheduled = make(map[int]struct{})
	it.blocked = nil
	it.lastBlocked = node.Invalid
	if it.linear {
		it.current = node.Invalid
		return
	}
	it.current = it.ir.Root()
	if it.current != node.Invalid {
		it.blocked = append(it.blocked, it.current)
	}
}

// Destroy releases the iterator's bookkeeping state. The iterator must not
// be used afterward.
func (it *Iterator) Destroy() {
	it.ir = nil
	it.scheduled = nil
	it.blocked = nil
	it.current = node.Invalid
}

// NextNode advances to, and returns the index of, the next node whose
// dependencies are fully satisfied — depth-first-biased: a scheduled
// node's left child is pushed to the front of the work queue and its right
// child to the back, so one dependency chain tends to run to completion
// before a sibling chain starts.
//
// It returns ErrEndOfStream once every reachable node has been visited,
// and ErrCycleDetected if a full rotation of the work queue made no
// progress — every remaining node is waiting on a dependency that will
// never become satisfied.
func (it *Iterator) NextNode() (int, error) {
	for len(it.blocked) > 0 {
		n := it.blocked[0]
		it.blocked = it.blocked[1:]

		if n == node.Invalid {
			continue
		}
		if _, done := it.scheduled[n]; done {
			continue
		}

		nv := it.ir.NodeAt(n)
		leftReady := nv.LeftParent == node.Invalid || it.isScheduled(nv.LeftParent)
		rightReady := nv.RightParent == node.Invalid || it.isScheduled(nv.RightParent)

		if leftReady && rightReady {
			it.lastBlocked = node.Invalid
			it.scheduled[n] = struct{}{}

			if nv.LeftChild != node.Invalid {
				it.blocked = append([]int{nv.LeftChild}, it.blocked...)
			}
			if nv.RightChild != node.Invalid && nv.RightChild != nv.LeftChild {
				it.blocked = append(it.blocked, nv.RightChild)
			}

			return n, nil
		}

		it.blocked = append(it.blocked, n)
		if it.lastBlocked == n {
			return node.Invalid, ErrCycleDetected
		}
		if it.lastBlocked == node.Invalid {
			it.lastBlocked = n
		}
	}

	return node.Invalid, ErrEndOfStream
}

func (it *Iterator) isScheduled(n int) bool {
	_, ok := it.scheduled[n]
	return ok
}

// NextInstruction advances to, and returns, the next instruction reachable
// by the traversal — skipping over collection nodes, which carry no
// instruction. In linear mode it simply walks the instruction arena in
// append order.
func (it *Iterator) NextInstruction() (*node.Instruction, error) {
	if it.linear {
		if it.current == node.Invalid {
			it.current = -1
		}
		it.current++
		if it.current >= it.ir.InstructionCount() {
			return nil, ErrEndOfStream
		}
		instr := it.ir.InstructionAt(it.current)
		return &instr, nil
	}

	for {
		n, err := it.NextNode()
		if err != nil {
			return nil, err
		}
		nv := it.ir.NodeAt(n)
		if nv.Type == node.InstructionNode {
			instr := it.ir.InstructionAt(nv.InstructionIndex)
			return &instr, nil
		}
	}
}
