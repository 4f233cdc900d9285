package dag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/bhir/internal/node"
)

// snapshotNodes copies every node in the arena for a structural comparison
// with go-cmp, which diffs the whole slice element-by-element instead of a
// hand-rolled loop over indices.
func snapshotNodes(ir *IR) []node.Node {
	out := make([]node.Node, ir.NodeCount())
	for i := range out {
		out[i] = ir.NodeAt(i)
	}
	return out
}

func unary(op node.Opcode, out, in node.Base) node.Instruction {
	return node.Instruction{
		Opcode: op,
		Operands: [node.MaxOperands]node.Operand{
			node.ViewOperand(node.View{Base: out}),
			node.ViewOperand(node.View{Base: in}),
		},
	}
}

func binary(op node.Opcode, out, left, right node.Base) node.Instruction {
	return node.Instruction{
		Opcode: op,
		Operands: [node.MaxOperands]node.Operand{
			node.ViewOperand(node.View{Base: out}),
			node.ViewOperand(node.View{Base: left}),
			node.ViewOperand(node.View{Base: right}),
		},
	}
}

func fill(out node.Base, c cty.Value) node.Instruction {
	return node.Instruction{
		Opcode: node.FILL,
		Operands: [node.MaxOperands]node.Operand{
			node.ViewOperand(node.View{Base: out}),
			node.ConstantOperand(c),
		},
	}
}

// drain runs a fresh iterator to completion and returns the instructions in
// scheduler order.
func drain(t *testing.T, ir *IR) []node.Instruction {
	t.Helper()
	it, err := NewIterator(ir)
	require.NoError(t, err)
	defer it.Destroy()

	var out []node.Instruction
	for {
		instr, err := it.NextInstruction()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		out = append(out, *instr)
	}
	return out
}

func indexOf(instrs []node.Instruction, op node.Opcode, base node.Base) int {
	for i, instr := range instrs {
		if instr.Opcode == op {
			for k := 0; k < instr.NumOperands(); k++ {
				if instr.Operand(k).Base() == base {
					return i
				}
			}
		}
	}
	return -1
}

// S1: a RAW hazard (write then read) must schedule the write strictly
// before the read.
func TestBuild_RAW(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		unary(node.NEG, b, a),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	instrs := drain(t, ir)
	require.Len(t, instrs, 2)

	writeIdx := indexOf(instrs, node.FILL, a)
	readIdx := indexOf(instrs, node.NEG, a)
	assert.Less(t, writeIdx, readIdx)
}

// S2: a WAR hazard (read then write of the same base) must schedule the
// read strictly before the later write.
func TestBuild_WAR(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		unary(node.IDENTITY, b, a),   // reads a
		fill(a, cty.NumberIntVal(2)), // rewrites a: must come after the read
	})
	require.NoError(t, err)
	defer ir.Destroy()

	instrs := drain(t, ir)
	require.Len(t, instrs, 3)

	readIdx := indexOf(instrs, node.IDENTITY, a)
	var secondWriteIdx = -1
	seenFirstWrite := false
	for i, instr := range instrs {
		if instr.Opcode == node.FILL && instr.Operand(0).Base() == a {
			if !seenFirstWrite {
				seenFirstWrite = true
				continue
			}
			secondWriteIdx = i
		}
	}
	require.NotEqual(t, -1, secondWriteIdx)
	assert.Less(t, readIdx, secondWriteIdx)
}

// S3: a WAW hazard (two writes of the same base with no intervening read)
// must preserve program order between the two writes.
func TestBuild_WAW(t *testing.T) {
	a := node.NewBase("a")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		fill(a, cty.NumberIntVal(2)),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	instrs := drain(t, ir)
	require.Len(t, instrs, 2)
	assert.True(t, instrs[0].Operand(1).Constant.RawEquals(cty.NumberIntVal(1)))
	assert.True(t, instrs[1].Operand(1).Constant.RawEquals(cty.NumberIntVal(2)))
}

// S4: instructions touching disjoint bases carry no ordering constraint
// between them, but both still appear exactly once in the serialization.
func TestBuild_IndependentInstructionsBothScheduled(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		fill(b, cty.NumberIntVal(2)),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	instrs := drain(t, ir)
	assert.Len(t, instrs, 2)
	assert.NotEqual(t, -1, indexOf(instrs, node.FILL, a))
	assert.NotEqual(t, -1, indexOf(instrs, node.FILL, b))
}

// S5: fan-out past two children onto the same writer must still schedule
// all dependents, via a synthesized collection node absorbing the
// overflow.
func TestBuild_FanOutOverflowSynthesizesCollectionNode(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")
	c := node.NewBase("c")
	d := node.NewBase("d")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		unary(node.IDENTITY, b, a),
		unary(node.NEG, c, a),
		unary(node.ABS, d, a),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	require.NoError(t, ir.Build())
	assert.Greater(t, ir.NodeCount(), 5, "fan-out past two children should synthesize at least one collection node")

	instrs := drain(t, ir)
	assert.Len(t, instrs, 4)
	writeIdx := indexOf(instrs, node.FILL, a)
	for _, op := range []node.Opcode{node.IDENTITY, node.NEG, node.ABS} {
		readIdx := indexOf(instrs, op, a)
		require.NotEqual(t, -1, readIdx)
		assert.Less(t, writeIdx, readIdx)
	}
}

// S6: a manually corrupted graph (a node whose unmet parent will never be
// scheduled) must surface as ErrCycleDetected rather than hang or silently
// drop nodes.
func TestIterator_CycleDetection(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		unary(node.IDENTITY, b, a),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	require.NoError(t, ir.Build())

	// Corrupt the IDENTITY node's left_parent to point at the node itself so
	// it can never be satisfied (self-dependency on an index that will never
	// be marked scheduled).
	victim := node.Invalid
	for i := 0; i < ir.NodeCount(); i++ {
		n := ir.NodeAt(i)
		if n.Type == node.InstructionNode && ir.InstructionAt(n.InstructionIndex).Opcode == node.IDENTITY {
			victim = i
			break
		}
	}
	require.NotEqual(t, node.Invalid, victim)
	nv := ir.NodeAt(victim)
	nv.LeftParent = victim
	ir.nodes.Set(victim, nv)

	it, err := NewIterator(ir)
	require.NoError(t, err)
	defer it.Destroy()

	var lastErr error
	for {
		_, err := it.NextNode()
		if err != nil {
			lastErr = err
			break
		}
	}
	assert.ErrorIs(t, lastErr, ErrCycleDetected)
}

func TestIR_AppendAfterBuildIsFrozen(t *testing.T) {
	a := node.NewBase("a")
	ir, err := Create([]node.Instruction{fill(a, cty.NumberIntVal(1))})
	require.NoError(t, err)
	defer ir.Destroy()

	require.NoError(t, ir.Build())
	err = ir.Append([]node.Instruction{fill(a, cty.NumberIntVal(2))})
	assert.ErrorIs(t, err, ErrBuildFrozen)
}

func TestIR_AppendRejectsMalformedUserFunc(t *testing.T) {
	a := node.NewBase("a")
	ir, err := Create(nil)
	require.NoError(t, err)
	defer ir.Destroy()

	bad := node.Instruction{
		Opcode: node.USERFUNC,
		UserFunc: &node.UserFunc{
			Name: "matmul",
			Nout: 2, // invalid: nout must be 1
			Nin:  1,
			Operands: []node.Operand{
				node.ViewOperand(node.View{Base: a}),
				node.ViewOperand(node.View{Base: a}),
				node.ViewOperand(node.View{Base: a}),
			},
		},
	}
	err = ir.Append([]node.Instruction{bad})
	assert.ErrorIs(t, err, ErrMalformedUserFunc)
	assert.Equal(t, 0, ir.InstructionCount(), "a rejected batch must not partially append")
}

func TestBuild_BinaryOpDependsOnBothWriters(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")
	c := node.NewBase("c")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		fill(b, cty.NumberIntVal(2)),
		binary(node.ADD, c, a, b),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	instrs := drain(t, ir)
	require.Len(t, instrs, 3)

	addIdx := indexOf(instrs, node.ADD, c)
	assert.Less(t, indexOf(instrs, node.FILL, a), addIdx)
	assert.Less(t, indexOf(instrs, node.FILL, b), addIdx)
}

func TestIR_DeleteAllNodesResetsRoot(t *testing.T) {
	a := node.NewBase("a")
	ir, err := Create([]node.Instruction{fill(a, cty.NumberIntVal(1))})
	require.NoError(t, err)
	defer ir.Destroy()

	require.NoError(t, ir.Build())
	require.True(t, ir.Built())

	ir.DeleteAllNodes()
	assert.False(t, ir.Built())
	assert.Equal(t, 0, ir.NodeCount())
}

func TestIterator_LinearModeWhenGraphDisabled(t *testing.T) {
	t.Setenv("DISABLE_BHIR_GRAPH", "1")

	a := node.NewBase("a")
	b := node.NewBase("b")
	ir, err := Create([]node.Instruction{
		fill(b, cty.NumberIntVal(1)),
		fill(a, cty.NumberIntVal(2)),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	instrs := drain(t, ir)
	require.Len(t, instrs, 2)
	assert.True(t, instrs[0].Operand(0).Base() == b)
	assert.True(t, instrs[1].Operand(0).Base() == a)
	assert.False(t, ir.Built(), "linear mode must not build the graph")
}

func TestSerialize_BufferTooSmallStillReportsCount(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")
	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		fill(b, cty.NumberIntVal(2)),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	buf := make([]node.Instruction, 1)
	n, err := Serialize(ir, buf)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, 2, n)
}

func TestSerialize_ExactSizeSucceeds(t *testing.T) {
	a := node.NewBase("a")
	ir, err := Create([]node.Instruction{fill(a, cty.NumberIntVal(1))})
	require.NoError(t, err)
	defer ir.Destroy()

	buf := make([]node.Instruction, 1)
	n, err := Serialize(ir, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, node.FILL, buf[0].Opcode)
}

func TestBuild_SelfCycleRejected(t *testing.T) {
	ir, err := Create(nil)
	require.NoError(t, err)
	defer ir.Destroy()

	_, err = ir.newNode(node.NewInstructionNode(0))
	require.NoError(t, err)
	err = ir.addChild(0, 0)
	assert.ErrorIs(t, err, ErrSelfCycle)
}

func TestBuild_IdempotentSecondCallIsNoOp(t *testing.T) {
	a := node.NewBase("a")
	ir, err := Create([]node.Instruction{fill(a, cty.NumberIntVal(1))})
	require.NoError(t, err)
	defer ir.Destroy()

	require.NoError(t, ir.Build())
	root := ir.Root()
	count := ir.NodeCount()

	require.NoError(t, ir.Build())
	assert.Equal(t, root, ir.Root())
	assert.Equal(t, count, ir.NodeCount())
}

// S7: a second Build call on an already-built IR must leave the graph's
// shape byte-for-byte identical, not just the same node count.
func TestBuild_IdempotentSecondCallProducesIdenticalGraphShape(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")
	c := node.NewBase("c")
	d := node.NewBase("d")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		unary(node.IDENTITY, b, a),
		unary(node.NEG, c, a),
		unary(node.ABS, d, a),
	})
	require.NoError(t, err)
	defer ir.Destroy()

	require.NoError(t, ir.Build())
	before := snapshotNodes(ir)

	require.NoError(t, ir.Build())
	after := snapshotNodes(ir)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("graph shape changed on idempotent rebuild:\n%s", diff)
	}
}

// sequenceSignature renders each instruction via its String() method, for
// comparing two schedules without fighting cty.Value's opaque internal
// representation under reflect.DeepEqual.
func sequenceSignature(instrs []node.Instruction) []string {
	out := make([]string, len(instrs))
	for i, instr := range instrs {
		out[i] = instr.String()
	}
	return out
}

// S8: invariant 8 (Reset idempotence) — rewinding an iterator and draining
// it again must reproduce exactly the same schedule.
func TestIterator_ResetProducesIdenticalSequence(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")
	c := node.NewBase("c")
	d := node.NewBase("d")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		unary(node.IDENTITY, b, a),
		unary(node.NEG, c, a),
		unary(node.ABS, d, a),
	})
	require.NoError(t, err)
	defer ir.Destroy()
	require.NoError(t, ir.Build())

	it, err := NewIterator(ir)
	require.NoError(t, err)
	defer it.Destroy()

	var first []node.Instruction
	for {
		instr, err := it.NextInstruction()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		first = append(first, *instr)
	}
	require.Len(t, first, 4)

	it.Reset()

	var second []node.Instruction
	for {
		instr, err := it.NextInstruction()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		second = append(second, *instr)
	}

	assert.Equal(t, sequenceSignature(first), sequenceSignature(second))
}

// S9: invariant 4 (determinism) — two independently created iterators over
// the same built IR must schedule identically, since nothing about the
// traversal depends on iterator-external state.
func TestIterator_DeterminismAcrossIndependentIterators(t *testing.T) {
	a := node.NewBase("a")
	b := node.NewBase("b")
	c := node.NewBase("c")
	d := node.NewBase("d")

	ir, err := Create([]node.Instruction{
		fill(a, cty.NumberIntVal(1)),
		unary(node.IDENTITY, b, a),
		unary(node.NEG, c, a),
		unary(node.ABS, d, a),
	})
	require.NoError(t, err)
	defer ir.Destroy()
	require.NoError(t, ir.Build())

	first := drain(t, ir)
	second := drain(t, ir)

	assert.Equal(t, sequenceSignature(first), sequenceSignature(second))
}
