package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestParseOpcode(t *testing.T) {
	op, ok := ParseOpcode("ADD")
	require.True(t, ok)
	assert.Equal(t, ADD, op)

	_, ok = ParseOpcode("NOT_AN_OPCODE")
	assert.False(t, ok)
}

func TestArity(t *testing.T) {
	n, ok := Arity(ADD)
	require.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = Arity(SYNC)
	require.True(t, ok)
	assert.Equal(t, 1, n)

	_, ok = Arity(USERFUNC)
	assert.False(t, ok, "USERFUNC arity is carried on the instruction, not the static table")
}

func TestInstruction_NumOperandsAndOperand(t *testing.T) {
	a := NewBase("a")
	b := NewBase("b")
	instr := Instruction{
		Opcode: ADD,
		Operands: [MaxOperands]Operand{
			ViewOperand(View{Base: a}),
			ViewOperand(View{Base: b}),
			ConstantOperand(cty.NumberIntVal(2)),
		},
	}
	assert.Equal(t, 3, instr.NumOperands())
	assert.Equal(t, a, instr.Operand(0).Base())
	assert.True(t, instr.Operand(2).IsConstant)
}

func TestInstruction_String(t *testing.T) {
	a := NewBase("a")
	b := NewBase("b")
	instr := Instruction{
		Opcode: FILL,
		Operands: [MaxOperands]Operand{
			ViewOperand(View{Base: a}),
			ConstantOperand(cty.NumberIntVal(7)),
		},
	}
	assert.Equal(t, "FILL a 7", instr.String())

	unary := Instruction{
		Opcode: NEG,
		Operands: [MaxOperands]Operand{
			ViewOperand(View{Base: b}),
			ViewOperand(View{Base: a}),
		},
	}
	assert.Equal(t, "NEG b a", unary.String())
}

func TestView_IsAbsent(t *testing.T) {
	var absent View
	assert.True(t, absent.IsAbsent())

	present := View{Base: NewBase("a")}
	assert.False(t, present.IsAbsent())
}

func TestNode_Constructors(t *testing.T) {
	instrNode := NewInstructionNode(3)
	assert.Equal(t, InstructionNode, instrNode.Type)
	assert.Equal(t, 3, instrNode.InstructionIndex)
	assert.False(t, instrNode.HasParent())

	collNode := NewCollectionNode()
	assert.Equal(t, CollectionNode, collNode.Type)
	assert.Equal(t, Invalid, collNode.InstructionIndex)
}
