package program

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/bhir/internal/dag"
	"github.com/specialistvlad/bhir/internal/node"
)

func TestLoad_Saxpy(t *testing.T) {
	bases, instrs, err := Load(context.Background(), "testdata/saxpy.hcl")
	require.NoError(t, err)

	require.Len(t, bases, 4)
	require.Len(t, instrs, 4)

	ir, err := dag.Create(instrs)
	require.NoError(t, err)
	defer ir.Destroy()

	require.NoError(t, ir.Build())

	it, err := dag.NewIterator(ir)
	require.NoError(t, err)
	defer it.Destroy()

	var scheduled []node.Opcode
	for {
		instr, err := it.NextInstruction()
		if err == dag.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		scheduled = append(scheduled, instr.Opcode)
	}

	assert.Len(t, scheduled, 4)
	assert.Contains(t, scheduled, node.FILL)
	assert.Contains(t, scheduled, node.MUL)
	assert.Contains(t, scheduled, node.ADD)
}

func TestLoad_UnknownBaseReference(t *testing.T) {
	_, _, err := Load(context.Background(), "testdata/unknown_base.hcl")
	assert.ErrorIs(t, err, ErrUnknownBase)
}

func TestLoad_DuplicateBase(t *testing.T) {
	_, _, err := Load(context.Background(), "testdata/duplicate_base.hcl")
	assert.ErrorIs(t, err, ErrDuplicateBase)
}

func TestLoad_InvalidBaseName(t *testing.T) {
	_, _, err := Load(context.Background(), "testdata/invalid_base_name.hcl")
	assert.ErrorIs(t, err, ErrInvalidBaseName)
}
