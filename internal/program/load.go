// Package program is a minimal front-end bridge: it reads a declarative
// HCL program file naming base arrays and the instructions that operate on
// them, and turns it into an appendable instruction batch for internal/dag.
//
// It exists to give the core a runnable entrypoint, not to be a complete
// language front-end — there is no expression evaluation, no views with
// nontrivial stride/offset, no control flow. A real front-end (a Python
// array-library binding, a JIT) would produce node.Instruction values
// directly, the same way this loader does, and hand them to dag.Create.
package program

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/bhir/internal/ctxlog"
	"github.com/specialistvlad/bhir/internal/node"
)

// Load parses the program file at path and returns the decoded bases (by
// declared name) and the instructions they feed, in file order, ready to
// pass to dag.Create.
func Load(ctx context.Context, path string) (map[string]node.Base, []node.Instruction, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("program: parsing %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, nil, fmt.Errorf("program: decoding %s: %w", path, diags)
	}

	bases, err := decodeBases(root.Bases)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("program loaded bases", "path", path, "count", len(bases))

	instrs, err := decodeInstructions(root.Instructions, bases)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("program loaded instructions", "path", path, "count", len(instrs))

	return bases, instrs, nil
}

func decodeBases(blocks []*baseBlock) (map[string]node.Base, error) {
	bases := make(map[string]node.Base, len(blocks))
	for _, b := range blocks {
		if err := validateBaseName(b.Name); err != nil {
			return nil, err
		}
		if _, exists := bases[b.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBase, b.Name)
		}
		bases[b.Name] = node.NewBase(b.Name)
	}
	return bases, nil
}

func decodeInstructions(blocks []*instructionBlock, bases map[string]node.Base) ([]node.Instruction, error) {
	instrs := make([]node.Instruction, 0, len(blocks))
	for _, b := range blocks {
		instr, err := decodeInstruction(b, bases)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func decodeInstruction(b *instructionBlock, bases map[string]node.Base) (node.Instruction, error) {
	if b.Opcode == "userfunc" {
		return decodeUserFunc(b, bases)
	}

	op, ok := node.ParseOpcode(canonicalOpcodeName(b.Opcode))
	if !ok {
		return node.Instruction{}, fmt.Errorf("%w: %q", ErrUnknownOpcode, b.Opcode)
	}
	arity, _ := node.Arity(op)

	instr := node.Instruction{Opcode: op}

	outBase, err := lookupBase(bases, b.Out)
	if err != nil {
		return node.Instruction{}, err
	}
	instr.Operands[0] = node.ViewOperand(node.View{Base: outBase})

	if arity < 2 {
		return instr, nil
	}

	if op == node.FILL {
		if b.Constant == nil {
			return node.Instruction{}, fmt.Errorf("%w: instruction writing %q", ErrMissingConstant, b.Out)
		}
		instr.Operands[1] = node.ConstantOperand(cty.NumberFloatVal(*b.Constant))
		return instr, nil
	}

	leftRef := b.In
	if leftRef == "" {
		leftRef = b.Left
	}
	leftBase, err := lookupBase(bases, leftRef)
	if err != nil {
		return node.Instruction{}, err
	}
	instr.Operands[1] = node.ViewOperand(node.View{Base: leftBase})

	if arity < 3 {
		return instr, nil
	}

	rightBase, err := lookupBase(bases, b.Right)
	if err != nil {
		return node.Instruction{}, err
	}
	instr.Operands[2] = node.ViewOperand(node.View{Base: rightBase})

	return instr, nil
}

func decodeUserFunc(b *instructionBlock, bases map[string]node.Base) (node.Instruction, error) {
	outBase, err := lookupBase(bases, b.Out)
	if err != nil {
		return node.Instruction{}, err
	}

	operands := []node.Operand{node.ViewOperand(node.View{Base: outBase})}
	for _, ref := range []string{b.In, b.Left, b.Right} {
		if ref == "" {
			continue
		}
		base, err := lookupBase(bases, ref)
		if err != nil {
			return node.Instruction{}, err
		}
		operands = append(operands, node.ViewOperand(node.View{Base: base}))
	}

	uf := &node.UserFunc{
		Name:     b.UserFuncName,
		Nout:     1,
		Nin:      len(operands) - 1,
		Operands: operands,
	}
	return node.Instruction{Opcode: node.USERFUNC, UserFunc: uf}, nil
}

func lookupBase(bases map[string]node.Base, name string) (node.Base, error) {
	base, ok := bases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBase, name)
	}
	return base, nil
}

// canonicalOpcodeName upper-cases an HCL instruction label ("fill",
// "sum_reduce") into the form node.ParseOpcode expects ("FILL",
// "SUM_REDUCE"), since a program file is more pleasant to write in
// lowercase than the Go constant's SCREAMING_SNAKE_CASE.
func canonicalOpcodeName(label string) string {
	out := make([]byte, len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
