// Package dotgraph renders the instruction stream and the built dependency
// DAG as Graphviz DOT files, for the same kind of ad-hoc debugging the
// original C implementation offered via environment variables: set a
// directory and get one numbered .dot file per batch.
package dotgraph

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/specialistvlad/bhir/internal/node"
	"github.com/zclconf/go-cty/cty"
)

// batchCounter numbers successive dumps within a process so repeated builds
// against the same output directory don't clobber each other's files.
var batchCounter atomic.Int64

// InstructionSource is the read-only view over an unbuilt instruction
// stream that DumpInstructions needs.
type InstructionSource interface {
	InstructionCount() int
	InstructionAt(i int) node.Instruction
}

// GraphSource is the read-only view over a built node graph that DumpGraph
// needs.
type GraphSource interface {
	NodeCount() int
	NodeAt(i int) node.Node
	InstructionAt(i int) node.Instruction
}

// DumpInstructions writes "instlist-N.dot" into dir, rendering each
// instruction's base-array operands as nodes flowing into a box per
// instruction. Constants render as filled red pentagons. Failures are
// swallowed after being logged to stderr: a debug dump is never allowed to
// fail the build it's instrumenting.
func DumpInstructions(dir string, src InstructionSource) {
	n := batchCounter.Add(1)
	path := filepath.Join(dir, fmt.Sprintf("instlist-%d.dot", n))
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dotgraph: %v\n", err)
		return
	}
	defer f.Close()
	writeInstructions(f, src)
}

// DumpGraph writes "graph-N.dot" into dir, rendering the built node graph:
// instruction nodes as boxes (dashed for FREE/DISCARD), collection nodes as
// pale boxes, and child edges as arrows.
func DumpGraph(dir string, src GraphSource) {
	n := batchCounter.Add(1)
	path := filepath.Join(dir, fmt.Sprintf("graph-%d.dot", n))
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dotgraph: %v\n", err)
		return
	}
	defer f.Close()
	writeGraph(f, src)
}

func writeInstructions(w io.Writer, src InstructionSource) {
	baseNames := make(map[node.Base]int)
	nextBase := 0
	nextConst := 0
	nameOf := func(b node.Base) int {
		if id, ok := baseNames[b]; ok {
			return id
		}
		id := nextBase
		nextBase++
		baseNames[b] = id
		return id
	}

	fmt.Fprintln(w, "digraph {")
	for i := 0; i < src.InstructionCount(); i++ {
		instr := src.InstructionAt(i)
		nops := instr.NumOperands()
		if nops == 0 {
			continue
		}

		for slot := 1; slot < nops && slot < 3; slot++ {
			operand := instr.Operand(slot)
			if operand.IsConstant {
				cid := nextConst
				nextConst++
				fmt.Fprintf(w, "const_%d[shape=pentagon, style=filled, fillcolor=\"#ff0000\", label=\"%s\"];\n", cid, formatConstant(operand.Constant))
				fmt.Fprintf(w, "const_%d -> I_%d;\n", cid, i)
				continue
			}
			base := operand.Base()
			if base == nil {
				continue
			}
			id := nameOf(base)
			fmt.Fprintf(w, "B_%d[shape=ellipse, style=filled, fillcolor=\"#0000ff\", label=\"B_%d - %s\"];\n", id, id, base.Name)
			fmt.Fprintf(w, "B_%d -> I_%d;\n", id, i)
		}

		fmt.Fprintf(w, "I_%d[shape=box, style=filled, fillcolor=\"#CBD5E8\", label=\"I_%d - %s\"];\n", i, i, instr.Opcode)

		if out := instr.Operand(0); !out.IsConstant && out.Base() != nil {
			id := nameOf(out.Base())
			fmt.Fprintf(w, "B_%d[shape=ellipse, style=filled, fillcolor=\"#0000ff\", label=\"B_%d - %s\"];\n", id, id, out.Base().Name)
			fmt.Fprintf(w, "I_%d -> B_%d;\n", i, id)
		}
	}
	fmt.Fprintln(w, "}")
}

func writeGraph(w io.Writer, src GraphSource) {
	fmt.Fprintln(w, "digraph {")
	for i := 0; i < src.NodeCount(); i++ {
		n := src.NodeAt(i)
		tag := nodeTag(i, n)

		switch n.Type {
		case node.InstructionNode:
			instr := src.InstructionAt(n.InstructionIndex)
			style := "filled,rounded"
			opcodeName := instr.Opcode.String()
			if instr.Opcode == node.FREE || instr.Opcode == node.DISCARD {
				style = "dashed,rounded"
				if instr.Opcode == node.DISCARD && instr.Operand(0).Base() == nil {
					opcodeName = "BASE_DISCARD"
				} else if instr.Opcode == node.DISCARD {
					opcodeName = "VIEW_DISCARD"
				}
			}
			fmt.Fprintf(w, "%s[shape=box style=\"%s\" fillcolor=\"#CBD5E8\" label=\"%s - %s\"];\n", tag, style, tag, opcodeName)
		case node.CollectionNode:
			fmt.Fprintf(w, "%s[shape=box, style=filled, fillcolor=\"#ffffE8\", label=\"%s - COLLECTION\"];\n", tag, tag)
		}

		if n.LeftChild != node.Invalid {
			fmt.Fprintf(w, "%s -> %s;\n", tag, nodeTag(n.LeftChild, src.NodeAt(n.LeftChild)))
		}
		if n.RightChild != node.Invalid {
			fmt.Fprintf(w, "%s -> %s;\n", tag, nodeTag(n.RightChild, src.NodeAt(n.RightChild)))
		}
	}
	fmt.Fprintln(w, "}")
}

// formatConstant renders a scalar constant for a DOT label without relying
// on cty.Value satisfying any particular formatting interface.
func formatConstant(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.Number:
		bf := v.AsBigFloat()
		return bf.String()
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return fmt.Sprintf("%t", v.True())
	default:
		return v.Type().FriendlyName()
	}
}

func nodeTag(index int, n node.Node) string {
	if n.Type == node.InstructionNode {
		return fmt.Sprintf("I_%d", index)
	}
	return fmt.Sprintf("C_%d", index)
}
