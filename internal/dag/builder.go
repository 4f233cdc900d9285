package dag

import (
	"os"

	"github.com/specialistvlad/bhir/internal/dotgraph"
	"github.com/specialistvlad/bhir/internal/node"
)

// decodeOperands extracts the write target and the up-to-two read sources
// for one instruction, keyed by base-array identity. A nil return for any
// of the three means "no base in that slot" — either the operand is a
// constant, the slot is unused by this opcode's arity, or (for SYNC) the
// opcode has no write target at all.
//
// SYNC is the one opcode that reads operand 0 rather than writing it: it is
// a materialization barrier, not a mutation, so it must not install a WAW
// edge against whatever last wrote that base.
func decodeOperands(instr node.Instruction) (selfID, leftID, rightID node.Base) {
	nops := instr.NumOperands()

	if instr.Opcode == node.SYNC {
		if nops >= 1 {
			leftID = instr.Operand(0).Base()
		}
		return nil, leftID, nil
	}

	if nops >= 1 {
		selfID = instr.Operand(0).Base()
	}
	if nops >= 2 {
		leftID = instr.Operand(1).Base()
	}
	if nops >= 3 {
		rightID = instr.Operand(2).Base()
	}
	return selfID, leftID, rightID
}

// build runs the hazard-tracking pass once, turning the linear instruction
// arena into a dependency DAG rooted at a synthesized collection node. It
// is idempotent: a second call on an already-built IR is a no-op.
//
// On any failure the partially-built node arena is discarded via
// DeleteAllNodes so a caller that fixes the offending instructions and
// retries Build sees a clean slate rather than a half-built graph.
func build(ir *IR) error {
	if ir.Built() {
		return nil
	}

	if dir := os.Getenv("PRINT_INSTRUCTION_GRAPH"); dir != "" {
		dotgraph.DumpInstructions(dir, ir)
	}

	writemap := make(map[node.Base]int)
	readmap := make(map[node.Base]map[int]struct{})

	root, err := ir.newNode(node.NewCollectionNode())
	if err != nil {
		return err
	}

	count := ir.instructions.Len()
	for i := 0; i < count; i++ {
		instr := ir.instructions.At(i)
		selfID, leftID, rightID := decodeOperands(instr)

		selfNode, err := ir.newNode(node.NewInstructionNode(i))
		if err != nil {
			ir.DeleteAllNodes()
			return err
		}

		// WAW: the previous writer of selfID becomes a dependency-parent of
		// this instruction, and this instruction becomes the new writer of
		// record.
		if selfID != nil {
			if oldWriter, ok := writemap[selfID]; ok {
				if err := ir.addChild(oldWriter, selfNode); err != nil {
					ir.DeleteAllNodes()
					return err
				}
			}
			writemap[selfID] = selfNode
		}

		leftDep := node.Invalid
		if leftID != nil {
			if d, ok := writemap[leftID]; ok {
				leftDep = d
			}
		}
		rightDep := node.Invalid
		if rightID != nil {
			if d, ok := writemap[rightID]; ok {
				rightDep = d
			}
		}

		// WAR: every outstanding reader of selfID (save whichever reader
		// also happens to be this instruction's own RAW dependency) becomes
		// a dependency-parent, since this write must not retire before those
		// reads have run.
		if selfID != nil {
			if readers, ok := readmap[selfID]; ok {
				for r := range readers {
					if r != leftDep && r != rightDep {
						if err := ir.addChild(r, selfNode); err != nil {
							ir.DeleteAllNodes()
							return err
						}
					}
				}
				delete(readmap, selfID)
			}
		}

		// Record this instruction as an outstanding reader of its sources,
		// for the next writer's WAR check.
		if leftID != nil {
			markReader(readmap, leftID, selfNode)
		}
		if rightID != nil && rightID != leftID {
			markReader(readmap, rightID, selfNode)
		}

		// RAW: the last writer of each read source becomes a
		// dependency-parent of this instruction.
		if leftDep != node.Invalid && leftDep != selfNode {
			if err := ir.addChild(leftDep, selfNode); err != nil {
				ir.DeleteAllNodes()
				return err
			}
		}
		if rightDep != node.Invalid && rightDep != leftDep && rightDep != selfNode {
			if err := ir.addChild(rightDep, selfNode); err != nil {
				ir.DeleteAllNodes()
				return err
			}
		}

		// An instruction with no dependency edges at all is attached
		// directly under root so the scheduler still reaches it.
		selfNodeVal := ir.nodes.At(selfNode)
		if selfNodeVal.LeftParent == node.Invalid && selfNodeVal.RightParent == node.Invalid {
			if err := ir.addChild(root, selfNode); err != nil {
				ir.DeleteAllNodes()
				return err
			}
		}
	}

	ir.root = root

	if dir := os.Getenv("PRINT_NODE_INPUT_GRAPH"); dir != "" {
		dotgraph.DumpGraph(dir, ir)
	}

	return nil
}

func markReader(readmap map[node.Base]map[int]struct{}, base node.Base, n int) {
	set := readmap[base]
	if set == nil {
		set = make(map[int]struct{})
		readmap[base] = set
	}
	set[n] = struct{}{}
}

// addChild attaches newChild as a child of self, synthesizing a collection
// node to absorb overflow once self already has two children. It refuses
// to link a node to itself.
func (ir *IR) addChild(self, newChild int) error {
	if self == newChild {
		return ErrSelfCycle
	}

	selfNode := ir.nodes.At(self)
	switch {
	case selfNode.LeftChild == node.Invalid:
		selfNode.LeftChild = newChild
		ir.nodes.Set(self, selfNode)
		return ir.addParent(newChild, self)

	case selfNode.RightChild == node.Invalid:
		selfNode.RightChild = newChild
		ir.nodes.Set(self, selfNode)
		return ir.addParent(newChild, self)

	default:
		collection, err := ir.newNode(node.NewCollectionNode())
		if err != nil {
			return err
		}
		collectionNode := ir.nodes.At(collection)
		collectionNode.LeftChild = selfNode.LeftChild
		collectionNode.RightChild = newChild
		ir.nodes.Set(collection, collectionNode)

		oldLeftChild := ir.nodes.At(collectionNode.LeftChild)
		switch {
		case oldLeftChild.LeftParent == self:
			oldLeftChild.LeftParent = collection
		case oldLeftChild.RightParent == self:
			oldLeftChild.RightParent = collection
		default:
			return ErrGraphCorruption
		}
		ir.nodes.Set(collectionNode.LeftChild, oldLeftChild)

		selfNode.LeftChild = collection
		ir.nodes.Set(self, selfNode)

		if err := ir.addParent(newChild, collection); err != nil {
			return err
		}

		collectionNode = ir.nodes.At(collection)
		collectionNode.LeftParent = self
		ir.nodes.Set(collection, collectionNode)
		return nil
	}
}

// addParent records newParent as one of self's (at most two) parents,
// synthesizing a collection node to absorb overflow past two.
func (ir *IR) addParent(self, newParent int) error {
	selfNode := ir.nodes.At(self)

	switch {
	case selfNode.LeftParent == newParent || selfNode.RightParent == newParent || newParent == node.Invalid:
		return nil

	case selfNode.LeftParent == node.Invalid:
		selfNode.LeftParent = newParent
		ir.nodes.Set(self, selfNode)
		return nil

	case selfNode.RightParent == node.Invalid:
		selfNode.RightParent = newParent
		ir.nodes.Set(self, selfNode)
		return nil

	default:
		collection, err := ir.newNode(node.NewCollectionNode())
		if err != nil {
			return err
		}
		collectionNode := ir.nodes.At(collection)
		collectionNode.LeftParent = selfNode.LeftParent
		collectionNode.RightParent = selfNode.RightParent

		oldLeftParent := ir.nodes.At(collectionNode.LeftParent)
		switch {
		case oldLeftParent.LeftChild == self:
			oldLeftParent.LeftChild = collection
		case oldLeftParent.RightChild == self:
			oldLeftParent.RightChild = collection
		default:
			return ErrGraphCorruption
		}
		ir.nodes.Set(collectionNode.LeftParent, oldLeftParent)

		oldRightParent := ir.nodes.At(collectionNode.RightParent)
		switch {
		case oldRightParent.LeftChild == self:
			oldRightParent.LeftChild = collection
		case oldRightParent.RightChild == self:
			oldRightParent.RightChild = collection
		default:
			return ErrGraphCorruption
		}
		ir.nodes.Set(collectionNode.RightParent, oldRightParent)

		ir.nodes.Set(collection, collectionNode)

		selfNode.LeftParent = collection
		selfNode.RightParent = newParent
		ir.nodes.Set(self, selfNode)

		collectionNode = ir.nodes.At(collection)
		collectionNode.LeftChild = self
		ir.nodes.Set(collection, collectionNode)
		return nil
	}
}
