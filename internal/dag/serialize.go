package dag

import "github.com/specialistvlad/bhir/internal/node"

// Serialize drains a fresh traversal of ir into buf, in scheduler order,
// and returns the number of instructions the traversal produced.
//
// If the traversal produces more instructions than len(buf) can hold,
// Serialize still counts every instruction and returns ErrBufferTooSmall
// alongside the true count, so a caller can reallocate buf to exactly that
// size and call again — buf itself holds only as many instructions as fit.
// Serialize opens and discards its own Iterator; like NewIterator, it builds
// ir first if ir has not been built yet (unless DISABLE_BHIR_GRAPH is set),
// and beyond that build it does not change ir.
func Serialize(ir *IR, buf []node.Instruction) (int, error) {
	it, err := NewIterator(ir)
	if err != nil {
		return 0, err
	}
	defer it.Destroy()

	count := 0
	for {
		instr, err := it.NextInstruction()
		if err == ErrEndOfStream {
			break
		}
		if err != nil {
			return count, err
		}
		if count < len(buf) {
			buf[count] = *instr
		}
		count++
	}

	if count > len(buf) {
		return count, ErrBufferTooSmall
	}
	return count, nil
}
