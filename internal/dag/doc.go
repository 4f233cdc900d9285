// Package dag is the IR and scheduler at the heart of the runtime: it holds
// the instruction and node arenas behind a single IR, builds a dependency
// DAG from a linear instruction stream (Build), and drives a
// dependency-respecting traversal of that DAG (Iterator).
//
// The three pieces are deliberately kept in one package because they share
// one invariant no caller outside the package may violate: a Node's parent
// and child indices are only ever meaningful relative to the IR that built
// them. Exporting Node construction separately from IR would let a caller
// wire nodes from two different IRs together, silently corrupting both.
package dag
