package analysis

import "github.com/ramble-dl/ramble/ramble/ram"

// Level returns the largest tuple id referenced by any TupleElement inside
// the node, or -1 if the node references none. Hoisting uses it to find the
// outermost scope where a condition or expression is still well defined.
func Level(node ram.Node) int {
	level := -1
	ram.Visit(node, func(n ram.Node) {
		if te, ok := n.(*ram.TupleElement); ok && te.TupleID > level {
			level = te.TupleID
		}
	})
	return level
}
