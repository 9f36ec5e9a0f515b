package transform

import "github.com/ramble-dl/ramble/ramble/ram"

// queries collects every Query statement of the program in execution order.
func queries(prog *ram.Program) []*ram.Query {
	var qs []*ram.Query
	if prog.Main == nil {
		return nil
	}
	ram.Visit(prog.Main, func(n ram.Node) {
		if q, ok := n.(*ram.Query); ok {
			qs = append(qs, q)
		}
	})
	return qs
}

// chainOf flattens a query's operation nest into the root-to-leaf slice.
// Every operation wraps at most one child, so the nest is always a chain.
func chainOf(q *ram.Query) []ram.Operation {
	var ops []ram.Operation
	op := q.Op
	for op != nil {
		ops = append(ops, op)
		n, ok := op.(ram.NestedOperation)
		if !ok {
			break
		}
		op = n.Nested()
	}
	return ops
}

// relink rebuilds the query's nest from a chain slice.
func relink(q *ram.Query, ops []ram.Operation) {
	for i := 0; i+1 < len(ops); i++ {
		ops[i].(ram.NestedOperation).SetNested(ops[i+1])
	}
	q.Op = ops[0]
}

// sameChain reports whether two chains hold the same operations in the same
// positions.
func sameChain(a, b []ram.Operation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
