package analysis

import "github.com/ramble-dl/ramble/ramble/ram"

// Complexity estimates how expensive a condition is to evaluate, so that
// condition reordering can schedule cheap conjuncts first. The scale is
// relative, not a cost model: constants and tuple accesses are free,
// emptiness probes on non-nullary relations cost 1, existence checks 2, and
// user-defined functor calls 10. Conjunctions sum their operands.
func Complexity(prog *ram.Program, node ram.Node) int {
	switch n := node.(type) {
	case *ram.Conjunction:
		return Complexity(prog, n.LHS) + Complexity(prog, n.RHS)
	case *ram.Negation:
		return Complexity(prog, n.Cond)
	case *ram.Constraint:
		return Complexity(prog, n.LHS) + Complexity(prog, n.RHS)
	case *ram.ExistenceCheck:
		return 2
	case *ram.ProvenanceExistenceCheck:
		return 2
	case *ram.EmptinessCheck:
		if rel := prog.Relation(n.Relation); rel != nil && rel.Arity > 0 {
			return 1
		}
		return 0
	case *ram.UserDefinedOperator:
		cost := 10
		for _, arg := range n.Args {
			cost += Complexity(prog, arg)
		}
		return cost
	case *ram.IntrinsicOperator:
		cost := 0
		for _, arg := range n.Args {
			cost += Complexity(prog, arg)
		}
		return cost
	default:
		return 0
	}
}
