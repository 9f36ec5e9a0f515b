package ast

// Visit walks the tree depth-first in pre-order: the root is visited before
// its children, children in declared order.
func Visit(root Node, fn func(Node)) {
	if root == nil {
		return
	}
	fn(root)
	for _, child := range root.Children() {
		Visit(child, fn)
	}
}

// VisitAtoms visits every Atom reachable from the root, including atoms
// nested inside negations and aggregator bodies.
func VisitAtoms(root Node, fn func(*Atom)) {
	Visit(root, func(n Node) {
		if atom, ok := n.(*Atom); ok {
			fn(atom)
		}
	})
}

// BodyAtoms returns the positive atoms of a clause body, in source order.
// Atoms nested inside negations or aggregators are not included.
func BodyAtoms(clause *Clause) []*Atom {
	var atoms []*Atom
	for _, lit := range clause.Body {
		if atom, ok := lit.(*Atom); ok {
			atoms = append(atoms, atom)
		}
	}
	return atoms
}

// BodyNegations returns the negated literals of a clause body.
func BodyNegations(clause *Clause) []*Negation {
	var negs []*Negation
	for _, lit := range clause.Body {
		if neg, ok := lit.(*Negation); ok {
			negs = append(negs, neg)
		}
	}
	return negs
}

// BodyConstraints returns the binary constraints of a clause body.
func BodyConstraints(clause *Clause) []*BinaryConstraint {
	var cons []*BinaryConstraint
	for _, lit := range clause.Body {
		if c, ok := lit.(*BinaryConstraint); ok {
			cons = append(cons, c)
		}
	}
	return cons
}
