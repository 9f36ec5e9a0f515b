package ram

import (
	"fmt"

	"github.com/ramble-dl/ramble/ramble"
)

// Condition is a boolean test over the tuples bound by enclosing operations.
type Condition interface {
	Node
	condition()
}

// True always holds.
type True struct{}

func (*True) condition() {}

func (t *True) Clone() Node {
	cp := *t
	return &cp
}

func (t *True) Equal(other Node) bool {
	_, ok := other.(*True)
	return ok
}

func (t *True) Children() []Node { return nil }
func (t *True) Apply(Mapper)     {}
func (t *True) String() string   { return "true" }

// False never holds.
type False struct{}

func (*False) condition() {}

func (f *False) Clone() Node {
	cp := *f
	return &cp
}

func (f *False) Equal(other Node) bool {
	_, ok := other.(*False)
	return ok
}

func (f *False) Children() []Node { return nil }
func (f *False) Apply(Mapper)     {}
func (f *False) String() string   { return "false" }

// Conjunction holds when both operands hold.
type Conjunction struct {
	LHS Condition
	RHS Condition
}

func (*Conjunction) condition() {}

func (c *Conjunction) Clone() Node {
	return &Conjunction{LHS: c.LHS.Clone().(Condition), RHS: c.RHS.Clone().(Condition)}
}

func (c *Conjunction) Equal(other Node) bool {
	o, ok := other.(*Conjunction)
	return ok && c.LHS.Equal(o.LHS) && c.RHS.Equal(o.RHS)
}

func (c *Conjunction) Children() []Node { return []Node{c.LHS, c.RHS} }

func (c *Conjunction) Apply(m Mapper) {
	c.LHS = mapTo(m, c.LHS)
	c.RHS = mapTo(m, c.RHS)
}

func (c *Conjunction) String() string {
	return fmt.Sprintf("(%s and %s)", c.LHS, c.RHS)
}

// Negation inverts a condition.
type Negation struct {
	Cond Condition
}

func (*Negation) condition() {}

func (n *Negation) Clone() Node {
	return &Negation{Cond: n.Cond.Clone().(Condition)}
}

func (n *Negation) Equal(other Node) bool {
	o, ok := other.(*Negation)
	return ok && n.Cond.Equal(o.Cond)
}

func (n *Negation) Children() []Node { return []Node{n.Cond} }

func (n *Negation) Apply(m Mapper) {
	n.Cond = mapTo(m, n.Cond)
}

func (n *Negation) String() string {
	return fmt.Sprintf("(not %s)", n.Cond)
}

// Constraint compares two expression values.
type Constraint struct {
	Op  ramble.BinaryConstraintOp
	LHS Expression
	RHS Expression
}

func (*Constraint) condition() {}

func (c *Constraint) Clone() Node {
	return &Constraint{Op: c.Op, LHS: c.LHS.Clone().(Expression), RHS: c.RHS.Clone().(Expression)}
}

func (c *Constraint) Equal(other Node) bool {
	o, ok := other.(*Constraint)
	return ok && o.Op == c.Op && c.LHS.Equal(o.LHS) && c.RHS.Equal(o.RHS)
}

func (c *Constraint) Children() []Node { return []Node{c.LHS, c.RHS} }

func (c *Constraint) Apply(m Mapper) {
	c.LHS = mapTo(m, c.LHS)
	c.RHS = mapTo(m, c.RHS)
}

func (c *Constraint) String() string {
	return fmt.Sprintf("(%s %s %s)", c.LHS, c.Op, c.RHS)
}

// ExistenceCheck holds when the relation contains a tuple matching the
// pattern; UndefValue positions match anything.
type ExistenceCheck struct {
	Relation string
	Values   []Expression
}

func (*ExistenceCheck) condition() {}

func (e *ExistenceCheck) Clone() Node {
	return &ExistenceCheck{Relation: e.Relation, Values: cloneNodes(e.Values)}
}

func (e *ExistenceCheck) Equal(other Node) bool {
	o, ok := other.(*ExistenceCheck)
	return ok && o.Relation == e.Relation && equalNodes(e.Values, o.Values)
}

func (e *ExistenceCheck) Children() []Node { return expressionChildren(e.Values) }

func (e *ExistenceCheck) Apply(m Mapper) { applyNodes(m, e.Values) }

func (e *ExistenceCheck) String() string {
	return fmt.Sprintf("(%s) in %s", joinNodes(e.Values, ", "), e.Relation)
}

// ProvenanceExistenceCheck holds when the relation contains a tuple matching
// the payload pattern whose derivation level does not exceed the bound. The
// payload covers the declared columns; the two auxiliary columns (rule id,
// level) are not part of the pattern.
type ProvenanceExistenceCheck struct {
	Relation   string
	Values     []Expression
	LevelBound Expression
}

func (*ProvenanceExistenceCheck) condition() {}

func (e *ProvenanceExistenceCheck) Clone() Node {
	return &ProvenanceExistenceCheck{
		Relation:   e.Relation,
		Values:     cloneNodes(e.Values),
		LevelBound: e.LevelBound.Clone().(Expression),
	}
}

func (e *ProvenanceExistenceCheck) Equal(other Node) bool {
	o, ok := other.(*ProvenanceExistenceCheck)
	return ok && o.Relation == e.Relation && equalNodes(e.Values, o.Values) &&
		e.LevelBound.Equal(o.LevelBound)
}

func (e *ProvenanceExistenceCheck) Children() []Node {
	children := expressionChildren(e.Values)
	return append(children, e.LevelBound)
}

func (e *ProvenanceExistenceCheck) Apply(m Mapper) {
	applyNodes(m, e.Values)
	e.LevelBound = mapTo(m, e.LevelBound)
}

func (e *ProvenanceExistenceCheck) String() string {
	return fmt.Sprintf("(%s) in %s level<%s", joinNodes(e.Values, ", "), e.Relation, e.LevelBound)
}

// EmptinessCheck holds when the relation has no tuples.
type EmptinessCheck struct {
	Relation string
}

func (*EmptinessCheck) condition() {}

func (e *EmptinessCheck) Clone() Node {
	cp := *e
	return &cp
}

func (e *EmptinessCheck) Equal(other Node) bool {
	o, ok := other.(*EmptinessCheck)
	return ok && o.Relation == e.Relation
}

func (e *EmptinessCheck) Children() []Node { return nil }
func (e *EmptinessCheck) Apply(Mapper)     {}
func (e *EmptinessCheck) String() string   { return fmt.Sprintf("empty(%s)", e.Relation) }

// ToConjunctionList flattens nested conjunctions into their conjuncts,
// left-to-right. True disappears; a lone condition yields itself.
func ToConjunctionList(cond Condition) []Condition {
	switch c := cond.(type) {
	case nil:
		return nil
	case *True:
		return nil
	case *Conjunction:
		return append(ToConjunctionList(c.LHS), ToConjunctionList(c.RHS)...)
	default:
		return []Condition{cond}
	}
}

// ToCondition conjoins a list of conditions; an empty list yields True.
func ToCondition(conds []Condition) Condition {
	if len(conds) == 0 {
		return &True{}
	}
	result := conds[0]
	for _, c := range conds[1:] {
		result = &Conjunction{LHS: result, RHS: c}
	}
	return result
}
