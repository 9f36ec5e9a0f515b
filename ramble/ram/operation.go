package ram

import (
	"fmt"
	"strings"

	"github.com/ramble-dl/ramble/ramble"
)

// Operation is a loop-forming construct inside a Query. Operations nest; the
// innermost leaf is an insertion.
type Operation interface {
	Node
	printer
	operation()
}

// NestedOperation is implemented by every operation wrapping exactly one
// inner operation. The hoisting passes rewire nests through this interface.
type NestedOperation interface {
	Operation
	Nested() Operation
	SetNested(op Operation)
}

// TupleOperation is implemented by every operation binding a tuple id.
type TupleOperation interface {
	Operation
	TupleID() int
}

// nested provides the child slot shared by wrapping operations.
type nested struct {
	inner Operation
}

func (n *nested) Nested() Operation      { return n.inner }
func (n *nested) SetNested(op Operation) { n.inner = op }

// Insert writes the evaluated values into a relation. It is the innermost
// leaf of every query.
type Insert struct {
	Relation string
	Values   []Expression
}

func (*Insert) operation() {}

func (i *Insert) Clone() Node {
	return &Insert{Relation: i.Relation, Values: cloneNodes(i.Values)}
}

func (i *Insert) Equal(other Node) bool {
	o, ok := other.(*Insert)
	return ok && o.Relation == i.Relation && equalNodes(i.Values, o.Values)
}

func (i *Insert) Children() []Node { return expressionChildren(i.Values) }

func (i *Insert) Apply(m Mapper) { applyNodes(m, i.Values) }

func (i *Insert) String() string { return renderBlock(i) }

func (i *Insert) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "INSERT (%s) INTO %s\n", joinNodes(i.Values, ", "), i.Relation)
}

// GuardedInsert writes only when the guard holds against the inserted
// values; used for functional-dependency (choice-domain) relations.
type GuardedInsert struct {
	Relation string
	Values   []Expression
	Guard    Condition
}

func (*GuardedInsert) operation() {}

func (i *GuardedInsert) Clone() Node {
	return &GuardedInsert{
		Relation: i.Relation,
		Values:   cloneNodes(i.Values),
		Guard:    i.Guard.Clone().(Condition),
	}
}

func (i *GuardedInsert) Equal(other Node) bool {
	o, ok := other.(*GuardedInsert)
	return ok && o.Relation == i.Relation && equalNodes(i.Values, o.Values) && i.Guard.Equal(o.Guard)
}

func (i *GuardedInsert) Children() []Node {
	return append(expressionChildren(i.Values), i.Guard)
}

func (i *GuardedInsert) Apply(m Mapper) {
	applyNodes(m, i.Values)
	i.Guard = mapTo(m, i.Guard)
}

func (i *GuardedInsert) String() string { return renderBlock(i) }

func (i *GuardedInsert) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "INSERT (%s) INTO %s IF %s\n", joinNodes(i.Values, ", "), i.Relation, i.Guard)
}

// Scan iterates every tuple of a relation, binding the tuple id.
type Scan struct {
	nested
	Relation string
	ID       int
}

func (*Scan) operation() {}

func (s *Scan) TupleID() int { return s.ID }

func (s *Scan) Clone() Node {
	return &Scan{nested: nested{inner: s.inner.Clone().(Operation)}, Relation: s.Relation, ID: s.ID}
}

func (s *Scan) Equal(other Node) bool {
	o, ok := other.(*Scan)
	return ok && o.Relation == s.Relation && o.ID == s.ID && s.inner.Equal(o.inner)
}

func (s *Scan) Children() []Node { return []Node{s.inner} }

func (s *Scan) Apply(m Mapper) { s.inner = mapTo(m, s.inner) }

func (s *Scan) String() string { return renderBlock(s) }

func (s *Scan) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "FOR t%d IN %s\n", s.ID, s.Relation)
	s.inner.print(sb, depth+1)
}

// IndexScan iterates the tuples of a relation matching a pattern of
// per-column bounds. A column is an equality key when its lower and upper
// bound are the same defined expression; UndefValue leaves it unconstrained.
type IndexScan struct {
	nested
	Relation string
	ID       int
	Low      []Expression
	High     []Expression
}

func (*IndexScan) operation() {}

func (s *IndexScan) TupleID() int { return s.ID }

// KeyColumns returns the columns constrained by equality, in column order.
func (s *IndexScan) KeyColumns() []int {
	var cols []int
	for i := range s.Low {
		if _, undef := s.Low[i].(*UndefValue); undef {
			continue
		}
		if s.Low[i].Equal(s.High[i]) {
			cols = append(cols, i)
		}
	}
	return cols
}

func (s *IndexScan) Clone() Node {
	return &IndexScan{
		nested:   nested{inner: s.inner.Clone().(Operation)},
		Relation: s.Relation,
		ID:       s.ID,
		Low:      cloneNodes(s.Low),
		High:     cloneNodes(s.High),
	}
}

func (s *IndexScan) Equal(other Node) bool {
	o, ok := other.(*IndexScan)
	return ok && o.Relation == s.Relation && o.ID == s.ID &&
		equalNodes(s.Low, o.Low) && equalNodes(s.High, o.High) && s.inner.Equal(o.inner)
}

func (s *IndexScan) Children() []Node {
	children := expressionChildren(s.Low)
	children = append(children, expressionChildren(s.High)...)
	return append(children, s.inner)
}

func (s *IndexScan) Apply(m Mapper) {
	applyNodes(m, s.Low)
	applyNodes(m, s.High)
	s.inner = mapTo(m, s.inner)
}

func (s *IndexScan) String() string { return renderBlock(s) }

func (s *IndexScan) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	var keys []string
	for i := range s.Low {
		if _, undef := s.Low[i].(*UndefValue); undef {
			continue
		}
		if s.Low[i].Equal(s.High[i]) {
			keys = append(keys, fmt.Sprintf("t%d.%d = %s", s.ID, i, s.Low[i]))
		} else {
			keys = append(keys, fmt.Sprintf("%s <= t%d.%d <= %s", s.Low[i], s.ID, i, s.High[i]))
		}
	}
	fmt.Fprintf(sb, "FOR t%d IN %s ON INDEX %s\n", s.ID, s.Relation, strings.Join(keys, " and "))
	s.inner.print(sb, depth+1)
}

// Filter executes its body only when the condition holds.
type Filter struct {
	nested
	Cond Condition
}

func (*Filter) operation() {}

func (f *Filter) Clone() Node {
	return &Filter{nested: nested{inner: f.inner.Clone().(Operation)}, Cond: f.Cond.Clone().(Condition)}
}

func (f *Filter) Equal(other Node) bool {
	o, ok := other.(*Filter)
	return ok && f.Cond.Equal(o.Cond) && f.inner.Equal(o.inner)
}

func (f *Filter) Children() []Node { return []Node{f.Cond, f.inner} }

func (f *Filter) Apply(m Mapper) {
	f.Cond = mapTo(m, f.Cond)
	f.inner = mapTo(m, f.inner)
}

func (f *Filter) String() string { return renderBlock(f) }

func (f *Filter) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "IF %s\n", f.Cond)
	f.inner.print(sb, depth+1)
}

// Break aborts the enclosing query once the condition holds.
type Break struct {
	nested
	Cond Condition
}

func (*Break) operation() {}

func (b *Break) Clone() Node {
	return &Break{nested: nested{inner: b.inner.Clone().(Operation)}, Cond: b.Cond.Clone().(Condition)}
}

func (b *Break) Equal(other Node) bool {
	o, ok := other.(*Break)
	return ok && b.Cond.Equal(o.Cond) && b.inner.Equal(o.inner)
}

func (b *Break) Children() []Node { return []Node{b.Cond, b.inner} }

func (b *Break) Apply(m Mapper) {
	b.Cond = mapTo(m, b.Cond)
	b.inner = mapTo(m, b.inner)
}

func (b *Break) String() string { return renderBlock(b) }

func (b *Break) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "IF %s BREAK\n", b.Cond)
	b.inner.print(sb, depth+1)
}

// UnpackRecord dereferences a record value and binds its fields as the
// columns of a fresh tuple id. A nil reference aborts the current branch.
type UnpackRecord struct {
	nested
	Ref   Expression
	Arity int
	ID    int
}

func (*UnpackRecord) operation() {}

func (u *UnpackRecord) TupleID() int { return u.ID }

func (u *UnpackRecord) Clone() Node {
	return &UnpackRecord{
		nested: nested{inner: u.inner.Clone().(Operation)},
		Ref:    u.Ref.Clone().(Expression),
		Arity:  u.Arity,
		ID:     u.ID,
	}
}

func (u *UnpackRecord) Equal(other Node) bool {
	o, ok := other.(*UnpackRecord)
	return ok && o.Arity == u.Arity && o.ID == u.ID && u.Ref.Equal(o.Ref) && u.inner.Equal(o.inner)
}

func (u *UnpackRecord) Children() []Node { return []Node{u.Ref, u.inner} }

func (u *UnpackRecord) Apply(m Mapper) {
	u.Ref = mapTo(m, u.Ref)
	u.inner = mapTo(m, u.inner)
}

func (u *UnpackRecord) String() string { return renderBlock(u) }

func (u *UnpackRecord) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "UNPACK t%d ARITY %d FROM %s\n", u.ID, u.Arity, u.Ref)
	u.inner.print(sb, depth+1)
}

// Aggregate scans a relation, folding the target expression over every
// tuple satisfying the condition. The result is bound as column 0 of the
// aggregate's tuple id; for an empty input, count yields 0 and every other
// operator produces no binding at all.
type Aggregate struct {
	nested
	Fn       ramble.AggregateOp
	Relation string
	ID       int
	Expr     Expression
	// TypeAttr is the machine interpretation of the folded values; sum, min
	// and max fold through the float or unsigned views when set.
	TypeAttr ramble.TypeAttribute
	Cond     Condition
}

func (*Aggregate) operation() {}

func (a *Aggregate) TupleID() int { return a.ID }

func (a *Aggregate) Clone() Node {
	return &Aggregate{
		nested:   nested{inner: a.inner.Clone().(Operation)},
		Fn:       a.Fn,
		Relation: a.Relation,
		ID:       a.ID,
		Expr:     a.Expr.Clone().(Expression),
		TypeAttr: a.TypeAttr,
		Cond:     a.Cond.Clone().(Condition),
	}
}

func (a *Aggregate) Equal(other Node) bool {
	o, ok := other.(*Aggregate)
	return ok && o.Fn == a.Fn && o.Relation == a.Relation && o.ID == a.ID &&
		o.TypeAttr == a.TypeAttr && a.Expr.Equal(o.Expr) && a.Cond.Equal(o.Cond) &&
		a.inner.Equal(o.inner)
}

func (a *Aggregate) Children() []Node { return []Node{a.Expr, a.Cond, a.inner} }

func (a *Aggregate) Apply(m Mapper) {
	a.Expr = mapTo(m, a.Expr)
	a.Cond = mapTo(m, a.Cond)
	a.inner = mapTo(m, a.inner)
}

func (a *Aggregate) String() string { return renderBlock(a) }

func (a *Aggregate) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "t%d.0 = %s %s FOR ALL t%d IN %s WHERE %s\n",
		a.ID, a.Fn, a.Expr, a.ID, a.Relation, a.Cond)
	a.inner.print(sb, depth+1)
}

// NestedIntrinsic binds one result per value produced by a multi-result
// functor, as column 0 of the operation's tuple id.
type NestedIntrinsic struct {
	nested
	Op   ramble.FunctorOp
	Args []Expression
	ID   int
}

func (*NestedIntrinsic) operation() {}

func (n *NestedIntrinsic) TupleID() int { return n.ID }

func (n *NestedIntrinsic) Clone() Node {
	return &NestedIntrinsic{
		nested: nested{inner: n.inner.Clone().(Operation)},
		Op:     n.Op,
		Args:   cloneNodes(n.Args),
		ID:     n.ID,
	}
}

func (n *NestedIntrinsic) Equal(other Node) bool {
	o, ok := other.(*NestedIntrinsic)
	return ok && o.Op == n.Op && o.ID == n.ID && equalNodes(n.Args, o.Args) && n.inner.Equal(o.inner)
}

func (n *NestedIntrinsic) Children() []Node {
	return append(expressionChildren(n.Args), n.inner)
}

func (n *NestedIntrinsic) Apply(m Mapper) {
	applyNodes(m, n.Args)
	n.inner = mapTo(m, n.inner)
}

func (n *NestedIntrinsic) String() string { return renderBlock(n) }

func (n *NestedIntrinsic) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "FOR t%d.0 IN %s(%s)\n", n.ID, n.Op, joinNodes(n.Args, ", "))
	n.inner.print(sb, depth+1)
}
