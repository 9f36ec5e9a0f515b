package ast

import (
	"fmt"
	"strings"

	"github.com/ramble-dl/ramble/ramble"
)

// Argument is a term appearing inside an atom, constraint, or functor.
type Argument interface {
	Node
	argument()
}

// Variable is a named query variable.
type Variable struct {
	base
	Name string
}

func (*Variable) argument() {}

func (v *Variable) Clone() Node {
	c := *v
	return &c
}

func (v *Variable) Equal(other Node) bool {
	o, ok := other.(*Variable)
	return ok && o.Name == v.Name
}

func (v *Variable) Children() []Node { return nil }
func (v *Variable) Apply(Mapper)     {}
func (v *Variable) String() string   { return v.Name }

// UnnamedVariable is the wildcard "_".
type UnnamedVariable struct {
	base
}

func (*UnnamedVariable) argument() {}

func (u *UnnamedVariable) Clone() Node {
	c := *u
	return &c
}

func (u *UnnamedVariable) Equal(other Node) bool {
	_, ok := other.(*UnnamedVariable)
	return ok
}

func (u *UnnamedVariable) Children() []Node { return nil }
func (u *UnnamedVariable) Apply(Mapper)     {}
func (u *UnnamedVariable) String() string   { return "_" }

// Counter is the auto-incrementing "$" argument.
type Counter struct {
	base
}

func (*Counter) argument() {}

func (c *Counter) Clone() Node {
	cp := *c
	return &cp
}

func (c *Counter) Equal(other Node) bool {
	_, ok := other.(*Counter)
	return ok
}

func (c *Counter) Children() []Node { return nil }
func (c *Counter) Apply(Mapper)     {}
func (c *Counter) String() string   { return "$" }

// NumericType is the syntactic classification of a numeric literal.
type NumericType uint8

const (
	NumericInt NumericType = iota
	NumericUint
	NumericFloat
)

// NumericConstant is a numeric literal. The literal text is kept verbatim;
// the type is fixed by the literal's spelling (unsigned suffix, decimal
// point) or by type inference.
type NumericConstant struct {
	base
	Literal string
	Type    NumericType
}

func (*NumericConstant) argument() {}

func (n *NumericConstant) Clone() Node {
	c := *n
	return &c
}

func (n *NumericConstant) Equal(other Node) bool {
	o, ok := other.(*NumericConstant)
	return ok && o.Literal == n.Literal && o.Type == n.Type
}

func (n *NumericConstant) Children() []Node { return nil }
func (n *NumericConstant) Apply(Mapper)     {}

func (n *NumericConstant) String() string {
	if n.Type == NumericUint {
		return n.Literal + "u"
	}
	return n.Literal
}

// StringConstant is a symbol literal.
type StringConstant struct {
	base
	Value string
}

func (*StringConstant) argument() {}

func (s *StringConstant) Clone() Node {
	c := *s
	return &c
}

func (s *StringConstant) Equal(other Node) bool {
	o, ok := other.(*StringConstant)
	return ok && o.Value == s.Value
}

func (s *StringConstant) Children() []Node { return nil }
func (s *StringConstant) Apply(Mapper)     {}
func (s *StringConstant) String() string   { return fmt.Sprintf("%q", s.Value) }

// NilConstant is the empty record literal "nil".
type NilConstant struct {
	base
}

func (*NilConstant) argument() {}

func (n *NilConstant) Clone() Node {
	c := *n
	return &c
}

func (n *NilConstant) Equal(other Node) bool {
	_, ok := other.(*NilConstant)
	return ok
}

func (n *NilConstant) Children() []Node { return nil }
func (n *NilConstant) Apply(Mapper)     {}
func (n *NilConstant) String() string   { return "nil" }

// IntrinsicFunctor applies a built-in functor to arguments.
type IntrinsicFunctor struct {
	base
	Op   ramble.FunctorOp
	Args []Argument
}

func (*IntrinsicFunctor) argument() {}

func (f *IntrinsicFunctor) Clone() Node {
	return &IntrinsicFunctor{base: f.base, Op: f.Op, Args: cloneNodes(f.Args)}
}

func (f *IntrinsicFunctor) Equal(other Node) bool {
	o, ok := other.(*IntrinsicFunctor)
	return ok && o.Op == f.Op && equalNodes(f.Args, o.Args)
}

func (f *IntrinsicFunctor) Children() []Node {
	return argumentChildren(f.Args)
}

func (f *IntrinsicFunctor) Apply(m Mapper) {
	applyNodes(m, f.Args)
}

func (f *IntrinsicFunctor) String() string {
	if f.Op.IsInfix() && len(f.Args) == 2 {
		return fmt.Sprintf("(%s %s %s)", f.Args[0], f.Op, f.Args[1])
	}
	if f.Op == ramble.Neg && len(f.Args) == 1 {
		return fmt.Sprintf("-%s", f.Args[0])
	}
	return fmt.Sprintf("%s(%s)", f.Op, joinNodes(f.Args, ", "))
}

// UserDefinedFunctor applies a declared external functor.
type UserDefinedFunctor struct {
	base
	Name string
	Args []Argument
}

func (*UserDefinedFunctor) argument() {}

func (f *UserDefinedFunctor) Clone() Node {
	return &UserDefinedFunctor{base: f.base, Name: f.Name, Args: cloneNodes(f.Args)}
}

func (f *UserDefinedFunctor) Equal(other Node) bool {
	o, ok := other.(*UserDefinedFunctor)
	return ok && o.Name == f.Name && equalNodes(f.Args, o.Args)
}

func (f *UserDefinedFunctor) Children() []Node {
	return argumentChildren(f.Args)
}

func (f *UserDefinedFunctor) Apply(m Mapper) {
	applyNodes(m, f.Args)
}

func (f *UserDefinedFunctor) String() string {
	return fmt.Sprintf("@%s(%s)", f.Name, joinNodes(f.Args, ", "))
}

// Aggregator computes an aggregate over the tuples satisfying its body.
// TargetExpr is nil for count.
type Aggregator struct {
	base
	Op         ramble.AggregateOp
	TargetExpr Argument
	Body       []Literal
}

func (*Aggregator) argument() {}

func (a *Aggregator) Clone() Node {
	c := &Aggregator{base: a.base, Op: a.Op, Body: cloneNodes(a.Body)}
	if a.TargetExpr != nil {
		c.TargetExpr = a.TargetExpr.Clone().(Argument)
	}
	return c
}

func (a *Aggregator) Equal(other Node) bool {
	o, ok := other.(*Aggregator)
	if !ok || o.Op != a.Op || !equalNodes(a.Body, o.Body) {
		return false
	}
	if (a.TargetExpr == nil) != (o.TargetExpr == nil) {
		return false
	}
	return a.TargetExpr == nil || a.TargetExpr.Equal(o.TargetExpr)
}

func (a *Aggregator) Children() []Node {
	var children []Node
	if a.TargetExpr != nil {
		children = append(children, a.TargetExpr)
	}
	for _, lit := range a.Body {
		children = append(children, lit)
	}
	return children
}

func (a *Aggregator) Apply(m Mapper) {
	if a.TargetExpr != nil {
		a.TargetExpr = mapTo(m, a.TargetExpr)
	}
	applyNodes(m, a.Body)
}

func (a *Aggregator) String() string {
	var sb strings.Builder
	sb.WriteString(a.Op.String())
	if a.TargetExpr != nil {
		sb.WriteString(" ")
		sb.WriteString(a.TargetExpr.String())
	}
	sb.WriteString(" : { ")
	sb.WriteString(joinNodes(a.Body, ", "))
	sb.WriteString(" }")
	return sb.String()
}

// RecordInit constructs a record value [a, b, ...].
type RecordInit struct {
	base
	Args []Argument
}

func (*RecordInit) argument() {}

func (r *RecordInit) Clone() Node {
	return &RecordInit{base: r.base, Args: cloneNodes(r.Args)}
}

func (r *RecordInit) Equal(other Node) bool {
	o, ok := other.(*RecordInit)
	return ok && equalNodes(r.Args, o.Args)
}

func (r *RecordInit) Children() []Node {
	return argumentChildren(r.Args)
}

func (r *RecordInit) Apply(m Mapper) {
	applyNodes(m, r.Args)
}

func (r *RecordInit) String() string {
	return "[" + joinNodes(r.Args, ", ") + "]"
}

// BranchInit constructs an ADT value $Branch(args...).
type BranchInit struct {
	base
	Branch QualifiedName
	Args   []Argument
}

func (*BranchInit) argument() {}

func (b *BranchInit) Clone() Node {
	return &BranchInit{base: b.base, Branch: b.Branch, Args: cloneNodes(b.Args)}
}

func (b *BranchInit) Equal(other Node) bool {
	o, ok := other.(*BranchInit)
	return ok && o.Branch.Equal(b.Branch) && equalNodes(b.Args, o.Args)
}

func (b *BranchInit) Children() []Node {
	return argumentChildren(b.Args)
}

func (b *BranchInit) Apply(m Mapper) {
	applyNodes(m, b.Args)
}

func (b *BranchInit) String() string {
	if len(b.Args) == 0 {
		return "$" + b.Branch.String() + "()"
	}
	return fmt.Sprintf("$%s(%s)", b.Branch, joinNodes(b.Args, ", "))
}

// TypeCast asserts the type of a value: (expr as type).
type TypeCast struct {
	base
	Value Argument
	Type  QualifiedName
}

func (*TypeCast) argument() {}

func (t *TypeCast) Clone() Node {
	return &TypeCast{base: t.base, Value: t.Value.Clone().(Argument), Type: t.Type}
}

func (t *TypeCast) Equal(other Node) bool {
	o, ok := other.(*TypeCast)
	return ok && o.Type.Equal(t.Type) && t.Value.Equal(o.Value)
}

func (t *TypeCast) Children() []Node { return []Node{t.Value} }

func (t *TypeCast) Apply(m Mapper) {
	t.Value = mapTo(m, t.Value)
}

func (t *TypeCast) String() string {
	return fmt.Sprintf("as(%s, %s)", t.Value, t.Type)
}

func argumentChildren(args []Argument) []Node {
	if len(args) == 0 {
		return nil
	}
	children := make([]Node, len(args))
	for i, a := range args {
		children[i] = a
	}
	return children
}
