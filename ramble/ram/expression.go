package ram

import (
	"fmt"

	"github.com/ramble-dl/ramble/ramble"
)

// Expression computes a single domain value from the tuples bound by
// enclosing operations.
type Expression interface {
	Node
	expression()
}

// SignedConstant is a signed integer literal.
type SignedConstant struct {
	Value ramble.RamDomain
}

func (*SignedConstant) expression() {}

func (c *SignedConstant) Clone() Node {
	cp := *c
	return &cp
}

func (c *SignedConstant) Equal(other Node) bool {
	o, ok := other.(*SignedConstant)
	return ok && o.Value == c.Value
}

func (c *SignedConstant) Children() []Node { return nil }
func (c *SignedConstant) Apply(Mapper)     {}
func (c *SignedConstant) String() string   { return fmt.Sprintf("number(%d)", c.Value) }

// UnsignedConstant is an unsigned integer literal, bit-cast into the domain.
type UnsignedConstant struct {
	Value ramble.RamUnsigned
}

func (*UnsignedConstant) expression() {}

func (c *UnsignedConstant) Clone() Node {
	cp := *c
	return &cp
}

func (c *UnsignedConstant) Equal(other Node) bool {
	o, ok := other.(*UnsignedConstant)
	return ok && o.Value == c.Value
}

func (c *UnsignedConstant) Children() []Node { return nil }
func (c *UnsignedConstant) Apply(Mapper)     {}
func (c *UnsignedConstant) String() string   { return fmt.Sprintf("unsigned(%d)", c.Value) }

// FloatConstant is a floating-point literal, bit-cast into the domain.
type FloatConstant struct {
	Value ramble.RamFloat
}

func (*FloatConstant) expression() {}

func (c *FloatConstant) Clone() Node {
	cp := *c
	return &cp
}

func (c *FloatConstant) Equal(other Node) bool {
	o, ok := other.(*FloatConstant)
	return ok && o.Value == c.Value
}

func (c *FloatConstant) Children() []Node { return nil }
func (c *FloatConstant) Apply(Mapper)     {}
func (c *FloatConstant) String() string   { return fmt.Sprintf("float(%g)", c.Value) }

// StringConstant is a symbol literal; the backend interns it into the symbol
// table on first evaluation.
type StringConstant struct {
	Value string
}

func (*StringConstant) expression() {}

func (c *StringConstant) Clone() Node {
	cp := *c
	return &cp
}

func (c *StringConstant) Equal(other Node) bool {
	o, ok := other.(*StringConstant)
	return ok && o.Value == c.Value
}

func (c *StringConstant) Children() []Node { return nil }
func (c *StringConstant) Apply(Mapper)     {}
func (c *StringConstant) String() string   { return fmt.Sprintf("string(%q)", c.Value) }

// TupleElement reads column Column of the row bound by the operation with
// tuple id TupleID.
type TupleElement struct {
	TupleID int
	Column  int
}

func (*TupleElement) expression() {}

func (t *TupleElement) Clone() Node {
	cp := *t
	return &cp
}

func (t *TupleElement) Equal(other Node) bool {
	o, ok := other.(*TupleElement)
	return ok && o.TupleID == t.TupleID && o.Column == t.Column
}

func (t *TupleElement) Children() []Node { return nil }
func (t *TupleElement) Apply(Mapper)     {}
func (t *TupleElement) String() string   { return fmt.Sprintf("t%d.%d", t.TupleID, t.Column) }

// UndefValue marks an unconstrained position in an existence check or index
// pattern.
type UndefValue struct{}

func (*UndefValue) expression() {}

func (u *UndefValue) Clone() Node {
	cp := *u
	return &cp
}

func (u *UndefValue) Equal(other Node) bool {
	_, ok := other.(*UndefValue)
	return ok
}

func (u *UndefValue) Children() []Node { return nil }
func (u *UndefValue) Apply(Mapper)     {}
func (u *UndefValue) String() string   { return "_" }

// AutoIncrement yields the next value of the program-wide counter.
type AutoIncrement struct{}

func (*AutoIncrement) expression() {}

func (a *AutoIncrement) Clone() Node {
	cp := *a
	return &cp
}

func (a *AutoIncrement) Equal(other Node) bool {
	_, ok := other.(*AutoIncrement)
	return ok
}

func (a *AutoIncrement) Children() []Node { return nil }
func (a *AutoIncrement) Apply(Mapper)     {}
func (a *AutoIncrement) String() string   { return "autoinc()" }

// IntrinsicOperator applies a built-in functor to evaluated arguments.
// TypeAttr selects the numeric interpretation of arithmetic operators.
type IntrinsicOperator struct {
	Op       ramble.FunctorOp
	TypeAttr ramble.TypeAttribute
	Args     []Expression
}

func (*IntrinsicOperator) expression() {}

func (f *IntrinsicOperator) Clone() Node {
	return &IntrinsicOperator{Op: f.Op, TypeAttr: f.TypeAttr, Args: cloneNodes(f.Args)}
}

func (f *IntrinsicOperator) Equal(other Node) bool {
	o, ok := other.(*IntrinsicOperator)
	return ok && o.Op == f.Op && o.TypeAttr == f.TypeAttr && equalNodes(f.Args, o.Args)
}

func (f *IntrinsicOperator) Children() []Node { return expressionChildren(f.Args) }

func (f *IntrinsicOperator) Apply(m Mapper) { applyNodes(m, f.Args) }

func (f *IntrinsicOperator) String() string {
	if f.Op.IsInfix() && len(f.Args) == 2 {
		return fmt.Sprintf("(%s %s %s)", f.Args[0], f.Op, f.Args[1])
	}
	return fmt.Sprintf("%s(%s)", f.Op, joinNodes(f.Args, ", "))
}

// UserDefinedOperator calls a registered external functor.
type UserDefinedOperator struct {
	Name       string
	ArgTypes   []ramble.TypeAttribute
	ReturnType ramble.TypeAttribute
	Stateful   bool
	Args       []Expression
}

func (*UserDefinedOperator) expression() {}

func (f *UserDefinedOperator) Clone() Node {
	return &UserDefinedOperator{
		Name:       f.Name,
		ArgTypes:   append([]ramble.TypeAttribute(nil), f.ArgTypes...),
		ReturnType: f.ReturnType,
		Stateful:   f.Stateful,
		Args:       cloneNodes(f.Args),
	}
}

func (f *UserDefinedOperator) Equal(other Node) bool {
	o, ok := other.(*UserDefinedOperator)
	if !ok || o.Name != f.Name || o.ReturnType != f.ReturnType || o.Stateful != f.Stateful {
		return false
	}
	if len(o.ArgTypes) != len(f.ArgTypes) {
		return false
	}
	for i, at := range f.ArgTypes {
		if o.ArgTypes[i] != at {
			return false
		}
	}
	return equalNodes(f.Args, o.Args)
}

func (f *UserDefinedOperator) Children() []Node { return expressionChildren(f.Args) }

func (f *UserDefinedOperator) Apply(m Mapper) { applyNodes(m, f.Args) }

func (f *UserDefinedOperator) String() string {
	return fmt.Sprintf("@%s(%s)", f.Name, joinNodes(f.Args, ", "))
}

// PackRecord materializes its arguments as a record and yields the record
// reference.
type PackRecord struct {
	Args []Expression
}

func (*PackRecord) expression() {}

func (p *PackRecord) Clone() Node {
	return &PackRecord{Args: cloneNodes(p.Args)}
}

func (p *PackRecord) Equal(other Node) bool {
	o, ok := other.(*PackRecord)
	return ok && equalNodes(p.Args, o.Args)
}

func (p *PackRecord) Children() []Node { return expressionChildren(p.Args) }

func (p *PackRecord) Apply(m Mapper) { applyNodes(m, p.Args) }

func (p *PackRecord) String() string {
	return fmt.Sprintf("[%s]", joinNodes(p.Args, ", "))
}

// RelationSize yields the current tuple count of a relation.
type RelationSize struct {
	Relation string
}

func (*RelationSize) expression() {}

func (r *RelationSize) Clone() Node {
	cp := *r
	return &cp
}

func (r *RelationSize) Equal(other Node) bool {
	o, ok := other.(*RelationSize)
	return ok && o.Relation == r.Relation
}

func (r *RelationSize) Children() []Node { return nil }
func (r *RelationSize) Apply(Mapper)     {}
func (r *RelationSize) String() string   { return fmt.Sprintf("size(%s)", r.Relation) }

func expressionChildren(args []Expression) []Node {
	if len(args) == 0 {
		return nil
	}
	children := make([]Node, len(args))
	for i, a := range args {
		children[i] = a
	}
	return children
}
