package ast

import (
	"fmt"

	"github.com/ramble-dl/ramble/ramble"
)

// Literal is an element of a clause body.
type Literal interface {
	Node
	literal()
}

// Atom is a positive relation reference: name(arg, ...).
type Atom struct {
	base
	Name QualifiedName
	Args []Argument
}

func (*Atom) literal() {}

// Arity returns the number of arguments.
func (a *Atom) Arity() int { return len(a.Args) }

func (a *Atom) Clone() Node {
	return &Atom{base: a.base, Name: a.Name, Args: cloneNodes(a.Args)}
}

func (a *Atom) Equal(other Node) bool {
	o, ok := other.(*Atom)
	return ok && o.Name.Equal(a.Name) && equalNodes(a.Args, o.Args)
}

func (a *Atom) Children() []Node {
	return argumentChildren(a.Args)
}

func (a *Atom) Apply(m Mapper) {
	applyNodes(m, a.Args)
}

func (a *Atom) String() string {
	return fmt.Sprintf("%s(%s)", a.Name, joinNodes(a.Args, ", "))
}

// Negation negates an atom: !name(arg, ...).
type Negation struct {
	base
	Atom *Atom
}

func (*Negation) literal() {}

func (n *Negation) Clone() Node {
	return &Negation{base: n.base, Atom: n.Atom.Clone().(*Atom)}
}

func (n *Negation) Equal(other Node) bool {
	o, ok := other.(*Negation)
	return ok && n.Atom.Equal(o.Atom)
}

func (n *Negation) Children() []Node { return []Node{n.Atom} }

func (n *Negation) Apply(m Mapper) {
	n.Atom = mapTo(m, n.Atom)
}

func (n *Negation) String() string {
	return "!" + n.Atom.String()
}

// BinaryConstraint compares two arguments.
type BinaryConstraint struct {
	base
	Op  ramble.BinaryConstraintOp
	LHS Argument
	RHS Argument
}

func (*BinaryConstraint) literal() {}

func (c *BinaryConstraint) Clone() Node {
	return &BinaryConstraint{
		base: c.base,
		Op:   c.Op,
		LHS:  c.LHS.Clone().(Argument),
		RHS:  c.RHS.Clone().(Argument),
	}
}

func (c *BinaryConstraint) Equal(other Node) bool {
	o, ok := other.(*BinaryConstraint)
	return ok && o.Op == c.Op && c.LHS.Equal(o.LHS) && c.RHS.Equal(o.RHS)
}

func (c *BinaryConstraint) Children() []Node { return []Node{c.LHS, c.RHS} }

func (c *BinaryConstraint) Apply(m Mapper) {
	c.LHS = mapTo(m, c.LHS)
	c.RHS = mapTo(m, c.RHS)
}

func (c *BinaryConstraint) String() string {
	switch c.Op {
	case ramble.Match, ramble.NotMatch, ramble.Contains, ramble.NotContains:
		return fmt.Sprintf("%s(%s, %s)", c.Op, c.LHS, c.RHS)
	}
	return fmt.Sprintf("%s %s %s", c.LHS, c.Op, c.RHS)
}
