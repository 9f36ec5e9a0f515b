package ast

import (
	"testing"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(lit string) *NumericConstant {
	return &NumericConstant{Literal: lit, Type: NumericInt}
}

func sampleClause() *Clause {
	// t(x, y) :- e(x, z), t(z, y), x > 0.
	return &Clause{
		Head: &Atom{
			Name: NewQualifiedName("t"),
			Args: []Argument{&Variable{Name: "x"}, &Variable{Name: "y"}},
		},
		Body: []Literal{
			&Atom{Name: NewQualifiedName("e"), Args: []Argument{&Variable{Name: "x"}, &Variable{Name: "z"}}},
			&Atom{Name: NewQualifiedName("t"), Args: []Argument{&Variable{Name: "z"}, &Variable{Name: "y"}}},
			&BinaryConstraint{Op: ramble.GT, LHS: &Variable{Name: "x"}, RHS: num("0")},
		},
	}
}

func TestCloneEqual(t *testing.T) {
	clause := sampleClause()
	cp := clause.Clone().(*Clause)

	assert.True(t, clause.Equal(cp))
	assert.True(t, cp.Equal(clause))

	// Clones share no mutable state
	cp.Head.Args[0] = &Variable{Name: "w"}
	assert.False(t, clause.Equal(cp))
	assert.Equal(t, "x", clause.Head.Args[0].(*Variable).Name)
}

func TestEqualIgnoresSrcLoc(t *testing.T) {
	a := sampleClause()
	b := sampleClause()
	b.SetLoc(SrcLoc{File: "x.dl", Line: 10, Column: 3})
	b.Head.SetLoc(SrcLoc{File: "x.dl", Line: 10, Column: 1})
	assert.True(t, a.Equal(b))
}

func TestEqualDifferentKinds(t *testing.T) {
	assert.False(t, (&Variable{Name: "x"}).Equal(&UnnamedVariable{}))
	assert.False(t, (&NilConstant{}).Equal(&StringConstant{Value: "nil"}))
}

func TestVisitPreOrder(t *testing.T) {
	clause := sampleClause()
	var order []string
	Visit(clause, func(n Node) {
		order = append(order, n.String())
	})

	require.NotEmpty(t, order)
	// Root first, then head before body.
	assert.Equal(t, clause.String(), order[0])
	assert.Equal(t, "t(x, y)", order[1])
	assert.Equal(t, "x", order[2])
}

func TestApplyRewritesChildren(t *testing.T) {
	clause := sampleClause()

	// Rename every variable x to x0, recursing first.
	var rename Mapper
	rename = func(n Node) Node {
		n.Apply(rename)
		if v, ok := n.(*Variable); ok && v.Name == "x" {
			return &Variable{Name: "x0"}
		}
		return n
	}
	clause.Apply(rename)

	assert.Equal(t, "t(x0, y) :- e(x0, z), t(z, y), x0 > 0.", clause.String())
}

func TestApplyNilMapperPanics(t *testing.T) {
	atom := &Atom{Name: NewQualifiedName("p"), Args: []Argument{&Variable{Name: "x"}}}
	assert.Panics(t, func() {
		atom.Apply(func(Node) Node { return nil })
	})
}

func TestApplyWrongKindPanics(t *testing.T) {
	neg := &Negation{Atom: &Atom{Name: NewQualifiedName("p")}}
	assert.Panics(t, func() {
		// A negation's child slot only accepts an atom.
		neg.Apply(func(Node) Node { return &Variable{Name: "x"} })
	})
}

func TestQualifiedNameOrdering(t *testing.T) {
	a := NewQualifiedName("a")
	ab := NewQualifiedName("a", "b")
	b := NewQualifiedName("b")

	assert.Equal(t, -1, a.Compare(ab))
	assert.Equal(t, 1, ab.Compare(a))
	assert.Equal(t, -1, ab.Compare(b))
	assert.Equal(t, 0, ab.Compare(NewQualifiedName("a", "b")))
	assert.Equal(t, "a.b", ab.String())
}

func TestAggregatorEquality(t *testing.T) {
	count := &Aggregator{
		Op:   ramble.AggCount,
		Body: []Literal{&Atom{Name: NewQualifiedName("p"), Args: []Argument{&UnnamedVariable{}}}},
	}
	sum := &Aggregator{
		Op:         ramble.AggSum,
		TargetExpr: &Variable{Name: "x"},
		Body:       []Literal{&Atom{Name: NewQualifiedName("p"), Args: []Argument{&Variable{Name: "x"}}}},
	}

	assert.True(t, count.Equal(count.Clone()))
	assert.True(t, sum.Equal(sum.Clone()))
	assert.False(t, count.Equal(sum))
	assert.Equal(t, "count : { p(_) }", count.String())
	assert.Equal(t, "sum x : { p(x) }", sum.String())
}

func TestProgramLookup(t *testing.T) {
	prog := &Program{
		Relations: []*Relation{
			{Name: NewQualifiedName("e"), Attributes: []*Attribute{
				{Name: "x", TypeName: NewQualifiedName("number")},
				{Name: "y", TypeName: NewQualifiedName("number")},
			}},
		},
		Clauses: []*Clause{sampleClause()},
	}

	require.NotNil(t, prog.Relation(NewQualifiedName("e")))
	assert.Nil(t, prog.Relation(NewQualifiedName("missing")))
	assert.Len(t, prog.ClausesFor(NewQualifiedName("t")), 1)
}
