package ram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramble-dl/ramble/ramble"
)

func sampleQuery() *Query {
	// FOR t0 IN e, IF t0.0 > 0, INSERT (t0.0, t0.1) INTO t
	return &Query{
		Op: &Scan{
			Relation: "e",
			ID:       0,
			nested: nested{inner: &Filter{
				Cond: &Constraint{
					Op:  ramble.GT,
					LHS: &TupleElement{TupleID: 0, Column: 0},
					RHS: &SignedConstant{Value: 0},
				},
				nested: nested{inner: &Insert{
					Relation: "t",
					Values: []Expression{
						&TupleElement{TupleID: 0, Column: 0},
						&TupleElement{TupleID: 0, Column: 1},
					},
				}},
			}},
		},
	}
}

func TestCloneEqual(t *testing.T) {
	q := sampleQuery()
	cp := q.Clone().(*Query)
	assert.True(t, q.Equal(cp))

	// Clones share no state.
	scan := cp.Op.(*Scan)
	scan.Nested().(*Filter).SetNested(&Insert{Relation: "other"})
	assert.False(t, q.Equal(cp))
	original := q.Op.(*Scan).Nested().(*Filter).Nested().(*Insert)
	assert.Equal(t, "t", original.Relation)
}

func TestQueryPrinting(t *testing.T) {
	want := "QUERY\n" +
		"  FOR t0 IN e\n" +
		"    IF (t0.0 > number(0))\n" +
		"      INSERT (t0.0, t0.1) INTO t"
	assert.Equal(t, want, sampleQuery().String())
}

func TestConjunctionHelpers(t *testing.T) {
	a := &Constraint{Op: ramble.EQ, LHS: &SignedConstant{Value: 1}, RHS: &SignedConstant{Value: 1}}
	b := &EmptinessCheck{Relation: "r"}
	c := &Negation{Cond: &EmptinessCheck{Relation: "s"}}

	conj := ToCondition([]Condition{a, b, c})
	list := ToConjunctionList(conj)
	require.Len(t, list, 3)
	assert.True(t, list[0].Equal(a))
	assert.True(t, list[1].Equal(b))
	assert.True(t, list[2].Equal(c))

	// True vanishes when flattening.
	withTrue := &Conjunction{LHS: &True{}, RHS: a}
	assert.Len(t, ToConjunctionList(withTrue), 1)

	// Empty list conjoins to True.
	_, isTrue := ToCondition(nil).(*True)
	assert.True(t, isTrue)
}

func TestIndexScanKeyColumns(t *testing.T) {
	scan := &IndexScan{
		Relation: "e",
		ID:       1,
		Low: []Expression{
			&UndefValue{},
			&TupleElement{TupleID: 0, Column: 1},
			&SignedConstant{Value: 7},
		},
		High: []Expression{
			&UndefValue{},
			&TupleElement{TupleID: 0, Column: 1},
			&SignedConstant{Value: 9},
		},
		nested: nested{inner: &Insert{Relation: "t"}},
	}
	// Column 1 is an equality key; column 2 is a range, column 0 free.
	assert.Equal(t, []int{1}, scan.KeyColumns())
}

func TestApplyRewritesExpressions(t *testing.T) {
	q := sampleQuery()

	// Shift every tuple id up by one, recursing first.
	var shift Mapper
	shift = func(n Node) Node {
		n.Apply(shift)
		if te, ok := n.(*TupleElement); ok {
			return &TupleElement{TupleID: te.TupleID + 1, Column: te.Column}
		}
		return n
	}
	q.Apply(shift)

	insert := q.Op.(*Scan).Nested().(*Filter).Nested().(*Insert)
	assert.Equal(t, 1, insert.Values[0].(*TupleElement).TupleID)
}

func TestApplyWrongKindPanics(t *testing.T) {
	filter := &Filter{
		Cond:   &True{},
		nested: nested{inner: &Insert{Relation: "t"}},
	}
	assert.Panics(t, func() {
		filter.Apply(func(Node) Node { return &SignedConstant{Value: 1} })
	})
}

func TestRelationProperties(t *testing.T) {
	rel := &Relation{
		Name:           "@delta_t",
		Arity:          2,
		AuxArity:       2,
		AttributeNames: []string{"x", "y"},
		AttributeTypes: []ramble.TypeAttribute{ramble.Signed, ramble.Signed},
	}
	assert.True(t, rel.IsTemp())
	assert.False(t, rel.IsNullary())
	assert.Equal(t, 4, rel.TotalArity())
}

func TestProgramRegistry(t *testing.T) {
	prog := NewProgram()
	prog.AddRelation(&Relation{Name: "e", Arity: 2})
	prog.AddRelation(&Relation{Name: "a", Arity: 1})

	assert.Equal(t, []string{"a", "e"}, prog.RelationNames())
	assert.NotNil(t, prog.Relation("e"))
	assert.Nil(t, prog.Relation("missing"))
	assert.Panics(t, func() {
		prog.AddRelation(&Relation{Name: "e", Arity: 2})
	})
}

type countingAnalysis struct{ builds int }

func (*countingAnalysis) Name() string { return "counting" }

func TestTranslationUnitCache(t *testing.T) {
	unit := NewTranslationUnit(NewProgram())

	builds := 0
	build := func() Analysis {
		builds++
		return &countingAnalysis{builds: builds}
	}

	first := unit.Analysis("counting", build)
	second := unit.Analysis("counting", build)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)

	unit.Invalidate()
	third := unit.Analysis("counting", build)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 1, unit.Generation())
}

func TestStatementPrinting(t *testing.T) {
	loop := &Loop{
		Body: &Sequence{Stmts: []Statement{
			&Exit{Cond: &EmptinessCheck{Relation: "@new_t"}},
			&Swap{First: "@delta_t", Second: "@new_t"},
			&Clear{Relation: "@new_t"},
		}},
	}
	want := "LOOP\n" +
		"  EXIT empty(@new_t)\n" +
		"  SWAP (@delta_t, @new_t)\n" +
		"  CLEAR @new_t\n" +
		"END LOOP"
	assert.Equal(t, want, loop.String())
}
