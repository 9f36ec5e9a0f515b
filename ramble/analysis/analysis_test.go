package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ram"
)

func sigOf(width int, equal ...int) SearchSignature {
	sig := NewSearchSignature(width)
	for _, col := range equal {
		sig[col] = Equal
	}
	return sig
}

// requireCovered asserts that every search is assigned an order whose prefix
// is exactly the search's constrained columns.
func requireCovered(t *testing.T, sel *Selection) {
	t.Helper()
	for _, sig := range sel.Searches {
		id, ok := sel.IndexFor(sig)
		require.True(t, ok, "search %s unassigned", sig)
		order := sel.Orders[id]
		prefix := map[int]bool{}
		for _, col := range order[:sig.Cardinality()] {
			prefix[col] = true
		}
		for _, col := range append(sig.EqualColumns(), sig.InequalColumns()...) {
			assert.True(t, prefix[col], "search %s not a prefix of order %v", sig, order)
		}
	}
	for _, order := range sel.Orders {
		require.Len(t, order, sel.Width)
		seen := map[int]bool{}
		for _, col := range order {
			assert.False(t, seen[col], "order %v repeats a column", order)
			seen[col] = true
		}
	}
}

func TestLevel(t *testing.T) {
	cond := &ram.Constraint{
		Op:  ramble.EQ,
		LHS: &ram.TupleElement{TupleID: 0, Column: 1},
		RHS: &ram.IntrinsicOperator{
			Op:   ramble.Add,
			Args: []ram.Expression{&ram.TupleElement{TupleID: 2, Column: 0}, &ram.SignedConstant{Value: 1}},
		},
	}
	assert.Equal(t, 2, Level(cond))
	assert.Equal(t, -1, Level(&ram.SignedConstant{Value: 5}))
	assert.Equal(t, -1, Level(&ram.EmptinessCheck{Relation: "r"}))
}

func TestComplexity(t *testing.T) {
	prog := ram.NewProgram()
	prog.AddRelation(&ram.Relation{Name: "r", Arity: 2})
	prog.AddRelation(&ram.Relation{Name: "b", Arity: 0})

	constant := &ram.Constraint{Op: ramble.EQ, LHS: &ram.SignedConstant{Value: 1}, RHS: &ram.SignedConstant{Value: 2}}
	exists := &ram.ExistenceCheck{Relation: "r", Values: []ram.Expression{&ram.UndefValue{}, &ram.UndefValue{}}}
	functor := &ram.Constraint{
		Op:  ramble.EQ,
		LHS: &ram.UserDefinedOperator{Name: "f", Args: []ram.Expression{&ram.SignedConstant{Value: 1}}},
		RHS: &ram.SignedConstant{Value: 0},
	}

	assert.Equal(t, 0, Complexity(prog, constant))
	assert.Equal(t, 1, Complexity(prog, &ram.EmptinessCheck{Relation: "r"}))
	assert.Equal(t, 0, Complexity(prog, &ram.EmptinessCheck{Relation: "b"}))
	assert.Equal(t, 2, Complexity(prog, exists))
	assert.Equal(t, 10, Complexity(prog, functor))

	conj := &ram.Conjunction{LHS: exists, RHS: &ram.EmptinessCheck{Relation: "r"}}
	assert.Equal(t, 3, Complexity(prog, conj))
}

func TestSignaturePrecedes(t *testing.T) {
	a := sigOf(3, 0)
	b := sigOf(3, 0, 1)
	c := sigOf(3, 2)

	assert.True(t, a.Precedes(b))
	assert.False(t, b.Precedes(a))
	assert.False(t, a.Precedes(a))
	assert.False(t, c.Precedes(b))

	// A range search never precedes: its range column must stay last.
	ranged := sigOf(3, 0)
	ranged[1] = Inequal
	assert.False(t, ranged.Precedes(b))
}

func TestSelectionSingleChain(t *testing.T) {
	// One bound-column search plus the full signature share one index whose
	// order puts the bound column first.
	sel := solveSelection(2, []SearchSignature{sigOf(2, 1), sigOf(2, 0, 1)}, "")
	require.Len(t, sel.Orders, 1)
	assert.Equal(t, []int{1, 0}, sel.Orders[0])
	requireCovered(t, sel)
}

func TestSelectionFullOnly(t *testing.T) {
	sel := solveSelection(2, []SearchSignature{sigOf(2, 0, 1)}, "")
	require.Len(t, sel.Orders, 1)
	assert.Equal(t, []int{0, 1}, sel.Orders[0])
}

func TestSelectionChainCover(t *testing.T) {
	// Masks 00001, 00011, 00101, 00111, 01111, 10111, 11111 over five
	// columns admit a two-chain cover.
	searches := []SearchSignature{
		sigOf(5, 0),
		sigOf(5, 0, 1),
		sigOf(5, 0, 2),
		sigOf(5, 0, 1, 2),
		sigOf(5, 0, 1, 2, 3),
		sigOf(5, 0, 1, 2, 4),
		sigOf(5, 0, 1, 2, 3, 4),
	}
	sel := solveSelection(5, searches, "")
	assert.Len(t, sel.Orders, 2)
	requireCovered(t, sel)
}

func TestSelectionAntichainNeedsOneIndexEach(t *testing.T) {
	// Pairwise incomparable searches cannot share indexes.
	searches := []SearchSignature{
		sigOf(3, 0),
		sigOf(3, 1),
		sigOf(3, 2),
	}
	sel := solveSelection(3, searches, "")
	assert.Len(t, sel.Orders, 3)
	requireCovered(t, sel)
}

func TestSelectionWideRelation(t *testing.T) {
	// Relations beyond machine-word width must work; nothing may assume a
	// 64-bit signature representation.
	searches := []SearchSignature{
		sigOf(100, 70),
		sigOf(100, 70, 99),
		sigOf(100, 70, 85, 99),
	}
	sel := solveSelection(100, searches, "")
	require.Len(t, sel.Orders, 1)
	assert.Equal(t, []int{70, 99, 85}, sel.Orders[0][:3])
	requireCovered(t, sel)
}

func TestSelectionDeterministic(t *testing.T) {
	searches := []SearchSignature{
		sigOf(4, 0), sigOf(4, 1), sigOf(4, 0, 1), sigOf(4, 1, 2), sigOf(4, 0, 1, 2, 3),
	}
	first := solveSelection(4, searches, "")
	second := solveSelection(4, searches, "")
	assert.Equal(t, first.Orders, second.Orders)
	assert.Equal(t, first.assignment, second.assignment)
}

func TestSelectionEmptySearches(t *testing.T) {
	sel := solveSelection(3, nil, "")
	require.Len(t, sel.Orders, 1)
	assert.Equal(t, []int{0, 1, 2}, sel.Orders[0])
}

func transitiveClosureProgram() *ram.Program {
	prog := ram.NewProgram()
	for _, name := range []string{"e", "t", "@delta_t", "@new_t"} {
		prog.AddRelation(&ram.Relation{
			Name:           name,
			Arity:          2,
			AttributeNames: []string{"x", "y"},
			AttributeTypes: []ramble.TypeAttribute{ramble.Signed, ramble.Signed},
		})
	}
	// t(x, y) :- e(x, z), t(z, y) with the delta atom scanned first:
	// FOR t0 IN @delta_t:
	//   FOR t1 IN e ON INDEX t1.1 = t0.0:
	//     IF (t1.0, t0.1) not in t: INSERT (t1.0, t0.1) INTO @new_t
	body := &ram.Scan{
		Relation: "@delta_t",
		ID:       0,
	}
	inner := &ram.IndexScan{
		Relation: "e",
		ID:       1,
		Low:      []ram.Expression{&ram.UndefValue{}, &ram.TupleElement{TupleID: 0, Column: 0}},
		High:     []ram.Expression{&ram.UndefValue{}, &ram.TupleElement{TupleID: 0, Column: 0}},
	}
	filter := &ram.Filter{
		Cond: &ram.Negation{Cond: &ram.ExistenceCheck{
			Relation: "t",
			Values:   []ram.Expression{&ram.TupleElement{TupleID: 1, Column: 0}, &ram.TupleElement{TupleID: 0, Column: 1}},
		}},
	}
	filter.SetNested(&ram.Insert{
		Relation: "@new_t",
		Values:   []ram.Expression{&ram.TupleElement{TupleID: 1, Column: 0}, &ram.TupleElement{TupleID: 0, Column: 1}},
	})
	inner.SetNested(filter)
	body.SetNested(inner)

	prog.Main = &ram.Sequence{Stmts: []ram.Statement{
		&ram.Query{Op: body},
		&ram.Swap{First: "@delta_t", Second: "@new_t"},
	}}
	return prog
}

func TestIndexAnalysisTransitiveClosure(t *testing.T) {
	unit := ram.NewTranslationUnit(transitiveClosureProgram())
	idx := IndexAnalysisFor(unit)

	// e is searched on column 1; the single shared index leads with it.
	e := idx.Selection("e")
	require.NotNil(t, e)
	require.Len(t, e.Orders, 1)
	assert.Equal(t, []int{1, 0}, e.Orders[0])

	// t only sees full existence checks.
	tc := idx.Selection("t")
	require.NotNil(t, tc)
	require.Len(t, tc.Orders, 1)
	assert.Equal(t, []int{0, 1}, tc.Orders[0])

	// The swap forces delta and new to share index sets.
	delta := idx.Selection("@delta_t")
	next := idx.Selection("@new_t")
	require.NotNil(t, delta)
	require.NotNil(t, next)
	assert.Equal(t, delta.Orders, next.Orders)
}

func TestIndexAnalysisCaching(t *testing.T) {
	unit := ram.NewTranslationUnit(transitiveClosureProgram())
	first := IndexAnalysisFor(unit)
	assert.Same(t, first, IndexAnalysisFor(unit))
	unit.Invalidate()
	assert.NotSame(t, first, IndexAnalysisFor(unit))
}

func TestIndexAnalysisProvenance(t *testing.T) {
	prog := ram.NewProgram()
	prog.AddRelation(&ram.Relation{
		Name:           "p",
		Arity:          2,
		AuxArity:       2,
		AttributeNames: []string{"x", "y"},
		AttributeTypes: []ramble.TypeAttribute{ramble.Signed, ramble.Signed},
	})
	check := &ram.ProvenanceExistenceCheck{
		Relation: "p",
		Values: []ram.Expression{
			&ram.TupleElement{TupleID: 0, Column: 0},
			&ram.UndefValue{},
		},
		LevelBound: &ram.SignedConstant{Value: 5},
	}
	filter := &ram.Filter{Cond: check}
	filter.SetNested(&ram.Insert{Relation: "p", Values: []ram.Expression{
		&ram.SignedConstant{Value: 1}, &ram.SignedConstant{Value: 2},
		&ram.SignedConstant{Value: 0}, &ram.SignedConstant{Value: 0},
	}})
	scan := &ram.Scan{Relation: "p", ID: 0}
	scan.SetNested(filter)
	prog.Main = &ram.Query{Op: scan}

	idx := IndexAnalysisFor(ram.NewTranslationUnit(prog))
	sel := idx.Selection("p")
	require.NotNil(t, sel)
	assert.Equal(t, 4, sel.Width)

	// Index 0 is the master: payload columns first.
	full := FullSignature(2, 2)
	id, ok := sel.IndexFor(full)
	require.True(t, ok)
	assert.Equal(t, 0, id)
	assert.Equal(t, []int{0, 1}, sel.Orders[0][:2])
	requireCovered(t, sel)
}

func TestIndexAnalysisSkipsNullary(t *testing.T) {
	prog := ram.NewProgram()
	prog.AddRelation(&ram.Relation{Name: "flag", Arity: 0})
	idx := IndexAnalysisFor(ram.NewTranslationUnit(prog))
	assert.Nil(t, idx.Selection("flag"))
}
