package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ram"
)

func testProgram(stmts ...ram.Statement) *ram.Program {
	prog := ram.NewProgram()
	for _, name := range []string{"e", "t", "@delta_t", "@new_t", "res"} {
		prog.AddRelation(&ram.Relation{
			Name:           name,
			Arity:          2,
			AttributeNames: []string{"x", "y"},
			AttributeTypes: []ramble.TypeAttribute{ramble.Signed, ramble.Signed},
		})
	}
	prog.AddRelation(&ram.Relation{
		Name:           "n",
		Arity:          1,
		AttributeNames: []string{"x"},
		AttributeTypes: []ramble.TypeAttribute{ramble.Signed},
	})
	prog.Main = &ram.Sequence{Stmts: stmts}
	return prog
}

func link(ops ...ram.Operation) *ram.Query {
	q := &ram.Query{}
	relink(q, ops)
	return q
}

func elem(id, col int) *ram.TupleElement {
	return &ram.TupleElement{TupleID: id, Column: col}
}

func num(v int64) *ram.SignedConstant {
	return &ram.SignedConstant{Value: v}
}

func insertRes(values ...ram.Expression) *ram.Insert {
	return &ram.Insert{Relation: "res", Values: values}
}

func kinds(q *ram.Query) []string {
	var out []string
	for _, op := range chainOf(q) {
		switch op.(type) {
		case *ram.Scan:
			out = append(out, "scan")
		case *ram.IndexScan:
			out = append(out, "indexscan")
		case *ram.Filter:
			out = append(out, "filter")
		case *ram.Aggregate:
			out = append(out, "aggregate")
		case *ram.Insert:
			out = append(out, "insert")
		default:
			out = append(out, "other")
		}
	}
	return out
}

func TestExpandFilterSplitsConjunction(t *testing.T) {
	cond := &ram.Conjunction{
		LHS: &ram.Constraint{Op: ramble.GT, LHS: elem(0, 0), RHS: num(0)},
		RHS: &ram.Constraint{Op: ramble.LT, LHS: elem(0, 1), RHS: num(9)},
	}
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		&ram.Filter{Cond: cond},
		insertRes(elem(0, 0), elem(0, 1)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	pass := &ExpandFilter{}
	assert.True(t, pass.Transform(unit))
	assert.Equal(t, []string{"scan", "filter", "filter", "insert"}, kinds(q))

	// A second run is a no-op.
	assert.False(t, pass.Transform(unit))
}

func TestExpandFilterDropsTrue(t *testing.T) {
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		&ram.Filter{Cond: &ram.True{}},
		insertRes(elem(0, 0), elem(0, 1)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	assert.True(t, (&ExpandFilter{}).Transform(unit))
	assert.Equal(t, []string{"scan", "insert"}, kinds(q))
}

func TestHoistConditionsLevels(t *testing.T) {
	constant := &ram.Filter{Cond: &ram.Constraint{Op: ramble.EQ, LHS: num(1), RHS: num(1)}}
	outer := &ram.Filter{Cond: &ram.Constraint{Op: ramble.GT, LHS: elem(0, 0), RHS: num(0)}}
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		&ram.Scan{Relation: "t", ID: 1},
		constant,
		outer,
		insertRes(elem(0, 0), elem(1, 1)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	pass := &HoistConditions{}
	assert.True(t, pass.Transform(unit))
	chain := chainOf(q)
	require.Equal(t, []string{"filter", "scan", "filter", "scan", "insert"}, kinds(q))
	assert.Same(t, chain[0], ram.Operation(constant))
	assert.Same(t, chain[2], ram.Operation(outer))

	assert.False(t, pass.Transform(unit))
}

func TestHoistConditionsKeepsOrderAtSameLevel(t *testing.T) {
	first := &ram.Filter{Cond: &ram.Constraint{Op: ramble.GT, LHS: elem(0, 0), RHS: num(0)}}
	second := &ram.Filter{Cond: &ram.Constraint{Op: ramble.LT, LHS: elem(0, 1), RHS: num(9)}}
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		&ram.Scan{Relation: "t", ID: 1},
		first,
		second,
		insertRes(elem(0, 0), elem(1, 1)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	assert.True(t, (&HoistConditions{}).Transform(unit))
	chain := chainOf(q)
	assert.Same(t, chain[1], ram.Operation(first))
	assert.Same(t, chain[2], ram.Operation(second))
}

func TestReorderConditionsByCost(t *testing.T) {
	exists := &ram.ExistenceCheck{Relation: "t", Values: []ram.Expression{elem(0, 0), &ram.UndefValue{}}}
	cheap := &ram.Constraint{Op: ramble.GT, LHS: elem(0, 0), RHS: num(0)}
	f := &ram.Filter{Cond: &ram.Conjunction{LHS: exists, RHS: cheap}}
	q := link(&ram.Scan{Relation: "e", ID: 0}, f, insertRes(elem(0, 0), elem(0, 1)))
	unit := ram.NewTranslationUnit(testProgram(q))

	pass := &ReorderConditions{}
	assert.True(t, pass.Transform(unit))
	conds := ram.ToConjunctionList(f.Cond)
	require.Len(t, conds, 2)
	assert.Same(t, ram.Condition(cheap), conds[0])
	assert.Same(t, ram.Condition(exists), conds[1])

	assert.False(t, pass.Transform(unit))
}

func TestHoistAggregateIndependent(t *testing.T) {
	agg := &ram.Aggregate{Fn: ramble.AggCount, Relation: "n", ID: 1, Expr: num(0), Cond: &ram.True{}}
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		agg,
		insertRes(elem(0, 0), elem(1, 0)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	pass := &HoistAggregate{}
	assert.True(t, pass.Transform(unit))
	assert.Equal(t, []string{"aggregate", "scan", "insert"}, kinds(q))

	assert.False(t, pass.Transform(unit))
}

func TestHoistAggregateDependent(t *testing.T) {
	agg := &ram.Aggregate{
		Fn:       ramble.AggSum,
		Relation: "n",
		ID:       2,
		Expr:     elem(2, 0),
		Cond:     &ram.Constraint{Op: ramble.EQ, LHS: elem(2, 0), RHS: elem(0, 1)},
	}
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		&ram.Scan{Relation: "t", ID: 1},
		agg,
		insertRes(elem(1, 0), elem(2, 0)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	pass := &HoistAggregate{}
	assert.True(t, pass.Transform(unit))
	chain := chainOf(q)
	require.Equal(t, []string{"scan", "aggregate", "scan", "insert"}, kinds(q))
	assert.Same(t, chain[1], ram.Operation(agg))

	assert.False(t, pass.Transform(unit))
}

func TestHoistAggregateStaysBelowEvaluableFilters(t *testing.T) {
	guard := &ram.Filter{Cond: &ram.Constraint{Op: ramble.GT, LHS: elem(0, 0), RHS: num(0)}}
	agg := &ram.Aggregate{
		Fn:       ramble.AggMax,
		Relation: "n",
		ID:       1,
		Expr:     elem(1, 0),
		Cond:     &ram.Constraint{Op: ramble.LT, LHS: elem(1, 0), RHS: elem(0, 1)},
	}
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		guard,
		agg,
		insertRes(elem(0, 0), elem(1, 0)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	// The guard runs before the fold; nothing to hoist past it.
	assert.False(t, (&HoistAggregate{}).Transform(unit))
}

func TestMakeIndexAbsorbsEqualities(t *testing.T) {
	q := link(
		&ram.Scan{Relation: "@delta_t", ID: 0},
		&ram.Scan{Relation: "e", ID: 1},
		&ram.Filter{Cond: &ram.Constraint{Op: ramble.EQ, LHS: elem(1, 1), RHS: elem(0, 0)}},
		insertRes(elem(1, 0), elem(0, 1)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	pass := &MakeIndex{}
	assert.True(t, pass.Transform(unit))
	chain := chainOf(q)
	require.Equal(t, []string{"scan", "indexscan", "insert"}, kinds(q))
	index := chain[1].(*ram.IndexScan)
	assert.Equal(t, "e", index.Relation)
	assert.Equal(t, []int{1}, index.KeyColumns())
	assert.True(t, index.Low[1].Equal(elem(0, 0)))

	assert.False(t, pass.Transform(unit))
}

func TestMakeIndexIgnoresLaterBindings(t *testing.T) {
	// t0.0 = t1.1 reads a tuple bound below the scan; it stays a filter.
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		&ram.Scan{Relation: "t", ID: 1},
		&ram.Filter{Cond: &ram.Constraint{Op: ramble.EQ, LHS: elem(0, 0), RHS: elem(1, 1)}},
		insertRes(elem(0, 0), elem(1, 1)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))

	// The constraint keys the inner scan instead.
	assert.True(t, (&MakeIndex{}).Transform(unit))
	chain := chainOf(q)
	require.Equal(t, []string{"scan", "indexscan", "insert"}, kinds(q))
	index := chain[1].(*ram.IndexScan)
	assert.Equal(t, "t", index.Relation)
	assert.Equal(t, []int{1}, index.KeyColumns())
}

func TestPipelineTransitiveClosure(t *testing.T) {
	// FOR t0 IN @delta_t, FOR t1 IN e with a conjunctive filter mixing an
	// index key, a membership test, and a constant guard.
	cond := &ram.Conjunction{
		LHS: &ram.Conjunction{
			LHS: &ram.Constraint{Op: ramble.EQ, LHS: elem(1, 1), RHS: elem(0, 0)},
			RHS: &ram.Negation{Cond: &ram.ExistenceCheck{
				Relation: "t",
				Values:   []ram.Expression{elem(1, 0), elem(0, 1)},
			}},
		},
		RHS: &ram.Constraint{Op: ramble.NE, LHS: num(1), RHS: num(0)},
	}
	q := link(
		&ram.Scan{Relation: "@delta_t", ID: 0},
		&ram.Scan{Relation: "e", ID: 1},
		&ram.Filter{Cond: cond},
		&ram.Insert{Relation: "@new_t", Values: []ram.Expression{elem(1, 0), elem(0, 1)}},
	)
	prog := testProgram(q, &ram.Swap{First: "@delta_t", Second: "@new_t"})
	unit := ram.NewTranslationUnit(prog)

	pipeline := DefaultPipeline()
	pipeline.Report = &DebugReport{}
	assert.True(t, pipeline.Apply(unit))

	// The constant guard floats to the top, the key constraint becomes an
	// index, and the membership test stays under the inner loop.
	require.Equal(t, []string{"filter", "scan", "indexscan", "filter", "insert"}, kinds(q))
	chain := chainOf(q)
	index := chain[2].(*ram.IndexScan)
	assert.Equal(t, []int{1}, index.KeyColumns())
	_, negated := chain[3].(*ram.Filter).Cond.(*ram.Negation)
	assert.True(t, negated)

	assert.NotEmpty(t, pipeline.Report.Sections())

	// The optimized program is a fixpoint.
	assert.False(t, pipeline.Apply(unit))
}

func TestPipelineInvalidatesAnalyses(t *testing.T) {
	q := link(
		&ram.Scan{Relation: "e", ID: 0},
		&ram.Filter{Cond: &ram.Conjunction{
			LHS: &ram.Constraint{Op: ramble.GT, LHS: elem(0, 0), RHS: num(0)},
			RHS: &ram.Constraint{Op: ramble.LT, LHS: elem(0, 1), RHS: num(9)},
		}},
		insertRes(elem(0, 0), elem(0, 1)),
	)
	unit := ram.NewTranslationUnit(testProgram(q))
	before := unit.Generation()

	assert.True(t, NewPipeline(&ExpandFilter{}).Apply(unit))
	assert.Greater(t, unit.Generation(), before)
}
