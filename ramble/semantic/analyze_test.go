package semantic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast"
	"github.com/ramble-dl/ramble/ramble/parser"
)

func analyzeSource(t *testing.T, src string) (*Analysis, *Report) {
	t.Helper()
	prog, err := parser.Parse("test.dl", src)
	require.NoError(t, err)
	return Analyze(prog)
}

func stratumNames(stratum []*ast.Relation) []string {
	names := make([]string, len(stratum))
	for i, rel := range stratum {
		names[i] = rel.Name.String()
	}
	return names
}

func TestAnalyzeTransitiveClosure(t *testing.T) {
	a, report := analyzeSource(t, `
		.decl e(x:number, y:number)
		.decl t(x:number, y:number)
		e(1, 2).
		t(x, y) :- e(x, y).
		t(x, y) :- e(x, z), t(z, y).
	`)
	require.False(t, report.HasErrors(), report.String())

	require.Len(t, a.Strata, 2)
	assert.Equal(t, []string{"e"}, stratumNames(a.Strata[0]))
	assert.Equal(t, []string{"t"}, stratumNames(a.Strata[1]))
	assert.False(t, a.IsRecursive(ast.NewQualifiedName("e")))
	assert.True(t, a.IsRecursive(ast.NewQualifiedName("t")))
}

func TestAnalyzeMutualRecursionSharesStratum(t *testing.T) {
	a, report := analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		.decl base(x:number)
		base(1).
		p(x) :- base(x).
		p(x) :- q(x).
		q(x) :- p(x).
	`)
	require.False(t, report.HasErrors(), report.String())

	require.Len(t, a.Strata, 2)
	assert.Equal(t, []string{"base"}, stratumNames(a.Strata[0]))
	assert.Equal(t, []string{"p", "q"}, stratumNames(a.Strata[1]))
	assert.True(t, a.IsRecursive(ast.NewQualifiedName("p")))
	assert.True(t, a.IsRecursive(ast.NewQualifiedName("q")))
}

func TestAnalyzeStratifiedNegation(t *testing.T) {
	a, report := analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		.decl r(x:number)
		p(1). p(2). r(2).
		q(x) :- p(x), !r(x).
	`)
	require.False(t, report.HasErrors(), report.String())

	// r must be complete before q's stratum begins.
	rIndex, qIndex := -1, -1
	for i, stratum := range a.Strata {
		for _, name := range stratumNames(stratum) {
			switch name {
			case "r":
				rIndex = i
			case "q":
				qIndex = i
			}
		}
	}
	require.NotEqual(t, -1, rIndex)
	require.NotEqual(t, -1, qIndex)
	assert.Less(t, rIndex, qIndex)
}

func TestAnalyzeUnstratifiable(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		p(x) :- q(x), !p(x).
		q(1).
	`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "unstratifiable")
}

func TestAnalyzeAggregateDependencyIsNegative(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.decl n(x:number)
		p(x) :- n(x).
		n(c) :- c = count : { p(_) }.
	`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "unstratifiable")
}

func TestAnalyzeUndeclaredAndArity(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		p(x) :- q(x).
		p(1, 2) :- p(1).
	`)
	require.True(t, report.HasErrors())
	out := report.String()
	assert.Contains(t, out, "undeclared relation q")
	assert.Contains(t, out, "expects 1 arguments, got 2")
}

func TestAnalyzeGroundedness(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		q(1).
		p(x) :- q(y), y > 0.
	`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "variable x is not grounded")

	// Equality chains ground variables.
	_, report = analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		q(1).
		p(x) :- q(y), x = y + 1.
	`)
	assert.False(t, report.HasErrors(), report.String())

	// Aggregate results ground their bound variable.
	_, report = analyzeSource(t, `
		.decl q(x:number)
		.decl total(n:number)
		q(1).
		total(n) :- n = count : { q(_) }.
	`)
	assert.False(t, report.HasErrors(), report.String())
}

func TestAnalyzeUnderscoreInHead(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		q(1).
		p(_) :- q(_).
	`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "underscore is not allowed in a clause head")
}

func TestAnalyzeDuplicates(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.decl p(x:number, y:number)
		.functor f(x:number):number
		.functor f(x:number):number
		.type T = number
		.type T = symbol
	`)
	require.True(t, report.HasErrors())
	out := report.String()
	assert.Contains(t, out, "relation p already declared")
	assert.Contains(t, out, "functor f already declared")
	assert.Contains(t, out, "type T already declared")
}

func TestAnalyzeAggregateShape(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		.decl n(x:number)
		p(1). q(1).
		n(c) :- c = count : { p(x), q(x) }.
	`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "exactly one atom")
}

func TestAnalyzeUndeclaredFunctorAndBranch(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.decl q(x:number)
		q(1).
		p(y) :- q(x), y = @missing(x).
	`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "undeclared functor @missing")

	_, report = analyzeSource(t, `
		.type Shape = Circle {r:number}
		.decl s(v:Shape)
		s($Square(1)).
		s($Circle(1, 2)).
	`)
	require.True(t, report.HasErrors())
	out := report.String()
	assert.Contains(t, out, "unknown branch constructor $Square")
	assert.Contains(t, out, "branch $Circle expects 1 fields, got 2")
}

func TestTypeEnvResolution(t *testing.T) {
	a, report := analyzeSource(t, `
		.type Id = number
		.type Name = symbol
		.type Pair = [a:Id, b:Name]
		.type Shape = Circle {r:number} | Point {}
		.decl rel(i:Id, n:Name, p:Pair, s:Shape, u:unsigned, f:float)
	`)
	require.False(t, report.HasErrors(), report.String())

	rel := a.Relation(ast.NewQualifiedName("rel"))
	require.NotNil(t, rel)
	types := a.AttributeTypes(rel)
	assert.Equal(t, []ramble.TypeAttribute{
		ramble.Signed, ramble.Symbol, ramble.Record, ramble.ADT,
		ramble.Unsigned, ramble.Float,
	}, types)

	fields, ok := a.Types.RecordFields(ast.NewQualifiedName("Pair"))
	require.True(t, ok)
	assert.Len(t, fields, 2)

	_, _, tag, ok := a.Types.Branch(ast.NewQualifiedName("Point"))
	require.True(t, ok)
	assert.Equal(t, 1, tag)
}

func TestAnalyzeUnknownAttributeType(t *testing.T) {
	_, report := analyzeSource(t, `.decl p(x:Missing)`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "unknown type Missing")
}

func TestAnalyzeEqrelArity(t *testing.T) {
	_, report := analyzeSource(t, `.decl eq(a:number, b:number, c:number) eqrel`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "must be binary")
}

func TestAnalyzeLimitSize(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		.limitsize p(n=ten)
	`)
	require.True(t, report.HasErrors())
	assert.Contains(t, report.String(), "must be a non-negative integer")
}

func TestReportKeepsCollecting(t *testing.T) {
	_, report := analyzeSource(t, `
		.decl p(x:number)
		p(x) :- a(x).
		p(x) :- b(x).
		p(x) :- c(x).
	`)
	assert.GreaterOrEqual(t, report.ErrorCount(), 3)
	assert.Equal(t, 3, strings.Count(report.String(), "undeclared relation"))
}
