package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramble-dl/ramble/ramble/ast2ram"
	"github.com/ramble-dl/ramble/ramble/parser"
	"github.com/ramble-dl/ramble/ramble/ram"
	"github.com/ramble-dl/ramble/ramble/semantic"
	"github.com/ramble-dl/ramble/ramble/transform"
)

func compile(t *testing.T, source string) *ram.TranslationUnit {
	t.Helper()
	prog, err := parser.Parse("test.dl", source)
	require.NoError(t, err)
	sem, report := semantic.Analyze(prog)
	require.False(t, report.HasErrors(), "unexpected diagnostics: %s", report)
	unit := ast2ram.Translate(sem, ast2ram.Config{})
	transform.DefaultPipeline().Apply(unit)
	return unit
}

const transitiveClosure = `
.decl e(x:number, y:number)
.decl t(x:number, y:number)
t(x, y) :- e(x, y).
t(x, y) :- e(x, z), t(z, y).
`

func TestTypeNameEncodesOrdersAndSearches(t *testing.T) {
	names := Assign(compile(t, transitiveClosure))

	// e is keyed on its second column by the recursive join; t is probed
	// fully bound by the duplicate filter.
	assert.Equal(t, "t_btree_ii__1_0__01", names["e"])
	assert.Equal(t, "t_btree_ii__0_1__11", names["t"])
}

func TestTypeNamesStableAcrossCompilations(t *testing.T) {
	first := Assign(compile(t, transitiveClosure))
	second := Assign(compile(t, transitiveClosure))
	assert.Equal(t, first, second)
}

func TestIdenticalShapesShareOneType(t *testing.T) {
	unit := compile(t, `
.decl a(x:number, y:number)
.decl b(x:number, y:number)
.decl out(x:number, y:number)
out(x, y) :- a(x, y).
out(x, y) :- b(x, y).
`)
	names := Assign(unit)
	assert.Equal(t, names["a"], names["b"])

	types := Types(unit)
	seen := map[string]bool{}
	for _, name := range types {
		assert.False(t, seen[name], "duplicate type %s", name)
		seen[name] = true
	}
}

func TestSpecialRepresentations(t *testing.T) {
	names := Assign(compile(t, `
.decl flag()
.decl same(x:number, y:number) eqrel
.decl p(x:number)
flag() :- p(1).
same(x, x) :- p(x).
`))
	assert.Equal(t, "t_nullary", names["flag"])
	assert.Equal(t, "t_eqrel_ii", names["same"])
}

func TestAttributeStringUsesMachineKinds(t *testing.T) {
	names := Assign(compile(t, `
.decl m(a:number, b:unsigned, c:float, d:symbol)
m(1, 2, 3.0, "x").
`))
	assert.Contains(t, names["m"], "_iufi")
}
