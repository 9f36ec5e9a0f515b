package interp

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast2ram"
	"github.com/ramble-dl/ramble/ramble/parser"
	"github.com/ramble-dl/ramble/ramble/ram"
	"github.com/ramble-dl/ramble/ramble/relation"
	"github.com/ramble-dl/ramble/ramble/semantic"
	"github.com/ramble-dl/ramble/ramble/storage"
	"github.com/ramble-dl/ramble/ramble/transform"
)

func compile(t *testing.T, source string, cfg ast2ram.Config) *ram.TranslationUnit {
	t.Helper()
	prog, err := parser.Parse("test.dl", source)
	require.NoError(t, err)
	sem, report := semantic.Analyze(prog)
	require.False(t, report.HasErrors(), "unexpected diagnostics: %s", report)
	unit := ast2ram.Translate(sem, cfg)
	transform.DefaultPipeline().Apply(unit)
	return unit
}

func run(t *testing.T, source string, opts Options) *Interpreter {
	t.Helper()
	in := New(compile(t, source, ast2ram.Config{}), opts)
	require.NoError(t, in.Run(context.Background()))
	return in
}

func tuples(rel relation.Relation) []relation.Tuple {
	var out []relation.Tuple
	it := rel.Scan()
	for it.Next() {
		out = append(out, it.Tuple())
	}
	return out
}

func TestSymbolTableRoundTrip(t *testing.T) {
	tab := NewSymbolTable()
	a := tab.Encode("alpha")
	b := tab.Encode("beta")
	assert.Equal(t, a, tab.Encode("alpha"), "encoding is idempotent")
	assert.Equal(t, ramble.RamDomain(0), a, "ids are dense from zero")
	assert.Equal(t, ramble.RamDomain(1), b)

	s, ok := tab.Decode(a)
	require.True(t, ok)
	assert.Equal(t, "alpha", s)
	_, ok = tab.Decode(99)
	assert.False(t, ok)
	assert.Equal(t, 2, tab.Size())
}

func TestRecordTableInterning(t *testing.T) {
	tab := NewRecordTable()
	assert.Equal(t, ramble.RamDomain(1), tab.Pack(nil), "empty tuple packs to 1")
	vals, ok := tab.Unpack(1, 0)
	require.True(t, ok)
	assert.Empty(t, vals)

	ref := tab.Pack([]ramble.RamDomain{4, 5})
	assert.Equal(t, ref, tab.Pack([]ramble.RamDomain{4, 5}), "equal tuples share a reference")
	assert.NotEqual(t, ref, tab.Pack([]ramble.RamDomain{5, 4}))

	got, ok := tab.Unpack(ref, 2)
	require.True(t, ok)
	assert.Equal(t, []ramble.RamDomain{4, 5}, got)

	_, ok = tab.Unpack(0, 2)
	assert.False(t, ok, "the nil reference never unpacks")
	_, ok = tab.Unpack(ref, 3)
	assert.False(t, ok, "arity mismatch fails")
}

func TestTransitiveClosure(t *testing.T) {
	store := storage.NewMemStore()
	store.Add("e", []string{"1", "2"}, []string{"2", "3"}, []string{"3", "4"})
	in := run(t, `
.decl e(x:number, y:number)
.decl t(x:number, y:number)
.input e
.output t
t(x, y) :- e(x, y).
t(x, y) :- e(x, z), t(z, y).
`, Options{Store: store})

	want := []relation.Tuple{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}}
	assert.Equal(t, want, tuples(in.Relation("t")))
	assert.Equal(t, [][]string{
		{"1", "2"}, {"1", "3"}, {"1", "4"}, {"2", "3"}, {"2", "4"}, {"3", "4"},
	}, store.Rows("t"))
}

func TestStratifiedNegation(t *testing.T) {
	in := run(t, `
.decl p(x:number)
.decl r(x:number)
.decl q(x:number)
p(1). p(2). r(2).
q(x) :- p(x), !r(x).
`, Options{})
	assert.Equal(t, []relation.Tuple{{1}}, tuples(in.Relation("q")))
}

func TestAggregates(t *testing.T) {
	in := run(t, `
.decl p(x:number)
.decl c(n:number)
.decl s(n:number)
.decl m(n:number)
p(3). p(5). p(7).
c(n) :- n = count : { p(_) }.
s(n) :- n = sum x : { p(x) }.
m(n) :- n = max x : { p(x) }.
`, Options{})
	assert.Equal(t, []relation.Tuple{{3}}, tuples(in.Relation("c")))
	assert.Equal(t, []relation.Tuple{{15}}, tuples(in.Relation("s")))
	assert.Equal(t, []relation.Tuple{{7}}, tuples(in.Relation("m")))
}

func TestAggregatesOverFloats(t *testing.T) {
	in := run(t, `
.decl p(x:float)
.decl s(n:float)
.decl lo(n:float)
.decl hi(n:float)
.decl avg(n:float)
p(-1.0). p(1.5). p(2.5). p(5.0).
s(n) :- n = sum x : { p(x) }.
lo(n) :- n = min x : { p(x) }.
hi(n) :- n = max x : { p(x) }.
avg(n) :- n = mean x : { p(x) }.
`, Options{})
	assert.Equal(t, []relation.Tuple{{ramble.FromFloat(8.0)}}, tuples(in.Relation("s")))
	assert.Equal(t, []relation.Tuple{{ramble.FromFloat(-1.0)}}, tuples(in.Relation("lo")))
	assert.Equal(t, []relation.Tuple{{ramble.FromFloat(5.0)}}, tuples(in.Relation("hi")))
	assert.Equal(t, []relation.Tuple{{ramble.FromFloat(2.0)}}, tuples(in.Relation("avg")))
}

func TestAggregatesOverUnsigned(t *testing.T) {
	// The top-bit-set value reads negative as a signed word; the fold must
	// compare through the unsigned view.
	in := run(t, `
.decl p(x:unsigned)
.decl lo(n:unsigned)
.decl hi(n:unsigned)
p(1u). p(18446744073709551615u).
lo(n) :- n = min x : { p(x) }.
hi(n) :- n = max x : { p(x) }.
`, Options{})
	assert.Equal(t, []relation.Tuple{{1}}, tuples(in.Relation("lo")))
	assert.Equal(t, []relation.Tuple{{ramble.FromUnsigned(18446744073709551615)}}, tuples(in.Relation("hi")))
}

func TestAggregateOverEmptyRelation(t *testing.T) {
	in := run(t, `
.decl p(x:number)
.decl c(n:number)
.decl m(n:number)
c(n) :- n = count : { p(_) }.
m(n) :- n = max x : { p(x) }.
`, Options{})
	assert.Equal(t, []relation.Tuple{{0}}, tuples(in.Relation("c")), "count over nothing is 0")
	assert.Empty(t, tuples(in.Relation("m")), "max over nothing binds nothing")
}

func TestCorrelatedAggregate(t *testing.T) {
	in := run(t, `
.decl edge(x:number, y:number)
.decl deg(x:number, n:number)
edge(1, 2). edge(1, 3). edge(2, 3).
deg(x, n) :- edge(x, _), n = count : { edge(x, _) }.
`, Options{})
	assert.Equal(t, []relation.Tuple{{1, 2}, {2, 1}}, tuples(in.Relation("deg")))
}

func TestArithmeticAndConstraints(t *testing.T) {
	in := run(t, `
.decl n(x:number)
.decl big(x:number)
.decl twice(x:number, y:number)
n(2). n(5). n(9).
big(x) :- n(x), x > 4.
twice(x, y) :- n(x), y = x * 2.
`, Options{})
	assert.Equal(t, []relation.Tuple{{5}, {9}}, tuples(in.Relation("big")))
	assert.Equal(t, []relation.Tuple{{2, 4}, {5, 10}, {9, 18}}, tuples(in.Relation("twice")))
}

func TestSymbolsAndStringOps(t *testing.T) {
	store := storage.NewMemStore()
	store.Add("name", []string{"ada"}, []string{"grace"})
	in := run(t, `
.decl name(s:symbol)
.decl greeting(s:symbol)
.input name
.output greeting
greeting(g) :- name(s), g = cat("hi ", s).
`, Options{Store: store})
	assert.Equal(t, [][]string{{"hi ada"}, {"hi grace"}}, store.Rows("greeting"))
	assert.Equal(t, 2, in.Relation("greeting").Size())
}

func TestRecordsRoundTrip(t *testing.T) {
	in := run(t, `
.type pair = [a:number, b:number]
.decl e(x:number, y:number)
.decl boxed(p:pair)
.decl back(x:number, y:number)
e(1, 2). e(3, 4).
boxed([x, y]) :- e(x, y).
back(x, y) :- boxed([x, y]).
`, Options{})
	assert.Equal(t, []relation.Tuple{{1, 2}, {3, 4}}, tuples(in.Relation("back")))
}

func TestNullaryRelation(t *testing.T) {
	in := run(t, `
.decl p(x:number)
.decl reachable()
.decl verdict(s:symbol)
p(7).
reachable() :- p(_).
verdict("yes") :- reachable().
`, Options{})
	assert.Equal(t, 1, in.Relation("reachable").Size())
	assert.Equal(t, 1, in.Relation("verdict").Size())
}

func TestRangeGenerator(t *testing.T) {
	in := run(t, `
.decl bound(n:number)
.decl idx(i:number)
bound(4).
idx(i) :- bound(n), i = range(0, n).
`, Options{})
	assert.Equal(t, []relation.Tuple{{0}, {1}, {2}, {3}}, tuples(in.Relation("idx")))
}

func TestLimitSizeStopsFixpoint(t *testing.T) {
	in := run(t, `
.decl succ(x:number, y:number)
.decl n(x:number)
.limitsize n(n=5)
succ(0, 1). succ(1, 2). succ(2, 3). succ(3, 4).
succ(4, 5). succ(5, 6). succ(6, 7). succ(7, 8).
n(0).
n(y) :- n(x), succ(x, y).
`, Options{})
	assert.LessOrEqual(t, in.Relation("n").Size(), 6, "fixpoint stops once the limit is reached")
	assert.GreaterOrEqual(t, in.Relation("n").Size(), 5)
}

func TestErrorsAsEmptyPragma(t *testing.T) {
	source := `
.decl p(x:number)
.decl q(x:number)
p(4). p(0).
q(y) :- p(x), y = 100 / x.
`
	in := New(compile(t, source, ast2ram.Config{}), Options{})
	require.Error(t, in.Run(context.Background()), "division by zero aborts by default")

	in = New(compile(t, source, ast2ram.Config{}), Options{ErrorsAsEmpty: true})
	require.NoError(t, in.Run(context.Background()))
	assert.Empty(t, tuples(in.Relation("q")), "the failed query leaves its target empty")
}

func TestParallelEvaluation(t *testing.T) {
	store := storage.NewMemStore()
	var rows [][]string
	for i := 0; i < 50; i++ {
		rows = append(rows, []string{strconv.Itoa(i), strconv.Itoa(i + 1)})
	}
	store.Add("e", rows...)
	in := run(t, `
.decl e(x:number, y:number)
.decl t(x:number, y:number)
.input e
t(x, y) :- e(x, y).
t(x, y) :- e(x, z), t(z, y).
`, Options{Store: store, Jobs: 4})
	// A 51-node chain closes to n*(n+1)/2 pairs.
	assert.Equal(t, 50*51/2, in.Relation("t").Size())
}

func TestPartitionedScanMatchesSequential(t *testing.T) {
	store := storage.NewMemStore()
	var rows [][]string
	for i := 0; i < 200; i++ {
		rows = append(rows, []string{strconv.Itoa(i), strconv.Itoa(i * 3)})
	}
	store.Add("e", rows...)
	// A projection keeps a plain scan at the outer level, so the workers
	// split it; the result set must not depend on the worker count.
	source := `
.decl e(x:number, y:number)
.decl flip(x:number, y:number)
.input e
flip(y, x) :- e(x, y).
`
	sequential := run(t, source, Options{Store: store, Jobs: 1})
	parallel := run(t, source, Options{Store: store, Jobs: 8})
	assert.Equal(t, tuples(sequential.Relation("flip")), tuples(parallel.Relation("flip")))
}

func TestProvenanceLevels(t *testing.T) {
	store := storage.NewMemStore()
	store.Add("e", []string{"1", "2"}, []string{"2", "3"})
	unit := compile(t, `
.decl e(x:number, y:number)
.decl t(x:number, y:number)
.input e
t(x, y) :- e(x, y).
t(x, y) :- e(x, z), t(z, y).
`, ast2ram.Config{Provenance: true})

	in := New(unit, Options{Store: store})
	require.NoError(t, in.Run(context.Background()))

	rel := in.Relation("t")
	assert.Equal(t, 3, rel.Size())
	levels := map[string]ramble.RamDomain{}
	for _, tp := range tuples(rel) {
		require.Len(t, tp, 4, "tuples carry rule id and level")
		levels[tp[:2].String()] = tp[3]
	}
	assert.Equal(t, ramble.RamDomain(1), levels[relation.Tuple{1, 2}.String()])
	assert.Equal(t, ramble.RamDomain(2), levels[relation.Tuple{1, 3}.String()])
}

func TestUserDefinedFunctor(t *testing.T) {
	reg := NewRegistry()
	reg.Register("double", func(args []ramble.RamDomain) (ramble.RamDomain, error) {
		return args[0] * 2, nil
	})
	in := run(t, `
.functor double(x:number):number
.decl p(x:number)
.decl q(x:number)
p(21).
q(y) :- p(x), y = @double(x).
`, Options{Functors: reg})
	assert.Equal(t, []relation.Tuple{{42}}, tuples(in.Relation("q")))
}

func TestStatefulFunctorSeesTables(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterStateful("upper", func(symbols *SymbolTable, records *RecordTable, args []ramble.RamDomain) (ramble.RamDomain, error) {
		s, _ := symbols.Decode(args[0])
		return symbols.Encode(strings.ToUpper(s)), nil
	})
	store := storage.NewMemStore()
	in := run(t, `
.functor upper(s:symbol):symbol stateful
.decl w(s:symbol)
.decl u(s:symbol)
.output u
w("go").
u(y) :- w(x), y = @upper(x).
`, Options{Functors: reg, Store: store})
	require.Equal(t, 1, in.Relation("u").Size())
	assert.Equal(t, [][]string{{"GO"}}, store.Rows("u"))
}

func TestPrintSizeOutput(t *testing.T) {
	var sb strings.Builder
	run(t, `
.decl p(x:number)
.printsize p
p(1). p(2).
`, Options{Output: &sb})
	assert.Equal(t, "p\t2\n", sb.String())
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := New(compile(t, `
.decl p(x:number)
p(1).
`, ast2ram.Config{}), Options{})
	assert.ErrorIs(t, in.Run(ctx), context.Canceled)
}
