package ast2ram

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast"
	"github.com/ramble-dl/ramble/ramble/ram"
	"github.com/ramble-dl/ramble/ramble/semantic"
)

// sccInfo configures semi-naive translation: the recursive relations of the
// current component and which of the clause's component atoms reads the
// delta relation.
type sccInfo struct {
	relations map[string]bool
	version   int
}

// orderedAtom is one positive body atom after atom ordering.
type orderedAtom struct {
	atom     *ast.Atom
	relation string // relation actually scanned; @delta_ for the delta atom
	declared *ast.Relation
	sccPos   int // ordinal among component atoms in source order, -1 outside
	delta    bool
}

// clauseTranslator builds the loop nest for a single clause. Tuple ids are
// handed out outside-in: body atoms first, then record unpacks, then
// generator levels (aggregates and multi-result functors), which bind last.
type clauseTranslator struct {
	sem  *semantic.Analysis
	prov bool

	clause *ast.Clause
	scc    *sccInfo

	atoms  []orderedAtom
	index  *valueIndex
	nextID int

	unpacks    []unpackSite
	generators []generatorSite
	conds      []ram.Condition
	consumed   map[ast.Literal]bool

	// locals carries the aggregate-scoped bindings while a generator body is
	// being translated; outer definitions take precedence (correlation).
	locals map[string]Location

	// aliases maps variables grounded only by an equality literal to the
	// expression that grounds them.
	aliases map[string]ast.Argument

	computed []computedArg
}

type unpackSite struct {
	id    int
	arity int
	ref   ram.Expression
}

type generatorSite struct {
	id  int
	agg *ast.Aggregator
	fn  *ast.IntrinsicFunctor
}

// computedArg is a body-atom argument that is neither a variable, constant,
// nor constructor: the bound column must equal the evaluated expression.
type computedArg struct {
	bound ram.Expression
	arg   ast.Argument
}

// translateClause lowers one clause. With scc == nil the clause reads the
// current state of all relations and inserts into its head; with scc set it
// produces the semi-naive version reading @delta_ for the version-th
// component atom and inserting into @new_.
func translateClause(sem *semantic.Analysis, prov bool, clause *ast.Clause, scc *sccInfo) ram.Statement {
	t := &clauseTranslator{
		sem:      sem,
		prov:     prov,
		clause:   clause,
		scc:      scc,
		consumed: map[ast.Literal]bool{},
		aliases:  map[string]ast.Argument{},
	}
	t.orderAtoms()
	t.buildIndex()
	t.buildConditions()

	op := t.insertion()
	for i := len(t.conds) - 1; i >= 0; i-- {
		f := &ram.Filter{Cond: t.conds[i]}
		f.SetNested(op)
		op = f
	}
	for i := len(t.generators) - 1; i >= 0; i-- {
		g := t.generatorOp(&t.generators[i])
		g.SetNested(op)
		op = g
	}
	for i := len(t.unpacks) - 1; i >= 0; i-- {
		u := &ram.UnpackRecord{Ref: t.unpacks[i].ref, Arity: t.unpacks[i].arity, ID: t.unpacks[i].id}
		u.SetNested(op)
		op = u
	}
	for i := len(t.atoms) - 1; i >= 0; i-- {
		s := &ram.Scan{Relation: t.atoms[i].relation, ID: i}
		s.SetNested(op)
		op = s
	}
	return &ram.Query{Op: op}
}

// orderAtoms fixes the scan order: the delta atom first in semi-naive mode,
// then greedily any atom whose variables are already bound, then the rest in
// source order. Ties always resolve to the earliest source position.
func (t *clauseTranslator) orderAtoms() {
	atoms := ast.BodyAtoms(t.clause)
	sccPos := make([]int, len(atoms))
	ordinal := 0
	for i, a := range atoms {
		sccPos[i] = -1
		if t.scc != nil && t.scc.relations[a.Name.String()] {
			sccPos[i] = ordinal
			ordinal++
		}
	}

	used := make([]bool, len(atoms))
	bound := map[string]bool{}
	take := func(i int) {
		a := atoms[i]
		oa := orderedAtom{
			atom:     a,
			relation: a.Name.String(),
			declared: t.sem.Relation(a.Name),
			sccPos:   sccPos[i],
		}
		if oa.declared == nil {
			panic(fmt.Sprintf("ast2ram: undeclared relation %s in %s", a.Name, t.clause))
		}
		if t.scc != nil && sccPos[i] == t.scc.version {
			oa.relation = ast.DeltaPrefix + oa.relation
			oa.delta = true
		}
		t.atoms = append(t.atoms, oa)
		used[i] = true
		ast.Visit(a, func(n ast.Node) {
			if v, ok := n.(*ast.Variable); ok {
				bound[v.Name] = true
			}
		})
	}

	if t.scc != nil {
		for i := range atoms {
			if sccPos[i] == t.scc.version {
				take(i)
				break
			}
		}
	}
	for {
		picked := -1
		for i, a := range atoms {
			if !used[i] && atomVarsBound(a, bound) {
				picked = i
				break
			}
		}
		if picked < 0 {
			for i := range atoms {
				if !used[i] {
					picked = i
					break
				}
			}
		}
		if picked < 0 {
			return
		}
		take(picked)
	}
}

func atomVarsBound(atom *ast.Atom, bound map[string]bool) bool {
	ok := true
	ast.Visit(atom, func(n ast.Node) {
		if v, isVar := n.(*ast.Variable); isVar && !bound[v.Name] {
			ok = false
		}
	})
	return ok
}

// buildIndex walks the ordered atoms recording variable locations, unpack
// sites for constructor arguments, and generator levels, then consumes the
// equality literals that merely name a generator's result.
func (t *clauseTranslator) buildIndex() {
	t.index = newValueIndex()
	t.nextID = len(t.atoms)
	for i, oa := range t.atoms {
		for col, arg := range oa.atom.Args {
			t.indexArg(arg, &ram.TupleElement{TupleID: i, Column: col}, Location{TupleID: i, Column: col})
		}
	}

	// Generators bind last: their levels follow every atom and unpack.
	ast.Visit(t.clause, func(n ast.Node) {
		switch node := n.(type) {
		case *ast.Aggregator:
			t.newGenerator(generatorSite{agg: node})
		case *ast.IntrinsicFunctor:
			if node.Op.IsMultiResult() {
				t.newGenerator(generatorSite{fn: node})
			}
		}
	})

	// x = <generator> binds x to the generator's result column instead of
	// becoming a filter.
	for _, lit := range t.clause.Body {
		c, ok := lit.(*ast.BinaryConstraint)
		if !ok || !c.Op.IsEquality() {
			continue
		}
		if v, g, found := bindingPair(c); found {
			if id, isGen := t.index.generator(g); isGen {
				t.index.add(v.Name, Location{TupleID: id, Column: 0})
				t.consumed[lit] = true
			}
		}
	}

	// x = <expr> with x bound nowhere else defines x as the expression; the
	// literal vanishes instead of becoming an unsatisfiable filter. Chains of
	// definitions resolve in any literal order, so iterate to fixpoint.
	for changed := true; changed; {
		changed = false
		for _, lit := range t.clause.Body {
			c, ok := lit.(*ast.BinaryConstraint)
			if !ok || !c.Op.IsEquality() || t.consumed[lit] {
				continue
			}
			if v, expr, found := t.aliasPair(c); found {
				t.aliases[v.Name] = expr
				t.consumed[lit] = true
				changed = true
			}
		}
	}
}

// aliasPair matches an equality literal defining an otherwise unbound
// variable. Two unbound variables cannot ground each other; the semantic
// pass has already rejected such clauses.
func (t *clauseTranslator) aliasPair(c *ast.BinaryConstraint) (*ast.Variable, ast.Argument, bool) {
	if v, ok := c.LHS.(*ast.Variable); ok && !t.isBound(v.Name) && t.groundsAlias(c.RHS) {
		return v, c.RHS, true
	}
	if v, ok := c.RHS.(*ast.Variable); ok && !t.isBound(v.Name) && t.groundsAlias(c.LHS) {
		return v, c.LHS, true
	}
	return nil, nil, false
}

func (t *clauseTranslator) isBound(name string) bool {
	if _, ok := t.index.definition(name); ok {
		return true
	}
	_, aliased := t.aliases[name]
	return aliased
}

// groundsAlias rejects a defining expression whose free variables are
// themselves unbound and not groundable by a later alias.
func (t *clauseTranslator) groundsAlias(arg ast.Argument) bool {
	if v, ok := arg.(*ast.Variable); ok {
		return t.isBound(v.Name)
	}
	return true
}

func bindingPair(c *ast.BinaryConstraint) (*ast.Variable, ast.Argument, bool) {
	if v, ok := c.LHS.(*ast.Variable); ok && isGeneratorNode(c.RHS) {
		return v, c.RHS, true
	}
	if v, ok := c.RHS.(*ast.Variable); ok && isGeneratorNode(c.LHS) {
		return v, c.LHS, true
	}
	return nil, nil, false
}

func isGeneratorNode(arg ast.Argument) bool {
	switch a := arg.(type) {
	case *ast.Aggregator:
		return true
	case *ast.IntrinsicFunctor:
		return a.Op.IsMultiResult()
	}
	return false
}

func (t *clauseTranslator) indexArg(arg ast.Argument, bound ram.Expression, loc Location) {
	switch a := arg.(type) {
	case *ast.Variable:
		t.index.add(a.Name, loc)
	case *ast.UnnamedVariable:
	case *ast.TypeCast:
		t.indexArg(a.Value, bound, loc)
	case *ast.NumericConstant, *ast.StringConstant, *ast.NilConstant:
		t.conds = append(t.conds, &ram.Constraint{Op: ramble.EQ, LHS: bound, RHS: t.constantValue(a)})
	case *ast.RecordInit:
		u := t.newUnpack(len(a.Args), bound)
		for k, sub := range a.Args {
			t.indexArg(sub, &ram.TupleElement{TupleID: u, Column: k}, Location{TupleID: u, Column: k})
		}
	case *ast.BranchInit:
		t.indexBranch(a, bound)
	default:
		// Functors and aggregators in an atom position: the column must
		// equal the evaluated expression, translated once the whole index
		// is known.
		t.computed = append(t.computed, computedArg{bound: bound, arg: arg})
	}
}

func (t *clauseTranslator) indexBranch(b *ast.BranchInit, bound ram.Expression) {
	_, _, tag, ok := t.sem.Types.Branch(b.Branch)
	if !ok {
		panic(fmt.Sprintf("ast2ram: unknown branch $%s in %s", b.Branch, t.clause))
	}
	u := t.newUnpack(2, bound)
	t.conds = append(t.conds, &ram.Constraint{
		Op:  ramble.EQ,
		LHS: &ram.TupleElement{TupleID: u, Column: 0},
		RHS: &ram.SignedConstant{Value: ramble.RamDomain(tag)},
	})
	if len(b.Args) == 0 {
		return
	}
	fields := t.newUnpack(len(b.Args), &ram.TupleElement{TupleID: u, Column: 1})
	for k, sub := range b.Args {
		t.indexArg(sub, &ram.TupleElement{TupleID: fields, Column: k}, Location{TupleID: fields, Column: k})
	}
}

func (t *clauseTranslator) constantValue(arg ast.Argument) ram.Expression {
	switch a := arg.(type) {
	case *ast.NumericConstant:
		return numericConstant(a)
	case *ast.StringConstant:
		return &ram.StringConstant{Value: a.Value}
	case *ast.NilConstant:
		return &ram.SignedConstant{Value: 0}
	}
	panic(fmt.Sprintf("ast2ram: not a constant: %s", arg))
}

func (t *clauseTranslator) newUnpack(arity int, ref ram.Expression) int {
	id := t.nextID
	t.nextID++
	t.unpacks = append(t.unpacks, unpackSite{id: id, arity: arity, ref: ref})
	return id
}

func (t *clauseTranslator) newGenerator(site generatorSite) {
	site.id = t.nextID
	t.nextID++
	t.generators = append(t.generators, site)
	if site.agg != nil {
		t.index.setGenerator(site.agg, site.id)
	} else {
		t.index.setGenerator(site.fn, site.id)
	}
}

// buildConditions appends, in order: computed-argument equalities, variable
// binding equalities (definition point against every later occurrence), the
// clause's own constraint and negation literals, and the delta exclusions
// that keep semi-naive versions disjoint.
func (t *clauseTranslator) buildConditions() {
	for _, c := range t.computed {
		t.conds = append(t.conds, &ram.Constraint{Op: ramble.EQ, LHS: c.bound, RHS: t.value(c.arg)})
	}
	for _, name := range t.index.names() {
		locs := t.index.locations(name)
		def := &ram.TupleElement{TupleID: locs[0].TupleID, Column: locs[0].Column}
		for _, loc := range locs[1:] {
			t.conds = append(t.conds, &ram.Constraint{
				Op:  ramble.EQ,
				LHS: def,
				RHS: &ram.TupleElement{TupleID: loc.TupleID, Column: loc.Column},
			})
		}
	}
	for _, lit := range t.clause.Body {
		if t.consumed[lit] {
			continue
		}
		switch l := lit.(type) {
		case *ast.BinaryConstraint:
			t.conds = append(t.conds, t.constraint(l))
		case *ast.Negation:
			t.conds = append(t.conds, t.negation(l))
		}
	}
	if t.scc != nil {
		// Version v reads delta for its atom and full relations elsewhere;
		// component atoms after the delta must not also be new knowledge or
		// the same derivation fires once per version.
		for i, oa := range t.atoms {
			if oa.sccPos <= t.scc.version || oa.delta {
				continue
			}
			values := make([]ram.Expression, len(oa.atom.Args))
			for col := range oa.atom.Args {
				values[col] = &ram.TupleElement{TupleID: i, Column: col}
			}
			values = t.padAux(values)
			t.conds = append(t.conds, &ram.Negation{Cond: &ram.ExistenceCheck{
				Relation: ast.DeltaPrefix + oa.atom.Name.String(),
				Values:   values,
			}})
		}
	}
}

// insertion builds the innermost operation: the head insert plus its guards
// (nullary once-only, functional-dependency choice, semi-naive dedup).
func (t *clauseTranslator) insertion() ram.Operation {
	head := t.clause.Head
	headRel := t.sem.Relation(head.Name)
	if headRel == nil {
		panic(fmt.Sprintf("ast2ram: undeclared head relation %s", head.Name))
	}
	target := head.Name.String()
	if t.scc != nil {
		target = ast.NewPrefix + target
	}

	values := make([]ram.Expression, len(head.Args))
	for i, arg := range head.Args {
		values[i] = t.value(arg)
	}
	payload := append([]ram.Expression{}, values...)
	if t.prov {
		values = append(values, t.ruleID(), t.levelExpr())
	}

	var op ram.Operation
	if len(headRel.Dependencies) > 0 {
		op = &ram.GuardedInsert{
			Relation: target,
			Values:   values,
			Guard:    t.choiceGuard(headRel, target, payload),
		}
	} else {
		op = &ram.Insert{Relation: target, Values: values}
	}

	if t.scc != nil {
		// Only genuinely new tuples reach @new_; the existence check runs
		// against the full relation.
		dedup := make([]ram.Expression, len(payload))
		for i, v := range payload {
			dedup[i] = v.Clone().(ram.Expression)
		}
		f := &ram.Filter{Cond: &ram.Negation{Cond: &ram.ExistenceCheck{
			Relation: head.Name.String(),
			Values:   t.padAux(dedup),
		}}}
		f.SetNested(op)
		op = f
	}
	if headRel.Arity() == 0 {
		// The proposition is derived at most once; after the first insert the
		// rest of the query is abandoned.
		b := &ram.Break{Cond: &ram.Negation{Cond: &ram.EmptinessCheck{Relation: target}}}
		b.SetNested(op)
		op = b
	}
	return op
}

// choiceGuard admits a head tuple only when no tuple with the same key
// values exists yet; one conjunct per declared functional dependency.
func (t *clauseTranslator) choiceGuard(rel *ast.Relation, target string, payload []ram.Expression) ram.Condition {
	column := map[string]int{}
	for i, attr := range rel.Attributes {
		column[attr.Name] = i
	}
	var guards []ram.Condition
	for _, dep := range rel.Dependencies {
		pattern := make([]ram.Expression, len(payload))
		for i := range pattern {
			pattern[i] = &ram.UndefValue{}
		}
		for _, key := range dep.Keys {
			i, ok := column[key]
			if !ok {
				panic(fmt.Sprintf("ast2ram: choice-domain key %s is not an attribute of %s", key, rel.Name))
			}
			pattern[i] = payload[i].Clone().(ram.Expression)
		}
		guards = append(guards, &ram.Negation{Cond: &ram.ExistenceCheck{
			Relation: target,
			Values:   t.padAux(pattern),
		}})
	}
	return ram.ToCondition(guards)
}

// padAux extends a payload pattern with unconstrained provenance columns.
func (t *clauseTranslator) padAux(values []ram.Expression) []ram.Expression {
	if !t.prov {
		return values
	}
	return append(values, &ram.UndefValue{}, &ram.UndefValue{})
}

// ruleID is a stable identifier for the clause, derived from its printed
// form so recompilation assigns the same ids.
func (t *clauseTranslator) ruleID() ram.Expression {
	return &ram.SignedConstant{Value: ramble.FromUnsigned(xxhash.Sum64String(t.clause.String()))}
}

// levelExpr is the derivation level of the head tuple: one more than the
// highest level among the body tuples, zero for facts.
func (t *clauseTranslator) levelExpr() ram.Expression {
	var level ram.Expression
	for i, oa := range t.atoms {
		elem := ram.Expression(&ram.TupleElement{TupleID: i, Column: oa.declared.Arity() + 1})
		if level == nil {
			level = elem
			continue
		}
		level = &ram.IntrinsicOperator{Op: ramble.Max, Args: []ram.Expression{level, elem}}
	}
	if level == nil {
		return &ram.SignedConstant{Value: 0}
	}
	return &ram.IntrinsicOperator{Op: ramble.Add, Args: []ram.Expression{level, &ram.SignedConstant{Value: 1}}}
}

// generatorOp materializes one generator level: an aggregate fold or a
// multi-result intrinsic.
func (t *clauseTranslator) generatorOp(g *generatorSite) ram.NestedOperation {
	if g.fn != nil {
		return &ram.NestedIntrinsic{Op: g.fn.Op, Args: t.values(g.fn.Args), ID: g.id}
	}

	agg := g.agg
	var atom *ast.Atom
	var rest []ast.Literal
	for _, lit := range agg.Body {
		if a, ok := lit.(*ast.Atom); ok && atom == nil {
			atom = a
			continue
		}
		rest = append(rest, lit)
	}
	if atom == nil {
		panic(fmt.Sprintf("ast2ram: aggregate without a body atom in %s", t.clause))
	}

	t.locals = map[string]Location{}
	defer func() { t.locals = nil }()

	var conds []ram.Condition
	for col, arg := range atom.Args {
		self := &ram.TupleElement{TupleID: g.id, Column: col}
		switch a := arg.(type) {
		case *ast.UnnamedVariable:
		case *ast.Variable:
			if _, outer := t.index.definition(a.Name); outer {
				// Correlated with the enclosing clause.
				conds = append(conds, &ram.Constraint{Op: ramble.EQ, LHS: self, RHS: t.value(a)})
			} else if first, local := t.locals[a.Name]; local {
				conds = append(conds, &ram.Constraint{
					Op:  ramble.EQ,
					LHS: self,
					RHS: &ram.TupleElement{TupleID: first.TupleID, Column: first.Column},
				})
			} else {
				t.locals[a.Name] = Location{TupleID: g.id, Column: col}
			}
		default:
			conds = append(conds, &ram.Constraint{Op: ramble.EQ, LHS: self, RHS: t.value(arg)})
		}
	}
	for _, lit := range rest {
		if c, ok := lit.(*ast.BinaryConstraint); ok {
			conds = append(conds, t.constraint(c))
		}
	}

	expr := ram.Expression(&ram.SignedConstant{Value: 0})
	attr := ramble.Signed
	if agg.TargetExpr != nil {
		expr = t.value(agg.TargetExpr)
		attr = t.argTypeAttr(agg.TargetExpr, g.id, t.sem.Relation(atom.Name))
	}
	return &ram.Aggregate{
		Fn:       agg.Op,
		Relation: atom.Name.String(),
		ID:       g.id,
		Expr:     expr,
		TypeAttr: attr,
		Cond:     ram.ToCondition(conds),
	}
}

// argTypeAttr resolves an argument to the machine interpretation of its
// value: the declared column type for variables, the literal kind for
// constants, the return type for functors. Anything unresolvable is carried
// as a signed word.
func (t *clauseTranslator) argTypeAttr(arg ast.Argument, aggID int, aggDecl *ast.Relation) ramble.TypeAttribute {
	switch a := arg.(type) {
	case *ast.Variable:
		if loc, ok := t.index.definition(a.Name); ok {
			return t.columnTypeAttr(loc, aggID, aggDecl)
		}
		if loc, ok := t.locals[a.Name]; ok {
			return t.columnTypeAttr(loc, aggID, aggDecl)
		}
		if expr, ok := t.aliases[a.Name]; ok {
			return t.argTypeAttr(expr, aggID, aggDecl)
		}
	case *ast.NumericConstant:
		switch a.Type {
		case ast.NumericFloat:
			return ramble.Float
		case ast.NumericUint:
			return ramble.Unsigned
		}
	case *ast.TypeCast:
		return t.attributeType(a.Type)
	case *ast.IntrinsicFunctor:
		if attr := functorTypeAttr(a.Op); attr == ramble.Symbol {
			return attr
		}
		// Arithmetic preserves the operand kind.
		if len(a.Args) > 0 {
			return t.argTypeAttr(a.Args[0], aggID, aggDecl)
		}
	case *ast.UserDefinedFunctor:
		if decl := t.sem.Functor(a.Name); decl != nil {
			return t.attributeType(decl.Return)
		}
	}
	return ramble.Signed
}

func (t *clauseTranslator) columnTypeAttr(loc Location, aggID int, aggDecl *ast.Relation) ramble.TypeAttribute {
	if loc.TupleID < len(t.atoms) {
		oa := t.atoms[loc.TupleID]
		if loc.Column < len(oa.declared.Attributes) {
			return t.attributeType(oa.declared.Attributes[loc.Column].TypeName)
		}
	}
	if loc.TupleID == aggID && aggDecl != nil && loc.Column < len(aggDecl.Attributes) {
		return t.attributeType(aggDecl.Attributes[loc.Column].TypeName)
	}
	return ramble.Signed
}
