// Package semantic validates a parsed program and derives the structure the
// translator needs: a type environment, the relation precedence graph, and
// the stratification into evaluation layers.
//
// Checks collect diagnostics instead of stopping at the first problem; the
// caller inspects the report and aborts before translation if any errors
// were recorded.
package semantic

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast"
)

// Analysis is the validated view of a program.
type Analysis struct {
	Program *ast.Program
	Types   *TypeEnv
	Graph   *PrecedenceGraph

	// Strata lists relations in evaluation order: every relation a stratum
	// reads from is in the same or an earlier stratum.
	Strata [][]*ast.Relation

	relations map[string]*ast.Relation
	functors  map[string]*ast.FunctorDeclaration
	recursive map[string]bool
}

// Relation returns the declared relation with the given name, or nil.
func (a *Analysis) Relation(name ast.QualifiedName) *ast.Relation {
	return a.relations[name.String()]
}

// Functor returns the declared user functor with the given name, or nil.
func (a *Analysis) Functor(name string) *ast.FunctorDeclaration {
	return a.functors[name]
}

// IsRecursive reports whether the relation lives in a fixpoint stratum.
func (a *Analysis) IsRecursive(name ast.QualifiedName) bool {
	return a.recursive[name.String()]
}

// AttributeTypes resolves a relation's declared attribute types to their
// structural kinds. Unresolvable names come back as Signed; the checks have
// already reported them.
func (a *Analysis) AttributeTypes(rel *ast.Relation) []ramble.TypeAttribute {
	types := make([]ramble.TypeAttribute, len(rel.Attributes))
	for i, attr := range rel.Attributes {
		attrType, ok := a.Types.Attribute(attr.TypeName)
		if !ok {
			attrType = ramble.Signed
		}
		types[i] = attrType
	}
	return types
}

// Analyze validates the program and computes its stratification. The report
// carries every diagnostic; an analysis is returned even when errors were
// found so tooling can still inspect the parts that resolved.
func Analyze(prog *ast.Program) (*Analysis, *Report) {
	report := &Report{}
	a := &Analysis{
		Program:   prog,
		relations: map[string]*ast.Relation{},
		functors:  map[string]*ast.FunctorDeclaration{},
		recursive: map[string]bool{},
	}

	a.Types = newTypeEnv(prog, report)
	a.indexRelations(report)
	a.indexFunctors(report)
	a.checkClauses(report)
	a.checkDirectives(report)

	a.Graph = NewPrecedenceGraph(prog)
	sccs := a.Graph.SCCs()
	for _, comp := range sccs {
		recursive := a.Graph.IsRecursiveComponent(comp)
		var stratum []*ast.Relation
		for _, name := range comp {
			if rel := a.relations[name]; rel != nil {
				stratum = append(stratum, rel)
			}
			if recursive {
				a.recursive[name] = true
			}
		}
		if len(stratum) > 0 {
			a.Strata = append(a.Strata, stratum)
		}
		a.checkStratified(comp, report)
	}

	logrus.WithFields(logrus.Fields{
		"relations": len(a.relations),
		"strata":    len(a.Strata),
		"errors":    report.ErrorCount(),
	}).Debug("semantic analysis complete")
	return a, report
}

func (a *Analysis) indexRelations(report *Report) {
	for _, rel := range a.Program.Relations {
		name := rel.Name.String()
		if prev, dup := a.relations[name]; dup {
			report.Errorf(rel.Loc(), "relation %s already declared at %s", name, prev.Loc())
			continue
		}
		a.relations[name] = rel

		for _, attr := range rel.Attributes {
			if _, ok := a.Types.Attribute(attr.TypeName); !ok {
				report.Errorf(attr.Loc(), "unknown type %s for attribute %s of %s",
					attr.TypeName, attr.Name, name)
			}
		}
		if rel.Representation == ramble.EqRelRepresentation && rel.Arity() != 2 {
			report.Errorf(rel.Loc(), "eqrel relation %s must be binary", name)
		}
		for _, dep := range rel.Dependencies {
			for _, key := range dep.Keys {
				if !hasAttribute(rel, key) {
					report.Errorf(dep.Loc(), "choice-domain key %s is not an attribute of %s", key, name)
				}
			}
		}
	}
}

func hasAttribute(rel *ast.Relation, name string) bool {
	for _, attr := range rel.Attributes {
		if attr.Name == name {
			return true
		}
	}
	return false
}

func (a *Analysis) indexFunctors(report *Report) {
	for _, fn := range a.Program.Functors {
		if prev, dup := a.functors[fn.Name]; dup {
			report.Errorf(fn.Loc(), "functor %s already declared at %s", fn.Name, prev.Loc())
			continue
		}
		a.functors[fn.Name] = fn
		if _, ok := a.Types.Attribute(fn.Return); !ok {
			report.Errorf(fn.Loc(), "unknown return type %s for functor %s", fn.Return, fn.Name)
		}
		for _, param := range fn.Params {
			if _, ok := a.Types.Attribute(param.TypeName); !ok {
				report.Errorf(param.Loc(), "unknown type %s for parameter %s of functor %s",
					param.TypeName, param.Name, fn.Name)
			}
		}
	}
}

func (a *Analysis) checkClauses(report *Report) {
	for _, clause := range a.Program.Clauses {
		a.checkAtom(clause.Head, report)
		for _, lit := range clause.Body {
			switch l := lit.(type) {
			case *ast.Atom:
				a.checkAtom(l, report)
			case *ast.Negation:
				a.checkAtom(l.Atom, report)
			}
		}
		ast.Visit(clause, func(n ast.Node) {
			switch arg := n.(type) {
			case *ast.Aggregator:
				a.checkAggregator(arg, report)
			case *ast.UserDefinedFunctor:
				fn := a.functors[arg.Name]
				if fn == nil {
					report.Errorf(arg.Loc(), "undeclared functor @%s", arg.Name)
				} else if len(arg.Args) != len(fn.Params) {
					report.Errorf(arg.Loc(), "functor @%s expects %d arguments, got %d",
						arg.Name, len(fn.Params), len(arg.Args))
				}
			case *ast.BranchInit:
				_, branch, _, ok := a.Types.Branch(arg.Branch)
				if !ok {
					report.Errorf(arg.Loc(), "unknown branch constructor $%s", arg.Branch)
				} else if len(arg.Args) != len(branch.Fields) {
					report.Errorf(arg.Loc(), "branch $%s expects %d fields, got %d",
						arg.Branch, len(branch.Fields), len(arg.Args))
				}
			case *ast.TypeCast:
				if _, ok := a.Types.Attribute(arg.Type); !ok {
					report.Errorf(arg.Loc(), "unknown type %s in cast", arg.Type)
				}
			}
		})
		a.checkGroundedness(clause, report)
	}
}

func (a *Analysis) checkAtom(atom *ast.Atom, report *Report) {
	rel := a.relations[atom.Name.String()]
	if rel == nil {
		report.Errorf(atom.Loc(), "undeclared relation %s", atom.Name)
		return
	}
	if atom.Arity() != rel.Arity() {
		report.Errorf(atom.Loc(), "relation %s expects %d arguments, got %d",
			atom.Name, rel.Arity(), atom.Arity())
	}
}

// checkAggregator enforces the supported aggregate shape: any number of
// constraints around exactly one positive atom.
func (a *Analysis) checkAggregator(agg *ast.Aggregator, report *Report) {
	atoms := 0
	for _, lit := range agg.Body {
		switch l := lit.(type) {
		case *ast.Atom:
			atoms++
			a.checkAtom(l, report)
		case *ast.Negation:
			report.Errorf(l.Loc(), "negation is not supported inside an aggregate body")
		}
	}
	if atoms != 1 {
		report.Errorf(agg.Loc(), "aggregate body must contain exactly one atom, got %d", atoms)
	}
	if agg.Op.RequiresTarget() && agg.TargetExpr == nil {
		report.Errorf(agg.Loc(), "%s aggregate requires a target expression", agg.Op)
	}
}

// checkGroundedness verifies every variable of the clause is bound by a
// positive body atom, directly or through a chain of equalities. Aggregate
// bodies scope their own variables.
func (a *Analysis) checkGroundedness(clause *ast.Clause, report *Report) {
	grounded := map[string]bool{}
	for _, lit := range clause.Body {
		if atom, ok := lit.(*ast.Atom); ok {
			ast.Visit(atom, func(n ast.Node) {
				if v, isVar := n.(*ast.Variable); isVar {
					grounded[v.Name] = true
				}
			})
		}
	}

	// Propagate through equalities until nothing changes.
	for changed := true; changed; {
		changed = false
		for _, cons := range ast.BodyConstraints(clause) {
			if !cons.Op.IsEquality() {
				continue
			}
			if v, ok := cons.LHS.(*ast.Variable); ok && !grounded[v.Name] && a.exprGrounded(cons.RHS, grounded) {
				grounded[v.Name] = true
				changed = true
			}
			if v, ok := cons.RHS.(*ast.Variable); ok && !grounded[v.Name] && a.exprGrounded(cons.LHS, grounded) {
				grounded[v.Name] = true
				changed = true
			}
		}
	}

	reported := map[string]bool{}
	requireGrounded := func(root ast.Node) {
		visitOutsideAggregates(root, func(n ast.Node) {
			if v, isVar := n.(*ast.Variable); isVar && !grounded[v.Name] && !reported[v.Name] {
				reported[v.Name] = true
				report.Errorf(v.Loc(), "variable %s is not grounded by a positive body atom", v.Name)
			}
		})
	}

	for _, arg := range clause.Head.Args {
		if _, wild := arg.(*ast.UnnamedVariable); wild {
			report.Errorf(clause.Head.Loc(), "underscore is not allowed in a clause head")
		}
		requireGrounded(arg)
	}
	for _, lit := range clause.Body {
		switch l := lit.(type) {
		case *ast.Negation:
			requireGrounded(l)
		case *ast.BinaryConstraint:
			requireGrounded(l)
		}
	}

	// Aggregate bodies see outer bindings plus their own atoms.
	ast.Visit(clause, func(n ast.Node) {
		agg, ok := n.(*ast.Aggregator)
		if !ok {
			return
		}
		local := map[string]bool{}
		for name := range grounded {
			local[name] = true
		}
		for _, lit := range agg.Body {
			if atom, isAtom := lit.(*ast.Atom); isAtom {
				ast.Visit(atom, func(inner ast.Node) {
					if v, isVar := inner.(*ast.Variable); isVar {
						local[v.Name] = true
					}
				})
			}
		}
		check := func(root ast.Node) {
			ast.Visit(root, func(inner ast.Node) {
				if v, isVar := inner.(*ast.Variable); isVar && !local[v.Name] && !reported[v.Name] {
					reported[v.Name] = true
					report.Errorf(v.Loc(), "variable %s is not grounded inside the aggregate", v.Name)
				}
			})
		}
		if agg.TargetExpr != nil {
			check(agg.TargetExpr)
		}
		for _, lit := range agg.Body {
			if _, isAtom := lit.(*ast.Atom); !isAtom {
				check(lit)
			}
		}
	})
}

// exprGrounded reports whether every variable of an expression is grounded.
// Aggregators count as grounded here; their internals are checked separately.
func (a *Analysis) exprGrounded(arg ast.Argument, grounded map[string]bool) bool {
	ok := true
	visitOutsideAggregates(arg, func(n ast.Node) {
		if v, isVar := n.(*ast.Variable); isVar && !grounded[v.Name] {
			ok = false
		}
	})
	return ok
}

// visitOutsideAggregates walks a tree but does not descend into aggregator
// nodes, which scope their own variables.
func visitOutsideAggregates(root ast.Node, fn func(ast.Node)) {
	if root == nil {
		return
	}
	if _, isAgg := root.(*ast.Aggregator); isAgg {
		return
	}
	fn(root)
	for _, child := range root.Children() {
		visitOutsideAggregates(child, fn)
	}
}

func (a *Analysis) checkDirectives(report *Report) {
	for _, dir := range a.Program.Directives {
		if a.relations[dir.Name.String()] == nil {
			report.Errorf(dir.Loc(), "directive %s names undeclared relation %s", dir.Kind, dir.Name)
			continue
		}
		if dir.Kind == ast.LimitSizeDirective {
			n, ok := dir.Params["n"]
			if !ok {
				report.Errorf(dir.Loc(), ".limitsize %s requires an n parameter", dir.Name)
				continue
			}
			if _, err := strconv.ParseUint(n, 10, 64); err != nil {
				report.Errorf(dir.Loc(), ".limitsize %s: n must be a non-negative integer, got %q", dir.Name, n)
			}
		}
	}
}

// checkStratified reports an error for every negative dependency that stays
// inside a single strongly connected component.
func (a *Analysis) checkStratified(comp []string, report *Report) {
	inComp := map[string]bool{}
	for _, name := range comp {
		inComp[name] = true
	}
	for _, from := range comp {
		for _, to := range a.Graph.Dependents(from) {
			if inComp[to] && a.Graph.IsNegative(from, to) {
				loc := ast.SrcLoc{}
				if rel := a.relations[to]; rel != nil {
					loc = rel.Loc()
				}
				report.Errorf(loc, "unstratifiable program: %s depends negatively on %s within the same stratum", to, from)
			}
		}
	}
}
