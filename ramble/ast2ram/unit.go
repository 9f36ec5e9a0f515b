package ast2ram

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast"
	"github.com/ramble-dl/ramble/ramble/ram"
	"github.com/ramble-dl/ramble/ramble/semantic"
)

// Config controls the lowering.
type Config struct {
	// Provenance grows every relation by a rule-id and a level column and
	// switches negation to level-bounded checks.
	Provenance bool
}

// Translate lowers an analyzed program to RAM. Strata are emitted in
// dependency order; each recursive component becomes a semi-naive fixpoint
// loop over @delta_/@new_ versions of its relations.
func Translate(sem *semantic.Analysis, cfg Config) *ram.TranslationUnit {
	u := &unitTranslator{sem: sem, cfg: cfg, prog: ram.NewProgram()}
	u.declareRelations()

	var stmts []ram.Statement
	for i, stratum := range sem.Strata {
		stmts = append(stmts, &ram.DebugInfo{
			Message: fmt.Sprintf("stratum %d", i),
			Stmt:    u.translateStratum(stratum),
		})
	}
	u.prog.Main = &ram.Sequence{Stmts: stmts}

	logrus.WithFields(logrus.Fields{
		"relations":  len(u.prog.Relations),
		"strata":     len(sem.Strata),
		"provenance": cfg.Provenance,
	}).Debug("lowered program to ram")
	return ram.NewTranslationUnit(u.prog)
}

type unitTranslator struct {
	sem  *semantic.Analysis
	cfg  Config
	prog *ram.Program
}

func (u *unitTranslator) declareRelations() {
	aux := 0
	if u.cfg.Provenance {
		aux = 2
	}
	for _, rel := range u.sem.Program.Relations {
		name := rel.Name.String()
		u.prog.AddRelation(u.makeRelation(rel, name, aux))
		if u.sem.IsRecursive(rel.Name) {
			u.prog.AddRelation(u.makeRelation(rel, ast.DeltaPrefix+name, aux))
			u.prog.AddRelation(u.makeRelation(rel, ast.NewPrefix+name, aux))
		}
	}
}

func (u *unitTranslator) makeRelation(rel *ast.Relation, name string, aux int) *ram.Relation {
	names := make([]string, len(rel.Attributes))
	for i, attr := range rel.Attributes {
		names[i] = attr.Name
	}
	return &ram.Relation{
		Name:           name,
		Arity:          rel.Arity(),
		AuxArity:       aux,
		AttributeNames: names,
		AttributeTypes: u.sem.AttributeTypes(rel),
		Representation: rel.Representation,
	}
}

func (u *unitTranslator) translateStratum(stratum []*ast.Relation) ram.Statement {
	var stmts []ram.Statement
	for _, rel := range stratum {
		stmts = append(stmts, u.directiveIO(rel, ast.InputDirective, ram.IOLoad)...)
	}

	if u.sem.IsRecursive(stratum[0].Name) {
		stmts = append(stmts, u.translateFixpoint(stratum)...)
	} else {
		for _, rel := range stratum {
			for _, clause := range u.sem.Program.ClausesFor(rel.Name) {
				stmts = append(stmts, u.clauseStatement(clause, nil))
			}
		}
	}

	for _, rel := range stratum {
		stmts = append(stmts, u.directiveIO(rel, ast.OutputDirective, ram.IOStore)...)
		stmts = append(stmts, u.directiveIO(rel, ast.PrintSizeDirective, ram.IOPrintSize)...)
	}
	return &ram.Sequence{Stmts: stmts}
}

// translateFixpoint emits the semi-naive loop for one recursive component:
// non-recursive rules seed the relations, the loop derives from @delta_ into
// @new_ until a round adds nothing, and the temporaries are dropped.
func (u *unitTranslator) translateFixpoint(stratum []*ast.Relation) []ram.Statement {
	inComponent := map[string]bool{}
	for _, rel := range stratum {
		inComponent[rel.Name.String()] = true
	}

	var stmts []ram.Statement
	for _, rel := range stratum {
		for _, clause := range u.sem.Program.ClausesFor(rel.Name) {
			if countComponentAtoms(clause, inComponent) == 0 {
				stmts = append(stmts, u.clauseStatement(clause, nil))
			}
		}
	}
	for _, rel := range stratum {
		name := rel.Name.String()
		stmts = append(stmts, u.mergeStatement(rel, name, ast.DeltaPrefix+name))
	}

	var body []ram.Statement
	var versions []ram.Statement
	for _, rel := range stratum {
		for _, clause := range u.sem.Program.ClausesFor(rel.Name) {
			n := countComponentAtoms(clause, inComponent)
			for version := 0; version < n; version++ {
				versions = append(versions, u.clauseStatement(clause, &sccInfo{
					relations: inComponent,
					version:   version,
				}))
			}
		}
	}
	body = append(body, &ram.Parallel{Stmts: versions})

	var exhausted []ram.Condition
	for _, rel := range stratum {
		exhausted = append(exhausted, &ram.EmptinessCheck{Relation: ast.NewPrefix + rel.Name.String()})
	}
	body = append(body, &ram.Exit{Cond: ram.ToCondition(exhausted)})
	for _, rel := range stratum {
		if limit, ok := u.sizeLimit(rel); ok {
			body = append(body, &ram.Exit{Cond: &ram.Constraint{
				Op:  ramble.GE,
				LHS: &ram.RelationSize{Relation: rel.Name.String()},
				RHS: &ram.SignedConstant{Value: limit},
			}})
		}
	}
	for _, rel := range stratum {
		name := rel.Name.String()
		body = append(body, u.mergeStatement(rel, ast.NewPrefix+name, name))
		body = append(body, &ram.Swap{First: ast.DeltaPrefix + name, Second: ast.NewPrefix + name})
		body = append(body, &ram.Clear{Relation: ast.NewPrefix + name})
	}
	stmts = append(stmts, &ram.Loop{Body: &ram.Sequence{Stmts: body}})

	for _, rel := range stratum {
		name := rel.Name.String()
		stmts = append(stmts, &ram.Clear{Relation: ast.DeltaPrefix + name})
		stmts = append(stmts, &ram.Clear{Relation: ast.NewPrefix + name})
	}
	return stmts
}

func (u *unitTranslator) clauseStatement(clause *ast.Clause, scc *sccInfo) ram.Statement {
	return &ram.DebugInfo{
		Message: clause.String(),
		Stmt:    translateClause(u.sem, u.cfg.Provenance, clause, scc),
	}
}

// mergeStatement copies src into dst. Equivalence relations merge their
// classes wholesale instead of tuple by tuple.
func (u *unitTranslator) mergeStatement(rel *ast.Relation, src, dst string) ram.Statement {
	if rel.Representation == ramble.EqRelRepresentation {
		return &ram.Extend{Target: dst, Source: src}
	}
	width := u.prog.Relation(src).TotalArity()
	values := make([]ram.Expression, width)
	for i := range values {
		values[i] = &ram.TupleElement{TupleID: 0, Column: i}
	}
	scan := &ram.Scan{Relation: src, ID: 0}
	scan.SetNested(&ram.Insert{Relation: dst, Values: values})
	return &ram.Query{Op: scan}
}

func (u *unitTranslator) directiveIO(rel *ast.Relation, kind ast.DirectiveKind, mode ram.IOMode) []ram.Statement {
	var stmts []ram.Statement
	for _, dir := range u.sem.Program.Directives {
		if dir.Kind != kind || !dir.Name.Equal(rel.Name) {
			continue
		}
		io := &ram.IO{Mode: mode, Relation: rel.Name.String()}
		if len(dir.Params) > 0 {
			io.Params = make(map[string]string, len(dir.Params))
			for k, v := range dir.Params {
				io.Params[k] = v
			}
		}
		stmts = append(stmts, io)
	}
	return stmts
}

func (u *unitTranslator) sizeLimit(rel *ast.Relation) (ramble.RamDomain, bool) {
	for _, dir := range u.sem.Program.Directives {
		if dir.Kind != ast.LimitSizeDirective || !dir.Name.Equal(rel.Name) {
			continue
		}
		n, err := strconv.ParseInt(dir.Params["n"], 10, 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

func countComponentAtoms(clause *ast.Clause, inComponent map[string]bool) int {
	n := 0
	for _, atom := range ast.BodyAtoms(clause) {
		if inComponent[atom.Name.String()] {
			n++
		}
	}
	return n
}
