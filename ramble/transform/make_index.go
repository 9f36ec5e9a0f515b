package transform

import (
	"github.com/ramble-dl/ramble/ramble/analysis"
	"github.com/ramble-dl/ramble/ramble/ram"
)

// MakeIndex converts full scans into index scans by absorbing equality
// filters of the form t<id>.<col> = <expr> where the expression only reads
// tuples bound before the scan. The resulting key pattern is what the index
// analysis later turns into concrete lexicographic orders.
type MakeIndex struct{}

func (*MakeIndex) Name() string { return "make-index" }

func (*MakeIndex) Transform(unit *ram.TranslationUnit) bool {
	relations := analysis.RelationAnalysisFor(unit)
	changed := false
	for _, q := range queries(unit.Program) {
		// Each conversion rewrites the chain; restart until no scan absorbs
		// a key.
		for indexOneScan(q, relations) {
			changed = true
		}
	}
	return changed
}

func indexOneScan(q *ram.Query, relations *analysis.RelationAnalysis) bool {
	chain := chainOf(q)
	for i, op := range chain {
		scan, ok := op.(*ram.Scan)
		if !ok {
			continue
		}
		width := relations.Lookup(scan.Relation).TotalArity()
		keys := map[int]ram.Expression{}
		used := map[int]bool{}
		for j := i + 1; j < len(chain); j++ {
			f, ok := chain[j].(*ram.Filter)
			if !ok {
				continue
			}
			col, expr, ok := equalityKey(f.Cond, scan.ID)
			if !ok || col >= width || keys[col] != nil {
				continue
			}
			keys[col] = expr
			used[j] = true
		}
		if len(keys) == 0 {
			continue
		}

		low := make([]ram.Expression, width)
		high := make([]ram.Expression, width)
		for col := 0; col < width; col++ {
			if expr := keys[col]; expr != nil {
				low[col] = expr
				high[col] = expr.Clone().(ram.Expression)
			} else {
				low[col] = &ram.UndefValue{}
				high[col] = &ram.UndefValue{}
			}
		}
		index := &ram.IndexScan{Relation: scan.Relation, ID: scan.ID, Low: low, High: high}

		out := make([]ram.Operation, 0, len(chain))
		for j, op := range chain {
			switch {
			case j == i:
				out = append(out, index)
			case used[j]:
			default:
				out = append(out, op)
			}
		}
		relink(q, out)
		return true
	}
	return false
}

// equalityKey matches a condition of the shape t<id>.<col> = <expr> (either
// side) where the expression reads only tuples bound before id.
func equalityKey(cond ram.Condition, id int) (int, ram.Expression, bool) {
	c, ok := cond.(*ram.Constraint)
	if !ok || !c.Op.IsEquality() {
		return 0, nil, false
	}
	if col, expr, ok := keySide(c.LHS, c.RHS, id); ok {
		return col, expr, true
	}
	return keySide(c.RHS, c.LHS, id)
}

func keySide(lhs, rhs ram.Expression, id int) (int, ram.Expression, bool) {
	elem, ok := lhs.(*ram.TupleElement)
	if !ok || elem.TupleID != id {
		return 0, nil, false
	}
	if analysis.Level(rhs) >= id {
		return 0, nil, false
	}
	return elem.Column, rhs, true
}
