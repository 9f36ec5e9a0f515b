package transform

import (
	"sort"

	"github.com/ramble-dl/ramble/ramble/analysis"
	"github.com/ramble-dl/ramble/ramble/ram"
)

// ReorderConditions sorts the conjuncts of every conjunctive filter by
// ascending evaluation cost, so cheap tests run before existence checks and
// user-defined functors. The sort is stable: equal-cost conjuncts keep their
// order.
type ReorderConditions struct{}

func (*ReorderConditions) Name() string { return "reorder-conditions" }

func (*ReorderConditions) Transform(unit *ram.TranslationUnit) bool {
	prog := unit.Program
	changed := false
	for _, q := range queries(prog) {
		for _, op := range chainOf(q) {
			f, ok := op.(*ram.Filter)
			if !ok {
				continue
			}
			conds := ram.ToConjunctionList(f.Cond)
			if len(conds) < 2 {
				continue
			}
			sorted := append([]ram.Condition{}, conds...)
			sort.SliceStable(sorted, func(i, j int) bool {
				return analysis.Complexity(prog, sorted[i]) < analysis.Complexity(prog, sorted[j])
			})
			if !equalConds(conds, sorted) {
				f.Cond = ram.ToCondition(sorted)
				changed = true
			}
		}
	}
	return changed
}

func equalConds(a, b []ram.Condition) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
