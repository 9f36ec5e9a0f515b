package transform

import (
	"github.com/ramble-dl/ramble/ramble/analysis"
	"github.com/ramble-dl/ramble/ramble/ram"
)

// HoistAggregate lifts aggregates towards the outermost position their
// dependencies allow, so a whole-relation fold is not recomputed once per
// tuple of an unrelated outer scan. Exactly one aggregate moves per
// invocation; the pipeline reaches the fixpoint by re-running the pass.
type HoistAggregate struct{}

func (*HoistAggregate) Name() string { return "hoist-aggregate" }

func (*HoistAggregate) Transform(unit *ram.TranslationUnit) bool {
	for _, q := range queries(unit.Program) {
		chain := chainOf(q)
		for i, op := range chain {
			agg, ok := op.(*ram.Aggregate)
			if !ok {
				continue
			}
			target, ok := hoistTarget(chain, agg)
			if !ok || target >= i {
				continue
			}
			if onlyAggregates(chain[target:i]) {
				// Swapping adjacent aggregates back and forth would never
				// terminate; a pure aggregate prefix is already hoisted.
				continue
			}
			out := make([]ram.Operation, 0, len(chain))
			out = append(out, chain[:target]...)
			out = append(out, agg)
			out = append(out, chain[target:i]...)
			out = append(out, chain[i+1:]...)
			relink(q, out)
			return true
		}
	}
	return false
}

// hoistTarget is the outermost chain position the aggregate may occupy: the
// top of the query when it depends on no outer tuple, otherwise directly
// under the operation binding its highest dependency. Filters already
// evaluable at that point stay above the aggregate, keeping this pass stable
// against condition hoisting.
func hoistTarget(chain []ram.Operation, agg *ram.Aggregate) (int, bool) {
	level := dependencyLevel(agg)
	target := -1
	if level < 0 {
		target = 0
	} else {
		for i, op := range chain {
			if tup, ok := op.(ram.TupleOperation); ok && tup.TupleID() == level {
				target = i + 1
				break
			}
		}
		if target < 0 {
			return 0, false
		}
	}
	for target < len(chain) {
		f, ok := chain[target].(*ram.Filter)
		if !ok || analysis.Level(f.Cond) > level {
			break
		}
		target++
	}
	return target, true
}

// dependencyLevel is the highest tuple id the aggregate reads, ignoring the
// id it binds itself: the condition legitimately constrains the scanned
// tuple.
func dependencyLevel(agg *ram.Aggregate) int {
	level := -1
	probe := func(n ram.Node) {
		if elem, ok := n.(*ram.TupleElement); ok && elem.TupleID != agg.ID && elem.TupleID > level {
			level = elem.TupleID
		}
	}
	ram.Visit(agg.Expr, probe)
	ram.Visit(agg.Cond, probe)
	return level
}

func onlyAggregates(ops []ram.Operation) bool {
	for _, op := range ops {
		if _, ok := op.(*ram.Aggregate); !ok {
			return false
		}
	}
	return true
}
