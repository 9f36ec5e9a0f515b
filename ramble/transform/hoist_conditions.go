package transform

import (
	"github.com/ramble-dl/ramble/ramble/analysis"
	"github.com/ramble-dl/ramble/ramble/ram"
)

// HoistConditions moves every filter to the outermost position where its
// condition is evaluable: tuple-independent filters rise to the top of their
// query, the rest settle directly under the operation binding their highest
// tuple id. Filters landing at the same level keep their relative order.
type HoistConditions struct{}

func (*HoistConditions) Name() string { return "hoist-conditions" }

func (*HoistConditions) Transform(unit *ram.TranslationUnit) bool {
	changed := false
	for _, q := range queries(unit.Program) {
		chain := chainOf(q)

		var stripped []ram.Operation
		byLevel := map[int][]*ram.Filter{}
		for _, op := range chain {
			if f, ok := op.(*ram.Filter); ok {
				level := analysis.Level(f.Cond)
				byLevel[level] = append(byLevel[level], f)
				continue
			}
			stripped = append(stripped, op)
		}

		var out []ram.Operation
		for _, f := range byLevel[-1] {
			out = append(out, f)
		}
		delete(byLevel, -1)
		for _, op := range stripped {
			out = append(out, op)
			if tup, ok := op.(ram.TupleOperation); ok {
				for _, f := range byLevel[tup.TupleID()] {
					out = append(out, f)
				}
				delete(byLevel, tup.TupleID())
			}
		}
		// A filter whose level is bound by no operation cannot move; park it
		// just above the insertion so evaluation order is preserved.
		if len(byLevel) > 0 {
			leaf := out[len(out)-1]
			out = out[:len(out)-1]
			for _, op := range chain {
				if f, ok := op.(*ram.Filter); ok {
					if fs := byLevel[analysis.Level(f.Cond)]; len(fs) > 0 && fs[0] == f {
						out = append(out, f)
						byLevel[analysis.Level(f.Cond)] = fs[1:]
					}
				}
			}
			out = append(out, leaf)
		}

		if !sameChain(chain, out) {
			relink(q, out)
			changed = true
		}
	}
	return changed
}
