package transform

import "github.com/ramble-dl/ramble/ramble/ram"

// ExpandFilter splits every filter holding a conjunction into a chain of
// single-condition filters, so later passes can move and index each conjunct
// independently.
type ExpandFilter struct{}

func (*ExpandFilter) Name() string { return "expand-filter" }

func (*ExpandFilter) Transform(unit *ram.TranslationUnit) bool {
	changed := false
	for _, q := range queries(unit.Program) {
		chain := chainOf(q)
		var out []ram.Operation
		queryChanged := false
		for _, op := range chain {
			f, ok := op.(*ram.Filter)
			if !ok {
				out = append(out, op)
				continue
			}
			conds := ram.ToConjunctionList(f.Cond)
			switch len(conds) {
			case 0:
				// A trivially true filter disappears.
				queryChanged = true
			case 1:
				if !f.Cond.Equal(conds[0]) {
					f.Cond = conds[0]
					queryChanged = true
				}
				out = append(out, f)
			default:
				queryChanged = true
				for _, c := range conds {
					out = append(out, &ram.Filter{Cond: c})
				}
			}
		}
		if queryChanged {
			relink(q, out)
			changed = true
		}
	}
	return changed
}
