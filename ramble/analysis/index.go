package analysis

import (
	"github.com/ramble-dl/ramble/ramble/ram"
)

// IndexAnalysis computes, for every relation of a RAM program, the minimum
// set of lexicographic orders covering the searches the program performs
// against it, and assigns every search to one of those orders.
type IndexAnalysis struct {
	selections map[string]*Selection
}

// IndexAnalysisFor returns the cached index analysis of the unit, computing
// it after any invalidation.
func IndexAnalysisFor(unit *ram.TranslationUnit) *IndexAnalysis {
	a := unit.Analysis("index", func() ram.Analysis {
		return computeIndexAnalysis(unit.Program)
	})
	return a.(*IndexAnalysis)
}

func (a *IndexAnalysis) Name() string { return "index" }

// Selection returns the index selection for a relation, or nil for nullary
// relations, which are stored as booleans and carry no indexes.
func (a *IndexAnalysis) Selection(relation string) *Selection {
	return a.selections[relation]
}

func computeIndexAnalysis(prog *ram.Program) *IndexAnalysis {
	searches := map[string][]SearchSignature{}
	add := func(relation string, sig SearchSignature) {
		searches[relation] = append(searches[relation], sig)
	}

	if prog.Main != nil {
		ram.Visit(prog.Main, func(n ram.Node) {
			switch node := n.(type) {
			case *ram.IndexScan:
				add(node.Relation, indexScanSignature(node))
			case *ram.ExistenceCheck:
				add(node.Relation, existenceSignature(node.Values))
			case *ram.ProvenanceExistenceCheck:
				add(node.Relation, provenanceSignature(prog, node))
			}
		})

		// Swapped relations trade contents inside fixpoint loops, so each
		// must carry the other's searches as well.
		ram.Visit(prog.Main, func(n ram.Node) {
			if swap, ok := n.(*ram.Swap); ok {
				union := append([]SearchSignature{}, searches[swap.First]...)
				union = append(union, searches[swap.Second]...)
				searches[swap.First] = union
				searches[swap.Second] = append([]SearchSignature{}, union...)
			}
		})
	}

	a := &IndexAnalysis{selections: map[string]*Selection{}}
	for name, rel := range prog.Relations {
		if rel.TotalArity() == 0 {
			continue
		}
		sigs := searches[name]
		// Insert membership checks through the full signature so every
		// relation has a master index usable for duplicate elimination.
		full := FullSignature(rel.Arity, rel.AuxArity)
		sigs = append(sigs, full)
		fullKey := ""
		if rel.AuxArity > 0 {
			// Provenance walkers address tuples through index 0.
			fullKey = full.Key()
		}
		a.selections[name] = solveSelection(rel.TotalArity(), sigs, fullKey)
	}
	return a
}

func indexScanSignature(scan *ram.IndexScan) SearchSignature {
	sig := NewSearchSignature(len(scan.Low))
	for i := range scan.Low {
		_, lowUndef := scan.Low[i].(*ram.UndefValue)
		_, highUndef := scan.High[i].(*ram.UndefValue)
		switch {
		case lowUndef && highUndef:
		case !lowUndef && !highUndef && scan.Low[i].Equal(scan.High[i]):
			sig[i] = Equal
		default:
			sig[i] = Inequal
		}
	}
	return sig
}

func existenceSignature(values []ram.Expression) SearchSignature {
	sig := NewSearchSignature(len(values))
	for i, v := range values {
		if _, undef := v.(*ram.UndefValue); !undef {
			sig[i] = Equal
		}
	}
	return sig
}

func provenanceSignature(prog *ram.Program, check *ram.ProvenanceExistenceCheck) SearchSignature {
	aux := 2
	if rel := prog.Relation(check.Relation); rel != nil {
		aux = rel.AuxArity
	}
	sig := NewSearchSignature(len(check.Values) + aux)
	for i, v := range check.Values {
		if _, undef := v.(*ram.UndefValue); !undef {
			sig[i] = Equal
		}
	}
	if aux > 0 {
		// The last auxiliary column is the derivation level, constrained by
		// an upper bound; the rule id column stays free.
		sig[len(sig)-1] = Inequal
	}
	return sig
}
