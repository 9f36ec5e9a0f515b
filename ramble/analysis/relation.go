// Package analysis derives read-only views over RAM programs: the relation
// environment, tuple-id levels, condition cost estimates, and the automatic
// index selection that assigns every search a lexicographic order.
package analysis

import (
	"fmt"

	"github.com/ramble-dl/ramble/ramble/ram"
)

// RelationAnalysis resolves relation names referenced by RAM nodes. Every
// reference produced by the translator must resolve; an unknown name is a
// compiler bug.
type RelationAnalysis struct {
	prog *ram.Program
}

// RelationAnalysisFor returns the cached relation analysis of the unit.
func RelationAnalysisFor(unit *ram.TranslationUnit) *RelationAnalysis {
	a := unit.Analysis("relation", func() ram.Analysis {
		return &RelationAnalysis{prog: unit.Program}
	})
	return a.(*RelationAnalysis)
}

func (a *RelationAnalysis) Name() string { return "relation" }

// Lookup returns the relation declaration; it panics on an unknown name.
func (a *RelationAnalysis) Lookup(name string) *ram.Relation {
	rel := a.prog.Relation(name)
	if rel == nil {
		panic(fmt.Sprintf("analysis: reference to unknown relation %s", name))
	}
	return rel
}
