// Package transform hosts the RAM optimizer passes and the pipeline that
// runs them to fixpoint. Every pass implements the same contract: report
// whether it changed the program, so the pipeline can invalidate cached
// analyses exactly when needed.
package transform

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sirupsen/logrus"

	"github.com/ramble-dl/ramble/ramble/ram"
)

// Transformer is one rewriting pass over a translation unit.
type Transformer interface {
	Name() string
	// Transform rewrites the unit's program in place and reports whether
	// anything changed.
	Transform(unit *ram.TranslationUnit) bool
}

// DebugReport accumulates one section per effective pass application, with
// the program change rendered as a patch.
type DebugReport struct {
	sections []ReportSection
}

// ReportSection is one pass application.
type ReportSection struct {
	Title string
	Diff  string
}

// Add records a section; no-op diffs are kept out of the report.
func (r *DebugReport) Add(title, before, after string) {
	if before == after {
		return
	}
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(before, after)
	r.sections = append(r.sections, ReportSection{Title: title, Diff: dmp.PatchToText(patches)})
}

// Sections returns the recorded sections in application order.
func (r *DebugReport) Sections() []ReportSection {
	return r.sections
}

// WriteTo renders the report as plain text.
func (r *DebugReport) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, sec := range r.sections {
		n, err := fmt.Fprintf(w, "=== %d. %s ===\n%s\n", i+1, sec.Title, sec.Diff)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *DebugReport) String() string {
	var sb strings.Builder
	r.WriteTo(&sb)
	return sb.String()
}

// Pipeline runs a fixed sequence of passes, iterating the whole sequence
// until a full round changes nothing.
type Pipeline struct {
	passes []Transformer

	// Report, when non-nil, receives a section per effective application.
	Report *DebugReport
	// MaxRounds caps fixpoint iteration against cyclic pass interactions.
	MaxRounds int
}

// NewPipeline builds a pipeline over the given passes.
func NewPipeline(passes ...Transformer) *Pipeline {
	return &Pipeline{passes: passes, MaxRounds: 16}
}

// DefaultPipeline is the standard optimization sequence.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		&ExpandFilter{},
		&HoistConditions{},
		&MakeIndex{},
		&HoistAggregate{},
		&ReorderConditions{},
	)
}

// Apply runs the pipeline and reports whether any pass changed the program.
func (p *Pipeline) Apply(unit *ram.TranslationUnit) bool {
	anyChange := false
	for round := 0; round < p.MaxRounds; round++ {
		roundChanged := false
		for _, pass := range p.passes {
			var before string
			if p.Report != nil {
				before = unit.Program.String()
			}
			if !pass.Transform(unit) {
				continue
			}
			roundChanged = true
			anyChange = true
			unit.Invalidate()
			logrus.WithFields(logrus.Fields{
				"pass":  pass.Name(),
				"round": round,
			}).Debug("transform changed program")
			if p.Report != nil {
				p.Report.Add(pass.Name(), before, unit.Program.String())
			}
		}
		if !roundChanged {
			return anyChange
		}
	}
	logrus.WithField("rounds", p.MaxRounds).Warn("transform pipeline hit iteration cap")
	return anyChange
}
