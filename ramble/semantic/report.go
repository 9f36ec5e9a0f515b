package semantic

import (
	"fmt"
	"strings"

	"github.com/ramble-dl/ramble/ramble/ast"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is one reported problem with a source position.
type Diagnostic struct {
	Severity Severity
	Loc      ast.SrcLoc
	Message  string
}

func (d Diagnostic) String() string {
	if d.Loc.IsSet() {
		return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Report collects diagnostics across a whole pass. Checks keep running after
// an error so a single run surfaces as many problems as possible; the caller
// aborts afterwards if HasErrors reports true.
type Report struct {
	diagnostics []Diagnostic
}

// Errorf records an error diagnostic.
func (r *Report) Errorf(loc ast.SrcLoc, format string, args ...interface{}) {
	r.diagnostics = append(r.diagnostics, Diagnostic{
		Severity: SeverityError,
		Loc:      loc,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Warnf records a warning diagnostic.
func (r *Report) Warnf(loc ast.SrcLoc, format string, args ...interface{}) {
	r.diagnostics = append(r.diagnostics, Diagnostic{
		Severity: SeverityWarning,
		Loc:      loc,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns every collected diagnostic in report order.
func (r *Report) Diagnostics() []Diagnostic {
	return r.diagnostics
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (r *Report) HasErrors() bool {
	for _, d := range r.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error-severity diagnostics.
func (r *Report) ErrorCount() int {
	n := 0
	for _, d := range r.diagnostics {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *Report) String() string {
	var sb strings.Builder
	for _, d := range r.diagnostics {
		sb.WriteString(d.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
