// Package ast defines the syntax tree for ramble Datalog programs.
//
// File organization:
//   - node.go: Node interface, mappers, source locations, qualified names
//   - argument.go: argument nodes (variables, constants, functors, records)
//   - literal.go: body literals (atoms, negations, constraints)
//   - program.go: program-level nodes (relations, clauses, types, directives)
//   - visit.go: generic traversal helpers
//
// Every node owns its children exclusively; trees are acyclic. Clone performs
// a deep copy, Equal compares kind then fields then children. Source
// locations never participate in Equal.
package ast

import (
	"fmt"
	"strings"
)

// SrcLoc identifies a position in a source file.
type SrcLoc struct {
	File   string
	Line   int
	Column int
}

// IsSet reports whether the location was filled in by the parser.
func (l SrcLoc) IsSet() bool {
	return l.Line > 0
}

func (l SrcLoc) String() string {
	if !l.IsSet() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Node is the uniform interface implemented by every AST node.
type Node interface {
	// Clone returns a deep copy sharing no mutable state with the receiver.
	Clone() Node
	// Equal reports structural equality: same kind, same fields, equal
	// children. Source locations are ignored.
	Equal(other Node) bool
	// Children returns the direct children in declared order.
	Children() []Node
	// Apply replaces every direct child c with mapper(c). A mapper must
	// return a non-nil node of a kind acceptable for the child's slot;
	// anything else is a compiler bug and panics.
	Apply(mapper Mapper)
	// String renders the node in surface syntax.
	String() string
	// Loc returns the source location attached by the parser.
	Loc() SrcLoc
	// SetLoc attaches a source location.
	SetLoc(loc SrcLoc)
}

// Mapper rewrites a node, taking ownership of its argument and returning
// fresh ownership of the replacement.
type Mapper func(Node) Node

// base carries the source location shared by all node kinds.
type base struct {
	loc SrcLoc
}

func (b *base) Loc() SrcLoc       { return b.loc }
func (b *base) SetLoc(loc SrcLoc) { b.loc = loc }

// mapTo applies a mapper to a child and asserts the replacement kind.
// Used by every Apply implementation to enforce slot types.
func mapTo[T Node](m Mapper, child T) T {
	replaced := m(child)
	if replaced == nil {
		panic("ast: mapper returned nil node")
	}
	typed, ok := replaced.(T)
	if !ok {
		panic(fmt.Sprintf("ast: mapper returned %T for a %T slot", replaced, child))
	}
	return typed
}

// Reserved name prefixes for compiler-generated relation variants.
const (
	DeltaPrefix = "@delta_"
	NewPrefix   = "@new_"
	InfoPrefix  = "@info_"
)

// QualifiedName is a non-empty ordered sequence of identifier segments.
// It is a value type; the zero value is the empty (invalid) name.
type QualifiedName struct {
	segments []string
}

// NewQualifiedName builds a qualified name from segments.
func NewQualifiedName(segments ...string) QualifiedName {
	return QualifiedName{segments: append([]string(nil), segments...)}
}

// ParseQualifiedName splits a dotted identifier into a qualified name.
func ParseQualifiedName(s string) QualifiedName {
	return QualifiedName{segments: strings.Split(s, ".")}
}

// Segments returns the identifier segments.
func (q QualifiedName) Segments() []string {
	return q.segments
}

// IsEmpty reports whether the name has no segments.
func (q QualifiedName) IsEmpty() bool {
	return len(q.segments) == 0
}

// Equal reports segment-wise equality.
func (q QualifiedName) Equal(other QualifiedName) bool {
	if len(q.segments) != len(other.segments) {
		return false
	}
	for i, seg := range q.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// Compare orders names lexicographically over segments.
func (q QualifiedName) Compare(other QualifiedName) int {
	n := len(q.segments)
	if len(other.segments) < n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(q.segments[i], other.segments[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(q.segments) < len(other.segments):
		return -1
	case len(q.segments) > len(other.segments):
		return 1
	default:
		return 0
	}
}

func (q QualifiedName) String() string {
	return strings.Join(q.segments, ".")
}

// cloneNodes deep-copies a slice of nodes of a concrete kind.
func cloneNodes[T Node](nodes []T) []T {
	if nodes == nil {
		return nil
	}
	out := make([]T, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone().(T)
	}
	return out
}

// equalNodes compares two node slices element-wise.
func equalNodes[T Node](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// applyNodes maps every element of a child slice in place.
func applyNodes[T Node](m Mapper, nodes []T) {
	for i, n := range nodes {
		nodes[i] = mapTo(m, n)
	}
}

// joinNodes renders a node slice with a separator.
func joinNodes[T Node](nodes []T, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}
