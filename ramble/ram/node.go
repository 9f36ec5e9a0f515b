// Package ram defines the relational algebra machine IR: the target of
// clause translation and the input of both execution backends.
//
// The IR has four disjoint node families:
//   - Expression: computes one value from bound tuples (expression.go)
//   - Condition: boolean tests over bound tuples (condition.go)
//   - Operation: nested loop-forming constructs inside a query (operation.go)
//   - Statement: top-level control flow between queries (statement.go)
//
// Operations nest inward: the outermost scan binds the smallest tuple id,
// the innermost leaf inserts into a relation. TupleElement(id, col) reads
// column col of the row bound by the operation with that id.
package ram

import (
	"fmt"
	"strings"
)

// Node is the uniform interface over all four IR families.
type Node interface {
	// Clone returns a deep copy sharing no mutable state with the receiver.
	Clone() Node
	// Equal reports structural equality: same kind, fields, and children.
	Equal(other Node) bool
	// Children returns the direct children in declared order.
	Children() []Node
	// Apply replaces every direct child c with mapper(c). A mapper must
	// return a non-nil node acceptable for the child's slot.
	Apply(mapper Mapper)
	String() string
}

// Mapper rewrites a node, taking ownership of its argument and returning
// fresh ownership of the replacement.
type Mapper func(Node) Node

func mapTo[T Node](m Mapper, child T) T {
	replaced := m(child)
	if replaced == nil {
		panic("ram: mapper returned nil node")
	}
	typed, ok := replaced.(T)
	if !ok {
		panic(fmt.Sprintf("ram: mapper returned %T for a %T slot", replaced, child))
	}
	return typed
}

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

func applyNodes[T Node](m Mapper, nodes []T) {
	for i, n := range nodes {
		nodes[i] = mapTo(m, n)
	}
}

func joinNodes[T Node](nodes []T, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}

// Visit walks the tree depth-first in pre-order.
func Visit(root Node, fn func(Node)) {
	if root == nil {
		return
	}
	fn(root)
	for _, child := range root.Children() {
		Visit(child, fn)
	}
}

// indentation used by the multi-line statement and operation printers.
const indentStep = "  "

func writeIndent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString(indentStep)
	}
}

// printer is implemented by statements and operations that render as
// indented blocks.
type printer interface {
	print(sb *strings.Builder, depth int)
}

func renderBlock(p printer) string {
	var sb strings.Builder
	p.print(&sb, 0)
	return strings.TrimRight(sb.String(), "\n")
}
