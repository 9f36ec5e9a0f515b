package ram

import (
	"fmt"
	"sort"
	"strings"
)

// Statement is top-level control flow around queries.
type Statement interface {
	Node
	printer
	statement()
}

// Query executes one nested operation tree.
type Query struct {
	Op Operation
}

func (*Query) statement() {}

func (q *Query) Clone() Node {
	return &Query{Op: q.Op.Clone().(Operation)}
}

func (q *Query) Equal(other Node) bool {
	o, ok := other.(*Query)
	return ok && q.Op.Equal(o.Op)
}

func (q *Query) Children() []Node { return []Node{q.Op} }

func (q *Query) Apply(m Mapper) { q.Op = mapTo(m, q.Op) }

func (q *Query) String() string { return renderBlock(q) }

func (q *Query) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	sb.WriteString("QUERY\n")
	q.Op.print(sb, depth+1)
}

// Sequence runs statements one after another.
type Sequence struct {
	Stmts []Statement
}

func (*Sequence) statement() {}

func (s *Sequence) Clone() Node {
	return &Sequence{Stmts: cloneNodes(s.Stmts)}
}

func (s *Sequence) Equal(other Node) bool {
	o, ok := other.(*Sequence)
	return ok && equalNodes(s.Stmts, o.Stmts)
}

func (s *Sequence) Children() []Node { return statementChildren(s.Stmts) }

func (s *Sequence) Apply(m Mapper) { applyNodes(m, s.Stmts) }

func (s *Sequence) String() string { return renderBlock(s) }

func (s *Sequence) print(sb *strings.Builder, depth int) {
	for _, stmt := range s.Stmts {
		stmt.print(sb, depth)
	}
}

// Parallel runs statements concurrently; they must write disjoint relations.
type Parallel struct {
	Stmts []Statement
}

func (*Parallel) statement() {}

func (p *Parallel) Clone() Node {
	return &Parallel{Stmts: cloneNodes(p.Stmts)}
}

func (p *Parallel) Equal(other Node) bool {
	o, ok := other.(*Parallel)
	return ok && equalNodes(p.Stmts, o.Stmts)
}

func (p *Parallel) Children() []Node { return statementChildren(p.Stmts) }

func (p *Parallel) Apply(m Mapper) { applyNodes(m, p.Stmts) }

func (p *Parallel) String() string { return renderBlock(p) }

func (p *Parallel) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	sb.WriteString("PARALLEL\n")
	for _, stmt := range p.Stmts {
		stmt.print(sb, depth+1)
	}
	writeIndent(sb, depth)
	sb.WriteString("END PARALLEL\n")
}

// Loop repeats its body until an Exit condition inside fires.
type Loop struct {
	Body Statement
}

func (*Loop) statement() {}

func (l *Loop) Clone() Node {
	return &Loop{Body: l.Body.Clone().(Statement)}
}

func (l *Loop) Equal(other Node) bool {
	o, ok := other.(*Loop)
	return ok && l.Body.Equal(o.Body)
}

func (l *Loop) Children() []Node { return []Node{l.Body} }

func (l *Loop) Apply(m Mapper) { l.Body = mapTo(m, l.Body) }

func (l *Loop) String() string { return renderBlock(l) }

func (l *Loop) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	sb.WriteString("LOOP\n")
	l.Body.print(sb, depth+1)
	writeIndent(sb, depth)
	sb.WriteString("END LOOP\n")
}

// Exit leaves the innermost enclosing loop when its condition holds.
type Exit struct {
	Cond Condition
}

func (*Exit) statement() {}

func (e *Exit) Clone() Node {
	return &Exit{Cond: e.Cond.Clone().(Condition)}
}

func (e *Exit) Equal(other Node) bool {
	o, ok := other.(*Exit)
	return ok && e.Cond.Equal(o.Cond)
}

func (e *Exit) Children() []Node { return []Node{e.Cond} }

func (e *Exit) Apply(m Mapper) { e.Cond = mapTo(m, e.Cond) }

func (e *Exit) String() string { return renderBlock(e) }

func (e *Exit) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "EXIT %s\n", e.Cond)
}

// Swap exchanges the contents of two relations of identical signature.
type Swap struct {
	First  string
	Second string
}

func (*Swap) statement() {}

func (s *Swap) Clone() Node {
	cp := *s
	return &cp
}

func (s *Swap) Equal(other Node) bool {
	o, ok := other.(*Swap)
	return ok && o.First == s.First && o.Second == s.Second
}

func (s *Swap) Children() []Node { return nil }
func (s *Swap) Apply(Mapper)     {}

func (s *Swap) String() string { return renderBlock(s) }

func (s *Swap) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "SWAP (%s, %s)\n", s.First, s.Second)
}

// Clear removes every tuple from a relation.
type Clear struct {
	Relation string
}

func (*Clear) statement() {}

func (c *Clear) Clone() Node {
	cp := *c
	return &cp
}

func (c *Clear) Equal(other Node) bool {
	o, ok := other.(*Clear)
	return ok && o.Relation == c.Relation
}

func (c *Clear) Children() []Node { return nil }
func (c *Clear) Apply(Mapper)     {}

func (c *Clear) String() string { return renderBlock(c) }

func (c *Clear) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "CLEAR %s\n", c.Relation)
}

// Extend merges the equivalence classes of the source relation into the
// target; both must use the equivalence representation.
type Extend struct {
	Target string
	Source string
}

func (*Extend) statement() {}

func (e *Extend) Clone() Node {
	cp := *e
	return &cp
}

func (e *Extend) Equal(other Node) bool {
	o, ok := other.(*Extend)
	return ok && o.Target == e.Target && o.Source == e.Source
}

func (e *Extend) Children() []Node { return nil }
func (e *Extend) Apply(Mapper)     {}

func (e *Extend) String() string { return renderBlock(e) }

func (e *Extend) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "EXTEND %s WITH %s\n", e.Target, e.Source)
}

// IOMode selects the direction of an IO statement.
type IOMode int

const (
	IOLoad IOMode = iota
	IOStore
	IOPrintSize
)

func (m IOMode) String() string {
	switch m {
	case IOLoad:
		return "LOAD"
	case IOStore:
		return "STORE"
	case IOPrintSize:
		return "PRINTSIZE"
	}
	return fmt.Sprintf("IOMode(%d)", int(m))
}

// IO loads facts into or stores tuples out of a relation.
type IO struct {
	Mode     IOMode
	Relation string
	Params   map[string]string
}

func (*IO) statement() {}

func (io *IO) Clone() Node {
	cp := &IO{Mode: io.Mode, Relation: io.Relation}
	if io.Params != nil {
		cp.Params = make(map[string]string, len(io.Params))
		for k, v := range io.Params {
			cp.Params[k] = v
		}
	}
	return cp
}

func (io *IO) Equal(other Node) bool {
	o, ok := other.(*IO)
	if !ok || o.Mode != io.Mode || o.Relation != io.Relation || len(o.Params) != len(io.Params) {
		return false
	}
	for k, v := range io.Params {
		if ov, found := o.Params[k]; !found || ov != v {
			return false
		}
	}
	return true
}

func (io *IO) Children() []Node { return nil }
func (io *IO) Apply(Mapper)     {}

func (io *IO) String() string { return renderBlock(io) }

func (io *IO) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	if len(io.Params) == 0 {
		fmt.Fprintf(sb, "%s %s\n", io.Mode, io.Relation)
		return
	}
	keys := make([]string, 0, len(io.Params))
	for k := range io.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, io.Params[k])
	}
	fmt.Fprintf(sb, "%s %s (%s)\n", io.Mode, io.Relation, strings.Join(parts, ", "))
}

// DebugInfo labels a nested statement with the source construct it came
// from; the debug report groups output by these labels.
type DebugInfo struct {
	Message string
	Stmt    Statement
}

func (*DebugInfo) statement() {}

func (d *DebugInfo) Clone() Node {
	return &DebugInfo{Message: d.Message, Stmt: d.Stmt.Clone().(Statement)}
}

func (d *DebugInfo) Equal(other Node) bool {
	o, ok := other.(*DebugInfo)
	return ok && o.Message == d.Message && d.Stmt.Equal(o.Stmt)
}

func (d *DebugInfo) Children() []Node { return []Node{d.Stmt} }

func (d *DebugInfo) Apply(m Mapper) { d.Stmt = mapTo(m, d.Stmt) }

func (d *DebugInfo) String() string { return renderBlock(d) }

func (d *DebugInfo) print(sb *strings.Builder, depth int) {
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "BEGIN %s\n", d.Message)
	d.Stmt.print(sb, depth+1)
	writeIndent(sb, depth)
	fmt.Fprintf(sb, "END %s\n", d.Message)
}

func statementChildren(stmts []Statement) []Node {
	if len(stmts) == 0 {
		return nil
	}
	children := make([]Node, len(stmts))
	for i, s := range stmts {
		children[i] = s
	}
	return children
}
