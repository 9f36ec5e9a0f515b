package semantic

import (
	"sort"

	"github.com/ramble-dl/ramble/ramble/ast"
)

// PrecedenceGraph records which relations each relation's rules read from.
// An edge is negative when the dependency flows through a negation or an
// aggregate body; negative edges inside a single stratum make the program
// unstratifiable.
type PrecedenceGraph struct {
	// nodes in deterministic order
	names []string
	// edges[from] = dependents, i.e. heads whose bodies mention from
	edges map[string]map[string]bool
	// negative[from][to] marks at least one negated/aggregated use
	negative map[string]map[string]bool
}

// NewPrecedenceGraph builds the graph over all declared relations.
// References to undeclared relations are skipped; the checks report those
// separately.
func NewPrecedenceGraph(prog *ast.Program) *PrecedenceGraph {
	g := &PrecedenceGraph{
		edges:    map[string]map[string]bool{},
		negative: map[string]map[string]bool{},
	}
	declared := map[string]bool{}
	for _, rel := range prog.Relations {
		name := rel.Name.String()
		if !declared[name] {
			declared[name] = true
			g.names = append(g.names, name)
		}
	}
	sort.Strings(g.names)

	addEdge := func(from, to string, neg bool) {
		if !declared[from] || !declared[to] {
			return
		}
		if g.edges[from] == nil {
			g.edges[from] = map[string]bool{}
		}
		g.edges[from][to] = true
		if neg {
			if g.negative[from] == nil {
				g.negative[from] = map[string]bool{}
			}
			g.negative[from][to] = true
		}
	}

	for _, clause := range prog.Clauses {
		head := clause.Head.Name.String()
		for _, lit := range clause.Body {
			switch l := lit.(type) {
			case *ast.Atom:
				addEdge(l.Name.String(), head, false)
			case *ast.Negation:
				addEdge(l.Atom.Name.String(), head, true)
			case *ast.BinaryConstraint:
				// Aggregates nested in constraints depend negatively:
				// the aggregated relation must be complete first.
				ast.VisitAtoms(l, func(atom *ast.Atom) {
					addEdge(atom.Name.String(), head, true)
				})
			}
		}
	}
	return g
}

// Dependents returns the relations that read from the given one, sorted.
func (g *PrecedenceGraph) Dependents(name string) []string {
	out := make([]string, 0, len(g.edges[name]))
	for to := range g.edges[name] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// IsNegative reports whether any dependency from one relation to another
// flows through a negation or aggregate.
func (g *PrecedenceGraph) IsNegative(from, to string) bool {
	return g.negative[from][to]
}

// SCCs computes the strongly connected components of the graph in
// topological order: every relation a component reads from lives in an
// earlier component (or the same one).
func (g *PrecedenceGraph) SCCs() [][]string {
	t := &tarjan{
		graph:   g,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	for _, name := range g.names {
		if _, visited := t.index[name]; !visited {
			t.strongConnect(name)
		}
	}
	// Components pop in reverse topological order.
	for i, j := 0, len(t.components)-1; i < j; i, j = i+1, j-1 {
		t.components[i], t.components[j] = t.components[j], t.components[i]
	}
	return t.components
}

type tarjan struct {
	graph      *PrecedenceGraph
	counter    int
	index      map[string]int
	lowlink    map[string]int
	onStack    map[string]bool
	stack      []string
	components [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph.Dependents(v) {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] && t.index[w] < t.lowlink[v] {
			t.lowlink[v] = t.index[w]
		}
	}

	if t.lowlink[v] == t.index[v] {
		var comp []string
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		sort.Strings(comp)
		t.components = append(t.components, comp)
	}
}

// IsRecursiveComponent reports whether a component needs fixpoint
// evaluation: more than one member, or a single member with a self-loop.
func (g *PrecedenceGraph) IsRecursiveComponent(comp []string) bool {
	if len(comp) > 1 {
		return true
	}
	return g.edges[comp[0]][comp[0]]
}
