// Package synth derives the specialized relation types a compiled backend
// instantiates: one type per distinct combination of representation,
// attribute-type string, index orders, and search signatures. Relations
// sharing a shape share a type, and recompiling the same program yields
// byte-identical type names.
package synth

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/analysis"
	"github.com/ramble-dl/ramble/ramble/ram"
)

// Shape is the structural identity of a relation type.
type Shape struct {
	Representation ramble.RelationRepresentation
	// Attributes encodes each stored column as one character: f for float,
	// u for unsigned, i for everything else. Auxiliary columns are i.
	Attributes string
	// Orders are the selected lexicographic orders; Orders[0] is the master.
	Orders [][]int
	// Searches are the covered search signatures, one digit per column:
	// 0 unconstrained, 1 equality, 2 inequality.
	Searches []string
}

// ShapeOf computes the shape of one relation under an index selection. A nil
// selection means no search was ever emitted against the relation; it still
// gets its identity order.
func ShapeOf(rel *ram.Relation, sel *analysis.Selection) Shape {
	var attrs strings.Builder
	for _, t := range rel.AttributeTypes {
		attrs.WriteByte(t.Char())
	}
	for i := 0; i < rel.AuxArity; i++ {
		attrs.WriteByte('i')
	}

	shape := Shape{
		Representation: rel.Representation,
		Attributes:     attrs.String(),
	}
	if sel != nil {
		shape.Orders = sel.Orders
		for _, sig := range sel.Searches {
			shape.Searches = append(shape.Searches, signatureCode(sig))
		}
	} else {
		order := make([]int, rel.TotalArity())
		for i := range order {
			order[i] = i
		}
		shape.Orders = [][]int{order}
	}
	return shape
}

func signatureCode(sig analysis.SearchSignature) string {
	code := make([]byte, len(sig))
	for i, c := range sig {
		switch c {
		case analysis.Equal:
			code[i] = '1'
		case analysis.Inequal:
			code[i] = '2'
		default:
			code[i] = '0'
		}
	}
	return string(code)
}

// TypeName renders the shape's canonical name. Equivalence relations and
// nullary relations have a fixed layout, so their names carry no order or
// search components.
func (s Shape) TypeName() string {
	if s.Attributes == "" {
		return "t_nullary"
	}
	if s.Representation == ramble.EqRelRepresentation {
		return "t_eqrel_" + s.Attributes
	}

	var sb strings.Builder
	sb.WriteString("t_")
	switch s.Representation {
	case ramble.BrieRepresentation:
		sb.WriteString("brie")
	case ramble.InfoRepresentation:
		sb.WriteString("info")
	default:
		sb.WriteString("btree")
	}
	sb.WriteByte('_')
	sb.WriteString(s.Attributes)
	for _, order := range s.Orders {
		sb.WriteString("__")
		for i, col := range order {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteString(strconv.Itoa(col))
		}
	}
	for _, sig := range s.Searches {
		sb.WriteString("__")
		sb.WriteString(sig)
	}
	return sb.String()
}

// Assign maps every relation of the unit to its synthesized type name.
// Names depend only on shape, so relations with identical layout and search
// load share one type.
func Assign(unit *ram.TranslationUnit) map[string]string {
	idx := analysis.IndexAnalysisFor(unit)
	names := map[string]string{}
	for name, rel := range unit.Program.Relations {
		names[name] = ShapeOf(rel, idx.Selection(name)).TypeName()
	}
	return names
}

// Types returns the distinct type names of the unit in sorted order, one
// per shape to instantiate.
func Types(unit *ram.TranslationUnit) []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range Assign(unit) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
