package analysis

import "strings"

// AttributeConstraint is the per-column component of a search signature.
type AttributeConstraint uint8

const (
	// None leaves the column unconstrained.
	None AttributeConstraint = iota
	// Equal constrains the column to a single value.
	Equal
	// Inequal constrains the column to a range; it must come last in any
	// lexicographic order serving the search.
	Inequal
)

// SearchSignature records, per column of a relation, how a RAM operation
// constrains that column. Signatures are plain slices so relations of any
// width are supported; nothing here depends on machine-word bitsets.
type SearchSignature []AttributeConstraint

// NewSearchSignature returns an unconstrained signature of the given width.
func NewSearchSignature(arity int) SearchSignature {
	return make(SearchSignature, arity)
}

// FullSignature returns a signature with every column of the declared arity
// set to Equal; auxiliary columns beyond the declared arity stay None.
func FullSignature(arity, auxArity int) SearchSignature {
	sig := make(SearchSignature, arity+auxArity)
	for i := 0; i < arity; i++ {
		sig[i] = Equal
	}
	return sig
}

// Key renders the signature as a map key.
func (s SearchSignature) Key() string {
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case Equal:
			sb.WriteByte('e')
		case Inequal:
			sb.WriteByte('i')
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func (s SearchSignature) String() string { return s.Key() }

// IsEmpty reports whether no column is constrained.
func (s SearchSignature) IsEmpty() bool {
	for _, c := range s {
		if c != None {
			return false
		}
	}
	return true
}

// Cardinality counts the constrained columns.
func (s SearchSignature) Cardinality() int {
	n := 0
	for _, c := range s {
		if c != None {
			n++
		}
	}
	return n
}

// ContainsInequality reports whether any column carries a range constraint.
func (s SearchSignature) ContainsInequality() bool {
	for _, c := range s {
		if c == Inequal {
			return true
		}
	}
	return false
}

// EqualColumns returns the Equal columns in ascending order.
func (s SearchSignature) EqualColumns() []int {
	var cols []int
	for i, c := range s {
		if c == Equal {
			cols = append(cols, i)
		}
	}
	return cols
}

// InequalColumns returns the Inequal columns in ascending order.
func (s SearchSignature) InequalColumns() []int {
	var cols []int
	for i, c := range s {
		if c == Inequal {
			cols = append(cols, i)
		}
	}
	return cols
}

// Equal reports signature equality.
func (s SearchSignature) Equal(other SearchSignature) bool {
	if len(s) != len(other) {
		return false
	}
	for i, c := range s {
		if other[i] != c {
			return false
		}
	}
	return true
}

// Precedes reports whether this search can serve as a strict prefix stage of
// the other on a shared index: its constrained columns are a strict subset
// of the other's. A search carrying an inequality never precedes anything,
// because its range column must stay last in the order that serves it.
func (s SearchSignature) Precedes(other SearchSignature) bool {
	if len(s) != len(other) || s.ContainsInequality() {
		return false
	}
	strict := false
	for i, c := range s {
		if c != None && other[i] == None {
			return false
		}
		if c == None && other[i] != None {
			strict = true
		}
	}
	return strict
}
