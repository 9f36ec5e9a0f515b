package ram

import (
	"fmt"
	"strings"

	"github.com/ramble-dl/ramble/ramble"
)

// Relation describes one relation of a RAM program. Auxiliary attributes
// carry provenance metadata; they are stored with every tuple but excluded
// from search-key semantics.
type Relation struct {
	Name           string
	Arity          int
	AuxArity       int
	AttributeNames []string
	AttributeTypes []ramble.TypeAttribute
	Representation ramble.RelationRepresentation
}

// TotalArity is the stored width: declared plus auxiliary columns.
func (r *Relation) TotalArity() int { return r.Arity + r.AuxArity }

// IsTemp reports whether the relation is a compiler-generated temporary.
func (r *Relation) IsTemp() bool { return strings.HasPrefix(r.Name, "@") }

// IsNullary reports whether the relation carries no declared columns.
func (r *Relation) IsNullary() bool { return r.Arity == 0 }

func (r *Relation) String() string {
	cols := make([]string, len(r.AttributeNames))
	for i, name := range r.AttributeNames {
		cols[i] = fmt.Sprintf("%s:%s", name, r.AttributeTypes[i])
	}
	s := fmt.Sprintf("%s(%s)", r.Name, strings.Join(cols, ", "))
	if r.Representation != ramble.DefaultRepresentation {
		s += " " + r.Representation.String()
	}
	if r.AuxArity > 0 {
		s += fmt.Sprintf(" aux=%d", r.AuxArity)
	}
	return s
}
