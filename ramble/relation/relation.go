// Package relation implements the in-memory tuple stores the interpreter
// evaluates against. An indexed relation keeps one B-tree per lexicographic
// order chosen by index selection; all trees hold tuples in declared column
// order and differ only in comparison order, so no decoding step is needed
// on the way out. Nullary relations degenerate to a boolean and equivalence
// relations to a union-find.
package relation

import (
	"fmt"

	"github.com/ramble-dl/ramble/ramble"
)

// Tuple is one stored row, declared columns first, auxiliary columns last.
type Tuple []ramble.RamDomain

// Clone returns an independent copy of the tuple.
func (t Tuple) Clone() Tuple {
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

func (t Tuple) String() string {
	return fmt.Sprint([]ramble.RamDomain(t))
}

// compareTuple orders a against b by the given column permutation.
func compareTuple(a, b Tuple, order []int) int {
	for _, col := range order {
		switch {
		case a[col] < b[col]:
			return -1
		case a[col] > b[col]:
			return 1
		}
	}
	return 0
}

// Iterator walks tuples forward. Iterators are move-only and remain valid
// under concurrent inserts into the relation they came from; they observe
// the relation as of their creation.
type Iterator interface {
	// Next advances to the next tuple.
	Next() bool
	// Tuple returns the current tuple. The slice is owned by the store and
	// must not be mutated.
	Tuple() Tuple
}

// View is one index of a relation. Bounds are full-width tuples in declared
// column order; both are inclusive under the view's comparison order.
type View interface {
	// Contains reports whether any tuple falls within [low, high].
	Contains(low, high Tuple) bool
	// Range iterates the tuples within [low, high].
	Range(low, high Tuple) Iterator
	// PartitionRange splits [low, high] into at most k non-overlapping
	// chunks that together cover the same tuples.
	PartitionRange(low, high Tuple, k int) []Iterator
	// PartitionScan splits the full relation into at most k chunks.
	PartitionScan(k int) []Iterator
	// Order returns the column permutation the view sorts by.
	Order() []int
}

// Relation is the store behind one RAM relation.
type Relation interface {
	// Insert adds the tuple, reporting whether it was new. Safe for
	// concurrent use.
	Insert(t Tuple) bool
	// Contains reports exact membership.
	Contains(t Tuple) bool
	Size() int
	// Purge drops every tuple.
	Purge()
	// Scan iterates the whole relation in master-index order.
	Scan() Iterator
	// View returns the index with the given id. Id 0 is the master index.
	View(index int) View
	// IndexOrder returns the column permutation of the given index.
	IndexOrder(index int) []int
	Arity() int
}

// New builds the store for a declared relation: arity 0 becomes a boolean,
// equivalence relations a union-find, everything else a B-tree store over
// the selected orders.
func New(arity int, rep ramble.RelationRepresentation, orders [][]int) Relation {
	switch {
	case arity == 0:
		return NewNullary()
	case rep == ramble.EqRelRepresentation:
		return NewEqRel()
	default:
		return NewIndexed(arity, orders)
	}
}

// sliceIterator walks an already materialized chunk.
type sliceIterator struct {
	tuples []Tuple
	pos    int
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.tuples) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Tuple() Tuple { return it.tuples[it.pos] }

func newSliceIterator(tuples []Tuple) Iterator {
	return &sliceIterator{tuples: tuples, pos: -1}
}

// splitChunks cuts the tuples into at most k contiguous iterators.
func splitChunks(tuples []Tuple, k int) []Iterator {
	if k < 1 {
		k = 1
	}
	if k > len(tuples) {
		k = len(tuples)
	}
	if k == 0 {
		return []Iterator{newSliceIterator(nil)}
	}
	out := make([]Iterator, 0, k)
	size := (len(tuples) + k - 1) / k
	for start := 0; start < len(tuples); start += size {
		end := start + size
		if end > len(tuples) {
			end = len(tuples)
		}
		out = append(out, newSliceIterator(tuples[start:end]))
	}
	return out
}
