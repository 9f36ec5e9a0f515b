// Package ast2ram lowers an analyzed Datalog program to a RAM program: each
// clause becomes a loop nest, each fixpoint stratum a loop with semi-naive
// clause versions. The loop nests come out naive on purpose; the transform
// pipeline hoists filters and introduces index scans afterwards.
package ast2ram

import "github.com/ramble-dl/ramble/ramble/ast"

// Location addresses one column of the tuple bound by an operation.
type Location struct {
	TupleID int
	Column  int
}

// valueIndex records, while a clause is being translated, every place each
// variable is bound. The first recorded location is the variable's
// definition point; later locations become equality constraints against it.
type valueIndex struct {
	vars  map[string][]Location
	order []string

	// generator tuple ids keyed by the aggregator or multi-result functor
	// node that produces them
	generators map[ast.Argument]int
}

func newValueIndex() *valueIndex {
	return &valueIndex{
		vars:       map[string][]Location{},
		generators: map[ast.Argument]int{},
	}
}

func (v *valueIndex) add(name string, loc Location) {
	if _, seen := v.vars[name]; !seen {
		v.order = append(v.order, name)
	}
	v.vars[name] = append(v.vars[name], loc)
}

// definition returns the variable's definition point.
func (v *valueIndex) definition(name string) (Location, bool) {
	locs := v.vars[name]
	if len(locs) == 0 {
		return Location{}, false
	}
	return locs[0], true
}

// locations returns every binding site of the variable, definition first.
func (v *valueIndex) locations(name string) []Location {
	return v.vars[name]
}

// names returns the variables in first-occurrence order.
func (v *valueIndex) names() []string {
	return v.order
}

func (v *valueIndex) setGenerator(node ast.Argument, id int) {
	v.generators[node] = id
}

func (v *valueIndex) generator(node ast.Argument) (int, bool) {
	id, ok := v.generators[node]
	return id, ok
}
