package relation

import (
	"fmt"
	"sync"

	"github.com/google/btree"
)

const (
	btreeDegree = 32
	// scanBatch is how many tuples an iterator pulls per tree descent.
	scanBatch = 64
)

// Indexed is a B-tree backed relation. One tree per selected lexicographic
// order; tree 0 is the master index and defines scan order. Inserts are
// serialized by a mutex, reads snapshot the tree they walk, so iterators
// never observe partial inserts.
type Indexed struct {
	mu     sync.RWMutex
	arity  int
	orders [][]int
	trees  []*btree.BTreeG[Tuple]
}

// NewIndexed builds a relation of the given total arity over the given
// column orders. With no orders the identity order is used.
func NewIndexed(arity int, orders [][]int) *Indexed {
	if len(orders) == 0 {
		orders = [][]int{identityOrder(arity)}
	}
	r := &Indexed{arity: arity, orders: orders}
	for _, order := range orders {
		order := order
		r.trees = append(r.trees, btree.NewG(btreeDegree, func(a, b Tuple) bool {
			return compareTuple(a, b, order) < 0
		}))
	}
	return r
}

func identityOrder(arity int) []int {
	order := make([]int, arity)
	for i := range order {
		order[i] = i
	}
	return order
}

func (r *Indexed) Arity() int { return r.arity }

func (r *Indexed) Insert(t Tuple) bool {
	if len(t) != r.arity {
		panic(fmt.Sprintf("relation: arity %d tuple inserted into arity %d relation", len(t), r.arity))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trees[0].Has(t) {
		return false
	}
	// One shared copy: trees only read tuples, never mutate them.
	cp := t.Clone()
	for _, tree := range r.trees {
		tree.ReplaceOrInsert(cp)
	}
	return true
}

func (r *Indexed) Contains(t Tuple) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trees[0].Has(t)
}

func (r *Indexed) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trees[0].Len()
}

func (r *Indexed) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tree := range r.trees {
		tree.Clear(false)
	}
}

func (r *Indexed) Scan() Iterator {
	return &treeIterator{tree: r.snapshot(0), order: r.orders[0]}
}

func (r *Indexed) View(index int) View {
	if index < 0 || index >= len(r.trees) {
		panic(fmt.Sprintf("relation: no index %d, relation has %d", index, len(r.trees)))
	}
	return &indexView{rel: r, index: index}
}

func (r *Indexed) IndexOrder(index int) []int {
	order := r.orders[index]
	out := make([]int, len(order))
	copy(out, order)
	return out
}

// snapshot clones the tree copy-on-write so iteration is stable under
// concurrent inserts.
func (r *Indexed) snapshot(index int) *btree.BTreeG[Tuple] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trees[index].Clone()
}

type indexView struct {
	rel   *Indexed
	index int
}

func (v *indexView) Order() []int { return v.rel.IndexOrder(v.index) }

func (v *indexView) Contains(low, high Tuple) bool {
	order := v.rel.orders[v.index]
	found := false
	v.rel.snapshot(v.index).AscendGreaterOrEqual(low, func(t Tuple) bool {
		found = compareTuple(t, high, order) <= 0
		return false
	})
	return found
}

func (v *indexView) Range(low, high Tuple) Iterator {
	return &treeIterator{
		tree:  v.rel.snapshot(v.index),
		order: v.rel.orders[v.index],
		pivot: low.Clone(),
		high:  high.Clone(),
	}
}

func (v *indexView) PartitionRange(low, high Tuple, k int) []Iterator {
	return splitChunks(drain(v.Range(low, high)), k)
}

func (v *indexView) PartitionScan(k int) []Iterator {
	it := &treeIterator{tree: v.rel.snapshot(v.index), order: v.rel.orders[v.index]}
	return splitChunks(drain(it), k)
}

func drain(it Iterator) []Tuple {
	var out []Tuple
	for it.Next() {
		out = append(out, it.Tuple())
	}
	return out
}

// treeIterator pulls tuples from a snapshot in batches. pivot is the lower
// bound: inclusive before the first fill, exclusive afterwards. A nil high
// leaves the scan unbounded.
type treeIterator struct {
	tree  *btree.BTreeG[Tuple]
	order []int
	pivot Tuple
	high  Tuple

	buf    []Tuple
	pos    int
	primed bool
	done   bool
}

func (it *treeIterator) Next() bool {
	it.pos++
	if it.pos < len(it.buf) {
		return true
	}
	if it.done {
		return false
	}
	it.fill()
	return it.pos < len(it.buf)
}

func (it *treeIterator) Tuple() Tuple { return it.buf[it.pos] }

func (it *treeIterator) fill() {
	it.buf = it.buf[:0]
	it.pos = 0
	skip := it.primed
	visit := func(t Tuple) bool {
		if skip {
			skip = false
			if compareTuple(t, it.pivot, it.order) == 0 {
				return true
			}
		}
		if it.high != nil && compareTuple(t, it.high, it.order) > 0 {
			it.done = true
			return false
		}
		it.buf = append(it.buf, t)
		return len(it.buf) < scanBatch
	}
	if it.pivot == nil {
		it.tree.Ascend(visit)
	} else {
		it.tree.AscendGreaterOrEqual(it.pivot, visit)
	}
	if len(it.buf) < scanBatch {
		it.done = true
	}
	if len(it.buf) > 0 {
		it.pivot = it.buf[len(it.buf)-1]
		it.primed = true
	}
}
