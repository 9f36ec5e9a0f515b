package relation

import (
	"sort"
	"sync"

	"github.com/ramble-dl/ramble/ramble"
)

// EqRel is a binary equivalence relation over a union-find. Inserting (a, b)
// merges the classes of a and b; the relation then contains every pair
// within each class, reflexive pairs included. Unlike the B-tree store,
// iteration is over a materialized pair list and is stable under any
// concurrent insert.
type EqRel struct {
	mu     sync.Mutex
	parent map[ramble.RamDomain]ramble.RamDomain
	size   map[ramble.RamDomain]int
}

func NewEqRel() *EqRel {
	return &EqRel{
		parent: map[ramble.RamDomain]ramble.RamDomain{},
		size:   map[ramble.RamDomain]int{},
	}
}

func (r *EqRel) Arity() int { return 2 }

// find returns the class root with path compression. Caller holds the lock.
func (r *EqRel) find(v ramble.RamDomain) ramble.RamDomain {
	root, ok := r.parent[v]
	if !ok {
		r.parent[v] = v
		r.size[v] = 1
		return v
	}
	if root == v {
		return v
	}
	root = r.find(root)
	r.parent[v] = root
	return root
}

// union merges the classes of a and b, reporting whether they were distinct.
// Caller holds the lock.
func (r *EqRel) union(a, b ramble.RamDomain) bool {
	ra, rb := r.find(a), r.find(b)
	if ra == rb {
		return false
	}
	if r.size[ra] < r.size[rb] {
		ra, rb = rb, ra
	}
	r.parent[rb] = ra
	r.size[ra] += r.size[rb]
	delete(r.size, rb)
	return true
}

func (r *EqRel) Insert(t Tuple) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	known := r.has(t[0]) && r.has(t[1])
	merged := r.union(t[0], t[1])
	return merged || !known
}

func (r *EqRel) has(v ramble.RamDomain) bool {
	_, ok := r.parent[v]
	return ok
}

func (r *EqRel) Contains(t Tuple) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.has(t[0]) || !r.has(t[1]) {
		return false
	}
	return r.find(t[0]) == r.find(t[1])
}

// Size counts the implied pairs: the sum of squared class sizes.
func (r *EqRel) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.size {
		total += n * n
	}
	return total
}

func (r *EqRel) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = map[ramble.RamDomain]ramble.RamDomain{}
	r.size = map[ramble.RamDomain]int{}
}

// Extend merges every class of other into the receiver.
func (r *EqRel) Extend(other *EqRel) {
	other.mu.Lock()
	links := make([][2]ramble.RamDomain, 0, len(other.parent))
	for v := range other.parent {
		links = append(links, [2]ramble.RamDomain{v, other.find(v)})
	}
	other.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range links {
		r.union(link[0], link[1])
	}
}

// pairs materializes the relation, sorted by the given order.
func (r *EqRel) pairs(order []int) []Tuple {
	r.mu.Lock()
	classes := map[ramble.RamDomain][]ramble.RamDomain{}
	for v := range r.parent {
		root := r.find(v)
		classes[root] = append(classes[root], v)
	}
	r.mu.Unlock()

	var out []Tuple
	for _, members := range classes {
		for _, a := range members {
			for _, b := range members {
				out = append(out, Tuple{a, b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return compareTuple(out[i], out[j], order) < 0
	})
	return out
}

func (r *EqRel) Scan() Iterator {
	return newSliceIterator(r.pairs([]int{0, 1}))
}

// View materializes the pair list; every index views the same data in a
// different order.
func (r *EqRel) View(index int) View {
	return &materializedView{order: r.IndexOrder(index), tuples: r.pairs(r.IndexOrder(index))}
}

func (r *EqRel) IndexOrder(index int) []int {
	if index == 0 {
		return []int{0, 1}
	}
	return []int{1, 0}
}

// materializedView serves range queries from a sorted slice.
type materializedView struct {
	order  []int
	tuples []Tuple
}

func (v *materializedView) Order() []int { return v.order }

func (v *materializedView) bounds(low, high Tuple) (int, int) {
	lo := sort.Search(len(v.tuples), func(i int) bool {
		return compareTuple(v.tuples[i], low, v.order) >= 0
	})
	hi := sort.Search(len(v.tuples), func(i int) bool {
		return compareTuple(v.tuples[i], high, v.order) > 0
	})
	return lo, hi
}

func (v *materializedView) Contains(low, high Tuple) bool {
	lo, hi := v.bounds(low, high)
	return lo < hi
}

func (v *materializedView) Range(low, high Tuple) Iterator {
	lo, hi := v.bounds(low, high)
	return newSliceIterator(v.tuples[lo:hi])
}

func (v *materializedView) PartitionRange(low, high Tuple, k int) []Iterator {
	lo, hi := v.bounds(low, high)
	return splitChunks(v.tuples[lo:hi], k)
}

func (v *materializedView) PartitionScan(k int) []Iterator {
	return splitChunks(v.tuples, k)
}
