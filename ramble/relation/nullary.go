package relation

import "sync"

// Nullary is an arity-0 relation: a single boolean proposition. Size is 0 or
// 1 and the only tuple is the empty tuple.
type Nullary struct {
	mu  sync.Mutex
	set bool
}

func NewNullary() *Nullary { return &Nullary{} }

func (r *Nullary) Arity() int { return 0 }

func (r *Nullary) Insert(t Tuple) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	was := r.set
	r.set = true
	return !was
}

func (r *Nullary) Contains(t Tuple) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set
}

func (r *Nullary) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set {
		return 1
	}
	return 0
}

func (r *Nullary) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = false
}

func (r *Nullary) Scan() Iterator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set {
		return newSliceIterator([]Tuple{{}})
	}
	return newSliceIterator(nil)
}

func (r *Nullary) View(index int) View {
	panic("relation: nullary relations carry no indexes")
}

func (r *Nullary) IndexOrder(index int) []int {
	panic("relation: nullary relations carry no indexes")
}
