// Package interp executes RAM programs against in-memory indexed relations.
// Statements walk a tree interpreter; Parallel statements fan out on a
// bounded worker pool. Symbols and records live in side tables shared by
// every worker and exposed to stateful user functors.
package interp

import (
	"encoding/binary"
	"sync"

	"github.com/ramble-dl/ramble/ramble"
)

// SymbolTable interns strings as dense, monotonically assigned ids. Encoding
// the same string twice yields the same id.
type SymbolTable struct {
	mu   sync.RWMutex
	ids  map[string]ramble.RamDomain
	strs []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{ids: map[string]ramble.RamDomain{}}
}

// Encode returns the id of the string, interning it on first sight.
func (t *SymbolTable) Encode(s string) ramble.RamDomain {
	t.mu.RLock()
	id, ok := t.ids[s]
	t.mu.RUnlock()
	if ok {
		return id
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[s]; ok {
		return id
	}
	id = ramble.RamDomain(len(t.strs))
	t.ids[s] = id
	t.strs = append(t.strs, s)
	return id
}

// Decode returns the string behind an id.
func (t *SymbolTable) Decode(id ramble.RamDomain) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || int(id) >= len(t.strs) {
		return "", false
	}
	return t.strs[id], true
}

// Size returns the number of interned symbols.
func (t *SymbolTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.strs)
}

// RecordTable interns value tuples as record references. Reference 0 is the
// nil record and never packs; reference 1 is the empty tuple.
type RecordTable struct {
	mu     sync.RWMutex
	refs   map[string]ramble.RamDomain
	tuples [][]ramble.RamDomain
}

func NewRecordTable() *RecordTable {
	return &RecordTable{
		refs: map[string]ramble.RamDomain{},
		// Slot 0 is the nil reference, slot 1 the empty tuple.
		tuples: [][]ramble.RamDomain{nil, {}},
	}
}

func recordKey(vals []ramble.RamDomain) string {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	return string(buf)
}

// Pack interns the tuple and returns its reference. Equal tuples yield equal
// references; the empty tuple always packs to 1.
func (t *RecordTable) Pack(vals []ramble.RamDomain) ramble.RamDomain {
	if len(vals) == 0 {
		return 1
	}
	key := recordKey(vals)
	t.mu.RLock()
	ref, ok := t.refs[key]
	t.mu.RUnlock()
	if ok {
		return ref
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if ref, ok := t.refs[key]; ok {
		return ref
	}
	ref = ramble.RamDomain(len(t.tuples))
	t.refs[key] = ref
	t.tuples = append(t.tuples, append([]ramble.RamDomain(nil), vals...))
	return ref
}

// Unpack resolves a reference back to its tuple. The returned slice is owned
// by the table and must not be mutated. Unpacking the nil reference, an
// unknown reference, or a reference of the wrong arity fails.
func (t *RecordTable) Unpack(ref ramble.RamDomain, arity int) ([]ramble.RamDomain, bool) {
	if ref == 0 {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if ref < 0 || int(ref) >= len(t.tuples) {
		return nil, false
	}
	vals := t.tuples[ref]
	if len(vals) != arity {
		return nil, false
	}
	return vals, true
}

// Size returns the number of interned records, the empty tuple included.
func (t *RecordTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tuples) - 1
}
