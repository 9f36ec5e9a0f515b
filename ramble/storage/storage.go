// Package storage implements the fact persistence boundary: loading input
// relations before evaluation and storing output relations after. Rows cross
// the boundary as text fields; the interpreter converts them to and from the
// value domain using the declared column types.
package storage

import (
	"fmt"
	"sort"
	"sync"
)

// FactStore reads and writes the rows of named relations.
type FactStore interface {
	// Load returns the rows of an input relation. Params carry the options
	// of the originating .input directive.
	Load(relation string, params map[string]string) ([][]string, error)
	// Store writes the rows of an output relation.
	Store(relation string, params map[string]string, rows [][]string) error
	// Size reports the stored row count of a relation.
	Size(relation string) (int, error)
}

// MemStore is an in-memory fact store, used by tests and the library API.
type MemStore struct {
	mu   sync.RWMutex
	rows map[string][][]string
}

func NewMemStore() *MemStore {
	return &MemStore{rows: map[string][][]string{}}
}

// Add seeds an input relation.
func (s *MemStore) Add(relation string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[relation] = append(s.rows[relation], rows...)
}

func (s *MemStore) Load(relation string, params map[string]string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([][]string(nil), s.rows[relation]...), nil
}

func (s *MemStore) Store(relation string, params map[string]string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[relation] = append([][]string(nil), rows...)
	return nil
}

func (s *MemStore) Size(relation string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rows[relation]; !ok {
		return 0, fmt.Errorf("storage: relation %s not present", relation)
	}
	return len(s.rows[relation]), nil
}

// Rows returns the stored rows of a relation, sorted for stable comparison.
func (s *MemStore) Rows(relation string) [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([][]string(nil), s.rows[relation]...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
	return out
}
