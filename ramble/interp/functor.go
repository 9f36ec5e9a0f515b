package interp

import (
	"fmt"
	"sync"

	"github.com/ramble-dl/ramble/ramble"
)

// Stateless is a user functor over primitive-encoded values.
type Stateless func(args []ramble.RamDomain) (ramble.RamDomain, error)

// Stateful is a user functor that additionally receives the symbol and
// record tables. The handles are valid only for the duration of the call.
type Stateful func(symbols *SymbolTable, records *RecordTable, args []ramble.RamDomain) (ramble.RamDomain, error)

// Registry holds the user-defined functors available to a program.
type Registry struct {
	mu        sync.RWMutex
	stateless map[string]Stateless
	stateful  map[string]Stateful
}

func NewRegistry() *Registry {
	return &Registry{
		stateless: map[string]Stateless{},
		stateful:  map[string]Stateful{},
	}
}

// Register binds a stateless functor to a name, replacing any previous
// binding.
func (r *Registry) Register(name string, fn Stateless) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateless[name] = fn
	delete(r.stateful, name)
}

// RegisterStateful binds a stateful functor to a name.
func (r *Registry) RegisterStateful(name string, fn Stateful) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateful[name] = fn
	delete(r.stateless, name)
}

// Call invokes the functor registered under name.
func (r *Registry) Call(name string, symbols *SymbolTable, records *RecordTable, args []ramble.RamDomain) (ramble.RamDomain, error) {
	r.mu.RLock()
	stateless, plain := r.stateless[name]
	stateful, withState := r.stateful[name]
	r.mu.RUnlock()
	switch {
	case plain:
		return stateless(args)
	case withState:
		return stateful(symbols, records, args)
	default:
		return 0, fmt.Errorf("interp: functor @%s is not registered", name)
	}
}
