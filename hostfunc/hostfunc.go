package hostfunc

import (
	"context"
	"sort"
	"sync"

	"github.com/LEA-Blockchain/vm-exec/vm"
)

// Func implements a host import. inst is the instance the import set was
// bound to, giving access to its memory and exports.
type Func func(ctx context.Context, inst vm.Instance, params []uint64) ([]uint64, error)

// Import declares one host function and its WebAssembly signature.
type Import struct {
	Module  string
	Name    string
	Params  []vm.ValueType
	Results []vm.ValueType
	Func    Func
}

func (i Import) key() string {
	return i.Module + "." + i.Name
}

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Import
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Import)}
}

func (r *Registry) Register(imp Import) {
	r.mu.Lock()
	r.funcs[imp.key()] = imp
	r.mu.Unlock()
}

func (r *Registry) Get(module, name string) (Import, bool) {
	r.mu.RLock()
	imp, ok := r.funcs[module+"."+name]
	r.mu.RUnlock()
	return imp, ok
}

// List returns the registered imports as sorted "module.name" strings.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) All() []Import {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Import, 0, len(r.funcs))
	for _, imp := range r.funcs {
		all = append(all, imp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].key() < all[j].key() })
	return all
}
