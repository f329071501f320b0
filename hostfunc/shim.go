package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LEA-Blockchain/vm-exec/vm"
	"go.uber.org/zap"
)

// ErrNotBound is returned by a host function invoked before its import set
// was bound to an instance, e.g. from a module's start section.
var ErrNotBound = errors.New("host instance not bound")

// Shim provides the host imports a module is instantiated against.
type Shim struct {
	registry *Registry
	cfg      config
}

// New creates a Shim with the built-in imports registered under the
// configured module name.
func New(opts ...Option) *Shim {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Shim{registry: NewRegistry(), cfg: cfg}
	s.registerBuiltins()
	return s
}

// Registry exposes the shim's imports so callers can add their own.
func (s *Shim) Registry() *Registry {
	return s.registry
}

// CreateImportSet returns the import table for one instantiation plus the
// callback that binds the resulting instance. Host functions called before
// the callback runs fail with ErrNotBound.
func (s *Shim) CreateImportSet() (*vm.ImportSet, func(vm.Instance)) {
	b := &binding{}
	set := vm.NewImportSet()

	for _, imp := range s.registry.All() {
		set.Add(vm.HostFunction{
			Module:  imp.Module,
			Name:    imp.Name,
			Params:  imp.Params,
			Results: imp.Results,
			Func:    b.wrap(imp),
		})
	}

	s.cfg.logger.Debug("created import set", zap.Int("functions", set.Len()))
	return set, b.bind
}

type binding struct {
	mu   sync.RWMutex
	inst vm.Instance
}

func (b *binding) bind(inst vm.Instance) {
	b.mu.Lock()
	b.inst = inst
	b.mu.Unlock()
}

func (b *binding) instance() vm.Instance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inst
}

func (b *binding) wrap(imp Import) vm.HostFunc {
	return func(ctx context.Context, params []uint64) ([]uint64, error) {
		inst := b.instance()
		if inst == nil {
			return nil, fmt.Errorf("%s.%s: %w", imp.Module, imp.Name, ErrNotBound)
		}
		return imp.Func(ctx, inst, params)
	}
}
