package vm

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"
)

// ValueType is a WebAssembly value type. The encoding matches wazero so
// engine adapters can pass signatures through unchanged.
type ValueType = api.ValueType

const (
	ValueTypeI32 = api.ValueTypeI32
	ValueTypeI64 = api.ValueTypeI64
	ValueTypeF32 = api.ValueTypeF32
	ValueTypeF64 = api.ValueTypeF64
)

// ExportKind identifies what an export name refers to.
type ExportKind int

const (
	ExportNone ExportKind = iota
	ExportFunction
	ExportMemory
	ExportGlobal
	ExportTable
)

func (k ExportKind) String() string {
	switch k {
	case ExportFunction:
		return "function"
	case ExportMemory:
		return "memory"
	case ExportGlobal:
		return "global"
	case ExportTable:
		return "table"
	default:
		return "none"
	}
}

// Memory is a view of an instance's linear memory.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// Function is an exported function of an instance. Parameters and results
// use the wazero uint64 encoding (see EncodeI32 and friends).
type Function interface {
	Name() string
	ParamTypes() []ValueType
	ResultTypes() []ValueType
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Instance is an instantiated module.
type Instance interface {
	// ExportedFunction returns nil when name is not an exported function.
	ExportedFunction(name string) Function
	ExportKind(name string) ExportKind
	// Memory returns the exported linear memory, or nil if there is none.
	Memory() Memory
	Close(ctx context.Context) error
}

// Runtime instantiates modules against a set of host imports.
type Runtime interface {
	Instantiate(ctx context.Context, wasm []byte, imports *ImportSet) (Instance, error)
	Close(ctx context.Context) error
}

// HostFunc implements an imported function. params holds exactly one value
// per declared parameter; the returned slice must match the declared results.
type HostFunc func(ctx context.Context, params []uint64) ([]uint64, error)

// HostFunction is one entry of an import table.
type HostFunction struct {
	Module  string
	Name    string
	Params  []ValueType
	Results []ValueType
	Func    HostFunc
}

// ImportSet is the table of host functions offered to a module.
type ImportSet struct {
	funcs map[string]map[string]HostFunction
}

func NewImportSet() *ImportSet {
	return &ImportSet{funcs: make(map[string]map[string]HostFunction)}
}

// Add registers fn, replacing any previous function with the same module and name.
func (s *ImportSet) Add(fn HostFunction) {
	mod, ok := s.funcs[fn.Module]
	if !ok {
		mod = make(map[string]HostFunction)
		s.funcs[fn.Module] = mod
	}
	mod[fn.Name] = fn
}

func (s *ImportSet) Lookup(module, name string) (HostFunction, bool) {
	if s == nil {
		return HostFunction{}, false
	}
	fn, ok := s.funcs[module][name]
	return fn, ok
}

// Modules returns the import module names in sorted order.
func (s *ImportSet) Modules() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions returns the functions of one import module sorted by name.
func (s *ImportSet) Functions(module string) []HostFunction {
	if s == nil {
		return nil
	}
	mod := s.funcs[module]
	fns := make([]HostFunction, 0, len(mod))
	for _, fn := range mod {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

func (s *ImportSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, mod := range s.funcs {
		n += len(mod)
	}
	return n
}
