package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/LEA-Blockchain/vm-exec/vm"
	"github.com/stretchr/testify/require"
)

// fakeModule is a minimal binary module header; the fake runtime never
// parses it.
var fakeModule = []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

type fakeMemory struct {
	data []byte
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.data)) }

func (m *fakeMemory) Read(offset, n uint32) ([]byte, bool) {
	if uint64(offset)+uint64(n) > uint64(len(m.data)) {
		return nil, false
	}
	return m.data[offset : offset+n], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.data)) {
		return false
	}
	copy(m.data[offset:], v)
	return true
}

type fakeFunction struct {
	name    string
	params  []vm.ValueType
	results []vm.ValueType
	calls   [][]uint64
	call    func(params []uint64) ([]uint64, error)
}

func (f *fakeFunction) Name() string                { return f.name }
func (f *fakeFunction) ParamTypes() []vm.ValueType  { return f.params }
func (f *fakeFunction) ResultTypes() []vm.ValueType { return f.results }

func (f *fakeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	f.calls = append(f.calls, params)
	return f.call(params)
}

type fakeInstance struct {
	funcs  map[string]*fakeFunction
	kinds  map[string]vm.ExportKind
	mem    *fakeMemory
	closed bool
}

func (i *fakeInstance) ExportedFunction(name string) vm.Function {
	if fn, ok := i.funcs[name]; ok {
		return fn
	}
	return nil
}

func (i *fakeInstance) ExportKind(name string) vm.ExportKind {
	if _, ok := i.funcs[name]; ok {
		return vm.ExportFunction
	}
	return i.kinds[name]
}

func (i *fakeInstance) Memory() vm.Memory {
	if i.mem == nil {
		return nil
	}
	return i.mem
}

func (i *fakeInstance) Close(ctx context.Context) error {
	i.closed = true
	return nil
}

type fakeRuntime struct {
	inst         *fakeInstance
	err          error
	instantiated int
}

func (r *fakeRuntime) Instantiate(ctx context.Context, wasm []byte, imports *vm.ImportSet) (vm.Instance, error) {
	r.instantiated++
	if r.err != nil {
		return nil, r.err
	}
	return r.inst, nil
}

func (r *fakeRuntime) Close(ctx context.Context) error { return nil }

type fakeImports struct {
	bound vm.Instance
}

func (f *fakeImports) CreateImportSet() (*vm.ImportSet, func(vm.Instance)) {
	return vm.NewImportSet(), func(inst vm.Instance) { f.bound = inst }
}

// bumpAllocator hands out consecutive addresses starting at base.
func bumpAllocator(base uint32) *fakeFunction {
	next := base
	return &fakeFunction{
		name:    DefaultAllocator,
		params:  []vm.ValueType{vm.ValueTypeI32},
		results: []vm.ValueType{vm.ValueTypeI32},
		call: func(p []uint64) ([]uint64, error) {
			ptr := next
			next += vm.DecodeU32(p[0])
			return []uint64{uint64(ptr)}, nil
		},
	}
}

func writeFakeModule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake.wasm")
	require.NoError(t, os.WriteFile(path, fakeModule, 0o644))
	return path
}

func TestFakeBindsBeforeCall(t *testing.T) {
	imports := &fakeImports{}
	inst := &fakeInstance{}
	var boundAtCall vm.Instance
	inst.funcs = map[string]*fakeFunction{
		"main": {
			name:    "main",
			results: []vm.ValueType{vm.ValueTypeI32},
			call: func(p []uint64) ([]uint64, error) {
				boundAtCall = imports.bound
				return []uint64{vm.EncodeI32(4)}, nil
			},
		},
	}

	rt := &fakeRuntime{inst: inst}
	res, err := New(rt, imports).Run(context.Background(), Request{
		ModulePath: writeFakeModule(t),
		Call:       Call{Entry: "main"},
	})
	require.NoError(t, err)
	require.Equal(t, 4, res.ExitCode)
	require.Same(t, inst, boundAtCall)
	require.True(t, inst.closed, "instance should be closed after Run")
}

func TestFakeUsageSkipsInstantiation(t *testing.T) {
	rt := &fakeRuntime{inst: &fakeInstance{}}
	l := New(rt, &fakeImports{})

	for _, req := range []Request{
		{},
		{ModulePath: "module.wasm"},
		{ModulePath: "module.wasm", Call: Call{Entry: "main", Mode: ModeFile}},
	} {
		_, err := l.Run(context.Background(), req)
		require.ErrorIs(t, err, ErrUsage)
	}
	require.Zero(t, rt.instantiated)
}

func TestFakeInstantiationError(t *testing.T) {
	cause := errors.New("link failed")
	rt := &fakeRuntime{err: cause}

	_, err := New(rt, &fakeImports{}).Run(context.Background(), Request{
		ModulePath: writeFakeModule(t),
		Call:       Call{Entry: "main"},
	})
	require.ErrorIs(t, err, ErrInstantiation)
	require.ErrorIs(t, err, cause)
}

func TestFakeNullAllocatorSkipsEntry(t *testing.T) {
	entry := &fakeFunction{
		name:    "take",
		params:  []vm.ValueType{vm.ValueTypeI32, vm.ValueTypeI32},
		results: []vm.ValueType{vm.ValueTypeI32},
		call:    func(p []uint64) ([]uint64, error) { return []uint64{0}, nil },
	}
	inst := &fakeInstance{
		mem: &fakeMemory{data: make([]byte, 64)},
		funcs: map[string]*fakeFunction{
			"take":           entry,
			DefaultAllocator: bumpAllocator(0),
		},
	}

	_, err := New(&fakeRuntime{inst: inst}, &fakeImports{}).Run(context.Background(), Request{
		ModulePath: writeFakeModule(t),
		Call:       Call{Entry: "take", Mode: ModeString, Value: "hi"},
	})
	require.ErrorIs(t, err, ErrAllocation)
	require.Contains(t, err.Error(), "returned null")
	require.Empty(t, entry.calls)
}

func TestFakeAllocationOutOfRange(t *testing.T) {
	entry := &fakeFunction{
		name:   "take",
		params: []vm.ValueType{vm.ValueTypeI32, vm.ValueTypeI32},
		call:   func(p []uint64) ([]uint64, error) { return nil, nil },
	}
	inst := &fakeInstance{
		mem: &fakeMemory{data: make([]byte, 16)},
		funcs: map[string]*fakeFunction{
			"take":           entry,
			DefaultAllocator: bumpAllocator(12),
		},
	}

	_, err := New(&fakeRuntime{inst: inst}, &fakeImports{}).Run(context.Background(), Request{
		ModulePath: writeFakeModule(t),
		Call:       Call{Entry: "take", Mode: ModeString, Value: "too long"},
	})
	require.ErrorIs(t, err, ErrAllocation)
	require.Contains(t, err.Error(), "outside linear memory")
	require.Empty(t, entry.calls)
}

func TestFakeStringArgument(t *testing.T) {
	var got []byte
	inst := &fakeInstance{mem: &fakeMemory{data: make([]byte, 256)}}
	inst.funcs = map[string]*fakeFunction{
		DefaultAllocator: bumpAllocator(100),
		"take": {
			name:    "take",
			params:  []vm.ValueType{vm.ValueTypeI32, vm.ValueTypeI32},
			results: []vm.ValueType{vm.ValueTypeI32},
			call: func(p []uint64) ([]uint64, error) {
				data, _ := inst.mem.Read(vm.DecodeU32(p[0]), vm.DecodeU32(p[1]))
				got = append([]byte(nil), data...)
				return []uint64{p[0]}, nil
			},
		},
	}

	var progress bytes.Buffer
	res, err := New(&fakeRuntime{inst: inst}, &fakeImports{}, WithOutput(&progress)).Run(context.Background(), Request{
		ModulePath: writeFakeModule(t),
		Call:       Call{Entry: "take", Mode: ModeString, Value: "hello world"},
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
	require.Equal(t, 100, res.ExitCode)
	require.Contains(t, progress.String(), "Calling take(ptr=100, len=11)")
}

func TestFakeEmptyStringAllowsNullPointer(t *testing.T) {
	inst := &fakeInstance{mem: &fakeMemory{data: make([]byte, 16)}}
	inst.funcs = map[string]*fakeFunction{
		DefaultAllocator: bumpAllocator(0),
		"take": {
			name:    "take",
			params:  []vm.ValueType{vm.ValueTypeI32, vm.ValueTypeI32},
			results: []vm.ValueType{vm.ValueTypeI32},
			call: func(p []uint64) ([]uint64, error) {
				return []uint64{p[1]}, nil
			},
		},
	}

	res, err := New(&fakeRuntime{inst: inst}, &fakeImports{}).Run(context.Background(), Request{
		ModulePath: writeFakeModule(t),
		Call:       Call{Entry: "take", Mode: ModeString, Value: ""},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
}

func TestFakeNoMemory(t *testing.T) {
	inst := &fakeInstance{funcs: map[string]*fakeFunction{
		DefaultAllocator: bumpAllocator(8),
		"take": {
			name:   "take",
			params: []vm.ValueType{vm.ValueTypeI32, vm.ValueTypeI32},
			call:   func(p []uint64) ([]uint64, error) { return nil, nil },
		},
	}}

	_, err := New(&fakeRuntime{inst: inst}, &fakeImports{}).Run(context.Background(), Request{
		ModulePath: writeFakeModule(t),
		Call:       Call{Entry: "take", Mode: ModeString, Value: "x"},
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "exports no memory")
}
