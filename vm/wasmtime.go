//go:build cgo

package vm

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bytecodealliance/wasmtime-go/v23"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

// wasmtimeRuntime runs modules on wasmtime. Each instance gets its own
// store and linker; compiled modules are shared by content hash.
type wasmtimeRuntime struct {
	engine  *wasmtime.Engine
	modules map[[sha256.Size]byte]*wasmtime.Module
	cfg     config
	mu      sync.Mutex
	closed  bool
}

func newWasmtime(cfg config) (Runtime, error) {
	wcfg := wasmtime.NewConfig()
	wcfg.SetEpochInterruption(true)
	wcfg.SetCraneliftOptLevel(wasmtime.OptLevelSpeedAndSize)
	if cfg.diskCache {
		if err := wcfg.CacheConfigLoadDefault(); err != nil {
			cfg.logger.Warn("wasmtime compilation cache unavailable", zap.Error(err))
		}
	}
	if cfg.memoryLimitPages > 0 {
		cfg.logger.Warn("wasmtime engine ignores the memory limit setting")
	}

	return &wasmtimeRuntime{
		engine:  wasmtime.NewEngineWithConfig(wcfg),
		modules: make(map[[sha256.Size]byte]*wasmtime.Module),
		cfg:     cfg,
	}, nil
}

func (r *wasmtimeRuntime) Instantiate(ctx context.Context, wasm []byte, imports *ImportSet) (Instance, error) {
	module, err := r.getModule(wasm)
	if err != nil {
		return nil, err
	}

	store := wasmtime.NewStore(r.engine)
	store.SetEpochDeadline(1)
	linker := wasmtime.NewLinker(r.engine)
	state := &callState{ctx: ctx}

	if r.cfg.wasi {
		wasiConfig := wasmtime.NewWasiConfig()
		if r.cfg.stdout == os.Stdout {
			wasiConfig.InheritStdout()
		}
		if r.cfg.stderr == os.Stderr {
			wasiConfig.InheritStderr()
		}
		store.SetWasi(wasiConfig)
		if err := linker.DefineWasi(); err != nil {
			return nil, fmt.Errorf("define WASI: %w", err)
		}
	}

	for _, name := range imports.Modules() {
		for _, fn := range imports.Functions(name) {
			ty := wasmtime.NewFuncType(valTypes(fn.Params), valTypes(fn.Results))
			if err := linker.FuncNew(fn.Module, fn.Name, ty, hostCallback(state, fn)); err != nil {
				return nil, fmt.Errorf("define %s.%s: %w", fn.Module, fn.Name, err)
			}
		}
	}

	instance, err := linker.Instantiate(store, module)
	if err != nil {
		if hostErr := state.take(); hostErr != nil {
			return nil, fmt.Errorf("instantiate: %w", hostErr)
		}
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	return &wasmtimeInstance{engine: r.engine, store: store, instance: instance, state: state}, nil
}

func (r *wasmtimeRuntime) getModule(wasm []byte) (*wasmtime.Module, error) {
	key := sha256.Sum256(wasm)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if module, ok := r.modules[key]; ok {
		return module, nil
	}

	module, err := wasmtime.NewModule(r.engine, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	r.cfg.logger.Debug("compiled module", zap.Int("bytes", len(wasm)), zap.String("engine", EngineWasmtime))
	r.modules[key] = module
	return module, nil
}

func (r *wasmtimeRuntime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.modules = nil
	return nil
}

// callState carries the context of the active call into host functions and
// the Go error a host function failed with back out of the trap.
type callState struct {
	mu      sync.Mutex
	ctx     context.Context
	hostErr error
}

func (s *callState) begin(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.hostErr = nil
}

func (s *callState) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *callState) fail(err error) *wasmtime.Trap {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostErr == nil {
		s.hostErr = err
	}
	return wasmtime.NewTrap(err.Error())
}

func (s *callState) take() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.hostErr
	s.hostErr = nil
	return err
}

// hostCallback adapts a HostFunc to wasmtime. Host errors surface as traps;
// the original error is kept on state so Call can return it.
func hostCallback(state *callState, fn HostFunction) func(*wasmtime.Caller, []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	return func(_ *wasmtime.Caller, args []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
		params := make([]uint64, len(args))
		for i, a := range args {
			params[i] = fromVal(a)
		}
		results, err := fn.Func(state.context(), params)
		if err != nil {
			return nil, state.fail(err)
		}
		if len(results) != len(fn.Results) {
			return nil, state.fail(fmt.Errorf("host function %s.%s returned %d values, want %d",
				fn.Module, fn.Name, len(results), len(fn.Results)))
		}
		out := make([]wasmtime.Val, len(results))
		for i, v := range results {
			out[i] = toVal(fn.Results[i], v)
		}
		return out, nil
	}
}

func valTypes(types []ValueType) []*wasmtime.ValType {
	out := make([]*wasmtime.ValType, len(types))
	for i, t := range types {
		out[i] = wasmtime.NewValType(valKind(t))
	}
	return out
}

func valKind(t ValueType) wasmtime.ValKind {
	switch t {
	case ValueTypeI64:
		return wasmtime.KindI64
	case ValueTypeF32:
		return wasmtime.KindF32
	case ValueTypeF64:
		return wasmtime.KindF64
	default:
		return wasmtime.KindI32
	}
}

func valueType(k wasmtime.ValKind) ValueType {
	switch k {
	case wasmtime.KindI64:
		return ValueTypeI64
	case wasmtime.KindF32:
		return ValueTypeF32
	case wasmtime.KindF64:
		return ValueTypeF64
	default:
		return ValueTypeI32
	}
}

func fromVal(v wasmtime.Val) uint64 {
	switch v.Kind() {
	case wasmtime.KindI64:
		return EncodeI64(v.I64())
	case wasmtime.KindF32:
		return EncodeF32(v.F32())
	case wasmtime.KindF64:
		return EncodeF64(v.F64())
	default:
		return EncodeI32(v.I32())
	}
}

func toVal(t ValueType, v uint64) wasmtime.Val {
	switch t {
	case ValueTypeI64:
		return wasmtime.ValI64(DecodeI64(v))
	case ValueTypeF32:
		return wasmtime.ValF32(DecodeF32(v))
	case ValueTypeF64:
		return wasmtime.ValF64(DecodeF64(v))
	default:
		return wasmtime.ValI32(DecodeI32(v))
	}
}

type wasmtimeInstance struct {
	engine   *wasmtime.Engine
	store    *wasmtime.Store
	instance *wasmtime.Instance
	state    *callState
}

func (i *wasmtimeInstance) ExportedFunction(name string) Function {
	fn := i.instance.GetFunc(i.store, name)
	if fn == nil {
		return nil
	}
	ty := fn.Type(i.store)
	f := &wasmtimeFunction{name: name, engine: i.engine, store: i.store, state: i.state, fn: fn}
	for _, p := range ty.Params() {
		f.params = append(f.params, valueType(p.Kind()))
	}
	for _, r := range ty.Results() {
		f.results = append(f.results, valueType(r.Kind()))
	}
	return f
}

func (i *wasmtimeInstance) ExportKind(name string) ExportKind {
	ext := i.instance.GetExport(i.store, name)
	switch {
	case ext == nil:
		return ExportNone
	case ext.Func() != nil:
		return ExportFunction
	case ext.Memory() != nil:
		return ExportMemory
	case ext.Global() != nil:
		return ExportGlobal
	case ext.Table() != nil:
		return ExportTable
	default:
		return ExportNone
	}
}

func (i *wasmtimeInstance) Memory() Memory {
	ext := i.instance.GetExport(i.store, "memory")
	if ext == nil || ext.Memory() == nil {
		return nil
	}
	return &wasmtimeMemory{store: i.store, mem: ext.Memory()}
}

func (i *wasmtimeInstance) Close(ctx context.Context) error {
	return nil
}

type wasmtimeFunction struct {
	name    string
	engine  *wasmtime.Engine
	store   *wasmtime.Store
	state   *callState
	fn      *wasmtime.Func
	params  []ValueType
	results []ValueType
}

func (f *wasmtimeFunction) Name() string             { return f.name }
func (f *wasmtimeFunction) ParamTypes() []ValueType  { return f.params }
func (f *wasmtimeFunction) ResultTypes() []ValueType { return f.results }

func (f *wasmtimeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if len(params) != len(f.params) {
		return nil, fmt.Errorf("expected %d params, but passed %d", len(f.params), len(params))
	}
	args := make([]interface{}, len(params))
	for i, p := range params {
		switch f.params[i] {
		case ValueTypeI64:
			args[i] = DecodeI64(p)
		case ValueTypeF32:
			args[i] = DecodeF32(p)
		case ValueTypeF64:
			args[i] = DecodeF64(p)
		default:
			args[i] = DecodeI32(p)
		}
	}

	// The engine epoch is bumped when ctx ends, which interrupts the guest
	// at its next epoch check.
	f.store.SetEpochDeadline(1)
	stop := context.AfterFunc(ctx, f.engine.IncrementEpoch)
	defer stop()
	f.state.begin(ctx)

	res, err := f.fn.Call(f.store, args...)
	if err != nil {
		hostErr := f.state.take()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		if hostErr != nil {
			return nil, fmt.Errorf("%w (trap: %v)", hostErr, err)
		}
		var werr *wasmtime.Error
		if errors.As(err, &werr) {
			if status, ok := werr.ExitStatus(); ok {
				return nil, sys.NewExitError(uint32(status))
			}
		}
		return nil, err
	}

	switch v := res.(type) {
	case nil:
		return nil, nil
	case int32:
		return []uint64{EncodeI32(v)}, nil
	case int64:
		return []uint64{EncodeI64(v)}, nil
	case float32:
		return []uint64{EncodeF32(v)}, nil
	case float64:
		return []uint64{EncodeF64(v)}, nil
	case []wasmtime.Val:
		out := make([]uint64, len(v))
		for i, val := range v {
			out[i] = fromVal(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported result type %T", res)
	}
}

type wasmtimeMemory struct {
	store *wasmtime.Store
	mem   *wasmtime.Memory
}

func (m *wasmtimeMemory) Size() uint32 {
	return uint32(m.mem.DataSize(m.store))
}

func (m *wasmtimeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	data := m.mem.UnsafeData(m.store)
	if uint64(offset)+uint64(byteCount) > uint64(len(data)) {
		return nil, false
	}
	out := make([]byte, byteCount)
	copy(out, data[offset:])
	return out, true
}

func (m *wasmtimeMemory) Write(offset uint32, v []byte) bool {
	data := m.mem.UnsafeData(m.store)
	if uint64(offset)+uint64(len(v)) > uint64(len(data)) {
		return false
	}
	copy(data[offset:], v)
	return true
}
