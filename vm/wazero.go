package vm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/wippyai/wasm-runtime/wasm"
	"go.uber.org/zap"
)

// ErrClosed is returned by a Runtime used after Close.
var ErrClosed = errors.New("runtime closed")

// wazeroRuntime hands out instances that each own a wazero.Runtime, so
// every instance links its own host modules under their import names.
// Compiled code is shared through one compilation cache.
type wazeroRuntime struct {
	cache    wazero.CompilationCache
	rtConfig wazero.RuntimeConfig
	cfg      config
	live     map[*wazeroInstance]struct{}
	mu       sync.Mutex
	closed   bool
}

func newWazero(ctx context.Context, cfg config) (*wazeroRuntime, error) {
	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
		cfg.logger.Debug("compilation cache enabled", zap.String("dir", cacheDir))
	} else {
		cache = wazero.NewCompilationCache()
	}

	rtConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithCompilationCache(cache)
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	return &wazeroRuntime{
		cache:    cache,
		rtConfig: rtConfig,
		cfg:      cfg,
		live:     make(map[*wazeroInstance]struct{}),
	}, nil
}

// Instantiate links the host modules described by imports and instantiates
// wasm against them. Start functions such as _start are not run; only the
// module's start section executes.
func (r *wazeroRuntime) Instantiate(ctx context.Context, wasm []byte, imports *ImportSet) (Instance, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.mu.Unlock()

	rt := wazero.NewRuntimeWithConfig(ctx, r.rtConfig)
	inst, err := r.instantiate(ctx, rt, wasm, imports)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		rt.Close(ctx)
		return nil, ErrClosed
	}
	r.live[inst] = struct{}{}
	return inst, nil
}

func (r *wazeroRuntime) instantiate(ctx context.Context, rt wazero.Runtime, wasm []byte, imports *ImportSet) (*wazeroInstance, error) {
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	r.cfg.logger.Debug("compiled module",
		zap.Int("bytes", len(wasm)),
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(compiled.ExportedFunctions())))

	if r.cfg.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return nil, fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	for _, name := range imports.Modules() {
		builder := rt.NewHostModuleBuilder(name)
		for _, fn := range imports.Functions(name) {
			builder.NewFunctionBuilder().
				WithGoFunction(goFunction(fn), fn.Params, fn.Results).
				WithName(fn.Name).
				Export(fn.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return nil, fmt.Errorf("instantiate host module %s: %w", name, err)
		}
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(r.cfg.stdout).
		WithStderr(r.cfg.stderr).
		WithStartFunctions().
		WithName("")

	mod, err := rt.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	return &wazeroInstance{owner: r, runtime: rt, module: mod, wasm: wasm}, nil
}

func (r *wazeroRuntime) release(inst *wazeroInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, inst)
}

// Close closes every live instance and then the compilation cache.
func (r *wazeroRuntime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	live := r.live
	r.live = nil
	r.mu.Unlock()

	var errs []error
	for inst := range live {
		if err := inst.runtime.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.cache.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// goFunction adapts a HostFunc to wazero's stack calling convention. Errors
// are raised as panics, which wazero recovers and returns from Call wrapped
// with %w.
func goFunction(fn HostFunction) api.GoFunction {
	return api.GoFunc(func(ctx context.Context, stack []uint64) {
		params := make([]uint64, len(fn.Params))
		copy(params, stack)
		results, err := fn.Func(ctx, params)
		if err != nil {
			panic(err)
		}
		if len(results) != len(fn.Results) {
			panic(fmt.Errorf("host function %s.%s returned %d values, want %d",
				fn.Module, fn.Name, len(results), len(fn.Results)))
		}
		copy(stack, results)
	})
}

type wazeroInstance struct {
	owner   *wazeroRuntime
	runtime wazero.Runtime
	module  api.Module
	wasm    []byte
}

func (i *wazeroInstance) ExportedFunction(name string) Function {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return &wazeroFunction{name: name, fn: fn}
}

func (i *wazeroInstance) ExportKind(name string) ExportKind {
	if _, ok := i.module.ExportedFunctionDefinitions()[name]; ok {
		return ExportFunction
	}
	if _, ok := i.module.ExportedMemoryDefinitions()[name]; ok {
		return ExportMemory
	}
	if i.module.ExportedGlobal(name) != nil {
		return ExportGlobal
	}
	// api.Module has no table accessors.
	if parsed, err := wasm.ParseModule(i.wasm); err == nil {
		for _, exp := range parsed.Exports {
			if exp.Name == name && exp.Kind == wasm.KindTable {
				return ExportTable
			}
		}
	}
	return ExportNone
}

func (i *wazeroInstance) Memory() Memory {
	mem := i.module.Memory()
	if mem == nil {
		return nil
	}
	return mem
}

// Close closes the instance's runtime, which takes its host modules with it.
func (i *wazeroInstance) Close(ctx context.Context) error {
	i.owner.release(i)
	return i.runtime.Close(ctx)
}

type wazeroFunction struct {
	name string
	fn   api.Function
}

func (f *wazeroFunction) Name() string             { return f.name }
func (f *wazeroFunction) ParamTypes() []ValueType  { return f.fn.Definition().ParamTypes() }
func (f *wazeroFunction) ResultTypes() []ValueType { return f.fn.Definition().ResultTypes() }

func (f *wazeroFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "vm-exec")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "vm-exec")
	}
	return filepath.Join(os.TempDir(), "vm-exec-cache")
}
