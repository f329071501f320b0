package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/LEA-Blockchain/vm-exec/vm"
	"go.uber.org/zap"
)

// ImportProvider supplies host imports for one instantiation and the
// callback that binds the new instance back into the provider.
type ImportProvider interface {
	CreateImportSet() (*vm.ImportSet, func(vm.Instance))
}

// Result holds the outcome of a successful call.
type Result struct {
	ExitCode int
	Values   []uint64
	Types    []vm.ValueType
	Duration time.Duration
}

// Launcher loads modules into a runtime and invokes their exports.
type Launcher struct {
	runtime vm.Runtime
	imports ImportProvider
	cfg     config
}

// New creates a Launcher. The runtime is borrowed; closing it is the
// caller's job.
func New(runtime vm.Runtime, imports ImportProvider, opts ...Option) *Launcher {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Launcher{runtime: runtime, imports: imports, cfg: cfg}
}

// Run loads req.ModulePath, calls the entry point once and releases the
// instance.
func (l *Launcher) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	session, err := l.Load(ctx, req.ModulePath)
	if err != nil {
		l.logFailure(req, err)
		return Result{Duration: time.Since(start)}, err
	}
	defer session.Close(context.Background())

	result, err := session.Call(ctx, req.Call)
	result.Duration = time.Since(start)
	if err != nil {
		l.logFailure(req, err)
		return result, err
	}
	return result, nil
}

// Load reads and instantiates a module, binding it into the import provider.
func (l *Launcher) Load(ctx context.Context, path string) (*Session, error) {
	wasm, err := ReadModule(path)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(l.cfg.out, "Loading module %s (%d bytes)\n", path, len(wasm))

	imports, bind := l.imports.CreateImportSet()
	inst, err := l.runtime.Instantiate(ctx, wasm, imports)
	if err != nil {
		return nil, &Error{
			Kind:   KindInstantiation,
			Module: path,
			Detail: fmt.Sprintf("cannot instantiate %s", path),
			Cause:  err,
		}
	}
	bind(inst)

	l.cfg.logger.Debug("module instantiated",
		zap.String("module", path),
		zap.Int("bytes", len(wasm)),
		zap.Int("imports", imports.Len()))

	return &Session{
		launcher: l,
		path:     path,
		instance: inst,
	}, nil
}

func (l *Launcher) logFailure(req Request, err error) {
	l.cfg.logger.Error("invocation failed",
		zap.String("module", req.ModulePath),
		zap.String("entry", req.Entry),
		zap.Stringer("mode", req.Mode),
		zap.String("kind", string(KindOf(err))),
		zap.Error(err))
}

// ReadModule reads a module from disk, compiling it first when it is in
// WebAssembly text format.
func ReadModule(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{
			Kind:   KindIO,
			Module: path,
			Detail: fmt.Sprintf("cannot read module %s", path),
			Cause:  err,
		}
	}
	if vm.IsText(path, data) {
		wasm, err := vm.CompileText(data)
		if err != nil {
			return nil, &Error{
				Kind:   KindInstantiation,
				Module: path,
				Detail: fmt.Sprintf("invalid module %s", path),
				Cause:  err,
			}
		}
		return wasm, nil
	}
	return data, nil
}

// isTimeout reports whether err came from ctx expiring.
func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}

// interrupted reports whether the call was stopped because ctx ended. The
// engine surfaces that as a sys.ExitError, but so does a guest calling
// proc_exit(-1), so only ctx is trusted.
func interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}
