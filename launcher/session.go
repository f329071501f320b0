package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/LEA-Blockchain/vm-exec/vm"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("session closed")

// Session is a loaded module that can be called more than once.
type Session struct {
	launcher *Launcher
	path     string
	instance vm.Instance

	mu     sync.Mutex
	closed bool
}

// Path returns the module path the session was loaded from.
func (s *Session) Path() string {
	return s.path
}

// Instance returns the underlying module instance.
func (s *Session) Instance() vm.Instance {
	return s.instance
}

// Call invokes one exported function. Memory reserved for string and file
// arguments is never freed; it belongs to the module.
func (s *Session) Call(ctx context.Context, call Call) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Result{}, ErrSessionClosed
	}
	if err := call.Validate(); err != nil {
		return Result{}, err
	}

	cfg := s.launcher.cfg
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	fn, err := s.lookup(call.Entry)
	if err != nil {
		return Result{}, err
	}

	values, err := s.argumentValues(ctx, call)
	if err != nil {
		return Result{}, err
	}

	params, mismatch, err := encodeArgs(fn.ParamTypes(), values)
	if err != nil {
		return Result{}, err
	}
	if mismatch {
		cfg.logger.Warn("argument count does not match entry point signature",
			zap.String("entry", call.Entry),
			zap.String("signature", vm.Signature(fn.ParamTypes(), fn.ResultTypes())),
			zap.Int("given", len(values)))
	}

	fmt.Fprintf(cfg.out, "Calling %s(%s)\n", call.Entry, describeArgs(call, values))

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return s.callFailed(ctx, call, err)
	}

	return Result{
		ExitCode: ExitCode(fn.ResultTypes(), results),
		Values:   results,
		Types:    fn.ResultTypes(),
	}, nil
}

// lookup resolves an exported function, distinguishing missing exports from
// exports of another kind.
func (s *Session) lookup(name string) (vm.Function, error) {
	if fn := s.instance.ExportedFunction(name); fn != nil {
		return fn, nil
	}

	detail := fmt.Sprintf("%q is not exported by %s", name, s.path)
	if kind := s.instance.ExportKind(name); kind != vm.ExportNone {
		detail = fmt.Sprintf("%q is not exported as a function by %s (it is a %s)", name, s.path, kind)
	}
	return nil, &Error{Kind: KindNotFound, Module: s.path, Entry: name, Detail: detail}
}

// argumentValues prepares the numeric arguments for call. String and file
// payloads are copied into guest memory and passed as (ptr, len).
func (s *Session) argumentValues(ctx context.Context, call Call) ([]float64, error) {
	switch call.Mode {
	case ModeNumber:
		v, err := ParseNumber(call.Value)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil

	case ModeString:
		ptr, err := s.copyIn(ctx, call.Entry, []byte(call.Value))
		if err != nil {
			return nil, err
		}
		return []float64{float64(ptr), float64(len(call.Value))}, nil

	case ModeFile:
		data, err := os.ReadFile(call.Value)
		if err != nil {
			return nil, &Error{
				Kind:   KindIO,
				Module: s.path,
				Entry:  call.Entry,
				Detail: fmt.Sprintf("cannot read argument file %s", call.Value),
				Cause:  err,
			}
		}
		ptr, err := s.copyIn(ctx, call.Entry, data)
		if err != nil {
			return nil, err
		}
		return []float64{float64(ptr), float64(len(data))}, nil

	default:
		return nil, nil
	}
}

// copyIn reserves len(data) bytes with the module's allocator and copies
// data there. A null pointer for a non-empty request is an allocation
// failure.
func (s *Session) copyIn(ctx context.Context, entry string, data []byte) (uint32, error) {
	cfg := s.launcher.cfg
	fail := func(detail string, cause error) error {
		return &Error{Kind: KindAllocation, Module: s.path, Entry: entry, Detail: detail, Cause: cause}
	}

	alloc := s.instance.ExportedFunction(cfg.allocator)
	if alloc == nil {
		return 0, &Error{
			Kind:   KindNotFound,
			Module: s.path,
			Entry:  entry,
			Detail: fmt.Sprintf("allocator %q is not exported by %s", cfg.allocator, s.path),
		}
	}
	if len(alloc.ResultTypes()) == 0 {
		return 0, fail(fmt.Sprintf("allocator %q returns no value", cfg.allocator), nil)
	}

	size := len(data)
	if uint64(size) > uint64(^uint32(0)) {
		return 0, fail(fmt.Sprintf("%d bytes exceed the 32-bit address space", size), nil)
	}

	params, _, err := encodeArgs(alloc.ParamTypes(), []float64{float64(size)})
	if err != nil {
		return 0, err
	}
	res, err := alloc.Call(ctx, params...)
	if err != nil {
		return 0, fail(fmt.Sprintf("allocator %q failed for %d bytes", cfg.allocator, size), err)
	}

	raw := res[0]
	if alloc.ResultTypes()[0] == vm.ValueTypeI32 {
		raw = uint64(vm.DecodeU32(raw))
	}
	if raw > uint64(^uint32(0)) {
		return 0, fail(fmt.Sprintf("allocator %q returned address %d outside linear memory", cfg.allocator, raw), nil)
	}
	ptr := uint32(raw)
	if ptr == 0 && size > 0 {
		return 0, fail(fmt.Sprintf("allocator %q returned null for %d bytes", cfg.allocator, size), nil)
	}

	mem := s.instance.Memory()
	if mem == nil {
		return 0, &Error{
			Kind:   KindNotFound,
			Module: s.path,
			Entry:  entry,
			Detail: fmt.Sprintf("%s exports no memory", s.path),
		}
	}
	if !mem.Write(ptr, data) {
		return 0, fail(fmt.Sprintf("region [%d, %d) is outside linear memory (%d bytes)",
			ptr, uint64(ptr)+uint64(size), mem.Size()), nil)
	}

	cfg.logger.Debug("copied argument into guest memory",
		zap.String("allocator", cfg.allocator),
		zap.Uint32("ptr", ptr),
		zap.Int("len", size))
	return ptr, nil
}

// callFailed classifies an error raised by the entry point. A WASI
// proc_exit becomes a normal result carrying its exit status; an exit
// forced by ctx ending is a trap.
func (s *Session) callFailed(ctx context.Context, call Call, err error) (Result, error) {
	if interrupted(ctx) {
		detail := fmt.Sprintf("%s was cancelled", call.Entry)
		if isTimeout(ctx, err) {
			detail = fmt.Sprintf("%s timed out after %v", call.Entry, s.launcher.cfg.timeout)
		}
		return Result{}, &Error{
			Kind:   KindTrap,
			Module: s.path,
			Entry:  call.Entry,
			Detail: detail,
			Cause:  err,
		}
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		s.launcher.cfg.logger.Debug("module exited", zap.String("entry", call.Entry), zap.Uint32("code", code))
		return Result{ExitCode: reduceExitCode(int64(code))}, nil
	}

	return Result{}, &Error{
		Kind:   KindTrap,
		Module: s.path,
		Entry:  call.Entry,
		Detail: fmt.Sprintf("%s trapped", call.Entry),
		Cause:  err,
	}
}

// Close releases the module instance.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.instance.Close(ctx)
}
