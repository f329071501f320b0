package hostfunc

import (
	"context"
	"fmt"

	"github.com/LEA-Blockchain/vm-exec/vm"
	"go.uber.org/zap"
)

// Built-in import names.
const (
	DefaultModule = "env"
	LogImport     = "__lea_log"
	AbortImport   = "__lea_abort"
	TimeImport    = "__lea_time"
)

// AbortError is returned when the guest calls __lea_abort.
type AbortError struct {
	Code int32
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("abort: code %d", e.Code)
}

func (s *Shim) registerBuiltins() {
	s.registry.Register(Import{
		Module: s.cfg.module,
		Name:   LogImport,
		Params: []vm.ValueType{vm.ValueTypeI32, vm.ValueTypeI32},
		Func:   s.log,
	})
	s.registry.Register(Import{
		Module: s.cfg.module,
		Name:   AbortImport,
		Params: []vm.ValueType{vm.ValueTypeI32},
		Func:   s.abort,
	})
	s.registry.Register(Import{
		Module:  s.cfg.module,
		Name:    TimeImport,
		Results: []vm.ValueType{vm.ValueTypeI64},
		Func:    s.time,
	})
}

// log writes the UTF-8 message at (ptr, len) as one line.
func (s *Shim) log(ctx context.Context, inst vm.Instance, params []uint64) ([]uint64, error) {
	ptr, length := vm.DecodeU32(params[0]), vm.DecodeU32(params[1])
	if length > s.cfg.maxLogSize {
		return nil, fmt.Errorf("%s: message of %d bytes exceeds limit %d", LogImport, length, s.cfg.maxLogSize)
	}

	msg, err := ReadBytes(inst, ptr, length)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", LogImport, err)
	}

	s.cfg.logger.Debug("guest log", zap.Uint32("ptr", ptr), zap.Uint32("len", length))
	fmt.Fprintln(s.cfg.out, string(msg))
	return nil, nil
}

func (s *Shim) abort(ctx context.Context, inst vm.Instance, params []uint64) ([]uint64, error) {
	code := vm.DecodeI32(params[0])
	s.cfg.logger.Debug("guest abort", zap.Int32("code", code))
	return nil, &AbortError{Code: code}
}

// time returns wall-clock Unix milliseconds.
func (s *Shim) time(ctx context.Context, inst vm.Instance, params []uint64) ([]uint64, error) {
	return []uint64{vm.EncodeI64(s.cfg.now().UnixMilli())}, nil
}
