//go:build !cgo

package vm

import "errors"

// ErrWasmtimeUnavailable is returned when the binary was built without cgo.
var ErrWasmtimeUnavailable = errors.New("wasmtime engine requires a cgo build")

func newWasmtime(cfg config) (Runtime, error) {
	return nil, ErrWasmtimeUnavailable
}
