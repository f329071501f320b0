package vm

import (
	"context"
	"fmt"
	"strings"
)

// Engine names accepted by New.
const (
	EngineWazero   = "wazero"
	EngineWasmtime = "wasmtime"
)

// Engines lists the supported engine names.
func Engines() []string {
	return []string{EngineWazero, EngineWasmtime}
}

// New creates a Runtime backed by the named engine. An empty name selects wazero.
func New(ctx context.Context, engine string, opts ...Option) (Runtime, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch strings.ToLower(engine) {
	case "", EngineWazero:
		return newWazero(ctx, cfg)
	case EngineWasmtime:
		return newWasmtime(cfg)
	default:
		return nil, fmt.Errorf("unknown engine %q: use %s", engine, strings.Join(Engines(), " or "))
	}
}
