package vm

import (
	"io"

	"go.uber.org/zap"
)

// Option configures a Runtime at creation time.
type Option func(*config)

type config struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = engine default
	wasi             bool
	stdout           io.Writer
	stderr           io.Writer
	logger           *zap.Logger
}

func defaultConfig() config {
	return config{
		wasi:   true,
		stdout: io.Discard,
		stderr: io.Discard,
		logger: zap.NewNop(),
	}
}

// WithDiskCache enables a persistent compilation cache (wazero only).
// Optionally provide a custom directory; otherwise uses ~/.cache/vm-exec or XDG_CACHE_HOME/vm-exec.
//
// Examples:
//
//	vm.New(ctx, vm.EngineWazero, vm.WithDiskCache())            // default dir
//	vm.New(ctx, vm.EngineWazero, vm.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to a module.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(4096) = 256MB max
//
// Default is 0 (no limit beyond the engine's own).
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithWASI controls whether wasi_snapshot_preview1 is linked. Enabled by default.
func WithWASI(enabled bool) Option {
	return func(c *config) {
		c.wasi = enabled
	}
}

// WithStdout sets where guest WASI stdout goes.
func WithStdout(w io.Writer) Option {
	return func(c *config) {
		c.stdout = w
	}
}

// WithStderr sets where guest WASI stderr goes.
func WithStderr(w io.Writer) Option {
	return func(c *config) {
		c.stderr = w
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)
