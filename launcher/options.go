package launcher

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// DefaultAllocator is the export used to reserve guest memory for string
// and file arguments.
const DefaultAllocator = "__lea_malloc"

// Option configures a Launcher.
type Option func(*config)

type config struct {
	allocator string
	timeout   time.Duration
	out       io.Writer
	logger    *zap.Logger
}

func defaultConfig() config {
	return config{
		allocator: DefaultAllocator,
		out:       io.Discard,
		logger:    zap.NewNop(),
	}
}

// WithAllocator sets the exported allocator function name.
func WithAllocator(name string) Option {
	return func(c *config) {
		if name != "" {
			c.allocator = name
		}
	}
}

// WithTimeout bounds each call. Zero, the default, means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithOutput sets where progress lines ("Calling main()") are written.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
