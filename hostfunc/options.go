package hostfunc

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// Option configures a Shim.
type Option func(*config)

type config struct {
	module     string
	out        io.Writer
	logger     *zap.Logger
	now        func() time.Time
	maxLogSize uint32
}

func defaultConfig() config {
	return config{
		module:     DefaultModule,
		out:        io.Discard,
		logger:     zap.NewNop(),
		now:        time.Now,
		maxLogSize: 64 * 1024,
	}
}

// WithModule sets the import module name the built-in functions are
// registered under. Defaults to "env".
func WithModule(name string) Option {
	return func(c *config) {
		c.module = name
	}
}

// WithOutput sets where __lea_log writes guest messages.
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

// WithClock overrides the time source used by __lea_time.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithMaxLogSize limits the message length accepted by __lea_log.
func WithMaxLogSize(size uint32) Option {
	return func(c *config) {
		c.maxLogSize = size
	}
}
