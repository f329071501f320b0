package launcher

import (
	"errors"
	"strings"
)

// Kind categorizes a launcher failure. Every kind is terminal.
type Kind string

const (
	KindUsage           Kind = "usage"            // missing or malformed arguments
	KindNotFound        Kind = "not_found"        // export missing or not a function
	KindIO              Kind = "io"               // module or argument file unreadable
	KindInvalidArgument Kind = "invalid_argument" // --number value not a finite number
	KindAllocation      Kind = "allocation"       // allocator returned null or out of range
	KindInstantiation   Kind = "instantiation"    // invalid module bytes or link failure
	KindTrap            Kind = "trap"             // module faulted during the call
	KindUnknown         Kind = "unknown"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrUsage           = &Error{Kind: KindUsage}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrIO              = &Error{Kind: KindIO}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrAllocation      = &Error{Kind: KindAllocation}
	ErrInstantiation   = &Error{Kind: KindInstantiation}
	ErrTrap            = &Error{Kind: KindTrap}
)

// Error is the structured error returned by the launcher.
type Error struct {
	Kind   Kind
	Module string
	Entry  string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.Detail != "" {
		b.WriteByte(' ')
		b.WriteString(e.Detail)
	}

	if e.Module != "" && !strings.Contains(e.Detail, e.Module) {
		b.WriteString(" in ")
		b.WriteString(e.Module)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf classifies err. Errors not produced by the launcher are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func usageError(detail string) *Error {
	return &Error{Kind: KindUsage, Detail: detail}
}
