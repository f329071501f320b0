package launcher

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode selects how the single optional argument is passed to the entry point.
type Mode int

const (
	ModeNone Mode = iota
	ModeNumber
	ModeString
	ModeFile
)

func (m Mode) String() string {
	switch m {
	case ModeNumber:
		return "number"
	case ModeString:
		return "string"
	case ModeFile:
		return "file"
	default:
		return "none"
	}
}

// Flag returns the command-line flag selecting m, e.g. "--string".
func (m Mode) Flag() string {
	if m == ModeNone {
		return ""
	}
	return "--" + m.String()
}

// ParseMode maps a command-line flag to its Mode.
func ParseMode(flag string) (Mode, bool) {
	switch flag {
	case "--number":
		return ModeNumber, true
	case "--string":
		return ModeString, true
	case "--file":
		return ModeFile, true
	default:
		return ModeNone, false
	}
}

// Call names an entry point and its argument.
type Call struct {
	Entry string
	Mode  Mode
	Value string
}

// Validate checks that the argument is present and well-formed for its mode.
// File readability is checked when the call is made.
func (c Call) Validate() error {
	if c.Entry == "" {
		return usageError("missing entry point")
	}
	if c.Mode == ModeNone {
		return nil
	}
	if c.Mode == ModeFile && c.Value == "" {
		return usageError(fmt.Sprintf("flag %s requires a value", c.Mode.Flag()))
	}
	if c.Mode == ModeNumber {
		if _, err := ParseNumber(c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Request is one launcher invocation.
type Request struct {
	ModulePath string
	Call
}

func (r Request) Validate() error {
	if r.ModulePath == "" {
		return usageError("missing module path")
	}
	return r.Call.Validate()
}

// ParseArgs parses "<module> <entry> [--string v | --number v | --file p]".
func ParseArgs(args []string) (Request, error) {
	if len(args) == 0 {
		return Request{}, usageError("missing module path")
	}
	call, err := ParseCall(args[1:])
	if err != nil {
		return Request{}, err
	}
	req := Request{ModulePath: args[0], Call: call}
	return req, req.Validate()
}

// ParseCall parses "<entry> [--string v | --number v | --file p]".
func ParseCall(args []string) (Call, error) {
	if len(args) == 0 || args[0] == "" {
		return Call{}, usageError("missing entry point")
	}
	call := Call{Entry: args[0]}
	if len(args) == 1 {
		return call, nil
	}

	mode, ok := ParseMode(args[1])
	if !ok {
		return Call{}, usageError(fmt.Sprintf("unknown flag %q", args[1]))
	}
	if len(args) < 3 {
		return Call{}, usageError(fmt.Sprintf("flag %s requires a value", args[1]))
	}
	if len(args) > 3 {
		return Call{}, usageError(fmt.Sprintf("unexpected argument %q", args[3]))
	}

	call.Mode = mode
	call.Value = args[2]
	return call, call.Validate()
}

// ParseNumber parses a decimal or 0x/0o/0b-prefixed integer, or a decimal
// float. The result must be finite.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &Error{Kind: KindInvalidArgument, Detail: "empty number"}
	}

	if isPrefixedInt(s) {
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, &Error{Kind: KindInvalidArgument, Detail: fmt.Sprintf("invalid number %q", s), Cause: err}
		}
		return float64(n), nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &Error{Kind: KindInvalidArgument, Detail: fmt.Sprintf("invalid number %q", s), Cause: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Kind: KindInvalidArgument, Detail: fmt.Sprintf("number %q is not finite", s)}
	}
	return v, nil
}

func isPrefixedInt(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if len(s) < 2 || s[0] != '0' {
		return false
	}
	switch s[1] {
	case 'x', 'X', 'o', 'O', 'b', 'B':
		return true
	}
	return false
}
