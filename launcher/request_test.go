package launcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Request
	}{
		{
			name: "entry only",
			args: []string{"m.wasm", "main"},
			want: Request{ModulePath: "m.wasm", Call: Call{Entry: "main"}},
		},
		{
			name: "string",
			args: []string{"m.wasm", "say", "--string", "hello world"},
			want: Request{ModulePath: "m.wasm", Call: Call{Entry: "say", Mode: ModeString, Value: "hello world"}},
		},
		{
			name: "empty string",
			args: []string{"m.wasm", "say", "--string", ""},
			want: Request{ModulePath: "m.wasm", Call: Call{Entry: "say", Mode: ModeString}},
		},
		{
			name: "negative number",
			args: []string{"m.wasm", "id", "--number", "-5"},
			want: Request{ModulePath: "m.wasm", Call: Call{Entry: "id", Mode: ModeNumber, Value: "-5"}},
		},
		{
			name: "file",
			args: []string{"m.wasm", "load", "--file", "in.bin"},
			want: Request{ModulePath: "m.wasm", Call: Call{Entry: "load", Mode: ModeFile, Value: "in.bin"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.args)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		kind Kind
		msg  string
	}{
		{"no args", nil, KindUsage, "missing module path"},
		{"no entry", []string{"m.wasm"}, KindUsage, "missing entry point"},
		{"unknown flag", []string{"m.wasm", "main", "--bytes", "x"}, KindUsage, `unknown flag "--bytes"`},
		{"missing value", []string{"m.wasm", "main", "--number"}, KindUsage, "flag --number requires a value"},
		{"extra argument", []string{"m.wasm", "main", "--string", "a", "b"}, KindUsage, `unexpected argument "b"`},
		{"empty file", []string{"m.wasm", "main", "--file", ""}, KindUsage, "flag --file requires a value"},
		{"bad number", []string{"m.wasm", "main", "--number", "ten"}, KindInvalidArgument, `invalid number "ten"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			require.Error(t, err)
			require.Equal(t, tt.kind, KindOf(err))
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"42", 42},
		{"-7", -7},
		{" 12 ", 12},
		{"2.5", 2.5},
		{"1e3", 1000},
		{"0x1F", 31},
		{"-0x10", -16},
		{"0b101", 5},
		{"0o17", 15},
	}

	for _, tt := range tests {
		got, err := ParseNumber(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		require.Equal(t, tt.want, got, "input %q", tt.in)
	}

	for _, in := range []string{"", "abc", "NaN", "+Inf", "-Infinity", "1e400", "0xZZ"} {
		_, err := ParseNumber(in)
		require.ErrorIs(t, err, ErrInvalidArgument, "input %q", in)
	}
}

func TestModeFlags(t *testing.T) {
	for _, m := range []Mode{ModeNumber, ModeString, ModeFile} {
		got, ok := ParseMode(m.Flag())
		require.True(t, ok)
		require.Equal(t, m, got)
	}
	_, ok := ParseMode("--none")
	require.False(t, ok)
	require.Equal(t, "", ModeNone.Flag())
}
