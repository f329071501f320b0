package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	info, err := Describe(context.Background(), compileWAT(t, echoWAT))
	require.NoError(t, err)

	require.Len(t, info.Imports, 1)
	require.Equal(t, "env", info.Imports[0].Module)
	require.Equal(t, "double", info.Imports[0].Name)
	require.Equal(t, "(i32) -> i32", info.Imports[0].Signature())

	var names []string
	for _, exp := range info.Exports {
		names = append(names, exp.Name)
	}
	require.Equal(t, []string{"boom", "call_double", "first_byte", "seven"}, names)

	require.Len(t, info.ExportedMemories, 1)
	require.Equal(t, "memory", info.ExportedMemories[0].Name)
	require.Equal(t, uint32(1), info.ExportedMemories[0].MinPages)
	require.False(t, info.ExportedMemories[0].HasMax)
}

func TestDescribeInvalid(t *testing.T) {
	_, err := Describe(context.Background(), []byte{0x00, 0x61, 0x73})
	require.Error(t, err)
}

func TestUnresolved(t *testing.T) {
	info := &ModuleInfo{Imports: []FunctionInfo{
		{Module: "env", Name: "double"},
		{Module: "env", Name: "missing"},
		{Module: "wasi_snapshot_preview1", Name: "fd_write"},
	}}

	missing := info.Unresolved(doubleImports(), true)
	require.Len(t, missing, 1)
	require.Equal(t, "missing", missing[0].Name)

	require.Len(t, info.Unresolved(doubleImports(), false), 2)
}

func TestSignature(t *testing.T) {
	tests := []struct {
		params, results []ValueType
		want            string
	}{
		{nil, nil, "()"},
		{[]ValueType{ValueTypeI32, ValueTypeI32}, []ValueType{ValueTypeI32}, "(i32, i32) -> i32"},
		{[]ValueType{ValueTypeF64}, []ValueType{ValueTypeI64, ValueTypeF32}, "(f64) -> (i64, f32)"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Signature(tt.params, tt.results))
	}
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "-1", FormatValue(ValueTypeI32, EncodeI32(-1)))
	require.Equal(t, "-5", FormatValue(ValueTypeI64, EncodeI64(-5)))
	require.Equal(t, "2.5", FormatValue(ValueTypeF64, EncodeF64(2.5)))
	require.Equal(t, "0.5", FormatValue(ValueTypeF32, EncodeF32(0.5)))
}

func TestImportSet(t *testing.T) {
	imports := doubleImports()
	imports.Add(HostFunction{Module: "aaa", Name: "z"})
	imports.Add(HostFunction{Module: "aaa", Name: "a"})

	require.Equal(t, []string{"aaa", "env"}, imports.Modules())
	require.Equal(t, 3, imports.Len())

	fns := imports.Functions("aaa")
	require.Equal(t, "a", fns[0].Name)
	require.Equal(t, "z", fns[1].Name)

	_, ok := imports.Lookup("env", "double")
	require.True(t, ok)

	var nilSet *ImportSet
	require.Empty(t, nilSet.Modules())
	require.Zero(t, nilSet.Len())
}

func TestIsText(t *testing.T) {
	require.True(t, IsText("contract.wat", nil))
	require.True(t, IsText("contract.WAT", nil))
	require.True(t, IsText("contract", []byte("  (module)")))
	require.False(t, IsText("contract.wasm", []byte{0x00, 'a', 's', 'm', 0x01, 0, 0, 0}))
	require.False(t, IsText("contract.wasm", []byte("garbage")))
}

func TestCompileText(t *testing.T) {
	wasm, err := CompileText([]byte("(module)"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 'a', 's', 'm'}, wasm[:4])

	_, err = CompileText([]byte("(module (func (bogus)))"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "compile text format")
}
