package vm

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

func EncodeI32(v int32) uint64   { return api.EncodeI32(v) }
func EncodeI64(v int64) uint64   { return api.EncodeI64(v) }
func EncodeF32(v float32) uint64 { return api.EncodeF32(v) }
func EncodeF64(v float64) uint64 { return api.EncodeF64(v) }
func DecodeI32(v uint64) int32   { return api.DecodeI32(v) }
func DecodeU32(v uint64) uint32  { return api.DecodeU32(v) }
func DecodeF32(v uint64) float32 { return api.DecodeF32(v) }
func DecodeF64(v uint64) float64 { return api.DecodeF64(v) }

// DecodeI64 reinterprets the raw bits as a signed 64-bit integer.
func DecodeI64(v uint64) int64 { return int64(v) }

// TypeName returns the text-format name of t, e.g. "i32".
func TypeName(t ValueType) string {
	return api.ValueTypeName(t)
}

// FormatValue renders a raw value according to its type.
func FormatValue(t ValueType, v uint64) string {
	switch t {
	case ValueTypeI32:
		return fmt.Sprint(DecodeI32(v))
	case ValueTypeI64:
		return fmt.Sprint(DecodeI64(v))
	case ValueTypeF32:
		return fmt.Sprint(DecodeF32(v))
	case ValueTypeF64:
		return fmt.Sprint(DecodeF64(v))
	default:
		return fmt.Sprintf("0x%x", v)
	}
}

// Signature renders a function type as "(i32, i32) -> i32".
func Signature(params, results []ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(TypeName(p))
	}
	b.WriteByte(')')
	if len(results) > 0 {
		b.WriteString(" -> ")
		if len(results) > 1 {
			b.WriteByte('(')
		}
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(TypeName(r))
		}
		if len(results) > 1 {
			b.WriteByte(')')
		}
	}
	return b.String()
}
