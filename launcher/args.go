package launcher

import (
	"fmt"
	"math"

	"github.com/LEA-Blockchain/vm-exec/vm"
)

const (
	twoTo32 = 4294967296.0
	twoTo63 = 9223372036854775808.0
)

// encodeNumber converts v to the representation of a parameter of type t.
// i32 follows JavaScript ToInt32: truncate toward zero, then wrap modulo 2^32.
// i64 truncates and rejects values outside the int64 range.
func encodeNumber(v float64, t vm.ValueType) (uint64, error) {
	switch t {
	case vm.ValueTypeF64:
		return vm.EncodeF64(v), nil
	case vm.ValueTypeF32:
		return vm.EncodeF32(float32(v)), nil
	case vm.ValueTypeI64:
		n := math.Trunc(v)
		if n < -twoTo63 || n >= twoTo63 {
			return 0, &Error{Kind: KindInvalidArgument, Detail: fmt.Sprintf("number %v does not fit in i64", v)}
		}
		return vm.EncodeI64(int64(n)), nil
	default:
		m := math.Mod(math.Trunc(v), twoTo32)
		if m < 0 {
			m += twoTo32
		}
		return vm.EncodeI32(int32(uint32(m))), nil
	}
}

// encodeArgs matches values to params the way a JavaScript host would:
// missing parameters are zero and surplus values are dropped. The returned
// bool reports whether the counts differed.
func encodeArgs(params []vm.ValueType, values []float64) ([]uint64, bool, error) {
	out := make([]uint64, len(params))
	for i, t := range params {
		if i >= len(values) {
			break
		}
		enc, err := encodeNumber(values[i], t)
		if err != nil {
			return nil, false, err
		}
		out[i] = enc
	}
	return out, len(values) != len(params), nil
}

// describeArgs renders the argument list for progress output.
func describeArgs(call Call, values []float64) string {
	switch call.Mode {
	case ModeNumber:
		return fmt.Sprint(values[0])
	case ModeString, ModeFile:
		return fmt.Sprintf("ptr=%v, len=%v", values[0], values[1])
	default:
		return ""
	}
}
