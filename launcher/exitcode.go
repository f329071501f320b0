package launcher

import (
	"math"

	"github.com/LEA-Blockchain/vm-exec/vm"
)

// ExitCode maps an entry point's results to a process exit status.
//
// The first result is read according to its type. Floats are truncated
// toward zero; NaN and infinities map to 1. The integer is then reduced
// modulo 256 into [0, 255], so -1 becomes 255 and 256 becomes 0. A function
// with no results exits 0.
func ExitCode(types []vm.ValueType, values []uint64) int {
	if len(types) == 0 || len(values) == 0 {
		return 0
	}

	v := values[0]
	switch types[0] {
	case vm.ValueTypeI32:
		return reduceExitCode(int64(vm.DecodeI32(v)))
	case vm.ValueTypeI64:
		return reduceExitCode(vm.DecodeI64(v))
	case vm.ValueTypeF32:
		return floatExitCode(float64(vm.DecodeF32(v)))
	case vm.ValueTypeF64:
		return floatExitCode(vm.DecodeF64(v))
	default:
		return reduceExitCode(int64(v))
	}
}

func reduceExitCode(n int64) int {
	m := n % 256
	if m < 0 {
		m += 256
	}
	return int(m)
}

func floatExitCode(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	m := math.Mod(math.Trunc(f), 256)
	if m < 0 {
		m += 256
	}
	return int(m)
}
