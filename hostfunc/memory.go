package hostfunc

import (
	"errors"
	"fmt"

	"github.com/LEA-Blockchain/vm-exec/vm"
)

var (
	ErrNoMemory    = errors.New("module exports no memory")
	ErrOutOfBounds = errors.New("out of bounds memory access")
)

// ReadBytes copies length bytes at ptr out of the instance's linear memory.
func ReadBytes(inst vm.Instance, ptr, length uint32) ([]byte, error) {
	mem := inst.Memory()
	if mem == nil {
		return nil, ErrNoMemory
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %d (memory size %d): %w", length, ptr, mem.Size(), ErrOutOfBounds)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteBytes copies data into the instance's linear memory at ptr.
func WriteBytes(inst vm.Instance, ptr uint32, data []byte) error {
	mem := inst.Memory()
	if mem == nil {
		return ErrNoMemory
	}
	if !mem.Write(ptr, data) {
		return fmt.Errorf("write %d bytes at %d (memory size %d): %w", len(data), ptr, mem.Size(), ErrOutOfBounds)
	}
	return nil
}
