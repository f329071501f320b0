package vm

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-runtime/wat"
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// IsText reports whether a module should be treated as WebAssembly text:
// either the path ends in .wat or the contents lack the binary magic.
func IsText(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".wat") {
		return true
	}
	trimmed := bytes.TrimSpace(data)
	return !bytes.HasPrefix(data, wasmMagic) && bytes.HasPrefix(trimmed, []byte("(module"))
}

// CompileText converts WebAssembly text format into a binary module.
func CompileText(src []byte) ([]byte, error) {
	wasm, err := wat.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("compile text format: %w", err)
	}
	return wasm, nil
}
