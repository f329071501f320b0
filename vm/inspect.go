package vm

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// FunctionInfo describes an imported or exported function.
type FunctionInfo struct {
	Module  string // import module; empty for exports
	Name    string
	Params  []ValueType
	Results []ValueType
}

func (f FunctionInfo) Signature() string {
	return Signature(f.Params, f.Results)
}

// MemoryInfo describes an exported or imported memory, sized in pages.
type MemoryInfo struct {
	Module   string
	Name     string
	MinPages uint32
	MaxPages uint32
	HasMax   bool
}

// ModuleInfo is the static import/export surface of a module.
type ModuleInfo struct {
	Imports          []FunctionInfo
	Exports          []FunctionInfo
	ImportedMemories []MemoryInfo
	ExportedMemories []MemoryInfo
}

// Describe compiles wasm without instantiating it and reports its imports
// and exports.
func Describe(ctx context.Context, wasm []byte) (*ModuleInfo, error) {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	defer compiled.Close(ctx)

	info := &ModuleInfo{}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		info.Imports = append(info.Imports, functionInfo(module, name, def))
	}
	for name, def := range compiled.ExportedFunctions() {
		info.Exports = append(info.Exports, functionInfo("", name, def))
	}
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		info.ImportedMemories = append(info.ImportedMemories, memoryInfo(module, name, def))
	}
	for name, def := range compiled.ExportedMemories() {
		info.ExportedMemories = append(info.ExportedMemories, memoryInfo("", name, def))
	}

	sort.Slice(info.Exports, func(i, j int) bool { return info.Exports[i].Name < info.Exports[j].Name })
	sort.Slice(info.ExportedMemories, func(i, j int) bool {
		return info.ExportedMemories[i].Name < info.ExportedMemories[j].Name
	})
	return info, nil
}

// Unresolved returns the function imports of info that imports cannot
// satisfy. Imports from wasi_snapshot_preview1 are skipped when wasi is set.
func (info *ModuleInfo) Unresolved(imports *ImportSet, wasi bool) []FunctionInfo {
	var missing []FunctionInfo
	for _, imp := range info.Imports {
		if wasi && imp.Module == "wasi_snapshot_preview1" {
			continue
		}
		if _, ok := imports.Lookup(imp.Module, imp.Name); !ok {
			missing = append(missing, imp)
		}
	}
	return missing
}

func functionInfo(module, name string, def api.FunctionDefinition) FunctionInfo {
	return FunctionInfo{
		Module:  module,
		Name:    name,
		Params:  def.ParamTypes(),
		Results: def.ResultTypes(),
	}
}

func memoryInfo(module, name string, def api.MemoryDefinition) MemoryInfo {
	maxPages, ok := def.Max()
	return MemoryInfo{
		Module:   module,
		Name:     name,
		MinPages: def.Min(),
		MaxPages: maxPages,
		HasMax:   ok,
	}
}
