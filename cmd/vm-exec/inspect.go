package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/LEA-Blockchain/vm-exec/launcher"
	"github.com/LEA-Blockchain/vm-exec/vm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const wasiModule = "wasi_snapshot_preview1"

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <module>",
		Short: "List a module's imports and exports",
		Long: `Compile a module without running it and print its imports and exports.

Each import is marked with its provider:
  host        supplied by the built-in host functions
  wasi        supplied by WASI preview1
  unresolved  nothing supplies it; instantiation will fail`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &launcher.Error{Kind: launcher.KindUsage, Detail: "inspect takes exactly one module path"}
			}
			return nil
		},
		RunE: a.runInspect,
	}
}

func (a *app) runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	logger := a.logger(cmd.ErrOrStderr())
	defer logger.Sync()

	wasm, err := launcher.ReadModule(path)
	if err != nil {
		return err
	}
	info, err := vm.Describe(cmd.Context(), wasm)
	if err != nil {
		return &launcher.Error{Kind: launcher.KindInstantiation, Module: path, Detail: fmt.Sprintf("invalid module %s", path), Cause: err}
	}

	imports, _ := a.newShim(io.Discard, logger).CreateImportSet()
	unresolved := info.Unresolved(imports, true)
	logger.Debug("described module",
		zap.String("module", path),
		zap.Int("imports", len(info.Imports)),
		zap.Int("exports", len(info.Exports)),
		zap.Int("unresolved", len(unresolved)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Module: %s (%d bytes)\n", path, len(wasm))
	printImports(out, info, imports)
	printExports(out, info)

	if len(unresolved) > 0 {
		fmt.Fprintf(out, "\n%d unresolved import(s)\n", len(unresolved))
	}
	return nil
}

func printImports(out io.Writer, info *vm.ModuleInfo, imports *vm.ImportSet) {
	fmt.Fprintln(out, "\nImports:")
	if len(info.Imports) == 0 && len(info.ImportedMemories) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, imp := range info.Imports {
		provider := "unresolved"
		if _, ok := imports.Lookup(imp.Module, imp.Name); ok {
			provider = "host"
		} else if imp.Module == wasiModule {
			provider = "wasi"
		}
		fmt.Fprintf(w, "  %s.%s\t%s\t%s\n", imp.Module, imp.Name, imp.Signature(), provider)
	}
	for _, mem := range info.ImportedMemories {
		fmt.Fprintf(w, "  %s.%s\tmemory %s\tunresolved\n", mem.Module, mem.Name, pages(mem))
	}
	w.Flush()
}

func printExports(out io.Writer, info *vm.ModuleInfo) {
	fmt.Fprintln(out, "\nExports:")
	if len(info.Exports) == 0 && len(info.ExportedMemories) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, exp := range info.Exports {
		fmt.Fprintf(w, "  %s\t%s\n", exp.Name, exp.Signature())
	}
	for _, mem := range info.ExportedMemories {
		fmt.Fprintf(w, "  %s\tmemory %s\n", mem.Name, pages(mem))
	}
	w.Flush()
}

func pages(m vm.MemoryInfo) string {
	if m.HasMax {
		return fmt.Sprintf("%d..%d pages", m.MinPages, m.MaxPages)
	}
	return fmt.Sprintf("%d.. pages", m.MinPages)
}
