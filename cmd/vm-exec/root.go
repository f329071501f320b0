package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/LEA-Blockchain/vm-exec/hostfunc"
	"github.com/LEA-Blockchain/vm-exec/launcher"
	"github.com/LEA-Blockchain/vm-exec/vm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app carries the parsed global flags and the exit status of the last
// invocation.
type app struct {
	engine    string
	allocator string
	timeout   time.Duration
	memory    string
	noCache   bool
	cacheDir  string
	verbose   bool

	exitCode int
}

// Execute runs the CLI with os.Args and returns the process exit status.
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteC()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if launcher.KindOf(err) == launcher.KindUsage {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return 1
	}
	return a.exitCode
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "vm-exec <module> <entry_point> [--string <value> | --number <value> | --file <path>]",
		Short: "Run one exported function of a WebAssembly module",
		Long: `vm-exec - Load a WebAssembly module and call one of its exports.

The entry point receives no argument, a number (--number), or a
(pointer, length) pair pointing at bytes copied into the module's linear
memory (--string, --file). Memory for those bytes is reserved through the
module's exported allocator. The function's return value becomes the
process exit code, reduced modulo 256.

Modules ending in .wat are compiled from WebAssembly text first.`,
		Args:          cobra.ArbitraryArgs,
		RunE:          a.runLaunch,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &launcher.Error{Kind: launcher.KindUsage, Detail: flagErrorDetail(err)}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.engine, "engine", vm.EngineWazero, "Engine: "+strings.Join(vm.Engines(), ", "))
	pf.StringVar(&a.allocator, "allocator", launcher.DefaultAllocator, "Exported allocator used for --string and --file")
	pf.DurationVar(&a.timeout, "timeout", 0, "Call timeout (0 = none)")
	pf.StringVar(&a.memory, "memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	pf.BoolVar(&a.noCache, "no-cache", false, "Disable compilation cache")
	pf.StringVar(&a.cacheDir, "cache-dir", "", "Compilation cache directory (default: ~/.cache/vm-exec)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Log runtime activity to stderr")

	addArgumentFlags(root)

	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newReplCmd(a))
	return root
}

// addArgumentFlags registers --string, --number and --file on the root
// command only; they are parsed back into launcher tokens by launchArgs.
func addArgumentFlags(cmd *cobra.Command) {
	cmd.Flags().String("string", "", "Pass `value` to the entry point as (ptr, len)")
	cmd.Flags().String("number", "", "Pass `value` to the entry point as a number")
	cmd.Flags().String("file", "", "Pass the contents of `path` to the entry point as (ptr, len)")
}

// launchArgs rebuilds the "<module> <entry> [--mode value]" token list from
// positional arguments and whichever argument flag was set.
func launchArgs(cmd *cobra.Command, args []string) ([]string, error) {
	tokens := append([]string(nil), args...)

	var set []string
	for _, mode := range []launcher.Mode{launcher.ModeString, launcher.ModeNumber, launcher.ModeFile} {
		name := mode.String()
		if !cmd.Flags().Changed(name) {
			continue
		}
		value, _ := cmd.Flags().GetString(name)
		tokens = append(tokens, mode.Flag(), value)
		set = append(set, mode.Flag())
	}
	if len(set) > 1 {
		return nil, &launcher.Error{
			Kind:   launcher.KindUsage,
			Detail: fmt.Sprintf("flags %s are mutually exclusive", strings.Join(set, " and ")),
		}
	}
	return tokens, nil
}

func (a *app) runLaunch(cmd *cobra.Command, args []string) error {
	tokens, err := launchArgs(cmd, args)
	if err != nil {
		return err
	}
	req, err := launcher.ParseArgs(tokens)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := a.logger(cmd.ErrOrStderr())
	defer logger.Sync()

	rt, err := a.newRuntime(ctx, cmd, logger)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	shim := a.newShim(cmd.OutOrStdout(), logger)
	l := launcher.New(rt, shim, a.launcherOptions(cmd.OutOrStdout(), logger)...)

	result, err := l.Run(ctx, req)
	if err != nil {
		return err
	}

	logger.Debug("call finished",
		zap.String("entry", req.Entry),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))
	fmt.Fprintf(cmd.OutOrStdout(), "Exit code: %d\n", result.ExitCode)
	a.exitCode = result.ExitCode
	return nil
}

func (a *app) newRuntime(ctx context.Context, cmd *cobra.Command, logger *zap.Logger) (vm.Runtime, error) {
	opts := []vm.Option{
		vm.WithStdout(cmd.OutOrStdout()),
		vm.WithStderr(cmd.ErrOrStderr()),
		vm.WithLogger(logger.Named("vm")),
	}
	if !a.noCache {
		opts = append(opts, vm.WithDiskCache(a.cacheDir))
	}
	if a.memory != "" {
		pages, err := parseMemoryLimit(a.memory)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vm.WithMemoryLimit(pages))
	}

	rt, err := vm.New(ctx, a.engine, opts...)
	if err != nil {
		return nil, fmt.Errorf("create %s runtime: %w", a.engine, err)
	}
	return rt, nil
}

func (a *app) newShim(out io.Writer, logger *zap.Logger) *hostfunc.Shim {
	return hostfunc.New(
		hostfunc.WithOutput(out),
		hostfunc.WithLogger(logger.Named("hostfunc")),
	)
}

func (a *app) launcherOptions(out io.Writer, logger *zap.Logger) []launcher.Option {
	return []launcher.Option{
		launcher.WithAllocator(a.allocator),
		launcher.WithTimeout(a.timeout),
		launcher.WithOutput(out),
		launcher.WithLogger(logger.Named("launcher")),
	}
}

// logger returns a development console logger on w when --verbose is set,
// otherwise a no-op logger.
func (a *app) logger(w io.Writer) *zap.Logger {
	if !a.verbose {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "1mb":
		return vm.MemoryLimit1MB, nil
	case "16mb":
		return vm.MemoryLimit16MB, nil
	case "64mb":
		return vm.MemoryLimit64MB, nil
	case "256mb":
		return vm.MemoryLimit256MB, nil
	case "1gb":
		return vm.MemoryLimit1GB, nil
	default:
		return 0, &launcher.Error{
			Kind:   launcher.KindUsage,
			Detail: fmt.Sprintf("invalid memory limit %q: use 1mb, 16mb, 64mb, 256mb or 1gb", s),
		}
	}
}

// flagErrorDetail rewrites pflag parse errors into the launcher's wording.
func flagErrorDetail(err error) string {
	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return fmt.Sprintf("unknown flag %q", name)
	}
	if name, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return fmt.Sprintf("flag %s requires a value", name)
	}
	return msg
}
