package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/LEA-Blockchain/vm-exec/launcher"
	"github.com/LEA-Blockchain/vm-exec/vm"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const replPrompt = "vm> "

func newReplCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl <module>",
		Short: "Load a module once and call its exports interactively",
		Long: `Load a module and call its exports one line at a time. The module
instance, including its linear memory, persists between calls.

Each line has the form:
  <entry_point> [--string <value> | --number <value> | --file <path>]

Values may be quoted with '...' or "...".

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)

Type 'exports' to list callable functions, 'exit' or 'quit' to end the
session, or press Ctrl+D.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &launcher.Error{Kind: launcher.KindUsage, Detail: "repl takes exactly one module path"}
			}
			return nil
		},
		RunE: a.runRepl,
	}
	cmd.Flags().String("history", "", "History file path (default: ~/.vm-exec_history)")
	return cmd
}

func (a *app) runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".vm-exec_history")
	}

	ctx := cmd.Context()
	logger := a.logger(cmd.ErrOrStderr())
	defer logger.Sync()

	rt, err := a.newRuntime(ctx, cmd, logger)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	out := cmd.OutOrStdout()
	l := launcher.New(rt, a.newShim(out, logger), a.launcherOptions(out, logger)...)
	session, err := l.Load(ctx, args[0])
	if err != nil {
		return err
	}
	defer session.Close(context.Background())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            replPrompt,
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "vm-exec REPL for %s (type 'exit' to quit, Ctrl+D to exit)\n", args[0])

	r := &repl{session: session, out: out, errOut: cmd.ErrOrStderr()}
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out)
				break
			}
			return fmt.Errorf("read input: %w", err)
		}
		if !r.eval(ctx, line) {
			break
		}
	}
	return nil
}

// repl evaluates input lines against one loaded module.
type repl struct {
	session *launcher.Session
	out     io.Writer
	errOut  io.Writer
}

// eval runs one line and reports whether the loop should continue. Call
// failures are printed; they do not end the session.
func (r *repl) eval(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return true
	case "exit", "quit":
		return false
	case "exports":
		r.exports(ctx)
		return true
	}

	tokens, err := splitLine(line)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return true
	}
	call, err := launcher.ParseCall(tokens)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return true
	}

	result, err := r.session.Call(ctx, call)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		if errors.Is(err, launcher.ErrTrap) {
			fmt.Fprintln(r.errOut, "The module trapped; its state may be inconsistent.")
		}
		return true
	}
	fmt.Fprintf(r.out, "Exit code: %d\n", result.ExitCode)
	return true
}

func (r *repl) exports(ctx context.Context) {
	wasm, err := launcher.ReadModule(r.session.Path())
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	info, err := vm.Describe(ctx, wasm)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	printExports(r.out, info)
}

// splitLine splits a line into words. Single quotes preserve everything
// literally; inside double quotes and bare words a backslash escapes the
// next character.
func splitLine(line string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
