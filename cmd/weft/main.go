// cmd/weft is the embedder-facing CLI driver: compile a source file to
// a linked Unit, run it, or disassemble it, grounded on the teacher's
// cli/main.go cobra-based root command (single RunE dispatching on
// flags) generalized from opal's fixed "execute a commands file" shape
// to weft's compile/run/disasm/watch subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aledsdavies/weft/bytecode"
	"github.com/aledsdavies/weft/compiler"
	"github.com/aledsdavies/weft/lexer"
	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/parser"
	"github.com/aledsdavies/weft/span"
	"github.com/aledsdavies/weft/value"
	"github.com/aledsdavies/weft/vm"
	"github.com/aledsdavies/weft/weftfmt"
)

const (
	exitSuccess      = 0
	exitUsage        = 1
	exitIOError      = 2
	exitCompileError = 3
	exitRuntimeError = 4
)

func main() {
	var logFile string

	root := &cobra.Command{
		Use:           "weft",
		Short:         "Compile and run weft scripts",
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "rotate structured logs to this file instead of stderr")

	root.AddCommand(
		runCmd(&logFile),
		compileCmd(),
		disasmCmd(),
		watchCmd(&logFile),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitRuntimeError)
	}
}

func newLogger(logFile string) *slog.Logger {
	if logFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	sink := &lumberjack.Logger{Filename: logFile, MaxSize: 10, MaxBackups: 3}
	return slog.New(slog.NewJSONHandler(sink, nil))
}

// compileUnit reads, lexes, parses, and compiles path into a linked
// Unit, installing ctx's host names for link-time resolution. Any
// non-fatal Warnings the compiler accumulated are logged rather than
// surfaced as an error.
func compileUnit(path string, ctx *module.Context, logger *slog.Logger) (*bytecode.Unit, uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	src := span.New(path, string(data))
	toks, lexDiags := lexer.Tokenize(src)
	if len(lexDiags) > 0 {
		return nil, 0, fmt.Errorf("%s: %d lexical error(s), first: %s", path, len(lexDiags), lexDiags[0].Message)
	}
	prog, parseErrs := parser.ParseProgram(toks)
	if len(parseErrs) > 0 {
		return nil, 0, fmt.Errorf("%s: %s", path, parseErrs[0].Error())
	}
	result := compiler.CompileProgram([]string{"main"}, prog)
	if len(result.Errors) > 0 {
		return nil, 0, fmt.Errorf("%s: %s", path, result.Errors[0].Error())
	}
	for _, w := range result.Warnings {
		logger.Warn(w.String(), "file", path)
	}
	if !result.HasEntry {
		return nil, 0, fmt.Errorf("%s: no fn main() found", path)
	}
	unit, err := bytecode.Link(result.Functions, result.EntryHash)
	if err != nil {
		return nil, 0, err
	}
	if linkErr := bytecode.Resolve(unit, ctx); linkErr != nil {
		return nil, 0, linkErr
	}
	return unit, result.EntryHash, nil
}

func runCmd(logFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and run a script's main() to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logFile)
			ctx := module.NewContext()
			unit, entry, err := compileUnit(args[0], ctx, logger)
			if err != nil {
				logger.Error("compile failed", "err", err)
				os.Exit(exitCompileError)
			}
			exec, err := vm.NewExecution(unit, ctx, vm.Options{}, entry, nil)
			if err != nil {
				logger.Error("failed to start execution", "err", err)
				os.Exit(exitRuntimeError)
			}
			result, err := exec.Complete()
			if err != nil {
				logger.Error("runtime error", "err", err)
				os.Exit(exitRuntimeError)
			}
			if _, ok := result.(value.Unit); !ok {
				fmt.Println(result.String())
			}
			os.Exit(exitSuccess)
			return nil
		},
	}
}

func compileCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a script to a linked Unit (CBOR-encoded)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := module.NewContext()
			unit, _, err := compileUnit(args[0], ctx, newLogger(""))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitCompileError)
			}
			encoded, err := bytecode.Marshal(unit)
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".wftc"
			}
			if err := os.WriteFile(out, encoded, 0o644); err != nil {
				os.Exit(exitIOError)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: <file>.wftc)")
	return cmd
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "Compile a script and print its disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := module.NewContext()
			unit, _, err := compileUnit(args[0], ctx, newLogger(""))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitCompileError)
			}
			fmt.Print(weftfmt.Unit(unit))
			return nil
		},
	}
}

// watchCmd recompiles and re-links file's Unit against the same live
// Context whenever it changes, demonstrating "Units are immutable
// after link and may be shared" under repeated (re)compilation rather
// than rebuilding the Context each time.
func watchCmd(logFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>",
		Short: "Recompile and run a script on every save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logFile)
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			if err := watcher.Add(args[0]); err != nil {
				return err
			}

			ctx := module.NewContext()
			build := func() {
				unit, entry, err := compileUnit(args[0], ctx, logger)
				if err != nil {
					logger.Error("compile failed", "err", err)
					return
				}
				exec, err := vm.NewExecution(unit, ctx, vm.Options{}, entry, nil)
				if err != nil {
					logger.Error("failed to start execution", "err", err)
					return
				}
				result, err := exec.Complete()
				if err != nil {
					logger.Error("runtime error", "err", err)
					return
				}
				logger.Info("ran", "result", result.String())
			}
			build()
			for {
				select {
				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						build()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Error("watch error", "err", err)
				}
			}
		},
	}
}
