// Package driver implements the scriptlang command-line entry point: flag
// parsing, file execution, and the interactive REPL, wired on top of the
// lexer/parser/compiler/vm pipeline plus the cache, config and reporting
// layers.
package driver

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/Rax-x/ScriptLang/internal/ast"
	"github.com/Rax-x/ScriptLang/internal/bytecode"
	"github.com/Rax-x/ScriptLang/internal/cache"
	"github.com/Rax-x/ScriptLang/internal/compiler"
	"github.com/Rax-x/ScriptLang/internal/lexer"
	"github.com/Rax-x/ScriptLang/internal/parser"
	"github.com/Rax-x/ScriptLang/internal/replconfig"
	"github.com/Rax-x/ScriptLang/internal/reporter"
	"github.com/Rax-x/ScriptLang/internal/vm"
)

// Options bundles everything Run needs from its caller, so tests can supply
// in-memory streams instead of the real os.Args/os.Stdin/os.Stdout.
type Options struct {
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Driver ties the compile/run pipeline to a terminal or a batch file run.
type Driver struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger

	dumpAST      bool
	dumpBytecode bool
	noCache      bool
	cache        *cache.Cache
	config       replconfig.Config
	color        termenv.Profile
	colorize     bool
	termW        int

	machine *vm.VM
}

// Run parses opts.Args, wires up the driver and executes either a single
// script file or an interactive REPL. It returns the process exit code.
func Run(opts Options) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	fs := flag.NewFlagSet("scriptlang", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dump := fs.Bool("dump", false, "print the AST and bytecode instead of executing")
	noCache := fs.Bool("no-cache", false, "disable the bytecode chunk cache")
	noColor := fs.Bool("no-color", false, "disable colorized diagnostics")
	if err := fs.Parse(opts.Args); err != nil {
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := replconfig.Load(cwd)
	logger := slog.New(slog.NewTextHandler(stderr, nil))
	if err != nil {
		logger.Error("failed to load .scriptlangrc.toml", "error", err)
		return 1
	}

	override := replconfig.Config{
		DumpAST:      *dump,
		DumpBytecode: *dump,
		Color:        resolveColor(cfg.Color, *noColor, stdout),
	}
	cfg = replconfig.Merge(cfg, override)

	d := &Driver{
		stdin:        stdin,
		stdout:       stdout,
		stderr:       stderr,
		log:          logger,
		dumpAST:      cfg.DumpAST,
		dumpBytecode: cfg.DumpBytecode,
		noCache:      *noCache,
		config:       cfg,
		colorize:     cfg.Color,
		machine:      vm.New(stdout),
	}

	d.color = termenv.NewOutput(stdout).ColorProfile()
	d.termW = d.terminalWidth()

	cacheDir := cfg.CacheDir
	if d.noCache {
		cacheDir = ""
	}
	d.cache = cache.New(cacheDir)

	args := fs.Args()
	if len(args) == 0 {
		d.repl()
		return 1
	}

	if err := d.runFile(args[0]); err != nil {
		fmt.Fprint(d.stderr, err.Error())
		return 1
	}
	return 0
}

// resolveColor decides whether diagnostics should be colorized: enabled by
// default only when stdout is a terminal, disabled unconditionally by
// --no-color or a config file with color = false. Its result becomes the
// Color field of a replconfig.Config passed to Merge as the override, since
// "disabled" is otherwise indistinguishable from "not set".
func resolveColor(cfgColor bool, noColorFlag bool, stdout io.Writer) bool {
	if noColorFlag || !cfgColor {
		return false
	}
	f, ok := stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

func (d *Driver) terminalWidth() int {
	f, ok := d.stdout.(*os.File)
	if !ok {
		return 80
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func (d *Driver) isInteractive() bool {
	f, ok := d.stdin.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

// runFile executes a single script file to completion.
func (d *Driver) runFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scriptlang: %w\n", err)
	}
	runID := uuid.New()
	return d.execute(string(src), runID)
}

// execute runs source to completion, returning any diagnostics as its
// error; its callers print that error to stderr.
// When either dump flag is set it parses and compiles source directly
// (bypassing the cache, which only ever stores bytecode) and prints the
// requested representations instead of executing.
func (d *Driver) execute(src string, runID uuid.UUID) error {
	if d.dumpAST || d.dumpBytecode {
		prog, _, err := d.parseAndCompile(src, runID, d.dumpBytecode)
		if err != nil {
			return err
		}
		if d.dumpAST {
			ast.Fprint(d.stdout, prog)
		}
		return nil
	}

	fn, err := d.compile(src, runID)
	if err != nil {
		return err
	}

	if err := d.machine.Interpret(fn); err != nil {
		d.log.Error("runtime error", "run_id", runID.String(), "error", err.Error())
		if rerr, ok := err.(*vm.RuntimeError); ok {
			return fmt.Errorf("%s", d.colorizeText(rerr.Trace()))
		}
		return err
	}
	return nil
}

// compile resolves src to a Function, consulting the cache first.
func (d *Driver) compile(src string, runID uuid.UUID) (*bytecode.Function, error) {
	if fn, ok := d.cache.Load(src); ok {
		d.log.Debug("cache hit", "run_id", runID.String())
		return fn, nil
	}

	_, fn, err := d.parseAndCompile(src, runID, false)
	if err != nil {
		return nil, err
	}

	if err := d.cache.Store(src, fn); err != nil {
		d.log.Warn("failed to write cache entry", "run_id", runID.String(), "error", err.Error())
	}
	return fn, nil
}

// parseAndCompile always runs the full lexer/parser/compiler pipeline,
// never consulting the cache, so callers that need the AST (the --dump
// path) can see it. When dumpBytecode is set, the compiler prints its own
// disassembly to stdout as a side effect of compiling.
func (d *Driver) parseAndCompile(src string, runID uuid.UUID, dumpBytecode bool) (*ast.Program, *bytecode.Function, error) {
	rep := reporter.NewBasicErrorReporter()
	p := parser.New(lexer.New(src), src, rep)
	prog := p.ParseProgram()
	if rep.HadError() {
		var sb strings.Builder
		for _, e := range rep.Errors() {
			sb.WriteString(e)
		}
		d.log.Error("compile error", "run_id", runID.String())
		return nil, nil, fmt.Errorf("%s", d.colorizeText(sb.String()))
	}

	c := compiler.New(src, rep)
	if dumpBytecode {
		c.SetDebug(d.stdout, d.termW)
	}
	fn, err := c.Compile(prog)
	if err != nil {
		var sb strings.Builder
		for _, e := range rep.Errors() {
			sb.WriteString(e)
		}
		d.log.Error("compile error", "run_id", runID.String())
		return nil, nil, fmt.Errorf("%s", d.colorizeText(sb.String()))
	}

	return prog, fn, nil
}

// colorizeText wraps text as a red diagnostic when color is enabled,
// leaving the exact plain-text contract untouched otherwise.
func (d *Driver) colorizeText(text string) string {
	if !d.colorize {
		return text
	}
	return termenv.String(text).Foreground(d.color.Color("1")).String()
}

const replBanner = "scriptlang REPL. Type .help for commands, .exit to quit.\n"

// repl runs the interactive read-eval-print loop until EOF or .exit.
func (d *Driver) repl() {
	interactive := d.isInteractive()
	if interactive {
		fmt.Fprint(d.stdout, replBanner)
	}

	scanner := bufio.NewScanner(d.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(d.stdout, d.config.Prompt)
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(d.stdout)
			}
			return
		}

		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ".") {
			if d.handleCommand(trimmed) {
				return
			}
			continue
		}

		runID := uuid.New()
		if err := d.execute(line, runID); err != nil {
			fmt.Fprint(d.stderr, err.Error())
		}
	}
}

// handleCommand processes a REPL dot-command. It returns true when the
// session should end.
func (d *Driver) handleCommand(cmd string) bool {
	switch cmd {
	case ".exit":
		return true
	case ".help":
		fmt.Fprint(d.stdout, ".exit             quit the REPL\n"+
			".help             show this message\n"+
			".ast-dump         toggle AST dump on evaluated lines\n"+
			".bytecode-dump    toggle bytecode dump on evaluated lines\n")
	case ".ast-dump":
		d.dumpAST = !d.dumpAST
		fmt.Fprintf(d.stdout, "AST dump: %v\n", d.dumpAST)
	case ".bytecode-dump":
		d.dumpBytecode = !d.dumpBytecode
		fmt.Fprintf(d.stdout, "bytecode dump: %v\n", d.dumpBytecode)
	default:
		fmt.Fprintf(d.stdout, "unknown command %q\n", cmd)
	}
	return false
}
