package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Rax-x/ScriptLang/internal/compiler"
	"github.com/Rax-x/ScriptLang/internal/lexer"
	"github.com/Rax-x/ScriptLang/internal/parser"
	"github.com/Rax-x/ScriptLang/internal/reporter"
	"github.com/Rax-x/ScriptLang/internal/vm"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	rep := reporter.NewBasicErrorReporter()
	p := parser.New(lexer.New(src), src, rep)
	prog := p.ParseProgram()
	if rep.HadError() {
		t.Fatalf("parser errors: %v", rep.Errors())
	}
	fn, err := compiler.New(src, rep).Compile(prog)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(&out)
	runErr := m.Interpret(fn)
	return out.String(), runErr
}

func TestVMArithmetic(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3 - 4 / 2;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "5" {
		t.Fatalf("got %q, want 5", out)
	}
}

func TestVMExponent(t *testing.T) {
	out, err := run(t, `print 2 ** 3 ** 2;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "512" {
		t.Fatalf("got %q, want 512 (right-associative exponent)", out)
	}
}

func TestVMStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "foobar" {
		t.Fatalf("got %q, want foobar", out)
	}
}

func TestVMComparisons(t *testing.T) {
	out, err := run(t, `print 1 <= 1; print 2 >= 3; print 1 != 2; print 1 == 1;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Fields(out)
	want := []string{"true", "false", "true", "true"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestVMLogicalShortCircuit(t *testing.T) {
	out, err := run(t, `print false and (1 / 0 == 0); print true or (1 / 0 == 0);`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Fields(out)
	if len(got) != 2 || got[0] != "false" || got[1] != "true" {
		t.Fatalf("got %v, expected short-circuit to skip the division", got)
	}
}

func TestVMWhileLoopWithBreakAndContinue(t *testing.T) {
	src := `
let i = 0;
let sum = 0;
while (i < 10) {
    i = i + 1;
    if (i == 5) { continue; }
    if (i == 8) { break; }
    sum = sum + i;
}
print sum;
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "23" {
		t.Fatalf("got %q, want 23", out)
	}
}

func TestVMFunctionCallAndReturn(t *testing.T) {
	src := `
defun add(a, b) {
    return a + b;
}
print add(3, 4);
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "7" {
		t.Fatalf("got %q, want 7", out)
	}
}

func TestVMRecursion(t *testing.T) {
	src := `
defun fact(n) {
    if (n <= 1) { return 1; }
    return n * fact(n - 1);
}
print fact(5);
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "120" {
		t.Fatalf("got %q, want 120", out)
	}
}

func TestVMGlobalRedefinitionErrors(t *testing.T) {
	_, err := run(t, `let x = 1; let x = 2;`)
	if err == nil {
		t.Fatalf("expected a runtime error for redefining a global")
	}
	if !strings.Contains(err.Error(), "already defined") {
		t.Fatalf("got %v, want an already-defined error", err)
	}
}

func TestVMUndefinedGlobalGetErrors(t *testing.T) {
	_, err := run(t, `print unknown;`)
	if err == nil {
		t.Fatalf("expected a runtime error for an undefined global")
	}
	if !strings.Contains(err.Error(), "Undefined global") {
		t.Fatalf("got %v, want an undefined-global error", err)
	}
}

func TestVMUndefinedGlobalSetErrors(t *testing.T) {
	_, err := run(t, `unknown = 1;`)
	if err == nil {
		t.Fatalf("expected a runtime error for assigning an undefined global")
	}
}

func TestVMCallingNonFunctionErrors(t *testing.T) {
	_, err := run(t, `let x = 1; x();`)
	if err == nil {
		t.Fatalf("expected a runtime error for calling a non-function")
	}
	if !strings.Contains(err.Error(), "Can only call functions") {
		t.Fatalf("got %v, want a call error", err)
	}
}

func TestVMWrongArityErrors(t *testing.T) {
	_, err := run(t, `defun f(a, b) { return a + b; } f(1);`)
	if err == nil {
		t.Fatalf("expected a runtime error for wrong argument count")
	}
	if !strings.Contains(err.Error(), "Expect 2 arguments, got 1") {
		t.Fatalf("got %v, want an arity error", err)
	}
}

func TestVMTypeErrorOnArithmetic(t *testing.T) {
	_, err := run(t, `print 1 + true;`)
	if err == nil {
		t.Fatalf("expected a runtime error for mixing number and boolean")
	}
	if !strings.Contains(err.Error(), "Expect two numbers or two strings") {
		t.Fatalf("got %v", err)
	}
}

func TestVMStackOverflowOnDeepRecursion(t *testing.T) {
	src := `
defun recurse(n) {
    return recurse(n + 1);
}
recurse(0);
`
	_, err := run(t, src)
	if err == nil {
		t.Fatalf("expected a stack overflow error")
	}
	if !strings.Contains(err.Error(), "Stack overflow") {
		t.Fatalf("got %v, want stack overflow", err)
	}
}

func TestVMFalsyValues(t *testing.T) {
	out, err := run(t, `print not nil; print not false; print not 0; print not 1; print not "x";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Fields(out)
	want := []string{"true", "true", "true", "false", "false"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestVMRuntimeErrorTrace(t *testing.T) {
	src := `
defun inner() {
    return 1 + true;
}
defun outer() {
    return inner();
}
outer();
`
	_, err := run(t, src)
	if err == nil {
		t.Fatalf("expected a runtime error")
	}
	rerr, ok := err.(*vm.RuntimeError)
	if !ok {
		t.Fatalf("expected *vm.RuntimeError, got %T", err)
	}
	trace := rerr.Trace()
	if !strings.Contains(trace, "Runtime error") {
		t.Fatalf("trace missing header: %q", trace)
	}
	if !strings.Contains(trace, "inner") || !strings.Contains(trace, "outer") {
		t.Fatalf("trace missing call stack frames: %q", trace)
	}
}
