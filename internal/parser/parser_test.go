package parser_test

import (
	"testing"

	"github.com/Rax-x/ScriptLang/internal/ast"
	"github.com/Rax-x/ScriptLang/internal/lexer"
	"github.com/Rax-x/ScriptLang/internal/parser"
	"github.com/Rax-x/ScriptLang/internal/reporter"
	"github.com/Rax-x/ScriptLang/internal/token"
)

func parse(t *testing.T, src string) (*ast.Program, *reporter.BasicErrorReporter) {
	t.Helper()
	rep := reporter.NewBasicErrorReporter()
	p := parser.New(lexer.New(src), src, rep)
	prog := p.ParseProgram()
	return prog, rep
}

func TestParseVarDecl(t *testing.T) {
	prog, rep := parse(t, `let x = 10;`)
	if rep.HadError() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	decl, ok := prog.Statements[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected VarDecl, got %T", prog.Statements[0])
	}
	if decl.Name != "x" {
		t.Fatalf("expected name x, got %s", decl.Name)
	}
	lit, ok := decl.Init.(*ast.Literal)
	if !ok || lit.Kind != ast.LiteralNumber || lit.Number != 10 {
		t.Fatalf("expected literal 10, got %#v", decl.Init)
	}
}

func TestParseFunDecl(t *testing.T) {
	prog, rep := parse(t, `defun add(a, b) { return a + b; }`)
	if rep.HadError() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	fn, ok := prog.Statements[0].(*ast.FunDecl)
	if !ok {
		t.Fatalf("expected FunDecl, got %T", prog.Statements[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("unexpected fn shape: %#v", fn)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(fn.Body.Statements))
	}
	ret, ok := fn.Body.Statements[0].(*ast.Return)
	if !ok {
		t.Fatalf("expected Return, got %T", fn.Body.Statements[0])
	}
	bin, ok := ret.Value.(*ast.Binary)
	if !ok || bin.Operator != token.Plus {
		t.Fatalf("expected a + binary, got %#v", ret.Value)
	}
}

func TestParseIfElse(t *testing.T) {
	prog, rep := parse(t, `if (true) { print 1; } else { print 2; }`)
	if rep.HadError() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	stmt, ok := prog.Statements[0].(*ast.If)
	if !ok {
		t.Fatalf("expected If, got %T", prog.Statements[0])
	}
	if stmt.Then == nil || stmt.Else == nil {
		t.Fatalf("expected both branches present")
	}
}

func TestParseWhileBreakContinue(t *testing.T) {
	prog, rep := parse(t, `while (true) { break; continue; }`)
	if rep.HadError() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	loop, ok := prog.Statements[0].(*ast.While)
	if !ok {
		t.Fatalf("expected While, got %T", prog.Statements[0])
	}
	if len(loop.Body.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(loop.Body.Statements))
	}
	if _, ok := loop.Body.Statements[0].(*ast.Break); !ok {
		t.Fatalf("expected Break, got %T", loop.Body.Statements[0])
	}
	if _, ok := loop.Body.Statements[1].(*ast.Continue); !ok {
		t.Fatalf("expected Continue, got %T", loop.Body.Statements[1])
	}
}

func TestParseAssignmentRequiresLvalue(t *testing.T) {
	_, rep := parse(t, `1 = 2;`)
	if !rep.HadError() {
		t.Fatalf("expected an lvalue error")
	}
}

func TestParseCallExpression(t *testing.T) {
	prog, rep := parse(t, `foo(1, 2, 3);`)
	if rep.HadError() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
	exprStmt := prog.Statements[0].(*ast.ExprStmt)
	call, ok := exprStmt.Expression.(*ast.Call)
	if !ok {
		t.Fatalf("expected Call, got %T", exprStmt.Expression)
	}
	if len(call.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(call.Arguments))
	}
}

func TestParsePrecedenceAndAssociativity(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want func(t *testing.T, e ast.Expr)
	}{
		{
			name: "multiplication binds tighter than addition",
			src:  "1 + 2 * 3;",
			want: func(t *testing.T, e ast.Expr) {
				bin := e.(*ast.Binary)
				if bin.Operator != token.Plus {
					t.Fatalf("expected top-level +, got %s", bin.Operator)
				}
				rhs, ok := bin.Right.(*ast.Binary)
				if !ok || rhs.Operator != token.Star {
					t.Fatalf("expected right side to be *, got %#v", bin.Right)
				}
			},
		},
		{
			name: "exponent is right-associative",
			src:  "2 ** 3 ** 2;",
			want: func(t *testing.T, e ast.Expr) {
				bin := e.(*ast.Binary)
				if bin.Operator != token.Exponent {
					t.Fatalf("expected top-level **, got %s", bin.Operator)
				}
				lhs, ok := bin.Left.(*ast.Literal)
				if !ok || lhs.Number != 2 {
					t.Fatalf("expected left literal 2, got %#v", bin.Left)
				}
				rhs, ok := bin.Right.(*ast.Binary)
				if !ok || rhs.Operator != token.Exponent {
					t.Fatalf("expected right side to itself be **, got %#v", bin.Right)
				}
			},
		},
		{
			name: "unary minus binds looser than exponent",
			src:  "-2 ** 2;",
			want: func(t *testing.T, e ast.Expr) {
				un := e.(*ast.Unary)
				if un.Operator != token.Minus {
					t.Fatalf("expected top-level unary -, got %s", un.Operator)
				}
				if _, ok := un.Right.(*ast.Binary); !ok {
					t.Fatalf("expected -(2 ** 2), got %#v", un.Right)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, rep := parse(t, tt.src)
			if rep.HadError() {
				t.Fatalf("unexpected errors: %v", rep.Errors())
			}
			exprStmt := prog.Statements[0].(*ast.ExprStmt)
			tt.want(t, exprStmt.Expression)
		})
	}
}

func TestParseMissingSemicolonReportsError(t *testing.T) {
	_, rep := parse(t, `let x = 1`)
	if !rep.HadError() {
		t.Fatalf("expected a missing ';' error")
	}
}

func TestParseUnknownTokenReportsDiagnostic(t *testing.T) {
	_, rep := parse(t, `let x = !;`)
	if !rep.HadError() {
		t.Fatalf("expected a diagnostic for the lone '!' token")
	}
}
