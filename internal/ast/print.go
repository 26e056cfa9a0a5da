package ast

import (
	"fmt"
	"io"
	"strconv"
)

// Fprint writes an indented listing of prog to w, used by the driver's
// --dump flag and the REPL's `.ast-dump` command. Like Fprint in the
// standard library's go/ast, it exists purely as a debugging aid.
func Fprint(w io.Writer, prog *Program) {
	p := &printer{w: w}
	for _, stmt := range prog.Statements {
		p.stmt(stmt, 0)
	}
}

type printer struct {
	w io.Writer
}

func (p *printer) line(depth int, format string, args ...any) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(p.w, "  ")
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) stmt(stmt Stmt, depth int) {
	switch s := stmt.(type) {
	case *VarDecl:
		p.line(depth, "VarDecl %s", s.Name)
		p.expr(s.Init, depth+1)
	case *FunDecl:
		names := make([]string, len(s.Params))
		for i, param := range s.Params {
			names[i] = param.Name
		}
		p.line(depth, "FunDecl %s(%v)", s.Name, names)
		p.stmt(s.Body, depth+1)
	case *Block:
		p.line(depth, "Block")
		for _, inner := range s.Statements {
			p.stmt(inner, depth+1)
		}
	case *If:
		p.line(depth, "If")
		p.expr(s.Condition, depth+1)
		p.stmt(s.Then, depth+1)
		if s.Else != nil {
			p.stmt(s.Else, depth+1)
		}
	case *While:
		p.line(depth, "While")
		p.expr(s.Condition, depth+1)
		p.stmt(s.Body, depth+1)
	case *ExprStmt:
		p.line(depth, "ExprStmt")
		p.expr(s.Expression, depth+1)
	case *Continue:
		p.line(depth, "Continue")
	case *Break:
		p.line(depth, "Break")
	case *Return:
		p.line(depth, "Return")
		if s.Value != nil {
			p.expr(s.Value, depth+1)
		}
	case *Print:
		p.line(depth, "Print")
		p.expr(s.Value, depth+1)
	default:
		p.line(depth, "<unknown statement %T>", stmt)
	}
}

func (p *printer) expr(expr Expr, depth int) {
	switch e := expr.(type) {
	case *Assign:
		p.line(depth, "Assign %s", e.Name)
		p.expr(e.Value, depth+1)
	case *Binary:
		p.line(depth, "Binary %s", e.Operator)
		p.expr(e.Left, depth+1)
		p.expr(e.Right, depth+1)
	case *Unary:
		p.line(depth, "Unary %s", e.Operator)
		p.expr(e.Right, depth+1)
	case *Call:
		p.line(depth, "Call")
		p.expr(e.Callee, depth+1)
		for _, arg := range e.Arguments {
			p.expr(arg, depth+1)
		}
	case *Grouping:
		p.line(depth, "Grouping")
		p.expr(e.Inner, depth+1)
	case *Variable:
		p.line(depth, "Variable %s", e.Name)
	case *Literal:
		p.line(depth, "Literal %s", literalText(e))
	default:
		p.line(depth, "<unknown expression %T>", expr)
	}
}

func literalText(l *Literal) string {
	switch l.Kind {
	case LiteralNil:
		return "nil"
	case LiteralBool:
		return strconv.FormatBool(l.Bool)
	case LiteralNumber:
		return strconv.FormatFloat(l.Number, 'g', -1, 64)
	case LiteralString:
		return strconv.Quote(l.Str)
	default:
		return "?"
	}
}
