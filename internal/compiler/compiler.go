// Package compiler walks a parsed program and emits bytecode for it.
package compiler

import (
	"errors"
	"io"

	"github.com/Rax-x/ScriptLang/internal/ast"
	"github.com/Rax-x/ScriptLang/internal/bytecode"
	"github.com/Rax-x/ScriptLang/internal/reporter"
	"github.com/Rax-x/ScriptLang/internal/token"
)

type funcType int

const (
	funcTypeScript funcType = iota
	funcTypeFunction
)

// loopState links the loop currently being compiled to any loop enclosing
// it and collects the offsets of every break jump emitted inside its body,
// so they can all be patched to the loop's exit point once it is known.
type loopState struct {
	enclosing  *loopState
	scopeDepth int
	start      int
	breaks     []int
}

// funcState holds everything specific to the function currently being
// compiled: its output chunk, its locals and the loop (if any) enclosing
// the statement being visited. A nested funcState is pushed for every
// defun and popped once its body has been compiled.
type funcState struct {
	enclosing *funcState
	function  *bytecode.Function
	scope     *scope
	loop      *loopState
	typ       funcType
}

// Compiler turns an ast.Program into a top-level bytecode.Function. It is
// single-use: construct one with New per program.
type Compiler struct {
	source   string
	reporter reporter.ErrorReporter
	current  *funcState

	debug      bool
	debugOut   io.Writer
	debugWidth int
}

// New returns a Compiler that reports diagnostics against source through
// rep. rep may be nil, in which case errors are silently discarded: Compile
// detects failure only through a non-nil rep, so with a nil rep it returns
// no error even when diagnostics were raised.
func New(source string, rep reporter.ErrorReporter) *Compiler {
	return &Compiler{source: source, reporter: rep}
}

// SetDebug makes Compile print a disassembly of the compiled program to w,
// wrapped to width columns (width <= 0 falls back to 80).
func (c *Compiler) SetDebug(w io.Writer, width int) {
	c.debug = true
	c.debugOut = w
	c.debugWidth = width
}

// Compile compiles prog into a top-level script function. The returned
// function has an empty name and no parameters; its chunk ends with an
// implicit `nil; return` epilogue like every other function.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Function, error) {
	fn := &bytecode.Function{Chunk: &bytecode.Chunk{}}
	c.current = &funcState{typ: funcTypeScript, function: fn, scope: newScope()}

	for _, stmt := range prog.Statements {
		c.compileStmt(stmt)
	}

	endLine := prog.NodeRange.End.Line
	c.emitOp(bytecode.OpNil, endLine)
	c.emitOp(bytecode.OpReturn, endLine)

	if c.reporter != nil && c.reporter.HadError() {
		return nil, errors.New("compilation failed")
	}

	if c.debug {
		name := fn.Name
		if name == "" {
			name = "<script>"
		}
		bytecode.NewDisassembler(c.debugOut).WithWidth(c.debugWidth).Disassemble(name, fn.Chunk)
	}

	return fn, nil
}

func (c *Compiler) chunk() *bytecode.Chunk {
	return c.current.function.Chunk
}

func (c *Compiler) emit(b byte, line int) int {
	return c.chunk().Emit(b, line)
}

func (c *Compiler) emitOp(op bytecode.OpCode, line int) int {
	return c.chunk().EmitOp(op, line)
}

func (c *Compiler) emitConstant(v bytecode.Value, line int, rng token.Range) {
	idx, err := c.chunk().AddConstant(v)
	if err != nil {
		c.errorAt(rng, "%s", err.Error())
		return
	}
	c.emitOp(bytecode.OpPushConstant, line)
	c.emit(idx, line)
}

func (c *Compiler) errorAt(rng token.Range, format string, args ...any) {
	if c.reporter != nil {
		c.reporter.Errorf(c.source, rng, format, args...)
	}
}

func (c *Compiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		c.compileVarDecl(s)
	case *ast.FunDecl:
		c.compileFunDecl(s)
	case *ast.Block:
		c.compileBlockStmt(s)
	case *ast.If:
		c.compileIf(s)
	case *ast.While:
		c.compileWhile(s)
	case *ast.ExprStmt:
		c.compileExprStmt(s)
	case *ast.Continue:
		c.compileContinue(s)
	case *ast.Break:
		c.compileBreak(s)
	case *ast.Return:
		c.compileReturn(s)
	case *ast.Print:
		c.compilePrint(s)
	default:
		c.errorAt(stmt.Range(), "Unknown statement type %T.", stmt)
	}
}

func (c *Compiler) compileExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.Assign:
		c.compileAssign(e)
	case *ast.Binary:
		c.compileBinary(e)
	case *ast.Unary:
		c.compileUnary(e)
	case *ast.Call:
		c.compileCall(e)
	case *ast.Grouping:
		c.compileExpr(e.Inner)
	case *ast.Variable:
		c.compileVariable(e)
	case *ast.Literal:
		c.compileLiteral(e)
	default:
		c.errorAt(expr.Range(), "Unknown expression type %T.", expr)
	}
}

// declareVariable registers name as a new local in the current scope. At
// global scope (depth 0) it does nothing: globals are resolved by name at
// runtime and never occupy a local slot.
func (c *Compiler) declareVariable(name string, rng token.Range) {
	s := c.current.scope
	if s.depth == 0 {
		return
	}

	for i := s.localCount - 1; i >= 0; i-- {
		l := s.locals[i]
		if l.depth != -1 && l.depth < s.depth {
			break
		}
		if l.name == name {
			c.errorAt(rng, "Variable already declared.")
			break
		}
	}

	if _, ok := s.addLocal(name); !ok {
		c.errorAt(rng, "Each scope can have maximun 256 locals.")
	}
}

// defineVariable makes name usable. For a local it just flips its depth
// from the uninitialized sentinel to the current depth; for a global it
// emits the OpDefineGlobal that installs it at runtime.
func (c *Compiler) defineVariable(name string, rng token.Range) {
	if c.current.scope.depth > 0 {
		c.current.scope.markInitialized()
		return
	}

	idx, err := c.chunk().AddConstant(bytecode.String(name))
	if err != nil {
		c.errorAt(rng, "%s", err.Error())
		return
	}
	line := rng.Start.Line
	c.emitOp(bytecode.OpDefineGlobal, line)
	c.emit(idx, line)
}

func (c *Compiler) compileVarDecl(decl *ast.VarDecl) {
	c.declareVariable(decl.Name, decl.NodeRange)
	c.compileExpr(decl.Init)
	c.defineVariable(decl.Name, decl.NodeRange)
}

func (c *Compiler) compileFunDecl(decl *ast.FunDecl) {
	if c.current.typ == funcTypeFunction {
		c.errorAt(decl.NodeRange, "Can't declare a function inside another function.")
		return
	}

	fs := &funcState{
		enclosing: c.current,
		typ:       funcTypeFunction,
		scope:     newScope(),
		function: &bytecode.Function{
			Name:  decl.Name,
			Arity: len(decl.Params),
			Chunk: &bytecode.Chunk{},
		},
	}
	c.current = fs
	c.current.scope.beginScope()

	for _, param := range decl.Params {
		c.declareVariable(param.Name, param.Range)
		c.defineVariable(param.Name, param.Range)
	}

	for _, stmt := range decl.Body.Statements {
		c.compileStmt(stmt)
	}

	endLine := decl.NodeRange.End.Line
	c.emitOp(bytecode.OpNil, endLine)
	c.emitOp(bytecode.OpReturn, endLine)

	fn := c.current.function
	c.current = fs.enclosing

	startLine := decl.NodeRange.Start.Line
	idx, err := c.chunk().AddConstant(bytecode.FunctionValue(fn))
	if err != nil {
		c.errorAt(decl.NodeRange, "%s", err.Error())
		return
	}
	c.emitOp(bytecode.OpPushConstant, startLine)
	c.emit(idx, startLine)

	c.defineVariable(decl.Name, decl.NodeRange)
}

func (c *Compiler) compileBlockStmt(block *ast.Block) {
	c.current.scope.beginScope()
	for _, stmt := range block.Statements {
		c.compileStmt(stmt)
	}
	popped := c.current.scope.endScope()

	line := block.NodeRange.End.Line
	for i := 0; i < popped; i++ {
		c.emitOp(bytecode.OpPop, line)
	}
}

func (c *Compiler) compileIf(stmt *ast.If) {
	line := stmt.NodeRange.Start.Line

	c.compileExpr(stmt.Condition)
	thenJump := c.chunk().EmitJump(bytecode.OpJumpIfFalse, line)
	c.emitOp(bytecode.OpPop, line)

	c.compileStmt(stmt.Then)

	elseJump := c.chunk().EmitJump(bytecode.OpJump, line)

	if err := c.chunk().PatchJump(thenJump); err != nil {
		c.errorAt(stmt.NodeRange, "%s", err.Error())
	}
	c.emitOp(bytecode.OpPop, line)

	if stmt.Else != nil {
		c.compileStmt(stmt.Else)
	}

	if err := c.chunk().PatchJump(elseJump); err != nil {
		c.errorAt(stmt.NodeRange, "%s", err.Error())
	}
}

func (c *Compiler) compileWhile(stmt *ast.While) {
	line := stmt.NodeRange.Start.Line

	loop := &loopState{
		enclosing:  c.current.loop,
		scopeDepth: c.current.scope.depth,
		start:      len(c.chunk().Code),
	}
	c.current.loop = loop

	c.compileExpr(stmt.Condition)
	exitJump := c.chunk().EmitJump(bytecode.OpJumpIfFalse, line)
	c.emitOp(bytecode.OpPop, line)

	c.compileStmt(stmt.Body)

	if err := c.chunk().EmitLoop(loop.start, line); err != nil {
		c.errorAt(stmt.NodeRange, "%s", err.Error())
	}

	if err := c.chunk().PatchJump(exitJump); err != nil {
		c.errorAt(stmt.NodeRange, "%s", err.Error())
	}
	c.emitOp(bytecode.OpPop, line)

	for _, off := range loop.breaks {
		if err := c.chunk().PatchJump(off); err != nil {
			c.errorAt(stmt.NodeRange, "%s", err.Error())
		}
	}

	c.current.loop = loop.enclosing
}

func (c *Compiler) popLocalsAboveDepth(depth int, line int) {
	n := c.current.scope.localsAboveDepth(depth)
	for i := 0; i < n; i++ {
		c.emitOp(bytecode.OpPop, line)
	}
}

func (c *Compiler) compileContinue(stmt *ast.Continue) {
	if c.current.loop == nil {
		c.errorAt(stmt.NodeRange, "Can't use 'continue' outside a loop.")
		return
	}
	line := stmt.NodeRange.Start.Line
	c.popLocalsAboveDepth(c.current.loop.scopeDepth, line)
	if err := c.chunk().EmitLoop(c.current.loop.start, line); err != nil {
		c.errorAt(stmt.NodeRange, "%s", err.Error())
	}
}

func (c *Compiler) compileBreak(stmt *ast.Break) {
	if c.current.loop == nil {
		c.errorAt(stmt.NodeRange, "Can't use 'break' outside a loop.")
		return
	}
	line := stmt.NodeRange.Start.Line
	c.popLocalsAboveDepth(c.current.loop.scopeDepth, line)
	off := c.chunk().EmitJump(bytecode.OpJump, line)
	c.current.loop.breaks = append(c.current.loop.breaks, off)
}

func (c *Compiler) compileReturn(stmt *ast.Return) {
	line := stmt.NodeRange.Start.Line
	if c.current.typ == funcTypeScript {
		c.errorAt(stmt.NodeRange, "Can't return from top-level.")
		return
	}

	if stmt.Value != nil {
		c.compileExpr(stmt.Value)
	} else {
		c.emitOp(bytecode.OpNil, line)
	}
	c.emitOp(bytecode.OpReturn, line)
}

func (c *Compiler) compilePrint(stmt *ast.Print) {
	c.compileExpr(stmt.Value)
	c.emitOp(bytecode.OpPrint, stmt.NodeRange.Start.Line)
}

func (c *Compiler) compileExprStmt(stmt *ast.ExprStmt) {
	c.compileExpr(stmt.Expression)
	c.emitOp(bytecode.OpPop, stmt.NodeRange.Start.Line)
}

func (c *Compiler) compileAssign(expr *ast.Assign) {
	c.compileExpr(expr.Value)
	line := expr.NodeRange.Start.Line

	if slot, uninitialized, ok := c.current.scope.resolve(expr.Name); ok {
		if uninitialized {
			c.errorAt(expr.NodeRange, "You can't use a variable in it's own initializer.")
		}
		c.emitOp(bytecode.OpSetLocal, line)
		c.emit(slot, line)
		return
	}

	idx, err := c.chunk().AddConstant(bytecode.String(expr.Name))
	if err != nil {
		c.errorAt(expr.NodeRange, "%s", err.Error())
		return
	}
	c.emitOp(bytecode.OpSetGlobal, line)
	c.emit(idx, line)
}

func (c *Compiler) compileVariable(expr *ast.Variable) {
	line := expr.NodeRange.Start.Line

	if slot, uninitialized, ok := c.current.scope.resolve(expr.Name); ok {
		if uninitialized {
			c.errorAt(expr.NodeRange, "You can't use a variable in it's own initializer.")
		}
		c.emitOp(bytecode.OpGetLocal, line)
		c.emit(slot, line)
		return
	}

	idx, err := c.chunk().AddConstant(bytecode.String(expr.Name))
	if err != nil {
		c.errorAt(expr.NodeRange, "%s", err.Error())
		return
	}
	c.emitOp(bytecode.OpGetGlobal, line)
	c.emit(idx, line)
}

// compileBinary handles and/or by short-circuiting before either operand is
// evaluated a second time; every other operator evaluates both sides and
// emits a single opcode, or two for the compound comparisons that have no
// opcode of their own.
func (c *Compiler) compileBinary(expr *ast.Binary) {
	line := expr.NodeRange.Start.Line

	switch expr.Operator {
	case token.And:
		c.compileExpr(expr.Left)
		jump := c.chunk().EmitJump(bytecode.OpJumpIfFalse, line)
		c.emitOp(bytecode.OpPop, line)
		c.compileExpr(expr.Right)
		if err := c.chunk().PatchJump(jump); err != nil {
			c.errorAt(expr.NodeRange, "%s", err.Error())
		}
		return
	case token.Or:
		c.compileExpr(expr.Left)
		elseJump := c.chunk().EmitJump(bytecode.OpJumpIfFalse, line)
		endJump := c.chunk().EmitJump(bytecode.OpJump, line)
		if err := c.chunk().PatchJump(elseJump); err != nil {
			c.errorAt(expr.NodeRange, "%s", err.Error())
		}
		c.emitOp(bytecode.OpPop, line)
		c.compileExpr(expr.Right)
		if err := c.chunk().PatchJump(endJump); err != nil {
			c.errorAt(expr.NodeRange, "%s", err.Error())
		}
		return
	}

	c.compileExpr(expr.Left)
	c.compileExpr(expr.Right)

	switch expr.Operator {
	case token.Minus:
		c.emitOp(bytecode.OpSub, line)
	case token.Plus:
		c.emitOp(bytecode.OpAdd, line)
	case token.Star:
		c.emitOp(bytecode.OpMult, line)
	case token.Slash:
		c.emitOp(bytecode.OpDiv, line)
	case token.Exponent:
		c.emitOp(bytecode.OpPow, line)
	case token.Less:
		c.emitOp(bytecode.OpLess, line)
	case token.Greater:
		c.emitOp(bytecode.OpGreater, line)
	case token.LessEqual:
		c.emitOp(bytecode.OpGreater, line)
		c.emitOp(bytecode.OpNot, line)
	case token.GreaterEqual:
		c.emitOp(bytecode.OpLess, line)
		c.emitOp(bytecode.OpNot, line)
	case token.Equal:
		c.emitOp(bytecode.OpEqual, line)
	case token.NotEqual:
		c.emitOp(bytecode.OpEqual, line)
		c.emitOp(bytecode.OpNot, line)
	default:
		c.errorAt(expr.NodeRange, "Unknown operator '%s'.", expr.Operator)
	}
}

func (c *Compiler) compileUnary(expr *ast.Unary) {
	c.compileExpr(expr.Right)
	line := expr.NodeRange.Start.Line

	switch expr.Operator {
	case token.Minus:
		c.emitOp(bytecode.OpNegate, line)
	case token.Not:
		c.emitOp(bytecode.OpNot, line)
	case token.Plus:
		// unary plus is a no-op
	default:
		c.errorAt(expr.NodeRange, "Invalid unary operator '%s'.", expr.Operator)
	}
}

func (c *Compiler) compileCall(expr *ast.Call) {
	c.compileExpr(expr.Callee)
	for _, arg := range expr.Arguments {
		c.compileExpr(arg)
	}
	line := expr.NodeRange.Start.Line
	c.emitOp(bytecode.OpCall, line)
	c.emit(byte(len(expr.Arguments)), line)
}

func (c *Compiler) compileLiteral(expr *ast.Literal) {
	line := expr.NodeRange.Start.Line
	switch expr.Kind {
	case ast.LiteralBool:
		if expr.Bool {
			c.emitOp(bytecode.OpTrue, line)
		} else {
			c.emitOp(bytecode.OpFalse, line)
		}
	case ast.LiteralNumber:
		c.emitConstant(bytecode.Number(expr.Number), line, expr.NodeRange)
	case ast.LiteralString:
		c.emitConstant(bytecode.String(expr.Str), line, expr.NodeRange)
	case ast.LiteralNil:
		c.emitOp(bytecode.OpNil, line)
	}
}
