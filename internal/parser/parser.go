// Package parser implements a Pratt (precedence-climbing) parser that turns
// a token stream into an AST.
package parser

import (
	"strconv"
	"strings"

	"github.com/Rax-x/ScriptLang/internal/ast"
	"github.com/Rax-x/ScriptLang/internal/lexer"
	"github.com/Rax-x/ScriptLang/internal/reporter"
	"github.com/Rax-x/ScriptLang/internal/token"
)

// Precedence orders operators from loosest to tightest binding.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecLogicOr
	PrecLogicAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecExponent
	PrecCall
	PrecPrimary
)

type prefixParseFn func(p *Parser) ast.Expr
type infixParseFn func(p *Parser, left ast.Expr) ast.Expr

type parseRule struct {
	precedence Precedence
	prefix     prefixParseFn
	infix      infixParseFn
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.Assign:        {PrecAssignment, nil, (*Parser).assignmentExpression},
		token.Slash:         {PrecFactor, nil, (*Parser).binaryExpression},
		token.Star:          {PrecFactor, nil, (*Parser).binaryExpression},
		token.Exponent:      {PrecExponent, nil, (*Parser).binaryExpression},
		token.Less:          {PrecComparison, nil, (*Parser).binaryExpression},
		token.Greater:       {PrecComparison, nil, (*Parser).binaryExpression},
		token.GreaterEqual:  {PrecComparison, nil, (*Parser).binaryExpression},
		token.LessEqual:     {PrecComparison, nil, (*Parser).binaryExpression},
		token.NotEqual:      {PrecEquality, nil, (*Parser).binaryExpression},
		token.Equal:         {PrecEquality, nil, (*Parser).binaryExpression},
		token.And:           {PrecLogicAnd, nil, (*Parser).binaryExpression},
		token.Or:            {PrecLogicOr, nil, (*Parser).binaryExpression},
		token.Plus:          {PrecTerm, (*Parser).unaryExpression, (*Parser).binaryExpression},
		token.Minus:         {PrecTerm, (*Parser).unaryExpression, (*Parser).binaryExpression},
		token.LeftParen:     {PrecCall, (*Parser).primaryExpression, (*Parser).callExpression},
		token.Not:           {PrecUnary, (*Parser).unaryExpression, nil},
		token.Identifier:    {PrecPrimary, (*Parser).primaryExpression, nil},
		token.NumberLiteral: {PrecPrimary, (*Parser).primaryExpression, nil},
		token.StringLiteral: {PrecPrimary, (*Parser).primaryExpression, nil},
		token.True:          {PrecPrimary, (*Parser).primaryExpression, nil},
		token.False:         {PrecPrimary, (*Parser).primaryExpression, nil},
		token.Nil:           {PrecPrimary, (*Parser).primaryExpression, nil},
	}
}

// Parser consumes tokens from a Lexer and builds an ast.Program.
type Parser struct {
	l        *lexer.Lexer
	source   string
	reporter reporter.ErrorReporter

	current   token.Token
	previous  token.Token
	panicMode bool
}

// New creates a Parser reading from l. source is the original text, kept
// around so diagnostics can quote the offending line(s). rep receives every
// diagnostic raised while parsing.
func New(l *lexer.Lexer, source string, rep reporter.ErrorReporter) *Parser {
	p := &Parser{l: l, source: source, reporter: rep}
	p.advance()
	return p
}

// ParseProgram parses the whole token stream, recovering from syntax
// errors at statement boundaries so it can keep collecting diagnostics.
func (p *Parser) ParseProgram() *ast.Program {
	start := p.current.Range.Start
	var statements []ast.Stmt

	for !p.isAtEnd() {
		stmt := p.declaration()
		if stmt != nil {
			statements = append(statements, stmt)
		}
		if p.panicMode {
			p.synchronize()
		}
	}

	return &ast.Program{
		Statements: statements,
		NodeRange:  token.Range{Start: start, End: p.previous.Range.End},
	}
}

func (p *Parser) declaration() ast.Stmt {
	switch {
	case p.match(token.Let):
		return p.variableDeclaration()
	case p.match(token.Defun):
		return p.functionDeclaration()
	default:
		return p.statement()
	}
}

func (p *Parser) variableDeclaration() ast.Stmt {
	start := p.previous.Range.Start

	name, ok := p.consume(token.Identifier, "Expect variable name after 'let' keyword.")
	if !ok {
		return nil
	}

	p.consume(token.Assign, "Expect '=' after variable name.")
	init := p.expression()
	p.consume(token.Semicolon, "Expect ';' at end of let statement.")

	return &ast.VarDecl{Name: name.Lexeme, Init: init, NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) functionDeclaration() ast.Stmt {
	start := p.previous.Range.Start

	name, ok := p.consume(token.Identifier, "Expect function name after 'defun' keyword.")
	if !ok {
		return nil
	}

	p.consume(token.LeftParen, "Expect '(' after function name.")

	var params []ast.Param
	if !p.match(token.RightParen) {
		for {
			param, ok := p.consume(token.Identifier, "Expect parameter name.")
			if !ok {
				return nil
			}
			params = append(params, ast.Param{Name: param.Lexeme, Range: param.Range})
			if !p.match(token.Comma) {
				break
			}
		}
		p.consume(token.RightParen, "Expect ')' after parameters.")
	}

	p.consume(token.LeftBrace, "Expect '{' before function body.")
	body := p.block()

	return &ast.FunDecl{
		Name:      name.Lexeme,
		Params:    params,
		Body:      body,
		NodeRange: token.Range{Start: start, End: p.previous.Range.End},
	}
}

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(token.If):
		return p.ifStatement()
	case p.match(token.While):
		return p.whileStatement()
	case p.match(token.Print):
		return p.printStatement()
	case p.match(token.Return):
		return p.returnStatement()
	case p.match(token.Continue):
		return p.continueStatement()
	case p.match(token.Break):
		return p.breakStatement()
	case p.match(token.LeftBrace):
		return p.block()
	default:
		return p.expressionStatement()
	}
}

// block assumes the opening '{' has already been consumed (p.previous holds it).
func (p *Parser) block() *ast.Block {
	start := p.previous.Range.Start
	var statements []ast.Stmt

	for !p.check(token.RightBrace) && !p.isAtEnd() {
		stmt := p.declaration()
		if stmt != nil {
			statements = append(statements, stmt)
		}
	}

	p.consume(token.RightBrace, "Expect '}' after block.")
	return &ast.Block{Statements: statements, NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) whileStatement() ast.Stmt {
	start := p.previous.Range.Start
	condition := p.expression()
	p.consume(token.LeftBrace, "Expect '{' before then branch.")
	body := p.block()
	return &ast.While{Condition: condition, Body: body, NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) ifStatement() ast.Stmt {
	start := p.previous.Range.Start
	condition := p.expression()
	p.consume(token.LeftBrace, "Expect '{' before then branch.")
	thenBranch := p.block()

	var elseBranch *ast.Block
	if p.match(token.Else) {
		p.consume(token.LeftBrace, "Expect '{' before else branch.")
		elseBranch = p.block()
	}

	return &ast.If{
		Condition: condition,
		Then:      thenBranch,
		Else:      elseBranch,
		NodeRange: token.Range{Start: start, End: p.previous.Range.End},
	}
}

func (p *Parser) expressionStatement() ast.Stmt {
	start := p.current.Range.Start
	expr := p.expression()
	p.consume(token.Semicolon, "Expect ';' after expression.")
	return &ast.ExprStmt{Expression: expr, NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) continueStatement() ast.Stmt {
	start := p.previous.Range.Start
	p.consume(token.Semicolon, "Expect ';' after continue statement.")
	return &ast.Continue{NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) breakStatement() ast.Stmt {
	start := p.previous.Range.Start
	p.consume(token.Semicolon, "Expect ';' after break statement.")
	return &ast.Break{NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) returnStatement() ast.Stmt {
	start := p.previous.Range.Start
	var value ast.Expr
	if !p.match(token.Semicolon) {
		value = p.expression()
		p.consume(token.Semicolon, "Expect ';' at end of return statement.")
	}
	return &ast.Return{Value: value, NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) printStatement() ast.Stmt {
	start := p.previous.Range.Start
	value := p.expression()
	p.consume(token.Semicolon, "Expect ';' at end of print statement.")
	return &ast.Print{Value: value, NodeRange: token.Range{Start: start, End: p.previous.Range.End}}
}

func (p *Parser) expression() ast.Expr {
	return p.parsePrecedence(PrecNone)
}

func (p *Parser) parsePrecedence(prec Precedence) ast.Expr {
	p.advance()
	op := p.previous

	rule, hasRule := rules[op.Type]
	if !hasRule || rule.prefix == nil {
		p.errorAtPrevious("Expect an expression.")
		return nil
	}

	left := rule.prefix(p)

	for {
		peekRule, hasRule := rules[p.current.Type]
		if !hasRule || prec >= peekRule.precedence {
			break
		}
		p.advance()
		infix := rules[p.previous.Type].infix
		if infix == nil {
			break
		}
		left = infix(p, left)
	}

	return left
}

func (p *Parser) assignmentExpression(left ast.Expr) ast.Expr {
	if left == nil {
		p.parsePrecedence(PrecAssignment - 1)
		return nil
	}
	variable, ok := left.(*ast.Variable)
	if !ok {
		p.errorAtPrevious("Expect an lvalue.")
		return nil
	}

	right := p.parsePrecedence(PrecAssignment - 1)
	return &ast.Assign{
		Name:      variable.Name,
		Value:     right,
		NodeRange: token.Range{Start: left.Range().Start, End: p.previous.Range.End},
	}
}

func (p *Parser) binaryExpression(left ast.Expr) ast.Expr {
	op := p.previous
	precedence := rules[op.Type].precedence
	if op.Type == token.Exponent {
		// Right-associative: unlike every other binary operator here, the
		// right-hand side is parsed one precedence level looser than the
		// operator itself, mirroring how assignment achieves the same.
		precedence--
	}
	right := p.parsePrecedence(precedence)
	if left == nil {
		return nil
	}
	return &ast.Binary{
		Left:      left,
		Operator:  op.Type,
		Right:     right,
		NodeRange: token.Range{Start: left.Range().Start, End: p.previous.Range.End},
	}
}

func (p *Parser) unaryExpression() ast.Expr {
	op := p.previous
	right := p.parsePrecedence(PrecUnary)
	return &ast.Unary{
		Operator:  op.Type,
		Right:     right,
		NodeRange: token.Range{Start: op.Range.Start, End: p.previous.Range.End},
	}
}

func (p *Parser) callExpression(left ast.Expr) ast.Expr {
	var args []ast.Expr

	if !p.match(token.RightParen) {
		for {
			arg := p.expression()
			if arg == nil {
				p.errorAtPrevious("Invalid argument.")
				return nil
			}
			args = append(args, arg)
			if !p.match(token.Comma) {
				break
			}
		}
		p.consume(token.RightParen, "Expect ')' after arguments.")
	}

	if left == nil {
		return nil
	}
	return &ast.Call{
		Callee:    left,
		Arguments: args,
		NodeRange: token.Range{Start: left.Range().Start, End: p.previous.Range.End},
	}
}

func (p *Parser) primaryExpression() ast.Expr {
	tok := p.previous

	switch tok.Type {
	case token.LeftParen:
		inner := p.expression()
		p.consume(token.RightParen, "Expect ')' after a grouping expression.")
		return &ast.Grouping{Inner: inner, NodeRange: token.Range{Start: tok.Range.Start, End: p.previous.Range.End}}
	case token.StringLiteral:
		str := strings.TrimSuffix(strings.TrimPrefix(tok.Lexeme, `"`), `"`)
		return &ast.Literal{Kind: ast.LiteralString, Str: str, NodeRange: tok.Range}
	case token.NumberLiteral:
		n, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return &ast.Literal{Kind: ast.LiteralNumber, Number: n, NodeRange: tok.Range}
	case token.True:
		return &ast.Literal{Kind: ast.LiteralBool, Bool: true, NodeRange: tok.Range}
	case token.False:
		return &ast.Literal{Kind: ast.LiteralBool, Bool: false, NodeRange: tok.Range}
	case token.Identifier:
		return &ast.Variable{Name: tok.Lexeme, NodeRange: tok.Range}
	case token.Nil:
		return &ast.Literal{Kind: ast.LiteralNil, NodeRange: tok.Range}
	}

	p.errorAtPrevious("Expect a literal or grouping expression.")
	return nil
}

// HadError reports whether any diagnostic has been raised so far.
func (p *Parser) HadError() bool {
	return p.reporter.HadError()
}

func (p *Parser) errorAtCurrent(format string, args ...any) {
	p.errorAt(p.current.Range, format, args...)
}

func (p *Parser) errorAtPrevious(format string, args ...any) {
	p.errorAt(p.previous.Range, format, args...)
}

func (p *Parser) errorAt(rng token.Range, format string, args ...any) {
	if p.reporter != nil {
		p.reporter.Errorf(p.source, rng, format, args...)
	}
	p.panicMode = true
}

func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		switch p.current.Type {
		case token.Defun, token.Let, token.If, token.While, token.Break, token.Continue, token.Return:
			p.panicMode = false
			return
		default:
			p.advance()
		}
	}
	p.panicMode = false
}

func (p *Parser) advance() {
	if p.isAtEnd() {
		return
	}
	p.previous = p.current
	p.current = p.l.NextToken()
}

func (p *Parser) check(t token.Type) bool {
	return p.current.Type == t
}

func (p *Parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t token.Type, msg string) (token.Token, bool) {
	if p.match(t) {
		return p.previous, true
	}
	p.errorAtCurrent(msg)
	return token.Token{}, false
}

func (p *Parser) isAtEnd() bool {
	return p.current.Type == token.Eof
}
