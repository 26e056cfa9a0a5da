package lexer

import (
	"strings"

	"github.com/Rax-x/ScriptLang/internal/token"
)

// Lexer converts source text into a stream of tokens.
type Lexer struct {
	input   string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
	line    int
	column  int
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	start := l.currentPosition()

	if l.ch == 0 {
		return l.makeToken(token.Eof, "", start)
	}

	switch {
	case isIdentifierStart(l.ch):
		return l.readIdentifier(start)
	case isDigit(l.ch):
		return l.readNumber(start)
	case l.ch == '"':
		return l.readString(start)
	}

	ch := l.ch
	l.readChar()

	switch ch {
	case '+':
		return l.finishToken(token.Plus, "+", start)
	case '-':
		return l.finishToken(token.Minus, "-", start)
	case '/':
		return l.finishToken(token.Slash, "/", start)
	case '.':
		return l.finishToken(token.Dot, ".", start)
	case ',':
		return l.finishToken(token.Comma, ",", start)
	case ';':
		return l.finishToken(token.Semicolon, ";", start)
	case '(':
		return l.finishToken(token.LeftParen, "(", start)
	case ')':
		return l.finishToken(token.RightParen, ")", start)
	case '{':
		return l.finishToken(token.LeftBrace, "{", start)
	case '}':
		return l.finishToken(token.RightBrace, "}", start)
	case '*':
		if l.ch == '*' {
			l.readChar()
			return l.finishToken(token.Exponent, "**", start)
		}
		return l.finishToken(token.Star, "*", start)
	case '=':
		if l.ch == '=' {
			l.readChar()
			return l.finishToken(token.Equal, "==", start)
		}
		return l.finishToken(token.Assign, "=", start)
	case '!':
		if l.ch == '=' {
			l.readChar()
			return l.finishToken(token.NotEqual, "!=", start)
		}
		return l.finishToken(token.Unknown, "!", start)
	case '<':
		if l.ch == '=' {
			l.readChar()
			return l.finishToken(token.LessEqual, "<=", start)
		}
		return l.finishToken(token.Less, "<", start)
	case '>':
		if l.ch == '=' {
			l.readChar()
			return l.finishToken(token.GreaterEqual, ">=", start)
		}
		return l.finishToken(token.Greater, ">", start)
	}

	return l.finishToken(token.Unknown, string(ch), start)
}

func (l *Lexer) currentPosition() token.Position {
	return token.Position{Offset: l.pos, Line: l.line, Column: l.column}
}

func (l *Lexer) makeToken(t token.Type, lexeme string, start token.Position) token.Token {
	return token.Token{
		Type:   t,
		Lexeme: lexeme,
		Range:  token.Range{Start: start, End: start},
	}
}

func (l *Lexer) finishToken(t token.Type, lexeme string, start token.Position) token.Token {
	return token.Token{
		Type:   t,
		Lexeme: lexeme,
		Range:  token.Range{Start: start, End: l.currentPosition()},
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
		case '#':
			for l.ch != 0 && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier(start token.Position) token.Token {
	var sb strings.Builder
	for isIdentifierPart(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lexeme := sb.String()
	return l.finishToken(token.LookupIdent(lexeme), lexeme, start)
}

func (l *Lexer) readNumber(start token.Position) token.Token {
	var sb strings.Builder
	for isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		sb.WriteByte(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		lookahead := 1
		if l.peekChar() == '+' || l.peekChar() == '-' {
			lookahead = 2
		}
		if isDigit(l.peekAt(lookahead)) {
			sb.WriteByte(l.ch)
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				sb.WriteByte(l.ch)
				l.readChar()
			}
			for isDigit(l.ch) {
				sb.WriteByte(l.ch)
				l.readChar()
			}
		}
	}
	return l.finishToken(token.NumberLiteral, sb.String(), start)
}

// readString scans a string literal, keeping the surrounding quotes in the
// token's lexeme (they are trimmed later, by the parser's literal handling).
func (l *Lexer) readString(start token.Position) token.Token {
	var sb strings.Builder
	sb.WriteByte(l.ch) // opening '"'
	l.readChar()
	for l.ch != '"' {
		if l.ch == 0 {
			return l.finishToken(token.Unknown, sb.String(), start)
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	sb.WriteByte(l.ch) // closing '"'
	l.readChar()
	return l.finishToken(token.StringLiteral, sb.String(), start)
}

func isIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentifierPart(ch byte) bool {
	return isIdentifierStart(ch) || isDigit(ch) || ch == '-'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) peekChar() byte {
	return l.peekAt(1)
}

func (l *Lexer) peekAt(offset int) byte {
	pos := l.readPos - 1 + offset
	if pos < 0 || pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}
