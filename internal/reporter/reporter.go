// Package reporter formats compile-time diagnostics against source text.
package reporter

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rax-x/ScriptLang/internal/token"
)

// ErrorReporter accumulates diagnostics raised while lexing, parsing or
// compiling a source file. It never panics or aborts on its own; callers
// decide when hadError should stop further processing.
type ErrorReporter interface {
	HadError() bool
	Reset()
	Errorf(source string, rng token.Range, format string, args ...any)
}

// BasicErrorReporter renders diagnostics as plain text, one entry per call
// to Errorf, in the order they were reported.
type BasicErrorReporter struct {
	hadError bool
	errors   []string
}

// NewBasicErrorReporter returns a ready-to-use reporter.
func NewBasicErrorReporter() *BasicErrorReporter {
	return &BasicErrorReporter{}
}

func (r *BasicErrorReporter) HadError() bool { return r.hadError }

func (r *BasicErrorReporter) Reset() { r.hadError = false }

// Errors returns every diagnostic reported so far, in order.
func (r *BasicErrorReporter) Errors() []string { return r.errors }

func (r *BasicErrorReporter) Errorf(source string, rng token.Range, format string, args ...any) {
	r.hadError = true
	r.errors = append(r.errors, formatDiagnostic(source, rng, fmt.Sprintf(format, args...)))
}

// formatDiagnostic renders a single diagnostic as:
//
//	[Ln: L, Col: C] Error: message
//	  L | offending source line(s)
//
// followed by a trailing blank line, matching the reference format.
func formatDiagnostic(source string, rng token.Range, message string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[Ln: %d, Col: %d] Error: %s\n", rng.End.Line, rng.End.Column, message)

	spacing := int(math.Log10(float64(rng.End.Line))) + 1 + 4

	lineStart := rng.Start.Offset
	for line := rng.Start.Line; line <= rng.End.Line; line++ {
		lineEnd := lineStart
		for lineEnd < rng.End.Offset && lineEnd < len(source) && source[lineEnd] != '\n' {
			lineEnd++
		}
		fmt.Fprintf(&sb, "%*d | %s\n", spacing, line, source[lineStart:lineEnd])
		lineStart = lineEnd + 1
	}

	sb.WriteByte('\n')
	return sb.String()
}
