package bytecode

import (
	"fmt"
	"strconv"
)

// ValueKind tags the variant carried by a Value.
type ValueKind int

const (
	ValueNil ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
	ValueFunction
)

// Function is a compiled function: its name (empty for the implicit
// top-level script), parameter count and its own bytecode chunk.
type Function struct {
	Name  string
	Arity int
	Chunk *Chunk
}

// Value is the tagged union every scriptlang runtime value is represented
// with, both on the VM stack and in the constant pool.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Str    string
	Fn     *Function
}

func Nil() Value                       { return Value{Kind: ValueNil} }
func Bool(b bool) Value                { return Value{Kind: ValueBool, Bool: b} }
func Number(n float64) Value           { return Value{Kind: ValueNumber, Number: n} }
func String(s string) Value            { return Value{Kind: ValueString, Str: s} }
func FunctionValue(fn *Function) Value { return Value{Kind: ValueFunction, Fn: fn} }

// Truthy implements scriptlang's falsy set: nil, false and the number 0
// are falsy, everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValueNil:
		return false
	case ValueBool:
		return v.Bool
	case ValueNumber:
		return v.Number != 0
	default:
		return true
	}
}

// Equal implements value equality. Functions are never equal, even to
// themselves.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValueNil:
		return true
	case ValueBool:
		return a.Bool == b.Bool
	case ValueNumber:
		return a.Number == b.Number
	case ValueString:
		return a.Str == b.Str
	default:
		return false
	}
}

// TypeName returns the runtime type name used in diagnostics.
func (v Value) TypeName() string {
	switch v.Kind {
	case ValueNil:
		return "nil"
	case ValueBool:
		return "boolean"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueFunction:
		return "function"
	default:
		return "unknown"
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNil:
		return "nil"
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case ValueString:
		return v.Str
	case ValueFunction:
		if v.Fn.Name == "" {
			return "<script>"
		}
		return fmt.Sprintf("<function '%s' (param count: %d) >", v.Fn.Name, v.Fn.Arity)
	default:
		return "?"
	}
}
