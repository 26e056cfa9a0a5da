package bytecode

import (
	"fmt"
	"io"
	"strings"
)

const defaultWidth = 80

// Disassembler renders a Chunk as human-readable bytecode listing, used by
// the driver's --dump flag and the REPL's `.bytecode-dump` command. It is
// a debugging aid only; nothing in the VM depends on its output.
type Disassembler struct {
	w     io.Writer
	width int
}

// NewDisassembler returns a Disassembler that writes to w, wrapping its
// section rules to the standard 80 columns.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w, width: defaultWidth}
}

// WithWidth sets the column width used for section rules, typically the
// caller's actual terminal width. width <= 0 falls back to 80.
func (d *Disassembler) WithWidth(width int) *Disassembler {
	if width <= 0 {
		width = defaultWidth
	}
	d.width = width
	return d
}

// Disassemble writes a labeled listing of chunk, followed by a listing of
// every function found in its constant pool.
func (d *Disassembler) Disassemble(name string, chunk *Chunk) {
	d.rule(fmt.Sprintf(" %s ", name))
	for offset := 0; offset < len(chunk.Code); {
		offset = d.instruction(chunk, offset)
	}
	for _, c := range chunk.Consts {
		if c.Kind == ValueFunction && c.Fn.Chunk != nil {
			label := c.Fn.Name
			if label == "" {
				label = "<anonymous>"
			}
			d.Disassemble(label, c.Fn.Chunk)
		}
	}
}

// rule centers label inside a row of '=' padded out to the disassembler's
// configured width, e.g. "==== main ====".
func (d *Disassembler) rule(label string) {
	pad := d.width - len(label)
	if pad < 4 {
		fmt.Fprintf(d.w, "== %s ==\n", strings.TrimSpace(label))
		return
	}
	left := pad / 2
	right := pad - left
	fmt.Fprintf(d.w, "%s%s%s\n", strings.Repeat("=", left), label, strings.Repeat("=", right))
}

func (d *Disassembler) instruction(chunk *Chunk, offset int) int {
	fmt.Fprintf(d.w, "%04d %4d ", offset, chunk.GetLine(offset))

	op := OpCode(chunk.Code[offset])
	switch op {
	case OpPushConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		return d.constantInstruction(op, chunk, offset)
	case OpGetLocal, OpSetLocal, OpCall:
		return d.byteInstruction(op, chunk, offset)
	case OpJump, OpJumpIfFalse:
		return d.jumpInstruction(op, chunk, offset, 1)
	case OpLoop:
		return d.jumpInstruction(op, chunk, offset, -1)
	default:
		fmt.Fprintf(d.w, "%s\n", op)
		return offset + 1
	}
}

func (d *Disassembler) constantInstruction(op OpCode, chunk *Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	value := "<invalid>"
	if int(idx) < len(chunk.Consts) {
		value = chunk.Consts[idx].String()
	}
	fmt.Fprintf(d.w, "%-14s %4d '%s'\n", op, idx, value)
	return offset + 2
}

func (d *Disassembler) byteInstruction(op OpCode, chunk *Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(d.w, "%-14s %4d\n", op, slot)
	return offset + 2
}

func (d *Disassembler) jumpInstruction(op OpCode, chunk *Chunk, offset int, sign int) int {
	distance := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	target := offset + 3 + sign*distance
	fmt.Fprintf(d.w, "%-14s %4d -> %d\n", op, offset, target)
	return offset + 3
}
