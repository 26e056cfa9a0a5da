// Package vm executes compiled bytecode.Function values on a stack machine.
package vm

import (
	"fmt"
	"io"
	"math"

	"github.com/Rax-x/ScriptLang/internal/bytecode"
)

const maxCallFrames = 64

// CallFrame is one activation record. Its locals are not a separate copy:
// slotsBase indexes straight into the shared value stack, at the position
// the callee itself occupies (slot 0 of every function is that callee
// value; real locals and parameters start at slot 1).
type CallFrame struct {
	fn        *bytecode.Function
	ip        int
	slotsBase int
}

// VM is a stack-based bytecode interpreter with a fixed call-frame budget.
type VM struct {
	stack   []bytecode.Value
	frames  []CallFrame
	globals map[string]bytecode.Value
	out     io.Writer
}

// New returns a VM that writes Print output to out.
func New(out io.Writer) *VM {
	return &VM{
		stack:   make([]bytecode.Value, 0, 256),
		frames:  make([]CallFrame, 0, maxCallFrames),
		globals: make(map[string]bytecode.Value),
		out:     out,
	}
}

// Interpret runs fn as the top-level script. The stack and call frames are
// reset before running, but globals persist from any previous call.
func (vm *VM) Interpret(fn *bytecode.Function) error {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]

	vm.push(bytecode.FunctionValue(fn))
	if err := vm.call(nil, fn, 0); err != nil {
		return err
	}
	return vm.run()
}

func (vm *VM) call(caller *CallFrame, fn *bytecode.Function, argc int) error {
	if len(vm.frames) == maxCallFrames {
		return vm.runtimeError(caller, "Stack overflow.")
	}
	if argc != fn.Arity {
		return vm.runtimeError(caller, "Expect %d arguments, got %d.", fn.Arity, argc)
	}
	vm.frames = append(vm.frames, CallFrame{
		fn:        fn,
		slotsBase: len(vm.stack) - argc - 1,
	})
	return nil
}

func (vm *VM) callValue(caller *CallFrame, v bytecode.Value, argc int) error {
	if v.Kind != bytecode.ValueFunction || v.Fn == nil {
		return vm.runtimeError(caller, "Can only call functions, got %s.", v.TypeName())
	}
	return vm.call(caller, v.Fn, argc)
}

func (vm *VM) run() error {
	for {
		if len(vm.frames) == 0 {
			return nil
		}
		fr := vm.currentFrame()
		code := fr.fn.Chunk.Code

		if fr.ip >= len(code) {
			return nil
		}

		op := bytecode.OpCode(code[fr.ip])
		fr.ip++

		switch op {
		case bytecode.OpPushConstant:
			idx := vm.readByte(fr)
			vm.push(fr.fn.Chunk.Consts[idx])
		case bytecode.OpNil:
			vm.push(bytecode.Nil())
		case bytecode.OpTrue:
			vm.push(bytecode.Bool(true))
		case bytecode.OpFalse:
			vm.push(bytecode.Bool(false))
		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpAdd:
			b := vm.pop()
			a := vm.pop()
			switch {
			case a.Kind == bytecode.ValueNumber && b.Kind == bytecode.ValueNumber:
				vm.push(bytecode.Number(a.Number + b.Number))
			case a.Kind == bytecode.ValueString && b.Kind == bytecode.ValueString:
				vm.push(bytecode.String(a.Str + b.Str))
			default:
				return vm.runtimeError(fr, "Expect two numbers or two strings, got %s and %s.", a.TypeName(), b.TypeName())
			}
		case bytecode.OpSub:
			a, b, err := vm.popTwoNumbers(fr)
			if err != nil {
				return err
			}
			vm.push(bytecode.Number(a - b))
		case bytecode.OpDiv:
			a, b, err := vm.popTwoNumbers(fr)
			if err != nil {
				return err
			}
			vm.push(bytecode.Number(a / b))
		case bytecode.OpMult:
			a, b, err := vm.popTwoNumbers(fr)
			if err != nil {
				return err
			}
			vm.push(bytecode.Number(a * b))
		case bytecode.OpLess:
			a, b, err := vm.popTwoNumbers(fr)
			if err != nil {
				return err
			}
			vm.push(bytecode.Bool(a < b))
		case bytecode.OpGreater:
			a, b, err := vm.popTwoNumbers(fr)
			if err != nil {
				return err
			}
			vm.push(bytecode.Bool(a > b))
		case bytecode.OpPow:
			base, exponent, err := vm.popTwoNumbers(fr)
			if err != nil {
				return err
			}
			vm.push(bytecode.Number(math.Pow(base, exponent)))
		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.Bool(bytecode.Equal(a, b)))
		case bytecode.OpNot:
			vm.push(bytecode.Bool(!vm.pop().Truthy()))
		case bytecode.OpNegate:
			if v := vm.peek(0); v.Kind != bytecode.ValueNumber {
				return vm.runtimeError(fr, "Expect a number, got %s.", v.TypeName())
			}
			vm.push(bytecode.Number(-vm.pop().Number))
		case bytecode.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())
		case bytecode.OpJumpIfFalse:
			offset := vm.readShort(fr)
			if !vm.peek(0).Truthy() {
				fr.ip += offset
			}
		case bytecode.OpJump:
			fr.ip += vm.readShort(fr)
		case bytecode.OpLoop:
			fr.ip -= vm.readShort(fr)
		case bytecode.OpDefineGlobal:
			name := fr.fn.Chunk.Consts[vm.readByte(fr)].Str
			if _, exists := vm.globals[name]; exists {
				return vm.runtimeError(fr, "Global variable '%s' already defined.", name)
			}
			vm.globals[name] = vm.pop()
		case bytecode.OpGetGlobal:
			name := fr.fn.Chunk.Consts[vm.readByte(fr)].Str
			v, exists := vm.globals[name]
			if !exists {
				return vm.runtimeError(fr, "Undefined global variable '%s'.", name)
			}
			vm.push(v)
		case bytecode.OpSetGlobal:
			name := fr.fn.Chunk.Consts[vm.readByte(fr)].Str
			if _, exists := vm.globals[name]; !exists {
				return vm.runtimeError(fr, "Undefined global variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)
		case bytecode.OpGetLocal:
			slot := vm.readByte(fr)
			vm.push(vm.stack[fr.slotsBase+int(slot)])
		case bytecode.OpSetLocal:
			slot := vm.readByte(fr)
			vm.stack[fr.slotsBase+int(slot)] = vm.peek(0)
		case bytecode.OpCall:
			argc := int(vm.readByte(fr))
			callee := vm.peek(argc)
			if err := vm.callValue(fr, callee, argc); err != nil {
				return err
			}
		case bytecode.OpReturn:
			result := vm.pop()
			base := fr.slotsBase
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop()
				return nil
			}
			vm.stack = vm.stack[:base]
			vm.push(result)
		default:
			return vm.runtimeError(fr, "Unknown operation.")
		}
	}
}

func (vm *VM) popTwoNumbers(fr *CallFrame) (float64, float64, error) {
	b := vm.pop()
	a := vm.pop()
	if a.Kind != bytecode.ValueNumber || b.Kind != bytecode.ValueNumber {
		return 0, 0, vm.runtimeError(fr, "Expect two numbers, got %s and %s.", a.TypeName(), b.TypeName())
	}
	return a.Number, b.Number, nil
}

func (vm *VM) currentFrame() *CallFrame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) push(v bytecode.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() bytecode.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) readByte(fr *CallFrame) byte {
	b := fr.fn.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readShort(fr *CallFrame) int {
	hi := fr.fn.Chunk.Code[fr.ip]
	lo := fr.fn.Chunk.Code[fr.ip+1]
	fr.ip += 2
	return int(hi)<<8 | int(lo)
}
