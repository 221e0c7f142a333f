package vm

import (
	"fmt"
)

// Frame is the activation record of one bytecode method. Slots hold values
// in stack form: int-like primitives are int32, references are any.
type Frame struct {
	LocalVars    []any
	OperandStack []any
	SP           int
	Code         []byte
	PC           int
	Class        *Class
}

// NewFrame creates a new Frame with the given parameters.
func NewFrame(maxLocals, maxStack uint16, code []byte, class *Class) *Frame {
	return &Frame{
		LocalVars:    make([]any, maxLocals),
		OperandStack: make([]any, maxStack),
		Code:         code,
		Class:        class,
	}
}

// Push pushes a value onto the operand stack.
func (f *Frame) Push(v any) {
	if f.SP >= len(f.OperandStack) {
		panic(fmt.Sprintf("operand stack overflow: SP=%d, max=%d", f.SP, len(f.OperandStack)))
	}
	f.OperandStack[f.SP] = v
	f.SP++
}

// Pop pops a value from the operand stack.
func (f *Frame) Pop() any {
	if f.SP <= 0 {
		panic("operand stack underflow: SP=0")
	}
	f.SP--
	v := f.OperandStack[f.SP]
	f.OperandStack[f.SP] = nil
	return v
}

// PopInt pops an int-form value.
func (f *Frame) PopInt() int32 {
	v, ok := f.Pop().(int32)
	if !ok {
		panic("operand stack: expected int")
	}
	return v
}

// PushInt pushes an int-form value.
func (f *Frame) PushInt(v int32) { f.Push(v) }

// GetLocal returns the value at the given local variable index.
func (f *Frame) GetLocal(index int) any {
	if index < 0 || index >= len(f.LocalVars) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.LocalVars)))
	}
	return f.LocalVars[index]
}

// SetLocal sets the value at the given local variable index.
func (f *Frame) SetLocal(index int, v any) {
	if index < 0 || index >= len(f.LocalVars) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.LocalVars)))
	}
	f.LocalVars[index] = v
}

// ReadU8 reads a uint8 operand and advances PC.
func (f *Frame) ReadU8() uint8 {
	val := f.Code[f.PC]
	f.PC++
	return val
}

// ReadI8 reads an int8 operand and advances PC.
func (f *Frame) ReadI8() int8 {
	val := int8(f.Code[f.PC])
	f.PC++
	return val
}

// ReadU16 reads a uint16 operand (big-endian) and advances PC by 2.
func (f *Frame) ReadU16() uint16 {
	val := uint16(f.Code[f.PC])<<8 | uint16(f.Code[f.PC+1])
	f.PC += 2
	return val
}

// ReadI16 reads an int16 operand (big-endian) and advances PC by 2.
func (f *Frame) ReadI16() int16 {
	return int16(f.ReadU16())
}

// toStack converts a Java value to its operand-stack form.
func toStack(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int32(1)
		}
		return int32(0)
	case int8:
		return int32(x)
	case int16:
		return int32(x)
	case uint16:
		return int32(x)
	default:
		return v
	}
}

// fromStack converts an operand-stack value back to the Java value of type t.
func fromStack(v any, t *Class) any {
	i, ok := v.(int32)
	if !ok || t == nil || t.kind != KindPrimitive {
		return v
	}
	switch t {
	case BooleanType:
		return i != 0
	case ByteType:
		return int8(i)
	case ShortType:
		return int16(i)
	case CharType:
		return uint16(i)
	default:
		return i
	}
}
