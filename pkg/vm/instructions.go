package vm

import (
	"fmt"

	"github.com/daimatz/jbeans/pkg/classfile"
)

// Opcodes
const (
	OpNop             = 0x00
	OpAconstNull      = 0x01
	OpIconstM1        = 0x02
	OpIconst0         = 0x03
	OpIconst5         = 0x08
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpAload           = 0x19
	OpIload0          = 0x1A
	OpIload3          = 0x1D
	OpAload0          = 0x2A
	OpAload3          = 0x2D
	OpIaload          = 0x2E
	OpAaload          = 0x32
	OpBaload          = 0x33
	OpCaload          = 0x34
	OpSaload          = 0x35
	OpIstore          = 0x36
	OpAstore          = 0x3A
	OpIstore0         = 0x3B
	OpIstore3         = 0x3E
	OpAstore0         = 0x4B
	OpAstore3         = 0x4E
	OpIastore         = 0x4F
	OpAastore         = 0x53
	OpBastore         = 0x54
	OpCastore         = 0x55
	OpSastore         = 0x56
	OpPop             = 0x57
	OpDup             = 0x59
	OpSwap            = 0x5F
	OpIadd            = 0x60
	OpIsub            = 0x64
	OpImul            = 0x68
	OpIdiv            = 0x6C
	OpIrem            = 0x70
	OpIneg            = 0x74
	OpIshl            = 0x78
	OpIshr            = 0x7A
	OpIushr           = 0x7C
	OpIand            = 0x7E
	OpIor             = 0x80
	OpIxor            = 0x82
	OpIinc            = 0x84
	OpIfeq            = 0x99
	OpIfne            = 0x9A
	OpIflt            = 0x9B
	OpIfge            = 0x9C
	OpIfgt            = 0x9D
	OpIfle            = 0x9E
	OpIfIcmpeq        = 0x9F
	OpIfIcmpne        = 0xA0
	OpIfIcmplt        = 0xA1
	OpIfIcmpge        = 0xA2
	OpIfIcmpgt        = 0xA3
	OpIfIcmple        = 0xA4
	OpIfAcmpeq        = 0xA5
	OpIfAcmpne        = 0xA6
	OpGoto            = 0xA7
	OpIreturn         = 0xAC
	OpAreturn         = 0xB0
	OpReturn          = 0xB1
	OpGetstatic       = 0xB2
	OpPutstatic       = 0xB3
	OpGetfield        = 0xB4
	OpPutfield        = 0xB5
	OpInvokevirtual   = 0xB6
	OpInvokespecial   = 0xB7
	OpInvokestatic    = 0xB8
	OpInvokeinterface = 0xB9
	OpNew             = 0xBB
	OpNewarray        = 0xBC
	OpAnewarray       = 0xBD
	OpArraylength     = 0xBE
	OpAthrow          = 0xBF
	OpCheckcast       = 0xC0
	OpInstanceof      = 0xC1
	OpIfnull          = 0xC6
	OpIfnonnull       = 0xC7
)

// newarray atype operand values.
var newarrayTypes = map[uint8]func() *Class{
	4:  func() *Class { return BooleanType },
	5:  func() *Class { return CharType },
	6:  func() *Class { return FloatType },
	7:  func() *Class { return DoubleType },
	8:  func() *Class { return ByteType },
	9:  func() *Class { return ShortType },
	10: func() *Class { return IntType },
	11: func() *Class { return LongType },
}

// executeInstruction executes a single bytecode instruction starting at pc.
// Returns (returnValue, hasReturn, error).
func (t *thread) executeInstruction(frame *Frame, pc int, opcode byte) (any, bool, error) {
	switch {
	case opcode >= OpIconstM1 && opcode <= OpIconst5:
		frame.PushInt(int32(opcode) - OpIconst0)
		return nil, false, nil
	case opcode >= OpIload0 && opcode <= OpIload3:
		frame.Push(frame.GetLocal(int(opcode - OpIload0)))
		return nil, false, nil
	case opcode >= OpAload0 && opcode <= OpAload3:
		frame.Push(frame.GetLocal(int(opcode - OpAload0)))
		return nil, false, nil
	case opcode >= OpIstore0 && opcode <= OpIstore3:
		frame.SetLocal(int(opcode-OpIstore0), frame.Pop())
		return nil, false, nil
	case opcode >= OpAstore0 && opcode <= OpAstore3:
		frame.SetLocal(int(opcode-OpAstore0), frame.Pop())
		return nil, false, nil
	}

	switch opcode {
	case OpNop:
		// do nothing

	case OpAconstNull:
		frame.Push(nil)

	case OpBipush:
		frame.PushInt(int32(frame.ReadI8()))

	case OpSipush:
		frame.PushInt(int32(frame.ReadI16()))

	case OpLdc:
		return t.executeLdc(frame, uint16(frame.ReadU8()))

	case OpLdcW, OpLdc2W:
		return t.executeLdc(frame, frame.ReadU16())

	case OpIload, OpAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))

	case OpIstore, OpAstore:
		frame.SetLocal(int(frame.ReadU8()), frame.Pop())

	case OpIaload, OpAaload, OpBaload, OpCaload, OpSaload:
		idx := frame.PopInt()
		arr, err := popArray(frame)
		if err != nil {
			return nil, false, err
		}
		v, err := arr.Get(int(idx))
		if err != nil {
			return nil, false, err
		}
		frame.Push(toStack(v))

	case OpIastore, OpAastore, OpBastore, OpCastore, OpSastore:
		v := frame.Pop()
		idx := frame.PopInt()
		arr, err := popArray(frame)
		if err != nil {
			return nil, false, err
		}
		if err := arr.Set(int(idx), fromStack(v, arr.class.component)); err != nil {
			return nil, false, err
		}

	case OpPop:
		frame.Pop()

	case OpDup:
		v := frame.Pop()
		frame.Push(v)
		frame.Push(v)

	case OpSwap:
		a := frame.Pop()
		b := frame.Pop()
		frame.Push(a)
		frame.Push(b)

	case OpIadd, OpIsub, OpImul, OpIdiv, OpIrem, OpIshl, OpIshr, OpIushr, OpIand, OpIor, OpIxor:
		b := frame.PopInt()
		a := frame.PopInt()
		r, err := intArith(opcode, a, b)
		if err != nil {
			return nil, false, err
		}
		frame.PushInt(r)

	case OpIneg:
		frame.PushInt(-frame.PopInt())

	case OpIinc:
		idx := int(frame.ReadU8())
		delta := int32(frame.ReadI8())
		v, _ := frame.GetLocal(idx).(int32)
		frame.SetLocal(idx, v+delta)

	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
		offset := frame.ReadI16()
		if compareInts(opcode-OpIfeq, frame.PopInt(), 0) {
			frame.PC = pc + int(offset)
		}

	case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
		offset := frame.ReadI16()
		b := frame.PopInt()
		a := frame.PopInt()
		if compareInts(opcode-OpIfIcmpeq, a, b) {
			frame.PC = pc + int(offset)
		}

	case OpIfAcmpeq, OpIfAcmpne:
		offset := frame.ReadI16()
		b := frame.Pop()
		a := frame.Pop()
		if (a == b) == (opcode == OpIfAcmpeq) {
			frame.PC = pc + int(offset)
		}

	case OpIfnull, OpIfnonnull:
		offset := frame.ReadI16()
		if (frame.Pop() == nil) == (opcode == OpIfnull) {
			frame.PC = pc + int(offset)
		}

	case OpGoto:
		offset := frame.ReadI16()
		frame.PC = pc + int(offset)

	case OpIreturn, OpAreturn:
		return frame.Pop(), true, nil

	case OpReturn:
		return nil, true, nil

	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield:
		return t.executeFieldAccess(frame, opcode, frame.ReadU16())

	case OpInvokevirtual:
		return t.executeInvokevirtual(frame, frame.ReadU16())

	case OpInvokeinterface:
		index := frame.ReadU16()
		frame.ReadU8() // count
		frame.ReadU8() // always 0
		return t.executeInvokevirtual(frame, index)

	case OpInvokespecial:
		return t.executeInvokespecial(frame, frame.ReadU16())

	case OpInvokestatic:
		return t.executeInvokestatic(frame, frame.ReadU16())

	case OpNew:
		return t.executeNew(frame, frame.ReadU16())

	case OpNewarray:
		elem, ok := newarrayTypes[frame.ReadU8()]
		if !ok {
			return nil, false, fmt.Errorf("newarray: invalid atype")
		}
		arr, err := NewArray(elem(), int(frame.PopInt()))
		if err != nil {
			return nil, false, err
		}
		frame.Push(arr)

	case OpAnewarray, OpCheckcast, OpInstanceof:
		name, err := classfile.GetClassName(t.pool(frame), frame.ReadU16())
		if err != nil {
			return nil, false, err
		}
		c, err := t.resolveClass(name)
		if err != nil {
			return nil, false, err
		}
		return executeTypeOp(frame, opcode, c)

	case OpArraylength:
		arr, err := popArray(frame)
		if err != nil {
			return nil, false, err
		}
		frame.PushInt(int32(arr.Len()))

	case OpAthrow:
		obj, ok := frame.Pop().(*Object)
		if !ok || obj == nil {
			return nil, false, Throw(NullPointerExceptionClass, "athrow of null")
		}
		msg, _ := obj.Get("message").(string)
		return nil, false, &Throwable{Class: obj.class, Message: msg, Object: obj}

	default:
		return nil, false, fmt.Errorf("unsupported opcode 0x%02X at PC=%d", opcode, pc)
	}

	return nil, false, nil
}

func executeTypeOp(frame *Frame, opcode byte, c *Class) (any, bool, error) {
	switch opcode {
	case OpAnewarray:
		arr, err := NewArray(c, int(frame.PopInt()))
		if err != nil {
			return nil, false, err
		}
		frame.Push(arr)
	case OpCheckcast:
		v := frame.Pop()
		if v != nil && !c.IsInstance(v) {
			return nil, false, Throw(ClassCastExceptionClass, "%s cannot be cast to %s", ClassOf(v).Name(), c.Name())
		}
		frame.Push(v)
	case OpInstanceof:
		if c.IsInstance(frame.Pop()) {
			frame.PushInt(1)
		} else {
			frame.PushInt(0)
		}
	}
	return nil, false, nil
}

func popArray(frame *Frame) (*Array, error) {
	arr, ok := frame.Pop().(*Array)
	if !ok || arr == nil {
		return nil, Throw(NullPointerExceptionClass, "array is null")
	}
	return arr, nil
}

func intArith(opcode byte, a, b int32) (int32, error) {
	switch opcode {
	case OpIadd:
		return a + b, nil
	case OpIsub:
		return a - b, nil
	case OpImul:
		return a * b, nil
	case OpIdiv, OpIrem:
		if b == 0 {
			return 0, Throw(ArithmeticExceptionClass, "/ by zero")
		}
		if opcode == OpIdiv {
			return a / b, nil
		}
		return a % b, nil
	case OpIshl:
		return a << (b & 0x1F), nil
	case OpIshr:
		return a >> (b & 0x1F), nil
	case OpIushr:
		return int32(uint32(a) >> (b & 0x1F)), nil
	case OpIand:
		return a & b, nil
	case OpIor:
		return a | b, nil
	default:
		return a ^ b, nil
	}
}

// compareInts evaluates the condition at position cond of eq, ne, lt, ge, gt, le.
func compareInts(cond byte, a, b int32) bool {
	switch cond {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	default:
		return a <= b
	}
}
