package vm

import (
	"errors"
	"fmt"

	"github.com/daimatz/jbeans/pkg/classfile"
)

// maxFrameDepth is the maximum number of nested method calls.
const maxFrameDepth = 1024

// thread executes bytecode. Each call from Go into a bytecode member starts a
// new thread; nested bytecode calls share it so the frame depth is tracked.
type thread struct {
	registry *Registry
	depth    int
}

func newThread(r *Registry) *thread {
	return &thread{registry: r}
}

// call dispatches to bytecode on this thread or to the Go implementation.
func (t *thread) call(m *Method, recv any, args []any) (any, error) {
	if m.code != nil {
		return t.invoke(m, recv, args)
	}
	return m.call(recv, args)
}

// invoke runs a bytecode method and returns its result in Java form.
func (t *thread) invoke(m *Method, recv any, args []any) (any, error) {
	ret, err := t.execute(m.declaring, m.code, !m.IsStatic(), recv, m.Params, args)
	if err != nil {
		return nil, err
	}
	if m.Return == VoidType {
		return nil, nil
	}
	return fromStack(ret, m.Return), nil
}

// invokeInit runs a bytecode constructor body on this.
func (t *thread) invokeInit(k *Constructor, this *Object, args []any) (any, error) {
	return t.execute(k.declaring, k.code, true, this, k.Params, args)
}

func (t *thread) execute(class *Class, code *classfile.CodeAttribute, hasRecv bool, recv any, params []*Class, args []any) (ret any, err error) {
	t.depth++
	defer func() { t.depth-- }()
	if t.depth > maxFrameDepth {
		return nil, Throw(StackOverflowErrorClass, "frame depth exceeded %d", maxFrameDepth)
	}
	defer recoverInto(&err)

	frame := NewFrame(code.MaxLocals, code.MaxStack, code.Code, class)
	slot := 0
	if hasRecv {
		frame.SetLocal(0, recv)
		slot = 1
	}
	for i, arg := range args {
		frame.SetLocal(slot, toStack(arg))
		slot += classfile.SlotCount(params[i].Name())
	}

	for frame.PC < len(frame.Code) {
		start := frame.PC
		opcode := frame.ReadU8()

		retVal, hasReturn, err := t.executeInstruction(frame, start, opcode)
		if err != nil {
			if handler, ok := t.findHandler(frame, code, start, err); ok {
				frame.SP = 0
				frame.Push(handler)
				continue
			}
			return nil, err
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return nil, nil
}

// findHandler looks for an exception table entry covering pc that catches
// err. On a match it moves the frame to the handler and returns the thrown
// object to push.
func (t *thread) findHandler(frame *Frame, code *classfile.CodeAttribute, pc int, err error) (any, bool) {
	var thr *Throwable
	if !errors.As(err, &thr) {
		return nil, false
	}
	for _, h := range code.ExceptionHandlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType != 0 {
			name, err := classfile.GetClassName(frame.Class.file.ConstantPool, h.CatchType)
			if err != nil {
				continue
			}
			catch, err := t.resolveClass(name)
			if err != nil || !catch.IsAssignableFrom(thr.Class) {
				continue
			}
		}
		frame.PC = int(h.HandlerPC)
		return thr.asObject(), true
	}
	return nil, false
}

// asObject returns the heap object for a throwable raised from Go code.
func (t *Throwable) asObject() *Object {
	if t.Object == nil {
		t.Object = NewObject(t.Class)
		t.Object.Set("message", t.Message)
	}
	return t.Object
}

func (t *thread) resolveClass(internalName string) (*Class, error) {
	if t.registry == nil {
		return nil, fmt.Errorf("no registry to resolve %s", internalName)
	}
	return t.registry.ForName(binaryName(internalName))
}

func (t *thread) pool(frame *Frame) []classfile.ConstantPoolEntry {
	return frame.Class.file.ConstantPool
}

// popArgs pops len(params) arguments and converts them to Java form.
func popArgs(frame *Frame, params []*Class) []any {
	args := make([]any, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		args[i] = fromStack(frame.Pop(), params[i])
	}
	return args
}

func (t *thread) resolveMethod(frame *Frame, index uint16) (*Class, *classfile.MemberRef, error) {
	ref, err := classfile.ResolveMethodref(t.pool(frame), index)
	if err != nil {
		return nil, nil, err
	}
	c, err := t.resolveClass(ref.ClassName)
	if err != nil {
		return nil, nil, err
	}
	return c, ref, nil
}

func (t *thread) executeInvokevirtual(frame *Frame, index uint16) (any, bool, error) {
	c, ref, err := t.resolveMethod(frame, index)
	if err != nil {
		return nil, false, fmt.Errorf("invokevirtual: %w", err)
	}
	m := c.FindMethod(ref.Name, ref.Descriptor)
	if m == nil {
		return nil, false, Throw(NoSuchMethodExceptionClass, "%s.%s%s", c.Name(), ref.Name, ref.Descriptor)
	}
	args := popArgs(frame, m.Params)
	recv := frame.Pop()
	if recv == nil {
		return nil, false, Throw(NullPointerExceptionClass, "invoking %s on null", ref.Name)
	}
	if impl := ClassOf(recv).FindMethod(ref.Name, ref.Descriptor); impl != nil {
		m = impl
	}
	ret, err := t.call(m, recv, args)
	if err != nil {
		return nil, false, err
	}
	if m.Return != VoidType {
		frame.Push(toStack(ret))
	}
	return nil, false, nil
}

func (t *thread) executeInvokespecial(frame *Frame, index uint16) (any, bool, error) {
	c, ref, err := t.resolveMethod(frame, index)
	if err != nil {
		return nil, false, fmt.Errorf("invokespecial: %w", err)
	}

	if ref.Name != "<init>" {
		m := c.FindMethod(ref.Name, ref.Descriptor)
		if m == nil {
			return nil, false, Throw(NoSuchMethodExceptionClass, "%s.%s%s", c.Name(), ref.Name, ref.Descriptor)
		}
		args := popArgs(frame, m.Params)
		recv := frame.Pop()
		ret, err := t.call(m, recv, args)
		if err != nil {
			return nil, false, err
		}
		if m.Return != VoidType {
			frame.Push(toStack(ret))
		}
		return nil, false, nil
	}

	if c == ObjectClass {
		frame.Pop() // Object.<init> is a no-op
		return nil, false, nil
	}
	k := c.FindConstructor(ref.Descriptor)
	if k == nil {
		return nil, false, Throw(NoSuchMethodExceptionClass, "%s.<init>%s", c.Name(), ref.Descriptor)
	}
	args := popArgs(frame, k.Params)
	this, ok := frame.Pop().(*Object)
	if !ok {
		return nil, false, fmt.Errorf("invokespecial: receiver of %s is not an allocated object", k)
	}
	if k.code != nil {
		_, err = t.invokeInit(k, this, args)
	} else {
		err = k.initialize(this, args)
	}
	return nil, false, err
}

func (t *thread) executeInvokestatic(frame *Frame, index uint16) (any, bool, error) {
	c, ref, err := t.resolveMethod(frame, index)
	if err != nil {
		return nil, false, fmt.Errorf("invokestatic: %w", err)
	}
	if err := c.ensureInit(); err != nil {
		return nil, false, err
	}
	m := c.FindMethod(ref.Name, ref.Descriptor)
	if m == nil || !m.IsStatic() {
		return nil, false, Throw(NoSuchMethodExceptionClass, "static %s.%s%s", c.Name(), ref.Name, ref.Descriptor)
	}
	args := popArgs(frame, m.Params)
	ret, err := t.call(m, nil, args)
	if err != nil {
		return nil, false, err
	}
	if m.Return != VoidType {
		frame.Push(toStack(ret))
	}
	return nil, false, nil
}

func (t *thread) resolveField(frame *Frame, index uint16) (*Class, *Field, error) {
	ref, err := classfile.ResolveFieldref(t.pool(frame), index)
	if err != nil {
		return nil, nil, err
	}
	c, err := t.resolveClass(ref.ClassName)
	if err != nil {
		return nil, nil, err
	}
	f := c.Field(ref.Name)
	if f == nil {
		return nil, nil, Throw(NoSuchFieldExceptionClass, "%s.%s", c.Name(), ref.Name)
	}
	return c, f, nil
}

func (t *thread) executeFieldAccess(frame *Frame, opcode byte, index uint16) (any, bool, error) {
	c, f, err := t.resolveField(frame, index)
	if err != nil {
		return nil, false, err
	}
	switch opcode {
	case OpGetstatic:
		if err := c.ensureInit(); err != nil {
			return nil, false, err
		}
		v, err := f.Get(nil)
		if err != nil {
			return nil, false, err
		}
		frame.Push(toStack(v))
	case OpPutstatic:
		if err := c.ensureInit(); err != nil {
			return nil, false, err
		}
		if err := f.Set(nil, fromStack(frame.Pop(), f.Type)); err != nil {
			return nil, false, err
		}
	case OpGetfield:
		obj, ok := frame.Pop().(*Object)
		if !ok || obj == nil {
			return nil, false, Throw(NullPointerExceptionClass, "getfield %s", f.Name)
		}
		frame.Push(toStack(obj.Get(f.Name)))
	case OpPutfield:
		v := fromStack(frame.Pop(), f.Type)
		obj, ok := frame.Pop().(*Object)
		if !ok || obj == nil {
			return nil, false, Throw(NullPointerExceptionClass, "putfield %s", f.Name)
		}
		obj.Set(f.Name, v)
	}
	return nil, false, nil
}

func (t *thread) executeNew(frame *Frame, index uint16) (any, bool, error) {
	name, err := classfile.GetClassName(t.pool(frame), index)
	if err != nil {
		return nil, false, fmt.Errorf("new: %w", err)
	}
	c, err := t.resolveClass(name)
	if err != nil {
		return nil, false, err
	}
	if c.Modifiers&Abstract != 0 {
		return nil, false, Throw(InstantiationExceptionClass, "%s", c.Name())
	}
	if err := c.ensureInit(); err != nil {
		return nil, false, err
	}
	frame.Push(NewObject(c))
	return nil, false, nil
}

func (t *thread) executeLdc(frame *Frame, index uint16) (any, bool, error) {
	pool := t.pool(frame)
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, false, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		frame.Push(c.Value)
	case *classfile.ConstantFloat:
		frame.Push(c.Value)
	case *classfile.ConstantLong:
		frame.Push(c.Value)
	case *classfile.ConstantDouble:
		frame.Push(c.Value)
	case *classfile.ConstantString:
		str, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return nil, false, fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Push(str)
	case *classfile.ConstantClass:
		name, err := classfile.GetUtf8(pool, c.NameIndex)
		if err != nil {
			return nil, false, fmt.Errorf("ldc: resolving class: %w", err)
		}
		cls, err := t.resolveClass(name)
		if err != nil {
			return nil, false, err
		}
		frame.Push(cls)
	default:
		return nil, false, fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, c.Tag())
	}
	return nil, false, nil
}
