package vm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/daimatz/jbeans/pkg/classfile"
)

// Func is the Go implementation of a method. recv is nil for static methods.
// Arguments arrive already checked against the parameter types.
type Func func(recv any, args []any) (any, error)

// Method is a method of a runtime class, backed either by Go code or by
// bytecode read from a class file.
type Method struct {
	Name      string
	Modifiers Modifier
	Params    []*Class
	Return    *Class
	declaring *Class

	impl Func
	code *classfile.CodeAttribute

	descOnce sync.Once
	desc     string
}

func (m *Method) IsStatic() bool { return m.Modifiers&Static != 0 }
func (m *Method) IsPublic() bool { return m.Modifiers&Public != 0 }

// DeclaringClass returns the class that declares m.
func (m *Method) DeclaringClass() *Class { return m.declaring }

// Descriptor returns the JVM method descriptor, e.g. "(ILjava/lang/String;)V".
func (m *Method) Descriptor() string {
	m.descOnce.Do(func() { m.desc = methodDescriptor(m.Params, m.Return) })
	return m.desc
}

func (m *Method) String() string {
	return fmt.Sprintf("%s %s.%s(%s)", m.Return.Name(), m.declaring.Name(), m.Name, paramList(m.Params))
}

// Invoke calls m. For instance methods recv must be an instance of the
// declaring class. A failure raised by the method body is returned as an
// *InvocationTargetError; argument and access problems are returned directly.
func (m *Method) Invoke(recv any, args []any, opts ...InvokeOption) (any, error) {
	cfg := newInvokeConfig(opts)
	if err := checkAccess(m.declaring, m.IsPublic(), cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	if !m.IsStatic() {
		if recv == nil {
			return nil, Throw(NullPointerExceptionClass, "null receiver for %s", m)
		}
		if !m.declaring.IsInstance(recv) {
			return nil, Throw(IllegalArgumentExceptionClass, "object is not an instance of declaring class %s", m.declaring.Name())
		}
	} else {
		recv = nil
		if err := m.declaring.ensureInit(); err != nil {
			return nil, &InvocationTargetError{Cause: err}
		}
	}
	if err := checkArgs(m.Params, args); err != nil {
		return nil, err
	}
	ret, err := m.call(recv, args)
	if err != nil {
		return nil, &InvocationTargetError{Cause: err}
	}
	return ret, nil
}

// call runs the method body without checks. Errors are the raw failure.
func (m *Method) call(recv any, args []any) (ret any, err error) {
	if m.code != nil {
		return newThread(m.declaring.registry).invoke(m, recv, args)
	}
	if m.impl == nil {
		return nil, Throw(AbstractMethodErrorClass, "%s", m)
	}
	defer recoverInto(&err)
	ret, err = m.impl(recv, args)
	if m.Return == VoidType {
		ret = nil
	}
	return ret, err
}

// Constructor creates instances of its declaring class.
type Constructor struct {
	Modifiers Modifier
	Params    []*Class
	declaring *Class

	create func(args []any) (any, error)
	init   func(this *Object, args []any) error
	code   *classfile.CodeAttribute

	descOnce sync.Once
	desc     string
}

func (k *Constructor) IsPublic() bool { return k.Modifiers&Public != 0 }

// DeclaringClass returns the class k instantiates.
func (k *Constructor) DeclaringClass() *Class { return k.declaring }

// Descriptor returns the descriptor of the <init> method.
func (k *Constructor) Descriptor() string {
	k.descOnce.Do(func() { k.desc = methodDescriptor(k.Params, VoidType) })
	return k.desc
}

func (k *Constructor) String() string {
	return fmt.Sprintf("%s(%s)", k.declaring.Name(), paramList(k.Params))
}

// NewInstance allocates and initializes an instance. Failures raised by the
// constructor body are wrapped in *InvocationTargetError.
func (k *Constructor) NewInstance(args []any, opts ...InvokeOption) (any, error) {
	cfg := newInvokeConfig(opts)
	if err := checkAccess(k.declaring, k.IsPublic(), cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	if k.declaring.Modifiers&Abstract != 0 {
		return nil, Throw(InstantiationExceptionClass, "%s", k.declaring.Name())
	}
	if err := checkArgs(k.Params, args); err != nil {
		return nil, err
	}
	if err := k.declaring.ensureInit(); err != nil {
		return nil, &InvocationTargetError{Cause: err}
	}
	v, err := k.construct(args)
	if err != nil {
		return nil, &InvocationTargetError{Cause: err}
	}
	return v, nil
}

func (k *Constructor) construct(args []any) (v any, err error) {
	defer recoverInto(&err)
	if k.create != nil {
		return k.create(args)
	}
	obj := NewObject(k.declaring)
	if err := k.initialize(obj, args); err != nil {
		return nil, err
	}
	return obj, nil
}

// initialize runs the constructor body on an already allocated object.
func (k *Constructor) initialize(this *Object, args []any) (err error) {
	switch {
	case k.code != nil:
		_, err = newThread(k.declaring.registry).invokeInit(k, this, args)
		return err
	case k.init != nil:
		defer recoverInto(&err)
		return k.init(this, args)
	default:
		return Throw(InstantiationExceptionClass, "%s cannot initialize a preallocated object", k)
	}
}

// Field is a static or instance field.
type Field struct {
	Name      string
	Modifiers Modifier
	Type      *Class
	declaring *Class
}

func (f *Field) IsStatic() bool { return f.Modifiers&Static != 0 }
func (f *Field) IsPublic() bool { return f.Modifiers&Public != 0 }

// DeclaringClass returns the class that declares f.
func (f *Field) DeclaringClass() *Class { return f.declaring }

// Get reads the field. recv is ignored for static fields.
func (f *Field) Get(recv any) (any, error) {
	if f.IsStatic() {
		if err := f.declaring.ensureInit(); err != nil {
			return nil, &InvocationTargetError{Cause: err}
		}
		f.declaring.staticMu.RLock()
		defer f.declaring.staticMu.RUnlock()
		return f.declaring.statics[f.Name], nil
	}
	obj, ok := recv.(*Object)
	if !ok || !f.declaring.IsAssignableFrom(obj.class) {
		return nil, Throw(IllegalArgumentExceptionClass, "cannot read field %s of %v", f.Name, ClassOf(recv))
	}
	return obj.Get(f.Name), nil
}

// Set writes the field after checking the value against its type.
func (f *Field) Set(recv any, v any) error {
	if err := checkArgs([]*Class{f.Type}, []any{v}); err != nil {
		return err
	}
	if f.IsStatic() {
		if err := f.declaring.ensureInit(); err != nil {
			return &InvocationTargetError{Cause: err}
		}
		f.declaring.staticMu.Lock()
		defer f.declaring.staticMu.Unlock()
		f.declaring.statics[f.Name] = v
		return nil
	}
	obj, ok := recv.(*Object)
	if !ok || !f.declaring.IsAssignableFrom(obj.class) {
		return Throw(IllegalArgumentExceptionClass, "cannot write field %s of %v", f.Name, ClassOf(recv))
	}
	obj.Set(f.Name, v)
	return nil
}

// InvokeOption adjusts a single invocation.
type InvokeOption func(*invokeConfig)

type invokeConfig struct {
	override bool
}

// OverrideAccess lets a member of a non-public class be invoked.
func OverrideAccess() InvokeOption {
	return func(c *invokeConfig) { c.override = true }
}

func newInvokeConfig(opts []InvokeOption) invokeConfig {
	var cfg invokeConfig
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func checkAccess(declaring *Class, public bool, cfg invokeConfig) error {
	if cfg.override || (public && declaring.IsPublic()) {
		return nil
	}
	return Throw(IllegalAccessExceptionClass, "%s is not accessible", declaring.Name())
}

// CanHold reports whether v may be passed for a parameter of type t: null for
// any reference type, the matching wrapper for a primitive, or any instance
// of a reference type.
func CanHold(t *Class, v any) bool {
	if v == nil {
		return t.kind != KindPrimitive
	}
	return t.IsInstance(v)
}

func checkArgs(params []*Class, args []any) error {
	if len(params) != len(args) {
		return Throw(IllegalArgumentExceptionClass, "wrong number of arguments: got %d, want %d", len(args), len(params))
	}
	for i, p := range params {
		if !CanHold(p, args[i]) {
			return Throw(IllegalArgumentExceptionClass, "argument %d: %v is not assignable to %s", i, ClassOf(args[i]), p.Name())
		}
	}
	return nil
}

func methodDescriptor(params []*Class, ret *Class) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(internalDescriptor(p))
	}
	sb.WriteByte(')')
	sb.WriteString(internalDescriptor(ret))
	return sb.String()
}

// internalDescriptor uses slashes like the descriptors stored in class files.
func internalDescriptor(c *Class) string {
	return strings.ReplaceAll(descriptorOf(c), ".", "/")
}

func paramList(params []*Class) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}
