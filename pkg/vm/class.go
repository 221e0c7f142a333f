package vm

import (
	"strings"
	"sync"

	"github.com/daimatz/jbeans/pkg/classfile"
)

// Kind distinguishes the four shapes of runtime type.
type Kind int

const (
	KindClass Kind = iota
	KindInterface
	KindPrimitive
	KindArray
)

// Modifier is a set of access flags, using class-file bit values.
type Modifier uint16

const (
	Public   Modifier = classfile.AccPublic
	Private  Modifier = classfile.AccPrivate
	Static   Modifier = classfile.AccStatic
	Abstract Modifier = classfile.AccAbstract
)

// Class is the runtime representation of a Java type: a class, interface,
// primitive type or array type. A Class is mutable only while it is being
// defined; once handed to a Registry it must be treated as read-only.
type Class struct {
	name       string
	kind       Kind
	Modifiers  Modifier
	super      *Class
	interfaces []*Class
	component  *Class
	wrapper    *Class // primitive <-> wrapper class
	zero       any    // zero value of a primitive

	methods []*Method
	ctors   []*Constructor
	fields  []*Field

	file     *classfile.ClassFile // set for classes read from class files
	registry *Registry

	initMu    sync.Mutex
	initState initState
	initErr   error
	clinit    *Method

	arrayOnce sync.Once
	array     *Class

	staticMu sync.RWMutex
	statics  map[string]any
}

// NewClass creates a public class. A nil super defaults to java.lang.Object.
func NewClass(name string, super *Class, interfaces ...*Class) *Class {
	if super == nil && ObjectClass != nil && name != "java.lang.Object" {
		super = ObjectClass
	}
	return &Class{
		name:       name,
		kind:       KindClass,
		Modifiers:  Public,
		super:      super,
		interfaces: interfaces,
		statics:    make(map[string]any),
	}
}

// NewInterface creates a public interface extending the given interfaces.
func NewInterface(name string, supers ...*Class) *Class {
	return &Class{
		name:       name,
		kind:       KindInterface,
		Modifiers:  Public | Abstract,
		interfaces: supers,
		statics:    make(map[string]any),
	}
}

func newPrimitive(name string, zero any) *Class {
	return &Class{name: name, kind: KindPrimitive, Modifiers: Public, zero: zero}
}

// Name returns the binary name: "java.lang.String", "int", "[I", "[Ljava.lang.String;".
func (c *Class) Name() string { return c.name }

// Kind returns the kind of type.
func (c *Class) Kind() Kind { return c.kind }

// SimpleName returns the unqualified name; arrays get a "[]" per dimension.
func (c *Class) SimpleName() string {
	if c.kind == KindArray {
		return c.component.SimpleName() + "[]"
	}
	n := c.name
	if i := strings.LastIndexByte(n, '.'); i >= 0 {
		n = n[i+1:]
	}
	if i := strings.LastIndexByte(n, '$'); i >= 0 {
		n = n[i+1:]
	}
	return n
}

func (c *Class) String() string {
	switch c.kind {
	case KindInterface:
		return "interface " + c.name
	case KindPrimitive:
		return c.name
	default:
		return "class " + c.name
	}
}

func (c *Class) IsInterface() bool { return c.kind == KindInterface }
func (c *Class) IsPrimitive() bool { return c.kind == KindPrimitive }
func (c *Class) IsArray() bool     { return c.kind == KindArray }
func (c *Class) IsPublic() bool    { return c.Modifiers&Public != 0 }

// Superclass returns the direct superclass, nil for Object, interfaces,
// primitives.
func (c *Class) Superclass() *Class { return c.super }

// Interfaces returns the directly implemented (or extended) interfaces.
func (c *Class) Interfaces() []*Class { return c.interfaces }

// ComponentType returns the element type of an array class.
func (c *Class) ComponentType() *Class { return c.component }

// Wrapper returns the boxed class of a primitive type, or nil.
func (c *Class) Wrapper() *Class {
	if c.kind == KindPrimitive {
		return c.wrapper
	}
	return nil
}

// Unwrapped returns the primitive type a wrapper class boxes, or nil.
func (c *Class) Unwrapped() *Class {
	if c.kind != KindPrimitive {
		return c.wrapper
	}
	return nil
}

// ArrayType returns the class of arrays whose elements are c.
func (c *Class) ArrayType() *Class {
	c.arrayOnce.Do(func() {
		c.array = &Class{
			name:       arrayName(c),
			kind:       KindArray,
			Modifiers:  c.Modifiers&Public | Abstract,
			super:      ObjectClass,
			interfaces: []*Class{CloneableClass, SerializableClass},
			component:  c,
			registry:   c.registry,
		}
	})
	return c.array
}

func arrayName(component *Class) string {
	if component.kind == KindArray {
		return "[" + component.name
	}
	return "[" + descriptorOf(component)
}

// descriptorOf returns the field descriptor of c using dots, as Java binary
// names of arrays do.
func descriptorOf(c *Class) string {
	switch c.kind {
	case KindPrimitive:
		return primitiveCodes[c.name]
	case KindArray:
		return c.name
	default:
		return "L" + c.name + ";"
	}
}

var primitiveCodes = map[string]string{
	"boolean": "Z", "byte": "B", "char": "C", "short": "S",
	"int": "I", "long": "J", "float": "F", "double": "D", "void": "V",
}

// IsAssignableFrom reports whether a value of type other can be stored in a
// variable of type c without conversion.
func (c *Class) IsAssignableFrom(other *Class) bool {
	if c == other {
		return true
	}
	if other == nil || c.kind == KindPrimitive || other.kind == KindPrimitive {
		return false
	}
	if c == ObjectClass {
		return true
	}
	if other.kind == KindArray {
		if c.kind == KindArray {
			if c.component.kind == KindPrimitive || other.component.kind == KindPrimitive {
				return false
			}
			return c.component.IsAssignableFrom(other.component)
		}
		return c == CloneableClass || c == SerializableClass
	}
	return other.isSubtypeOf(c)
}

func (c *Class) isSubtypeOf(t *Class) bool {
	for k := c; k != nil; k = k.super {
		if k == t {
			return true
		}
		if t.kind == KindInterface {
			for _, i := range k.interfaces {
				if i.isSubtypeOf(t) {
					return true
				}
			}
		}
	}
	return false
}

// IsInstance reports whether v is an instance of c. Null is an instance of
// nothing.
func (c *Class) IsInstance(v any) bool {
	vc := ClassOf(v)
	if vc == nil {
		return false
	}
	if c.kind == KindPrimitive {
		return c.wrapper == vc
	}
	return c.IsAssignableFrom(vc)
}

// Registry returns the registry c was defined in, nil for bootstrap classes.
func (c *Class) Registry() *Registry { return c.registry }

// Methods returns the declared methods.
func (c *Class) Methods() []*Method { return c.methods }

// Constructors returns the declared constructors.
func (c *Class) Constructors() []*Constructor { return c.ctors }

// Fields returns the declared fields.
func (c *Class) Fields() []*Field { return c.fields }

// PublicMethods returns every public method of c, declared or inherited.
// A method overridden in a subclass hides the inherited one; methods with
// equal signatures reached along unrelated interface paths are all kept.
// The result is freshly computed on every call.
func (c *Class) PublicMethods() []*Method {
	var out []*Method
	seen := make(map[*Class]bool)
	var walk func(k *Class)
	walk = func(k *Class) {
		if k == nil || seen[k] {
			return
		}
		seen[k] = true
		for _, m := range k.methods {
			if m.IsPublic() && !hiddenBy(m, out) {
				out = append(out, m)
			}
		}
		walk(k.super)
		for _, i := range k.interfaces {
			walk(i)
		}
	}
	walk(c)
	if c.kind == KindInterface || c.kind == KindArray {
		// Interfaces and arrays still answer Object's methods.
		walk(ObjectClass)
	}
	return out
}

func hiddenBy(m *Method, found []*Method) bool {
	for _, f := range found {
		if f.Name != m.Name || f.Descriptor() != m.Descriptor() {
			continue
		}
		// Every walked type is a supertype of the class being listed, so a
		// class method also implements any interface method it matches.
		if m.declaring.IsAssignableFrom(f.declaring) || (m.declaring.IsInterface() && !f.declaring.IsInterface()) {
			return true
		}
	}
	return false
}

// PublicConstructors returns the public constructors of c.
func (c *Class) PublicConstructors() []*Constructor {
	var out []*Constructor
	for _, k := range c.ctors {
		if k.IsPublic() {
			out = append(out, k)
		}
	}
	return out
}

// FindMethod looks up a method by name and descriptor along the superclass
// chain, then the interfaces. It ignores visibility.
func (c *Class) FindMethod(name, descriptor string) *Method {
	for k := c; k != nil; k = k.super {
		for _, m := range k.methods {
			if m.Name == name && m.Descriptor() == descriptor {
				return m
			}
		}
	}
	for k := c; k != nil; k = k.super {
		for _, i := range k.interfaces {
			if m := i.FindMethod(name, descriptor); m != nil {
				return m
			}
		}
	}
	if c.kind != KindClass && ObjectClass != nil {
		return ObjectClass.FindMethod(name, descriptor)
	}
	return nil
}

// FindConstructor looks up a declared constructor by descriptor.
func (c *Class) FindConstructor(descriptor string) *Constructor {
	for _, k := range c.ctors {
		if k.Descriptor() == descriptor {
			return k
		}
	}
	return nil
}

// Field looks up a field by name along the superclass chain and interfaces.
func (c *Class) Field(name string) *Field {
	for k := c; k != nil; k = k.super {
		for _, f := range k.fields {
			if f.Name == name {
				return f
			}
		}
		for _, i := range k.interfaces {
			if f := i.Field(name); f != nil {
				return f
			}
		}
	}
	return nil
}

// DefineMethod adds a Go-backed method to c.
func (c *Class) DefineMethod(name string, mods Modifier, ret *Class, params []*Class, impl Func) *Method {
	m := &Method{Name: name, Modifiers: mods, Params: params, Return: ret, declaring: c, impl: impl}
	c.methods = append(c.methods, m)
	return m
}

// DefineConstructor adds a Go-backed constructor that allocates its own
// instance.
func (c *Class) DefineConstructor(mods Modifier, params []*Class, create func(args []any) (any, error)) *Constructor {
	k := &Constructor{Modifiers: mods, Params: params, declaring: c, create: create}
	c.ctors = append(c.ctors, k)
	return k
}

// DefineInitializer adds a constructor that initializes a freshly allocated
// *Object. Bytecode can call it through new/invokespecial.
func (c *Class) DefineInitializer(mods Modifier, params []*Class, init func(this *Object, args []any) error) *Constructor {
	k := &Constructor{Modifiers: mods, Params: params, declaring: c, init: init}
	c.ctors = append(c.ctors, k)
	return k
}

// DefineField adds a field. Static fields start out as value; instance fields
// start as the zero value of typ in every new object.
func (c *Class) DefineField(name string, mods Modifier, typ *Class, value any) *Field {
	f := &Field{Name: name, Modifiers: mods, Type: typ, declaring: c}
	c.fields = append(c.fields, f)
	if mods&Static != 0 {
		if value == nil {
			value = ZeroValue(typ)
		}
		c.staticMu.Lock()
		c.statics[name] = value
		c.staticMu.Unlock()
	}
	return f
}

type initState int

const (
	initPending initState = iota
	initRunning
	initDone
)

// ensureInit runs the static initializer once. A class whose initializer is
// already running is reported as initialized, so recursive static access from
// inside <clinit> does not deadlock.
func (c *Class) ensureInit() error {
	c.initMu.Lock()
	if c.initState != initPending {
		err := c.initErr
		c.initMu.Unlock()
		return err
	}
	c.initState = initRunning
	c.initMu.Unlock()

	var err error
	if c.super != nil {
		err = c.super.ensureInit()
	}
	if err == nil && c.clinit != nil {
		_, err = c.clinit.call(nil, nil)
	}

	c.initMu.Lock()
	c.initState = initDone
	c.initErr = err
	c.initMu.Unlock()
	return err
}

// ZeroValue returns the default value of a variable of type t.
func ZeroValue(t *Class) any {
	if t != nil && t.kind == KindPrimitive {
		return t.zero
	}
	return nil
}
