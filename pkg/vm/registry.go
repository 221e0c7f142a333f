package vm

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/daimatz/jbeans/pkg/classfile"
)

// Registry is a class namespace. It holds the bootstrap classes, classes
// defined from Go, and classes read on demand from a ClassSource. A registry
// may delegate to a parent before consulting its own source.
type Registry struct {
	parent *Registry
	source ClassSource
	logger *zap.Logger

	mu      sync.RWMutex
	classes map[string]*Class

	// loadMu serializes reading classes from the source so a class and the
	// classes it refers to are defined exactly once.
	loadMu sync.Mutex

	hookMu   sync.Mutex
	onUnload []*unloadHook
}

type unloadHook struct {
	fn func(*Class)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSource sets the source classes are read from when not yet defined.
func WithSource(s ClassSource) RegistryOption {
	return func(r *Registry) { r.source = s }
}

// WithParent makes r consult parent before its own classes and source.
func WithParent(parent *Registry) RegistryOption {
	return func(r *Registry) { r.parent = parent }
}

// WithLogger sets the logger for class loading events.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry holding the bootstrap classes.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		classes: make(map[string]*Class),
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.parent == nil {
		for _, c := range bootstrapClasses {
			r.classes[c.name] = c
		}
	}
	return r
}

// Parent returns the parent registry, or nil.
func (r *Registry) Parent() *Registry { return r.parent }

// Define adds a class built in Go. Defining a name twice fails.
func (r *Registry) Define(classes ...*Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		if _, ok := r.classes[c.name]; ok {
			return fmt.Errorf("class %s already defined", c.name)
		}
	}
	for _, c := range classes {
		if c.registry == nil {
			c.registry = r
		}
		r.classes[c.name] = c
		r.logger.Debug("class defined", zap.String("class", c.name))
	}
	return nil
}

// ForName resolves a class by binary name ("java.util.ArrayList", "[I",
// "[Ljava.lang.String;"). Primitive type names are not classes and fail
// like any other unknown name.
func (r *Registry) ForName(name string) (*Class, error) {
	if strings.HasPrefix(name, "[") {
		return r.arrayClass(name)
	}
	if c := r.lookup(name); c != nil {
		return c, nil
	}
	if r.parent != nil {
		if c, err := r.parent.ForName(name); err == nil {
			return c, nil
		} else if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	if r.source == nil {
		return nil, Throw(ClassNotFoundExceptionClass, "%s", name)
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.load(name, make(map[string]*Class))
}

// PrimitiveType returns the primitive type (or void) with the given name.
func PrimitiveType(name string) (*Class, bool) {
	switch name {
	case "boolean":
		return BooleanType, true
	case "byte":
		return ByteType, true
	case "char":
		return CharType, true
	case "short":
		return ShortType, true
	case "int":
		return IntType, true
	case "long":
		return LongType, true
	case "float":
		return FloatType, true
	case "double":
		return DoubleType, true
	case "void":
		return VoidType, true
	}
	return nil, false
}

// TypeByName resolves a class or a primitive type name.
func (r *Registry) TypeByName(name string) (*Class, error) {
	if p, ok := PrimitiveType(name); ok {
		return p, nil
	}
	return r.ForName(name)
}

// Unload removes a class and runs the unload hooks with it.
func (r *Registry) Unload(name string) bool {
	r.mu.Lock()
	c, ok := r.classes[name]
	if ok {
		delete(r.classes, name)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	r.hookMu.Lock()
	hooks := slices.Clone(r.onUnload)
	r.hookMu.Unlock()
	for _, h := range hooks {
		h.fn(c)
	}
	r.logger.Debug("class unloaded", zap.String("class", name))
	return true
}

// OnUnload registers fn to run whenever a class is unloaded from r. The
// returned func removes the hook; calling it again is a no-op.
func (r *Registry) OnUnload(fn func(*Class)) (remove func()) {
	h := &unloadHook{fn: fn}
	r.hookMu.Lock()
	r.onUnload = append(r.onUnload, h)
	r.hookMu.Unlock()
	return func() {
		r.hookMu.Lock()
		defer r.hookMu.Unlock()
		r.onUnload = slices.DeleteFunc(r.onUnload, func(o *unloadHook) bool { return o == h })
	}
}

func (r *Registry) lookup(name string) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[name]
}

func (r *Registry) arrayClass(name string) (*Class, error) {
	elem, err := classfile.FieldTypeName(name[1:])
	if err != nil {
		return nil, Throw(ClassNotFoundExceptionClass, "%s", name)
	}
	if strings.HasPrefix(elem, "[") {
		c, err := r.arrayClass(elem)
		if err != nil {
			return nil, err
		}
		return c.ArrayType(), nil
	}
	if p, ok := PrimitiveType(elem); ok {
		if p == VoidType {
			return nil, Throw(ClassNotFoundExceptionClass, "%s", name)
		}
		return p.ArrayType(), nil
	}
	c, err := r.ForName(elem)
	if err != nil {
		return nil, err
	}
	return c.ArrayType(), nil
}

// load reads name from the source. pending holds classes whose members are
// still being resolved in this load, so self references and cycles resolve
// to the class under construction. Callers hold loadMu.
func (r *Registry) load(name string, pending map[string]*Class) (*Class, error) {
	if c, ok := pending[name]; ok {
		return c, nil
	}
	if c := r.lookup(name); c != nil {
		return c, nil
	}
	if r.parent != nil {
		if c, err := r.parent.ForName(name); err == nil {
			return c, nil
		}
	}

	internal := strings.ReplaceAll(name, ".", "/")
	cf, err := r.source.LoadClass(internal)
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			return nil, &Throwable{Class: ClassNotFoundExceptionClass, Message: name, Cause: err}
		}
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	c, err := r.defineFromClassFile(cf, pending)
	if err != nil {
		return nil, fmt.Errorf("defining %s: %w", name, err)
	}
	r.logger.Debug("class loaded",
		zap.String("class", c.name),
		zap.Int("methods", len(c.methods)),
		zap.Int("constructors", len(c.ctors)))
	return c, nil
}

// loadType resolves a type named in a descriptor. A class that cannot be
// found is replaced by an opaque subclass of Object so the members that
// mention it stay callable with null or other opaque values.
func (r *Registry) loadType(name string, pending map[string]*Class) (*Class, error) {
	if p, ok := PrimitiveType(name); ok {
		return p, nil
	}
	if strings.HasPrefix(name, "[") {
		elem, err := classfile.FieldTypeName(name[1:])
		if err != nil {
			return nil, err
		}
		c, err := r.loadType(elem, pending)
		if err != nil {
			return nil, err
		}
		return c.ArrayType(), nil
	}
	c, err := r.load(name, pending)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrClassNotFound) {
		return nil, err
	}
	r.logger.Debug("opaque type", zap.String("class", name))
	opaque := NewClass(name, ObjectClass)
	opaque.registry = r
	r.mu.Lock()
	r.classes[name] = opaque
	r.mu.Unlock()
	return opaque, nil
}

func (r *Registry) defineFromClassFile(cf *classfile.ClassFile, pending map[string]*Class) (*Class, error) {
	internal, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	c := &Class{
		name:      binaryName(internal),
		kind:      KindClass,
		Modifiers: Modifier(cf.AccessFlags) & (Public | Abstract),
		file:      cf,
		registry:  r,
		statics:   make(map[string]any),
	}
	if cf.AccessFlags&classfile.AccInterface != 0 {
		c.kind = KindInterface
	}
	pending[c.name] = c

	if super := cf.SuperClassName(); super != "" && c.kind == KindClass {
		if c.super, err = r.load(binaryName(super), pending); err != nil {
			return nil, fmt.Errorf("superclass: %w", err)
		}
	}
	names, err := cf.InterfaceNames()
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		i, err := r.load(binaryName(n), pending)
		if err != nil {
			return nil, fmt.Errorf("interface: %w", err)
		}
		c.interfaces = append(c.interfaces, i)
	}

	for _, fi := range cf.Fields {
		typeName, err := classfile.FieldTypeName(fi.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fi.Name, err)
		}
		t, err := r.loadType(typeName, pending)
		if err != nil {
			return nil, err
		}
		c.DefineField(fi.Name, Modifier(fi.AccessFlags)&(Public|Private|Static), t, nil)
	}

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		md, err := classfile.ParseMethodDescriptor(mi.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", mi.Name, err)
		}
		params := make([]*Class, len(md.Params))
		for j, p := range md.Params {
			if params[j], err = r.loadType(p, pending); err != nil {
				return nil, err
			}
		}
		ret, err := r.loadType(md.Return, pending)
		if err != nil {
			return nil, err
		}
		mods := Modifier(mi.AccessFlags) & (Public | Private | Static | Abstract)

		switch mi.Name {
		case "<clinit>":
			c.clinit = &Method{Name: mi.Name, Modifiers: Static, Return: VoidType, declaring: c, code: mi.Code}
		case "<init>":
			c.ctors = append(c.ctors, &Constructor{Modifiers: mods, Params: params, declaring: c, code: mi.Code})
		default:
			c.methods = append(c.methods, &Method{
				Name: mi.Name, Modifiers: mods, Params: params, Return: ret, declaring: c, code: mi.Code,
			})
		}
	}

	r.mu.Lock()
	r.classes[c.name] = c
	r.mu.Unlock()
	delete(pending, c.name)
	return c, nil
}

// binaryName converts an internal name ("java/lang/String") to a binary name.
func binaryName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}
