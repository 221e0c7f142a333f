package vm

import (
	"fmt"
	"sync"
)

// Object is an instance of a non-builtin class. Native holds Go-side state of
// library classes implemented in Go.
type Object struct {
	class  *Class
	mu     sync.RWMutex
	fields map[string]any
	Native any
}

// NewObject allocates an instance of c with every instance field, inherited
// ones included, set to its zero value.
func NewObject(c *Class) *Object {
	obj := &Object{class: c, fields: make(map[string]any)}
	for k := c; k != nil; k = k.super {
		for _, f := range k.fields {
			if _, shadowed := obj.fields[f.Name]; !f.IsStatic() && !shadowed {
				obj.fields[f.Name] = ZeroValue(f.Type)
			}
		}
	}
	return obj
}

// Class returns the runtime class of the object.
func (o *Object) Class() *Class { return o.class }

// Get returns a field value, nil if unset.
func (o *Object) Get(name string) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fields[name]
}

// Set stores a field value without type checks.
func (o *Object) Set(name string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields[name] = v
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%p", o.class.Name(), o)
}

// Array is a Java array. Elements are stored in their boxed Go form (int32
// for int[], bool for boolean[] and so on).
type Array struct {
	class *Class
	mu    sync.RWMutex
	elems []any
}

// NewArray allocates an array of n zero elements.
func NewArray(component *Class, n int) (*Array, error) {
	if n < 0 {
		return nil, Throw(NegativeArraySizeExceptionClass, "%d", n)
	}
	if component == VoidType {
		return nil, Throw(IllegalArgumentExceptionClass, "void array")
	}
	elems := make([]any, n)
	zero := ZeroValue(component)
	for i := range elems {
		elems[i] = zero
	}
	return &Array{class: component.ArrayType(), elems: elems}, nil
}

// ArrayOf builds an array from values, checking each against the component type.
func ArrayOf(component *Class, values ...any) (*Array, error) {
	a, err := NewArray(component, len(values))
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if err := a.Set(i, v); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Class returns the array class.
func (a *Array) Class() *Class { return a.class }

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// Get returns element i.
func (a *Array) Get(i int) (any, error) {
	if i < 0 || i >= len(a.elems) {
		return nil, Throw(ArrayIndexOutOfBoundsExceptionClass, "Index %d out of bounds for length %d", i, len(a.elems))
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.elems[i], nil
}

// Set stores v at i. v must be null or an instance of the component type;
// primitive arrays take the matching wrapper only.
func (a *Array) Set(i int, v any) error {
	if i < 0 || i >= len(a.elems) {
		return Throw(ArrayIndexOutOfBoundsExceptionClass, "Index %d out of bounds for length %d", i, len(a.elems))
	}
	if !CanHold(a.class.component, v) {
		return Throw(IllegalArgumentExceptionClass, "array element type mismatch: %v into %s", ClassOf(v), a.class.SimpleName())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.elems[i] = v
	return nil
}

// Elements returns a copy of the elements.
func (a *Array) Elements() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]any(nil), a.elems...)
}

// ClassOf returns the runtime class of a Java value, nil for null. Go values
// outside the mapping are reported as Object.
func ClassOf(v any) *Class {
	switch x := v.(type) {
	case nil:
		return nil
	case int32:
		return IntegerClass
	case int64:
		return LongClass
	case int16:
		return ShortClass
	case int8:
		return ByteClass
	case uint16:
		return CharacterClass
	case float32:
		return FloatClass
	case float64:
		return DoubleClass
	case bool:
		return BooleanClass
	case string:
		return StringClass
	case *Class:
		return ClassClass
	case *Array:
		return x.class
	case *Object:
		return x.class
	default:
		return ObjectClass
	}
}
