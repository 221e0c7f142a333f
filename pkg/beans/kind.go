package beans

import (
	"fmt"

	"github.com/daimatz/jbeans/pkg/vm"
)

// Kind is the operation a statement performs, decided once from the target
// and method name before any member is resolved.
type Kind int

const (
	KindArrayGet      Kind = iota // array.get(index)
	KindArraySet                  // array.set(index, value)
	KindArrayAllocate             // java.lang.reflect.Array.newInstance(component, length)
	KindConstruct                 // Class.new(args) or Class.newInstance(args)
	KindNewArray                  // Component.newArray(elements...)
	KindStaticCall                // Class.method(args), with forName and Class-method fallbacks
	KindIteratorNext              // iterator.method() guarded by hasNext()
	KindInstanceCall              // target.method(args)
)

var kindNames = [...]string{
	KindArrayGet:      "ArrayGet",
	KindArraySet:      "ArraySet",
	KindArrayAllocate: "ArrayAllocate",
	KindConstruct:     "Construct",
	KindNewArray:      "NewArray",
	KindStaticCall:    "StaticCall",
	KindIteratorNext:  "IteratorNext",
	KindInstanceCall:  "InstanceCall",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

const (
	reflectArrayName = "java.lang.reflect.Array"
	iteratorName     = "java.util.Iterator"
)

// Classify decides the operation kind of s. The checks run in a fixed order
// and the first that applies wins. Statements that can never succeed, such
// as an array method other than get or set, fail here.
func Classify(s *Statement) (Kind, error) {
	name, args := s.methodName, s.args
	constructor := name == "new" || name == "newInstance"

	switch target := s.target.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrNullTarget, s)

	case *vm.Array:
		if constructor {
			break
		}
		switch name {
		case "get":
			if len(args) != 1 {
				return 0, fmt.Errorf("%w: get takes 1 argument, got %d: %s", ErrIndexOutOfBounds, len(args), s)
			}
			if _, ok := args[0].(int32); !ok {
				return 0, fmt.Errorf("%w: array index must be an Integer: %s", ErrTypeMismatch, s)
			}
			return KindArrayGet, nil
		case "set":
			if len(args) != 2 {
				return 0, fmt.Errorf("%w: set takes 2 arguments, got %d: %s", ErrIndexOutOfBounds, len(args), s)
			}
			if _, ok := args[0].(int32); !ok {
				return 0, fmt.Errorf("%w: array index must be an Integer: %s", ErrTypeMismatch, s)
			}
			return KindArraySet, nil
		default:
			return 0, fmt.Errorf("%w: %s", ErrNoSuchMethod, s)
		}

	case *vm.Class:
		if name == "newInstance" && target.Name() == reflectArrayName {
			return KindArrayAllocate, nil
		}
	}

	_, isClass := s.target.(*vm.Class)
	switch {
	case constructor && isClass:
		return KindConstruct, nil
	case name == "newInstance":
		return KindInstanceCall, nil
	case name == "new":
		return 0, fmt.Errorf("%w: new on a %s instance: %s", ErrNoSuchMethod, typeID(vm.ClassOf(s.target)), s)
	case name == "newArray":
		if !isClass {
			return 0, fmt.Errorf("%w: newArray target must be a class: %s", ErrTypeMismatch, s)
		}
		return KindNewArray, nil
	case isClass:
		return KindStaticCall, nil
	case implements(vm.ClassOf(s.target), iteratorName):
		return KindIteratorNext, nil
	default:
		return KindInstanceCall, nil
	}
}

// implements reports whether c is or inherits the named type.
func implements(c *vm.Class, name string) bool {
	if c == nil {
		return false
	}
	if c.Name() == name {
		return true
	}
	for _, i := range c.Interfaces() {
		if implements(i, name) {
			return true
		}
	}
	return implements(c.Superclass(), name)
}
