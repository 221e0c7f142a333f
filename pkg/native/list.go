package native

import (
	"strings"
	"sync"

	"github.com/daimatz/jbeans/pkg/vm"
)

// ArrayList represents a java.util.ArrayList.
type ArrayList struct {
	mu    sync.RWMutex
	Elems []any
}

// Add appends v.
func (l *ArrayList) Add(v any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Elems = append(l.Elems, v)
}

// Get returns element i.
func (l *ArrayList) Get(i int) (any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.Elems) {
		return nil, vm.Throw(vm.IndexOutOfBoundsExceptionClass, "Index %d out of bounds for length %d", i, len(l.Elems))
	}
	return l.Elems[i], nil
}

// Set replaces element i and returns the previous one.
func (l *ArrayList) Set(i int, v any) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.Elems) {
		return nil, vm.Throw(vm.IndexOutOfBoundsExceptionClass, "Index %d out of bounds for length %d", i, len(l.Elems))
	}
	old := l.Elems[i]
	l.Elems[i] = v
	return old, nil
}

// Size returns the number of elements.
func (l *ArrayList) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.Elems)
}

func (l *ArrayList) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	parts := make([]string, len(l.Elems))
	for i, e := range l.Elems {
		parts[i] = vm.ToString(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// listCursor is the state of an ArrayList$Itr.
type listCursor struct {
	list *ArrayList

	mu   sync.Mutex
	next int
}

func (c *listCursor) hasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next < c.list.Size()
}

// advance returns the element at the cursor and moves past it.
func (c *listCursor) advance() (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= c.list.Size() {
		return nil, false, nil
	}
	v, err := c.list.Get(c.next)
	if err != nil {
		return nil, false, err
	}
	c.next++
	return v, true, nil
}

func defineIterators(lib *Library) {
	lib.Iterator = vm.NewInterface("java.util.Iterator")
	lib.Iterator.DefineMethod("hasNext", vm.Public|vm.Abstract, vm.BooleanType, nil, nil)
	lib.Iterator.DefineMethod("next", vm.Public|vm.Abstract, vm.ObjectClass, nil, nil)

	lib.Iterable = vm.NewInterface("java.lang.Iterable")
	lib.Iterable.DefineMethod("iterator", vm.Public|vm.Abstract, lib.Iterator, nil, nil)

	// The iterator class is package-private, as in the JDK: its public
	// methods are only reachable with access override or through Iterator.
	itr := vm.NewClass("java.util.ArrayList$Itr", nil, lib.Iterator)
	itr.Modifiers = 0
	itr.DefineMethod("hasNext", vm.Public, vm.BooleanType, nil, func(recv any, _ []any) (any, error) {
		return state[*listCursor](recv).hasNext(), nil
	})
	itr.DefineMethod("next", vm.Public, vm.ObjectClass, nil, func(recv any, _ []any) (any, error) {
		v, ok, err := state[*listCursor](recv).advance()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vm.Throw(lib.NoSuchElement, "")
		}
		return v, nil
	})
	lib.ArrayListItr = itr
}

func defineArrayList(lib *Library) {
	c := vm.NewClass("java.util.ArrayList", nil, lib.Iterable, vm.CloneableClass, vm.SerializableClass)
	list := state[*ArrayList]

	c.DefineInitializer(vm.Public, nil, func(this *vm.Object, _ []any) error {
		this.Native = &ArrayList{}
		return nil
	})
	c.DefineMethod("add", vm.Public, vm.BooleanType, []*vm.Class{vm.ObjectClass}, func(recv any, args []any) (any, error) {
		list(recv).Add(args[0])
		return true, nil
	})
	c.DefineMethod("get", vm.Public, vm.ObjectClass, []*vm.Class{vm.IntType}, func(recv any, args []any) (any, error) {
		return list(recv).Get(int(args[0].(int32)))
	})
	c.DefineMethod("set", vm.Public, vm.ObjectClass, []*vm.Class{vm.IntType, vm.ObjectClass}, func(recv any, args []any) (any, error) {
		return list(recv).Set(int(args[0].(int32)), args[1])
	})
	c.DefineMethod("size", vm.Public, vm.IntType, nil, func(recv any, _ []any) (any, error) {
		return int32(list(recv).Size()), nil
	})
	c.DefineMethod("isEmpty", vm.Public, vm.BooleanType, nil, func(recv any, _ []any) (any, error) {
		return list(recv).Size() == 0, nil
	})
	c.DefineMethod("iterator", vm.Public, lib.Iterator, nil, func(recv any, _ []any) (any, error) {
		it := vm.NewObject(lib.ArrayListItr)
		it.Native = &listCursor{list: list(recv)}
		return it, nil
	})
	c.DefineMethod("toString", vm.Public, vm.StringClass, nil, func(recv any, _ []any) (any, error) {
		return list(recv).String(), nil
	})
	lib.ArrayList = c
}
