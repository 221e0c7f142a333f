package native

import (
	"sync"

	"github.com/daimatz/jbeans/pkg/vm"
)

// HashMap represents a java.util.HashMap. Keys are compared by Go equality:
// boxed primitives and strings by value, objects by identity.
type HashMap struct {
	mu   sync.RWMutex
	Data map[any]any
}

// NewHashMap creates an empty HashMap.
func NewHashMap() *HashMap {
	return &HashMap{Data: make(map[any]any)}
}

// Get returns the value for the given key.
func (m *HashMap) Get(key any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Data[key]
}

// Put stores a key-value pair and returns the previous value.
func (m *HashMap) Put(key, value any) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.Data[key]
	m.Data[key] = value
	return old
}

// ContainsKey reports whether key has a mapping.
func (m *HashMap) ContainsKey(key any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.Data[key]
	return ok
}

// Size returns the number of mappings.
func (m *HashMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Data)
}

func defineHashMap(lib *Library) {
	c := vm.NewClass("java.util.HashMap", nil, vm.CloneableClass, vm.SerializableClass)
	hm := state[*HashMap]
	obj := []*vm.Class{vm.ObjectClass}

	c.DefineInitializer(vm.Public, nil, func(this *vm.Object, _ []any) error {
		this.Native = NewHashMap()
		return nil
	})
	c.DefineMethod("put", vm.Public, vm.ObjectClass, []*vm.Class{vm.ObjectClass, vm.ObjectClass}, func(recv any, args []any) (any, error) {
		return hm(recv).Put(args[0], args[1]), nil
	})
	c.DefineMethod("get", vm.Public, vm.ObjectClass, obj, func(recv any, args []any) (any, error) {
		return hm(recv).Get(args[0]), nil
	})
	c.DefineMethod("containsKey", vm.Public, vm.BooleanType, obj, func(recv any, args []any) (any, error) {
		return hm(recv).ContainsKey(args[0]), nil
	})
	c.DefineMethod("size", vm.Public, vm.IntType, nil, func(recv any, _ []any) (any, error) {
		return int32(hm(recv).Size()), nil
	})
	c.DefineMethod("isEmpty", vm.Public, vm.BooleanType, nil, func(recv any, _ []any) (any, error) {
		return hm(recv).Size() == 0, nil
	})
	lib.HashMap = c
}
