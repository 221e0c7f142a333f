package beans

import (
	"fmt"
	"runtime"
	"sync"
	"weak"

	"golang.org/x/sync/singleflight"

	"github.com/daimatz/jbeans/pkg/vm"
)

// MethodCache holds the public method table of each class. Classes are held
// weakly: a table goes away once its class is garbage collected, or earlier
// through Invalidate. Concurrent misses for one class enumerate it once.
//
// A table of a class declaring its own methods refers back to the class, so
// such tables are released only by Invalidate, which the Evaluator runs from
// the registry's unload hook. Tables of such classes that were never defined
// in a registry stay cached for the life of the cache.
type MethodCache struct {
	mu      sync.RWMutex
	entries map[weak.Pointer[vm.Class]][]*vm.Method
	group   singleflight.Group
}

// NewMethodCache creates an empty cache.
func NewMethodCache() *MethodCache {
	return &MethodCache{entries: make(map[weak.Pointer[vm.Class]][]*vm.Method)}
}

// Methods returns the public methods of c. The slice is shared and must not
// be modified.
func (mc *MethodCache) Methods(c *vm.Class) []*vm.Method {
	key := weak.Make(c)
	mc.mu.RLock()
	ms, ok := mc.entries[key]
	mc.mu.RUnlock()
	if ok {
		return ms
	}

	v, _, _ := mc.group.Do(fmt.Sprintf("%p", c), func() (any, error) {
		mc.mu.RLock()
		ms, ok := mc.entries[key]
		mc.mu.RUnlock()
		if ok {
			return ms, nil
		}
		ms = c.PublicMethods()
		mc.mu.Lock()
		mc.entries[key] = ms
		mc.mu.Unlock()
		runtime.AddCleanup(c, mc.evict, key)
		return ms, nil
	})
	return v.([]*vm.Method)
}

// Invalidate drops the table of c.
func (mc *MethodCache) Invalidate(c *vm.Class) {
	mc.evict(weak.Make(c))
}

// Len returns the number of cached tables.
func (mc *MethodCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

func (mc *MethodCache) evict(key weak.Pointer[vm.Class]) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.entries, key)
}
