package native

import (
	"bytes"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/jbeans/pkg/classfile"
	cft "github.com/daimatz/jbeans/pkg/classfile/classfiletest"
	"github.com/daimatz/jbeans/pkg/vm"
)

func TestNativeHashMap(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put("key1", "value1")

		got := hm.Get("key1")
		if got != "value1" {
			t.Errorf("Get(key1): got %v, want %q", got, "value1")
		}
	})

	t.Run("get missing key returns nil", func(t *testing.T) {
		hm := NewHashMap()

		got := hm.Get("nonexistent")
		if got != nil {
			t.Errorf("Get(nonexistent): got %v, want nil", got)
		}
	})

	t.Run("overwrite value", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put("key", "old")
		if old := hm.Put("key", "new"); old != "old" {
			t.Errorf("Put returned %v, want %q", old, "old")
		}

		got := hm.Get("key")
		if got != "new" {
			t.Errorf("Get(key) after overwrite: got %v, want %q", got, "new")
		}
	})

	t.Run("integer keys", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put(int32(0), int32(1))
		hm.Put(int32(1), int32(1))

		if got := hm.Get(int32(0)); got != int32(1) {
			t.Errorf("Get(0): got %v, want 1", got)
		}
		// Long 0 is a different key from Integer 0.
		if hm.ContainsKey(int64(0)) {
			t.Error("ContainsKey(0L) should be false")
		}
		if hm.Size() != 2 {
			t.Errorf("Size() = %d, want 2", hm.Size())
		}
	})
}

func install(t *testing.T) (*vm.Registry, *Library, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := vm.NewRegistry()
	lib, err := Install(r, WithStdout(&out))
	require.NoError(t, err)
	return r, lib, &out
}

func call(t *testing.T, c *vm.Class, recv any, name, desc string, args ...any) any {
	t.Helper()
	m := c.FindMethod(name, desc)
	require.NotNil(t, m, "%s.%s%s", c.Name(), name, desc)
	v, err := m.Invoke(recv, args, vm.OverrideAccess())
	require.NoError(t, err)
	return v
}

func TestInstallTwiceFails(t *testing.T) {
	r, _, _ := install(t)
	_, err := Install(r)
	assert.Error(t, err)
}

func TestArrayListAndIterator(t *testing.T) {
	r, lib, _ := install(t)
	c, err := r.ForName("java.util.ArrayList")
	require.NoError(t, err)
	require.Same(t, lib.ArrayList, c)

	ctors := c.PublicConstructors()
	require.Len(t, ctors, 1)
	list, err := ctors[0].NewInstance(nil)
	require.NoError(t, err)

	for _, v := range []any{"a", int32(2), nil} {
		assert.Equal(t, true, call(t, c, list, "add", "(Ljava/lang/Object;)Z", v))
	}
	assert.Equal(t, int32(3), call(t, c, list, "size", "()I"))
	assert.Equal(t, int32(2), call(t, c, list, "get", "(I)Ljava/lang/Object;", int32(1)))
	assert.Equal(t, "[a, 2, null]", call(t, c, list, "toString", "()Ljava/lang/String;"))

	_, err = c.FindMethod("get", "(I)Ljava/lang/Object;").Invoke(list, []any{int32(5)})
	var ite *vm.InvocationTargetError
	require.ErrorAs(t, err, &ite)
	assert.ErrorIs(t, ite.Cause, vm.ErrIndexOutOfBounds)

	it := call(t, c, list, "iterator", "()Ljava/util/Iterator;")
	itr := vm.ClassOf(it)
	assert.Same(t, lib.ArrayListItr, itr)
	assert.False(t, itr.IsPublic())
	assert.True(t, lib.Iterator.IsInstance(it))

	// The iterator class is not public, so plain invocation is refused.
	hasNext := itr.FindMethod("hasNext", "()Z")
	_, err = hasNext.Invoke(it, nil)
	assert.ErrorIs(t, err, vm.ErrIllegalAccess)

	var got []any
	for call(t, itr, it, "hasNext", "()Z") == true {
		got = append(got, call(t, itr, it, "next", "()Ljava/lang/Object;"))
	}
	assert.Equal(t, []any{"a", int32(2), nil}, got)

	_, err = itr.FindMethod("next", "()Ljava/lang/Object;").Invoke(it, nil, vm.OverrideAccess())
	var thr *vm.Throwable
	require.True(t, errors.As(err, &thr))
	assert.Same(t, lib.NoSuchElement, thr.Class)
}

func TestIteratorSharedAcrossGoroutines(t *testing.T) {
	r, _, _ := install(t)
	c, err := r.ForName("java.util.ArrayList")
	require.NoError(t, err)
	list, err := c.PublicConstructors()[0].NewInstance(nil)
	require.NoError(t, err)
	const n = 200
	for i := range n {
		call(t, c, list, "add", "(Ljava/lang/Object;)Z", int32(i))
	}

	it := call(t, c, list, "iterator", "()Ljava/util/Iterator;")
	next := vm.ClassOf(it).FindMethod("next", "()Ljava/lang/Object;")
	var (
		mu   sync.Mutex
		seen []int32
	)
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for {
				v, err := next.Invoke(it, nil, vm.OverrideAccess())
				if err != nil {
					var thr *vm.Throwable
					if errors.As(err, &thr) {
						return nil
					}
					return err
				}
				mu.Lock()
				seen = append(seen, v.(int32))
				mu.Unlock()
			}
		})
	}
	require.NoError(t, g.Wait())

	slices.Sort(seen)
	want := make([]int32, n)
	for i := range want {
		want[i] = int32(i)
	}
	assert.Equal(t, want, seen, "each element is returned exactly once")
}

func TestHashMapClass(t *testing.T) {
	_, lib, _ := install(t)
	m, err := lib.HashMap.PublicConstructors()[0].NewInstance(nil)
	require.NoError(t, err)

	assert.Nil(t, call(t, lib.HashMap, m, "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", "k", int32(1)))
	assert.Equal(t, int32(1), call(t, lib.HashMap, m, "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", "k", int32(2)))
	assert.Equal(t, int32(2), call(t, lib.HashMap, m, "get", "(Ljava/lang/Object;)Ljava/lang/Object;", "k"))
	assert.Equal(t, true, call(t, lib.HashMap, m, "containsKey", "(Ljava/lang/Object;)Z", "k"))
	assert.Equal(t, int32(1), call(t, lib.HashMap, m, "size", "()I"))
}

func TestReflectArray(t *testing.T) {
	_, lib, _ := install(t)
	a := lib.ReflectArray

	arr := call(t, a, nil, "newInstance", "(Ljava/lang/Class;I)Ljava/lang/Object;", vm.StringClass, int32(2))
	require.IsType(t, &vm.Array{}, arr)
	assert.Equal(t, "[Ljava.lang.String;", vm.ClassOf(arr).Name())
	assert.Equal(t, int32(2), call(t, a, nil, "getLength", "(Ljava/lang/Object;)I", arr))

	call(t, a, nil, "set", "(Ljava/lang/Object;ILjava/lang/Object;)V", arr, int32(1), "x")
	assert.Equal(t, "x", call(t, a, nil, "get", "(Ljava/lang/Object;I)Ljava/lang/Object;", arr, int32(1)))

	_, err := a.FindMethod("getLength", "(Ljava/lang/Object;)I").Invoke(nil, []any{"not an array"})
	assert.ErrorIs(t, err, vm.ErrIllegalArgument)
	_, err = a.FindMethod("set", "(Ljava/lang/Object;ILjava/lang/Object;)V").Invoke(nil, []any{arr, int32(0), int32(1)})
	assert.ErrorIs(t, err, vm.ErrIllegalArgument)
}

func TestSystemOut(t *testing.T) {
	_, lib, out := install(t)
	ps, err := lib.System.Field("out").Get(nil)
	require.NoError(t, err)

	list, err := lib.ArrayList.PublicConstructors()[0].NewInstance(nil)
	require.NoError(t, err)
	call(t, lib.ArrayList, list, "add", "(Ljava/lang/Object;)Z", int32(7))

	call(t, lib.PrintStream, ps, "println", "(Ljava/lang/String;)V", "hello")
	call(t, lib.PrintStream, ps, "println", "(I)V", int32(42))
	call(t, lib.PrintStream, ps, "println", "(Z)V", true)
	call(t, lib.PrintStream, ps, "println", "(C)V", uint16('c'))
	call(t, lib.PrintStream, ps, "print", "(Ljava/lang/Object;)V", list)
	call(t, lib.PrintStream, ps, "println", "()V")
	assert.Equal(t, "hello\n42\ntrue\nc\n[7]\n", out.String())
}

// Hello.main prints through System.out from bytecode, the way javac compiles
// System.out.println("Hello, World!").
func TestBytecodeHelloWorld(t *testing.T) {
	b := cft.New("Hello", "java/lang/Object")
	out := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	msg := b.String("Hello, World!")
	printRef := b.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	b.Method(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V", 2, 1, cft.Code(
		[]byte{vm.OpGetstatic}, cft.U16(out),
		[]byte{vm.OpLdc, byte(msg)},
		[]byte{vm.OpInvokevirtual}, cft.U16(printRef),
		[]byte{vm.OpReturn},
	))

	var stdout bytes.Buffer
	r := vm.NewRegistry(vm.WithSource(vm.MapSource{"Hello": b.Bytes()}))
	_, err := Install(r, WithStdout(&stdout))
	require.NoError(t, err)

	hello, err := r.ForName("Hello")
	require.NoError(t, err)
	args, err := vm.NewArray(vm.StringClass, 0)
	require.NoError(t, err)
	_, err = hello.FindMethod("main", "([Ljava/lang/String;)V").Invoke(nil, []any{args})
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!\n", stdout.String())
}
