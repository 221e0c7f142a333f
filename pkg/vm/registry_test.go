package vm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jbeans/pkg/classfile"
	cft "github.com/daimatz/jbeans/pkg/classfile/classfiletest"
)

const (
	accPublic = classfile.AccPublic
	accStatic = classfile.AccStatic
)

func u16(v uint16) []byte { return cft.U16(v) }

// calcClass builds demo.Calc:
//
//	public static int add(int a, int b) { return a + b; }
//	public static int safeDiv(int a, int b) { try { return a / b; } catch (ArithmeticException e) { return -1; } }
//	public static void boom() { throw new IllegalStateException("bad"); }
//	public static void rec() { rec(); }
//	public static int len(String s) { return s.length(); }
func calcClass() []byte {
	b := cft.New("demo/Calc", "java/lang/Object")
	b.Method(accPublic|accStatic, "add", "(II)I", 2, 2,
		[]byte{OpIload0, OpIload0 + 1, OpIadd, OpIreturn})
	b.Method(accPublic|accStatic, "safeDiv", "(II)I", 2, 3,
		[]byte{OpIload0, OpIload0 + 1, OpIdiv, OpIreturn, OpAstore0 + 2, OpIconstM1, OpIreturn}).
		Catch(0, 4, 4, "java/lang/ArithmeticException")
	ise := b.Class("java/lang/IllegalStateException")
	msg := b.String("bad")
	ctor := b.Methodref("java/lang/IllegalStateException", "<init>", "(Ljava/lang/String;)V")
	b.Method(accPublic|accStatic, "boom", "()V", 3, 0, cft.Code(
		[]byte{OpNew}, u16(ise),
		[]byte{OpDup, OpLdc, byte(msg)},
		[]byte{OpInvokespecial}, u16(ctor),
		[]byte{OpAthrow},
	))
	rec := b.Methodref("demo/Calc", "rec", "()V")
	b.Method(accPublic|accStatic, "rec", "()V", 0, 0, cft.Code([]byte{OpInvokestatic}, u16(rec), []byte{OpReturn}))
	length := b.Methodref("java/lang/String", "length", "()I")
	b.Method(accPublic|accStatic, "len", "(Ljava/lang/String;)I", 1, 1,
		cft.Code([]byte{OpAload0, OpInvokevirtual}, u16(length), []byte{OpIreturn}))
	return b.Bytes()
}

// counterClass builds demo.Counter:
//
//	public class Counter {
//	    public int count;
//	    public static int created;
//	    public Counter() { created++; }
//	    public int inc() { return ++count; }
//	    public void take(Missing m) {}
//	}
func counterClass() []byte {
	b := cft.New("demo/Counter", "java/lang/Object")
	b.Field(accPublic, "count", "I")
	b.Field(accPublic|accStatic, "created", "I")
	count := b.Fieldref("demo/Counter", "count", "I")
	created := b.Fieldref("demo/Counter", "created", "I")
	super := b.Methodref("java/lang/Object", "<init>", "()V")
	b.Method(accPublic, "<init>", "()V", 2, 1, cft.Code(
		[]byte{OpAload0, OpInvokespecial}, u16(super),
		[]byte{OpGetstatic}, u16(created),
		[]byte{OpIconst0 + 1, OpIadd, OpPutstatic}, u16(created),
		[]byte{OpReturn},
	))
	b.Method(accPublic, "inc", "()I", 3, 1, cft.Code(
		[]byte{OpAload0, OpDup, OpGetfield}, u16(count),
		[]byte{OpIconst0 + 1, OpIadd, OpPutfield}, u16(count),
		[]byte{OpAload0, OpGetfield}, u16(count),
		[]byte{OpIreturn},
	))
	b.Method(accPublic, "take", "(Ldemo/Missing;)V", 0, 2, []byte{OpReturn})
	return b.Bytes()
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(WithSource(MapSource{
		"demo/Calc":    calcClass(),
		"demo/Counter": counterClass(),
	}))
}

func TestRegistryBootstrap(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"java.lang.Object", "java.lang.String", "java.lang.Integer", "java.lang.Throwable", "java.lang.IllegalStateException"} {
		c, err := r.ForName(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}

	_, err := r.ForName("int")
	assert.True(t, errors.Is(err, ErrClassNotFound), "primitive names are not classes: %v", err)

	p, err := r.TypeByName("int")
	require.NoError(t, err)
	assert.Same(t, IntType, p)
}

func TestRegistryArrayNames(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		want *Class
	}{
		{"[I", IntType.ArrayType()},
		{"[[I", IntType.ArrayType().ArrayType()},
		{"[Ljava.lang.String;", StringClass.ArrayType()},
	}
	for _, tt := range tests {
		got, err := r.ForName(tt.name)
		require.NoError(t, err, tt.name)
		assert.Same(t, tt.want, got, tt.name)
		assert.Equal(t, tt.name, got.Name())
	}

	_, err := r.ForName("[Ljava.lang.Nope;")
	assert.ErrorIs(t, err, ErrClassNotFound)
	_, err = r.ForName("[V")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestRegistryDefineAndParent(t *testing.T) {
	parent := NewRegistry()
	foo := NewClass("demo.Foo", nil)
	require.NoError(t, parent.Define(foo))
	assert.Error(t, parent.Define(NewClass("demo.Foo", nil)), "duplicate name")

	child := NewRegistry(WithParent(parent))
	got, err := child.ForName("demo.Foo")
	require.NoError(t, err)
	assert.Same(t, foo, got)
	got, err = child.ForName("java.lang.String")
	require.NoError(t, err)
	assert.Same(t, StringClass, got)
	assert.Same(t, parent, child.Parent())
}

func TestRegistryUnloadHooks(t *testing.T) {
	r := NewRegistry()
	foo := NewClass("demo.Foo", nil)
	require.NoError(t, r.Define(foo))

	bar := NewClass("demo.Bar", nil)
	require.NoError(t, r.Define(bar))

	var unloaded, removed []*Class
	r.OnUnload(func(c *Class) { unloaded = append(unloaded, c) })
	remove := r.OnUnload(func(c *Class) { removed = append(removed, c) })

	assert.True(t, r.Unload("demo.Foo"))
	assert.False(t, r.Unload("demo.Foo"))
	assert.Equal(t, []*Class{foo}, unloaded)
	assert.Equal(t, []*Class{foo}, removed)
	_, err := r.ForName("demo.Foo")
	assert.ErrorIs(t, err, ErrClassNotFound)

	remove()
	remove()
	assert.True(t, r.Unload("demo.Bar"))
	assert.Equal(t, []*Class{foo, bar}, unloaded)
	assert.Equal(t, []*Class{foo}, removed, "removed hooks no longer run")
}

func TestLoadedStaticMethods(t *testing.T) {
	r := newTestRegistry(t)
	calc, err := r.ForName("demo.Calc")
	require.NoError(t, err)
	assert.Same(t, ObjectClass, calc.Superclass())
	assert.True(t, calc.IsPublic())

	add := calc.FindMethod("add", "(II)I")
	require.NotNil(t, add)
	assert.True(t, add.IsStatic())
	assert.Equal(t, []*Class{IntType, IntType}, add.Params)

	got, err := add.Invoke(nil, []any{int32(2), int32(3)})
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)

	safeDiv := calc.FindMethod("safeDiv", "(II)I")
	got, err = safeDiv.Invoke(nil, []any{int32(6), int32(3)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), got)
	got, err = safeDiv.Invoke(nil, []any{int32(6), int32(0)})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got, "ArithmeticException is caught by the handler")

	length := calc.FindMethod("len", "(Ljava/lang/String;)I")
	got, err = length.Invoke(nil, []any{"héllo"})
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)
}

func TestLoadedThrow(t *testing.T) {
	r := newTestRegistry(t)
	calc, err := r.ForName("demo.Calc")
	require.NoError(t, err)

	_, err = calc.FindMethod("boom", "()V").Invoke(nil, nil)
	var ite *InvocationTargetError
	require.ErrorAs(t, err, &ite)
	var thr *Throwable
	require.ErrorAs(t, ite.Cause, &thr)
	assert.Same(t, IllegalStateExceptionClass, thr.Class)
	assert.Equal(t, "bad", thr.Message)
	assert.False(t, thr.Fatal())
}

func TestLoadedRecursionOverflows(t *testing.T) {
	r := newTestRegistry(t)
	calc, err := r.ForName("demo.Calc")
	require.NoError(t, err)

	_, err = calc.FindMethod("rec", "()V").Invoke(nil, nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err), "StackOverflowError is fatal: %v", err)
}

func TestLoadedInstanceClass(t *testing.T) {
	r := newTestRegistry(t)
	counter, err := r.ForName("demo.Counter")
	require.NoError(t, err)

	ctors := counter.PublicConstructors()
	require.Len(t, ctors, 1)
	v, err := ctors[0].NewInstance(nil)
	require.NoError(t, err)
	obj, ok := v.(*Object)
	require.True(t, ok)
	assert.Same(t, counter, obj.Class())

	inc := counter.FindMethod("inc", "()I")
	for want := int32(1); want <= 3; want++ {
		got, err := inc.Invoke(obj, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	created, err := counter.Field("created").Get(nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), created)

	// demo.Missing is not in the source and becomes an opaque Object subclass.
	take := counter.FindMethod("take", "(Ldemo/Missing;)V")
	require.NotNil(t, take)
	assert.Equal(t, "demo.Missing", take.Params[0].Name())
	assert.Same(t, ObjectClass, take.Params[0].Superclass())
	_, err = take.Invoke(obj, []any{nil})
	assert.NoError(t, err)
}

func TestLoadedClassNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.ForName("demo.Nope")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "demo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo", "Calc.class"), calcClass(), 0o644))

	src := ChainSource{MapSource{}, NewDirSource(dir)}
	cf, err := src.LoadClass("demo/Calc")
	require.NoError(t, err)
	name, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "demo/Calc", name)

	_, err = src.LoadClass("demo/Nope")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestJmodSourceMissingFile(t *testing.T) {
	src := NewJmodSource(filepath.Join(t.TempDir(), "java.base.jmod"))
	_, err := src.LoadClass("java/lang/Object")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClassNotFound, "an unreadable jmod is not a missing class")
}
