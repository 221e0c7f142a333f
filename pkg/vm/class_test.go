package vm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIsAssignableFrom(t *testing.T) {
	runnable := NewInterface("demo.Runnable")
	task := NewInterface("demo.Task", runnable)
	base := NewClass("demo.Base", nil, task)
	derived := NewClass("demo.Derived", base)

	tests := []struct {
		name     string
		to, from *Class
		want     bool
	}{
		{"identity", StringClass, StringClass, true},
		{"superclass", NumberClass, IntegerClass, true},
		{"subclass", IntegerClass, NumberClass, false},
		{"object", ObjectClass, derived, true},
		{"interface of superclass", runnable, derived, true},
		{"direct interface", task, base, true},
		{"unrelated", StringClass, IntegerClass, false},
		{"primitive to wrapper", IntegerClass, IntType, false},
		{"wrapper to primitive", IntType, IntegerClass, false},
		{"array covariance", NumberClass.ArrayType(), IntegerClass.ArrayType(), true},
		{"primitive arrays", LongType.ArrayType(), IntType.ArrayType(), false},
		{"array to object", ObjectClass, IntType.ArrayType(), true},
		{"array to cloneable", CloneableClass, StringClass.ArrayType(), true},
		{"array to object array", ObjectClass.ArrayType(), StringClass.ArrayType().ArrayType(), true},
		{"interface to object", ObjectClass, runnable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.to.IsAssignableFrom(tt.from); got != tt.want {
				t.Errorf("%s.IsAssignableFrom(%s) = %v, want %v", tt.to.Name(), tt.from.Name(), got, tt.want)
			}
		})
	}
}

func TestIsInstance(t *testing.T) {
	if !IntType.IsInstance(int32(1)) {
		t.Error("int should accept an Integer value")
	}
	if IntType.IsInstance(int64(1)) {
		t.Error("int should not accept a Long value")
	}
	if ObjectClass.IsInstance(nil) {
		t.Error("null is an instance of nothing")
	}
	if !CharSequenceClass.IsInstance("x") {
		t.Error("String implements CharSequence")
	}
}

func TestNames(t *testing.T) {
	inner := NewClass("java.util.ArrayList$Itr", nil)
	tests := []struct {
		c          *Class
		name, simp string
	}{
		{IntType, "int", "int"},
		{StringClass, "java.lang.String", "String"},
		{IntType.ArrayType(), "[I", "int[]"},
		{StringClass.ArrayType().ArrayType(), "[[Ljava.lang.String;", "String[][]"},
		{inner, "java.util.ArrayList$Itr", "Itr"},
	}
	for _, tt := range tests {
		if got := tt.c.Name(); got != tt.name {
			t.Errorf("Name() = %q, want %q", got, tt.name)
		}
		if got := tt.c.SimpleName(); got != tt.simp {
			t.Errorf("SimpleName() = %q, want %q", got, tt.simp)
		}
	}
	if IntType.ArrayType() != IntType.ArrayType() {
		t.Error("ArrayType must return the same class every time")
	}
}

func signatures(ms []*Method) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.DeclaringClass().SimpleName()+"."+m.Name+m.Descriptor())
	}
	return out
}

func TestPublicMethods(t *testing.T) {
	named := NewInterface("demo.Named")
	named.DefineMethod("name", Public|Abstract, StringClass, nil, nil)
	labeled := NewInterface("demo.Labeled")
	labeled.DefineMethod("name", Public|Abstract, StringClass, nil, nil)

	base := NewClass("demo.Base", nil)
	base.DefineMethod("run", Public, VoidType, nil, func(any, []any) (any, error) { return nil, nil })
	base.DefineMethod("secret", Private, VoidType, nil, func(any, []any) (any, error) { return nil, nil })
	derived := NewClass("demo.Derived", base, named, labeled)
	derived.DefineMethod("run", Public, VoidType, nil, func(any, []any) (any, error) { return nil, nil })

	var got []string
	for _, s := range signatures(derived.PublicMethods()) {
		if s[:5] != "Objec" {
			got = append(got, s)
		}
	}
	want := []string{
		"Derived.run()V",
		"Named.name()Ljava/lang/String;",
		"Labeled.name()Ljava/lang/String;",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PublicMethods mismatch (-want +got):\n%s", diff)
	}

	// An implementing class method hides the interface method.
	impl := NewClass("demo.Impl", nil, named)
	impl.DefineMethod("name", Public, StringClass, nil, func(any, []any) (any, error) { return "x", nil })
	for _, m := range impl.PublicMethods() {
		if m.Name == "name" && m.DeclaringClass() != impl {
			t.Errorf("interface method %s not hidden by the implementation", m)
		}
	}
}

func TestInvokeChecks(t *testing.T) {
	hidden := NewClass("demo.Hidden", nil)
	hidden.Modifiers = 0
	calls := 0
	m := hidden.DefineMethod("ping", Public, IntType, []*Class{IntType}, func(_ any, args []any) (any, error) {
		calls++
		return args[0], nil
	})
	recv := NewObject(hidden)

	if _, err := m.Invoke(recv, []any{int32(1)}); !errors.Is(err, ErrIllegalAccess) {
		t.Errorf("non-public class: err = %v, want IllegalAccessException", err)
	}
	got, err := m.Invoke(recv, []any{int32(7)}, OverrideAccess())
	if err != nil || got != int32(7) {
		t.Fatalf("override: got %v, %v", got, err)
	}
	if _, err := m.Invoke(recv, []any{"x"}, OverrideAccess()); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("bad argument: err = %v", err)
	}
	if _, err := m.Invoke(recv, []any{nil}, OverrideAccess()); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("null into int: err = %v", err)
	}
	if _, err := m.Invoke(nil, []any{int32(1)}, OverrideAccess()); !errors.Is(err, ErrNullPointer) {
		t.Errorf("null receiver: err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestInvokeWrapsBodyFailures(t *testing.T) {
	c := NewClass("demo.Failing", nil)
	fail := c.DefineMethod("fail", Public|Static, VoidType, nil, func(any, []any) (any, error) {
		return nil, Throw(IllegalStateExceptionClass, "nope")
	})
	panics := c.DefineMethod("panics", Public|Static, VoidType, nil, func(any, []any) (any, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	})

	_, err := fail.Invoke(nil, nil)
	var ite *InvocationTargetError
	if !errors.As(err, &ite) {
		t.Fatalf("err = %T, want *InvocationTargetError", err)
	}
	var thr *Throwable
	if !errors.As(ite.Cause, &thr) || thr.Class != IllegalStateExceptionClass {
		t.Errorf("cause = %v", ite.Cause)
	}

	_, err = panics.Invoke(nil, nil)
	if !errors.As(err, &thr) || thr.Class != RuntimeExceptionClass {
		t.Errorf("panic should surface as RuntimeException, got %v", err)
	}
	if IsFatal(err) {
		t.Error("RuntimeException is not fatal")
	}
}

func TestClassClassMethods(t *testing.T) {
	getName := ClassClass.FindMethod("getName", "()Ljava/lang/String;")
	got, err := getName.Invoke(StringClass.ArrayType(), nil)
	if err != nil || got != "[Ljava.lang.String;" {
		t.Errorf("getName = %v, %v", got, err)
	}
	newInstance := ClassClass.FindMethod("newInstance", "()Ljava/lang/Object;")
	got, err = newInstance.Invoke(StringClass, nil)
	if err != nil || got != "" {
		t.Errorf("String.class.newInstance() = %v, %v", got, err)
	}
}
