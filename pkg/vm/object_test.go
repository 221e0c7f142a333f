package vm

import (
	"errors"
	"testing"
)

func TestNewArrayZeroValues(t *testing.T) {
	tests := []struct {
		component *Class
		want      any
	}{
		{IntType, int32(0)},
		{BooleanType, false},
		{CharType, uint16(0)},
		{DoubleType, float64(0)},
		{StringClass, nil},
	}
	for _, tt := range tests {
		a, err := NewArray(tt.component, 2)
		if err != nil {
			t.Fatalf("NewArray(%s): %v", tt.component.Name(), err)
		}
		for i := 0; i < a.Len(); i++ {
			if got, _ := a.Get(i); got != tt.want {
				t.Errorf("%s[%d] = %v, want %v", tt.component.Name(), i, got, tt.want)
			}
		}
	}

	if _, err := NewArray(IntType, -1); !errors.Is(err, ErrNegativeArraySize) {
		t.Errorf("negative size: err = %v", err)
	}
}

func TestArraySetChecks(t *testing.T) {
	ints, _ := NewArray(IntType, 3)
	if err := ints.Set(0, int32(10)); err != nil {
		t.Fatal(err)
	}
	if err := ints.Set(3, int32(1)); !errors.Is(err, ErrIndexOutOfBounds) {
		t.Errorf("index 3: err = %v", err)
	}
	if err := ints.Set(1, nil); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("null into int[]: err = %v", err)
	}
	if err := ints.Set(1, int64(1)); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("Long into int[]: err = %v", err)
	}
	if _, err := ints.Get(-1); !errors.Is(err, ErrIndexOutOfBounds) {
		t.Errorf("index -1: err = %v", err)
	}

	nums, err := ArrayOf(NumberClass, int32(1), 2.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if nums.Class().Name() != "[Ljava.lang.Number;" {
		t.Errorf("class = %s", nums.Class().Name())
	}
	if _, err := ArrayOf(NumberClass, "x"); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("String into Number[]: err = %v", err)
	}
}

func TestObjectFields(t *testing.T) {
	base := NewClass("demo.Base", nil)
	base.DefineField("id", Public, LongType, nil)
	point := NewClass("demo.Point", base)
	point.DefineField("x", Public, IntType, nil)
	point.DefineField("label", Public, StringClass, nil)
	point.DefineField("ORIGIN", Public|Static, StringClass, "0,0")

	p := NewObject(point)
	if got := p.Get("x"); got != int32(0) {
		t.Errorf("x = %v, want 0", got)
	}
	if got := p.Get("id"); got != int64(0) {
		t.Errorf("inherited id = %v, want 0", got)
	}
	if got := p.Get("label"); got != nil {
		t.Errorf("label = %v, want null", got)
	}

	f := point.Field("x")
	if err := f.Set(p, int32(4)); err != nil {
		t.Fatal(err)
	}
	if err := f.Set(p, "4"); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("String into int field: err = %v", err)
	}
	if got, _ := f.Get(p); got != int32(4) {
		t.Errorf("x = %v, want 4", got)
	}
	if got, _ := point.Field("ORIGIN").Get(nil); got != "0,0" {
		t.Errorf("ORIGIN = %v", got)
	}
}

func TestClassOfAndToString(t *testing.T) {
	tests := []struct {
		v     any
		class *Class
		str   string
	}{
		{int32(5), IntegerClass, "5"},
		{int64(5), LongClass, "5"},
		{uint16('a'), CharacterClass, "a"},
		{true, BooleanClass, "true"},
		{2.5, DoubleClass, "2.5"},
		{"s", StringClass, "s"},
		{StringClass, ClassClass, "class java.lang.String"},
		{nil, nil, "null"},
	}
	for _, tt := range tests {
		if got := ClassOf(tt.v); got != tt.class {
			t.Errorf("ClassOf(%v) = %v, want %v", tt.v, got, tt.class)
		}
		if got := ToString(tt.v); got != tt.str {
			t.Errorf("ToString(%v) = %q, want %q", tt.v, got, tt.str)
		}
	}
}

func TestFrameStackForms(t *testing.T) {
	frame := NewFrame(1, 4, nil, nil)
	frame.Push(toStack(true))
	frame.Push(toStack(uint16('z')))
	if got := fromStack(frame.Pop(), CharType); got != uint16('z') {
		t.Errorf("char round trip = %v", got)
	}
	if got := fromStack(frame.Pop(), BooleanType); got != true {
		t.Errorf("boolean round trip = %v", got)
	}
	if frame.SP != 0 {
		t.Errorf("SP = %d, want 0", frame.SP)
	}
}
