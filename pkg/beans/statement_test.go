package beans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jbeans/pkg/vm"
)

func TestStatementArguments(t *testing.T) {
	s := NewStatement("x", "length", nil)
	assert.NotNil(t, s.Arguments())
	assert.Empty(t, s.Arguments())

	args := []any{int32(1), "a"}
	s = NewStatement("x", "charAt", args)
	args[0] = int32(9)
	assert.Equal(t, []any{int32(1), "a"}, s.Arguments(), "constructor copies the slice")

	got := s.Arguments()
	got[1] = "b"
	assert.Equal(t, []any{int32(1), "a"}, s.Arguments(), "Arguments returns a copy")
	assert.Equal(t, "x", s.Target())
	assert.Equal(t, "charAt", s.MethodName())
}

func TestStatementString(t *testing.T) {
	foo := vm.NewClass("demo.Foo", nil)
	inner := vm.NewClass("demo.Outer$Inner", nil)
	ints, err := vm.NewArray(vm.IntType, 2)
	require.NoError(t, err)
	grid, err := vm.NewArray(vm.StringClass.ArrayType(), 1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target any
		method string
		args   []any
		want   string
	}{
		{"instance target", vm.NewObject(foo), "bar", []any{int32(1), "x", nil}, `Foo.bar(Integer, "x", null);`},
		{"class target", foo, "new", nil, "Class.new();"},
		{"null target", nil, "run", nil, "null.run();"},
		{"string target", "abc", "length", nil, `"".length();`},
		{"array arguments", vm.NewObject(foo), "fill", []any{ints, grid}, "Foo.fill(intArray, StringArrayArray);"},
		{"array target", ints, "get", []any{int32(0)}, "intArray.get(Integer);"},
		{"nested class", vm.NewObject(inner), "go", []any{int64(1), 2.5, true}, "Outer$Inner.go(Long, Double, Boolean);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewStatement(tt.target, tt.method, tt.args).String())
		})
	}
}

func TestExpressionBinding(t *testing.T) {
	foo := vm.NewObject(vm.NewClass("demo.Foo", nil))

	e := NewExpression(foo, "size", nil)
	assert.False(t, e.Bound())
	assert.Equal(t, "<unbound>=Foo.size();", e.String())

	require.NoError(t, e.SetValue(int32(3)))
	assert.True(t, e.Bound())
	assert.Equal(t, "Integer=Foo.size();", e.String())
	assert.ErrorIs(t, e.SetValue(int32(4)), ErrAlreadyBound)

	pre := NewExpressionWithValue(nil, foo, "find", []any{"k"})
	assert.True(t, pre.Bound())
	assert.Equal(t, `null=Foo.find("k");`, pre.String())
	assert.ErrorIs(t, pre.SetValue("v"), ErrAlreadyBound)
}
