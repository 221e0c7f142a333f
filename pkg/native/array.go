package native

import "github.com/daimatz/jbeans/pkg/vm"

func asArray(v any) (*vm.Array, error) {
	switch a := v.(type) {
	case *vm.Array:
		return a, nil
	case nil:
		return nil, vm.Throw(vm.NullPointerExceptionClass, "array is null")
	default:
		return nil, vm.Throw(vm.IllegalArgumentExceptionClass, "Argument is not an array")
	}
}

// defineReflectArray defines java.lang.reflect.Array, the static factory and
// accessor for arrays of any component type.
func defineReflectArray(lib *Library) {
	c := vm.NewClass("java.lang.reflect.Array", nil)
	static := vm.Public | vm.Static

	c.DefineMethod("newInstance", static, vm.ObjectClass, []*vm.Class{vm.ClassClass, vm.IntType}, func(_ any, args []any) (any, error) {
		component, _ := args[0].(*vm.Class)
		if component == nil {
			return nil, vm.Throw(vm.NullPointerExceptionClass, "component type is null")
		}
		return vm.NewArray(component, int(args[1].(int32)))
	})
	c.DefineMethod("getLength", static, vm.IntType, []*vm.Class{vm.ObjectClass}, func(_ any, args []any) (any, error) {
		a, err := asArray(args[0])
		if err != nil {
			return nil, err
		}
		return int32(a.Len()), nil
	})
	c.DefineMethod("get", static, vm.ObjectClass, []*vm.Class{vm.ObjectClass, vm.IntType}, func(_ any, args []any) (any, error) {
		a, err := asArray(args[0])
		if err != nil {
			return nil, err
		}
		return a.Get(int(args[1].(int32)))
	})
	c.DefineMethod("set", static, vm.VoidType, []*vm.Class{vm.ObjectClass, vm.IntType, vm.ObjectClass}, func(_ any, args []any) (any, error) {
		a, err := asArray(args[0])
		if err != nil {
			return nil, err
		}
		return nil, a.Set(int(args[1].(int32)), args[2])
	})
	lib.ReflectArray = c
}
