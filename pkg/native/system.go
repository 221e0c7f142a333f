package native

import (
	"fmt"
	"io"
	"sync"

	"github.com/daimatz/jbeans/pkg/vm"
)

// PrintStream represents a java.io.PrintStream.
type PrintStream struct {
	mu     sync.Mutex
	Writer io.Writer
}

// Println prints a value followed by a newline.
func (ps *PrintStream) Println(args ...any) {
	line := ""
	if len(args) > 0 {
		line = display(args[0])
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	fmt.Fprintln(ps.Writer, line)
}

// Print prints a value without a newline.
func (ps *PrintStream) Print(v any) {
	text := display(v)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	fmt.Fprint(ps.Writer, text)
}

// display renders v with its class's toString when it is an object.
func display(v any) string {
	obj, ok := v.(*vm.Object)
	if !ok {
		return vm.ToString(v)
	}
	m := obj.Class().FindMethod("toString", "()Ljava/lang/String;")
	if m == nil {
		return vm.ToString(v)
	}
	s, err := m.Invoke(obj, nil, vm.OverrideAccess())
	if err != nil {
		return vm.ToString(v)
	}
	return vm.ToString(s)
}

func defineSystem(lib *Library, stdout io.Writer) {
	c := vm.NewClass("java.io.PrintStream", nil)
	ps := state[*PrintStream]

	c.DefineMethod("println", vm.Public, vm.VoidType, nil, func(recv any, _ []any) (any, error) {
		ps(recv).Println()
		return nil, nil
	})
	for _, t := range []*vm.Class{vm.BooleanType, vm.CharType, vm.IntType, vm.LongType, vm.DoubleType, vm.StringClass, vm.ObjectClass} {
		c.DefineMethod("println", vm.Public, vm.VoidType, []*vm.Class{t}, func(recv any, args []any) (any, error) {
			ps(recv).Println(args[0])
			return nil, nil
		})
		c.DefineMethod("print", vm.Public, vm.VoidType, []*vm.Class{t}, func(recv any, args []any) (any, error) {
			ps(recv).Print(args[0])
			return nil, nil
		})
	}
	lib.PrintStream = c

	out := vm.NewObject(c)
	out.Native = &PrintStream{Writer: stdout}

	sys := vm.NewClass("java.lang.System", nil)
	sys.DefineField("out", vm.Public|vm.Static, c, out)
	sys.DefineMethod("lineSeparator", vm.Public|vm.Static, vm.StringClass, nil, func(any, []any) (any, error) {
		return "\n", nil
	})
	lib.System = sys
}
