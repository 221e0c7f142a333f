// Package native provides library classes implemented in Go: collections,
// reflective array access and console output.
package native

import (
	"fmt"
	"io"
	"os"

	"github.com/daimatz/jbeans/pkg/vm"
)

// Library holds the classes installed into a registry.
type Library struct {
	Iterable      *vm.Class
	Iterator      *vm.Class
	ArrayList     *vm.Class
	ArrayListItr  *vm.Class
	HashMap       *vm.Class
	ReflectArray  *vm.Class
	PrintStream   *vm.Class
	System        *vm.Class
	NoSuchElement *vm.Class
}

// Option configures Install.
type Option func(*options)

type options struct {
	stdout io.Writer
}

// WithStdout sets the writer behind System.out. The default is os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// Install defines the library classes in r.
func Install(r *vm.Registry, opts ...Option) (*Library, error) {
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	lib := &Library{}
	lib.NoSuchElement = vm.NewClass("java.util.NoSuchElementException", vm.RuntimeExceptionClass)
	lib.NoSuchElement.DefineInitializer(vm.Public, nil, func(*vm.Object, []any) error { return nil })
	defineIterators(lib)
	defineArrayList(lib)
	defineHashMap(lib)
	defineReflectArray(lib)
	defineSystem(lib, o.stdout)

	if err := r.Define(
		lib.NoSuchElement, lib.Iterable, lib.Iterator, lib.ArrayList, lib.ArrayListItr,
		lib.HashMap, lib.ReflectArray, lib.PrintStream, lib.System,
	); err != nil {
		return nil, fmt.Errorf("installing library classes: %w", err)
	}
	return lib, nil
}

// state returns the Go-side state of a library object.
func state[T any](recv any) T {
	return recv.(*vm.Object).Native.(T)
}
