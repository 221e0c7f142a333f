// Package beans evaluates deferred invocations, target.method(args...),
// against the runtime in pkg/vm, choosing among overloads by the runtime
// types of the arguments.
package beans

import (
	"strings"
	"sync"

	"github.com/daimatz/jbeans/pkg/vm"
)

// Statement is a single deferred invocation. The target and method name
// never change after construction.
type Statement struct {
	target     any
	methodName string
	args       []any
}

// NewStatement creates a statement. A nil args slice is treated as empty;
// the slice is copied.
func NewStatement(target any, methodName string, args []any) *Statement {
	return &Statement{
		target:     target,
		methodName: methodName,
		args:       append([]any{}, args...),
	}
}

// Target returns the receiver, or the class for static and constructor calls.
func (s *Statement) Target() any { return s.target }

// MethodName returns the method name or one of the reserved names "new",
// "newInstance" and "newArray".
func (s *Statement) MethodName() string { return s.methodName }

// Arguments returns a copy of the arguments.
func (s *Statement) Arguments() []any { return append([]any{}, s.args...) }

// String renders the statement as Target.method(Arg, "string", null);
func (s *Statement) String() string {
	var sb strings.Builder
	sb.WriteString(renderTarget(s.target))
	sb.WriteByte('.')
	sb.WriteString(s.methodName)
	sb.WriteByte('(')
	for i, a := range s.args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(renderArg(a))
	}
	sb.WriteString(");")
	return sb.String()
}

// Expression is a statement with a result. Once evaluated the value is
// bound for good and later evaluations return it without invoking again.
type Expression struct {
	Statement

	mu    sync.Mutex
	value any
	bound bool
}

// NewExpression creates an unbound expression.
func NewExpression(target any, methodName string, args []any) *Expression {
	return &Expression{Statement: *NewStatement(target, methodName, args)}
}

// NewExpressionWithValue creates an expression whose value is already bound.
func NewExpressionWithValue(value, target any, methodName string, args []any) *Expression {
	e := NewExpression(target, methodName, args)
	e.value, e.bound = value, true
	return e
}

// Bound reports whether the value has been bound.
func (e *Expression) Bound() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bound
}

// SetValue binds v. Rebinding fails with ErrAlreadyBound.
func (e *Expression) SetValue(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bound {
		return ErrAlreadyBound
	}
	e.value, e.bound = v, true
	return nil
}

// String renders the bound value's type, then the statement:
// <unbound>=Foo.bar(); or Integer=Foo.size();
func (e *Expression) String() string {
	e.mu.Lock()
	prefix := "<unbound>"
	if e.bound {
		prefix = renderTarget(e.value)
	}
	e.mu.Unlock()
	return prefix + "=" + e.Statement.String()
}

func renderTarget(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return `""`
	default:
		return typeID(vm.ClassOf(x))
	}
}

func renderArg(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return `"` + x + `"`
	default:
		return typeID(vm.ClassOf(x))
	}
}

// typeID is the unqualified class name with one "Array" per dimension:
// intArray, StringArrayArray.
func typeID(c *vm.Class) string {
	var suffix strings.Builder
	for c.IsArray() {
		suffix.WriteString("Array")
		c = c.ComponentType()
	}
	name := c.Name()
	return name[strings.LastIndexByte(name, '.')+1:] + suffix.String()
}
