package vm

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is against a *Throwable of the corresponding
// class or any subclass.
var (
	ErrClassNotFound     = errors.New("class not found")
	ErrIllegalAccess     = errors.New("illegal access")
	ErrIllegalArgument   = errors.New("illegal argument")
	ErrIndexOutOfBounds  = errors.New("index out of bounds")
	ErrNullPointer       = errors.New("null pointer")
	ErrClassCast         = errors.New("class cast")
	ErrNegativeArraySize = errors.New("negative array size")
	ErrArithmetic        = errors.New("arithmetic")
)

// Throwable is a Java exception or error travelling as a Go error.
type Throwable struct {
	Class   *Class
	Message string
	Cause   error
	// Object is the thrown instance when it was raised by bytecode.
	Object *Object
}

// Throw creates a Throwable of class c with a formatted message.
func Throw(c *Class, format string, args ...any) *Throwable {
	return &Throwable{Class: c, Message: fmt.Sprintf(format, args...)}
}

func (t *Throwable) Error() string {
	if t.Message == "" {
		return t.Class.Name()
	}
	return t.Class.Name() + ": " + t.Message
}

func (t *Throwable) Unwrap() error { return t.Cause }

// Is maps the package sentinels onto the Java exception hierarchy.
func (t *Throwable) Is(target error) bool {
	c, ok := sentinels[target]
	return ok && c.IsAssignableFrom(t.Class)
}

// Fatal reports whether t is a java.lang.Error rather than an exception.
func (t *Throwable) Fatal() bool {
	return ErrorClass.IsAssignableFrom(t.Class)
}

// sentinels is filled in once the bootstrap classes exist.
var sentinels map[error]*Class

// IsFatal reports whether err is, or wraps, a java.lang.Error.
func IsFatal(err error) bool {
	var t *Throwable
	return errors.As(err, &t) && t.Fatal()
}

// InvocationTargetError wraps a failure raised by the body of an invoked
// method or constructor.
type InvocationTargetError struct {
	Cause error
}

func (e *InvocationTargetError) Error() string {
	return "invocation target: " + e.Cause.Error()
}

func (e *InvocationTargetError) Unwrap() error { return e.Cause }

// recoverInto turns a panic in Go-backed member code into a RuntimeException.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		if t, ok := r.(*Throwable); ok {
			*err = t
			return
		}
		*err = Throw(RuntimeExceptionClass, "panic: %v", r)
	}
}
