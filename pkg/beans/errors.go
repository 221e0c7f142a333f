package beans

import (
	"errors"

	"github.com/daimatz/jbeans/pkg/vm"
)

var (
	// ErrNoSuchMethod means no method or constructor accepts the arguments.
	ErrNoSuchMethod = errors.New("no such method")
	// ErrAmbiguousMethod means several candidates fit equally well.
	ErrAmbiguousMethod = errors.New("ambiguous method")
	// ErrNullTarget means the statement has no receiver.
	ErrNullTarget = errors.New("null target")
	// ErrAlreadyBound means an expression value was bound twice.
	ErrAlreadyBound = errors.New("expression value already bound")

	// The remaining errors share identity with the runtime exceptions of the
	// same kind, so a failure raised by invoked code matches them too.
	ErrIllegalArgument  = vm.ErrIllegalArgument
	ErrTypeMismatch     = vm.ErrClassCast
	ErrIndexOutOfBounds = vm.ErrIndexOutOfBounds
)
