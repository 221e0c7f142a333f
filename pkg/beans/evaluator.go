package beans

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/jbeans/pkg/vm"
)

// Evaluator evaluates statements and expressions. It is safe for concurrent
// use; the only state shared between evaluations is the method cache.
type Evaluator struct {
	registry       *vm.Registry
	cache          *MethodCache
	logger         *zap.Logger
	forceAccess    bool
	iteratorParity bool

	// detach removes the cache invalidation hook from registry.
	detach func()
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRegistry sets the registry used for forName lookups. Classes unloaded
// from it are dropped from the method cache.
func WithRegistry(r *vm.Registry) Option {
	return func(ev *Evaluator) { ev.registry = r }
}

// WithLogger sets the logger. Dispatch decisions are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(ev *Evaluator) { ev.logger = l }
}

// WithCache shares a method cache between evaluators.
func WithCache(c *MethodCache) Option {
	return func(ev *Evaluator) { ev.cache = c }
}

// WithForceAccess controls whether general instance calls may reach public
// methods of non-public classes. It is on by default; when off such calls
// fail with vm.ErrIllegalAccess.
func WithForceAccess(on bool) Option {
	return func(ev *Evaluator) { ev.forceAccess = on }
}

// WithIteratorParity makes failures of an iterator call evaluate to null
// instead of being returned.
func WithIteratorParity(on bool) Option {
	return func(ev *Evaluator) { ev.iteratorParity = on }
}

// New creates an Evaluator. It hooks its cache to the registry's unloads;
// call Close when the evaluator is discarded but the registry lives on.
func New(opts ...Option) *Evaluator {
	ev := &Evaluator{forceAccess: true}
	for _, o := range opts {
		o(ev)
	}
	if ev.logger == nil {
		ev.logger = zap.NewNop()
	}
	if ev.cache == nil {
		ev.cache = NewMethodCache()
	}
	if ev.registry == nil {
		ev.registry = vm.NewRegistry(vm.WithLogger(ev.logger))
	}
	ev.detach = ev.registry.OnUnload(ev.cache.Invalidate)
	return ev
}

// Close detaches the evaluator from its registry. The evaluator stays usable
// but its cache no longer follows unloads.
func (ev *Evaluator) Close() {
	ev.detach()
}

// Registry returns the registry used for class lookups.
func (ev *Evaluator) Registry() *vm.Registry { return ev.registry }

// Execute performs s and discards its result.
func (ev *Evaluator) Execute(s *Statement) error {
	_, err := ev.invoke(s)
	return err
}

// Value returns the value of e, evaluating it on first use. A failed
// evaluation leaves e unbound.
func (ev *Evaluator) Value(e *Expression) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bound {
		return e.value, nil
	}
	v, err := ev.invoke(&e.Statement)
	if err != nil {
		return nil, err
	}
	e.value, e.bound = v, true
	return v, nil
}

func (ev *Evaluator) invoke(s *Statement) (any, error) {
	kind, err := Classify(s)
	if err != nil {
		return nil, err
	}
	ev.logger.Debug("dispatch", zap.Stringer("kind", kind), zap.Stringer("statement", s))

	switch kind {
	case KindArrayGet:
		return s.target.(*vm.Array).Get(int(s.args[0].(int32)))
	case KindArraySet:
		return nil, s.target.(*vm.Array).Set(int(s.args[0].(int32)), s.args[1])
	case KindArrayAllocate:
		return allocate(s)
	case KindConstruct:
		return ev.construct(s)
	case KindNewArray:
		return newArray(s)
	case KindStaticCall:
		return ev.staticCall(s)
	case KindIteratorNext:
		return ev.iteratorCall(s)
	default:
		return ev.instanceCall(s)
	}
}

func allocate(s *Statement) (any, error) {
	if len(s.args) != 2 {
		return nil, fmt.Errorf("%w: newInstance takes a class and a length: %s", ErrIllegalArgument, s)
	}
	component, ok := s.args[0].(*vm.Class)
	if !ok {
		return nil, fmt.Errorf("%w: array component must be a Class: %s", ErrTypeMismatch, s)
	}
	n, ok := s.args[1].(int32)
	if !ok {
		return nil, fmt.Errorf("%w: array length must be an Integer: %s", ErrTypeMismatch, s)
	}
	return vm.NewArray(component, int(n))
}

func newArray(s *Statement) (any, error) {
	component := s.target.(*vm.Class)
	for i, a := range s.args {
		if !vm.CanHold(component, a) {
			return nil, fmt.Errorf("%w: element %d (%s) is not a %s: %s", ErrIllegalArgument, i, renderArg(a), component.Name(), s)
		}
	}
	return vm.ArrayOf(component, s.args...)
}

func (ev *Evaluator) construct(s *Statement) (any, error) {
	c := s.target.(*vm.Class)
	k, err := ev.FindConstructor(c, s.args)
	if err != nil {
		return nil, err
	}
	ev.logger.Debug("resolved", zap.Stringer("constructor", k))
	v, err := k.NewInstance(s.args)
	return v, unwrap(err)
}

func (ev *Evaluator) staticCall(s *Statement) (any, error) {
	c := s.target.(*vm.Class)
	if c != vm.ClassClass {
		m, err := ev.FindMethod(c, s.methodName, s.args, true)
		if err == nil {
			return ev.call(m, nil, s.args)
		}
		if !errors.Is(err, ErrNoSuchMethod) {
			return nil, err
		}
	}
	if s.methodName == "forName" && len(s.args) == 1 {
		if name, ok := s.args[0].(string); ok {
			return ev.forName(c, name)
		}
	}
	// Methods of java.lang.Class, with the class object as receiver.
	m, err := ev.FindMethod(vm.ClassClass, s.methodName, s.args, false)
	if err != nil {
		return nil, err
	}
	return ev.call(m, c, s.args)
}

// forName looks name up in the registry of the class the call was made on,
// then in the evaluator's registry.
func (ev *Evaluator) forName(on *vm.Class, name string) (any, error) {
	if r := on.Registry(); r != nil && r != ev.registry {
		c, err := r.ForName(name)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, vm.ErrClassNotFound) {
			return nil, err
		}
		ev.logger.Debug("forName falls back to evaluator registry", zap.String("class", name))
	}
	return ev.registry.ForName(name)
}

func (ev *Evaluator) iteratorCall(s *Statement) (any, error) {
	c := vm.ClassOf(s.target)
	m, err := ev.FindMethod(c, s.methodName, s.args, false)
	if err != nil {
		return nil, err
	}
	hasNext, err := ev.FindMethod(c, "hasNext", nil, false)
	if err != nil {
		return nil, err
	}
	more, err := hasNext.Invoke(s.target, nil, vm.OverrideAccess())
	if err == nil && more != true {
		return nil, nil
	}
	var v any
	if err == nil {
		ev.logger.Debug("resolved", zap.Stringer("method", m))
		v, err = m.Invoke(s.target, s.args, vm.OverrideAccess())
	}
	if err != nil {
		if ev.iteratorParity {
			ev.logger.Debug("iterator failure ignored", zap.Stringer("statement", s), zap.Error(err))
			return nil, nil
		}
		return nil, unwrap(err)
	}
	return v, nil
}

func (ev *Evaluator) instanceCall(s *Statement) (any, error) {
	m, err := ev.FindMethod(vm.ClassOf(s.target), s.methodName, s.args, false)
	if err != nil {
		return nil, err
	}
	var opts []vm.InvokeOption
	if ev.forceAccess {
		opts = append(opts, vm.OverrideAccess())
	}
	return ev.call(m, s.target, s.args, opts...)
}

func (ev *Evaluator) call(m *vm.Method, recv any, args []any, opts ...vm.InvokeOption) (any, error) {
	ev.logger.Debug("resolved", zap.Stringer("method", m))
	v, err := m.Invoke(recv, args, opts...)
	if err != nil {
		return nil, unwrap(err)
	}
	return v, nil
}

// unwrap replaces an invocation wrapper by its cause unless the cause is a
// java.lang.Error.
func unwrap(err error) error {
	if ite, ok := err.(*vm.InvocationTargetError); ok && !vm.IsFatal(ite.Cause) {
		return ite.Cause
	}
	return err
}
