package script

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/daimatz/jbeans/pkg/beans"
	"github.com/daimatz/jbeans/pkg/vm"
)

const reflectArrayName = "java.lang.reflect.Array"

// Result is the outcome of one top-level node.
type Result struct {
	Index      int
	ID         string
	Expression *beans.Expression
	Value      any
}

// Decoder runs scripts against an evaluator. Ids defined by one Run stay
// visible to later runs. A Decoder is not safe for concurrent use.
type Decoder struct {
	ev       *beans.Evaluator
	registry *vm.Registry
	logger   *zap.Logger
	ids      map[string]any
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// NewDecoder creates a decoder resolving class names in the evaluator's
// registry.
func NewDecoder(ev *beans.Evaluator, opts ...Option) *Decoder {
	d := &Decoder{
		ev:       ev,
		registry: ev.Registry(),
		logger:   zap.NewNop(),
		ids:      make(map[string]any),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Lookup returns the value bound to id.
func (d *Decoder) Lookup(id string) (any, bool) {
	v, ok := d.ids[id]
	return v, ok
}

// Run evaluates the nodes of s in order and stops at the first failure.
func (d *Decoder) Run(s *Script) ([]Result, error) {
	results := make([]Result, 0, len(s.Nodes))
	for i := range s.Nodes {
		n := &s.Nodes[i]
		e, v, err := d.eval(n)
		if err != nil {
			return results, fmt.Errorf("node %d: %w", i, err)
		}
		results = append(results, Result{Index: i, ID: n.ID, Expression: e, Value: v})
	}
	return results, nil
}

// eval turns n into a bound expression and returns it with its value.
func (d *Decoder) eval(n *Node) (*beans.Expression, any, error) {
	e, err := d.expression(n)
	if err != nil {
		return nil, nil, err
	}
	v, err := d.ev.Value(e)
	if err != nil {
		return nil, nil, err
	}
	d.logger.Debug("node evaluated", zap.String("id", n.ID), zap.Stringer("expression", e))
	if n.ID != "" {
		d.ids[n.ID] = v
	}
	return e, v, nil
}

func (d *Decoder) expression(n *Node) (*beans.Expression, error) {
	ops := 0
	for _, set := range []bool{n.New, n.Call != "", n.Property != "", n.Field != "", n.Index != nil, n.Array != ""} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return nil, fmt.Errorf("%w: want exactly one of new, call, property, field, index and array, got %d", ErrInvalidNode, ops)
	}
	if n.Length != nil && n.Array == "" {
		return nil, fmt.Errorf("%w: length without array", ErrInvalidNode)
	}

	args, err := d.args(n.Args)
	if err != nil {
		return nil, err
	}

	if n.Array != "" {
		if n.Class != "" || n.On != "" {
			return nil, fmt.Errorf("%w: array takes no target", ErrInvalidNode)
		}
		elem, err := d.class(n.Array)
		if err != nil {
			return nil, err
		}
		if n.Length == nil {
			return beans.NewExpression(elem, "newArray", args), nil
		}
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: array with length takes no args", ErrInvalidNode)
		}
		factory, err := d.class(reflectArrayName)
		if err != nil {
			return nil, err
		}
		return beans.NewExpression(factory, "newInstance", []any{elem, *n.Length}), nil
	}

	if (n.New || n.Field != "") && n.On != "" {
		return nil, fmt.Errorf("%w: new and field need a class, not an instance", ErrInvalidNode)
	}
	target, err := d.target(n)
	if err != nil {
		return nil, err
	}

	switch {
	case n.New:
		return beans.NewExpression(target, "new", args), nil
	case n.Call != "":
		return beans.NewExpression(target, n.Call, args), nil
	case n.Property != "":
		switch len(args) {
		case 0:
			return beans.NewExpression(target, "get"+capitalize(n.Property), nil), nil
		case 1:
			return beans.NewExpression(target, "set"+capitalize(n.Property), args), nil
		default:
			return nil, fmt.Errorf("%w: property %s takes at most one argument", ErrInvalidNode, n.Property)
		}
	case n.Field != "":
		return d.staticField(target.(*vm.Class), n.Field, args)
	default:
		switch len(args) {
		case 0:
			return beans.NewExpression(target, "get", []any{*n.Index}), nil
		case 1:
			return beans.NewExpression(target, "set", []any{*n.Index, args[0]}), nil
		default:
			return nil, fmt.Errorf("%w: index takes at most one argument", ErrInvalidNode)
		}
	}
}

// staticField reads a public static field. The expression is bound to the
// field value and rendered as a getField call.
func (d *Decoder) staticField(c *vm.Class, name string, args []any) (*beans.Expression, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("%w: field takes no args", ErrInvalidNode)
	}
	f := c.Field(name)
	if f == nil || !f.IsStatic() || !f.IsPublic() {
		return nil, fmt.Errorf("%w: no public static field %s.%s", beans.ErrNoSuchMethod, c.Name(), name)
	}
	v, err := f.Get(nil)
	if err != nil {
		return nil, err
	}
	return beans.NewExpressionWithValue(v, c, "getField", []any{name}), nil
}

func (d *Decoder) target(n *Node) (any, error) {
	switch {
	case n.Class != "" && n.On != "":
		return nil, fmt.Errorf("%w: both class and on are set", ErrInvalidNode)
	case n.Class != "":
		return d.class(n.Class)
	case n.On != "":
		return d.ref(n.On)
	default:
		return nil, fmt.Errorf("%w: no class or on", ErrInvalidNode)
	}
}

func (d *Decoder) class(name string) (*vm.Class, error) {
	return d.registry.TypeByName(name)
}

func (d *Decoder) ref(id string) (any, error) {
	v, ok := d.ids[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownID, id)
	}
	return v, nil
}

func (d *Decoder) args(in []*Arg) ([]any, error) {
	out := make([]any, len(in))
	for i, a := range in {
		v, err := d.arg(a)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (d *Decoder) arg(a *Arg) (any, error) {
	if a == nil {
		return nil, nil
	}
	if n := a.kinds(); n != 1 {
		return nil, fmt.Errorf("%w: argument sets %d literal kinds", ErrInvalidNode, n)
	}
	switch {
	case a.Int != nil:
		return *a.Int, nil
	case a.Long != nil:
		return *a.Long, nil
	case a.Short != nil:
		return *a.Short, nil
	case a.Byte != nil:
		return *a.Byte, nil
	case a.Char != nil:
		r, size := utf8.DecodeRuneInString(*a.Char)
		if size == 0 || size != len(*a.Char) || r > 0xFFFF {
			return nil, fmt.Errorf("%w: char %q is not a single UTF-16 unit", ErrInvalidNode, *a.Char)
		}
		return uint16(r), nil
	case a.Double != nil:
		return *a.Double, nil
	case a.Float != nil:
		return *a.Float, nil
	case a.Bool != nil:
		return *a.Bool, nil
	case a.String != nil:
		return *a.String, nil
	case a.Class != nil:
		return d.class(*a.Class)
	case a.Ref != nil:
		return d.ref(*a.Ref)
	default:
		_, v, err := d.eval(a.Object)
		return v, err
	}
}

func capitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}
