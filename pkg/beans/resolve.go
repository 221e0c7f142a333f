package beans

import (
	"fmt"
	"math"

	"github.com/daimatz/jbeans/pkg/vm"
)

const infinity = math.MaxInt / 4

// compatible reports whether arg may be passed for a parameter of type p:
// assignable, the wrapper of primitive p, or null for a reference type.
func compatible(p *vm.Class, arg any) bool {
	if arg == nil {
		return !p.IsPrimitive()
	}
	ac := vm.ClassOf(arg)
	return p.IsAssignableFrom(ac) || (p.IsPrimitive() && p.Wrapper() == ac)
}

func applicable(params []*vm.Class, args []any) bool {
	if len(params) != len(args) {
		return false
	}
	for i, p := range params {
		if !compatible(p, args[i]) {
			return false
		}
	}
	return true
}

// distance is the number of inheritance steps from class a up to parameter
// type p: 0 when identical (or a is p's wrapper), otherwise one more than the
// shortest distance from a's superclass or, when p is an interface, from one
// of a's interfaces.
func distance(a, p *vm.Class) int {
	if a == p || (p.IsPrimitive() && p.Wrapper() == a) {
		return 0
	}
	if a.IsArray() && p.IsArray() && !p.ComponentType().IsPrimitive() && !a.ComponentType().IsPrimitive() {
		return distance(a.ComponentType(), p.ComponentType())
	}
	best := infinity
	if s := a.Superclass(); s != nil {
		best = min(best, distance(s, p))
	} else if a.IsInterface() && p == vm.ObjectClass {
		best = 0
	}
	if p.IsInterface() {
		for _, i := range a.Interfaces() {
			best = min(best, distance(i, p))
		}
	}
	if best >= infinity {
		return infinity
	}
	return best + 1
}

// totalDistance sums the distances of the non-null arguments.
func totalDistance(params []*vm.Class, args []any) int {
	total := 0
	for i, arg := range args {
		if arg != nil {
			total += distance(vm.ClassOf(arg), params[i])
		}
	}
	return total
}

// FindMethod picks the public method of c named name that best fits args.
// With static set only static methods are considered.
func (ev *Evaluator) FindMethod(c *vm.Class, name string, args []any, static bool) (*vm.Method, error) {
	var candidates []*vm.Method
	for _, m := range ev.cache.Methods(c) {
		if m.Name != name || (static && !m.IsStatic()) {
			continue
		}
		if applicable(m.Params, args) {
			candidates = append(candidates, m)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: %s.%s(%s)", ErrNoSuchMethod, c.Name(), name, argList(args))
	case 1:
		return candidates[0], nil
	}

	tied := nearest(candidates, func(m *vm.Method) []*vm.Class { return m.Params }, args)
	if len(tied) == 1 {
		return tied[0], nil
	}
	// Equal distance: a strictly narrower return type than every other tied
	// candidate wins.
	for _, m := range tied {
		narrowest := true
		for _, o := range tied {
			if o == m {
				continue
			}
			if o.Return == m.Return || !o.Return.IsAssignableFrom(m.Return) {
				narrowest = false
				break
			}
		}
		if narrowest {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s(%s) matches %v", ErrAmbiguousMethod, c.Name(), name, argList(args), tied)
}

// FindConstructor picks the public constructor of c that best fits args.
// Ties go to the constructor whose parameters are each at least as specific
// as those of every other tied constructor.
func (ev *Evaluator) FindConstructor(c *vm.Class, args []any) (*vm.Constructor, error) {
	var candidates []*vm.Constructor
	for _, k := range c.PublicConstructors() {
		if applicable(k.Params, args) {
			candidates = append(candidates, k)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: no constructor %s(%s)", ErrNoSuchMethod, c.Name(), argList(args))
	case 1:
		return candidates[0], nil
	}

	tied := nearest(candidates, func(k *vm.Constructor) []*vm.Class { return k.Params }, args)
	if len(tied) == 1 {
		return tied[0], nil
	}
	for _, k := range tied {
		dominates := true
		for _, o := range tied {
			if o != k && !moreSpecific(k.Params, o.Params) {
				dominates = false
				break
			}
		}
		if dominates {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: constructor %s(%s) matches %v", ErrAmbiguousMethod, c.Name(), argList(args), tied)
}

// nearest returns the candidates with the lowest total distance.
func nearest[T any](candidates []T, params func(T) []*vm.Class, args []any) []T {
	best := infinity
	var tied []T
	for _, c := range candidates {
		d := totalDistance(params(c), args)
		switch {
		case d < best:
			best = d
			tied = append(tied[:0], c)
		case d == best:
			tied = append(tied, c)
		}
	}
	return tied
}

// moreSpecific reports whether every parameter in a is at least as specific
// as the one in b. A primitive is more specific than its wrapper.
func moreSpecific(a, b []*vm.Class) bool {
	for i := range a {
		if a[i] == b[i] || b[i].IsAssignableFrom(a[i]) {
			continue
		}
		if a[i].IsPrimitive() && a[i].Wrapper() == b[i] {
			continue
		}
		return false
	}
	return true
}

func argList(args []any) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += renderArg(a)
	}
	return s
}
