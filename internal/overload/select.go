// Package overload picks the overload of a host member that best fits a list
// of guest arguments.
package overload

import (
	"fmt"
	"math"
	"reflect"

	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
)

// Resolver selects overloads using a converter's rules.
type Resolver struct {
	conv *coerce.Converter
}

func NewResolver(conv *coerce.Converter) *Resolver {
	return &Resolver{conv: conv}
}

// Converter returns the converter the resolver ranks conversions with.
func (r *Resolver) Converter() *coerce.Converter { return r.conv }

// Select returns the method of m that a call with args invokes.
func (r *Resolver) Select(m member.Member, args []any) (*member.Method, error) {
	sel, _, err := r.resolve(m, args)
	return sel, err
}

// SelectShaped is Select plus the argument shape under which the same
// selection is guaranteed. The shape is nil for single methods.
func (r *Resolver) SelectShaped(m member.Member, args []any) (*member.Method, Shape, error) {
	sel, varArgs, err := r.resolve(m, args)
	if err != nil {
		return nil, nil, err
	}
	g, ok := m.(*member.Overloaded)
	if !ok {
		return sel, nil, nil
	}
	return sel, r.shapeOf(g, sel, args, varArgs), nil
}

func (r *Resolver) resolve(m member.Member, args []any) (*member.Method, bool, error) {
	switch x := m.(type) {
	case *member.Method:
		return x, false, checkArity(x, args)
	case *member.Overloaded:
		return r.selectOverload(x, args)
	}
	return nil, false, fmt.Errorf("unsupported member %T", m)
}

func checkArity(m *member.Method, args []any) error {
	pc := m.ParamCount()
	switch {
	case m.Variadic && len(args) < pc-1:
		return &interop.ArityError{Name: m.Name, Min: pc - 1, Max: -1, Actual: len(args)}
	case !m.Variadic && len(args) != pc:
		return &interop.ArityError{Name: m.Name, Min: pc, Max: pc, Actual: len(args)}
	}
	return nil
}

func (r *Resolver) selectOverload(g *member.Overloaded, args []any) (*member.Method, bool, error) {
	n := len(args)
	var fixed, variadic []*member.Method
	minArgs, maxArgs := math.MaxInt, 0
	unbounded := false
	for _, m := range g.Overloads {
		pc := m.ParamCount()
		if pc == n {
			fixed = append(fixed, m)
		}
		if m.Variadic {
			unbounded = true
			minArgs = min(minArgs, pc-1)
			if pc-1 <= n {
				variadic = append(variadic, m)
			}
			continue
		}
		minArgs = min(minArgs, pc)
		maxArgs = max(maxArgs, pc)
	}
	if len(fixed) == 0 && len(variadic) == 0 {
		if unbounded {
			maxArgs = -1
		}
		return nil, false, &interop.ArityError{Name: g.Name, Min: minArgs, Max: maxArgs, Actual: n}
	}
	if sel, err := r.phase(g, fixed, args, false); sel != nil || err != nil {
		return sel, false, err
	}
	if sel, err := r.phase(g, variadic, args, true); sel != nil || err != nil {
		return sel, true, err
	}
	return nil, false, &interop.UnsupportedTypeError{
		Args:   args,
		Reason: fmt.Sprintf("no applicable overload found for method %s", g.Name),
	}
}

func (r *Resolver) phase(g *member.Overloaded, cands []*member.Method, args []any, varArgs bool) (*member.Method, error) {
	if len(cands) == 0 {
		return nil, nil
	}
	for _, p := range coerce.Priorities {
		var survivors []*member.Method
		for _, m := range cands {
			if r.applicable(m, args, p, varArgs) {
				survivors = append(survivors, m)
			}
		}
		switch len(survivors) {
		case 0:
			continue
		case 1:
			return survivors[0], nil
		}
		if best := r.mostSpecific(survivors, args, varArgs); best != nil {
			return best, nil
		}
		names := make([]string, len(survivors))
		for i, m := range survivors {
			names[i] = m.String()
		}
		return nil, &interop.AmbiguousOverloadError{Name: g.Name, Candidates: names, Args: args}
	}
	return nil, nil
}

func (r *Resolver) applicable(m *member.Method, args []any, p coerce.Priority, varArgs bool) bool {
	for i, a := range args {
		pt := m.ParamType(i, varArgs)
		if !r.conv.IsSubtypeOf(a, pt) && !r.conv.CanConvert(a, pt, p) {
			return false
		}
	}
	return true
}

// mostSpecific returns the candidate that beats every other one, or nil.
func (r *Resolver) mostSpecific(cands []*member.Method, args []any, varArgs bool) *member.Method {
	for _, c := range cands {
		dominates := true
		for _, o := range cands {
			if o != c && r.compare(c, o, args, varArgs) <= 0 {
				dominates = false
				break
			}
		}
		if dominates {
			return c
		}
	}
	return nil
}

// compare returns 1 when a is more specific than b for args, -1 when b is,
// and 0 when neither wins every parameter.
func (r *Resolver) compare(a, b *member.Method, args []any, varArgs bool) int {
	aWins, bWins := 0, 0
	for i, arg := range args {
		switch r.compareTypes(a.ParamType(i, varArgs), b.ParamType(i, varArgs), arg) {
		case 1:
			aWins++
		case -1:
			bWins++
		}
	}
	switch {
	case aWins > 0 && bWins == 0:
		return 1
	case bWins > 0 && aWins == 0:
		return -1
	}
	return 0
}

// compareTypes ranks two parameter types for one argument: assignability
// first, then the stricter conversion priority.
func (r *Resolver) compareTypes(t1, t2 reflect.Type, arg any) int {
	if t1 == t2 {
		return 0
	}
	narrower := hosttype.IsAssignableFrom(t2, t1)
	wider := hosttype.IsAssignableFrom(t1, t2)
	switch {
	case narrower && !wider:
		return 1
	case wider && !narrower:
		return -1
	}
	l1, ok1 := r.level(arg, t1)
	l2, ok2 := r.level(arg, t2)
	switch {
	case ok1 && (!ok2 || l1 < l2):
		return 1
	case ok2 && (!ok1 || l2 < l1):
		return -1
	}
	return 0
}

func (r *Resolver) level(arg any, t reflect.Type) (coerce.Priority, bool) {
	if r.conv.IsSubtypeOf(arg, t) {
		return coerce.Strict, true
	}
	return r.conv.Level(arg, t)
}
