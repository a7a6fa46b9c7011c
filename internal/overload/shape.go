package overload

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
)

// Check validates one argument position of a cached selection.
type Check interface {
	Accepts(conv *coerce.Converter, arg any) bool
	String() string
}

// Shape is the per-position description of the arguments an overload was
// selected for. Arguments matching the shape select the same overload.
type Shape []Check

// Matches reports whether args fit the shape.
func (s Shape) Matches(conv *coerce.Converter, args []any) bool {
	if len(args) != len(s) {
		return false
	}
	for i, c := range s {
		if !c.Accepts(conv, args[i]) {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// NullShape accepts guest null.
type NullShape struct{}

func (NullShape) Accepts(_ *coerce.Converter, arg any) bool { return interop.IsNull(arg) }

func (NullShape) String() string { return "null" }

// ExactShape accepts values of one dynamic type whose conversions depend on
// the type alone.
type ExactShape struct {
	Type reflect.Type
}

func (s ExactShape) Accepts(conv *coerce.Converter, arg any) bool {
	if interop.IsNull(arg) || conv.ValueDependent(arg) {
		return false
	}
	if _, ok := conv.Classify(arg); ok {
		return false
	}
	return reflect.TypeOf(arg) == s.Type
}

func (s ExactShape) String() string { return hosttype.Name(s.Type) }

// HostShape accepts host objects of one class.
type HostShape struct {
	Type   reflect.Type
	Static bool
	Nil    bool
}

func (s HostShape) Accepts(conv *coerce.Converter, arg any) bool {
	ref, ok := conv.Classify(arg)
	if !ok || ref.IsStatic() != s.Static || ref.LookupType() != s.Type {
		return false
	}
	return s.Static || (!ref.HostValue().IsValid()) == s.Nil
}

func (s HostShape) String() string {
	if s.Static {
		return "static " + hosttype.Name(s.Type)
	}
	return "host " + hosttype.Name(s.Type)
}

// ValueShape accepts value-dependent arguments of one dynamic type that
// convert to Target and keep the same convertibility against Others.
type ValueShape struct {
	Type    reflect.Type
	Target  reflect.Type
	Others  []reflect.Type
	Profile []int8
}

func (s ValueShape) Accepts(conv *coerce.Converter, arg any) bool {
	if interop.IsNull(arg) || reflect.TypeOf(arg) != s.Type {
		return false
	}
	if _, ok := conv.Classify(arg); ok {
		return false
	}
	for i, t := range s.types() {
		if levelOf(conv, arg, t) != s.Profile[i] {
			return false
		}
	}
	return true
}

func (s ValueShape) types() []reflect.Type {
	return append([]reflect.Type{s.Target}, s.Others...)
}

func (s ValueShape) String() string {
	others := make([]string, len(s.Others))
	for i, o := range s.Others {
		others[i] = hosttype.Name(o)
	}
	return fmt.Sprintf("%s->%s excluding {%s}", hosttype.Name(s.Type), hosttype.Name(s.Target), strings.Join(others, ", "))
}

// levelOf encodes the strictest priority at which arg converts to t, or -1.
func levelOf(conv *coerce.Converter, arg any, t reflect.Type) int8 {
	if conv.IsSubtypeOf(arg, t) {
		return int8(coerce.Strict)
	}
	if l, ok := conv.Level(arg, t); ok {
		return int8(l)
	}
	return -1
}

func (r *Resolver) shapeOf(g *member.Overloaded, sel *member.Method, args []any, varArgs bool) Shape {
	shape := make(Shape, len(args))
	for i, a := range args {
		if interop.IsNull(a) {
			shape[i] = NullShape{}
			continue
		}
		if ref, ok := r.conv.Classify(a); ok {
			shape[i] = HostShape{
				Type:   ref.LookupType(),
				Static: ref.IsStatic(),
				Nil:    !ref.IsStatic() && !ref.HostValue().IsValid(),
			}
			continue
		}
		if !r.conv.ValueDependent(a) {
			shape[i] = ExactShape{Type: reflect.TypeOf(a)}
			continue
		}
		vs := ValueShape{
			Type:   reflect.TypeOf(a),
			Target: sel.ParamType(i, varArgs),
		}
		vs.Others = candidateTypes(g, i, len(args), vs.Target)
		types := vs.types()
		vs.Profile = make([]int8, len(types))
		for j, t := range types {
			vs.Profile[j] = levelOf(r.conv, a, t)
		}
		shape[i] = vs
	}
	return shape
}

// candidateTypes lists, in group order, every parameter type any overload
// may match at position i of an n-argument call, except target.
func candidateTypes(g *member.Overloaded, i, n int, target reflect.Type) []reflect.Type {
	seen := map[reflect.Type]bool{target: true}
	var out []reflect.Type
	add := func(t reflect.Type) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, m := range g.Overloads {
		pc := m.ParamCount()
		if pc == n {
			add(m.ParamType(i, false))
		}
		if m.Variadic && pc-1 <= n && i >= pc-1 {
			add(m.ParamType(i, true))
		}
		if m.Variadic && pc-1 <= n && i < pc-1 {
			add(m.ParamType(i, false))
		}
	}
	return out
}
