package coerce

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/interop"
)

var reflectTypeType = reflect.TypeOf((*reflect.Type)(nil)).Elem()

// Converter converts guest values to host types. It is immutable and safe
// for concurrent use.
type Converter struct {
	classify          interop.Classifier
	toGuest           interop.ToGuestFunc
	losslessNarrowing bool
}

type Option func(*Converter)

// WithClassifier sets how wrapped host objects are recognized.
func WithClassifier(cl interop.Classifier) Option {
	return func(c *Converter) { c.classify = cl }
}

// WithToGuest sets how host values passed to guest callbacks are converted.
func WithToGuest(fn interop.ToGuestFunc) Option {
	return func(c *Converter) { c.toGuest = fn }
}

// WithLosslessNarrowing controls whether a numeric value that fits the
// target exactly converts at Strict (true) or Loose (false).
func WithLosslessNarrowing(on bool) Option {
	return func(c *Converter) { c.losslessNarrowing = on }
}

func New(opts ...Option) *Converter {
	c := &Converter{
		classify:          interop.DefaultClassifier,
		toGuest:           interop.DefaultToGuest,
		losslessNarrowing: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Level returns the minimum priority at which v converts to target.
func (c *Converter) Level(v any, target reflect.Type) (Priority, bool) {
	l, _, err := c.rule(v, target, true)
	return l, err == nil
}

// CanConvert reports whether v converts to target at priority p.
func (c *Converter) CanConvert(v any, target reflect.Type, p Priority) bool {
	l, ok := c.Level(v, target)
	return ok && l <= p
}

// Convert converts v to target at priority p. For interface targets a more
// specific generic hint is tried first.
func (c *Converter) Convert(v any, target, generic reflect.Type, p Priority) (reflect.Value, error) {
	if generic != nil && generic != target && target.Kind() == reflect.Interface && generic.AssignableTo(target) {
		if l, rv, err := c.rule(v, generic, false); err == nil && l <= p {
			return rv, nil
		}
	}
	l, rv, err := c.rule(v, target, false)
	if err != nil {
		return reflect.Value{}, &interop.UnsupportedTypeError{Args: []any{v}, Target: target, Reason: err.Error()}
	}
	if l > p {
		return reflect.Value{}, &interop.UnsupportedTypeError{
			Args:   []any{v},
			Target: target,
			Reason: fmt.Sprintf("requires %s conversion, allowed %s", l, p),
		}
	}
	return rv, nil
}

// rule finds the strictest rule converting v to t. In probe mode composite
// values are checked but not built.
func (c *Converter) rule(v any, t reflect.Type, probe bool) (Priority, reflect.Value, error) {
	if interop.IsNull(v) {
		return nullRule(t)
	}
	if ref, ok := c.classify(v); ok {
		return c.hostRule(ref, t)
	}
	if hosttype.IsGuestComposite(v) {
		return c.compositeRule(v, t, probe)
	}
	rv := reflect.ValueOf(v)
	vt := rv.Type()
	if vt == t {
		return Strict, rv, nil
	}
	if t.Kind() == reflect.Interface {
		if vt.Implements(t) {
			return Strict, rv, nil
		}
		return 0, reflect.Value{}, fmt.Errorf("%s does not implement %s", vt, t)
	}
	if vt.AssignableTo(t) {
		return Strict, rv, nil
	}
	return c.scalarRule(rv, t)
}

func nullRule(t reflect.Type) (Priority, reflect.Value, error) {
	if hosttype.IsNullable(t) {
		return Strict, reflect.Zero(t), nil
	}
	return 0, reflect.Value{}, fmt.Errorf("null is not a valid %s", hosttype.Name(t))
}

func (c *Converter) hostRule(ref interop.HostRef, t reflect.Type) (Priority, reflect.Value, error) {
	if ref.IsStatic() {
		if t == reflectTypeType {
			return Strict, reflect.ValueOf(ref.LookupType()), nil
		}
		if t.Kind() == reflect.Interface && reflect.TypeOf(ref).Implements(t) {
			return ObjectTarget, reflect.ValueOf(ref), nil
		}
		return 0, reflect.Value{}, fmt.Errorf("static %s is not a %s", ref.LookupType(), hosttype.Name(t))
	}
	hv := ref.HostValue()
	if !hv.IsValid() {
		return nullRule(t)
	}
	if hv.Type().AssignableTo(t) {
		return Strict, hv, nil
	}
	return 0, reflect.Value{}, fmt.Errorf("host %s is not assignable to %s", hv.Type(), hosttype.Name(t))
}

func (c *Converter) compositeRule(v any, t reflect.Type, probe bool) (Priority, reflect.Value, error) {
	vt := reflect.TypeOf(v)
	if t.Kind() != reflect.Interface && vt.AssignableTo(t) {
		return Strict, reflect.ValueOf(v), nil
	}
	switch t.Kind() {
	case reflect.Func:
		if exec, ok := v.(interop.Executable); ok {
			if probe {
				return Proxy, reflect.Value{}, nil
			}
			return Proxy, c.makeFunc(exec, t), nil
		}
	case reflect.Slice, reflect.Array:
		if av, ok := v.(interop.ArrayValue); ok {
			return c.arrayRule(av, t, probe)
		}
	case reflect.Map:
		if mv, ok := v.(interop.MembersValue); ok && t.Key().Kind() == reflect.String {
			return c.mapRule(mv, t, probe)
		}
	case reflect.Struct:
		if mv, ok := v.(interop.MembersValue); ok {
			return c.structRule(mv, t, probe)
		}
	case reflect.Pointer:
		if mv, ok := v.(interop.MembersValue); ok && t.Elem().Kind() == reflect.Struct {
			l, sv, err := c.structRule(mv, t.Elem(), probe)
			if err != nil || probe {
				return l, reflect.Value{}, err
			}
			p := reflect.New(t.Elem())
			p.Elem().Set(sv)
			return l, p, nil
		}
	case reflect.Interface:
		if vt.Implements(t) {
			return ObjectTarget, reflect.ValueOf(v), nil
		}
	}
	return 0, reflect.Value{}, fmt.Errorf("%T cannot be converted to %s", v, hosttype.Name(t))
}

func (c *Converter) arrayRule(av interop.ArrayValue, t reflect.Type, probe bool) (Priority, reflect.Value, error) {
	n := av.Len()
	if t.Kind() == reflect.Array && t.Len() != n {
		return 0, reflect.Value{}, fmt.Errorf("array of length %d cannot fill %s", n, t)
	}
	var out reflect.Value
	if !probe {
		if t.Kind() == reflect.Slice {
			out = reflect.MakeSlice(t, n, n)
		} else {
			out = reflect.New(t).Elem()
		}
	}
	level := Proxy
	for i := 0; i < n; i++ {
		e, err := av.Index(i)
		if err != nil {
			return 0, reflect.Value{}, err
		}
		l, ev, err := c.rule(e, t.Elem(), probe)
		if err != nil {
			return 0, reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		level = maxPriority(level, l)
		if !probe {
			out.Index(i).Set(ev)
		}
	}
	return level, out, nil
}

func (c *Converter) mapRule(mv interop.MembersValue, t reflect.Type, probe bool) (Priority, reflect.Value, error) {
	var out reflect.Value
	if !probe {
		out = reflect.MakeMap(t)
	}
	level := Proxy
	for _, k := range mv.Keys() {
		e, _ := mv.Member(k)
		l, ev, err := c.rule(e, t.Elem(), probe)
		if err != nil {
			return 0, reflect.Value{}, fmt.Errorf("member %s: %w", k, err)
		}
		level = maxPriority(level, l)
		if !probe {
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
		}
	}
	return level, out, nil
}

// structRule fills exported fields whose names match guest members,
// ignoring case. Members without a matching field are ignored.
func (c *Converter) structRule(mv interop.MembersValue, t reflect.Type, probe bool) (Priority, reflect.Value, error) {
	var out reflect.Value
	if !probe {
		out = reflect.New(t).Elem()
	}
	level := Proxy
	for _, k := range mv.Keys() {
		key := k
		sf, ok := t.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, key) })
		if !ok || !sf.IsExported() || len(sf.Index) != 1 {
			continue
		}
		e, _ := mv.Member(k)
		l, ev, err := c.rule(e, sf.Type, probe)
		if err != nil {
			return 0, reflect.Value{}, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		level = maxPriority(level, l)
		if !probe {
			out.Field(sf.Index[0]).Set(ev)
		}
	}
	return level, out, nil
}

// makeFunc adapts a guest executable to the Go func type ft. A trailing error
// result receives guest failures; without one they panic.
func (c *Converter) makeFunc(exec interop.Executable, ft reflect.Type) reflect.Value {
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, a := range in {
			args[i] = c.toGuest(a)
		}
		res, err := exec.Execute(args...)
		return c.funcResults(ft, res, err)
	})
}

func (c *Converter) funcResults(ft reflect.Type, res any, err error) []reflect.Value {
	out := make([]reflect.Value, ft.NumOut())
	values := ft.NumOut()
	errIdx := -1
	if values > 0 && ft.Out(values-1) == hosttype.ErrorType {
		errIdx = values - 1
		values--
	}
	fail := func(err error) []reflect.Value {
		if errIdx < 0 {
			panic(err)
		}
		for i := range out {
			out[i] = reflect.Zero(ft.Out(i))
		}
		out[errIdx] = reflect.ValueOf(&err).Elem()
		return out
	}
	if err != nil {
		return fail(err)
	}
	switch {
	case values == 1:
		rv, cerr := c.Convert(res, ft.Out(0), nil, ObjectTarget)
		if cerr != nil {
			return fail(cerr)
		}
		out[0] = exact(rv, ft.Out(0))
	case values > 1:
		av, ok := res.(interop.ArrayValue)
		if !ok || av.Len() != values {
			return fail(fmt.Errorf("expected %d results, got %s", values, interop.Describe(res)))
		}
		for i := 0; i < values; i++ {
			e, ierr := av.Index(i)
			if ierr != nil {
				return fail(ierr)
			}
			rv, cerr := c.Convert(e, ft.Out(i), nil, ObjectTarget)
			if cerr != nil {
				return fail(cerr)
			}
			out[i] = exact(rv, ft.Out(i))
		}
	}
	if errIdx >= 0 {
		out[errIdx] = reflect.Zero(hosttype.ErrorType)
	}
	return out
}

// exact returns rv as a value of type t.
func exact(rv reflect.Value, t reflect.Type) reflect.Value {
	if rv.Type() == t {
		return rv
	}
	x := reflect.New(t).Elem()
	x.Set(rv)
	return x
}

// Classify reports whether v is a wrapped host object.
func (c *Converter) Classify(v any) (interop.HostRef, bool) {
	return c.classify(v)
}

// IsSubtypeOf reports whether v already is an instance of t without any
// conversion. Host objects are recognized with the converter's classifier.
func (c *Converter) IsSubtypeOf(v any, t reflect.Type) bool {
	if ref, ok := c.classify(v); ok {
		return !ref.IsStatic() && hosttype.IsValueSubtypeOf(ref.HostValue(), t)
	}
	if interop.IsNull(v) {
		return hosttype.IsValueSubtypeOf(reflect.Value{}, t)
	}
	if hosttype.IsGuestComposite(v) {
		return false
	}
	return hosttype.IsValueSubtypeOf(reflect.ValueOf(v), t)
}

// ValueDependent reports whether the conversions of v depend on its value
// and not only on its dynamic type.
func (c *Converter) ValueDependent(v any) bool {
	if interop.IsNull(v) {
		return false
	}
	if _, ok := c.classify(v); ok {
		return false
	}
	if hosttype.IsGuestComposite(v) {
		return true
	}
	s, ok := classifyScalar(reflect.ValueOf(v))
	return ok && s.kind != srcBool
}
