// Package member is the descriptor model of host members: methods,
// overloaded method groups, fields and constructors, reflected once per host
// type and cached for the lifetime of an engine.
package member

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/hostinterop/internal/hosttype"
)

// Member is either a *Method or an *Overloaded group.
type Member interface {
	MemberName() string
	member()
}

// Method describes one concrete callable host member. Methods are immutable
// after construction and compared by identity.
type Method struct {
	Name      string
	Declaring reflect.Type
	// Params excludes the receiver. For variadic methods the last entry is
	// the slice type.
	Params   []reflect.Type
	Generic  []reflect.Type
	Results  []reflect.Type
	Variadic bool
	Static   bool

	fn          reflect.Value
	hasReceiver bool
}

func (*Method) member() {}

func (m *Method) MemberName() string { return m.Name }

// ParamCount returns the declared parameter count, counting a variadic
// parameter once.
func (m *Method) ParamCount() int { return len(m.Params) }

// ParamType returns the parameter type for argument position i. When
// varArgs is set, positions at or beyond the variadic parameter map to its
// element type.
func (m *Method) ParamType(i int, varArgs bool) reflect.Type {
	last := len(m.Params) - 1
	if varArgs && i >= last {
		return m.Params[last].Elem()
	}
	return m.Params[i]
}

// GenericType is the generic counterpart of ParamType.
func (m *Method) GenericType(i int, varArgs bool) reflect.Type {
	last := len(m.Generic) - 1
	if varArgs && i >= last {
		g := m.Generic[last]
		if g.Kind() == reflect.Slice {
			return g.Elem()
		}
		return m.Params[last].Elem()
	}
	return m.Generic[i]
}

// ReturnsError reports whether the last result is an error.
func (m *Method) ReturnsError() bool {
	return len(m.Results) > 0 && m.Results[len(m.Results)-1] == hosttype.ErrorType
}

// PanicError carries a value recovered from a panicking host call.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("%v", e.Value) }

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Call invokes the host member. args must already match Params; for variadic
// methods the last argument is the packed slice. A panic in the host code is
// returned as *PanicError.
func (m *Method) Call(recv reflect.Value, args []reflect.Value) (results []reflect.Value, err error) {
	in := args
	if m.hasReceiver {
		in = make([]reflect.Value, 0, len(args)+1)
		in = append(in, recv)
		in = append(in, args...)
	}
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = &PanicError{Value: r}
		}
	}()
	if m.Variadic {
		return m.fn.CallSlice(in), nil
	}
	return m.fn.Call(in), nil
}

func (m *Method) String() string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		if m.Variadic && i == len(m.Params)-1 {
			parts[i] = "..." + hosttype.Name(p.Elem())
			continue
		}
		parts[i] = hosttype.Name(p)
	}
	return fmt.Sprintf("%s(%s)", m.Name, strings.Join(parts, ", "))
}

// NewFunc describes a Go func value as a static member named name.
func NewFunc(name string, declaring reflect.Type, fn any) (*Method, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("member %s: expected func, got %T", name, fn)
	}
	return newMethod(name, declaring, v, false, true), nil
}

// NewBoundMethod describes the Go method at index i of t's method set.
func NewBoundMethod(t reflect.Type, i int) *Method {
	rm := t.Method(i)
	return newMethod(rm.Name, t, rm.Func, true, false)
}

func newMethod(name string, declaring reflect.Type, fn reflect.Value, hasReceiver, static bool) *Method {
	ft := fn.Type()
	first := 0
	if hasReceiver {
		first = 1
	}
	params := make([]reflect.Type, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}
	results := make([]reflect.Type, ft.NumOut())
	for i := range results {
		results[i] = ft.Out(i)
	}
	generic := make([]reflect.Type, len(params))
	copy(generic, params)
	return &Method{
		Name:        name,
		Declaring:   declaring,
		Params:      params,
		Generic:     generic,
		Results:     results,
		Variadic:    ft.IsVariadic(),
		Static:      static,
		fn:          fn,
		hasReceiver: hasReceiver,
	}
}

// withName returns a copy of m exposed under another guest name.
func (m *Method) withName(name string) *Method {
	c := *m
	c.Name = name
	return &c
}

// withGeneric returns a copy of m with refined generic parameter types.
// Hints that are not assignable to the declared parameter are ignored.
func (m *Method) withGeneric(hints []reflect.Type) *Method {
	c := *m
	c.Generic = make([]reflect.Type, len(m.Params))
	copy(c.Generic, m.Params)
	for i, h := range hints {
		if i < len(c.Generic) && h != nil && h.AssignableTo(m.Params[i]) {
			c.Generic[i] = h
		}
	}
	return &c
}

// Overloaded is an immutable group of methods sharing a guest name.
type Overloaded struct {
	Name      string
	Overloads []*Method
}

func (*Overloaded) member() {}

func (o *Overloaded) MemberName() string { return o.Name }

func (o *Overloaded) String() string {
	parts := make([]string, len(o.Overloads))
	for i, m := range o.Overloads {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

// Field describes a readable (and possibly writable) host field.
type Field struct {
	Name      string
	Declaring reflect.Type
	Type      reflect.Type
	Static    bool
	Writable  bool

	get func(recv reflect.Value) (reflect.Value, error)
	set func(recv, v reflect.Value) error
}

// Get reads the field from recv (ignored for static fields).
func (f *Field) Get(recv reflect.Value) (reflect.Value, error) {
	return f.get(recv)
}

// Set writes v, which must already be assignable to f.Type.
func (f *Field) Set(recv, v reflect.Value) error {
	if !f.Writable || f.set == nil {
		return fmt.Errorf("field %s is not writable", f.Name)
	}
	return f.set(recv, v)
}
