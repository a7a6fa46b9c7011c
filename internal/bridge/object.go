package bridge

import (
	"fmt"
	"hash/fnv"
	"reflect"

	"github.com/funvibe/hostinterop/internal/dispatch"
	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/member"
)

var reflectTypeType = reflect.TypeOf((*reflect.Type)(nil)).Elem()

// HostObject wraps a Go value, or a static class handle, for use in guest
// code. It implements interop.HostRef.
type HostObject struct {
	value  reflect.Value
	typ    reflect.Type
	static bool
}

// NewHostObject wraps v.
func NewHostObject(v any) *HostObject {
	return Wrap(reflect.ValueOf(v))
}

// Wrap wraps a reflected Go value. Interface values are unwrapped to their
// dynamic value.
func Wrap(v reflect.Value) *HostObject {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	h := &HostObject{value: v}
	if v.IsValid() {
		h.typ = v.Type()
	}
	return h
}

// StaticClass returns the static class handle of t.
func StaticClass(t reflect.Type) *HostObject {
	return &HostObject{typ: t, static: true}
}

// ClassOf returns the static class handle of v's type.
func ClassOf(v any) *HostObject {
	return StaticClass(reflect.TypeOf(v))
}

func (h *HostObject) HostValue() reflect.Value { return h.value }

func (h *HostObject) LookupType() reflect.Type { return h.typ }

func (h *HostObject) IsStatic() bool { return h.static }

// Value returns the wrapped Go value, or nil for static handles.
func (h *HostObject) Value() any {
	if h.static || !h.value.IsValid() {
		return nil
	}
	return h.value.Interface()
}

// isClassObject reports whether h wraps a reflect.Type, the non-static
// class object of some type.
func (h *HostObject) isClassObject() bool {
	return !h.static && h.typ != nil && h.typ.Implements(reflectTypeType)
}

func (h *HostObject) String() string {
	if h.static {
		return fmt.Sprintf("<static %s>", hosttype.Name(h.typ))
	}
	if !h.value.IsValid() {
		return "<host nil>"
	}
	return fmt.Sprintf("<host %T %+v>", h.value.Interface(), h.value.Interface())
}

// Hash returns a best-effort identity hash.
func (h *HostObject) Hash() uint32 {
	if h.static {
		return hashString("static " + h.typ.String())
	}
	if !h.value.IsValid() {
		return 0
	}
	switch h.value.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan, reflect.Func, reflect.Map, reflect.Slice:
		return uint32(h.value.Pointer())
	default:
		return hashString(fmt.Sprintf("%v", h.value.Interface()))
	}
}

// Equal reports host identity: same class handle, same reference, or equal
// comparable values.
func (h *HostObject) Equal(o *HostObject) bool {
	if h.static || o.static {
		return h.static == o.static && h.typ == o.typ
	}
	if !h.value.IsValid() || !o.value.IsValid() {
		return h.value.IsValid() == o.value.IsValid()
	}
	if h.typ != o.typ {
		return false
	}
	switch h.value.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan, reflect.Func, reflect.Map, reflect.Slice:
		return h.value.Pointer() == o.value.Pointer()
	}
	return h.typ.Comparable() && h.value.Equal(o.value)
}

func hashString(s string) uint32 {
	f := fnv.New32a()
	_, _ = f.Write([]byte(s))
	return f.Sum32()
}

// HostFunction is a host method or func usable as a guest function. Bound
// methods carry their receiver.
type HostFunction struct {
	b      *Bridge
	member member.Member
	recv   reflect.Value
	site   *dispatch.CallSite
}

func (f *HostFunction) Execute(args ...any) (any, error) {
	return f.b.exec.Execute(f.site, f.member, f.recv, args)
}

func (f *HostFunction) Name() string { return f.member.MemberName() }

func (f *HostFunction) String() string {
	return fmt.Sprintf("<host function %s>", f.member)
}
