// Package interop defines the protocol shared by guest runtimes and the host
// dispatch engine: the guest value shapes the engine understands, the
// collaborator hooks it consumes, and the classified error taxonomy.
//
// Guest numbers, strings and booleans are plain Go values (int64, float64,
// string, bool, ...). Characters use Char. Composite guest values implement
// Executable, ArrayValue or MembersValue. Host objects that crossed into the
// guest are HostRef implementations provided by the bridge.
package interop

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Char is a single character. As a guest value it is a character; as a host
// parameter type it is the char primitive (distinct from int32).
type Char rune

func (c Char) String() string { return string(rune(c)) }

type nullValue struct{}

func (nullValue) String() string { return "null" }

// Null is the guest null value. A nil interface is treated the same way.
var Null any = nullValue{}

// IsNull reports whether v is guest null.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	_, ok := v.(nullValue)
	return ok
}

// Executable is a guest value that can be called.
type Executable interface {
	Execute(args ...any) (any, error)
}

// ArrayValue is a guest value with indexed elements.
type ArrayValue interface {
	Len() int
	Index(i int) (any, error)
}

// MembersValue is a guest value with named members (a guest object or map).
type MembersValue interface {
	Keys() []string
	Member(name string) (any, bool)
}

// HostRef is implemented by guest-side wrappers of host objects.
type HostRef interface {
	// HostValue returns the wrapped host value. For static class handles the
	// value is invalid.
	HostValue() reflect.Value
	// LookupType is the type members are looked up on: the runtime type of the
	// wrapped value, or the named type for static class handles.
	LookupType() reflect.Type
	// IsStatic reports whether this is a static class handle.
	IsStatic() bool
}

// Func adapts a Go function to Executable.
type Func func(args ...any) (any, error)

func (f Func) Execute(args ...any) (any, error) { return f(args...) }

// Array is a simple guest array.
type Array []any

func (a Array) Len() int { return len(a) }

func (a Array) Index(i int) (any, error) {
	if i < 0 || i >= len(a) {
		return nil, &InvalidIndexError{Index: int64(i), Size: len(a)}
	}
	return a[i], nil
}

// Tuple carries multiple host results back to the guest.
type Tuple []any

func (t Tuple) Len() int { return len(t) }

func (t Tuple) Index(i int) (any, error) {
	if i < 0 || i >= len(t) {
		return nil, &InvalidIndexError{Index: int64(i), Size: len(t)}
	}
	return t[i], nil
}

// Object is a simple guest object.
type Object map[string]any

func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o Object) Member(name string) (any, bool) {
	v, ok := o[name]
	return v, ok
}

// ToGuestFunc converts a host value crossing back into the guest.
type ToGuestFunc func(v reflect.Value) any

// DefaultToGuest passes host values through unchanged; invalid values become
// Null.
func DefaultToGuest(v reflect.Value) any {
	if !v.IsValid() {
		return Null
	}
	return v.Interface()
}

// ExceptionWrapper turns a native invocation failure into a guest-visible
// error. member names the host member that failed.
type ExceptionWrapper func(member string, cause error, panicked bool) error

// Classifier answers whether a value is a wrapped host object.
type Classifier func(v any) (HostRef, bool)

// DefaultClassifier recognizes HostRef implementations.
func DefaultClassifier(v any) (HostRef, bool) {
	ref, ok := v.(HostRef)
	return ref, ok
}

// DefaultExceptionWrapper wraps the cause in a NativeInvocationError.
func DefaultExceptionWrapper(member string, cause error, panicked bool) error {
	return &NativeInvocationError{Member: member, Cause: cause, Panicked: panicked}
}

// Describe renders a guest value with its Go type for diagnostics.
func Describe(v any) string {
	if IsNull(v) {
		return "null"
	}
	if ref, ok := v.(HostRef); ok {
		if ref.IsStatic() {
			return fmt.Sprintf("static %s", ref.LookupType())
		}
		return fmt.Sprintf("host %s", ref.LookupType())
	}
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q (string)", x)
	case Char:
		return fmt.Sprintf("'%c' (char)", rune(x))
	}
	return fmt.Sprintf("%v (%T)", v, v)
}

// DescribeArgs renders an argument list for diagnostics.
func DescribeArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Describe(a)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
