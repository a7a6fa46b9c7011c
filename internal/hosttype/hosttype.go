// Package hosttype describes the host type lattice used for argument matching:
// which Go types count as primitives, which pointer types box them, the
// numeric widening table and the assignability relation that ranks overloads.
package hosttype

import (
	"math/big"
	"reflect"
	"strconv"

	"github.com/funvibe/hostinterop/internal/interop"
)

var (
	AnyType     = reflect.TypeOf((*any)(nil)).Elem()
	ErrorType   = reflect.TypeOf((*error)(nil)).Elem()
	StringType  = reflect.TypeOf("")
	BoolType    = reflect.TypeOf(false)
	CharType    = reflect.TypeOf(interop.Char(0))
	BigIntType  = reflect.TypeOf((*big.Int)(nil))
	ByteSlice   = reflect.TypeOf([]byte(nil))
	Int8Type    = reflect.TypeOf(int8(0))
	Int16Type   = reflect.TypeOf(int16(0))
	Int32Type   = reflect.TypeOf(int32(0))
	Int64Type   = reflect.TypeOf(int64(0))
	IntType     = reflect.TypeOf(int(0))
	Uint8Type   = reflect.TypeOf(uint8(0))
	Uint16Type  = reflect.TypeOf(uint16(0))
	Uint32Type  = reflect.TypeOf(uint32(0))
	Uint64Type  = reflect.TypeOf(uint64(0))
	UintType    = reflect.TypeOf(uint(0))
	Float32Type = reflect.TypeOf(float32(0))
	Float64Type = reflect.TypeOf(float64(0))
)

var primitives = map[reflect.Type]bool{
	BoolType: true, CharType: true,
	Int8Type: true, Int16Type: true, Int32Type: true, Int64Type: true, IntType: true,
	Uint8Type: true, Uint16Type: true, Uint32Type: true, Uint64Type: true, UintType: true,
	Float32Type: true, Float64Type: true,
}

// widening lists, per source primitive, every primitive it widens to without
// loss of magnitude. The relation is a strict partial order. uint32 widens to
// int only where int is 64 bits wide.
var widening = func() map[reflect.Type][]reflect.Type {
	m := map[reflect.Type][]reflect.Type{
		Int8Type:    {Int16Type, Int32Type, Int64Type, IntType, Float32Type, Float64Type},
		Int16Type:   {Int32Type, Int64Type, IntType, Float32Type, Float64Type},
		CharType:    {Int32Type, Int64Type, IntType, Float32Type, Float64Type},
		Uint8Type:   {Int16Type, Uint16Type, Int32Type, Uint32Type, Int64Type, Uint64Type, IntType, UintType, Float32Type, Float64Type},
		Uint16Type:  {Int32Type, Uint32Type, Int64Type, Uint64Type, IntType, UintType, Float32Type, Float64Type},
		Int32Type:   {Int64Type, IntType, Float32Type, Float64Type},
		Uint32Type:  {Int64Type, Uint64Type, UintType, Float32Type, Float64Type},
		IntType:     {Int64Type, Float32Type, Float64Type},
		UintType:    {Uint64Type, Float32Type, Float64Type},
		Int64Type:   {Float32Type, Float64Type},
		Uint64Type:  {Float32Type, Float64Type},
		Float32Type: {Float64Type},
	}
	if strconv.IntSize == 64 {
		m[Uint32Type] = append(m[Uint32Type], IntType)
	}
	return m
}()

var wideningSet = func() map[[2]reflect.Type]bool {
	m := make(map[[2]reflect.Type]bool)
	for from, tos := range widening {
		for _, to := range tos {
			m[[2]reflect.Type{to, from}] = true
		}
	}
	return m
}()

// IsPrimitive reports whether t is one of the primitive host types.
func IsPrimitive(t reflect.Type) bool {
	return t != nil && primitives[t]
}

// IsBoxed reports whether t is a pointer to a primitive.
func IsBoxed(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && primitives[t.Elem()]
}

// AsPrimitive returns the primitive behind t (t itself, or the element of a
// boxed pointer), or nil.
func AsPrimitive(t reflect.Type) reflect.Type {
	switch {
	case IsPrimitive(t):
		return t
	case IsBoxed(t):
		return t.Elem()
	}
	return nil
}

// IsNumeric reports whether t is a numeric primitive. Char and bool are not.
func IsNumeric(t reflect.Type) bool {
	return IsPrimitive(t) && t != BoolType && t != CharType
}

// IsIntegral reports whether t is an integer primitive.
func IsIntegral(t reflect.Type) bool {
	return IsNumeric(t) && t != Float32Type && t != Float64Type
}

// IsPrimitiveOrBigInt reports whether values of t are matched by value rather
// than by class during overload caching.
func IsPrimitiveOrBigInt(t reflect.Type) bool {
	return IsPrimitive(t) || IsBoxed(t) || t == BigIntType
}

// Widens reports whether from widens to to via the widening table.
func Widens(to, from reflect.Type) bool {
	return wideningSet[[2]reflect.Type{to, from}]
}

// IsNullable reports whether guest null can be represented in t.
func IsNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// IsAssignableFrom reports whether a value of type from may be used where to
// is expected, extended with the primitive rules overload ranking needs:
// primitive <: boxed, widening, char <: string and integer <: *big.Int.
func IsAssignableFrom(to, from reflect.Type) bool {
	if from.AssignableTo(to) {
		return true
	}
	fromPrim := AsPrimitive(from)
	toPrim := AsPrimitive(to)
	switch {
	case toPrim != nil && fromPrim != nil:
		if toPrim == fromPrim {
			// primitive <: boxed
			return IsPrimitive(from)
		}
		return Widens(toPrim, fromPrim)
	case fromPrim == CharType && to.Kind() == reflect.String:
		return true
	case toPrim == nil && fromPrim != nil && reflect.PointerTo(fromPrim).AssignableTo(to):
		return true
	case to == BigIntType && fromPrim != nil && IsIntegral(fromPrim):
		return true
	}
	return false
}

// IsSubtypeOf reports whether arg already is an instance of param without any
// conversion: same or widened primitive, or an assignable non-guest value.
// Values implementing interop.HostRef are unwrapped.
func IsSubtypeOf(arg any, param reflect.Type) bool {
	if ref, ok := arg.(interop.HostRef); ok {
		return !ref.IsStatic() && IsValueSubtypeOf(ref.HostValue(), param)
	}
	if interop.IsNull(arg) {
		return IsValueSubtypeOf(reflect.Value{}, param)
	}
	if IsGuestComposite(arg) {
		return false
	}
	return IsValueSubtypeOf(reflect.ValueOf(arg), param)
}

// IsValueSubtypeOf is IsSubtypeOf for an already unwrapped host value. The
// invalid value stands for null.
func IsValueSubtypeOf(value reflect.Value, param reflect.Type) bool {
	if !IsPrimitive(param) {
		if !value.IsValid() {
			return IsNullable(param)
		}
		return value.Type().AssignableTo(param)
	}
	if !value.IsValid() {
		return false
	}
	t := value.Type()
	if !IsPrimitive(t) {
		return false
	}
	return t == param || Widens(param, t)
}

// IsGuestComposite reports whether v is a guest-native composite value
// (function, array or object) rather than a plain Go value.
func IsGuestComposite(v any) bool {
	switch v.(type) {
	case interop.Executable, interop.ArrayValue, interop.MembersValue:
		return true
	}
	return false
}

// Name renders t for diagnostics.
func Name(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t == CharType {
		return "char"
	}
	return t.String()
}
