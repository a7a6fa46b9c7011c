package hostinterop

import (
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/funvibe/hostinterop/internal/bridge"
	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/interop"
)

// Marshaller handles conversion between Go values and guest values.
//
// Plain data (numbers, strings, slices, string-keyed maps, structs by value)
// is copied into guest form. References (pointers, funcs, channels) cross as
// host objects and keep their identity.
type Marshaller struct {
	b *bridge.Bridge
}

func NewMarshaller(b *bridge.Bridge) *Marshaller {
	return &Marshaller{b: b}
}

// ToValue converts a Go value to a guest value.
func (m *Marshaller) ToValue(val any) (any, error) {
	if val == nil {
		return interop.Null, nil
	}
	switch x := val.(type) {
	case interop.HostRef, interop.Executable, interop.ArrayValue, interop.MembersValue, interop.Char, *big.Int:
		return x, nil
	}
	if interop.IsNull(val) {
		return interop.Null, nil
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := v.Uint(); u > math.MaxInt64 {
			return new(big.Int).SetUint64(u), nil
		}
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Slice:
		if v.IsNil() {
			return interop.Null, nil
		}
		return m.sliceToArray(v)
	case reflect.Array:
		return m.sliceToArray(v)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			// Maps with other keys stay host maps.
			return m.b.ToGuest(v), nil
		}
		return m.mapToObject(v)
	case reflect.Struct:
		// Struct by value -> guest object (copy)
		return m.structToObject(v)
	default:
		// Pointers, funcs and channels keep their identity.
		return m.b.ToGuest(v), nil
	}
}

// ToValues converts an argument list.
func (m *Marshaller) ToValues(vals []any) ([]any, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		g, err := m.ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = g
	}
	return out, nil
}

// FromValue converts a guest value to a Go value.
// targetType is optional; if provided, the value is coerced to that type the
// same way host call arguments are.
func (m *Marshaller) FromValue(obj any, targetType reflect.Type) (any, error) {
	if targetType != nil {
		rv, err := m.b.Converter().Convert(obj, targetType, nil, coerce.ObjectTarget)
		if err != nil {
			return nil, err
		}
		return rv.Interface(), nil
	}

	if interop.IsNull(obj) {
		return nil, nil
	}
	switch o := obj.(type) {
	case interop.HostRef:
		if o.IsStatic() {
			return o.LookupType(), nil
		}
		if !o.HostValue().IsValid() {
			return nil, nil
		}
		return o.HostValue().Interface(), nil
	case interop.ArrayValue:
		return m.arrayToSlice(o)
	case interop.MembersValue:
		return m.objectToMap(o)
	}
	return obj, nil
}

func (m *Marshaller) sliceToArray(v reflect.Value) (interop.Array, error) {
	elements := make(interop.Array, v.Len())
	for i := 0; i < v.Len(); i++ {
		val, err := m.ToValue(v.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		elements[i] = val
	}
	return elements, nil
}

func (m *Marshaller) mapToObject(v reflect.Value) (interop.Object, error) {
	result := make(interop.Object, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		val, err := m.ToValue(iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("map value %s: %w", iter.Key().String(), err)
		}
		result[iter.Key().String()] = val
	}
	return result, nil
}

func (m *Marshaller) structToObject(v reflect.Value) (interop.Object, error) {
	fields := make(interop.Object)
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		val, err := m.ToValue(v.Field(i).Interface())
		if err != nil {
			return nil, err
		}
		fields[field.Name] = val
	}
	return fields, nil
}

func (m *Marshaller) arrayToSlice(a interop.ArrayValue) ([]any, error) {
	out := make([]any, a.Len())
	for i := range out {
		el, err := a.Index(i)
		if err != nil {
			return nil, err
		}
		if out[i], err = m.FromValue(el, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *Marshaller) objectToMap(o interop.MembersValue) (map[string]any, error) {
	result := make(map[string]any)
	for _, k := range o.Keys() {
		el, _ := o.Member(k)
		val, err := m.FromValue(el, nil)
		if err != nil {
			return nil, err
		}
		result[k] = val
	}
	return result, nil
}
