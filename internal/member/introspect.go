package member

import (
	"fmt"
	"reflect"
)

// Introspector enumerates the members of a host type.
type Introspector interface {
	Methods(t reflect.Type) []*Method
	Fields(t reflect.Type) []*Field
	Constructors(t reflect.Type) []*Method
}

// ReflectIntrospector lists exported methods and struct fields via reflect.
type ReflectIntrospector struct{}

func (ReflectIntrospector) Methods(t reflect.Type) []*Method {
	if t.Kind() == reflect.Interface {
		return nil
	}
	out := make([]*Method, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		if !t.Method(i).IsExported() {
			continue
		}
		out = append(out, NewBoundMethod(t, i))
	}
	return out
}

func (ReflectIntrospector) Fields(t reflect.Type) []*Field {
	st := t
	writable := false
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
		writable = true
	}
	if st.Kind() != reflect.Struct {
		return nil
	}
	var out []*Field
	for _, sf := range reflect.VisibleFields(st) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		out = append(out, structField(t, sf, writable))
	}
	return out
}

func structField(declaring reflect.Type, sf reflect.StructField, writable bool) *Field {
	index := sf.Index
	target := func(recv reflect.Value) (reflect.Value, error) {
		for recv.Kind() == reflect.Pointer || recv.Kind() == reflect.Interface {
			if recv.IsNil() {
				return reflect.Value{}, fmt.Errorf("field %s: nil receiver", sf.Name)
			}
			recv = recv.Elem()
		}
		return recv.FieldByIndexErr(index)
	}
	return &Field{
		Name:      sf.Name,
		Declaring: declaring,
		Type:      sf.Type,
		Writable:  writable,
		get:       target,
		set: func(recv, v reflect.Value) error {
			fv, err := target(recv)
			if err != nil {
				return err
			}
			if !fv.CanSet() {
				return fmt.Errorf("field %s is not addressable", sf.Name)
			}
			fv.Set(v)
			return nil
		},
	}
}

// Constructors returns the zero-value constructor Go types get for free:
// new(T) for structs, make for maps and a length constructor for slices.
func (ReflectIntrospector) Constructors(t reflect.Type) []*Method {
	var fn reflect.Value
	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		fn = reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{t}, false), func([]reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.New(t.Elem())}
		})
	case t.Kind() == reflect.Struct:
		fn = reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{t}, false), func([]reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.New(t).Elem()}
		})
	case t.Kind() == reflect.Map:
		fn = reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{t}, false), func([]reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.MakeMap(t)}
		})
	case t.Kind() == reflect.Slice:
		intType := reflect.TypeOf(0)
		fn = reflect.MakeFunc(reflect.FuncOf([]reflect.Type{intType}, []reflect.Type{t}, false), func(in []reflect.Value) []reflect.Value {
			n := int(in[0].Int())
			if n < 0 {
				panic(fmt.Sprintf("negative length %d", n))
			}
			return []reflect.Value{reflect.MakeSlice(t, n, n)}
		})
	default:
		return nil
	}
	m := newMethod("new", t, fn, false, true)
	return []*Method{m}
}
