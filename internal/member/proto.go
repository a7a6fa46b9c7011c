package member

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// ProtoIntrospector exposes protobuf message fields by their proto names.
// Methods and non-message types are delegated to Base.
type ProtoIntrospector struct {
	Base Introspector
}

func (p ProtoIntrospector) base() Introspector {
	if p.Base == nil {
		return ReflectIntrospector{}
	}
	return p.Base
}

func (p ProtoIntrospector) Methods(t reflect.Type) []*Method {
	return p.base().Methods(t)
}

func (p ProtoIntrospector) Constructors(t reflect.Type) []*Method {
	return p.base().Constructors(t)
}

func (p ProtoIntrospector) Fields(t reflect.Type) []*Field {
	md, ok := messageDescriptor(t)
	if !ok {
		return p.base().Fields(t)
	}
	return ProtoFields(md, t)
}

// messageDescriptor resolves the descriptor of a generated message type from
// its nil pointer. Dynamic messages carry no static descriptor.
func messageDescriptor(t reflect.Type) (md protoreflect.MessageDescriptor, ok bool) {
	if t.Kind() != reflect.Pointer || !t.Implements(protoMessageType) {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			md, ok = nil, false
		}
	}()
	msg := reflect.Zero(t).Interface().(proto.Message)
	md = msg.ProtoReflect().Descriptor()
	return md, md != nil
}

// ProtoFields describes every field of md. declaring is recorded on the
// descriptors; receivers must be proto.Message values of that shape.
func ProtoFields(md protoreflect.MessageDescriptor, declaring reflect.Type) []*Field {
	fds := md.Fields()
	out := make([]*Field, 0, fds.Len())
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		out = append(out, &Field{
			Name:      string(fd.Name()),
			Declaring: declaring,
			Type:      ProtoFieldType(fd),
			Writable:  !fd.IsList() && !fd.IsMap(),
			get:       protoGetter(fd),
			set:       protoSetter(fd),
		})
	}
	return out
}

// ProtoFieldType maps a field descriptor to the Go type its values read as.
// Repeated fields read as []any and maps as map[any]any snapshots.
func ProtoFieldType(fd protoreflect.FieldDescriptor) reflect.Type {
	switch {
	case fd.IsList():
		return reflect.TypeOf([]any(nil))
	case fd.IsMap():
		return reflect.TypeOf(map[any]any(nil))
	}
	return protoKindType(fd.Kind())
}

func protoKindType(k protoreflect.Kind) reflect.Type {
	switch k {
	case protoreflect.BoolKind:
		return reflect.TypeOf(false)
	case protoreflect.EnumKind, protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return reflect.TypeOf(int32(0))
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return reflect.TypeOf(uint32(0))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return reflect.TypeOf(int64(0))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return reflect.TypeOf(uint64(0))
	case protoreflect.FloatKind:
		return reflect.TypeOf(float32(0))
	case protoreflect.DoubleKind:
		return reflect.TypeOf(float64(0))
	case protoreflect.StringKind:
		return reflect.TypeOf("")
	case protoreflect.BytesKind:
		return reflect.TypeOf([]byte(nil))
	}
	return protoMessageType
}

func asMessage(recv reflect.Value) (protoreflect.Message, error) {
	if !recv.IsValid() || (recv.Kind() == reflect.Pointer && recv.IsNil()) {
		return nil, fmt.Errorf("nil message receiver")
	}
	msg, ok := recv.Interface().(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%s is not a proto message", recv.Type())
	}
	return msg.ProtoReflect(), nil
}

func protoScalar(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		return int32(v.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return v.Message().Interface()
	}
	return v.Interface()
}

func protoGetter(fd protoreflect.FieldDescriptor) func(reflect.Value) (reflect.Value, error) {
	return func(recv reflect.Value) (reflect.Value, error) {
		m, err := asMessage(recv)
		if err != nil {
			return reflect.Value{}, err
		}
		switch {
		case fd.IsList():
			l := m.Get(fd).List()
			out := make([]any, l.Len())
			for i := range out {
				out[i] = protoScalar(fd, l.Get(i))
			}
			return reflect.ValueOf(out), nil
		case fd.IsMap():
			mp := m.Get(fd).Map()
			out := make(map[any]any, mp.Len())
			mp.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
				out[k.Interface()] = protoScalar(fd.MapValue(), v)
				return true
			})
			return reflect.ValueOf(out), nil
		case fd.Message() != nil:
			if !m.Has(fd) {
				return reflect.Zero(protoMessageType), nil
			}
		}
		return reflect.ValueOf(protoScalar(fd, m.Get(fd))), nil
	}
}

func protoSetter(fd protoreflect.FieldDescriptor) func(reflect.Value, reflect.Value) error {
	return func(recv, v reflect.Value) (err error) {
		m, err := asMessage(recv)
		if err != nil {
			return err
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("set %s: %v", fd.FullName(), r)
			}
		}()
		var pv protoreflect.Value
		switch fd.Kind() {
		case protoreflect.EnumKind:
			pv = protoreflect.ValueOfEnum(protoreflect.EnumNumber(v.Int()))
		case protoreflect.MessageKind, protoreflect.GroupKind:
			if !v.IsValid() || v.IsNil() {
				m.Clear(fd)
				return nil
			}
			msg, ok := v.Interface().(proto.Message)
			if !ok {
				return fmt.Errorf("set %s: %s is not a proto message", fd.FullName(), v.Type())
			}
			pv = protoreflect.ValueOfMessage(msg.ProtoReflect())
		default:
			pv = protoreflect.ValueOf(v.Interface())
		}
		m.Set(fd, pv)
		return nil
	}
}
