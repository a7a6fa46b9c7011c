package bridge

import (
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/config"
	"github.com/funvibe/hostinterop/internal/dispatch"
	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
)

// Invoke calls the member name on recv without a call-site cache.
func (b *Bridge) Invoke(recv any, name string, args ...any) (any, error) {
	h, err := b.receiver("invoke", recv)
	if err != nil {
		return nil, err
	}
	return b.invoke(nil, h, name, args)
}

func (b *Bridge) invoke(site *dispatch.CallSite, h *HostObject, name string, args []any) (any, error) {
	var recv reflect.Value
	if !h.static {
		if !h.value.IsValid() {
			return nil, &interop.UnsupportedMessageError{Message: "invoke " + name, Receiver: "nil host object"}
		}
		recv = h.value
	}
	if m := b.cache.LookupMethod(h.typ, name, h.static); m != nil {
		return b.exec.Execute(site, m, recv, args)
	}
	if f := b.cache.LookupField(h.typ, name, h.static); f != nil {
		return b.invokeField(f, recv, name, args)
	}
	b.logger.Debug("unknown host member", zap.String("type", h.typ.String()), zap.String("name", name))
	return nil, &interop.UnknownMemberError{Name: name, Type: h.typ}
}

// invokeField calls an executable field value.
func (b *Bridge) invokeField(f *member.Field, recv reflect.Value, name string, args []any) (any, error) {
	v, err := f.Get(recv)
	if err != nil {
		return nil, err
	}
	if fn, ok := b.ToGuest(v).(interop.Executable); ok {
		return fn.Execute(args...)
	}
	return nil, &interop.UnsupportedMessageError{Message: "invoke " + name, Receiver: f.Type.String()}
}

// ReadMember reads a field, or returns a method as a callable.
func (b *Bridge) ReadMember(recv any, name string) (any, error) {
	h, err := b.receiver("read", recv)
	if err != nil {
		return nil, err
	}
	return b.readMember(h, name, b.Kind(h))
}

func (b *Bridge) readMember(h *HostObject, name string, kind ReceiverKind) (any, error) {
	if h.static {
		return b.readStatic(h, name)
	}
	if !h.value.IsValid() {
		return nil, &interop.UnsupportedMessageError{Message: "read " + name, Receiver: "nil host object"}
	}
	if name == config.StaticMemberName && h.isClassObject() {
		return StaticClass(h.value.Interface().(reflect.Type)), nil
	}
	if f := b.cache.LookupField(h.typ, name, false); f != nil {
		v, err := f.Get(h.value)
		if err != nil {
			return nil, err
		}
		return b.ToGuest(v), nil
	}
	if m := b.cache.LookupMethod(h.typ, name, false); m != nil {
		return &HostFunction{b: b, member: m, recv: h.value, site: b.exec.NewSite(name)}, nil
	}
	if name == config.LengthMemberName && (kind == ArrayLike || kind == ListLike) {
		return b.Size(h)
	}
	return nil, &interop.UnknownMemberError{Name: name, Type: h.typ}
}

func (b *Bridge) readStatic(h *HostObject, name string) (any, error) {
	if name == config.ClassMemberName {
		return Wrap(reflect.ValueOf(h.typ)), nil
	}
	if f := b.cache.LookupField(h.typ, name, true); f != nil {
		v, err := f.Get(reflect.Value{})
		if err != nil {
			return nil, err
		}
		return b.ToGuest(v), nil
	}
	if m := b.cache.LookupMethod(h.typ, name, true); m != nil {
		return &HostFunction{b: b, member: m, site: b.exec.NewSite(name)}, nil
	}
	if nt, ok := b.cache.LookupNested(h.typ, name); ok {
		return StaticClass(nt), nil
	}
	return nil, &interop.UnknownMemberError{Name: name, Type: h.typ}
}

// WriteMember assigns a writable field, converting value to its type.
func (b *Bridge) WriteMember(recv any, name string, value any) error {
	h, err := b.receiver("write", recv)
	if err != nil {
		return err
	}
	f := b.cache.LookupField(h.typ, name, h.static)
	if f == nil {
		return &interop.UnknownMemberError{Name: name, Type: h.typ}
	}
	if !f.Writable {
		return &interop.UnsupportedMessageError{Message: "write " + name, Receiver: h.typ.String()}
	}
	rv, err := b.conv.Convert(value, f.Type, nil, coerce.ObjectTarget)
	if err != nil {
		return err
	}
	if err := f.Set(h.value, rv); err != nil {
		return &interop.UnsupportedMessageError{Message: "write " + name + ": " + err.Error(), Receiver: h.typ.String()}
	}
	return nil
}

// HasMember reports whether name is readable on recv.
func (b *Bridge) HasMember(recv any, name string) bool {
	h, err := b.receiver("read", recv)
	if err != nil {
		return false
	}
	for _, n := range b.members(h) {
		if n == name {
			return true
		}
	}
	return false
}

// Members lists the readable member names of recv, sorted.
func (b *Bridge) Members(recv any) ([]string, error) {
	h, err := b.receiver("members", recv)
	if err != nil {
		return nil, err
	}
	return b.members(h), nil
}

func (b *Bridge) members(h *HostObject) []string {
	if h.typ == nil {
		return nil
	}
	names := b.cache.MemberNames(h.typ, h.static)
	switch {
	case h.static:
		names = append(names, config.ClassMemberName)
	case h.isClassObject():
		names = append(names, config.StaticMemberName)
	}
	if k := b.Kind(h); k == ArrayLike || k == ListLike {
		names = append(names, config.LengthMemberName)
	}
	sort.Strings(names)
	return dedupe(names)
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// Construct instantiates the class of a static handle.
func (b *Bridge) Construct(recv any, args ...any) (any, error) {
	h, err := b.receiver("instantiate", recv)
	if err != nil {
		return nil, err
	}
	return b.construct(nil, h, args)
}

func (b *Bridge) construct(site *dispatch.CallSite, h *HostObject, args []any) (any, error) {
	if !h.static {
		return nil, &interop.UnsupportedMessageError{Message: "instantiate", Receiver: h.String()}
	}
	ctor := b.cache.LookupConstructor(h.typ)
	if ctor == nil {
		return nil, &interop.UnsupportedMessageError{Message: "instantiate", Receiver: h.String()}
	}
	return b.exec.Execute(site, ctor, reflect.Value{}, args)
}

// Execute calls a guest-callable value.
func (b *Bridge) Execute(fn any, args ...any) (any, error) {
	switch f := fn.(type) {
	case interop.Executable:
		return f.Execute(args...)
	case *HostObject:
		if f.value.IsValid() && f.value.Kind() == reflect.Func {
			if hf, ok := b.ToGuest(f.value).(*HostFunction); ok {
				return hf.Execute(args...)
			}
		}
	}
	return nil, &interop.UnsupportedMessageError{Message: "execute", Receiver: interop.Describe(fn)}
}
