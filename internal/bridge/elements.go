package bridge

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/interop"
)

// Size returns the element count of an array, list or map receiver.
func (b *Bridge) Size(recv any) (int, error) {
	h, err := b.receiver("size", recv)
	if err != nil {
		return 0, err
	}
	switch b.Kind(h) {
	case ArrayLike, MapLike:
		if nilPointer(h.value) {
			return 0, nil
		}
		return indirect(h.value).Len(), nil
	case ListLike:
		if h.value.IsNil() {
			return 0, nil
		}
		return h.value.Elem().Len(), nil
	}
	return 0, unsupported("size", h)
}

// ReadElement reads the element at idx of an array or list receiver.
func (b *Bridge) ReadElement(recv any, idx int64) (any, error) {
	h, err := b.receiver("read element", recv)
	if err != nil {
		return nil, err
	}
	seq, err := b.sequence("read element", h)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= int64(seq.Len()) {
		return nil, &interop.InvalidIndexError{Index: idx, Size: seq.Len()}
	}
	return b.ToGuest(seq.Index(int(idx))), nil
}

// WriteElement sets the element at idx. Lists grow by one when idx equals
// their size.
func (b *Bridge) WriteElement(recv any, idx int64, value any) error {
	h, err := b.receiver("write element", recv)
	if err != nil {
		return err
	}
	seq, err := b.sequence("write element", h)
	if err != nil {
		return err
	}
	rv, err := b.conv.Convert(value, seq.Type().Elem(), nil, coerce.ObjectTarget)
	if err != nil {
		return err
	}
	n := int64(seq.Len())
	if b.Kind(h) == ListLike && idx == n {
		h.value.Elem().Set(reflect.Append(seq, rv))
		return nil
	}
	if idx < 0 || idx >= n {
		return &interop.InvalidIndexError{Index: idx, Size: int(n)}
	}
	el := seq.Index(int(idx))
	if !el.CanSet() {
		return unsupported("write element", h)
	}
	el.Set(rv)
	return nil
}

// RemoveElement deletes the element at idx of a list receiver.
func (b *Bridge) RemoveElement(recv any, idx int64) error {
	h, err := b.receiver("remove element", recv)
	if err != nil {
		return err
	}
	if b.Kind(h) != ListLike || h.value.IsNil() {
		return unsupported("remove element", h)
	}
	s := h.value.Elem()
	n := s.Len()
	if idx < 0 || idx >= int64(n) {
		return &interop.InvalidIndexError{Index: idx, Size: n}
	}
	i := int(idx)
	shrunk := reflect.AppendSlice(s.Slice(0, i), s.Slice(i+1, n))
	s.Index(n - 1).Set(reflect.Zero(s.Type().Elem()))
	h.value.Elem().Set(shrunk)
	return nil
}

func (b *Bridge) sequence(msg string, h *HostObject) (reflect.Value, error) {
	switch b.Kind(h) {
	case ArrayLike:
		if !nilPointer(h.value) {
			return indirect(h.value), nil
		}
	case ListLike:
		if !h.value.IsNil() {
			return h.value.Elem(), nil
		}
	}
	return reflect.Value{}, unsupported(msg, h)
}

// ReadKey reads the value stored under key in a map receiver.
func (b *Bridge) ReadKey(recv any, key any) (any, error) {
	_, m, k, err := b.mapKey("read key", recv, key)
	if err != nil {
		return nil, err
	}
	v := m.MapIndex(k)
	if !v.IsValid() {
		return nil, &interop.InvalidIndexError{Key: key}
	}
	return b.ToGuest(v), nil
}

// WriteKey stores value under key in a map receiver.
func (b *Bridge) WriteKey(recv any, key, value any) error {
	h, m, k, err := b.mapKey("write key", recv, key)
	if err != nil {
		return err
	}
	if m.IsNil() {
		return unsupported("write key", h)
	}
	rv, err := b.conv.Convert(value, m.Type().Elem(), nil, coerce.ObjectTarget)
	if err != nil {
		return err
	}
	m.SetMapIndex(k, rv)
	return nil
}

// RemoveKey deletes key from a map receiver.
func (b *Bridge) RemoveKey(recv any, key any) error {
	_, m, k, err := b.mapKey("remove key", recv, key)
	if err != nil {
		return err
	}
	if !m.MapIndex(k).IsValid() {
		return &interop.InvalidIndexError{Key: key}
	}
	m.SetMapIndex(k, reflect.Value{})
	return nil
}

// HasKey reports whether a map receiver contains key.
func (b *Bridge) HasKey(recv any, key any) (bool, error) {
	_, m, k, err := b.mapKey("has key", recv, key)
	if err != nil {
		return false, err
	}
	return m.MapIndex(k).IsValid(), nil
}

// Keys lists the keys of a map receiver in a stable order.
func (b *Bridge) Keys(recv any) ([]any, error) {
	h, err := b.receiver("keys", recv)
	if err != nil {
		return nil, err
	}
	if b.Kind(h) != MapLike {
		return nil, unsupported("keys", h)
	}
	mk := h.value.MapKeys()
	sort.Slice(mk, func(i, j int) bool {
		return fmt.Sprint(mk[i].Interface()) < fmt.Sprint(mk[j].Interface())
	})
	keys := make([]any, len(mk))
	for i, k := range mk {
		keys[i] = b.ToGuest(k)
	}
	return keys, nil
}

func (b *Bridge) mapKey(msg string, recv, key any) (*HostObject, reflect.Value, reflect.Value, error) {
	h, err := b.receiver(msg, recv)
	if err != nil {
		return nil, reflect.Value{}, reflect.Value{}, err
	}
	if b.Kind(h) != MapLike {
		return nil, reflect.Value{}, reflect.Value{}, unsupported(msg, h)
	}
	k, err := b.conv.Convert(key, h.typ.Key(), nil, coerce.ObjectTarget)
	if err != nil {
		return nil, reflect.Value{}, reflect.Value{}, err
	}
	return h, h.value, k, nil
}

func indirect(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Pointer {
		return v.Elem()
	}
	return v
}

func nilPointer(v reflect.Value) bool {
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func unsupported(msg string, h *HostObject) error {
	return &interop.UnsupportedMessageError{Message: msg, Receiver: h.String()}
}
