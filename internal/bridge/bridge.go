// Package bridge exposes host objects to guest code: member invocation, field
// access, construction and the array, list and map protocols.
package bridge

import (
	"math/big"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/config"
	"github.com/funvibe/hostinterop/internal/dispatch"
	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
)

// ReceiverKind classifies receivers for element and member access.
type ReceiverKind int

const (
	PlainObject ReceiverKind = iota
	ArrayLike
	ListLike
	MapLike
	ClassHandle
)

func (k ReceiverKind) String() string {
	switch k {
	case ArrayLike:
		return "array"
	case ListLike:
		return "list"
	case MapLike:
		return "map"
	case ClassHandle:
		return "class"
	}
	return "object"
}

// Bridge answers guest messages sent to host objects.
type Bridge struct {
	cache  *member.Cache
	conv   *coerce.Converter
	exec   *dispatch.Executor
	logger *zap.Logger

	kinds sync.Map // reflect.Type -> ReceiverKind
}

type settings struct {
	cache    *member.Cache
	logger   *zap.Logger
	limit    int
	lossless bool
	reporter dispatch.Reporter
	wrap     interop.ExceptionWrapper
}

type Option func(*settings)

func WithCache(c *member.Cache) Option {
	return func(s *settings) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func WithCacheLimit(n int) Option {
	return func(s *settings) { s.limit = n }
}

func WithLosslessNarrowing(on bool) Option {
	return func(s *settings) { s.lossless = on }
}

func WithReporter(r dispatch.Reporter) Option {
	return func(s *settings) { s.reporter = r }
}

func WithExceptionWrapper(fn interop.ExceptionWrapper) Option {
	return func(s *settings) { s.wrap = fn }
}

func New(opts ...Option) *Bridge {
	s := settings{
		limit:    config.DefaultCacheLimit,
		lossless: config.DefaultLosslessNarrowing,
		logger:   zap.NewNop(),
		wrap:     interop.DefaultExceptionWrapper,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.cache == nil {
		s.cache = member.NewCache(member.WithLogger(s.logger))
	}
	b := &Bridge{cache: s.cache, logger: s.logger}
	b.conv = coerce.New(
		coerce.WithToGuest(b.ToGuest),
		coerce.WithLosslessNarrowing(s.lossless),
	)
	b.exec = dispatch.NewExecutor(
		dispatch.WithConverter(b.conv),
		dispatch.WithToGuest(b.ToGuest),
		dispatch.WithExceptionWrapper(s.wrap),
		dispatch.WithLogger(s.logger),
		dispatch.WithReporter(s.reporter),
		dispatch.WithCacheLimit(s.limit),
	)
	return b
}

func (b *Bridge) Cache() *member.Cache { return b.cache }

func (b *Bridge) Converter() *coerce.Converter { return b.conv }

func (b *Bridge) Executor() *dispatch.Executor { return b.exec }

// ToGuest converts a host value crossing into the guest. Primitives, strings
// and big integers pass through; nil references become Null; guest values
// returned by host code are unwrapped; funcs become HostFunctions; anything
// else is wrapped in a HostObject.
func (b *Bridge) ToGuest(v reflect.Value) any {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return interop.Null
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return interop.Null
	}
	t := v.Type()
	if hosttype.IsPrimitive(t) || t == hosttype.StringType {
		return v.Interface()
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return interop.Null
		}
	}
	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case *big.Int:
			return x
		case interop.HostRef, interop.Executable, interop.ArrayValue, interop.MembersValue:
			return x
		}
	}
	if v.Kind() == reflect.Func {
		fn, err := member.NewFunc("func", t, v.Interface())
		if err == nil {
			return &HostFunction{b: b, member: fn, site: b.exec.NewSite(fn.Name)}
		}
	}
	return Wrap(v)
}

// receiver turns a guest receiver into a host object.
func (b *Bridge) receiver(msg string, recv any) (*HostObject, error) {
	switch r := recv.(type) {
	case *HostObject:
		return r, nil
	case interop.HostRef:
		if r.IsStatic() {
			return StaticClass(r.LookupType()), nil
		}
		return Wrap(r.HostValue()), nil
	}
	if interop.IsNull(recv) {
		return nil, &interop.UnsupportedMessageError{Message: msg, Receiver: "null"}
	}
	return NewHostObject(recv), nil
}

// Kind classifies a receiver. The classification is computed once per type.
func (b *Bridge) Kind(h *HostObject) ReceiverKind {
	if h.static {
		return ClassHandle
	}
	if h.typ == nil {
		return PlainObject
	}
	if k, ok := b.kinds.Load(h.typ); ok {
		return k.(ReceiverKind)
	}
	k := classify(h.typ)
	b.kinds.Store(h.typ, k)
	return k
}

func classify(t reflect.Type) ReceiverKind {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return ArrayLike
	case reflect.Map:
		return MapLike
	case reflect.Pointer:
		switch t.Elem().Kind() {
		case reflect.Slice:
			return ListLike
		case reflect.Array:
			return ArrayLike
		}
	}
	return PlainObject
}
