package dispatch

import (
	"errors"
	"reflect"

	"go.uber.org/zap"

	"github.com/funvibe/hostinterop/internal/coerce"
	"github.com/funvibe/hostinterop/internal/config"
	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
	"github.com/funvibe/hostinterop/internal/overload"
)

// Executor resolves and invokes host members, using call sites to skip
// overload resolution for argument shapes seen before.
type Executor struct {
	conv     *coerce.Converter
	resolver *overload.Resolver
	toGuest  interop.ToGuestFunc
	wrap     interop.ExceptionWrapper
	logger   *zap.Logger
	reporter Reporter
	limit    int
}

type Option func(*Executor)

func WithConverter(c *coerce.Converter) Option {
	return func(e *Executor) { e.conv = c }
}

func WithToGuest(fn interop.ToGuestFunc) Option {
	return func(e *Executor) { e.toGuest = fn }
}

func WithExceptionWrapper(fn interop.ExceptionWrapper) Option {
	return func(e *Executor) { e.wrap = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func WithReporter(r Reporter) Option {
	return func(e *Executor) { e.reporter = r }
}

// WithCacheLimit sets how many shapes a call site caches before going
// generic.
func WithCacheLimit(n int) Option {
	return func(e *Executor) { e.limit = n }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		toGuest: interop.DefaultToGuest,
		wrap:    interop.DefaultExceptionWrapper,
		logger:  zap.NewNop(),
		limit:   config.DefaultCacheLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.conv == nil {
		e.conv = coerce.New()
	}
	e.resolver = overload.NewResolver(e.conv)
	return e
}

func (e *Executor) Converter() *coerce.Converter { return e.conv }

func (e *Executor) Resolver() *overload.Resolver { return e.resolver }

// NewSite creates a call site for the member name.
func (e *Executor) NewSite(name string) *CallSite {
	return newCallSite(name, e.limit)
}

// Execute invokes m on recv with args. recv is ignored for static members.
// A nil site resolves without caching.
func (e *Executor) Execute(site *CallSite, m member.Member, recv reflect.Value, args []any) (any, error) {
	if site == nil {
		sel, err := e.resolver.Select(m, args)
		if err != nil {
			return nil, err
		}
		return e.invoke(sel, recv, args)
	}
	st := site.state.Load()
	if st.kind != Generic {
		if en := site.lookup(st, m, e, args); en != nil {
			return e.invoke(en.method, recv, args)
		}
	}
	sel, shape, err := e.resolver.SelectShaped(m, args)
	if err != nil {
		return nil, err
	}
	site.install(st, &entry{member: m, method: sel, shape: shape}, e)
	return e.invoke(sel, recv, args)
}

func (e *Executor) invoke(m *member.Method, recv reflect.Value, args []any) (any, error) {
	in, err := e.conv.PrepareArgs(m, args)
	if err != nil {
		return nil, err
	}
	out, err := m.Call(recv, in)
	if err != nil {
		var pe *member.PanicError
		if errors.As(err, &pe) {
			e.logger.Debug("host call panicked", zap.String("member", m.Name), zap.Any("value", pe.Value))
			return nil, e.wrap(m.Name, panicCause(pe), true)
		}
		return nil, err
	}
	return e.Results(m, out)
}

func panicCause(pe *member.PanicError) error {
	if err, ok := pe.Value.(error); ok {
		return err
	}
	return pe
}

// Results converts the Go results of m to one guest value. A non-nil trailing
// error becomes a native invocation failure.
func (e *Executor) Results(m *member.Method, out []reflect.Value) (any, error) {
	if m.ReturnsError() {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, e.wrap(m.Name, last.Interface().(error), false)
		}
	}
	switch len(out) {
	case 0:
		return interop.Null, nil
	case 1:
		return e.toGuest(out[0]), nil
	}
	tuple := make(interop.Tuple, len(out))
	for i, v := range out {
		tuple[i] = e.toGuest(v)
	}
	return tuple, nil
}
