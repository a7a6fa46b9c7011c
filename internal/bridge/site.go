package bridge

import (
	"reflect"
	"sync/atomic"

	"github.com/funvibe/hostinterop/internal/config"
	"github.com/funvibe/hostinterop/internal/dispatch"
)

type kindEntry struct {
	typ  reflect.Type
	kind ReceiverKind
}

// InvokeSite is a guest call site invoking one member name. Overload
// decisions are cached in its dispatch.CallSite.
type InvokeSite struct {
	b    *Bridge
	name string
	site *dispatch.CallSite
}

// NewInvokeSite creates a call site for invoking name.
func (b *Bridge) NewInvokeSite(name string) *InvokeSite {
	return &InvokeSite{b: b, name: name, site: b.exec.NewSite(name)}
}

// CallSite exposes the dispatch cache of the site.
func (s *InvokeSite) CallSite() *dispatch.CallSite { return s.site }

// Invoke calls the bound member on recv.
func (s *InvokeSite) Invoke(recv any, args ...any) (any, error) {
	h, err := s.b.receiver("invoke", recv)
	if err != nil {
		return nil, err
	}
	return s.b.invoke(s.site, h, s.name, args)
}

// ReadSite is a guest site reading one member name.
type ReadSite struct {
	b    *Bridge
	name string
	site *dispatch.CallSite
	last atomic.Pointer[kindEntry]
}

// NewReadSite creates a site reading name.
func (b *Bridge) NewReadSite(name string) *ReadSite {
	return &ReadSite{b: b, name: name, site: b.exec.NewSite(name)}
}

// Read reads the bound member of recv.
func (s *ReadSite) Read(recv any) (any, error) {
	h, err := s.b.receiver("read", recv)
	if err != nil {
		return nil, err
	}
	v, err := s.b.readMember(h, s.name, s.Kind(h))
	if err != nil {
		return nil, err
	}
	if hf, ok := v.(*HostFunction); ok {
		// Bound methods read here share the site's dispatch cache.
		hf.site = s.site
	}
	return v, nil
}

// Kind classifies recv, remembering the last receiver type seen here.
func (s *ReadSite) Kind(h *HostObject) ReceiverKind {
	return cachedKind(&s.last, s.b, h)
}

// ConstructSite is a guest site instantiating classes.
type ConstructSite struct {
	b    *Bridge
	site *dispatch.CallSite
}

func (b *Bridge) NewConstructSite() *ConstructSite {
	return &ConstructSite{b: b, site: b.exec.NewSite(config.ConstructorMemberName)}
}

// Construct instantiates the class of a static handle.
func (s *ConstructSite) Construct(recv any, args ...any) (any, error) {
	h, err := s.b.receiver("instantiate", recv)
	if err != nil {
		return nil, err
	}
	return s.b.construct(s.site, h, args)
}

func cachedKind(last *atomic.Pointer[kindEntry], b *Bridge, h *HostObject) ReceiverKind {
	if h.static {
		return ClassHandle
	}
	if e := last.Load(); e != nil && e.typ == h.typ {
		return e.kind
	}
	k := b.Kind(h)
	last.Store(&kindEntry{typ: h.typ, kind: k})
	return k
}
