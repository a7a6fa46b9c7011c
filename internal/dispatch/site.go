// Package dispatch caches overload decisions per guest call site and invokes
// host members.
package dispatch

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funvibe/hostinterop/internal/member"
	"github.com/funvibe/hostinterop/internal/overload"
)

// State is the cache state of a call site.
type State int

const (
	Uninitialized State = iota
	Monomorphic
	Polymorphic
	Generic
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Monomorphic:
		return "monomorphic"
	case Polymorphic:
		return "polymorphic"
	case Generic:
		return "generic"
	}
	return "unknown"
}

// Event describes one call-site state transition.
type Event struct {
	Site   uuid.UUID
	Name   string
	From   State
	To     State
	Method string
	Shape  string
	At     time.Time
}

// Reporter receives call-site transitions.
type Reporter interface {
	Report(ev Event)
}

type entry struct {
	member member.Member
	method *member.Method
	shape  overload.Shape
}

type siteState struct {
	kind    State
	entries []*entry
}

var uninitialized = &siteState{kind: Uninitialized}

// CallSite holds the cached dispatch decisions of one guest call site. The
// state is read without locks and replaced by compare-and-swap.
type CallSite struct {
	ID   uuid.UUID
	Name string

	limit int
	state atomic.Pointer[siteState]
}

func newCallSite(name string, limit int) *CallSite {
	s := &CallSite{ID: uuid.New(), Name: name, limit: limit}
	s.state.Store(uninitialized)
	return s
}

// State returns the current cache state.
func (s *CallSite) State() State {
	return s.state.Load().kind
}

// Entries returns the number of installed shapes.
func (s *CallSite) Entries() int {
	return len(s.state.Load().entries)
}

func (s *CallSite) lookup(st *siteState, m member.Member, e *Executor, args []any) *entry {
	for _, en := range st.entries {
		if en.member != m {
			continue
		}
		if en.shape == nil || en.shape.Matches(e.conv, args) {
			return en
		}
	}
	return nil
}

// install publishes en on top of old. A writer losing the race discards its
// entry; the next miss retries.
func (s *CallSite) install(old *siteState, en *entry, e *Executor) {
	if old.kind == Generic {
		return
	}
	next := &siteState{}
	if len(old.entries) >= s.limit {
		next.kind = Generic
	} else {
		next.entries = make([]*entry, 0, len(old.entries)+1)
		next.entries = append(next.entries, old.entries...)
		next.entries = append(next.entries, en)
		next.kind = Monomorphic
		if len(next.entries) > 1 {
			next.kind = Polymorphic
		}
	}
	if !s.state.CompareAndSwap(old, next) {
		return
	}
	ev := Event{
		Site:   s.ID,
		Name:   s.Name,
		From:   old.kind,
		To:     next.kind,
		Method: en.method.String(),
		At:     time.Now(),
	}
	if en.shape != nil {
		ev.Shape = en.shape.String()
	}
	e.logger.Debug("call site transition",
		zap.String("site", s.ID.String()),
		zap.String("name", s.Name),
		zap.Stringer("from", old.kind),
		zap.Stringer("to", next.kind),
		zap.String("method", ev.Method),
		zap.String("shape", ev.Shape))
	if e.reporter != nil {
		e.reporter.Report(ev)
	}
}
