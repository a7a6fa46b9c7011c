package dispatch

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.To
	}
	return out
}

func overloads(t *testing.T) *member.Overloaded {
	t.Helper()
	g := &member.Overloaded{Name: "f"}
	for _, fn := range []any{
		func(n int32) string { return fmt.Sprintf("int32:%d", n) },
		func(n int64) string { return fmt.Sprintf("int64:%d", n) },
		func(x float64) string { return fmt.Sprintf("float64:%g", x) },
	} {
		m, err := member.NewFunc("f", nil, fn)
		if err != nil {
			t.Fatal(err)
		}
		g.Overloads = append(g.Overloads, m)
	}
	return g
}

func TestCachedMatchesUncached(t *testing.T) {
	e := NewExecutor()
	g := overloads(t)
	site := e.NewSite("f")
	calls := [][]any{
		{int64(5)}, {int64(5000000000)}, {int64(6)}, {2.0}, {1.5},
		{interop.Char('a')}, {int64(-7)}, {2.5}, {int64(1 << 40)}, {int64(5)},
	}
	for _, args := range calls {
		cached, err := e.Execute(site, g, reflect.Value{}, args)
		if err != nil {
			t.Fatalf("cached %v: %v", args, err)
		}
		uncached, err := e.Execute(nil, g, reflect.Value{}, args)
		if err != nil {
			t.Fatalf("uncached %v: %v", args, err)
		}
		if cached != uncached {
			t.Errorf("%v: cached %v, uncached %v", args, cached, uncached)
		}
	}
}

func TestSiteTransitions(t *testing.T) {
	rec := &recorder{}
	e := NewExecutor(WithReporter(rec), WithCacheLimit(3))
	g := overloads(t)
	site := e.NewSite("f")

	if site.State() != Uninitialized {
		t.Fatalf("new site is %s", site.State())
	}
	steps := []struct {
		args  []any
		want  string
		state State
	}{
		{[]any{int64(5)}, "int32:5", Monomorphic},
		{[]any{int64(6)}, "int32:6", Monomorphic},
		{[]any{int64(5000000000)}, "int64:5000000000", Polymorphic},
		{[]any{1.5}, "float64:1.5", Polymorphic},
		{[]any{interop.Char('a')}, "int32:97", Generic},
		{[]any{int64(7)}, "int32:7", Generic},
	}
	for i, s := range steps {
		got, err := e.Execute(site, g, reflect.Value{}, s.args)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d = %v, want %v", i, got, s.want)
		}
		if site.State() != s.state {
			t.Errorf("step %d state = %s, want %s", i, site.State(), s.state)
		}
	}
	if site.Entries() != 0 {
		t.Errorf("generic site keeps %d entries", site.Entries())
	}

	want := []State{Monomorphic, Polymorphic, Polymorphic, Generic}
	if got := rec.states(); !reflect.DeepEqual(got, want) {
		t.Errorf("reported %v, want %v", got, want)
	}
	ev := rec.events[0]
	if ev.Site != site.ID || ev.Name != "f" || ev.From != Uninitialized || ev.Method != "f(int32)" || ev.Shape == "" {
		t.Errorf("unexpected first event: %+v", ev)
	}
}

func TestSingleMethodSite(t *testing.T) {
	rec := &recorder{}
	e := NewExecutor(WithReporter(rec))
	m, _ := member.NewFunc("inc", nil, func(n int64) int64 { return n + 1 })
	site := e.NewSite("inc")
	for i := int64(0); i < 5; i++ {
		got, err := e.Execute(site, m, reflect.Value{}, []any{i})
		if err != nil || got != i+1 {
			t.Fatalf("inc(%d) = %v, %v", i, got, err)
		}
	}
	if site.State() != Monomorphic || len(rec.events) != 1 || rec.events[0].Shape != "" {
		t.Errorf("state %s, events %+v", site.State(), rec.events)
	}
}

func TestZeroCacheLimit(t *testing.T) {
	e := NewExecutor(WithCacheLimit(0))
	g := overloads(t)
	site := e.NewSite("f")
	if _, err := e.Execute(site, g, reflect.Value{}, []any{int64(1)}); err != nil {
		t.Fatal(err)
	}
	if site.State() != Generic {
		t.Errorf("state = %s, want generic", site.State())
	}
}

func TestConcurrentSite(t *testing.T) {
	e := NewExecutor()
	g := overloads(t)
	site := e.NewSite("f")

	var eg errgroup.Group
	for i := 0; i < 64; i++ {
		i := i
		eg.Go(func() error {
			args := []any{int64(i)}
			want := fmt.Sprintf("int32:%d", i)
			if i%2 == 1 {
				args = []any{float64(i) + 0.5}
				want = fmt.Sprintf("float64:%g", float64(i)+0.5)
			}
			got, err := e.Execute(site, g, reflect.Value{}, args)
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("got %v, want %v", got, want)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if s := site.State(); s == Uninitialized {
		t.Error("site never initialized")
	}
}

func TestExecuteErrors(t *testing.T) {
	cause := errors.New("disk full")
	failing, _ := member.NewFunc("save", nil, func() error { return cause })
	panicking, _ := member.NewFunc("crash", nil, func() { panic("boom") })

	e := NewExecutor()
	_, err := e.Execute(nil, failing, reflect.Value{}, nil)
	var ne *interop.NativeInvocationError
	if !errors.As(err, &ne) || ne.Panicked || !errors.Is(err, cause) {
		t.Errorf("unexpected error: %v", err)
	}
	_, err = e.Execute(nil, panicking, reflect.Value{}, nil)
	if !errors.As(err, &ne) || !ne.Panicked || ne.Member != "crash" {
		t.Errorf("unexpected panic error: %v", err)
	}
	if _, err := e.Execute(nil, failing, reflect.Value{}, []any{int64(1)}); !errors.Is(err, interop.ErrArity) {
		t.Errorf("expected arity error, got %v", err)
	}

	custom := errors.New("wrapped")
	e = NewExecutor(WithExceptionWrapper(func(name string, c error, panicked bool) error {
		return fmt.Errorf("%s: %w (%v)", name, custom, c)
	}))
	if _, err := e.Execute(nil, failing, reflect.Value{}, nil); !errors.Is(err, custom) {
		t.Errorf("custom wrapper not used: %v", err)
	}
}

func TestResults(t *testing.T) {
	e := NewExecutor(WithToGuest(func(v reflect.Value) any {
		if v.Kind() == reflect.Int {
			return v.Int()
		}
		return interop.DefaultToGuest(v)
	}))
	tests := []struct {
		name string
		fn   any
		want any
	}{
		{"none", func() {}, interop.Null},
		{"one", func() int { return 3 }, int64(3)},
		{"with nil error", func() (string, error) { return "ok", nil }, "ok"},
		{"tuple", func() (string, int) { return "a", 1 }, interop.Tuple{"a", int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := member.NewFunc(tt.name, nil, tt.fn)
			got, err := e.Execute(nil, m, reflect.Value{}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("result = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Uninitialized: "uninitialized",
		Monomorphic:   "monomorphic",
		Polymorphic:   "polymorphic",
		Generic:       "generic",
		State(9):      "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
