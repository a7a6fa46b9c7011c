package hostinterop_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	hostinterop "github.com/funvibe/hostinterop/pkg/embed"
)

// User represents a Go struct to be used as a Host Object
type User struct {
	Name  string
	Score int
}

func (u *User) AddScore(points int) {
	u.Score += points
}

func (u *User) GetStatus() string {
	return fmt.Sprintf("User %s has %d points", u.Name, u.Score)
}

func newEngine(t *testing.T, opts ...hostinterop.Option) *hostinterop.Engine {
	t.Helper()
	opts = append([]hostinterop.Option{hostinterop.WithLogger(zap.NewNop())}, opts...)
	e, err := hostinterop.New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEmbedAPI(t *testing.T) {
	e := newEngine(t)

	// 1. Bind a simple function
	e.Bind("double", func(x int) int {
		return x * 2
	})

	// 2. Bind a Host Object
	user := &User{Name: "Alice", Score: 10}
	e.Bind("player", user)

	doubled, err := e.Call("double", 21)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if doubled != 42 {
		t.Errorf("Expected 42, got %v (%T)", doubled, doubled)
	}

	if _, err := e.Invoke("player", "AddScore", 5); err != nil {
		t.Fatalf("Invoke AddScore failed: %v", err)
	}
	status, err := e.Invoke("player", "GetStatus")
	if err != nil {
		t.Fatalf("Invoke GetStatus failed: %v", err)
	}
	if status != "User Alice has 15 points" {
		t.Errorf("Unexpected status: %v", status)
	}

	// Host objects keep their identity.
	got, err := e.Get("player")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != user {
		t.Errorf("Expected the bound *User, got %v", got)
	}

	name, err := e.Bridge().ReadMember(mustGlobal(t, e, "player"), "Name")
	if err != nil {
		t.Fatalf("ReadMember failed: %v", err)
	}
	if name != "Alice" {
		t.Errorf("Expected Alice, got %v", name)
	}
}

func mustGlobal(t *testing.T, e *hostinterop.Engine, name string) any {
	t.Helper()
	v, ok := e.Global(name)
	if !ok {
		t.Fatalf("global %s not bound", name)
	}
	return v
}

func TestSetCopiesData(t *testing.T) {
	e := newEngine(t)

	if err := e.Set("user", User{Name: "Bob", Score: 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := mustGlobal(t, e, "user").(hostinterop.Object); !ok {
		t.Fatalf("Expected a guest object, got %T", mustGlobal(t, e, "user"))
	}
	got, err := e.Get("user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := map[string]any{"Name": "Bob", "Score": int64(3)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get = %#v, want %#v", got, want)
	}

	if err := e.Set("scores", []int{1, 2}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err = e.Get("scores")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got, []any{int64(1), int64(2)}) {
		t.Errorf("Get = %#v", got)
	}
}

func TestMarshallerRoundTripTargets(t *testing.T) {
	e := newEngine(t)
	m := e.Marshaller()

	tests := []struct {
		name   string
		in     any
		target reflect.Type
		want   any
	}{
		{"int to int32", 7, reflect.TypeOf(int32(0)), int32(7)},
		{"slice to typed slice", []int{1, 2}, reflect.TypeOf([]int64(nil)), []int64{1, 2}},
		{"map to typed map", map[string]int{"a": 1}, reflect.TypeOf(map[string]int32(nil)), map[string]int32{"a": 1}},
		{"string", "hi", reflect.TypeOf(""), "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := m.ToValue(tt.in)
			if err != nil {
				t.Fatalf("ToValue failed: %v", err)
			}
			got, err := m.FromValue(g, tt.target)
			if err != nil {
				t.Fatalf("FromValue failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMarshallerLargeUnsigned(t *testing.T) {
	e := newEngine(t)
	g, err := e.Marshaller().ToValue(uint64(1) << 63)
	if err != nil {
		t.Fatalf("ToValue failed: %v", err)
	}
	got, err := e.Marshaller().FromValue(g, reflect.TypeOf(uint64(0)))
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	if got != uint64(1)<<63 {
		t.Errorf("got %v", got)
	}
}

func TestConfigOverloads(t *testing.T) {
	cfg, err := hostinterop.ParseConfig([]byte(`
classes:
  - type: "*bytes.Buffer"
    overloads:
      write: [Write, WriteString]
    hidden: [Grow]
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	e := newEngine(t, hostinterop.WithConfig(cfg))

	buf := &bytes.Buffer{}
	e.Bind("buf", buf)

	n, err := e.Invoke("buf", "write", "hi")
	if err != nil {
		t.Fatalf("Invoke write failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 bytes written, got %v", n)
	}
	if _, err := e.Invoke("buf", "write", []byte("!")); err != nil {
		t.Fatalf("Invoke write failed: %v", err)
	}
	if buf.String() != "hi!" {
		t.Errorf("buffer = %q", buf.String())
	}

	_, err = e.Invoke("buf", "Grow", 10)
	if !errors.Is(err, hostinterop.ErrUnknownMember) {
		t.Errorf("Expected hidden Grow to be unknown, got %v", err)
	}
}

func TestBindClass(t *testing.T) {
	e := newEngine(t)
	err := e.BindClass("Users", reflect.TypeOf(&User{}), hostinterop.StaticSpec{
		Constructors: []any{func(name string) *User { return &User{Name: name} }},
	})
	if err != nil {
		t.Fatalf("BindClass failed: %v", err)
	}
	obj, err := e.Bridge().Construct(mustGlobal(t, e, "Users"), "Carol")
	if err != nil {
		t.Fatalf("Construct failed: %v", err)
	}
	h, ok := obj.(*hostinterop.HostObject)
	if !ok {
		t.Fatalf("Expected host object, got %T", obj)
	}
	if u := h.Value().(*User); u.Name != "Carol" {
		t.Errorf("Expected Carol, got %s", u.Name)
	}
}

func TestCallErrors(t *testing.T) {
	e := newEngine(t)
	e.Bind("double", func(x int) int { return x * 2 })
	e.Bind("fail", func() (int, error) { return 0, errors.New("boom") })

	tests := []struct {
		name string
		fn   string
		args []any
		want error
		kind string
	}{
		{"arity", "double", nil, hostinterop.ErrArity, "arity"},
		{"unconvertible", "double", []any{"x"}, hostinterop.ErrUnsupportedType, "unsupported_type"},
		{"native", "fail", nil, hostinterop.ErrNativeInvocation, "native"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Call(tt.fn, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if d := hostinterop.ToErrorDetail(err); d.Kind != tt.kind {
				t.Errorf("detail kind = %s, want %s", d.Kind, tt.kind)
			}
		})
	}

	if _, err := e.Call("missing"); err == nil {
		t.Error("Expected error for unbound function")
	}
}

func TestProfileRecordsSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.db")
	e := newEngine(t, hostinterop.WithProfile(path))
	e.Bind("player", &User{Name: "Dan"})

	for i := 0; i < 3; i++ {
		if _, err := e.Invoke("player", "AddScore", i); err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
	}
	sum, err := e.Profile().Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(sum) != 1 || sum[0].Name != "AddScore" || sum[0].State != "monomorphic" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestNewFromFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := "dispatch:\n  cache_limit: 1\nlog:\n  level: error\n"
	if err := os.WriteFile(filepath.Join(root, "hostinterop.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := hostinterop.NewFromFile(nested, hostinterop.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewFromFile failed: %v", err)
	}
	defer e.Close()
	if got := e.Bridge().Executor().NewSite("x"); got == nil {
		t.Fatal("expected a call site")
	}

	if _, err := hostinterop.NewFromFile(t.TempDir(), hostinterop.WithLogger(zap.NewNop())); err != nil {
		t.Fatalf("NewFromFile without config failed: %v", err)
	}
}
