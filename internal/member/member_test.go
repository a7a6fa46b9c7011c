package member

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"sort"
	"testing"

	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
)

type point struct {
	X, Y int
	note string
}

func (p *point) Move(dx, dy int)   { p.X += dx; p.Y += dy }
func (p point) Sum() int           { return p.X + p.Y }
func (p *point) Scale(f float64)   { p.X = int(float64(p.X) * f); p.Y = int(float64(p.Y) * f) }
func (p *point) ScaleInt(f int32)  { p.X *= int(f); p.Y *= int(f) }
func (p *point) Write(w io.Writer) { _, _ = w.Write([]byte("point")) }

var origin = point{}

func TestMethodDescriptor(t *testing.T) {
	m, err := NewFunc("v", nil, func(a int32, rest ...int32) int32 { return a + int32(len(rest)) })
	if err != nil {
		t.Fatalf("NewFunc failed: %v", err)
	}
	if !m.Variadic || !m.Static || m.ParamCount() != 2 {
		t.Fatalf("unexpected descriptor: %+v", m)
	}
	if got := m.String(); got != "v(int32, ...int32)" {
		t.Errorf("String() = %q", got)
	}
	if m.ParamType(5, true) != reflect.TypeOf(int32(0)) || m.ParamType(1, false) != reflect.TypeOf([]int32(nil)) {
		t.Error("ParamType")
	}
	out, err := m.Call(reflect.Value{}, []reflect.Value{reflect.ValueOf(int32(1)), reflect.ValueOf([]int32{2, 3})})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out[0].Int() != 3 {
		t.Errorf("result = %d, want 3", out[0].Int())
	}

	if _, err := NewFunc("bad", nil, 42); err == nil {
		t.Error("expected error for non-func")
	}
}

func TestMethodCallRecoversPanic(t *testing.T) {
	cause := errors.New("bad input")
	m, _ := NewFunc("boom", nil, func() { panic(cause) })
	_, err := m.Call(reflect.Value{}, nil)
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected panicked error to unwrap")
	}

	m, _ = NewFunc("boom", nil, func() { panic("text") })
	_, err = m.Call(reflect.Value{}, nil)
	if !errors.As(err, &pe) || pe.Value != "text" || pe.Unwrap() != nil {
		t.Errorf("unexpected panic error: %v", err)
	}
}

func TestReturnsError(t *testing.T) {
	m, _ := NewFunc("f", nil, func() (int, error) { return 0, nil })
	if !m.ReturnsError() {
		t.Error("expected ReturnsError")
	}
	m, _ = NewFunc("g", nil, func() int { return 0 })
	if m.ReturnsError() {
		t.Error("unexpected ReturnsError")
	}
}

func TestReflectIntrospector(t *testing.T) {
	in := ReflectIntrospector{}
	ptr := reflect.TypeOf(&point{})

	var names []string
	for _, m := range in.Methods(ptr) {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	want := []string{"Move", "Scale", "ScaleInt", "Sum", "Write"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("methods = %v, want %v", names, want)
	}
	if got := in.Methods(reflect.TypeOf(point{})); len(got) != 1 || got[0].Name != "Sum" {
		t.Errorf("value methods = %v", got)
	}

	fields := in.Fields(ptr)
	if len(fields) != 2 || !fields[0].Writable {
		t.Fatalf("pointer fields = %+v", fields)
	}
	p := &point{X: 1}
	if err := fields[0].Set(reflect.ValueOf(p), reflect.ValueOf(7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if p.X != 7 {
		t.Errorf("X = %d, want 7", p.X)
	}
	if v, err := fields[0].Get(reflect.ValueOf(p)); err != nil || v.Int() != 7 {
		t.Errorf("Get = %v, %v", v, err)
	}
	if _, err := fields[0].Get(reflect.ValueOf((*point)(nil))); err == nil {
		t.Error("expected nil receiver error")
	}

	valueFields := in.Fields(reflect.TypeOf(point{}))
	if len(valueFields) != 2 || valueFields[0].Writable {
		t.Errorf("value fields = %+v", valueFields)
	}
	if err := valueFields[0].Set(reflect.ValueOf(origin), reflect.ValueOf(1)); err == nil {
		t.Error("expected read-only field error")
	}
}

func TestReflectConstructors(t *testing.T) {
	in := ReflectIntrospector{}
	tests := []struct {
		typ  reflect.Type
		args []reflect.Value
		want any
	}{
		{reflect.TypeOf(&point{}), nil, &point{}},
		{reflect.TypeOf(point{}), nil, point{}},
		{reflect.TypeOf(map[string]int{}), nil, map[string]int{}},
		{reflect.TypeOf([]int32{}), []reflect.Value{reflect.ValueOf(3)}, []int32{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			ctors := in.Constructors(tt.typ)
			if len(ctors) != 1 {
				t.Fatalf("expected one constructor, got %d", len(ctors))
			}
			out, err := ctors[0].Call(reflect.Value{}, tt.args)
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			if !reflect.DeepEqual(out[0].Interface(), tt.want) {
				t.Errorf("constructed %#v, want %#v", out[0].Interface(), tt.want)
			}
		})
	}

	ctor := in.Constructors(reflect.TypeOf([]int{}))[0]
	if _, err := ctor.Call(reflect.Value{}, []reflect.Value{reflect.ValueOf(-1)}); err == nil {
		t.Error("expected negative length to fail")
	}
	if in.Constructors(reflect.TypeOf(0)) != nil {
		t.Error("ints have no constructor")
	}
}

var counter int

func TestCacheRegisteredMembers(t *testing.T) {
	c := NewCache()
	ptr := reflect.TypeOf(&point{})
	type inner struct{}
	err := c.Register(ptr, StaticSpec{
		Constructors: []any{func(x, y int) *point { return &point{X: x, Y: y} }},
		Funcs: map[string][]any{
			"origin": {func() *point { return &point{} }},
			"of":     {func(x int) *point { return &point{X: x} }, func(s string) *point { return &point{} }},
		},
		Vars:      map[string]any{"counter": &counter},
		Consts:    map[string]any{"Dims": 2, "Nothing": nil},
		Nested:    map[string]reflect.Type{"Inner": reflect.TypeOf(inner{})},
		Overloads: map[string][]string{"scale": {"Scale", "ScaleInt", "Missing"}},
		Hidden:    []string{"Write"},
		Generic:   map[string][]reflect.Type{"Write": {reflect.TypeOf(&bytes.Buffer{})}},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got, ok := c.TypeByName("*member.point"); !ok || got != ptr {
		t.Errorf("TypeByName = %v, %v", got, ok)
	}

	scale, ok := c.LookupMethod(ptr, "scale", false).(*Overloaded)
	if !ok || len(scale.Overloads) != 2 {
		t.Fatalf("scale = %v", c.LookupMethod(ptr, "scale", false))
	}
	if scale.Overloads[0].Name != "scale" || scale.Overloads[1].Params[0] != reflect.TypeOf(int32(0)) {
		t.Errorf("unexpected scale group: %s", scale)
	}
	if c.LookupMethod(ptr, "Scale", false) == nil {
		t.Error("aliased methods keep their Go name")
	}
	if c.LookupMethod(ptr, "Write", false) != nil {
		t.Error("Write should be hidden")
	}
	if _, ok := c.LookupMethod(ptr, "origin", true).(*Method); !ok {
		t.Error("single static func should be a Method")
	}
	if _, ok := c.LookupMethod(ptr, "of", true).(*Overloaded); !ok {
		t.Error("two static funcs should be overloaded")
	}
	if c.LookupMethod(ptr, "origin", false) != nil {
		t.Error("static funcs are not instance members")
	}

	f := c.LookupField(ptr, "counter", true)
	if f == nil || !f.Writable {
		t.Fatalf("counter = %+v", f)
	}
	if err := f.Set(reflect.Value{}, reflect.ValueOf(5)); err != nil || counter != 5 {
		t.Errorf("counter = %d, %v", counter, err)
	}
	if d := c.LookupField(ptr, "Dims", true); d == nil || d.Writable {
		t.Errorf("Dims = %+v", d)
	}
	if n := c.LookupField(ptr, "Nothing", true); n == nil || n.Type.Kind() != reflect.Interface {
		t.Errorf("Nothing = %+v", n)
	}
	if nt, ok := c.LookupNested(ptr, "Inner"); !ok || nt.Name() != "inner" {
		t.Errorf("Inner = %v, %v", nt, ok)
	}
	if ctor, ok := c.LookupConstructor(ptr).(*Method); !ok || ctor.ParamCount() != 2 {
		t.Errorf("constructor = %v", c.LookupConstructor(ptr))
	}

	wantStatic := []string{"Dims", "Inner", "Nothing", "counter", "of", "origin"}
	if got := c.MemberNames(ptr, true); !reflect.DeepEqual(got, wantStatic) {
		t.Errorf("static names = %v, want %v", got, wantStatic)
	}

	if err := c.Register(ptr, StaticSpec{}); err == nil {
		t.Error("expected error registering a reflected class")
	}
}

func TestCacheGenericHints(t *testing.T) {
	c := NewCache()
	ptr := reflect.TypeOf(&point{})
	buf := reflect.TypeOf(&bytes.Buffer{})
	if err := c.Register(ptr, StaticSpec{Generic: map[string][]reflect.Type{"Write": {buf}, "Move": {buf}}}); err != nil {
		t.Fatal(err)
	}
	w := c.LookupMethod(ptr, "Write", false).(*Method)
	if w.Generic[0] != buf || w.Params[0] != reflect.TypeOf((*io.Writer)(nil)).Elem() {
		t.Errorf("Write generic = %v params = %v", w.Generic, w.Params)
	}
	mv := c.LookupMethod(ptr, "Move", false).(*Method)
	if mv.Generic[0] != reflect.TypeOf(0) {
		t.Errorf("non-assignable hint applied: %v", mv.Generic)
	}
}

func TestCacheStableIdentity(t *testing.T) {
	c := NewCache()
	ptr := reflect.TypeOf(&point{})

	var g errgroup.Group
	results := make([]Member, 32)
	for i := range results {
		i := i
		g.Go(func() error {
			results[i] = c.LookupMethod(ptr, "Move", false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i, m := range results {
		if m == nil || m != results[0] {
			t.Fatalf("lookup %d returned %p, want %p", i, m, results[0])
		}
	}
	if c.Class(ptr) != c.Class(ptr) {
		t.Error("class descriptors must be cached")
	}
}

func TestProtoFields(t *testing.T) {
	c := NewCache()
	dt := reflect.TypeOf(&durationpb.Duration{})
	d := durationpb.New(0)

	seconds := c.LookupField(dt, "seconds", false)
	nanos := c.LookupField(dt, "nanos", false)
	if seconds == nil || nanos == nil {
		t.Fatalf("missing proto fields: %v", c.MemberNames(dt, false))
	}
	if seconds.Type != reflect.TypeOf(int64(0)) || nanos.Type != reflect.TypeOf(int32(0)) {
		t.Errorf("types = %s, %s", seconds.Type, nanos.Type)
	}
	if err := seconds.Set(reflect.ValueOf(d), reflect.ValueOf(int64(90))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if d.Seconds != 90 {
		t.Errorf("Seconds = %d, want 90", d.Seconds)
	}
	v, err := seconds.Get(reflect.ValueOf(d))
	if err != nil || v.Interface() != int64(90) {
		t.Errorf("Get = %v, %v", v, err)
	}
	if c.LookupMethod(dt, "AsDuration", false) == nil {
		t.Error("generated methods stay visible")
	}
	if _, err := seconds.Get(reflect.ValueOf((*durationpb.Duration)(nil))); err == nil {
		t.Error("expected nil message error")
	}
}

func TestProtoCollections(t *testing.T) {
	c := NewCache()
	lv, err := structpb.NewList([]any{"a", 1.5})
	if err != nil {
		t.Fatal(err)
	}
	values := c.LookupField(reflect.TypeOf(lv), "values", false)
	if values == nil || values.Writable || values.Type != reflect.TypeOf([]any(nil)) {
		t.Fatalf("values = %+v", values)
	}
	got, err := values.Get(reflect.ValueOf(lv))
	if err != nil || got.Len() != 2 {
		t.Fatalf("Get = %v, %v", got, err)
	}

	st, err := structpb.NewStruct(map[string]any{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	fields := c.LookupField(reflect.TypeOf(st), "fields", false)
	if fields == nil || fields.Type != reflect.TypeOf(map[any]any(nil)) {
		t.Fatalf("fields = %+v", fields)
	}
	m, err := fields.Get(reflect.ValueOf(st))
	if err != nil || m.Len() != 1 {
		t.Errorf("Get = %v, %v", m, err)
	}
}
