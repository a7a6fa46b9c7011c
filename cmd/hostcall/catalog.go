package main

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	hostinterop "github.com/funvibe/hostinterop/pkg/embed"
)

// Examples is a static-only class grouping overloads whose resolution is
// easy to reason about.
type Examples struct{}

// Calls counts calls made through the Examples overloads.
var Calls int64

func tag(name string) string {
	Calls++
	return name
}

var catalog = []struct {
	typ  reflect.Type
	spec hostinterop.StaticSpec
}{
	{
		typ: reflect.TypeOf(&bytes.Buffer{}),
		spec: hostinterop.StaticSpec{
			Constructors: []any{bytes.NewBuffer, bytes.NewBufferString},
			Overloads: map[string][]string{
				"write": {"Write", "WriteString", "WriteByte", "WriteRune"},
			},
		},
	},
	{
		typ: reflect.TypeOf(&strings.Builder{}),
		spec: hostinterop.StaticSpec{
			Constructors: []any{func() *strings.Builder { return new(strings.Builder) }},
			Overloads: map[string][]string{
				"write": {"Write", "WriteString", "WriteByte", "WriteRune"},
			},
		},
	},
	{
		typ: reflect.TypeOf(&big.Int{}),
		spec: hostinterop.StaticSpec{
			Constructors: []any{big.NewInt},
			Overloads: map[string][]string{
				"set": {"SetInt64", "SetString"},
			},
		},
	},
	{
		typ: reflect.TypeOf(Examples{}),
		spec: hostinterop.StaticSpec{
			Funcs: map[string][]any{
				"f": {
					func(int32) string { return tag("f(int32)") },
					func(int64) string { return tag("f(int64)") },
				},
				"g": {
					func(int32) string { return tag("g(int32)") },
					func(float64) string { return tag("g(float64)") },
				},
				"h": {
					func(int32) string { return tag("h(int32)") },
					func(*int32) string { return tag("h(*int32)") },
				},
				"s": {
					func(string) string { return tag("s(string)") },
					func(any) string { return tag("s(any)") },
				},
				"v": {
					func(a int32, rest ...int32) []int32 { tag("v(int32, ...int32)"); return rest },
				},
				"max": {
					func(a, b int64) int64 { return max(a, b) },
					func(a, b float64) float64 { return math.Max(a, b) },
				},
			},
			Consts: map[string]any{"Pi": math.Pi},
			Vars:   map[string]any{"Calls": &Calls},
		},
	},
}

func registerCatalog(e *hostinterop.Engine) error {
	for _, c := range catalog {
		if err := e.Register(c.typ, c.spec); err != nil {
			return err
		}
	}
	return nil
}

// lookupClass resolves a registered type by its Go name.
func lookupClass(e *hostinterop.Engine, name string) (reflect.Type, error) {
	if t, ok := e.Bridge().Cache().TypeByName(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown class %q (registered: %s)", name,
		strings.Join(e.Bridge().Cache().RegisteredTypes(), ", "))
}

// sample returns a fresh receiver of t.
func sample(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.Zero(t).Interface()
}
