package coerce

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
)

// AsVarArgs reports whether the trailing arguments of a call to m must be
// packed into a fresh slice. A single trailing argument that already is the
// slice type, or converts to it at Coerce, is passed through. A guest array
// that cannot become one element is passed through as the whole slice.
func (c *Converter) AsVarArgs(m *member.Method, args []any) bool {
	if !m.Variadic {
		return false
	}
	n := len(m.Params)
	if len(args) != n {
		return true
	}
	last, slice := args[n-1], m.Params[n-1]
	if c.IsSubtypeOf(last, slice) || c.CanConvert(last, slice, Coerce) {
		return false
	}
	if _, ok := last.(interop.ArrayValue); ok {
		return c.CanConvert(last, slice.Elem(), ObjectTarget) || !c.CanConvert(last, slice, ObjectTarget)
	}
	return true
}

// PrepareArgs converts args to the parameter types of m. The last value of a
// variadic method is always the slice passed to CallSlice.
func (c *Converter) PrepareArgs(m *member.Method, args []any) ([]reflect.Value, error) {
	n := len(m.Params)
	varArgs := c.AsVarArgs(m, args)
	fixed := n
	if varArgs {
		fixed = n - 1
	}
	if (!varArgs && len(args) != n) || len(args) < fixed {
		maxArgs := n
		if m.Variadic {
			maxArgs = -1
		}
		return nil, &interop.ArityError{Name: m.Name, Min: fixed, Max: maxArgs, Actual: len(args)}
	}
	out := make([]reflect.Value, 0, n)
	for i := 0; i < fixed; i++ {
		rv, err := c.Convert(args[i], m.Params[i], m.Generic[i], ObjectTarget)
		if err != nil {
			return nil, argError(args, i, err)
		}
		out = append(out, rv)
	}
	if varArgs {
		rest := args[fixed:]
		slice := reflect.MakeSlice(m.Params[n-1], len(rest), len(rest))
		elem, generic := m.ParamType(n-1, true), m.GenericType(n-1, true)
		for i, a := range rest {
			rv, err := c.Convert(a, elem, generic, ObjectTarget)
			if err != nil {
				return nil, argError(args, fixed+i, err)
			}
			slice.Index(i).Set(rv)
		}
		out = append(out, slice)
	}
	return out, nil
}

func argError(args []any, i int, err error) error {
	var ute *interop.UnsupportedTypeError
	if errors.As(err, &ute) {
		return &interop.UnsupportedTypeError{
			Args:   args,
			Target: ute.Target,
			Reason: fmt.Sprintf("argument %d: %s", i, ute.Reason),
		}
	}
	return err
}
