package coerce

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/funvibe/hostinterop/internal/hosttype"
	"github.com/funvibe/hostinterop/internal/interop"
)

type srcKind int

const (
	srcInt srcKind = iota
	srcUint
	srcFloat
	srcBig
	srcChar
	srcBool
	srcString
)

var kindTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    hosttype.BoolType,
	reflect.Int8:    hosttype.Int8Type,
	reflect.Int16:   hosttype.Int16Type,
	reflect.Int32:   hosttype.Int32Type,
	reflect.Int64:   hosttype.Int64Type,
	reflect.Int:     hosttype.IntType,
	reflect.Uint8:   hosttype.Uint8Type,
	reflect.Uint16:  hosttype.Uint16Type,
	reflect.Uint32:  hosttype.Uint32Type,
	reflect.Uint64:  hosttype.Uint64Type,
	reflect.Uint:    hosttype.UintType,
	reflect.Float32: hosttype.Float32Type,
	reflect.Float64: hosttype.Float64Type,
	reflect.String:  hosttype.StringType,
}

// scalar is a Go-native guest value classified for the scalar rules.
type scalar struct {
	rv    reflect.Value
	kind  srcKind
	typ   reflect.Type // primitive (or string, *big.Int) the value behaves as
	named bool
}

func classifyScalar(rv reflect.Value) (scalar, bool) {
	vt := rv.Type()
	if vt == hosttype.BigIntType {
		if rv.IsNil() {
			return scalar{}, false
		}
		return scalar{rv: rv, kind: srcBig, typ: vt}, true
	}
	if vt == hosttype.CharType {
		return scalar{rv: rv, kind: srcChar, typ: vt}, true
	}
	base, ok := kindTypes[vt.Kind()]
	if !ok {
		return scalar{}, false
	}
	s := scalar{rv: rv, typ: base, named: vt != base}
	switch vt.Kind() {
	case reflect.Bool:
		s.kind = srcBool
	case reflect.String:
		s.kind = srcString
	case reflect.Float32, reflect.Float64:
		s.kind = srcFloat
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		s.kind = srcUint
	default:
		s.kind = srcInt
	}
	return s, true
}

// scalarTarget splits t into the base type the scalar rules target, whether
// the result is boxed behind a pointer and whether t is a named variant.
func scalarTarget(t reflect.Type) (base reflect.Type, boxed, named bool) {
	if t == hosttype.BigIntType || t == hosttype.ByteSlice {
		return t, false, false
	}
	inner := t
	if t.Kind() == reflect.Pointer {
		inner = t.Elem()
		boxed = true
	}
	if hosttype.IsPrimitive(inner) || inner == hosttype.StringType {
		return inner, boxed, false
	}
	if b, ok := kindTypes[inner.Kind()]; ok {
		return b, boxed, true
	}
	return nil, false, false
}

func (c *Converter) scalarRule(rv reflect.Value, t reflect.Type) (Priority, reflect.Value, error) {
	src, ok := classifyScalar(rv)
	if !ok {
		return 0, reflect.Value{}, fmt.Errorf("%s cannot be converted to %s", rv.Type(), hosttype.Name(t))
	}
	base, boxed, named := scalarTarget(t)
	if base == nil {
		return 0, reflect.Value{}, fmt.Errorf("%s cannot be converted to %s", rv.Type(), hosttype.Name(t))
	}
	l, out, err := c.baseRule(src, base)
	if err != nil {
		return 0, reflect.Value{}, err
	}
	if named || src.named {
		l = looser(l)
	}
	elem := t
	if boxed {
		elem = t.Elem()
	}
	if named {
		out = out.Convert(elem)
	}
	if boxed {
		p := reflect.New(elem)
		p.Elem().Set(out)
		out = p
	}
	return l, out, nil
}

func (c *Converter) baseRule(src scalar, base reflect.Type) (Priority, reflect.Value, error) {
	rv := src.rv
	if src.typ == base {
		return Strict, rv.Convert(base), nil
	}
	switch {
	case base == hosttype.StringType:
		if src.kind == srcChar {
			return Loose, reflect.ValueOf(string(rune(rv.Int()))), nil
		}
		return Coerce, reflect.ValueOf(format(src)), nil
	case base == hosttype.ByteSlice:
		if src.kind == srcString {
			return Coerce, reflect.ValueOf([]byte(rv.String())), nil
		}
	case base == hosttype.BigIntType:
		return c.bigRule(src)
	case base == hosttype.CharType:
		return charRule(src)
	case base == hosttype.BoolType:
		if src.kind == srcString {
			b, err := strconv.ParseBool(strings.TrimSpace(rv.String()))
			if err == nil {
				return Coerce, reflect.ValueOf(b), nil
			}
		}
	case hosttype.IsNumeric(base):
		return c.numericRule(src, base)
	}
	return 0, reflect.Value{}, fmt.Errorf("%s cannot be converted to %s", src.rv.Type(), hosttype.Name(base))
}

func (c *Converter) fitLevel() Priority {
	if c.losslessNarrowing {
		return Strict
	}
	return Loose
}

func (c *Converter) numericRule(src scalar, base reflect.Type) (Priority, reflect.Value, error) {
	rv := src.rv
	switch src.kind {
	case srcChar:
		if hosttype.Widens(base, hosttype.CharType) {
			return Strict, rv.Convert(base), nil
		}
		if out, ok := fit(rv, srcInt, base); ok {
			return Loose, out, nil
		}
	case srcInt, srcUint, srcFloat, srcBig:
		if hosttype.Widens(base, src.typ) {
			return Strict, rv.Convert(base), nil
		}
		if out, ok := fit(rv, src.kind, base); ok {
			return c.fitLevel(), out, nil
		}
		if src.kind == srcFloat && base == hosttype.Float32Type {
			return Loose, reflect.ValueOf(float32(rv.Float())), nil
		}
	case srcString:
		if out, ok := parseNumber(rv.String(), base); ok {
			return Coerce, out, nil
		}
	}
	return 0, reflect.Value{}, fmt.Errorf("%v does not fit %s", rv.Interface(), hosttype.Name(base))
}

func (c *Converter) bigRule(src scalar) (Priority, reflect.Value, error) {
	rv := src.rv
	switch src.kind {
	case srcInt:
		return Strict, reflect.ValueOf(big.NewInt(rv.Int())), nil
	case srcUint:
		return Strict, reflect.ValueOf(new(big.Int).SetUint64(rv.Uint())), nil
	case srcFloat:
		f := rv.Float()
		if !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) {
			b, _ := big.NewFloat(f).Int(nil)
			return c.fitLevel(), reflect.ValueOf(b), nil
		}
	case srcString:
		if b, ok := new(big.Int).SetString(strings.TrimSpace(rv.String()), 10); ok {
			return Coerce, reflect.ValueOf(b), nil
		}
	}
	return 0, reflect.Value{}, fmt.Errorf("%v cannot be converted to *big.Int", rv.Interface())
}

func charRule(src scalar) (Priority, reflect.Value, error) {
	rv := src.rv
	switch src.kind {
	case srcString:
		s := rv.String()
		if r, size := utf8.DecodeRuneInString(s); size > 0 && size == len(s) && r != utf8.RuneError {
			return Loose, reflect.ValueOf(interop.Char(r)), nil
		}
	case srcInt, srcUint, srcFloat, srcBig:
		if out, ok := fit(rv, src.kind, hosttype.Int32Type); ok {
			r := rune(out.Int())
			if r >= 0 && utf8.ValidRune(r) {
				return Loose, reflect.ValueOf(interop.Char(r)), nil
			}
		}
	}
	return 0, reflect.Value{}, fmt.Errorf("%v is not a char", rv.Interface())
}

func format(src scalar) string {
	rv := src.rv
	switch src.kind {
	case srcInt:
		return strconv.FormatInt(rv.Int(), 10)
	case srcUint:
		return strconv.FormatUint(rv.Uint(), 10)
	case srcFloat:
		return strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits())
	case srcBig:
		return rv.Interface().(*big.Int).String()
	case srcBool:
		return strconv.FormatBool(rv.Bool())
	}
	return rv.String()
}

func parseNumber(s string, base reflect.Type) (reflect.Value, bool) {
	s = strings.TrimSpace(s)
	out := reflect.New(base).Elem()
	switch {
	case base == hosttype.Float32Type || base == hosttype.Float64Type:
		f, err := strconv.ParseFloat(s, base.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		out.SetFloat(f)
	case isSigned(base):
		i, err := strconv.ParseInt(s, 10, base.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		out.SetInt(i)
	default:
		u, err := strconv.ParseUint(s, 10, base.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		out.SetUint(u)
	}
	return out, true
}

func isSigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return true
	}
	return false
}

// fit converts rv to the numeric base type when the value is represented
// exactly.
func fit(rv reflect.Value, kind srcKind, base reflect.Type) (reflect.Value, bool) {
	out := reflect.New(base).Elem()
	switch {
	case base == hosttype.Float32Type || base == hosttype.Float64Type:
		f, ok := toFloat(rv, kind, base.Bits())
		if !ok {
			return reflect.Value{}, false
		}
		out.SetFloat(f)
	case isSigned(base):
		i, ok := toInt64(rv, kind)
		if !ok || out.OverflowInt(i) {
			return reflect.Value{}, false
		}
		out.SetInt(i)
	default:
		u, ok := toUint64(rv, kind)
		if !ok || out.OverflowUint(u) {
			return reflect.Value{}, false
		}
		out.SetUint(u)
	}
	return out, true
}

func toInt64(rv reflect.Value, kind srcKind) (int64, bool) {
	switch kind {
	case srcInt:
		return rv.Int(), true
	case srcUint:
		u := rv.Uint()
		return int64(u), u <= math.MaxInt64
	case srcFloat:
		f := rv.Float()
		if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
			return 0, false
		}
		return int64(f), true
	case srcBig:
		b := rv.Interface().(*big.Int)
		return b.Int64(), b.IsInt64()
	}
	return 0, false
}

func toUint64(rv reflect.Value, kind srcKind) (uint64, bool) {
	switch kind {
	case srcInt:
		i := rv.Int()
		return uint64(i), i >= 0
	case srcUint:
		return rv.Uint(), true
	case srcFloat:
		f := rv.Float()
		if f != math.Trunc(f) || f < 0 || f >= 1<<64 {
			return 0, false
		}
		return uint64(f), true
	case srcBig:
		b := rv.Interface().(*big.Int)
		return b.Uint64(), b.IsUint64()
	}
	return 0, false
}

func toFloat(rv reflect.Value, kind srcKind, bits int) (float64, bool) {
	var bf *big.Float
	switch kind {
	case srcInt:
		bf = new(big.Float).SetInt64(rv.Int())
	case srcUint:
		bf = new(big.Float).SetUint64(rv.Uint())
	case srcBig:
		bf = new(big.Float).SetInt(rv.Interface().(*big.Int))
	case srcFloat:
		f := rv.Float()
		if bits == 64 || math.IsNaN(f) || math.IsInf(f, 0) {
			return f, true
		}
		return f, float64(float32(f)) == f
	default:
		return 0, false
	}
	if bits == 32 {
		f, acc := bf.Float32()
		return float64(f), acc == big.Exact
	}
	f, acc := bf.Float64()
	return f, acc == big.Exact
}
