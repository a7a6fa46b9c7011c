package interop

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Sentinels for errors.Is classification.
var (
	ErrUnknownMember      = errors.New("unknown member")
	ErrArity              = errors.New("arity mismatch")
	ErrUnsupportedType    = errors.New("unsupported type")
	ErrAmbiguousOverload  = errors.New("ambiguous overload")
	ErrNativeInvocation   = errors.New("native invocation failure")
	ErrUnsupportedMessage = errors.New("unsupported message")
	ErrInvalidIndex       = errors.New("invalid index")
)

// ErrorDetail is a language-neutral description of a dispatch failure that a
// guest runtime can render as its own exception.
type ErrorDetail struct {
	Kind    string
	Message string
	Member  string
}

// DetailedError is implemented by every classified error in this package.
type DetailedError interface {
	error
	Detail() *ErrorDetail
}

// ToErrorDetail classifies any error. Unclassified errors are "internal".
func ToErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	var de DetailedError
	if errors.As(err, &de) {
		return de.Detail()
	}
	return &ErrorDetail{Kind: "internal", Message: err.Error()}
}

// UnknownMemberError reports a name that is neither a method nor a field.
type UnknownMemberError struct {
	Name string
	Type reflect.Type
}

func (e *UnknownMemberError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("unknown identifier: %s", e.Name)
	}
	return fmt.Sprintf("unknown identifier: %s on %s", e.Name, e.Type)
}

func (e *UnknownMemberError) Is(target error) bool { return target == ErrUnknownMember }

func (e *UnknownMemberError) Detail() *ErrorDetail {
	return &ErrorDetail{Kind: "unknown_member", Message: e.Error(), Member: e.Name}
}

// ArityError reports that no candidate accepts the argument count.
// Max is -1 when a variadic candidate bounds only the minimum.
type ArityError struct {
	Name   string
	Min    int
	Max    int
	Actual int
}

func (e *ArityError) Error() string {
	var expected string
	switch {
	case e.Max < 0:
		expected = fmt.Sprintf("at least %d", e.Min)
	case e.Min == e.Max:
		expected = fmt.Sprintf("%d", e.Min)
	default:
		expected = fmt.Sprintf("%d to %d", e.Min, e.Max)
	}
	if e.Name != "" {
		return fmt.Sprintf("%s: expected %s arguments, got %d", e.Name, expected, e.Actual)
	}
	return fmt.Sprintf("expected %s arguments, got %d", expected, e.Actual)
}

func (e *ArityError) Is(target error) bool { return target == ErrArity }

func (e *ArityError) Detail() *ErrorDetail {
	return &ErrorDetail{Kind: "arity", Message: e.Error(), Member: e.Name}
}

// UnsupportedTypeError reports an argument that could not be coerced.
type UnsupportedTypeError struct {
	Args   []any
	Target reflect.Type
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	var sb strings.Builder
	sb.WriteString("unsupported type")
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Target != nil {
		sb.WriteString(" (target ")
		sb.WriteString(e.Target.String())
		sb.WriteString(")")
	}
	if len(e.Args) > 0 {
		sb.WriteString(", arguments: ")
		sb.WriteString(DescribeArgs(e.Args))
	}
	return sb.String()
}

func (e *UnsupportedTypeError) Is(target error) bool { return target == ErrUnsupportedType }

func (e *UnsupportedTypeError) Detail() *ErrorDetail {
	return &ErrorDetail{Kind: "unsupported_type", Message: e.Error()}
}

// AmbiguousOverloadError reports equally good candidates.
type AmbiguousOverloadError struct {
	Name       string
	Candidates []string
	Args       []any
}

func (e *AmbiguousOverloadError) Error() string {
	return fmt.Sprintf("multiple applicable overloads found for method name %s (candidates: [%s], arguments: %s)",
		e.Name, strings.Join(e.Candidates, ", "), DescribeArgs(e.Args))
}

func (e *AmbiguousOverloadError) Is(target error) bool { return target == ErrAmbiguousOverload }

func (e *AmbiguousOverloadError) Detail() *ErrorDetail {
	return &ErrorDetail{Kind: "ambiguous_overload", Message: e.Error(), Member: e.Name}
}

// NativeInvocationError wraps a failure raised by the host call itself.
type NativeInvocationError struct {
	Member   string
	Cause    error
	Panicked bool
}

func (e *NativeInvocationError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("host call %s panicked: %v", e.Member, e.Cause)
	}
	return fmt.Sprintf("host call %s failed: %v", e.Member, e.Cause)
}

func (e *NativeInvocationError) Unwrap() error { return e.Cause }

func (e *NativeInvocationError) Is(target error) bool { return target == ErrNativeInvocation }

func (e *NativeInvocationError) Detail() *ErrorDetail {
	return &ErrorDetail{Kind: "native", Message: e.Error(), Member: e.Member}
}

// UnsupportedMessageError reports an operation the receiver does not support,
// such as element access on a plain object.
type UnsupportedMessageError struct {
	Message  string
	Receiver string
}

func (e *UnsupportedMessageError) Error() string {
	if e.Receiver != "" {
		return fmt.Sprintf("unsupported message %s on %s", e.Message, e.Receiver)
	}
	return fmt.Sprintf("unsupported message %s", e.Message)
}

func (e *UnsupportedMessageError) Is(target error) bool { return target == ErrUnsupportedMessage }

func (e *UnsupportedMessageError) Detail() *ErrorDetail {
	return &ErrorDetail{Kind: "unsupported_message", Message: e.Error()}
}

// InvalidIndexError reports an out-of-range element index or missing map key.
type InvalidIndexError struct {
	Index int64
	Key   any
	Size  int
}

func (e *InvalidIndexError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("key %v not found", e.Key)
	}
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}

func (e *InvalidIndexError) Is(target error) bool { return target == ErrInvalidIndex }

func (e *InvalidIndexError) Detail() *ErrorDetail {
	return &ErrorDetail{Kind: "invalid_index", Message: e.Error()}
}
