// Package hostinterop embeds the host interop engine in a guest runtime.
//
// The aliases below re-export the value and error types a runtime needs so
// that embedders import a single package.
package hostinterop

import (
	"github.com/funvibe/hostinterop/internal/bridge"
	"github.com/funvibe/hostinterop/internal/config"
	"github.com/funvibe/hostinterop/internal/interop"
	"github.com/funvibe/hostinterop/internal/member"
)

// Guest value aliases
type Char = interop.Char
type Array = interop.Array
type Object = interop.Object
type Tuple = interop.Tuple
type Func = interop.Func
type Executable = interop.Executable
type ArrayValue = interop.ArrayValue
type MembersValue = interop.MembersValue
type HostRef = interop.HostRef
type HostObject = bridge.HostObject
type HostFunction = bridge.HostFunction

// Registration and configuration
type StaticSpec = member.StaticSpec
type Config = config.Config
type ExceptionWrapper = interop.ExceptionWrapper

// Error aliases
type ErrorDetail = interop.ErrorDetail
type UnknownMemberError = interop.UnknownMemberError
type ArityError = interop.ArityError
type UnsupportedTypeError = interop.UnsupportedTypeError
type AmbiguousOverloadError = interop.AmbiguousOverloadError
type NativeInvocationError = interop.NativeInvocationError
type UnsupportedMessageError = interop.UnsupportedMessageError
type InvalidIndexError = interop.InvalidIndexError

// Re-export sentinels
var (
	Null = interop.Null

	ErrUnknownMember      = interop.ErrUnknownMember
	ErrArity              = interop.ErrArity
	ErrUnsupportedType    = interop.ErrUnsupportedType
	ErrAmbiguousOverload  = interop.ErrAmbiguousOverload
	ErrNativeInvocation   = interop.ErrNativeInvocation
	ErrUnsupportedMessage = interop.ErrUnsupportedMessage
	ErrInvalidIndex       = interop.ErrInvalidIndex
)

func IsNull(v any) bool { return interop.IsNull(v) }

// ToErrorDetail classifies err for rendering as a guest exception.
func ToErrorDetail(err error) *ErrorDetail { return interop.ToErrorDetail(err) }

// LoadConfig reads a hostinterop.yaml file.
func LoadConfig(path string) (*Config, error) { return config.LoadConfig(path) }

// ParseConfig parses hostinterop.yaml content.
func ParseConfig(data []byte) (*Config, error) { return config.ParseConfig(data, "<config>") }

// ClassOf returns the static class handle of v's type.
func ClassOf(v any) *HostObject { return bridge.ClassOf(v) }
