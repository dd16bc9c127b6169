package dynreflect

import (
	"reflect"

	"github.com/Konsultn-Engineering/dynreflect/accessor"
	"github.com/Konsultn-Engineering/dynreflect/convert"
	"github.com/Konsultn-Engineering/dynreflect/invoker"
	"github.com/Konsultn-Engineering/dynreflect/registry"
	"github.com/Konsultn-Engineering/dynreflect/schema"
)

type (
	TypeHandle = registry.TypeHandle
	Member     = schema.Member
	Scope      = schema.Scope
	Signature  = schema.Signature
	Tag        = schema.Tag
	Getter     = accessor.Getter
	Setter     = accessor.Setter

	ConversionError         = convert.ConversionError
	AccessorBuildError      = accessor.AccessorBuildError
	NoMatchingOverloadError = invoker.NoMatchingOverloadError
	InvocationError         = invoker.InvocationError
)

const (
	ScopePublic     = schema.ScopePublic
	ScopeNonPublic  = schema.ScopeNonPublic
	ScopeInstance   = schema.ScopeInstance
	ScopeStatic     = schema.ScopeStatic
	ScopeIgnoreCase = schema.ScopeIgnoreCase
	ScopeDefault    = schema.ScopeDefault
	ScopeAll        = schema.ScopeAll
)

// NoResult is what calls returning nothing, or only a nil error, produce.
var NoResult = invoker.NoResult

// ErrNilInstance is matched by InvokeMethod errors for a nil instance.
var ErrNilInstance = invoker.ErrNilInstance

// AnySig leaves a member's parameters unconstrained.
var AnySig = schema.AnySig

// Sig builds an exact parameter signature.
func Sig(types ...reflect.Type) Signature { return schema.Sig(types...) }
