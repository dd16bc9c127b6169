package schema

import (
	"reflect"
	"slices"
	"strings"

	"github.com/Konsultn-Engineering/dynreflect/cache"
)

// Signature is an ordered list of parameter types. The zero value is
// AnySig: no signature constraint at all, which differs from Sig() with no
// types (exactly zero parameters).
type Signature struct {
	types []reflect.Type
	set   bool
}

// AnySig matches members regardless of their parameters.
var AnySig = Signature{}

// Sig builds an exact signature.
func Sig(types ...reflect.Type) Signature {
	return Signature{types: slices.Clone(types), set: true}
}

// SigOf builds the signature of a call site from argument runtime types.
// A nil argument contributes a nil type.
func SigOf(args ...any) Signature {
	types := make([]reflect.Type, len(args))
	for i, a := range args {
		if a != nil {
			types[i] = reflect.TypeOf(a)
		}
	}
	return Signature{types: types, set: true}
}

// Specified reports whether the signature constrains parameters.
func (s Signature) Specified() bool { return s.set }

// Len returns the number of parameter types.
func (s Signature) Len() int { return len(s.types) }

// Types returns a copy of the parameter types.
func (s Signature) Types() []reflect.Type { return slices.Clone(s.types) }

// At returns the i-th type, nil for an untyped nil argument.
func (s Signature) At(i int) reflect.Type { return s.types[i] }

// Key renders the canonical form used in cache keys: "*" for AnySig,
// otherwise the parenthesised list of type tokens, nil for untyped nils.
func (s Signature) Key() string {
	if !s.set {
		return "*"
	}
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range s.types {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(cache.TypeID(t))
	}
	b.WriteByte(')')
	return b.String()
}

func (s Signature) String() string {
	if !s.set {
		return "(...)"
	}
	names := make([]string, len(s.types))
	for i, t := range s.types {
		names[i] = "nil"
		if t != nil {
			names[i] = t.String()
		}
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Matches reports exact equality with a parameter list. AnySig matches all.
func (s Signature) Matches(params []reflect.Type) bool {
	if !s.set {
		return true
	}
	if len(s.types) != len(params) {
		return false
	}
	for i, t := range s.types {
		if t != params[i] {
			return false
		}
	}
	return true
}

// TypeKey renders a type for diagnostics. Named types carry their package
// path.
func TypeKey(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if pkg := t.PkgPath(); pkg != "" && t.Name() != "" {
		return pkg + "." + t.Name()
	}
	return t.String()
}
