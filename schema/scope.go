package schema

import "strings"

// Scope is the visibility bitmask of a member lookup. It is part of every
// cache key, so a public-only query and an all-visibility query for the same
// name are tracked independently.
type Scope uint8

const (
	ScopePublic    Scope = 1 << iota // exported members
	ScopeNonPublic                   // unexported fields
	ScopeInstance                    // fields, properties and methods of values
	ScopeStatic                      // functions registered on the type
	ScopeIgnoreCase                  // FirstName, firstName and first_name are one name

	ScopeDefault = ScopePublic | ScopeInstance | ScopeStatic
	ScopeAll     = ScopePublic | ScopeNonPublic | ScopeInstance | ScopeStatic
)

// Has reports whether every bit of flag is set.
func (s Scope) Has(flag Scope) bool { return s&flag == flag }

func (s Scope) String() string {
	if s == 0 {
		return "none"
	}
	names := make([]string, 0, 5)
	for _, f := range []struct {
		flag Scope
		name string
	}{
		{ScopePublic, "public"},
		{ScopeNonPublic, "nonpublic"},
		{ScopeInstance, "instance"},
		{ScopeStatic, "static"},
		{ScopeIgnoreCase, "ignorecase"},
	} {
		if s.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

// MemberKind identifies what a Member describes.
type MemberKind uint8

const (
	KindField MemberKind = iota + 1
	KindProperty
	KindMethod
	KindConstructor
	KindType
)

func (k MemberKind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindProperty:
		return "property"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindType:
		return "type"
	default:
		return "unknown"
	}
}

// ConstructorName is the member name constructors are registered and
// annotated under.
const ConstructorName = "new"
