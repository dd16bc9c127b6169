package schema

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/Konsultn-Engineering/dynreflect/registry"
)

// MemberKey identifies one member query. Identical queries share a key, so
// they share a cache entry.
type MemberKey struct {
	Type      reflect.Type
	Kind      MemberKind
	Name      string
	Signature string // Signature.Key(), "" for fields and properties
	Scope     Scope
	Arity     int // candidate-list queries only, -1 otherwise
}

func (k MemberKey) String() string {
	t := "<nil>"
	if k.Type != nil {
		t = TypeKey(k.Type)
	}
	s := fmt.Sprintf("%s %s.%s%s [%s]", k.Kind, t, k.Name, k.Signature, k.Scope)
	if k.Arity >= 0 {
		s += fmt.Sprintf(" /%d", k.Arity)
	}
	return s
}

// Member is resolved metadata for a field, property, method, constructor or
// the type itself. Members are immutable once published by the Cache.
type Member struct {
	Kind  MemberKind
	Name  string
	Owner *registry.TypeHandle
	Type  reflect.Type // field or property type, func type for callables

	// Fields
	Index    []int   // field index path, or the method index for methods
	Offset   uintptr // from the owner's base address, valid when Direct
	Direct   bool    // no pointer hops between the owner and the field
	Exported bool
	Tag      reflect.StructTag
	Declared reflect.Type // struct that declares the field, differs from Owner when promoted

	// Properties, methods on the owner's pointer method set
	Getter *reflect.Method
	Setter *reflect.Method

	// Methods and constructors
	Func      reflect.Value // static or constructor func, or method expression taking the receiver first
	Params    []reflect.Type
	Results   []reflect.Type
	Variadic  bool
	Static    bool
	Interface bool // method declared by an interface type, no Func
	Order     int  // registration order among same-named callables

	key MemberKey
}

// Key returns the query key the member was resolved under.
func (m *Member) Key() MemberKey { return m.key }

// Arity is the declared parameter count, receiver excluded.
func (m *Member) Arity() int { return len(m.Params) }

// Signature returns the exact parameter signature of a callable.
func (m *Member) Signature() Signature { return Sig(m.Params...) }

// Accepts reports whether a call with n arguments can bind to the member.
func (m *Member) Accepts(n int) bool {
	if m.Variadic {
		return n >= len(m.Params)-1
	}
	return n == len(m.Params)
}

// Readable reports whether the member value can be read.
func (m *Member) Readable() bool {
	switch m.Kind {
	case KindField:
		return true
	case KindProperty:
		return m.Getter != nil
	}
	return false
}

// Writable reports whether the member value can be assigned.
func (m *Member) Writable() bool {
	switch m.Kind {
	case KindField:
		return true
	case KindProperty:
		return m.Setter != nil
	}
	return false
}

// ReturnsError reports whether the last result is an error.
func (m *Member) ReturnsError() bool {
	n := len(m.Results)
	return n > 0 && m.Results[n-1] == errorType
}

// Hops returns the embedded struct types crossed to reach a promoted field,
// outermost first. Empty for fields declared directly on the owner.
func (m *Member) Hops() []reflect.Type {
	if m.Kind != KindField || len(m.Index) < 2 {
		return nil
	}
	var hops []reflect.Type
	t := m.Owner.Type()
	for _, idx := range m.Index[:len(m.Index)-1] {
		t = t.Field(idx).Type
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		hops = append(hops, t)
	}
	return hops
}

func (m *Member) String() string {
	switch m.Kind {
	case KindMethod, KindConstructor:
		return fmt.Sprintf("%s.%s%s", m.Owner.Name(), m.Name, m.Signature())
	case KindType:
		return m.Owner.Name()
	default:
		return fmt.Sprintf("%s.%s %s", m.Owner.Name(), m.Name, m.Type)
	}
}

func cloneMembers(ms []*Member) []*Member { return slices.Clone(ms) }

var errorType = reflect.TypeFor[error]()
