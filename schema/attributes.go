package schema

import (
	"reflect"

	"github.com/Konsultn-Engineering/dynreflect/cache"
	"github.com/Konsultn-Engineering/dynreflect/registry"
)

type attributeKey struct {
	member  MemberKey
	filter  reflect.Type // nil lists everything
	inherit bool
}

// AttributeIndex answers annotation queries on members. Sources, in order:
// values registered with registry.Annotate on the owner, the field's struct
// tags as Tag values, and with inherit, values registered on the embedded
// types the member is promoted from. Empty results are cached as well.
type AttributeIndex struct {
	members *Cache
	tags    *TagParser
	entries cache.Store[attributeKey, []any]
}

// NewAttributeIndex creates an index that resolves embedded types through
// the member cache's registry.
func NewAttributeIndex(members *Cache) *AttributeIndex {
	return &AttributeIndex{members: members, tags: NewTagParser()}
}

// Get returns the annotations on m assignable to annotationType.
func (x *AttributeIndex) Get(m *Member, annotationType reflect.Type, inherit bool) []any {
	if m == nil || annotationType == nil {
		return nil
	}
	return x.lookup(m, annotationType, inherit)
}

// GetAll returns every annotation on m.
func (x *AttributeIndex) GetAll(m *Member, inherit bool) []any {
	if m == nil {
		return nil
	}
	return x.lookup(m, nil, inherit)
}

// Has reports whether m carries an annotation assignable to annotationType.
func (x *AttributeIndex) Has(m *Member, annotationType reflect.Type, inherit bool) bool {
	return len(x.Get(m, annotationType, inherit)) > 0
}

// TypeTarget is Cache.TypeTarget, for type-level annotation queries.
func (x *AttributeIndex) TypeTarget(h *registry.TypeHandle) *Member {
	return x.members.TypeTarget(h)
}

// Scans returns how many annotation queries were computed rather than
// served from cache.
func (x *AttributeIndex) Scans() int64 { return x.entries.Misses() }

// Clear drops cached answers and parsed tags.
func (x *AttributeIndex) Clear() {
	x.entries.Clear()
	x.tags.ClearCache()
}

// Attribute returns the first annotation of type A on m.
func Attribute[A any](x *AttributeIndex, m *Member, inherit bool) (A, bool) {
	var zero A
	for _, v := range x.Get(m, reflect.TypeFor[A](), inherit) {
		if a, ok := v.(A); ok {
			return a, true
		}
	}
	return zero, false
}

// Attributes returns every annotation of type A on m.
func Attributes[A any](x *AttributeIndex, m *Member, inherit bool) []A {
	found := x.Get(m, reflect.TypeFor[A](), inherit)
	out := make([]A, 0, len(found))
	for _, v := range found {
		if a, ok := v.(A); ok {
			out = append(out, a)
		}
	}
	return out
}

func (x *AttributeIndex) lookup(m *Member, filter reflect.Type, inherit bool) []any {
	key := attributeKey{member: m.Key(), filter: filter, inherit: inherit}
	if m.Kind == KindType {
		key.member = MemberKey{Type: m.Owner.Type(), Kind: KindType, Arity: -1}
	}
	found, _ := x.entries.LoadOrResolve(key, func() ([]any, bool) {
		matched := filterAssignable(x.collect(m, inherit), filter)
		return matched, len(matched) > 0
	})
	return append([]any(nil), found...)
}

func (x *AttributeIndex) collect(m *Member, inherit bool) []any {
	target := annotationTarget(m)
	out := m.Owner.Annotations(target)

	if m.Kind == KindField {
		for _, tag := range x.tags.Parse(m.Tag) {
			out = append(out, tag)
		}
	}

	if !inherit {
		return out
	}

	reg := x.members.Registry()
	for _, t := range x.ancestors(m) {
		if h := reg.Of(t); h != nil && h != m.Owner {
			out = append(out, h.Annotations(target)...)
		}
	}
	return out
}

// ancestors lists the embedded types an annotation may be inherited from.
func (x *AttributeIndex) ancestors(m *Member) []reflect.Type {
	switch m.Kind {
	case KindType:
		return embeddedTypes(m.Owner.Type())
	case KindField:
		return m.Hops()
	case KindMethod, KindProperty:
		if m.Static || m.Interface {
			return nil
		}
		name := m.Name
		if m.Kind == KindProperty && m.Getter != nil {
			name = m.Getter.Name
		} else if m.Kind == KindProperty {
			name = m.Setter.Name
		}
		var out []reflect.Type
		for _, t := range embeddedTypes(m.Owner.Type()) {
			if _, ok := reflect.PointerTo(t).MethodByName(name); ok {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}

// annotationTarget is the member name annotations are registered under.
func annotationTarget(m *Member) string {
	switch m.Kind {
	case KindType:
		return ""
	case KindConstructor:
		return ConstructorName
	}
	return m.Name
}

// embeddedTypes walks anonymous struct fields breadth first, each type once.
func embeddedTypes(t reflect.Type) []reflect.Type {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []reflect.Type
	seen := map[reflect.Type]bool{t: true}
	queue := []reflect.Type{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i := 0; i < cur.NumField(); i++ {
			f := cur.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if seen[ft] {
				continue
			}
			seen[ft] = true
			out = append(out, ft)
			if ft.Kind() == reflect.Struct {
				queue = append(queue, ft)
			}
		}
	}
	return out
}

func filterAssignable(values []any, filter reflect.Type) []any {
	if filter == nil {
		return values
	}
	var out []any
	for _, v := range values {
		if reflect.TypeOf(v).AssignableTo(filter) {
			out = append(out, v)
		}
	}
	return out
}
