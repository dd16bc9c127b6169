package schema

import (
	"reflect"

	"github.com/Konsultn-Engineering/dynreflect/cache"
	"github.com/Konsultn-Engineering/dynreflect/registry"
)

// Cache resolves members of a type by name, signature and scope. Every
// distinct query runs its metadata scan once; found and not-found outcomes
// are both kept until Clear.
type Cache struct {
	registry *registry.Registry
	members  cache.Store[MemberKey, *Member]
	lists    cache.Store[MemberKey, []*Member]
}

// NewCache creates a member cache over reg. reg resolves the embedded types
// consulted for inherited annotations.
func NewCache(reg *registry.Registry) *Cache {
	return &Cache{registry: reg}
}

// Registry returns the type resolver behind the cache.
func (c *Cache) Registry() *registry.Registry { return c.registry }

// Field finds a struct field, promoted fields included. Unexported fields
// need ScopeNonPublic, exported ones ScopePublic, both need ScopeInstance.
func (c *Cache) Field(h *registry.TypeHandle, name string, scope Scope) (*Member, bool) {
	if h == nil || name == "" {
		return nil, false
	}
	key := MemberKey{Type: h.Type(), Kind: KindField, Name: name, Scope: scope, Arity: -1}
	return c.members.LoadOrResolve(key, func() (*Member, bool) {
		return scanField(h, name, scope)
	})
}

// Property finds a Name()/GetName() getter and SetName(v) setter pair on the
// pointer method set. Either half may be missing, not both.
func (c *Cache) Property(h *registry.TypeHandle, name string, scope Scope) (*Member, bool) {
	if h == nil || name == "" {
		return nil, false
	}
	key := MemberKey{Type: h.Type(), Kind: KindProperty, Name: name, Scope: scope, Arity: -1}
	return c.members.LoadOrResolve(key, func() (*Member, bool) {
		return scanProperty(h, name, scope)
	})
}

// Method finds the first callable named name whose parameters equal sig.
// With AnySig the first candidate wins: the instance method, then statics in
// registration order.
func (c *Cache) Method(h *registry.TypeHandle, name string, sig Signature, scope Scope) (*Member, bool) {
	if h == nil || name == "" {
		return nil, false
	}
	key := MemberKey{Type: h.Type(), Kind: KindMethod, Name: name, Signature: sig.Key(), Scope: scope, Arity: -1}
	return c.members.LoadOrResolve(key, func() (*Member, bool) {
		return firstMatching(scanMethods(h, name, scope), sig)
	})
}

// Constructor finds the first registered constructor whose parameters equal sig.
func (c *Cache) Constructor(h *registry.TypeHandle, sig Signature, scope Scope) (*Member, bool) {
	if h == nil {
		return nil, false
	}
	key := MemberKey{Type: h.Type(), Kind: KindConstructor, Name: ConstructorName, Signature: sig.Key(), Scope: scope, Arity: -1}
	return c.members.LoadOrResolve(key, func() (*Member, bool) {
		return firstMatching(scanConstructors(h, scope), sig)
	})
}

// Methods lists the callables named name that accept arity arguments in
// declaration order. A negative arity lists them all.
func (c *Cache) Methods(h *registry.TypeHandle, name string, arity int, scope Scope) []*Member {
	if h == nil || name == "" {
		return nil
	}
	key := MemberKey{Type: h.Type(), Kind: KindMethod, Name: name, Scope: scope, Arity: arity}
	list, _ := c.lists.LoadOrResolve(key, func() ([]*Member, bool) {
		return withArity(scanMethods(h, name, scope), arity)
	})
	return cloneMembers(list)
}

// Constructors lists the constructors that accept arity arguments in
// registration order. A negative arity lists them all.
func (c *Cache) Constructors(h *registry.TypeHandle, arity int, scope Scope) []*Member {
	if h == nil {
		return nil
	}
	key := MemberKey{Type: h.Type(), Kind: KindConstructor, Name: ConstructorName, Scope: scope, Arity: arity}
	list, _ := c.lists.LoadOrResolve(key, func() ([]*Member, bool) {
		return withArity(scanConstructors(h, scope), arity)
	})
	return cloneMembers(list)
}

// TypeTarget returns the member standing for the type itself, the target of
// type-level annotations.
func (c *Cache) TypeTarget(h *registry.TypeHandle) *Member {
	if h == nil {
		return nil
	}
	key := MemberKey{Type: h.Type(), Kind: KindType, Arity: -1}
	m, _ := c.members.LoadOrResolve(key, func() (*Member, bool) {
		return &Member{Kind: KindType, Owner: h, Type: h.Type(), Declared: h.Type(), key: key}, true
	})
	return m
}

// Scans returns how many queries actually inspected type metadata.
func (c *Cache) Scans() int64 {
	return c.members.Misses() + c.lists.Misses()
}

// Clear drops every cached member and candidate list.
func (c *Cache) Clear() {
	c.members.Clear()
	c.lists.Clear()
}

// =========================================================================
// Scanning
// =========================================================================

func scanField(h *registry.TypeHandle, name string, scope Scope) (*Member, bool) {
	t := h.Type()
	if t.Kind() != reflect.Struct || !scope.Has(ScopeInstance) {
		return nil, false
	}

	sf, ok := t.FieldByName(name)
	if !ok && scope.Has(ScopeIgnoreCase) {
		sf, ok = t.FieldByNameFunc(func(n string) bool { return sameName(n, name, scope) })
	}
	if !ok {
		return nil, false
	}

	exported := sf.IsExported()
	if exported && !scope.Has(ScopePublic) || !exported && !scope.Has(ScopeNonPublic) {
		return nil, false
	}

	// Walk the index path: offsets add up while every hop is an inline struct
	cur := t
	direct := true
	var off uintptr
	for depth, idx := range sf.Index {
		f := cur.Field(idx)
		off += f.Offset
		if depth == len(sf.Index)-1 {
			break
		}
		next := f.Type
		if next.Kind() == reflect.Pointer {
			direct = false
			next = next.Elem()
		}
		cur = next
	}
	if !direct {
		off = 0
	}

	m := &Member{
		Kind:     KindField,
		Name:     sf.Name,
		Owner:    h,
		Type:     sf.Type,
		Index:    sf.Index,
		Offset:   off,
		Direct:   direct,
		Exported: exported,
		Tag:      sf.Tag,
		Declared: cur,
	}
	m.key = MemberKey{Type: t, Kind: KindField, Name: sf.Name, Scope: scope, Arity: -1}
	return m, true
}

func scanProperty(h *registry.TypeHandle, name string, scope Scope) (*Member, bool) {
	if !scope.Has(ScopePublic | ScopeInstance) {
		return nil, false
	}

	t := h.Type()
	mset, recv := methodSet(t)

	getter, which, hasGetter := findMethod(mset, getterNames(name), scope, func(ft reflect.Type) bool {
		return ft.NumIn() == recv && ft.NumOut() == 1
	})
	setter, _, hasSetter := findMethod(mset, []string{setterName(name)}, scope, func(ft reflect.Type) bool {
		if ft.NumIn() != recv+1 {
			return false
		}
		return ft.NumOut() == 0 || ft.NumOut() == 1 && ft.Out(0) == errorType
	})
	if hasGetter && hasSetter && getter.Type.Out(0) != setter.Type.In(recv) {
		hasSetter = false
	}
	if !hasGetter && !hasSetter {
		return nil, false
	}

	m := &Member{Kind: KindProperty, Owner: h, Exported: true, Declared: t, Interface: recv == 0}
	if hasGetter {
		g := getter
		m.Getter = &g
		m.Type = getter.Type.Out(0)
		m.Name = getter.Name
		if which == 1 {
			m.Name = getter.Name[len("Get"):]
		}
	}
	if hasSetter {
		s := setter
		m.Setter = &s
		if !hasGetter {
			m.Type = setter.Type.In(recv)
			m.Name = setter.Name[len("Set"):]
		}
	}
	m.key = MemberKey{Type: t, Kind: KindProperty, Name: m.Name, Scope: scope, Arity: -1}
	return m, true
}

// scanMethods lists instance and static callables named name in declaration
// order: the method of the pointer method set first, then registered statics.
func scanMethods(h *registry.TypeHandle, name string, scope Scope) []*Member {
	var out []*Member
	t := h.Type()

	if scope.Has(ScopePublic | ScopeInstance) {
		mset, recv := methodSet(t)
		if method, _, ok := findMethod(mset, []string{name}, scope, nil); ok {
			out = append(out, methodMember(h, method, recv, scope))
		}
	}

	if scope.Has(ScopePublic | ScopeStatic) {
		for _, static := range h.StaticNames() {
			if !sameName(static, name, scope) {
				continue
			}
			for i, fn := range h.Statics(static) {
				out = append(out, funcMember(h, KindMethod, static, fn, i, scope))
			}
		}
	}
	return out
}

func scanConstructors(h *registry.TypeHandle, scope Scope) []*Member {
	if !scope.Has(ScopePublic) {
		return nil
	}
	ctors := h.Constructors()
	out := make([]*Member, 0, len(ctors))
	for i, fn := range ctors {
		out = append(out, funcMember(h, KindConstructor, ConstructorName, fn, i, scope))
	}
	return out
}

func methodMember(h *registry.TypeHandle, method reflect.Method, recv int, scope Scope) *Member {
	ft := method.Type
	m := &Member{
		Kind:      KindMethod,
		Name:      method.Name,
		Owner:     h,
		Type:      ft,
		Index:     []int{method.Index},
		Func:      method.Func,
		Variadic:  ft.IsVariadic(),
		Exported:  true,
		Declared:  h.Type(),
		Interface: recv == 0,
	}
	for i := recv; i < ft.NumIn(); i++ {
		m.Params = append(m.Params, ft.In(i))
	}
	for i := 0; i < ft.NumOut(); i++ {
		m.Results = append(m.Results, ft.Out(i))
	}
	m.key = callableKey(m, scope)
	return m
}

func funcMember(h *registry.TypeHandle, kind MemberKind, name string, fn reflect.Value, order int, scope Scope) *Member {
	ft := fn.Type()
	m := &Member{
		Kind:     kind,
		Name:     name,
		Owner:    h,
		Type:     ft,
		Func:     fn,
		Variadic: ft.IsVariadic(),
		Static:   true,
		Exported: true,
		Declared: h.Type(),
		Order:    order,
	}
	for i := 0; i < ft.NumIn(); i++ {
		m.Params = append(m.Params, ft.In(i))
	}
	for i := 0; i < ft.NumOut(); i++ {
		m.Results = append(m.Results, ft.Out(i))
	}
	m.key = callableKey(m, scope)
	return m
}

// callableKey identifies a callable by its exact signature. The static flag
// keeps an instance method apart from a same-named, same-shaped static.
func callableKey(m *Member, scope Scope) MemberKey {
	name := m.Name
	if m.Static && m.Kind == KindMethod {
		name = "static:" + name
	}
	return MemberKey{
		Type:      m.Owner.Type(),
		Kind:      m.Kind,
		Name:      name,
		Signature: m.Signature().Key(),
		Scope:     scope,
		Arity:     -1,
	}
}

// methodSet returns the type whose methods a value of t exposes and how many
// leading receiver parameters its method types carry.
func methodSet(t reflect.Type) (reflect.Type, int) {
	if t.Kind() == reflect.Interface {
		return t, 0
	}
	return reflect.PointerTo(t), 1
}

// findMethod tries names in order, exact spelling first, then folded when
// the scope ignores case. which is the index of the name that matched.
func findMethod(mset reflect.Type, names []string, scope Scope, accept func(reflect.Type) bool) (method reflect.Method, which int, ok bool) {
	fits := func(m reflect.Method) bool { return accept == nil || accept(m.Type) }

	for i, n := range names {
		if m, found := mset.MethodByName(n); found && fits(m) {
			return m, i, true
		}
	}
	if !scope.Has(ScopeIgnoreCase) {
		return method, 0, false
	}
	for i, n := range names {
		for j := 0; j < mset.NumMethod(); j++ {
			if m := mset.Method(j); sameName(m.Name, n, scope) && fits(m) {
				return m, i, true
			}
		}
	}
	return method, 0, false
}

func firstMatching(candidates []*Member, sig Signature) (*Member, bool) {
	for _, m := range candidates {
		if sig.Matches(m.Params) {
			return m, true
		}
	}
	return nil, false
}

func withArity(candidates []*Member, arity int) ([]*Member, bool) {
	if arity < 0 {
		return candidates, len(candidates) > 0
	}
	out := candidates[:0:0]
	for _, m := range candidates {
		if m.Accepts(arity) {
			out = append(out, m)
		}
	}
	return out, len(out) > 0
}
