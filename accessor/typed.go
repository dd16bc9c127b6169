package accessor

import (
	"reflect"
	"unsafe"

	"github.com/Konsultn-Engineering/dynreflect/cache"
	"github.com/Konsultn-Engineering/dynreflect/schema"
)

// untyped marks a typed key whose accessor needs the reflective path.
type untyped struct{}

// Get returns a typed getter for the member name of T, where T is a struct
// type or a pointer to one. Exact-typed methods and inline fields are read
// without reflection; anything else goes through CreateGetter.
func Get[T, R any](f *Factory, name string) (func(T) R, error) {
	tt, rt := reflect.TypeFor[T](), reflect.TypeFor[R]()
	key := cache.Key(cache.KindTypedGetter, cache.TypeID(tt), name, cache.TypeID(rt))

	built, err := f.compiled.GetOrBuild(key, func() (any, error) {
		if fn, ok := typedGetter[T, R](f, tt, rt, name); ok {
			return fn, nil
		}
		return untyped{}, nil
	})
	if err != nil {
		return nil, err
	}
	if fn, ok := built.(func(T) R); ok {
		return fn, nil
	}

	// Built outside the shard lock: CreateGetter uses the same cache
	g, err := f.CreateGetter(tt, rt, name)
	if err != nil {
		return nil, err
	}
	return func(t T) R {
		r, _ := g(t).(R)
		return r
	}, nil
}

// Set returns a typed setter for the member name of T, which must be a
// pointer to a struct (or an interface with a setter method).
func Set[T, V any](f *Factory, name string) (func(T, V) error, error) {
	tt, vt := reflect.TypeFor[T](), reflect.TypeFor[V]()
	if tt.Kind() != reflect.Pointer && tt.Kind() != reflect.Interface {
		return nil, &AccessorBuildError{Type: tt, Member: name, Direction: "setter", Reason: "target must be a pointer"}
	}
	key := cache.Key(cache.KindTypedSetter, cache.TypeID(tt), name, cache.TypeID(vt))

	built, err := f.compiled.GetOrBuild(key, func() (any, error) {
		if fn, ok := typedSetter[T, V](f, tt, vt, name); ok {
			return fn, nil
		}
		return untyped{}, nil
	})
	if err != nil {
		return nil, err
	}
	if fn, ok := built.(func(T, V) error); ok {
		return fn, nil
	}

	s, err := f.CreateSetter(tt, vt, name)
	if err != nil {
		return nil, err
	}
	return func(t T, v V) error {
		return s(t, v)
	}, nil
}

func typedGetter[T, R any](f *Factory, tt, rt reflect.Type, name string) (func(T) R, bool) {
	h := f.members.Registry().Of(tt)

	if p, ok := f.members.Property(h, name, schema.ScopeDefault); ok && p.Readable() {
		// Method expressions on T itself have the exact shape func(T) R
		if m, ok := tt.MethodByName(p.Getter.Name); ok && m.Func.IsValid() {
			fn, ok := m.Func.Interface().(func(T) R)
			return fn, ok
		}
		return nil, false
	}

	m, ok := f.members.Field(h, name, schema.ScopeAll)
	if !ok || !m.Direct || m.Type != rt {
		return nil, false
	}
	off := m.Offset

	switch {
	case tt.Kind() == reflect.Pointer:
		return func(t T) R {
			base := *(*unsafe.Pointer)(unsafe.Pointer(&t))
			return *(*R)(unsafe.Add(base, off))
		}, true
	case tt.Kind() == reflect.Struct:
		return func(t T) R {
			return *(*R)(unsafe.Add(unsafe.Pointer(&t), off))
		}, true
	}
	return nil, false
}

func typedSetter[T, V any](f *Factory, tt, vt reflect.Type, name string) (func(T, V) error, bool) {
	h := f.members.Registry().Of(tt)

	if p, ok := f.members.Property(h, name, schema.ScopeDefault); ok && p.Writable() {
		m, ok := tt.MethodByName(p.Setter.Name)
		if !ok || !m.Func.IsValid() {
			return nil, false
		}
		switch fn := m.Func.Interface().(type) {
		case func(T, V) error:
			return fn, true
		case func(T, V):
			return func(t T, v V) error {
				fn(t, v)
				return nil
			}, true
		}
		return nil, false
	}

	if tt.Kind() != reflect.Pointer {
		return nil, false
	}
	m, ok := f.members.Field(h, name, schema.ScopeAll)
	if !ok || !m.Direct || m.Type != vt {
		return nil, false
	}
	off := m.Offset
	return func(t T, v V) error {
		base := *(*unsafe.Pointer)(unsafe.Pointer(&t))
		*(*V)(unsafe.Add(base, off)) = v
		return nil
	}, true
}
