package accessor

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/Konsultn-Engineering/dynreflect/cache"
	"github.com/Konsultn-Engineering/dynreflect/schema"
)

// Getter reads a member from a T or *T target.
type Getter func(target any) any

// Setter writes a member of a *T target. Only property setters returning an
// error can fail.
type Setter func(target, value any) error

// Factory builds member getters and setters and caches them forever, keyed
// by target type, member name, declared value type and direction.
type Factory struct {
	members  *schema.Cache
	compiled *cache.Compiled[any]
	shards   int
}

type Option func(*Factory)

// WithShards sets the shard count of the accessor cache.
func WithShards(n int) Option {
	return func(f *Factory) { f.shards = n }
}

// New creates a Factory resolving members through members.
func New(members *schema.Cache, opts ...Option) *Factory {
	f := &Factory{members: members, shards: cache.DefaultShards}
	for _, opt := range opts {
		opt(f)
	}
	f.compiled = cache.NewCompiled[any](f.shards)
	return f
}

// CreateGetter returns a getter for the member name of target whose result
// is cast to result. A readable property wins over a field; fields of any
// visibility qualify. A nil result keeps the member's own type.
func (f *Factory) CreateGetter(target, result reflect.Type, name string) (Getter, error) {
	if target == nil {
		return nil, &AccessorBuildError{Member: name, Direction: "getter", Reason: "nil target type"}
	}
	target = baseType(target)

	key := cache.Key(cache.KindGetter, cache.TypeID(target), name, cache.TypeID(result))
	built, err := f.compiled.GetOrBuild(key, func() (any, error) {
		return f.buildGetter(target, result, name)
	})
	if err != nil {
		return nil, err
	}
	return built.(Getter), nil
}

// CreateSetter returns a setter for the member name of target accepting
// values of type value. A writable property wins over a field.
func (f *Factory) CreateSetter(target, value reflect.Type, name string) (Setter, error) {
	if target == nil {
		return nil, &AccessorBuildError{Member: name, Direction: "setter", Reason: "nil target type"}
	}
	target = baseType(target)

	key := cache.Key(cache.KindSetter, cache.TypeID(target), name, cache.TypeID(value))
	built, err := f.compiled.GetOrBuild(key, func() (any, error) {
		return f.buildSetter(target, value, name)
	})
	if err != nil {
		return nil, err
	}
	return built.(Setter), nil
}

// Builds returns how many accessors were built, typed ones included.
func (f *Factory) Builds() int64 { return f.compiled.Builds() }

// Len returns the number of cached accessors.
func (f *Factory) Len() int { return f.compiled.Len() }

// Clear drops every cached accessor.
func (f *Factory) Clear() { f.compiled.Clear() }

// =========================================================================
// Getters
// =========================================================================

func (f *Factory) buildGetter(target, result reflect.Type, name string) (Getter, error) {
	h := f.members.Registry().Of(target)

	if p, ok := f.members.Property(h, name, schema.ScopeDefault); ok && p.Readable() {
		cast, err := castFunc(p.Type, result)
		if err != nil {
			return nil, &AccessorBuildError{Type: target, Member: name, Direction: "getter", Reason: "incompatible result type", Err: err}
		}
		return propertyGetter(target, p, cast), nil
	}

	if m, ok := f.members.Field(h, name, schema.ScopeAll); ok {
		cast, err := castFunc(m.Type, result)
		if err != nil {
			return nil, &AccessorBuildError{Type: target, Member: name, Direction: "getter", Reason: "incompatible result type", Err: err}
		}
		return fieldGetter(target, result, m, cast), nil
	}

	return nil, &AccessorBuildError{Type: target, Member: name, Direction: "getter", Reason: "no readable property or field"}
}

func propertyGetter(target reflect.Type, p *schema.Member, cast castFn) Getter {
	finish := func(out reflect.Value) any {
		if cast != nil {
			out = cast(out)
		}
		return out.Interface()
	}

	if p.Interface {
		idx := p.Getter.Index
		return func(obj any) any {
			return finish(asInterface(obj, target).Method(idx).Call(nil)[0])
		}
	}

	fn := p.Getter.Func
	return func(obj any) any {
		return finish(fn.Call([]reflect.Value{receiver(obj, target, false)})[0])
	}
}

func fieldGetter(target, result reflect.Type, m *schema.Member, cast castFn) Getter {
	ft := m.Type

	if m.Direct {
		off := m.Offset
		if cast == nil {
			fa, ok := fastAccess(ft)
			if !ok {
				fa = reflectAccess(ft)
			}
			return func(obj any) any {
				return fa.read(unsafe.Add(receiver(obj, target, false).UnsafePointer(), off))
			}
		}
		return func(obj any) any {
			p := unsafe.Add(receiver(obj, target, false).UnsafePointer(), off)
			return cast(reflect.NewAt(ft, p).Elem()).Interface()
		}
	}

	// Promoted through an embedded pointer: a nil hop reads as the zero value
	index := m.Index
	if result == nil {
		result = ft
	}
	zero := reflect.Zero(result)
	return func(obj any) any {
		fv, ok := walkFields(receiver(obj, target, false).Elem(), index, false)
		if !ok {
			return zero.Interface()
		}
		if cast != nil {
			fv = cast(fv)
		}
		return fv.Interface()
	}
}

// =========================================================================
// Setters
// =========================================================================

func (f *Factory) buildSetter(target, value reflect.Type, name string) (Setter, error) {
	h := f.members.Registry().Of(target)

	if p, ok := f.members.Property(h, name, schema.ScopeDefault); ok && p.Writable() {
		cast, err := castFunc(value, p.Type)
		if err != nil {
			return nil, &AccessorBuildError{Type: target, Member: name, Direction: "setter", Reason: "incompatible value type", Err: err}
		}
		return propertySetter(target, p, cast), nil
	}

	if target.Kind() == reflect.Interface {
		return nil, &AccessorBuildError{Type: target, Member: name, Direction: "setter", Reason: "no writable property"}
	}

	if m, ok := f.members.Field(h, name, schema.ScopeAll); ok {
		cast, err := castFunc(value, m.Type)
		if err != nil {
			return nil, &AccessorBuildError{Type: target, Member: name, Direction: "setter", Reason: "incompatible value type", Err: err}
		}
		return fieldSetter(target, m, cast), nil
	}

	return nil, &AccessorBuildError{Type: target, Member: name, Direction: "setter", Reason: "no writable property or field"}
}

func propertySetter(target reflect.Type, p *schema.Member, cast castFn) Setter {
	pt := p.Type
	returnsErr := p.Setter.Type.NumOut() == 1
	name := p.Name

	arg := func(val any) reflect.Value {
		src := reflect.ValueOf(val)
		if !src.IsValid() {
			return reflect.Zero(pt)
		}
		if cast != nil {
			return cast(src)
		}
		return src
	}
	check := func(out []reflect.Value) error {
		if !returnsErr || out[0].IsNil() {
			return nil
		}
		return fmt.Errorf("set %s.%s: %w", target, name, out[0].Interface().(error))
	}

	if p.Interface {
		idx := p.Setter.Index
		return func(obj, val any) error {
			return check(asInterface(obj, target).Method(idx).Call([]reflect.Value{arg(val)}))
		}
	}

	fn := p.Setter.Func
	return func(obj, val any) error {
		return check(fn.Call([]reflect.Value{receiver(obj, target, true), arg(val)}))
	}
}

func fieldSetter(target reflect.Type, m *schema.Member, cast castFn) Setter {
	ft := m.Type

	if m.Direct && cast == nil {
		off := m.Offset
		fa, ok := fastAccess(ft)
		if !ok {
			fa = reflectAccess(ft)
		}
		return func(obj, val any) error {
			fa.write(unsafe.Add(receiver(obj, target, true).UnsafePointer(), off), val)
			return nil
		}
	}

	index := m.Index
	return func(obj, val any) error {
		dst, _ := walkFields(receiver(obj, target, true).Elem(), index, true)
		src := reflect.ValueOf(val)
		switch {
		case !src.IsValid():
			dst.SetZero()
		case cast != nil:
			dst.Set(cast(src))
		default:
			dst.Set(src)
		}
		return nil
	}
}

// =========================================================================
// Helpers
// =========================================================================

type castFn func(reflect.Value) reflect.Value

// castFunc fixes the explicit conversion between a member type and the
// caller's declared type at build time. nil means no conversion is needed.
func castFunc(from, to reflect.Type) (castFn, error) {
	if to == nil || from == nil || from == to {
		return nil, nil
	}
	if to.Kind() == reflect.Interface && from.Implements(to) {
		return nil, nil
	}
	if isInteger(from.Kind()) && to.Kind() == reflect.String {
		// Go would read the integer as a rune
		return nil, fmt.Errorf("%s does not cast to %s", from, to)
	}
	if from.ConvertibleTo(to) || from.Kind() == reflect.Interface && to.Implements(from) {
		return func(v reflect.Value) reflect.Value {
			if v.Kind() == reflect.Interface {
				v = v.Elem()
			}
			return v.Convert(to)
		}, nil
	}
	return nil, fmt.Errorf("%s does not cast to %s", from, to)
}

func isInteger(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uintptr
}

// receiver returns a *T for obj. A T value is copied unless the caller
// needs to write through it, in which case only *T is accepted.
func receiver(obj any, target reflect.Type, write bool) reflect.Value {
	v := reflect.ValueOf(obj)
	if v.IsValid() {
		switch v.Type() {
		case reflect.PointerTo(target):
			if v.IsNil() {
				panic(fmt.Sprintf("accessor for %s called with a nil *%s", target, target))
			}
			return v
		case target:
			if !write {
				p := reflect.New(target)
				p.Elem().Set(v)
				return p
			}
			panic(fmt.Sprintf("setter for %s needs *%s, got %s", target, target, target))
		}
	}
	panic(fmt.Sprintf("accessor for %s called with %T", target, obj))
}

// asInterface boxes obj as a value of the interface type target.
func asInterface(obj any, target reflect.Type) reflect.Value {
	v := reflect.ValueOf(obj)
	if !v.IsValid() || !v.Type().Implements(target) {
		panic(fmt.Sprintf("accessor for %s called with %T", target, obj))
	}
	iv := reflect.New(target).Elem()
	iv.Set(v)
	return iv
}

// walkFields follows a promoted field path from an addressable struct. With
// alloc, nil embedded pointers are allocated; otherwise a nil hop reports
// false. The returned field is settable even when unexported.
func walkFields(v reflect.Value, index []int, alloc bool) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !alloc {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
		v = reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
	}
	return v, true
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	return t
}
