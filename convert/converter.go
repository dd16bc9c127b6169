package convert

import (
	"encoding"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of conversion plans kept per Converter.
const DefaultCacheSize = 1024

// DefaultTimeLayouts are tried in order when a string converts to time.Time.
var DefaultTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Func converts a value of a fixed source type to a fixed target type. The
// result always has exactly the target type.
type Func func(reflect.Value) (reflect.Value, error)

type planKey struct {
	from reflect.Type // nil for an untyped nil
	to   reflect.Type
}

type plan struct {
	fn  Func
	err error // the pair cannot convert at all
}

// Converter coerces loosely typed values to parameter types. Plans are built
// once per (source, target) pair and kept in an LRU cache.
type Converter struct {
	layouts   []string
	cacheSize int

	plans  *lru.Cache[planKey, plan]
	builds atomic.Int64
}

type Option func(*Converter)

// WithTimeLayouts replaces the layouts used to parse time.Time from strings.
func WithTimeLayouts(layouts ...string) Option {
	return func(c *Converter) {
		if len(layouts) > 0 {
			c.layouts = append([]string(nil), layouts...)
		}
	}
}

// WithCacheSize sets the plan cache capacity.
func WithCacheSize(size int) Option {
	return func(c *Converter) {
		if size > 0 {
			c.cacheSize = size
		}
	}
}

// New creates a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{
		layouts:   DefaultTimeLayouts,
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.plans, _ = lru.New[planKey, plan](c.cacheSize)
	return c
}

// Convert coerces value to target. Rules, in order: assignable values pass
// through; nil becomes the zero of a nillable target or an invalid nullable
// wrapper; pointers and nullable wrappers on the source are unwrapped;
// pointer and nullable wrapper targets are filled from their inner type;
// numbers convert with overflow and precision checks; string targets get the
// value's text form; strings parse into well-known types; last, text
// unmarshalling and Go conversion rules apply.
func (c *Converter) Convert(value any, target reflect.Type) (any, error) {
	out, err := c.ConvertValue(value, target)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// ConvertValue is Convert returning a reflect.Value of exactly target type.
func (c *Converter) ConvertValue(value any, target reflect.Type) (reflect.Value, error) {
	if target == nil {
		return reflect.Value{}, &ConversionError{Value: value, From: reflect.TypeOf(value), Err: ErrUnsupported}
	}

	v := reflect.ValueOf(value)
	var from reflect.Type
	if v.IsValid() {
		from = v.Type()
	}

	fn, err := c.Compile(from, target)
	if err != nil {
		return reflect.Value{}, &ConversionError{Value: value, From: from, To: target, Err: err}
	}
	out, err := fn(v)
	if err != nil {
		return reflect.Value{}, &ConversionError{Value: value, From: from, To: target, Err: err}
	}
	return out, nil
}

// TryConvert is Convert reporting failure as false instead of an error.
func (c *Converter) TryConvert(value any, target reflect.Type) (any, bool) {
	out, err := c.Convert(value, target)
	if err != nil {
		return nil, false
	}
	return out, true
}

// CanConvert reports whether values of type from may convert to to. A nil
// from stands for an untyped nil. The check is by type only: a plan may still
// reject particular values, an overflowing number or malformed text.
func (c *Converter) CanConvert(from, to reflect.Type) bool {
	if to == nil {
		return false
	}
	_, err := c.Compile(from, to)
	return err == nil
}

// Compile returns the cached plan converting from into to.
func (c *Converter) Compile(from, to reflect.Type) (Func, error) {
	key := planKey{from: from, to: to}
	if p, ok := c.plans.Get(key); ok {
		return p.fn, p.err
	}

	fn, err := c.build(from, to, 0)
	c.builds.Add(1)
	c.plans.Add(key, plan{fn: fn, err: err})
	return fn, err
}

// Builds returns how many plans were built, cache evictions included.
func (c *Converter) Builds() int64 { return c.builds.Load() }

// Len returns the number of cached plans.
func (c *Converter) Len() int { return c.plans.Len() }

// Clear drops every cached plan.
func (c *Converter) Clear() { c.plans.Purge() }

// =========================================================================
// Plan Building
// =========================================================================

// maxDepth bounds nested wrap and unwrap steps (**T to sql.Null[...] and so on).
const maxDepth = 8

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	stringerType        = reflect.TypeFor[fmt.Stringer]()
	timeType            = reflect.TypeFor[time.Time]()
	bytesType           = reflect.TypeFor[[]byte]()
)

func (c *Converter) build(from, to reflect.Type, depth int) (Func, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting too deep", ErrUnsupported)
	}

	// Untyped nil
	if from == nil {
		return nilPlan(to)
	}

	// Assignable: pass through
	if from == to {
		return identity, nil
	}
	if from.AssignableTo(to) {
		return func(v reflect.Value) (reflect.Value, error) {
			out := reflect.New(to).Elem()
			out.Set(v)
			return out, nil
		}, nil
	}

	// Unwrap source pointers and nullable wrappers
	if from.Kind() == reflect.Pointer {
		inner, err := c.build(from.Elem(), to, depth+1)
		if err != nil {
			return nil, err
		}
		onNil, nilErr := nilPlan(to)
		return func(v reflect.Value) (reflect.Value, error) {
			if v.IsNil() {
				if nilErr != nil {
					return reflect.Value{}, nilErr
				}
				return onNil(v)
			}
			return inner(v.Elem())
		}, nil
	}
	if n, ok := lookupNullable(from); ok {
		inner, err := c.build(n.inner, to, depth+1)
		if err != nil {
			return nil, err
		}
		onNil, nilErr := nilPlan(to)
		return func(v reflect.Value) (reflect.Value, error) {
			val, valid := n.unwrap(v)
			if !valid {
				if nilErr != nil {
					return reflect.Value{}, nilErr
				}
				return onNil(v)
			}
			return inner(val)
		}, nil
	}

	// Wrap into pointer and nullable targets
	if to.Kind() == reflect.Pointer {
		inner, err := c.build(from, to.Elem(), depth+1)
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value) (reflect.Value, error) {
			val, err := inner(v)
			if err != nil {
				return reflect.Value{}, err
			}
			p := reflect.New(to.Elem())
			p.Elem().Set(val)
			return p, nil
		}, nil
	}
	if n, ok := lookupNullable(to); ok {
		inner, err := c.build(from, n.inner, depth+1)
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value) (reflect.Value, error) {
			val, err := inner(v)
			if err != nil {
				return reflect.Value{}, err
			}
			return n.wrap(val), nil
		}, nil
	}

	// Numeric to numeric
	if isNumeric(from.Kind()) && isNumeric(to.Kind()) {
		return numericPlan(from, to), nil
	}

	// Anything to string
	if to.Kind() == reflect.String {
		return stringPlan(from, to), nil
	}

	// Strings to well-known types
	if from.Kind() == reflect.String {
		if fn, ok := c.parsePlan(to); ok {
			return fn, nil
		}
	}

	return fallbackPlan(from, to)
}

func identity(v reflect.Value) (reflect.Value, error) { return v, nil }

func nilPlan(to reflect.Type) (Func, error) {
	switch to.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return func(reflect.Value) (reflect.Value, error) { return reflect.Zero(to), nil }, nil
	}
	if _, ok := lookupNullable(to); ok {
		// The zero wrapper is the invalid (NULL) one
		return func(reflect.Value) (reflect.Value, error) { return reflect.Zero(to), nil }, nil
	}
	return nil, fmt.Errorf("%w: %s cannot hold nil", ErrNil, to)
}

func stringPlan(from, to reflect.Type) Func {
	var text func(reflect.Value) string
	switch {
	case from == timeType:
		text = func(v reflect.Value) string { return v.Interface().(time.Time).Format(time.RFC3339Nano) }
	case from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8:
		text = func(v reflect.Value) string { return string(v.Bytes()) }
	case from.Implements(stringerType):
		text = func(v reflect.Value) string { return v.Interface().(fmt.Stringer).String() }
	case reflect.PointerTo(from).Implements(stringerType):
		text = func(v reflect.Value) string {
			p := reflect.New(from)
			p.Elem().Set(v)
			return p.Interface().(fmt.Stringer).String()
		}
	default:
		text = func(v reflect.Value) string { return fmt.Sprint(v.Interface()) }
	}

	return func(v reflect.Value) (reflect.Value, error) {
		return reflect.ValueOf(text(v)).Convert(to), nil
	}
}

func fallbackPlan(from, to reflect.Type) (Func, error) {
	// Integers as Unix seconds
	if to == timeType && isInt(from.Kind()) {
		return func(v reflect.Value) (reflect.Value, error) {
			return reflect.ValueOf(time.Unix(v.Int(), 0).UTC()), nil
		}, nil
	}

	// Numbers as truth values
	if to.Kind() == reflect.Bool && isNumeric(from.Kind()) {
		return func(v reflect.Value) (reflect.Value, error) {
			return reflect.ValueOf(!v.IsZero()).Convert(to), nil
		}, nil
	}

	// Text unmarshalling from string or []byte
	if (from.Kind() == reflect.String || from == bytesType) && reflect.PointerTo(to).Implements(textUnmarshalerType) {
		return func(v reflect.Value) (reflect.Value, error) {
			var raw []byte
			if v.Kind() == reflect.String {
				raw = []byte(v.String())
			} else {
				raw = v.Bytes()
			}
			p := reflect.New(to)
			if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText(raw); err != nil {
				return reflect.Value{}, err
			}
			return p.Elem(), nil
		}, nil
	}

	// Go conversion rules
	if from.ConvertibleTo(to) {
		return func(v reflect.Value) (reflect.Value, error) {
			if !v.CanConvert(to) {
				return reflect.Value{}, fmt.Errorf("%w: %s value does not fit %s", ErrUnsupported, from, to)
			}
			return v.Convert(to), nil
		}, nil
	}

	return nil, fmt.Errorf("%w: %s to %s", ErrUnsupported, from, to)
}
