// Package dynreflect resolves types, members and annotations by name at run
// time and turns them into cached getters, setters and invokers.
//
// A Cache owns every sub-cache. Entries are built lazily on first use and
// live until ClearAllCaches.
package dynreflect

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/dynreflect/accessor"
	"github.com/Konsultn-Engineering/dynreflect/convert"
	"github.com/Konsultn-Engineering/dynreflect/invoker"
	"github.com/Konsultn-Engineering/dynreflect/registry"
	"github.com/Konsultn-Engineering/dynreflect/schema"
)

// ErrTypeNotFound is returned by name-based calls when no loaded module
// declares the type.
var ErrTypeNotFound = errors.New("type not found")

// Cache is the reflection cache service.
type Cache struct {
	logger    *zap.Logger
	registry  *registry.Registry
	members   *schema.Cache
	attrs     *schema.AttributeIndex
	conv      *convert.Converter
	accessors *accessor.Factory
	invokers  *invoker.Factory
}

// New creates a Cache with the built-in module loaded.
func New(opts ...Option) *Cache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	reg := registry.New(o.namespace)
	if err := reg.Load(builtin()); err != nil {
		panic(fmt.Sprintf("dynreflect: loading built-in module: %v", err))
	}

	members := schema.NewCache(reg)
	conv := convert.New(
		convert.WithCacheSize(o.converterCacheSize),
		convert.WithTimeLayouts(o.timeLayouts...),
	)

	c := &Cache{
		logger:    o.logger,
		registry:  reg,
		members:   members,
		attrs:     schema.NewAttributeIndex(members),
		conv:      conv,
		accessors: accessor.New(members, accessor.WithShards(o.shards)),
		invokers:  invoker.New(members, conv, invoker.WithShards(o.shards), invoker.WithLogger(o.logger)),
	}
	if o.warmup {
		c.Warmup()
	}
	return c
}

// Load registers application modules after the built-in one.
func (c *Cache) Load(modules ...*registry.Module) error {
	return c.registry.Load(modules...)
}

// Resolve returns the handle for a qualified type name.
func (c *Cache) Resolve(name string) (*TypeHandle, bool) {
	return c.registry.Resolve(name)
}

// TypeOf returns the handle of a Go type, registered or not.
func (c *Cache) TypeOf(t reflect.Type) *TypeHandle {
	return c.registry.Of(t)
}

// Registry returns the type resolver.
func (c *Cache) Registry() *registry.Registry { return c.registry }

// Converter returns the parameter converter.
func (c *Cache) Converter() *convert.Converter { return c.conv }

// =========================================================================
// Members
// =========================================================================

func (c *Cache) GetField(h *TypeHandle, name string, scope Scope) (*Member, bool) {
	return c.members.Field(h, name, scope)
}

func (c *Cache) GetProperty(h *TypeHandle, name string, scope Scope) (*Member, bool) {
	return c.members.Property(h, name, scope)
}

func (c *Cache) GetMethod(h *TypeHandle, name string, sig Signature, scope Scope) (*Member, bool) {
	return c.members.Method(h, name, sig, scope)
}

func (c *Cache) GetConstructor(h *TypeHandle, sig Signature, scope Scope) (*Member, bool) {
	return c.members.Constructor(h, sig, scope)
}

// =========================================================================
// Annotations
// =========================================================================

// GetAttribute returns the annotations of m assignable to annotationType.
// A nil m stands for nothing and yields nothing.
func (c *Cache) GetAttribute(m *Member, annotationType reflect.Type, inherit bool) []any {
	return c.attrs.Get(m, annotationType, inherit)
}

// GetAttributes returns every annotation of m.
func (c *Cache) GetAttributes(m *Member, inherit bool) []any {
	return c.attrs.GetAll(m, inherit)
}

func (c *Cache) HasAttribute(m *Member, annotationType reflect.Type, inherit bool) bool {
	return c.attrs.Has(m, annotationType, inherit)
}

// TypeTarget returns the member standing for h itself in annotation queries.
func (c *Cache) TypeTarget(h *TypeHandle) *Member {
	return c.attrs.TypeTarget(h)
}

// =========================================================================
// Accessors and invocation
// =========================================================================

func (c *Cache) CreateGetter(target, result reflect.Type, name string) (Getter, error) {
	return c.accessors.CreateGetter(target, result, name)
}

func (c *Cache) CreateSetter(target, value reflect.Type, name string) (Setter, error) {
	return c.accessors.CreateSetter(target, value, name)
}

func (c *Cache) CreateInstance(h *TypeHandle, args ...any) (any, error) {
	return c.invokers.CreateInstance(h, args...)
}

// CreateInstanceOf resolves name and creates an instance of it.
func (c *Cache) CreateInstanceOf(name string, args ...any) (any, error) {
	h, ok := c.registry.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("create %s: %w", name, ErrTypeNotFound)
	}
	return c.invokers.CreateInstance(h, args...)
}

func (c *Cache) InvokeMethod(instance any, name string, args ...any) (any, error) {
	return c.invokers.InvokeMethod(instance, name, args...)
}

func (c *Cache) InvokeStaticMethod(h *TypeHandle, name string, args ...any) (any, error) {
	return c.invokers.InvokeStaticMethod(h, name, args...)
}

// Get returns a typed getter for the member name of T.
func Get[T, R any](c *Cache, name string) (func(T) R, error) {
	return accessor.Get[T, R](c.accessors, name)
}

// Set returns a typed setter for the member name of T, a pointer type.
func Set[T, V any](c *Cache, name string) (func(T, V) error, error) {
	return accessor.Set[T, V](c.accessors, name)
}

// Attribute returns the first annotation of type A on m.
func Attribute[A any](c *Cache, m *Member, inherit bool) (A, bool) {
	return schema.Attribute[A](c.attrs, m, inherit)
}

// =========================================================================
// Lifecycle
// =========================================================================

// Stats counts the work each sub-cache did instead of serving from cache.
type Stats struct {
	TypeScans       int64 `json:"type_scans"`
	MemberScans     int64 `json:"member_scans"`
	AttributeScans  int64 `json:"attribute_scans"`
	ConverterBuilds int64 `json:"converter_builds"`
	AccessorBuilds  int64 `json:"accessor_builds"`
	InvokerBuilds   int64 `json:"invoker_builds"`
}

func (c *Cache) Stats() Stats {
	return Stats{
		TypeScans:       c.registry.Scans(),
		MemberScans:     c.members.Scans(),
		AttributeScans:  c.attrs.Scans(),
		ConverterBuilds: c.conv.Builds(),
		AccessorBuilds:  c.accessors.Builds(),
		InvokerBuilds:   c.invokers.Builds(),
	}
}

// ClearAllCaches forgets every cached answer: type names, members,
// annotations, parsed tags, conversion plans, accessors and invokers.
// Loaded modules stay loaded.
func (c *Cache) ClearAllCaches() {
	c.registry.Clear()
	c.members.Clear()
	c.attrs.Clear()
	c.conv.Clear()
	c.accessors.Clear()
	c.invokers.Clear()
	c.logger.Debug("cleared all reflection caches")
}
