package registry

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/Konsultn-Engineering/dynreflect/cache"
)

// Registry resolves qualified type names to handles across every loaded
// module. Resolution results, misses included, are cached by the exact input
// name until Clear.
type Registry struct {
	defaultNamespace string

	mu      sync.RWMutex
	modules []*Module
	byName  map[string]*Module
	byType  map[reflect.Type]*TypeHandle

	adhoc sync.Map // reflect.Type -> *TypeHandle
	names cache.Store[string, *TypeHandle]
}

// New creates a registry whose default namespace is searched first by Resolve.
func New(defaultNamespace string) *Registry {
	return &Registry{
		defaultNamespace: defaultNamespace,
		byName:           make(map[string]*Module),
		byType:           make(map[reflect.Type]*TypeHandle),
	}
}

// DefaultNamespace returns the module name Resolve tries before scanning.
func (r *Registry) DefaultNamespace() string { return r.defaultNamespace }

// Load appends modules in order and seals them. Types already registered by
// an earlier module keep their first handle for Of lookups.
func (r *Registry) Load(modules ...*Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range modules {
		if m == nil {
			return fmt.Errorf("cannot load nil module")
		}
		if _, dup := r.byName[m.name]; dup {
			return fmt.Errorf("module %s already loaded", m.name)
		}
	}

	for _, m := range modules {
		m.seal()
		r.modules = append(r.modules, m)
		r.byName[m.name] = m
		for _, h := range m.Types() {
			if _, exists := r.byType[h.typ]; !exists {
				r.byType[h.typ] = h
			}
		}
	}
	return nil
}

// Modules returns the loaded modules in load order.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// Module returns a loaded module by name.
func (r *Registry) Module(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Resolve returns the handle for a qualified type name.
//
// The default namespace is tried first ("Point" or "geo.Point" when geo is the
// default), then every loaded module in load order, matching the qualified
// name, the Go type string ("geo.Point") or the full package path form
// ("github.com/acme/geo.Point"). The outcome is cached under name; a later
// Load does not change an already cached answer.
func (r *Registry) Resolve(name string) (*TypeHandle, bool) {
	return r.names.LoadOrResolve(name, func() (*TypeHandle, bool) {
		return r.scan(name)
	})
}

func (r *Registry) scan(name string) (*TypeHandle, bool) {
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Direct namespace-qualified lookup
	if m, ok := r.byName[r.defaultNamespace]; ok {
		short, qualified := strings.CutPrefix(name, r.defaultNamespace+".")
		if qualified || !strings.Contains(name, ".") {
			if h, ok := m.Lookup(short); ok {
				return h, true
			}
		}
	}

	// Scan every module in load order
	for _, m := range r.modules {
		for _, h := range m.Types() {
			if matchesName(h, name) {
				return h, true
			}
		}
	}
	return nil, false
}

func matchesName(h *TypeHandle, name string) bool {
	if h.name == name || h.typ.String() == name {
		return true
	}
	if pkg := h.typ.PkgPath(); pkg != "" && pkg+"."+h.typ.Name() == name {
		return true
	}
	return false
}

// Of returns the handle for a Go type: the registered handle when a loaded
// module declares it, otherwise an interned ad-hoc handle with no
// constructors, statics or annotations.
func (r *Registry) Of(t reflect.Type) *TypeHandle {
	if t == nil {
		return nil
	}
	t = normalize(t)

	r.mu.RLock()
	h, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return h
	}

	if existing, ok := r.adhoc.Load(t); ok {
		return existing.(*TypeHandle)
	}
	actual, _ := r.adhoc.LoadOrStore(t, newHandle(t, nil, t.Name()))
	return actual.(*TypeHandle)
}

// OfValue returns the handle for the dynamic type of v, or nil for a nil v.
func (r *Registry) OfValue(v any) *TypeHandle {
	if v == nil {
		return nil
	}
	return r.Of(reflect.TypeOf(v))
}

// Scans returns how many name resolutions actually searched the modules.
func (r *Registry) Scans() int64 {
	return r.names.Misses()
}

// Clear forgets every cached name resolution. Loaded modules stay loaded.
func (r *Registry) Clear() {
	r.names.Clear()
}
