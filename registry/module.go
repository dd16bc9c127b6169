package registry

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Module is a named namespace of registered types. Types are registered
// before the module is loaded into a Registry; loading seals it.
type Module struct {
	name string

	mu     sync.RWMutex
	sealed bool
	types  []*TypeHandle
	byName map[string]*TypeHandle
	byType map[reflect.Type]*TypeHandle
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		name:   name,
		byName: make(map[string]*TypeHandle),
		byType: make(map[reflect.Type]*TypeHandle),
	}
}

// Name returns the module's namespace.
func (m *Module) Name() string { return m.name }

// Types returns the registered handles in registration order.
func (m *Module) Types() []*TypeHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.types)
}

// Lookup finds a type of this module by its short name.
func (m *Module) Lookup(short string) (*TypeHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.byName[short]
	return h, ok
}

func (m *Module) lookupType(t reflect.Type) (*TypeHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.byType[t]
	return h, ok
}

func (m *Module) seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// RegisterType registers t (pointer types are normalized to their element)
// under its Go name.
func (m *Module) RegisterType(t reflect.Type, opts ...TypeOption) (*TypeHandle, error) {
	return m.RegisterNamed(t, "", opts...)
}

// RegisterNamed registers t under an explicit short name. Needed for unnamed
// and generic instantiated types.
func (m *Module) RegisterNamed(t reflect.Type, short string, opts ...TypeOption) (*TypeHandle, error) {
	if t == nil {
		return nil, fmt.Errorf("module %s: cannot register nil type", m.name)
	}
	t = normalize(t)
	if short == "" {
		short = t.Name()
	}
	if short == "" {
		return nil, fmt.Errorf("module %s: type %s has no name, use RegisterNamed", m.name, t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return nil, fmt.Errorf("module %s is loaded and cannot accept %s", m.name, short)
	}
	if _, dup := m.byName[short]; dup {
		return nil, fmt.Errorf("module %s: type %s already registered", m.name, short)
	}
	if _, dup := m.byType[t]; dup {
		return nil, fmt.Errorf("module %s: Go type %s already registered", m.name, t)
	}

	h := newHandle(t, m, short)
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	m.types = append(m.types, h)
	m.byName[short] = h
	m.byType[t] = h
	return h, nil
}

// Register registers T into m.
func Register[T any](m *Module, opts ...TypeOption) (*TypeHandle, error) {
	return m.RegisterType(reflect.TypeFor[T](), opts...)
}

// MustRegister is Register that panics on error, for package init blocks.
func MustRegister[T any](m *Module, opts ...TypeOption) *TypeHandle {
	h, err := Register[T](m, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

func normalize(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	return t
}
