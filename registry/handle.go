package registry

import (
	"fmt"
	"reflect"
	"slices"
)

var errorType = reflect.TypeFor[error]()

// TypeHandle is the resolved identity of a type. Handles are created when a
// type is registered into a Module (or interned on first use for unregistered
// Go types) and are never mutated once their module is loaded.
type TypeHandle struct {
	typ    reflect.Type
	name   string // qualified: module.TypeName
	short  string
	module *Module

	ctors       []reflect.Value
	statics     map[string][]reflect.Value
	staticOrder []string
	annotations map[string][]any // "" holds type-level annotations
}

func newHandle(t reflect.Type, module *Module, short string) *TypeHandle {
	h := &TypeHandle{
		typ:         t,
		short:       short,
		module:      module,
		statics:     make(map[string][]reflect.Value),
		annotations: make(map[string][]any),
	}
	if module != nil {
		h.name = module.name + "." + short
	} else {
		h.name = t.String()
	}
	return h
}

// Type returns the Go type behind the handle. Unnamed pointer types are
// unwrapped to their element before a handle is made.
func (h *TypeHandle) Type() reflect.Type { return h.typ }

// Name returns the qualified name, "module.Type" for registered types and the
// Go type string otherwise.
func (h *TypeHandle) Name() string { return h.name }

// ShortName returns the name without its module prefix.
func (h *TypeHandle) ShortName() string { return h.short }

// Module returns the owning module name, or "" for unregistered types.
func (h *TypeHandle) Module() string {
	if h.module == nil {
		return ""
	}
	return h.module.name
}

// Registered reports whether the handle came from a module registration.
func (h *TypeHandle) Registered() bool { return h.module != nil }

// Constructors returns the registered constructor functions in registration order.
func (h *TypeHandle) Constructors() []reflect.Value {
	return slices.Clone(h.ctors)
}

// Statics returns the functions registered under a static name in
// registration order. Several functions may share one name.
func (h *TypeHandle) Statics(name string) []reflect.Value {
	return slices.Clone(h.statics[name])
}

// StaticNames lists static names in the order they were first registered.
func (h *TypeHandle) StaticNames() []string {
	return slices.Clone(h.staticOrder)
}

// Annotations returns the values annotated on member ("" for the type itself).
func (h *TypeHandle) Annotations(member string) []any {
	return slices.Clone(h.annotations[member])
}

func (h *TypeHandle) String() string { return h.name }

// =========================================================================
// Registration Options
// =========================================================================

// TypeOption configures a type while it is being registered.
type TypeOption func(*TypeHandle) error

// Constructors registers factory functions. Each must return T or *T,
// optionally followed by an error.
func Constructors(fns ...any) TypeOption {
	return func(h *TypeHandle) error {
		for i, fn := range fns {
			v := reflect.ValueOf(fn)
			if v.Kind() != reflect.Func || v.IsNil() {
				return fmt.Errorf("constructor %d for %s must be a non-nil func, got %T", i, h.name, fn)
			}
			if err := checkConstructor(h.typ, v.Type()); err != nil {
				return fmt.Errorf("constructor %d for %s: %w", i, h.name, err)
			}
			h.ctors = append(h.ctors, v)
		}
		return nil
	}
}

// Static registers functions callable through the type by name.
func Static(name string, fns ...any) TypeOption {
	return func(h *TypeHandle) error {
		if name == "" {
			return fmt.Errorf("static name for %s is empty", h.name)
		}
		for i, fn := range fns {
			v := reflect.ValueOf(fn)
			if v.Kind() != reflect.Func || v.IsNil() {
				return fmt.Errorf("static %s.%s #%d must be a non-nil func, got %T", h.name, name, i, fn)
			}
			if _, seen := h.statics[name]; !seen {
				h.staticOrder = append(h.staticOrder, name)
			}
			h.statics[name] = append(h.statics[name], v)
		}
		return nil
	}
}

// Annotate attaches metadata values to a member of the type, or to the type
// itself when member is empty.
func Annotate(member string, values ...any) TypeOption {
	return func(h *TypeHandle) error {
		for i, v := range values {
			if v == nil {
				return fmt.Errorf("annotation %d on %s.%s is nil", i, h.name, member)
			}
		}
		h.annotations[member] = append(h.annotations[member], values...)
		return nil
	}
}

func checkConstructor(t reflect.Type, fnType reflect.Type) error {
	switch fnType.NumOut() {
	case 1:
	case 2:
		if fnType.Out(1) != errorType {
			return fmt.Errorf("second result must be error, got %s", fnType.Out(1))
		}
	default:
		return fmt.Errorf("must return %s or *%s, optionally with an error", t, t)
	}

	out := fnType.Out(0)
	if out != t && out != reflect.PointerTo(t) {
		return fmt.Errorf("returns %s, want %s or *%s", out, t, t)
	}
	return nil
}
