package invoker

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/dynreflect/cache"
	"github.com/Konsultn-Engineering/dynreflect/convert"
	"github.com/Konsultn-Engineering/dynreflect/registry"
	"github.com/Konsultn-Engineering/dynreflect/schema"
)

var scopes = map[cache.Kind]schema.Scope{
	cache.KindConstructor: schema.ScopePublic,
	cache.KindMethod:      schema.ScopePublic | schema.ScopeInstance,
	cache.KindStatic:      schema.ScopePublic | schema.ScopeStatic,
}

// Factory resolves constructors, instance methods and statics against call
// arguments and caches the resulting invokers twice: per call-site argument
// signature and per resolved member.
type Factory struct {
	members  *schema.Cache
	conv     *convert.Converter
	sites    *cache.Compiled[*site]
	invokers *cache.Compiled[*Invoker]
	logger   *zap.Logger
	shards   int

	// compile turns a resolved member into an invoker; replaced in tests
	compile func(m *schema.Member) (*Invoker, error)
}

type Option func(*Factory)

// WithShards sets the shard count of both invoker caches.
func WithShards(n int) Option {
	return func(f *Factory) { f.shards = n }
}

// WithLogger sets the logger reporting degraded calls.
func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// New creates a Factory resolving members through members and converting
// arguments with conv.
func New(members *schema.Cache, conv *convert.Converter, opts ...Option) *Factory {
	f := &Factory{
		members: members,
		conv:    conv,
		logger:  Logger(),
		shards:  cache.DefaultShards,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	f.sites = cache.NewCompiled[*site](f.shards)
	f.invokers = cache.NewCompiled[*Invoker](f.shards)
	f.compile = func(m *schema.Member) (*Invoker, error) {
		return newInvoker(m, tierOf(m))
	}
	return f
}

// CreateInstance calls the constructor of h that accepts args. Without
// arguments and without a parameterless constructor it returns a new zero
// *T; interface types have no such fallback.
func (f *Factory) CreateInstance(h *registry.TypeHandle, args ...any) (any, error) {
	if h == nil {
		return nil, &NoMatchingOverloadError{Type: "<nil>", Name: schema.ConstructorName, Args: len(args)}
	}
	return f.dispatch(h, cache.KindConstructor, schema.ConstructorName, reflect.Value{}, args)
}

// InvokeMethod calls the method name of instance, a T or *T. A T is copied,
// so mutations through pointer-receiver methods are not visible to the caller.
func (f *Factory) InvokeMethod(instance any, name string, args ...any) (any, error) {
	h := f.members.Registry().OfValue(instance)
	if h == nil {
		return nil, &InvocationError{Member: name, Err: ErrNilInstance}
	}
	recv, err := receiver(instance, h.Type())
	if err != nil {
		return nil, &InvocationError{Member: h.Name() + "." + name, Err: err}
	}
	return f.dispatch(h, cache.KindMethod, name, recv, args)
}

// InvokeStaticMethod calls the static function name registered on h.
func (f *Factory) InvokeStaticMethod(h *registry.TypeHandle, name string, args ...any) (any, error) {
	if h == nil {
		return nil, &NoMatchingOverloadError{Type: "<nil>", Name: name, Args: len(args)}
	}
	return f.dispatch(h, cache.KindStatic, name, reflect.Value{}, args)
}

// Builds returns how many call sites and invokers were built.
func (f *Factory) Builds() int64 { return f.sites.Builds() + f.invokers.Builds() }

// Len returns the number of cached call sites and invokers.
func (f *Factory) Len() int { return f.sites.Len() + f.invokers.Len() }

// Clear drops every cached call site and invoker.
func (f *Factory) Clear() {
	f.sites.Clear()
	f.invokers.Clear()
}

// =========================================================================
// Dispatch
// =========================================================================

// buildFailure carries the member whose invoker could not be built, so the
// call can still go through reflectively.
type buildFailure struct {
	member *schema.Member
	err    error
}

func (e *buildFailure) Error() string { return e.err.Error() }
func (e *buildFailure) Unwrap() error { return e.err }

func (f *Factory) dispatch(h *registry.TypeHandle, kind cache.Kind, name string, recv reflect.Value, args []any) (any, error) {
	sig := schema.SigOf(args...)
	key := cache.Key(kind, cache.TypeID(h.Type()), name, sig.Key())

	s, err := f.sites.GetOrBuild(key, func() (*site, error) {
		return f.bind(h, kind, name, sig)
	})
	if err == nil {
		return s.call(f.conv, recv, args)
	}

	var failed *buildFailure
	if !errors.As(err, &failed) {
		return nil, err
	}
	f.logger.Warn("invoker build failed, calling reflectively",
		zap.Stringer("member", failed.member),
		zap.Error(failed.err),
	)
	raw, rerr := newInvoker(failed.member, TierRaw)
	if rerr != nil {
		return nil, &InvocationError{Member: failed.member.String(), Err: rerr}
	}
	return raw.callDynamic(f.conv, recv, args)
}

// bind resolves the member for a call-site signature and fixes one
// conversion plan per parameter for low arities.
func (f *Factory) bind(h *registry.TypeHandle, kind cache.Kind, name string, sig schema.Signature) (*site, error) {
	m, err := f.resolve(h, kind, name, sig)
	if err != nil {
		return nil, err
	}
	if m == nil {
		inv, _ := f.invokers.GetOrBuild(cache.Key(kind, cache.TypeID(h.Type()), "default"), func() (*Invoker, error) {
			return defaultInvoker(h), nil
		})
		return &site{inv: inv}, nil
	}

	inv, err := f.invokers.GetOrBuild(memberKey(kind, m), func() (*Invoker, error) {
		return f.safeCompile(m)
	})
	if err != nil {
		return nil, &buildFailure{member: m, err: err}
	}

	s := &site{inv: inv, types: sig.Types()}
	if inv.Tier == TierLow {
		s.plans = make([]convert.Func, sig.Len())
		for i := range s.plans {
			plan, err := f.conv.Compile(sig.At(i), m.Params[i])
			if err != nil {
				return nil, &buildFailure{member: m, err: fmt.Errorf("parameter %d: %w", i, err)}
			}
			s.plans[i] = plan
		}
	}
	return s, nil
}

// resolve picks the callable for sig: the exact signature if registered,
// otherwise the first same-arity candidate in declaration order whose
// parameters accept the argument types. A nil member with no error means
// the default instance of h.
func (f *Factory) resolve(h *registry.TypeHandle, kind cache.Kind, name string, sig schema.Signature) (*schema.Member, error) {
	scope := scopes[kind]

	var candidates []*schema.Member
	if kind == cache.KindConstructor {
		if m, ok := f.members.Constructor(h, sig, scope); ok {
			return m, nil
		}
		candidates = f.members.Constructors(h, sig.Len(), scope)
	} else {
		if m, ok := f.members.Method(h, name, sig, scope); ok {
			return m, nil
		}
		candidates = f.members.Methods(h, name, sig.Len(), scope)
	}

	for _, m := range candidates {
		if f.accepts(m, sig) {
			return m, nil
		}
	}

	if kind == cache.KindConstructor && sig.Len() == 0 && h.Type().Kind() != reflect.Interface {
		return nil, nil
	}
	return nil, &NoMatchingOverloadError{Type: h.Name(), Name: name, Args: sig.Len()}
}

func (f *Factory) accepts(m *schema.Member, sig schema.Signature) bool {
	n := sig.Len()
	for i := 0; i < n; i++ {
		at, pt := sig.At(i), paramType(m, i)
		if i == n-1 && spreadsTail(m, n, at) {
			continue
		}
		if at != nil && at.AssignableTo(pt) {
			continue
		}
		if !f.conv.CanConvert(at, pt) {
			return false
		}
	}
	return true
}

// safeCompile reports a panicking compile as an error.
func (f *Factory) safeCompile(m *schema.Member) (inv *Invoker, err error) {
	defer func() {
		if r := recover(); r != nil {
			inv, err = nil, fmt.Errorf("compile %s: panic: %v", m, r)
		}
	}()
	return f.compile(m)
}

func memberKey(kind cache.Kind, m *schema.Member) string {
	return cache.Key(kind, cache.TypeID(m.Owner.Type()), m.Name, m.Signature().Key(), strconv.Itoa(m.Order))
}

// receiver returns the *T an instance method runs on. Pointers to pointers
// are followed; a T value is copied.
func receiver(instance any, t reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(instance)
	ptr := reflect.PointerTo(t)
	for v.Kind() == reflect.Pointer && v.Type() != ptr {
		if v.IsNil() {
			return reflect.Value{}, ErrNilInstance
		}
		v = v.Elem()
	}

	switch v.Type() {
	case ptr:
		if v.IsNil() {
			return reflect.Value{}, ErrNilInstance
		}
		return v, nil
	case t:
		p := reflect.New(t)
		p.Elem().Set(v)
		return p, nil
	}
	return reflect.Value{}, fmt.Errorf("unexpected receiver %s", v.Type())
}
