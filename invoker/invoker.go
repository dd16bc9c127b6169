package invoker

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/dynreflect/convert"
	"github.com/Konsultn-Engineering/dynreflect/registry"
	"github.com/Konsultn-Engineering/dynreflect/schema"
)

// Tier tells how an invoker binds its arguments.
type Tier int

const (
	TierZero    Tier = iota // no arguments
	TierLow                 // 1 to MaxLowArity arguments through precompiled plans
	TierHigh                // more arguments or variadic, converted at call time
	TierDefault             // new zero value of a type lacking a parameterless constructor
	TierRaw                 // uncached reflective call after a failed build
)

// MaxLowArity is the largest argument count bound through per-parameter plans.
const MaxLowArity = 4

var tierNames = [...]string{
	TierZero:    "zero",
	TierLow:     "low",
	TierHigh:    "high",
	TierDefault: "default",
	TierRaw:     "raw",
}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

func tierOf(m *schema.Member) Tier {
	switch {
	case m.Variadic || m.Arity() > MaxLowArity:
		return TierHigh
	case m.Arity() == 0:
		return TierZero
	}
	return TierLow
}

// Invoker is a resolved callable. Instance methods take the *T receiver as
// their first input.
type Invoker struct {
	Member *schema.Member // nil for TierDefault
	Tier   Tier

	name      string
	errOut    bool
	call      func(in []reflect.Value) []reflect.Value
	callSlice func(in []reflect.Value) []reflect.Value // variadic only, last input is the whole tail
}

func newInvoker(m *schema.Member, tier Tier) (*Invoker, error) {
	inv := &Invoker{Member: m, Tier: tier, name: m.String(), errOut: m.ReturnsError()}
	switch {
	case m.Interface:
		idx := m.Index[0]
		inv.call = func(in []reflect.Value) []reflect.Value {
			return in[0].Method(idx).Call(in[1:])
		}
		inv.callSlice = func(in []reflect.Value) []reflect.Value {
			return in[0].Method(idx).CallSlice(in[1:])
		}
	case m.Func.IsValid():
		inv.call = m.Func.Call
		inv.callSlice = m.Func.CallSlice
	default:
		return nil, fmt.Errorf("%s has no callable func", m)
	}
	if !m.Variadic {
		inv.callSlice = nil
	}
	return inv, nil
}

// defaultInvoker allocates a zero T and returns the *T.
func defaultInvoker(h *registry.TypeHandle) *Invoker {
	t := h.Type()
	return &Invoker{
		Tier: TierDefault,
		name: h.Name() + "." + schema.ConstructorName + "()",
		call: func([]reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.New(t)}
		},
	}
}

func (inv *Invoker) String() string { return inv.name + " [" + inv.Tier.String() + "]" }

// invoke runs the callable on ready inputs. Panics surface as
// *InvocationError.
func (inv *Invoker) invoke(in []reflect.Value) (any, error) {
	return inv.run(inv.call, in)
}

func (inv *Invoker) run(call func([]reflect.Value) []reflect.Value, in []reflect.Value) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			out, err = nil, &InvocationError{Member: inv.name, Err: fmt.Errorf("panic: %w", cause)}
		}
	}()
	return inv.results(call(in))
}

// results shapes return values: nothing (or only a nil error) is NoResult,
// one value is itself, several are []any.
func (inv *Invoker) results(out []reflect.Value) (any, error) {
	if inv.errOut {
		last := out[len(out)-1]
		if !last.IsNil() {
			return nil, &InvocationError{Member: inv.name, Err: last.Interface().(error)}
		}
		out = out[:len(out)-1]
	}

	switch len(out) {
	case 0:
		return NoResult, nil
	case 1:
		return out[0].Interface(), nil
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, nil
}

// callDynamic converts every argument to its parameter type at call time.
// A final slice argument filling the whole variadic tail is passed as the
// tail, as f(a, s...) would.
func (inv *Invoker) callDynamic(conv *convert.Converter, recv reflect.Value, args []any) (any, error) {
	m := inv.Member
	if !m.Accepts(len(args)) {
		return nil, &InvocationError{Member: inv.name, Err: fmt.Errorf("got %d argument(s)", len(args))}
	}

	spread := len(args) > 0 && spreadsTail(m, len(args), reflect.TypeOf(args[len(args)-1]))
	in := make([]reflect.Value, 0, len(args)+1)
	if recv.IsValid() {
		in = append(in, recv)
	}
	for i, a := range args {
		pt := paramType(m, i)
		if spread && i == len(args)-1 {
			pt = m.Params[i]
		}
		v, err := conv.ConvertValue(a, pt)
		if err != nil {
			return nil, err
		}
		in = append(in, v)
	}
	if spread {
		return inv.run(inv.callSlice, in)
	}
	return inv.invoke(in)
}

// paramType is the type argument i binds to, the element type for variadic
// tail arguments.
func paramType(m *schema.Member, i int) reflect.Type {
	n := len(m.Params)
	if m.Variadic && i >= n-1 {
		return m.Params[n-1].Elem()
	}
	return m.Params[i]
}

// spreadsTail reports whether the last of argc arguments, of type t, is a
// slice standing for the whole variadic tail of m.
func spreadsTail(m *schema.Member, argc int, t reflect.Type) bool {
	if !m.Variadic || argc != len(m.Params) || t == nil || t.Kind() != reflect.Slice {
		return false
	}
	tail := m.Params[argc-1]
	return t.AssignableTo(tail) || t.ConvertibleTo(tail)
}

// site is an invoker bound to the argument types of one call site.
type site struct {
	inv   *Invoker
	types []reflect.Type
	plans []convert.Func // TierLow only, one per parameter
}

func (s *site) call(conv *convert.Converter, recv reflect.Value, args []any) (any, error) {
	switch s.inv.Tier {
	case TierDefault:
		return s.inv.invoke(nil)

	case TierZero:
		if recv.IsValid() {
			return s.inv.invoke([]reflect.Value{recv})
		}
		return s.inv.invoke(nil)

	case TierLow:
		var buf [MaxLowArity + 1]reflect.Value
		in := buf[:0]
		if recv.IsValid() {
			in = append(in, recv)
		}
		for i, a := range args {
			v, err := s.plans[i](reflect.ValueOf(a))
			if err != nil {
				return nil, &convert.ConversionError{Value: a, From: s.types[i], To: s.inv.Member.Params[i], Err: err}
			}
			in = append(in, v)
		}
		return s.inv.invoke(in)
	}

	return s.inv.callDynamic(conv, recv, args)
}
