package invoker

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Konsultn-Engineering/dynreflect/cache"
	"github.com/Konsultn-Engineering/dynreflect/convert"
	"github.com/Konsultn-Engineering/dynreflect/registry"
	"github.com/Konsultn-Engineering/dynreflect/schema"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type Counter struct {
	Value int
	Label string
}

func NewCounter() *Counter                         { return &Counter{Label: "zero"} }
func NewCounterFrom(n int) *Counter                { return &Counter{Value: n, Label: "int"} }
func NewCounterNamed(n int, label string) *Counter { return &Counter{Value: n, Label: label} }

func (c *Counter) Inc()                 { c.Value++ }
func (c *Counter) Split() (int, string) { return c.Value, c.Label }
func (c *Counter) Boom()                { panic("boom") }

func (c *Counter) Add(n int) int {
	c.Value += n
	return c.Value
}

func (c *Counter) Divide(n int) (int, error) {
	if n == 0 {
		return 0, errors.New("divide by zero")
	}
	return c.Value / n, nil
}

func (c Counter) Describe(prefix string) string { return prefix + c.Label }

func PickNone() string                        { return "none" }
func PickInt(int) string                      { return "int" }
func PickPair(int, string) string             { return "pair" }
func Sum(a, b, c, d, e, f int) int            { return a + b + c + d + e + f }
func Join(sep string, parts ...string) string { return strings.Join(parts, sep) }

// Parts is a named slice passed whole as the tail of Join.
type Parts []string

func Reset(c *Counter) error {
	c.Value = 0
	return nil
}

func NameOf(c *Counter) string {
	if c == nil {
		return "nobody"
	}
	return c.Label
}

type Blank struct {
	N int
}

type Shape interface {
	Area() float64
}

type fixture struct {
	factory *Factory
	members *schema.Cache
	counter *registry.TypeHandle
	blank   *registry.TypeHandle
	shape   *registry.TypeHandle
}

func newFixture(t testing.TB, opts ...Option) *fixture {
	t.Helper()
	m := registry.NewModule("calc")
	counter, err := registry.Register[Counter](m,
		registry.Constructors(NewCounter, NewCounterFrom, NewCounterNamed),
		registry.Static("Pick", PickNone, PickInt, PickPair),
		registry.Static("Sum", Sum),
		registry.Static("Join", Join),
		registry.Static("Reset", Reset),
		registry.Static("NameOf", NameOf),
	)
	require.NoError(t, err)
	blank, err := registry.Register[Blank](m)
	require.NoError(t, err)
	shape, err := registry.Register[Shape](m)
	require.NoError(t, err)

	reg := registry.New("calc")
	require.NoError(t, reg.Load(m))
	members := schema.NewCache(reg)

	opts = append([]Option{WithShards(4)}, opts...)
	return &fixture{
		factory: New(members, convert.New(), opts...),
		members: members,
		counter: counter,
		blank:   blank,
		shape:   shape,
	}
}

// =========================================================================
// Constructor Tests
// =========================================================================

func TestCreateInstanceOverloads(t *testing.T) {
	tests := []struct {
		name  string
		args  []any
		value int
		label string
	}{
		{name: "NoArgs", args: nil, value: 0, label: "zero"},
		{name: "ExactInt", args: []any{5}, value: 5, label: "int"},
		{name: "Int64ToInt", args: []any{int64(5)}, value: 5, label: "int"},
		{name: "StringToInt", args: []any{"7"}, value: 7, label: "int"},
		{name: "Pair", args: []any{3, "three"}, value: 3, label: "three"},
		{name: "PairConverted", args: []any{uint8(4), "four"}, value: 4, label: "four"},
	}

	fx := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := fx.factory.CreateInstance(fx.counter, tt.args...)
			require.NoError(t, err)

			c, ok := out.(*Counter)
			require.True(t, ok, "got %T", out)
			assert.Equal(t, tt.value, c.Value)
			assert.Equal(t, tt.label, c.Label)
		})
	}
}

func TestCreateInstanceDefault(t *testing.T) {
	fx := newFixture(t)

	out, err := fx.factory.CreateInstance(fx.blank)
	require.NoError(t, err)
	assert.Equal(t, &Blank{}, out)

	s, ok := fx.factory.sites.Load(cache.Key(cache.KindConstructor, cache.TypeID(fx.blank.Type()), schema.ConstructorName, schema.SigOf().Key()))
	require.True(t, ok)
	assert.Equal(t, TierDefault, s.inv.Tier)

	_, err = fx.factory.CreateInstance(fx.shape)
	var noMatch *NoMatchingOverloadError
	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, 0, noMatch.Args)

	_, err = fx.factory.CreateInstance(fx.blank, 1)
	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, 1, noMatch.Args)

	_, err = fx.factory.CreateInstance(fx.counter, 1, "x", true)
	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, 3, noMatch.Args)
	assert.Contains(t, err.Error(), "calc.Counter")
}

// =========================================================================
// Method Tests
// =========================================================================

func TestInvokeMethod(t *testing.T) {
	fx := newFixture(t)
	c := &Counter{Value: 8, Label: "eight"}

	out, err := fx.factory.InvokeMethod(c, "Inc")
	require.NoError(t, err)
	assert.Equal(t, NoResult, out)
	assert.Equal(t, 9, c.Value)

	out, err = fx.factory.InvokeMethod(c, "Add", int64(3))
	require.NoError(t, err)
	assert.Equal(t, 12, out)

	out, err = fx.factory.InvokeMethod(c, "Divide", 4)
	require.NoError(t, err)
	assert.Equal(t, 3, out)

	out, err = fx.factory.InvokeMethod(c, "Split")
	require.NoError(t, err)
	assert.Equal(t, []any{12, "eight"}, out)

	out, err = fx.factory.InvokeMethod(*c, "Describe", "#")
	require.NoError(t, err)
	assert.Equal(t, "#eight", out)

	// A copied value receiver leaves the caller's value alone
	value := Counter{Value: 1}
	_, err = fx.factory.InvokeMethod(value, "Inc")
	require.NoError(t, err)
	assert.Equal(t, 1, value.Value)
}

func TestInvokeMethodErrors(t *testing.T) {
	fx := newFixture(t)
	c := &Counter{Value: 8}

	_, err := fx.factory.InvokeMethod(c, "Divide", 0)
	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.EqualError(t, invErr.Err, "divide by zero")

	_, err = fx.factory.InvokeMethod(c, "Boom")
	require.True(t, errors.As(err, &invErr))
	assert.Contains(t, err.Error(), "panic: boom")

	_, err = fx.factory.InvokeMethod(c, "Add", "many")
	var convErr *convert.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.ErrorIs(t, err, convert.ErrSyntax)

	_, err = fx.factory.InvokeMethod(c, "Missing")
	var noMatch *NoMatchingOverloadError
	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, "Missing", noMatch.Name)

	_, err = fx.factory.InvokeMethod(c, "Add", 1, 2)
	assert.True(t, errors.As(err, &noMatch))

	_, err = fx.factory.InvokeMethod(nil, "Inc")
	require.True(t, errors.As(err, &invErr))
	assert.ErrorIs(t, err, ErrNilInstance)

	_, err = fx.factory.InvokeMethod((*Counter)(nil), "Inc")
	require.True(t, errors.As(err, &invErr))
	assert.ErrorIs(t, err, ErrNilInstance)
}

// =========================================================================
// Static Tests
// =========================================================================

func TestInvokeStaticOverloads(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{name: "None", args: nil, want: "none"},
		{name: "Int", args: []any{1}, want: "int"},
		{name: "Int64ToInt", args: []any{int64(1)}, want: "int"},
		{name: "Pair", args: []any{1, "a"}, want: "pair"},
	}

	fx := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := fx.factory.InvokeStaticMethod(fx.counter, "Pick", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestInvokeStatic(t *testing.T) {
	fx := newFixture(t)

	t.Run("HighArity", func(t *testing.T) {
		args := []any{1, int8(2), int64(3), "4", 5.0, uint(6)}
		out, err := fx.factory.InvokeStaticMethod(fx.counter, "Sum", args...)
		require.NoError(t, err)
		assert.Equal(t, 21, out)

		s, ok := fx.factory.sites.Load(cache.Key(cache.KindStatic, cache.TypeID(fx.counter.Type()), "Sum", schema.SigOf(args...).Key()))
		require.True(t, ok)
		assert.Equal(t, TierHigh, s.inv.Tier)
	})

	t.Run("Variadic", func(t *testing.T) {
		out, err := fx.factory.InvokeStaticMethod(fx.counter, "Join", "-", "a", "b", "c")
		require.NoError(t, err)
		assert.Equal(t, "a-b-c", out)

		out, err = fx.factory.InvokeStaticMethod(fx.counter, "Join", ",")
		require.NoError(t, err)
		assert.Equal(t, "", out)
	})

	t.Run("SliceTail", func(t *testing.T) {
		out, err := fx.factory.InvokeStaticMethod(fx.counter, "Join", ",", []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, "a,b", out)

		out, err = fx.factory.InvokeStaticMethod(fx.counter, "Join", ",", Parts{"c", "d"})
		require.NoError(t, err)
		assert.Equal(t, "c,d", out)

		out, err = fx.factory.InvokeStaticMethod(fx.counter, "Join", ",", []string(nil))
		require.NoError(t, err)
		assert.Equal(t, "", out)

		out, err = fx.factory.InvokeStaticMethod(fx.counter, "Join", ",", "single")
		require.NoError(t, err)
		assert.Equal(t, "single", out)
	})

	t.Run("OnlyNilError", func(t *testing.T) {
		c := &Counter{Value: 4}
		out, err := fx.factory.InvokeStaticMethod(fx.counter, "Reset", c)
		require.NoError(t, err)
		assert.Equal(t, NoResult, out)
		assert.Zero(t, c.Value)
	})

	t.Run("NilArgument", func(t *testing.T) {
		out, err := fx.factory.InvokeStaticMethod(fx.counter, "NameOf", nil)
		require.NoError(t, err)
		assert.Equal(t, "nobody", out)
	})

	t.Run("NotStatic", func(t *testing.T) {
		_, err := fx.factory.InvokeStaticMethod(fx.counter, "Inc")
		var noMatch *NoMatchingOverloadError
		assert.True(t, errors.As(err, &noMatch))
	})
}

// =========================================================================
// Caching Tests
// =========================================================================

func TestInvokerCached(t *testing.T) {
	fx := newFixture(t)
	c := &Counter{}

	_, err := fx.factory.InvokeMethod(c, "Add", 1)
	require.NoError(t, err)
	builds, scans := fx.factory.Builds(), fx.members.Scans()
	assert.Equal(t, int64(2), builds, "one call site and one invoker")

	_, err = fx.factory.InvokeMethod(c, "Add", 1)
	require.NoError(t, err)
	assert.Equal(t, builds, fx.factory.Builds())
	assert.Equal(t, scans, fx.members.Scans())

	// A new call-site signature reuses the member's invoker
	_, err = fx.factory.InvokeMethod(c, "Add", int64(1))
	require.NoError(t, err)
	assert.Equal(t, builds+1, fx.factory.Builds())
	assert.Equal(t, 3, c.Value)

	s, ok := fx.factory.sites.Load(cache.Key(cache.KindMethod, cache.TypeID(fx.counter.Type()), "Add", schema.SigOf(int64(1)).Key()))
	require.True(t, ok)
	assert.Equal(t, TierLow, s.inv.Tier)
	assert.Len(t, s.plans, 1)

	fx.factory.Clear()
	assert.Zero(t, fx.factory.Len())
}

func TestConcurrentCreateInstance(t *testing.T) {
	fx := newFixture(t)

	const goroutines = 32
	results := make([]any, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = fx.factory.CreateInstance(fx.counter, i, "worker")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, &Counter{Value: i, Label: "worker"}, results[i])
	}
	assert.Equal(t, int64(2), fx.factory.Builds())
}

// =========================================================================
// Fallback Tests
// =========================================================================

func TestFallbackOnFailedBuild(t *testing.T) {
	tests := []struct {
		name    string
		compile func(*schema.Member) (*Invoker, error)
	}{
		{
			name: "Error",
			compile: func(*schema.Member) (*Invoker, error) {
				return nil, errors.New("cannot compile")
			},
		},
		{
			name: "Panic",
			compile: func(*schema.Member) (*Invoker, error) {
				panic("cannot compile")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			fx := newFixture(t, WithLogger(zap.New(core)))
			fx.factory.compile = tt.compile

			for i := 1; i <= 2; i++ {
				out, err := fx.factory.CreateInstance(fx.counter, int64(i), "raw")
				require.NoError(t, err)
				assert.Equal(t, &Counter{Value: i, Label: "raw"}, out)
				assert.Equal(t, i, logs.Len(), "every degraded call is logged")
			}

			assert.Zero(t, fx.factory.Len(), "degraded calls are not cached")
			assert.Contains(t, logs.All()[0].ContextMap()["error"], "cannot compile")
		})
	}
}

func TestPackageLogger(t *testing.T) {
	assert.NotNil(t, Logger())

	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	fx := newFixture(t)
	fx.factory.compile = func(*schema.Member) (*Invoker, error) {
		return nil, errors.New("nope")
	}
	_, err := fx.factory.InvokeStaticMethod(fx.counter, "Pick", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}
