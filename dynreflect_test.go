package dynreflect

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Konsultn-Engineering/dynreflect/config"
	"github.com/Konsultn-Engineering/dynreflect/registry"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func NewPoint(x, y int) Point { return Point{X: x, Y: y} }

type Unit struct {
	Name string
}

var intType = reflect.TypeFor[int]()

func newGeoCache(t *testing.T, opts ...Option) (*Cache, *TypeHandle) {
	t.Helper()
	m := registry.NewModule("geo")
	_, err := registry.Register[Point](m, registry.Constructors(NewPoint))
	require.NoError(t, err)
	_, err = registry.Register[Unit](m, registry.Annotate("Name", "unit-name"))
	require.NoError(t, err)

	c := New(append([]Option{WithDefaultNamespace("geo")}, opts...)...)
	require.NoError(t, c.Load(m))

	h, ok := c.Resolve("Point")
	require.True(t, ok)
	return c, h
}

// =========================================================================
// Scenario Tests
// =========================================================================

func TestPointScenario(t *testing.T) {
	c, h := newGeoCache(t)

	out, err := c.CreateInstance(h, 3, 4)
	require.NoError(t, err)
	p, ok := out.(Point)
	require.True(t, ok, "got %T", out)

	getX, err := c.CreateGetter(h.Type(), intType, "X")
	require.NoError(t, err)
	assert.Equal(t, 3, getX(p))

	setY, err := c.CreateSetter(h.Type(), intType, "Y")
	require.NoError(t, err)
	require.NoError(t, setY(&p, 10))
	assert.Equal(t, Point{X: 3, Y: 10}, p)

	typed, err := Get[Point, int](c, "Y")
	require.NoError(t, err)
	assert.Equal(t, 10, typed(p))

	setX, err := Set[*Point, int](c, "X")
	require.NoError(t, err)
	require.NoError(t, setX(&p, 1))
	assert.Equal(t, 1, p.X)
}

func TestResolve(t *testing.T) {
	c, h := newGeoCache(t)

	again, ok := c.Resolve("geo.Point")
	require.True(t, ok)
	assert.Same(t, h, again)

	probe, ok := c.Resolve(ProbeTypeName)
	require.True(t, ok)
	assert.Equal(t, BuiltinModule, probe.Module())

	_, ok = c.Resolve("Probe")
	assert.False(t, ok, "bare names only search the default namespace")

	builtinFirst := New(WithDefaultNamespace(BuiltinModule))
	_, ok = builtinFirst.Resolve("Probe")
	assert.True(t, ok)

	assert.Same(t, h, c.TypeOf(reflect.TypeFor[*Point]()))
}

func TestCreateInstanceOf(t *testing.T) {
	c, _ := newGeoCache(t)

	out, err := c.CreateInstanceOf("geo.Point", int64(1), "2")
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2}, out)

	out, err = c.CreateInstanceOf("Unit")
	require.NoError(t, err)
	assert.Equal(t, &Unit{}, out)

	_, err = c.CreateInstanceOf("geo.Missing")
	assert.ErrorIs(t, err, ErrTypeNotFound)

	_, err = c.CreateInstanceOf("Point", 1)
	var noMatch *NoMatchingOverloadError
	assert.True(t, errors.As(err, &noMatch))
}

func TestInvoke(t *testing.T) {
	c := New()
	h, ok := c.Resolve(ProbeTypeName)
	require.True(t, ok)

	p := NewProbe()
	prev, err := c.InvokeMethod(p, "Rename", "next")
	require.NoError(t, err)
	assert.Equal(t, "probe", prev)
	assert.Equal(t, "next", p.Name)

	out, err := c.InvokeMethod(p, "SetNote", "n")
	require.NoError(t, err)
	assert.Equal(t, NoResult, out)

	sum, err := c.InvokeStaticMethod(h, "Sum", "2", 3.0)
	require.NoError(t, err)
	assert.Equal(t, 5, sum)

	_, err = c.InvokeStaticMethod(h, "Sum", 1)
	var noMatch *NoMatchingOverloadError
	assert.True(t, errors.As(err, &noMatch))
}

// =========================================================================
// Caching Tests
// =========================================================================

func TestIdempotentGetter(t *testing.T) {
	c, h := newGeoCache(t)
	p := Point{X: 5}

	first, err := c.CreateGetter(h.Type(), intType, "X")
	require.NoError(t, err)
	before := c.Stats()

	second, err := c.CreateGetter(h.Type(), intType, "X")
	require.NoError(t, err)
	assert.Equal(t, before, c.Stats())
	assert.Equal(t, first(p), second(p))
}

func TestNegativeCaching(t *testing.T) {
	c, h := newGeoCache(t)

	_, ok := c.GetField(h, "Z", ScopeAll)
	require.False(t, ok)
	scans := c.Stats().MemberScans

	_, ok = c.GetField(h, "Z", ScopeAll)
	require.False(t, ok)
	assert.Equal(t, scans, c.Stats().MemberScans)

	_, ok = c.Resolve("Nowhere")
	require.False(t, ok)
	typeScans := c.Stats().TypeScans
	_, ok = c.Resolve("Nowhere")
	require.False(t, ok)
	assert.Equal(t, typeScans, c.Stats().TypeScans)
}

func TestEmptyAttributesCached(t *testing.T) {
	c, h := newGeoCache(t)
	x, ok := c.GetField(h, "X", ScopeDefault)
	require.True(t, ok)

	label := reflect.TypeFor[ProbeLabel]()
	assert.Empty(t, c.GetAttribute(x, label, true))
	scans := c.Stats().AttributeScans
	assert.Empty(t, c.GetAttribute(x, label, true))
	assert.Equal(t, scans, c.Stats().AttributeScans)
	assert.False(t, c.HasAttribute(x, label, true))

	tags := c.GetAttribute(x, reflect.TypeFor[Tag](), false)
	require.Len(t, tags, 1)
	assert.Equal(t, "x", tags[0].(Tag).Name)
}

func TestAttributes(t *testing.T) {
	c := New()
	h, ok := c.Resolve(ProbeTypeName)
	require.True(t, ok)

	label, ok := Attribute[ProbeLabel](c, c.TypeTarget(h), false)
	require.True(t, ok)
	assert.Equal(t, "reference", label.Value)

	name, ok := c.GetField(h, "Name", ScopeDefault)
	require.True(t, ok)
	all := c.GetAttributes(name, false)
	assert.Len(t, all, 3, "one annotation and two struct tags")
}

func TestClearAllCaches(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, h := newGeoCache(t, WithLogger(zap.New(core)))

	_, err := c.CreateGetter(h.Type(), intType, "X")
	require.NoError(t, err)
	_, err = c.CreateInstance(h, 1, 2)
	require.NoError(t, err)
	_, err = c.Converter().Convert("1", intType)
	require.NoError(t, err)
	before := c.Stats()

	c.ClearAllCaches()
	assert.Equal(t, 1, logs.FilterMessage("cleared all reflection caches").Len())

	again, ok := c.Resolve("Point")
	require.True(t, ok)
	assert.Same(t, h, again, "modules stay loaded")

	_, err = c.CreateGetter(h.Type(), intType, "X")
	require.NoError(t, err)
	_, err = c.CreateInstance(h, 1, 2)
	require.NoError(t, err)
	_, err = c.Converter().Convert("1", intType)
	require.NoError(t, err)

	after := c.Stats()
	assert.Greater(t, after.TypeScans, before.TypeScans)
	assert.Greater(t, after.MemberScans, before.MemberScans)
	assert.Greater(t, after.AccessorBuilds, before.AccessorBuilds)
	assert.Greater(t, after.InvokerBuilds, before.InvokerBuilds)
	assert.Greater(t, after.ConverterBuilds, before.ConverterBuilds)
}

// =========================================================================
// Warmup Tests
// =========================================================================

func TestWarmup(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(WithLogger(zap.New(core)))

	require.NoError(t, c.warmup(warmupSteps))
	stats := c.Stats()
	assert.Positive(t, stats.MemberScans)
	assert.Positive(t, stats.AttributeScans)
	assert.Positive(t, stats.AccessorBuilds)
	assert.Positive(t, stats.InvokerBuilds)
	assert.Positive(t, stats.ConverterBuilds)

	c.Warmup()
	assert.Equal(t, 1, logs.FilterMessage("warmup finished").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, stats.AccessorBuilds, c.Stats().AccessorBuilds, "second run is served from cache")
}

func TestWarmupIsolatesFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := New(WithLogger(zap.New(core)))

	ran := false
	steps := []warmupStep{
		{name: "panics", run: func(*Cache, *TypeHandle) error { panic("exploded") }},
		{name: "fails", run: func(*Cache, *TypeHandle) error { return errors.New("refused") }},
		{name: "works", run: func(*Cache, *TypeHandle) error {
			ran = true
			return nil
		}},
	}

	err := c.warmup(steps)
	require.Error(t, err)
	assert.True(t, ran)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "panics: panic: exploded")
	assert.Contains(t, err.Error(), "fails: refused")
	assert.Equal(t, 2, logs.FilterMessage("warmup step failed").Len())

	assert.NotPanics(t, func() {
		warmupSteps, steps = steps, warmupSteps
		defer func() { warmupSteps = steps }()
		c.Warmup()
	})
	assert.Equal(t, 1, logs.FilterMessage("warmup finished with failures").Len())
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultNamespace = BuiltinModule
	cfg.Converter.CacheSize = 8
	cfg.Warmup = true
	require.NoError(t, cfg.Validate())

	c := New(WithConfig(cfg))
	_, ok := c.Resolve("Probe")
	assert.True(t, ok)
	assert.Positive(t, c.Stats().InvokerBuilds, "warmup ran during New")
	assert.LessOrEqual(t, c.Converter().Len(), 8)

	blank := config.Default()
	blank.DefaultNamespace = ""
	require.Error(t, blank.Validate())
	c = New(WithConfig(blank))
	assert.Equal(t, "main", c.Registry().DefaultNamespace())
}
