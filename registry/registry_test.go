package registry

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type Point struct {
	X int
	Y int
}

func NewPoint(x, y int) Point { return Point{X: x, Y: y} }

func NewOrigin() *Point { return &Point{} }

func Distance(a, b Point) int { return abs(a.X-b.X) + abs(a.Y-b.Y) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Shape interface{ Area() float64 }

type Label string

func geometryModule(t *testing.T) *Module {
	t.Helper()
	m := NewModule("geo")
	_, err := Register[Point](m,
		Constructors(NewOrigin, NewPoint),
		Static("Distance", Distance),
		Annotate("X", "axis"),
	)
	require.NoError(t, err)
	_, err = Register[Shape](m)
	require.NoError(t, err)
	return m
}

// =========================================================================
// Registration Tests
// =========================================================================

func TestRegister(t *testing.T) {
	m := geometryModule(t)

	h, ok := m.Lookup("Point")
	require.True(t, ok)
	assert.Equal(t, "geo.Point", h.Name())
	assert.Equal(t, "Point", h.ShortName())
	assert.Equal(t, "geo", h.Module())
	assert.True(t, h.Registered())
	assert.Equal(t, reflect.TypeFor[Point](), h.Type())
	assert.Len(t, h.Constructors(), 2)
	assert.Len(t, h.Statics("Distance"), 1)
	assert.Equal(t, []string{"Distance"}, h.StaticNames())
	assert.Equal(t, []any{"axis"}, h.Annotations("X"))
	assert.Empty(t, h.Annotations("Y"))
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    []TypeOption
		errText string
	}{
		{
			name:    "ConstructorNotFunc",
			opts:    []TypeOption{Constructors(42)},
			errText: "must be a non-nil func",
		},
		{
			name:    "ConstructorWrongResult",
			opts:    []TypeOption{Constructors(func() string { return "" })},
			errText: "returns string",
		},
		{
			name:    "ConstructorBadSecondResult",
			opts:    []TypeOption{Constructors(func() (Point, int) { return Point{}, 0 })},
			errText: "second result must be error",
		},
		{
			name:    "StaticEmptyName",
			opts:    []TypeOption{Static("", Distance)},
			errText: "static name",
		},
		{
			name:    "NilAnnotation",
			opts:    []TypeOption{Annotate("X", nil)},
			errText: "is nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModule("bad")
			_, err := Register[Point](m, tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestRegisterDuplicateAndSealed(t *testing.T) {
	m := geometryModule(t)

	_, err := Register[Point](m)
	assert.Error(t, err)

	r := New("geo")
	require.NoError(t, r.Load(m))

	_, err = Register[Label](m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot accept")

	assert.Error(t, r.Load(NewModule("geo")), "duplicate module name")
	assert.Error(t, r.Load(nil))
}

func TestRegisterUnnamedType(t *testing.T) {
	m := NewModule("anon")
	_, err := m.RegisterType(reflect.TypeFor[struct{ A int }]())
	assert.Error(t, err)

	h, err := m.RegisterNamed(reflect.TypeFor[struct{ A int }](), "Anon")
	require.NoError(t, err)
	assert.Equal(t, "anon.Anon", h.Name())
}

// =========================================================================
// Resolution Tests
// =========================================================================

func TestResolve(t *testing.T) {
	other := NewModule("other")
	_, err := Register[Label](other)
	require.NoError(t, err)

	r := New("geo")
	require.NoError(t, r.Load(geometryModule(t), other))

	tests := []struct {
		name   string
		input  string
		found  bool
		expect string
	}{
		{name: "BareNameInDefault", input: "Point", found: true, expect: "geo.Point"},
		{name: "QualifiedDefault", input: "geo.Point", found: true, expect: "geo.Point"},
		{name: "OtherModule", input: "other.Label", found: true, expect: "other.Label"},
		{name: "GoTypeString", input: "registry.Label", found: true, expect: "other.Label"},
		{name: "PackagePath", input: reflect.TypeFor[Label]().PkgPath() + ".Label", found: true, expect: "other.Label"},
		{name: "BareNameOutsideDefault", input: "Label", found: false},
		{name: "Missing", input: "geo.Circle", found: false},
		{name: "Empty", input: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := r.Resolve(tt.input)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				require.NotNil(t, h)
				assert.Equal(t, tt.expect, h.Name())
			} else {
				assert.Nil(t, h)
			}
		})
	}
}

func TestResolveCachesMisses(t *testing.T) {
	r := New("geo")
	require.NoError(t, r.Load(geometryModule(t)))

	_, ok := r.Resolve("geo.Circle")
	assert.False(t, ok)
	_, ok = r.Resolve("geo.Circle")
	assert.False(t, ok)
	assert.Equal(t, int64(1), r.Scans())

	// Cached answers ignore modules loaded afterwards
	late := NewModule("late")
	_, err := late.RegisterNamed(reflect.TypeFor[Label](), "Circle")
	require.NoError(t, err)
	require.NoError(t, r.Load(late))

	_, ok = r.Resolve("geo.Circle")
	assert.False(t, ok)
	h, ok := r.Resolve("late.Circle")
	assert.True(t, ok)
	assert.Equal(t, "late.Circle", h.Name())

	r.Clear()
	_, ok = r.Resolve("geo.Circle")
	assert.False(t, ok)
	assert.Equal(t, int64(3), r.Scans())
}

func TestOf(t *testing.T) {
	r := New("geo")
	require.NoError(t, r.Load(geometryModule(t)))

	h := r.Of(reflect.TypeFor[*Point]())
	assert.Equal(t, "geo.Point", h.Name())
	assert.Same(t, h, r.OfValue(Point{}))

	adhoc := r.Of(reflect.TypeFor[strings.Builder]())
	assert.False(t, adhoc.Registered())
	assert.Equal(t, "strings.Builder", adhoc.Name())
	assert.Same(t, adhoc, r.Of(reflect.TypeFor[strings.Builder]()))

	assert.Nil(t, r.Of(nil))
	assert.Nil(t, r.OfValue(nil))
}
