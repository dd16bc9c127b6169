package dynreflect

import (
	"strings"
	"sync"
	"time"

	"github.com/Konsultn-Engineering/dynreflect/registry"
)

// BuiltinModule is the namespace of the module every Cache loads first.
const BuiltinModule = "dynreflect"

// ProbeTypeName is the qualified name Warmup resolves.
const ProbeTypeName = BuiltinModule + ".Probe"

// Probe is the reference type Warmup runs every tier against.
type Probe struct {
	ID      int64     `json:"id" db:"id,pk"`
	Name    string    `json:"name" db:"name"`
	Created time.Time `json:"created"`
	note    string
}

// ProbeLabel annotates the Probe type and its members.
type ProbeLabel struct {
	Value string
}

func NewProbe() *Probe { return &Probe{Name: "probe"} }

func NewProbeNamed(id int64, name string) *Probe {
	return &Probe{ID: id, Name: name}
}

func NewProbeDated(id int64, name, note string, year, month, day int) *Probe {
	return &Probe{
		ID:      id,
		Name:    name,
		Created: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		note:    note,
	}
}

func (p *Probe) Note() string     { return p.note }
func (p *Probe) SetNote(v string) { p.note = v }

// Rename sets the name and returns the previous one.
func (p *Probe) Rename(name string) string {
	prev := p.Name
	p.Name = name
	return prev
}

func probeSum(a, b int) int { return a + b }

func probeUpper(s string) string { return strings.ToUpper(s) }

var builtin = sync.OnceValue(func() *registry.Module {
	m := registry.NewModule(BuiltinModule)
	registry.MustRegister[Probe](m,
		registry.Constructors(NewProbe, NewProbeNamed, NewProbeDated),
		registry.Static("Sum", probeSum),
		registry.Static("Upper", probeUpper),
		registry.Annotate("", ProbeLabel{Value: "reference"}),
		registry.Annotate("Name", ProbeLabel{Value: "display"}),
	)
	return m
})
