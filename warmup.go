package dynreflect

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type warmupStep struct {
	name string
	run  func(c *Cache, h *TypeHandle) error
}

var warmupSteps = []warmupStep{
	{name: "members", run: warmMembers},
	{name: "attributes", run: warmAttributes},
	{name: "accessors", run: warmAccessors},
	{name: "constructors", run: warmConstructors},
	{name: "methods", run: warmMethods},
	{name: "converter", run: warmConverter},
}

// Warmup exercises every lookup, accessor and invoker tier once against
// Probe so that their first-use cost is paid now. Failing steps are logged
// and skipped; Warmup itself never fails.
func (c *Cache) Warmup() {
	start := time.Now()
	if err := c.warmup(warmupSteps); err != nil {
		c.logger.Warn("warmup finished with failures",
			zap.Int("failures", len(multierr.Errors(err))),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}
	c.logger.Debug("warmup finished", zap.Duration("elapsed", time.Since(start)))
}

func (c *Cache) warmup(steps []warmupStep) error {
	var errs error

	h, ok := c.Resolve(ProbeTypeName)
	if !ok {
		// The remaining steps still run against the unregistered handle
		err := fmt.Errorf("%s: %w", ProbeTypeName, ErrTypeNotFound)
		c.logger.Warn("warmup step failed", zap.String("step", "resolve"), zap.Error(err))
		errs = fmt.Errorf("resolve: %w", err)
		h = c.registry.Of(reflect.TypeFor[Probe]())
	}

	for _, step := range steps {
		if err := runStep(c, h, step); err != nil {
			c.logger.Warn("warmup step failed", zap.String("step", step.name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errs
}

func runStep(c *Cache, h *TypeHandle, step warmupStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.run(c, h)
}

func warmMembers(c *Cache, h *TypeHandle) error {
	if _, ok := c.GetField(h, "Name", ScopeDefault); !ok {
		return fmt.Errorf("field Name not found")
	}
	if _, ok := c.GetField(h, "note", ScopeAll); !ok {
		return fmt.Errorf("field note not found")
	}
	if _, ok := c.GetProperty(h, "Note", ScopeDefault); !ok {
		return fmt.Errorf("property Note not found")
	}
	if _, ok := c.GetMethod(h, "Rename", Sig(reflect.TypeFor[string]()), ScopeDefault); !ok {
		return fmt.Errorf("method Rename not found")
	}
	if _, ok := c.GetConstructor(h, Sig(), ScopePublic); !ok {
		return fmt.Errorf("parameterless constructor not found")
	}
	return nil
}

func warmAttributes(c *Cache, h *TypeHandle) error {
	if len(c.GetAttributes(c.TypeTarget(h), true)) == 0 {
		return fmt.Errorf("type annotations missing")
	}
	name, ok := c.GetField(h, "Name", ScopeDefault)
	if !ok {
		return fmt.Errorf("field Name not found")
	}
	if !c.HasAttribute(name, reflect.TypeFor[ProbeLabel](), true) {
		return fmt.Errorf("field Name carries no ProbeLabel")
	}
	if !c.HasAttribute(name, reflect.TypeFor[Tag](), false) {
		return fmt.Errorf("field Name carries no struct tags")
	}
	return nil
}

func warmAccessors(c *Cache, h *TypeHandle) error {
	str := reflect.TypeFor[string]()
	p := &Probe{}

	for _, member := range []string{"Name", "Note"} {
		set, err := c.CreateSetter(h.Type(), str, member)
		if err != nil {
			return err
		}
		get, err := c.CreateGetter(h.Type(), str, member)
		if err != nil {
			return err
		}
		if err := set(p, "warm"); err != nil {
			return err
		}
		if got := get(p); got != "warm" {
			return fmt.Errorf("%s reads back %v", member, got)
		}
	}

	getID, err := Get[*Probe, int64](c, "ID")
	if err != nil {
		return err
	}
	setID, err := Set[*Probe, int64](c, "ID")
	if err != nil {
		return err
	}
	if err := setID(p, 7); err != nil {
		return err
	}
	if getID(p) != 7 {
		return fmt.Errorf("ID reads back %d", getID(p))
	}
	return nil
}

func warmConstructors(c *Cache, h *TypeHandle) error {
	calls := [][]any{
		nil,
		{1, "warm"},
		{1, "warm", "note", 2024, 1, 2},
	}
	for _, args := range calls {
		out, err := c.CreateInstance(h, args...)
		if err != nil {
			return err
		}
		if _, ok := out.(*Probe); !ok {
			return fmt.Errorf("constructor with %d argument(s) returned %T", len(args), out)
		}
	}
	return nil
}

func warmMethods(c *Cache, h *TypeHandle) error {
	p := NewProbe()
	if _, err := c.InvokeMethod(p, "Rename", "warm"); err != nil {
		return err
	}
	if _, err := c.InvokeMethod(p, "SetNote", "warm"); err != nil {
		return err
	}
	if _, err := c.InvokeStaticMethod(h, "Sum", 1, int64(2)); err != nil {
		return err
	}
	_, err := c.InvokeStaticMethod(h, "Upper", "warm")
	return err
}

func warmConverter(c *Cache, _ *TypeHandle) error {
	conversions := []struct {
		value  any
		target reflect.Type
	}{
		{value: "42", target: reflect.TypeFor[int]()},
		{value: 42, target: reflect.TypeFor[string]()},
		{value: int64(3), target: reflect.TypeFor[*int32]()},
		{value: "2024-01-02", target: reflect.TypeFor[time.Time]()},
		{value: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", target: reflect.TypeFor[uuid.UUID]()},
		{value: "warm", target: reflect.TypeFor[sql.NullString]()},
		{value: nil, target: reflect.TypeFor[sql.NullInt64]()},
	}

	var errs error
	for _, conv := range conversions {
		if _, err := c.conv.Convert(conv.value, conv.target); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
