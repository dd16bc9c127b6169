package convert

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var parsers sync.Map // reflect.Type -> func(string) (reflect.Value, error)

// RegisterParser teaches every Converter to build T from a string.
func RegisterParser[T any](parse func(string) (T, error)) {
	parsers.Store(reflect.TypeFor[T](), func(s string) (reflect.Value, error) {
		v, err := parse(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return valueOf(v), nil
	})
}

func init() {
	RegisterParser(time.ParseDuration)
	RegisterParser(uuid.Parse)
	RegisterParser(ulid.Parse)
	RegisterParser(func(s string) ([]byte, error) { return []byte(s), nil })
}

// parsePlan builds a string-to-to plan for well-known and basic kinds.
func (c *Converter) parsePlan(to reflect.Type) (Func, bool) {
	if to == timeType {
		layouts := c.layouts
		return func(v reflect.Value) (reflect.Value, error) {
			t, err := parseTime(v.String(), layouts)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(t), nil
		}, true
	}

	if p, ok := parsers.Load(to); ok {
		parse := p.(func(string) (reflect.Value, error))
		return func(v reflect.Value) (reflect.Value, error) {
			return parse(v.String())
		}, true
	}

	kind := to.Kind()
	switch {
	case kind == reflect.Bool:
		return func(v reflect.Value) (reflect.Value, error) {
			b, err := parseBool(v.String())
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(b).Convert(to), nil
		}, true

	case isInt(kind):
		return func(v reflect.Value) (reflect.Value, error) {
			n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, to.Bits())
			if err != nil {
				return reflect.Value{}, numError(err)
			}
			return reflect.ValueOf(n).Convert(to), nil
		}, true

	case isUint(kind):
		return func(v reflect.Value) (reflect.Value, error) {
			n, err := strconv.ParseUint(strings.TrimSpace(v.String()), 10, to.Bits())
			if err != nil {
				return reflect.Value{}, numError(err)
			}
			return reflect.ValueOf(n).Convert(to), nil
		}, true

	case isFloat(kind):
		return func(v reflect.Value) (reflect.Value, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), to.Bits())
			if err != nil {
				return reflect.Value{}, numError(err)
			}
			return reflect.ValueOf(f).Convert(to), nil
		}, true
	}
	return nil, false
}

func parseTime(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q matches no time layout", ErrSyntax, s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes", "y", "on":
		return true, nil
	case "false", "f", "0", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a bool", ErrSyntax, s)
}

func numError(err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return fmt.Errorf("%w: %v", ErrSyntax, err)
}
