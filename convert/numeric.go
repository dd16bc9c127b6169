package convert

import (
	"fmt"
	"math"
	"reflect"
)

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

// numericPlan converts between integer and floating point kinds. Values the
// target cannot represent fail with ErrOverflow; fractions and integers a
// float cannot hold exactly fail with ErrPrecisionLoss.
func numericPlan(from, to reflect.Type) Func {
	// Probe value for Overflow* checks, never written
	probe := reflect.New(to).Elem()
	fk, tk := from.Kind(), to.Kind()

	overflow := func(v reflect.Value) (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("%w: %v does not fit %s", ErrOverflow, v.Interface(), to)
	}
	lossy := func(v reflect.Value) (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("%w: %v as %s", ErrPrecisionLoss, v.Interface(), to)
	}

	switch {
	case isInt(fk):
		return func(v reflect.Value) (reflect.Value, error) {
			x := v.Int()
			switch {
			case isInt(tk):
				if probe.OverflowInt(x) {
					return overflow(v)
				}
			case isUint(tk):
				if x < 0 || probe.OverflowUint(uint64(x)) {
					return overflow(v)
				}
			default:
				if float64(x) >= math.MaxInt64 || int64(toFloat(float64(x), tk)) != x {
					return lossy(v)
				}
			}
			return v.Convert(to), nil
		}

	case isUint(fk):
		return func(v reflect.Value) (reflect.Value, error) {
			x := v.Uint()
			switch {
			case isInt(tk):
				if x > math.MaxInt64 || probe.OverflowInt(int64(x)) {
					return overflow(v)
				}
			case isUint(tk):
				if probe.OverflowUint(x) {
					return overflow(v)
				}
			default:
				if float64(x) >= math.MaxUint64 || uint64(toFloat(float64(x), tk)) != x {
					return lossy(v)
				}
			}
			return v.Convert(to), nil
		}

	default:
		return func(v reflect.Value) (reflect.Value, error) {
			f := v.Float()
			if isFloat(tk) {
				if probe.OverflowFloat(f) {
					return overflow(v)
				}
				return v.Convert(to), nil
			}
			if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
				return lossy(v)
			}
			if isInt(tk) {
				if f < math.MinInt64 || f >= math.MaxInt64 || probe.OverflowInt(int64(f)) {
					return overflow(v)
				}
			} else if f < 0 || f >= math.MaxUint64 || probe.OverflowUint(uint64(f)) {
				return overflow(v)
			}
			return v.Convert(to), nil
		}
	}
}

// toFloat rounds f to the precision of the target float kind.
func toFloat(f float64, k reflect.Kind) float64 {
	if k == reflect.Float32 {
		return float64(float32(f))
	}
	return f
}
