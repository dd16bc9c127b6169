package convert

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrUnsupported   = errors.New("unsupported conversion")
	ErrNil           = errors.New("nil value")
	ErrOverflow      = errors.New("value out of range")
	ErrPrecisionLoss = errors.New("precision loss")
	ErrSyntax        = errors.New("invalid syntax")
)

// ConversionError reports a value that could not be coerced to a type.
type ConversionError struct {
	Value any
	From  reflect.Type // nil for an untyped nil
	To    reflect.Type
	Err   error
}

func (e *ConversionError) Error() string {
	from := "nil"
	if e.From != nil {
		from = e.From.String()
	}
	to := "<nil>"
	if e.To != nil {
		to = e.To.String()
	}
	if e.Value == nil {
		return fmt.Sprintf("cannot convert nil (%s) to %s: %v", from, to, e.Err)
	}
	return fmt.Sprintf("cannot convert %v (%s) to %s: %v", e.Value, from, to, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
