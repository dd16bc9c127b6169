package accessor

import (
	"fmt"
	"reflect"
)

// AccessorBuildError reports a getter or setter that could not be built:
// no matching member, or a member whose type cannot cast to the caller's.
type AccessorBuildError struct {
	Type      reflect.Type
	Member    string
	Direction string // "getter" or "setter"
	Reason    string
	Err       error
}

func (e *AccessorBuildError) Error() string {
	msg := fmt.Sprintf("cannot build %s for %s.%s: %s", e.Direction, e.Type, e.Member, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AccessorBuildError) Unwrap() error { return e.Err }
