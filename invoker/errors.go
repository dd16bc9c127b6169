package invoker

import (
	"errors"
	"fmt"
)

// ErrNilInstance is wrapped in the *InvocationError of an instance method
// called on nil.
var ErrNilInstance = errors.New("nil instance")

// NoMatchingOverloadError reports a call no registered callable can accept.
type NoMatchingOverloadError struct {
	Type string
	Name string
	Args int
}

func (e *NoMatchingOverloadError) Error() string {
	return fmt.Sprintf("no overload of %s.%s accepts %d argument(s)", e.Type, e.Name, e.Args)
}

// InvocationError wraps an error returned by, or a panic raised in, the
// invoked callable.
type InvocationError struct {
	Member string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Member, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

type noResult struct{}

func (noResult) String() string { return "<no result>" }

// NoResult is returned by calls that produce no value, or only a nil error.
var NoResult any = noResult{}
