package cgroups

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the Manager unwraps to exactly one of
// these and to the underlying OS error, if any.
var (
	ErrBackendUnavailable = errors.New("cgroup v2 backend unavailable")
	ErrCreateFailed       = errors.New("scope creation failed")
	ErrLimitRejected      = errors.New("limit rejected")
	ErrAttachFailed       = errors.New("attach failed")
	ErrDeleteFailed       = errors.New("scope deletion failed")
	ErrStatsFailed        = errors.New("reading scope usage failed")

	// ErrScopeDestroyed is returned for any operation on a destroyed scope.
	ErrScopeDestroyed = errors.New("scope already destroyed")
)

// ScopeError records the operation and scope an error happened on.
type ScopeError struct {
	Op    string // "probe", "create", "memory", "cpu", "attach", "destroy", "stats"
	Scope string
	Kind  error
	Err   error
}

func newError(op, scope string, kind, err error) *ScopeError {
	return &ScopeError{Op: op, Scope: scope, Kind: kind, Err: err}
}

func (e *ScopeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Scope, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Scope, e.Kind, e.Err)
}

func (e *ScopeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
