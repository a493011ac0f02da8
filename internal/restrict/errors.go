package restrict

import "fmt"

// Kind names the run step that failed.
type Kind string

const (
	KindRequest       Kind = "request"       // the request itself is invalid
	KindPrecondition  Kind = "precondition"  // no usable cgroup v2 backend
	KindCreate        Kind = "create"        // the scope could not be created
	KindConfiguration Kind = "configuration" // a limit was rejected
	KindSpawn         Kind = "spawn"         // the child never ran
	KindWait          Kind = "wait"          // the child's end was not observed
)

// RunError is a failure that stopped the run. A child that exits non-zero or
// dies from a signal is not a RunError.
type RunError struct {
	Kind Kind
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
