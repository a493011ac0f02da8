package restrict

import (
	"errors"
	"fmt"

	"github.com/psantana5/restrict/internal/cgroups"
)

// Request is everything one run needs. Build it with NewRequest; the runner
// takes it by value and never changes it.
type Request struct {
	Shell   string
	Command string
	ScopeID string
	Limits  cgroups.Limits
	Debug   bool
}

// DefaultScopeID is the scope name used when none is given.
func DefaultScopeID(pid int) string {
	return fmt.Sprintf("restrict-%d", pid)
}

// NewRequest validates and builds a Request. Limit values are copied.
func NewRequest(shell, command, scopeID string, limits cgroups.Limits, debug bool) (Request, error) {
	req := Request{
		Shell:   shell,
		Command: command,
		ScopeID: scopeID,
		Limits:  cgroups.Limits{MemoryMax: copyUint(limits.MemoryMax), CPUWeight: copyUint(limits.CPUWeight)},
		Debug:   debug,
	}
	return req, req.Validate()
}

// Validate checks the fields NewRequest checks.
func (r Request) Validate() error {
	if r.Shell == "" {
		return errors.New("no shell given and $SHELL is not set")
	}
	if r.Command == "" {
		return errors.New("empty command")
	}
	if err := cgroups.ValidateID(r.ScopeID); err != nil {
		return err
	}
	if r.Limits.MemoryMax != nil && *r.Limits.MemoryMax == 0 {
		return errors.New("memory ceiling must be positive")
	}
	return nil
}

func copyUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
