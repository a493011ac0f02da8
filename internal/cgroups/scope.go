package cgroups

import "fmt"

// State is the lifecycle position of a Scope.
type State int

const (
	StateUninitialized State = iota
	StateCreated
	StateConfigured
	StatePopulated
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StatePopulated:
		return "populated"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scope is one cgroup directory owned by a single run.
type Scope struct {
	id    string
	path  string
	state State

	limits []string
	pid    int

	// directories this run made, parent first; the last one is the scope
	// itself unless the scope directory already existed
	created []string
}

// NewScope returns an uninitialized scope for id rooted at path.
// The Manager is the normal way to get one.
func NewScope(id, path string) *Scope {
	return &Scope{id: id, path: path}
}

func (s *Scope) ID() string   { return s.id }
func (s *Scope) Path() string { return s.path }
func (s *Scope) State() State { return s.state }

// PID is the attached process, zero until MarkAttached.
func (s *Scope) PID() int { return s.pid }

// Limits names the limits applied so far, in order.
func (s *Scope) Limits() []string {
	return append([]string(nil), s.limits...)
}

// MarkCreated moves a fresh scope to Created.
func (s *Scope) MarkCreated() error {
	if s.state != StateUninitialized {
		return fmt.Errorf("scope %s is %s, not %s", s.id, s.state, StateUninitialized)
	}
	s.state = StateCreated
	return nil
}

// MarkAttached records that pid joined the scope. The pid joins from inside
// the child, so the parent learns about it after the fact.
func (s *Scope) MarkAttached(pid int) error {
	switch s.state {
	case StateCreated, StateConfigured:
	case StateDestroyed:
		return ErrScopeDestroyed
	default:
		return fmt.Errorf("scope %s is %s, cannot accept pid %d", s.id, s.state, pid)
	}
	s.pid = pid
	s.state = StatePopulated
	return nil
}

// usable reports whether limits or members can still be added.
func (s *Scope) usable() error {
	switch s.state {
	case StateCreated, StateConfigured:
		return nil
	case StateDestroyed:
		return ErrScopeDestroyed
	default:
		return fmt.Errorf("scope is %s", s.state)
	}
}

func (s *Scope) addLimit(name string) {
	s.limits = append(s.limits, name)
	s.state = StateConfigured
}

func (s *Scope) ownsLeaf() bool {
	return len(s.created) > 0 && s.created[len(s.created)-1] == s.path
}
