package cgroups

// The scope exists before the child runs.
// The scope is removed after the child exits, on every path.
// A limit that cannot be applied stops the run.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Manager handles the lifecycle of one scope at a time.
// Create. Limit. Attach. Destroy. Nothing else.
type Manager struct {
	root   string
	logger *zap.Logger

	fsType func(path string) (int64, error)
	// replaced in tests, which run on a plain directory
	rmdir func(path string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithRoot sets the directory cgroupfs is mounted on.
func WithRoot(root string) Option {
	return func(m *Manager) {
		if root != "" {
			m.root = root
		}
	}
}

// WithFSProbe replaces the statfs call CheckBackend uses to learn the
// filesystem type of the root.
func WithFSProbe(probe func(path string) (int64, error)) Option {
	return func(m *Manager) {
		if probe != nil {
			m.fsType = probe
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a cgroup manager
func New(opts ...Option) *Manager {
	m := &Manager{
		root:   DefaultRoot,
		logger: zap.NewNop(),
		fsType: statfsType,
		rmdir:  removeDir,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func statfsType(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Type), nil
}

// CheckBackend verifies that the root is a usable cgroup v2 mount.
func (m *Manager) CheckBackend() error {
	t, err := m.fsType(m.root)
	if err != nil {
		return newError("probe", m.root, ErrBackendUnavailable, err)
	}
	if t != unix.CGROUP2_SUPER_MAGIC {
		return newError("probe", m.root, ErrBackendUnavailable,
			fmt.Errorf("filesystem type %#x is not cgroup2", t))
	}
	if _, err := os.Stat(filepath.Join(m.root, controllersFile)); err != nil {
		return newError("probe", m.root, ErrBackendUnavailable, err)
	}
	return nil
}

// ValidateID checks that id names a directory below the root.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("empty scope identifier")
	}
	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("scope identifier %q contains NUL", id)
	}
	if strings.HasPrefix(id, "/") {
		return fmt.Errorf("scope identifier %q must be relative", id)
	}
	for _, seg := range strings.Split(id, "/") {
		switch seg {
		case "", ".", "..":
			return fmt.Errorf("scope identifier %q has invalid segment %q", id, seg)
		}
	}
	return nil
}

// Create makes the scope directory for id, along with any missing parents.
// An existing cgroup directory is reused. Once id is valid the returned scope
// is never nil, even on error, so Destroy can undo a partial creation.
func (m *Manager) Create(id string) (*Scope, error) {
	if err := ValidateID(id); err != nil {
		return nil, newError("create", id, ErrCreateFailed, err)
	}

	s := NewScope(id, filepath.Join(m.root, filepath.FromSlash(id)))

	dir := m.root
	for _, seg := range strings.Split(id, "/") {
		dir = filepath.Join(dir, seg)
		err := os.Mkdir(dir, dirPerm)
		if err == nil {
			s.created = append(s.created, dir)
			continue
		}
		if !errors.Is(err, fs.ErrExist) {
			return s, newError("create", id, ErrCreateFailed, err)
		}
		fi, err := os.Stat(dir)
		if err != nil {
			return s, newError("create", id, ErrCreateFailed, err)
		}
		if !fi.IsDir() {
			return s, newError("create", id, ErrCreateFailed, fmt.Errorf("%s exists and is not a directory", dir))
		}
	}

	reused := !s.ownsLeaf()
	if reused {
		// the kernel populates fresh directories itself; an old one must
		// already look like a cgroup
		if _, err := os.Stat(filepath.Join(s.path, procsFile)); err != nil {
			return s, newError("create", id, ErrCreateFailed, fmt.Errorf("%s is not a cgroup: %w", s.path, err))
		}
		m.logger.Warn("reusing existing scope", zap.String("scope", id), zap.String("path", s.path))
	}

	if err := s.MarkCreated(); err != nil {
		return s, newError("create", id, ErrCreateFailed, err)
	}
	m.logger.Debug("scope created",
		zap.String("scope", id),
		zap.String("path", s.path),
		zap.Bool("reused", reused))
	return s, nil
}

// Attach records that pid joined the scope. The move itself is done by the
// child through JoinHook, before it execs.
func (m *Manager) Attach(s *Scope, pid int) error {
	if pid <= 0 {
		return newError("attach", s.id, ErrAttachFailed, fmt.Errorf("invalid pid %d", pid))
	}
	if err := s.MarkAttached(pid); err != nil {
		return newError("attach", s.id, ErrAttachFailed, err)
	}
	m.logger.Debug("process attached", zap.String("scope", s.id), zap.Int("pid", pid))
	return nil
}

// Destroy removes the scope directory and the parents this run created.
// Busy or non-empty parents are left in place. Only the first call does
// anything; later calls return ErrScopeDestroyed.
func (m *Manager) Destroy(s *Scope) error {
	if s.state == StateDestroyed {
		return newError("destroy", s.id, ErrScopeDestroyed, nil)
	}
	prev := s.state
	s.state = StateDestroyed

	var errs error
	// a reused directory that failed the cgroup check is not ours to remove
	if prev != StateUninitialized || s.ownsLeaf() {
		if err := m.rmdir(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	for i := len(s.created) - 1; i >= 0; i-- {
		dir := s.created[i]
		if dir == s.path {
			continue
		}
		err := m.rmdir(dir)
		switch {
		case err == nil, errors.Is(err, fs.ErrNotExist):
		case errors.Is(err, unix.EBUSY), errors.Is(err, unix.ENOTEMPTY), errors.Is(err, unix.EEXIST):
			m.logger.Debug("leaving shared parent in place", zap.String("path", dir), zap.Error(err))
		default:
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		return newError("destroy", s.id, ErrDeleteFailed, errs)
	}
	m.logger.Debug("scope destroyed", zap.String("scope", s.id), zap.Stringer("from", prev))
	return nil
}
