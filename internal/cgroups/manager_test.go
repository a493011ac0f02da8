package cgroups

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newTestManager returns a Manager rooted at a temp dir that passes for a
// cgroup2 mount with the memory and cpu controllers available.
func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, controllersFile), "cpuset cpu io memory pids")
	writeTestFile(t, filepath.Join(root, subtreeControlFile), "")

	m := New(WithRoot(root))
	m.fsType = func(string) (int64, error) { return unix.CGROUP2_SUPER_MAGIC, nil }
	// plain directories holding interface files cannot be rmdir'ed
	m.rmdir = os.RemoveAll
	return m, root
}

// populate creates the interface files the kernel would provide.
func populate(t *testing.T, dir string) {
	t.Helper()
	for _, f := range []string{procsFile, memoryMaxFile, memoryHighFile, memoryMinFile, cpuWeightFile} {
		writeTestFile(t, filepath.Join(dir, f), "")
	}
}

func writeTestFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readTestFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return strings.TrimSpace(string(b))
}

func TestCheckBackend(t *testing.T) {
	t.Run("cgroup2", func(t *testing.T) {
		m, _ := newTestManager(t)
		assert.NoError(t, m.CheckBackend())
	})

	t.Run("wrong filesystem", func(t *testing.T) {
		m, _ := newTestManager(t)
		m.fsType = func(string) (int64, error) { return unix.TMPFS_MAGIC, nil }
		err := m.CheckBackend()
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("statfs fails", func(t *testing.T) {
		m, _ := newTestManager(t)
		m.fsType = func(string) (int64, error) { return 0, unix.ENOENT }
		err := m.CheckBackend()
		assert.ErrorIs(t, err, ErrBackendUnavailable)
		assert.ErrorIs(t, err, unix.ENOENT)
	})

	t.Run("no controllers file", func(t *testing.T) {
		m, root := newTestManager(t)
		require.NoError(t, os.Remove(filepath.Join(root, controllersFile)))
		assert.ErrorIs(t, m.CheckBackend(), ErrBackendUnavailable)
	})
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"restrict-42", true},
		{"batch/job-1", true},
		{"", false},
		{"/abs", false},
		{"a//b", false},
		{"a/./b", false},
		{"..", false},
		{"a/../../etc", false},
		{"trailing/", false},
		{"nul\x00", false},
	}
	for _, tt := range tests {
		err := ValidateID(tt.id)
		if tt.valid {
			assert.NoError(t, err, "id %q", tt.id)
		} else {
			assert.Error(t, err, "id %q", tt.id)
		}
	}
}

func TestCreateAndDestroy(t *testing.T) {
	m, root := newTestManager(t)

	s, err := m.Create("restrict-1")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.State())
	assert.Equal(t, filepath.Join(root, "restrict-1"), s.Path())
	assert.DirExists(t, s.Path())

	require.NoError(t, m.Destroy(s))
	assert.Equal(t, StateDestroyed, s.State())
	assert.NoDirExists(t, s.Path())

	err = m.Destroy(s)
	assert.ErrorIs(t, err, ErrScopeDestroyed)
}

func TestCreateInvalidID(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create("../escape")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrCreateFailed)
}

func TestCreateNestedRemovesOwnParents(t *testing.T) {
	m, root := newTestManager(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "shared"), 0o755))

	s, err := m.Create("shared/batch/job")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "shared", "batch", "job"))

	require.NoError(t, m.Destroy(s))
	assert.NoDirExists(t, filepath.Join(root, "shared", "batch"))
	// existed before the run
	assert.DirExists(t, filepath.Join(root, "shared"))
}

func TestCreateReusesExistingCgroup(t *testing.T) {
	m, root := newTestManager(t)
	dir := filepath.Join(root, "kept")
	require.NoError(t, os.Mkdir(dir, 0o755))
	populate(t, dir)

	s, err := m.Create("kept")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.State())
}

func TestCreateRejectsNonCgroupDirectory(t *testing.T) {
	m, root := newTestManager(t)
	dir := filepath.Join(root, "plain")
	require.NoError(t, os.Mkdir(dir, 0o755))

	s, err := m.Create("plain")
	assert.ErrorIs(t, err, ErrCreateFailed)
	require.NotNil(t, s)
	assert.Equal(t, StateUninitialized, s.State())

	// not ours: cleanup must leave it alone
	require.NoError(t, m.Destroy(s))
	assert.DirExists(t, dir)
}

func TestCreateRejectsFile(t *testing.T) {
	m, root := newTestManager(t)
	writeTestFile(t, filepath.Join(root, "file"), "x")

	s, err := m.Create("file")
	assert.ErrorIs(t, err, ErrCreateFailed)
	require.NotNil(t, s)
	require.NoError(t, m.Destroy(s))
	assert.FileExists(t, filepath.Join(root, "file"))
}

func TestAttach(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create("attach")
	require.NoError(t, err)
	populate(t, s.Path())

	// the child writes itself into cgroup.procs; the manager only records it
	require.NoError(t, JoinHook(s.Path(), 4242))
	require.NoError(t, m.Attach(s, 4242))
	assert.Equal(t, "4242", readTestFile(t, filepath.Join(s.Path(), procsFile)))
	assert.Equal(t, StatePopulated, s.State())
	assert.Equal(t, 4242, s.PID())

	// one member per scope
	assert.ErrorIs(t, m.Attach(s, 4243), ErrAttachFailed)
	assert.Equal(t, 4242, s.PID())
}

func TestAttachRejects(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create("attach")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Attach(s, 0), ErrAttachFailed)
	assert.Equal(t, StateCreated, s.State())

	require.NoError(t, m.Destroy(s))
	err = m.Attach(s, 4242)
	assert.ErrorIs(t, err, ErrAttachFailed)
	assert.ErrorIs(t, err, ErrScopeDestroyed)
}

func TestJoinHook(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, procsFile), "")

	require.NoError(t, JoinHook(dir, 99))
	assert.Equal(t, "99", readTestFile(t, filepath.Join(dir, procsFile)))

	err := JoinHook(filepath.Join(dir, "missing"), 99)
	assert.ErrorIs(t, err, ErrAttachFailed)

	var se *ScopeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "attach", se.Op)
}

func TestStats(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create("stats")
	require.NoError(t, err)

	writeTestFile(t, filepath.Join(s.Path(), "memory.peak"), "1048576\n")
	writeTestFile(t, filepath.Join(s.Path(), "memory.events"), "low 0\nhigh 0\nmax 3\noom 1\noom_kill 1\n")
	writeTestFile(t, filepath.Join(s.Path(), "cpu.stat"), "usage_usec 1500\nuser_usec 1000\nsystem_usec 500\n")

	st, err := m.Stats(s)
	require.NoError(t, err)
	assert.Equal(t, uint64(1048576), st.MemoryPeak)
	assert.Zero(t, st.MemoryCurrent)
	assert.Equal(t, uint64(1), st.OOMKills)
	assert.Equal(t, "1.5ms", st.CPUUsage.String())

	require.NoError(t, m.Destroy(s))
	_, err = m.Stats(s)
	assert.ErrorIs(t, err, ErrScopeDestroyed)
}

func TestStatsUnreadable(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create("stats")
	require.NoError(t, err)

	writeTestFile(t, filepath.Join(s.Path(), "memory.peak"), "2048\n")
	require.NoError(t, os.Mkdir(filepath.Join(s.Path(), "cpu.stat"), dirPerm))

	st, err := m.Stats(s)
	assert.ErrorIs(t, err, ErrStatsFailed)
	assert.NotErrorIs(t, err, ErrScopeDestroyed)
	var se *ScopeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrStatsFailed, se.Kind)
	assert.Equal(t, uint64(2048), st.MemoryPeak)
}
