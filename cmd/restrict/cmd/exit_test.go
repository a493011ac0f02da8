package cmd

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psantana5/restrict/internal/report"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		result *report.Result
		want   exitStatus
	}{
		{"no result", nil, exitStatus{code: exitFailure}},
		{"did not run", &report.Result{Error: "limit rejected"}, exitStatus{code: exitFailure}},
		{"success", &report.Result{Ran: true}, exitStatus{code: 0}},
		{"exit 7", &report.Result{Ran: true, ExitCode: 7}, exitStatus{code: 7}},
		{"exit 255", &report.Result{Ran: true, ExitCode: 255}, exitStatus{code: 255}},
		{"killed", &report.Result{Ran: true, Signal: "SIGKILL", SignalNum: int(syscall.SIGKILL)},
			exitStatus{code: 137, signal: syscall.SIGKILL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.result))
		})
	}
}

func TestSurfaceWithoutSignal(t *testing.T) {
	assert.Equal(t, 7, exitStatus{code: 7}.surface())
}

func TestRootFlags(t *testing.T) {
	flags := rootCmd.Flags()
	for _, name := range []string{"shell", "memory", "cpu", "group", "debug", "cgroup-root", "log-level", "log-format", "report", "metrics-file", "config"} {
		assert.NotNil(t, flags.Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "m", flags.Lookup("memory").Shorthand)
	assert.Equal(t, "c", flags.Lookup("cpu").Shorthand)
}

func TestSurfaceFallsBack(t *testing.T) {
	// not raised on ourselves: the runtime would dump goroutines instead
	s := exitStatus{code: 128 + int(syscall.SIGSEGV), signal: syscall.SIGSEGV}
	assert.Equal(t, 139, s.surface())
	assert.False(t, reraisable(syscall.SIGUSR1))
	assert.True(t, reraisable(syscall.SIGTERM))
}
