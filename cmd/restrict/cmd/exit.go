package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/psantana5/restrict/internal/report"
)

// exitFailure is returned when restrict itself failed, so it does not collide
// with the codes of common commands.
const exitFailure = 125

// exitStatus is how the child ended, to be passed on once cleanup is done.
type exitStatus struct {
	code   int
	signal syscall.Signal
}

func statusOf(r *report.Result) exitStatus {
	switch {
	case r == nil || !r.Ran:
		return exitStatus{code: exitFailure}
	case r.SignalNum != 0:
		return exitStatus{code: 128 + r.SignalNum, signal: syscall.Signal(r.SignalNum)}
	default:
		return exitStatus{code: r.ExitCode}
	}
}

// The Go runtime dies from these when they are not handled. Any other signal
// is either ignored by it or turned into a crash dump.
func reraisable(sig syscall.Signal) bool {
	switch sig {
	case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGKILL:
		return true
	}
	return false
}

// surface returns the exit code, after first trying to die from the child's
// signal so the parent shell sees the same termination.
func (s exitStatus) surface() int {
	if s.signal == 0 || !reraisable(s.signal) {
		return s.code
	}
	signal.Reset(s.signal)
	if err := unix.Kill(os.Getpid(), s.signal); err == nil {
		// delivery is asynchronous; give it a moment before falling back
		time.Sleep(100 * time.Millisecond)
	}
	return s.code
}
