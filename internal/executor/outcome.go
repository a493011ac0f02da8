package executor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExitReason describes why the child terminated
type ExitReason string

const (
	ExitReasonSuccess ExitReason = "success" // Exit code 0
	ExitReasonError   ExitReason = "error"   // Exit code != 0
	ExitReasonSignal  ExitReason = "signal"  // Killed by signal
	ExitReasonOOM     ExitReason = "oom"     // Killed by the memory ceiling
)

// Outcome is how the child terminated: an exit code or a signal, never both.
type Outcome struct {
	signaled bool
	code     int
	signal   syscall.Signal
}

func Exited(code int) Outcome { return Outcome{code: code} }

func Signaled(sig syscall.Signal) Outcome { return Outcome{signaled: true, signal: sig} }

func (o Outcome) Signaled() bool { return o.signaled }

// Code is the exit code. Meaningless when Signaled.
func (o Outcome) Code() int { return o.code }

// Signal is the terminating signal, zero unless Signaled.
func (o Outcome) Signal() syscall.Signal { return o.signal }

func (o Outcome) Success() bool { return !o.signaled && o.code == 0 }

func (o Outcome) Reason() ExitReason {
	switch {
	case o.signaled:
		return ExitReasonSignal
	case o.Success():
		return ExitReasonSuccess
	default:
		return ExitReasonError
	}
}

func (o Outcome) String() string {
	if o.signaled {
		return "terminated by " + SignalName(o.signal)
	}
	return fmt.Sprintf("exited with status %d", o.code)
}

// SignalName returns the signal name for a signal number
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("SIG%d", int(sig))
}

// outcomeOf classifies a finished wait. A non-zero exit is an outcome, any
// other wait error is not.
func outcomeOf(state *os.ProcessState, waitErr error) (Outcome, error) {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Outcome{}, waitErr
		}
		state = exitErr.ProcessState
	}
	if state == nil {
		return Outcome{}, errors.New("no process state")
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return Exited(state.ExitCode()), nil
	}
	switch {
	case ws.Exited():
		return Exited(ws.ExitStatus()), nil
	case ws.Signaled():
		return Signaled(ws.Signal()), nil
	default:
		return Outcome{}, fmt.Errorf("unexpected wait status %#x", uint32(ws))
	}
}
