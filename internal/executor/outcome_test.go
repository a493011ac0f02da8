package executor

import (
	"bytes"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		outcome Outcome
		reason  ExitReason
		str     string
	}{
		{Exited(0), ExitReasonSuccess, "exited with status 0"},
		{Exited(7), ExitReasonError, "exited with status 7"},
		{Signaled(syscall.SIGKILL), ExitReasonSignal, "terminated by SIGKILL"},
		{Signaled(syscall.SIGSEGV), ExitReasonSignal, "terminated by SIGSEGV"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.reason, tt.outcome.Reason())
		assert.Equal(t, tt.str, tt.outcome.String())
	}

	// a signal never doubles as an exit code
	assert.Zero(t, Signaled(syscall.SIGTERM).Code())
	assert.False(t, Signaled(syscall.SIGTERM).Success())
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGTERM", SignalName(syscall.SIGTERM))
	assert.Equal(t, "SIG200", SignalName(syscall.Signal(200)))
}

func TestStatusRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writeStatus(&buf, statusHook, assert.AnError)
	writeStatus(&buf, statusExec, errRefused)
	buf.WriteString("garbage\n")

	st, err := readStatus(&buf)
	require.NoError(t, err)
	assert.ErrorIs(t, st.hookErr, ErrHookFailed)
	require.Error(t, st.execErr)
	assert.Equal(t, "refused", st.execErr.Error())

	st, err = readStatus(&bytes.Buffer{})
	require.NoError(t, err)
	assert.NoError(t, st.hookErr)
	assert.NoError(t, st.execErr)
}
