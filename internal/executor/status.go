package executor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// The helper reports on fd 3, one "<kind>\t<message>" line per failure.
// EOF without an exec line means the shell was exec'd.
const (
	statusFD = 3

	statusHook = "hook"
	statusExec = "exec"

	// same code a shell uses for a command it cannot execute
	exitCannotExec = 127
)

type helperStatus struct {
	hookErr error
	execErr error
}

func writeStatus(w io.Writer, kind string, err error) {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	fmt.Fprintf(w, "%s\t%s\n", kind, msg)
}

func readStatus(r io.Reader) (helperStatus, error) {
	var st helperStatus
	s := bufio.NewScanner(r)
	for s.Scan() {
		kind, msg, ok := strings.Cut(s.Text(), "\t")
		if !ok {
			continue
		}
		switch kind {
		case statusHook:
			st.hookErr = fmt.Errorf("%w: %s", ErrHookFailed, msg)
		case statusExec:
			st.execErr = errors.New(msg)
		}
	}
	return st, s.Err()
}
