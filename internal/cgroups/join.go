package cgroups

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// HookName is the name JoinHook is registered under with the executor.
const HookName = "cgroup-join"

// JoinHook moves pid into the cgroup directory dir. It runs inside the child,
// after fork and before exec, so it must not touch any Manager state.
func JoinHook(dir string, pid int) error {
	if dir == "" {
		return newError("attach", dir, ErrAttachFailed, fmt.Errorf("no scope directory"))
	}
	if err := joinProcs(dir, pid); err != nil {
		return newError("attach", filepath.Base(dir), ErrAttachFailed, err)
	}
	return nil
}

func joinProcs(dir string, pid int) error {
	return writeFile(filepath.Join(dir, procsFile), strconv.Itoa(pid))
}
