package cgroups

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// Standard path where cgroupfs is expected to be mounted.
	DefaultRoot = "/sys/fs/cgroup"

	procsFile          = "cgroup.procs"
	controllersFile    = "cgroup.controllers"
	subtreeControlFile = "cgroup.subtree_control"

	dirPerm = 0o755
)

// cgroupfs is a slow device: reads and writes may be interrupted.

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	for err != nil && errors.Is(err, unix.EINTR) {
		data, err = os.ReadFile(p)
	}
	return data, err
}

// writeFile never creates p. A missing interface file means the kernel does not
// offer the knob for this cgroup.
func writeFile(p, value string) error {
	err := writeOnce(p, value)
	for err != nil && errors.Is(err, unix.EINTR) {
		err = writeOnce(p, value)
	}
	return err
}

func writeOnce(p, value string) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func removeDir(p string) error {
	err := os.Remove(p)
	for err != nil && errors.Is(err, unix.EINTR) {
		err = os.Remove(p)
	}
	return err
}

// readUint reads a file expected to contain a single uint64.
func readUint(p string) (uint64, error) {
	b, err := readFile(p)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
}

// readKeyValues parses files made of "key <uint64>" lines, such as cpu.stat
// and memory.events. Malformed lines are skipped.
func readKeyValues(p string) (map[string]uint64, error) {
	b, err := readFile(p)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64)
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[fields[0]] = v
	}
	return out, s.Err()
}

// readControllers returns the controller names listed in cgroup.controllers or
// cgroup.subtree_control.
func readControllers(p string) (map[string]bool, error) {
	b, err := readFile(p)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, f := range strings.Fields(string(b)) {
		out[strings.TrimLeft(f, "+-")] = true
	}
	return out, nil
}
