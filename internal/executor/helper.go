package executor

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// HelperName is argv[0] of the re-executed binary while it acts as the
// pre-exec helper.
const HelperName = "restrict-exec"

// HookFunc runs inside the child, with the child's own pid, before the shell
// is exec'd. arg is passed through from the Hook.
type HookFunc func(arg string, pid int) error

var (
	hooksMu sync.Mutex
	hooks   = make(map[string]HookFunc)
)

// Register makes fn available to the helper under name. Register panics when
// called twice with the same name.
func Register(name string, fn HookFunc) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if _, dup := hooks[name]; dup {
		panic(fmt.Sprintf("executor: hook %q registered twice", name))
	}
	hooks[name] = fn
}

func lookupHook(name string) (HookFunc, bool) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	fn, ok := hooks[name]
	return fn, ok
}

// Init must be called first in main, after registering hooks. When the process
// was started as the helper it runs the helper and never returns; otherwise it
// returns false.
//
//	func main() {
//		executor.Register(cgroups.HookName, cgroups.JoinHook)
//		if executor.Init() {
//			return
//		}
//		...
//	}
func Init() bool {
	if len(os.Args) == 0 || os.Args[0] != HelperName {
		return false
	}
	os.Exit(runHelper(os.Args[1:]))
	return true
}

// runHelper expects: hook name, hook arg, resolved shell path, shell argv.
// It only returns when the exec failed.
func runHelper(args []string) int {
	status := os.NewFile(statusFD, "status")
	// the shell must not inherit the pipe, or the parent never sees EOF
	unix.CloseOnExec(statusFD)

	if len(args) < 4 {
		writeStatus(status, statusExec, fmt.Errorf("helper: want at least 4 arguments, got %d", len(args)))
		return exitCannotExec
	}
	name, arg, path, argv := args[0], args[1], args[2], args[3:]

	if name != "" {
		fn, ok := lookupHook(name)
		var err error
		if !ok {
			err = fmt.Errorf("no hook registered as %q", name)
		} else {
			err = fn(arg, os.Getpid())
		}
		if err != nil {
			writeStatus(status, statusHook, err)
		}
	}

	err := unix.Exec(path, argv, os.Environ())
	writeStatus(status, statusExec, fmt.Errorf("exec %s: %w", path, err))
	return exitCannotExec
}
