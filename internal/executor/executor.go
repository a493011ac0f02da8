package executor

// The scope exists before the child runs.
// The scope is removed after the child exits, on every path.
// A limit that cannot be applied stops the run.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/psantana5/restrict/internal/observe"
)

var (
	// ErrSpawnFailed means the child never ran the shell.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrWaitFailed means the child ran but its termination could not be
	// observed.
	ErrWaitFailed = errors.New("wait failed")
	// ErrHookFailed wraps a hook error reported by the child.
	ErrHookFailed = errors.New("pre-exec hook failed")
)

// Hook names a registered HookFunc and its argument. The zero Hook runs nothing.
type Hook struct {
	Name string
	Arg  string
}

// Execution is a child that ran to completion.
type Execution struct {
	PID     int
	Outcome Outcome
	// AttachErr is set when the hook failed; the child then ran anyway.
	AttachErr error
	Timing    *observe.Timing
}

// Executor runs one shell command per Execute call.
type Executor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Self is the binary re-executed as the helper.
	Self string
	// RelaySignals forwards SIGTERM and SIGHUP to the child and ignores
	// SIGINT and SIGQUIT while it runs.
	RelaySignals bool

	logger *zap.Logger
}

// New returns an Executor wired to the process's own stdio.
func New(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Self:         "/proc/self/exe",
		RelaySignals: true,
		logger:       logger,
	}
}

// Execute runs `shell -c command` and waits for it. hook runs in the child
// between fork and exec. ctx is only checked before spawning; a started child
// is always waited for.
func (e *Executor) Execute(ctx context.Context, shell, command string, hook Hook) (*Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}
	path, err := exec.LookPath(shell)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: status pipe: %w", ErrSpawnFailed, err)
	}
	defer statusR.Close()

	cmd := &exec.Cmd{
		Path:       e.Self,
		Args:       []string{HelperName, hook.Name, hook.Arg, path, shell, "-c", command},
		Stdin:      e.Stdin,
		Stdout:     e.Stdout,
		Stderr:     e.Stderr,
		ExtraFiles: []*os.File{statusW},
	}

	// installed before Start so nothing slips through between spawn and wait
	var sigs chan os.Signal
	if e.RelaySignals {
		sigs = make(chan os.Signal, 8)
		signal.Notify(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT)
		defer signal.Stop(sigs)
	}

	timing := observe.NewTiming()
	if err := cmd.Start(); err != nil {
		statusW.Close()
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}
	statusW.Close()
	pid := cmd.Process.Pid

	if sigs != nil {
		done := make(chan struct{})
		defer close(done)
		go e.relay(cmd.Process, sigs, done)
	}

	st, err := readStatus(statusR)
	if err != nil {
		e.logger.Warn("reading helper status", zap.Int("pid", pid), zap.Error(err))
	}
	if st.execErr != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, st.execErr)
	}
	if st.hookErr != nil {
		e.logger.Warn("child runs outside its scope",
			zap.Int("pid", pid),
			zap.String("hook", hook.Name),
			zap.Error(st.hookErr))
	}
	e.logger.Debug("child started", zap.Int("pid", pid), zap.String("shell", path))

	waitErr := cmd.Wait()
	timing.Complete()

	outcome, err := outcomeOf(cmd.ProcessState, waitErr)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %w", ErrWaitFailed, pid, err)
	}
	e.logger.Debug("child finished",
		zap.Int("pid", pid),
		zap.Stringer("outcome", outcome),
		zap.Duration("duration", timing.Duration()))

	return &Execution{
		PID:       pid,
		Outcome:   outcome,
		AttachErr: st.hookErr,
		Timing:    timing,
	}, nil
}

func (e *Executor) relay(p *os.Process, sigs <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGTERM, syscall.SIGHUP:
				e.logger.Debug("relaying signal", zap.Int("pid", p.Pid), zap.Stringer("signal", sig))
				if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					e.logger.Warn("relaying signal failed", zap.Stringer("signal", sig), zap.Error(err))
				}
			default:
				// the terminal already sent it to the child's process group
				e.logger.Debug("ignoring signal", zap.Stringer("signal", sig))
			}
		}
	}
}
