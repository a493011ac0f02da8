package restrict

// The scope exists before the child runs.
// The scope is removed after the child exits, on every path.
// A limit that cannot be applied stops the run.

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/psantana5/restrict/internal/cgroups"
	"github.com/psantana5/restrict/internal/executor"
	"github.com/psantana5/restrict/internal/report"
)

// ScopeManager is the part of *cgroups.Manager a run uses.
type ScopeManager interface {
	CheckBackend() error
	Create(id string) (*cgroups.Scope, error)
	ApplyLimits(s *cgroups.Scope, l cgroups.Limits) error
	Attach(s *cgroups.Scope, pid int) error
	Stats(s *cgroups.Scope) (cgroups.Stats, error)
	Destroy(s *cgroups.Scope) error
}

// Executor runs the child. *executor.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, shell, command string, hook executor.Hook) (*executor.Execution, error)
}

// Runner sequences one restricted run.
type Runner struct {
	scopes  ScopeManager
	exec    Executor
	metrics *report.Metrics
	logger  *zap.Logger

	summary io.Writer
	host    *report.Host
	now     func() time.Time

	holdSignals bool
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records every Result into m.
func WithMetrics(m *report.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSummary prints the plan and the outcome of debug requests to w.
// host, if known, is shown next to the limits.
func WithSummary(w io.Writer, host *report.Host) Option {
	return func(r *Runner) {
		r.summary = w
		r.host = host
	}
}

// WithSignalHold keeps SIGINT, SIGTERM, SIGHUP and SIGQUIT from killing the
// process while a scope exists. A signal that arrives before the child starts
// stops the run; the scope is removed either way.
func WithSignalHold() Option {
	return func(r *Runner) { r.holdSignals = true }
}

func NewRunner(scopes ScopeManager, exec Executor, opts ...Option) *Runner {
	r := &Runner{
		scopes: scopes,
		exec:   exec,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req in a fresh scope and always removes the scope afterward.
// The Result is nil only for an invalid request. It is returned alongside a
// *RunError when the run failed, so failed runs can be reported too.
func (r *Runner) Run(ctx context.Context, req Request) (*report.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, &RunError{Kind: KindRequest, Err: err}
	}

	res := &report.Result{
		ScopeID:   req.ScopeID,
		Shell:     req.Shell,
		Command:   req.Command,
		MemoryMax: req.Limits.MemoryMax,
		CPUWeight: req.Limits.CPUWeight,
		StartTime: r.now(),
	}

	var err error
	if berr := r.scopes.CheckBackend(); berr != nil {
		err = &RunError{Kind: KindPrecondition, Err: berr}
	} else {
		err = r.runScoped(ctx, req, res)
	}

	var runErr *RunError
	if errors.As(err, &runErr) {
		res.ErrorKind = string(runErr.Kind)
		res.Error = runErr.Err.Error()
	}
	res.Seal(r.now())

	if req.Debug && r.summary != nil {
		report.WriteOutcome(r.summary, res)
	}
	res.LogSummary(r.logger)
	r.metrics.RecordResult(res)
	return res, err
}

// runScoped covers everything from scope creation to scope removal.
func (r *Runner) runScoped(ctx context.Context, req Request, res *report.Result) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.holdSignals {
		// registered first so it is released after the scope is gone
		defer r.hold(cancel)()
	}

	scope, err := r.scopes.Create(req.ScopeID)
	if scope != nil {
		res.ScopePath = scope.Path()
		defer r.destroy(scope, res)
	}
	if err != nil {
		return &RunError{Kind: KindCreate, Err: err}
	}

	if err := r.scopes.ApplyLimits(scope, req.Limits); err != nil {
		return &RunError{Kind: KindConfiguration, Err: err}
	}

	if req.Debug && r.summary != nil {
		report.WritePlan(r.summary, report.Plan{
			Shell:     req.Shell,
			Command:   req.Command,
			ScopeID:   scope.ID(),
			ScopePath: scope.Path(),
			MemoryMax: req.Limits.MemoryMax,
			CPUWeight: req.Limits.CPUWeight,
			Host:      r.host,
		})
	}

	exe, err := r.exec.Execute(ctx, req.Shell, req.Command, executor.Hook{Name: cgroups.HookName, Arg: scope.Path()})
	if err != nil {
		kind := KindSpawn
		if errors.Is(err, executor.ErrWaitFailed) {
			kind = KindWait
		}
		return &RunError{Kind: kind, Err: err}
	}

	res.Ran = true
	res.PID = exe.PID
	res.ExitReason = string(exe.Outcome.Reason())
	if exe.Outcome.Signaled() {
		res.Signal = executor.SignalName(exe.Outcome.Signal())
		res.SignalNum = int(exe.Outcome.Signal())
	} else {
		res.ExitCode = exe.Outcome.Code()
	}

	if exe.AttachErr != nil {
		res.AttachError = exe.AttachErr.Error()
		r.logger.Warn("child ran outside its scope",
			zap.String("scope", scope.ID()),
			zap.Int("pid", exe.PID),
			zap.Error(exe.AttachErr))
	} else if err := r.scopes.Attach(scope, exe.PID); err != nil {
		r.logger.Debug("recording scope member", zap.String("scope", scope.ID()), zap.Error(err))
	}

	stats, err := r.scopes.Stats(scope)
	if err != nil {
		r.logger.Debug("reading scope usage", zap.String("scope", scope.ID()), zap.Error(err))
	} else {
		res.Usage = &report.Usage{
			MemoryPeak: stats.MemoryPeak,
			OOMKills:   stats.OOMKills,
			CPUTime:    stats.CPUUsage,
		}
		if stats.OOMKills > 0 && exe.Outcome.Signaled() {
			res.ExitReason = string(executor.ExitReasonOOM)
		}
	}
	return nil
}

func (r *Runner) destroy(scope *cgroups.Scope, res *report.Result) {
	if err := r.scopes.Destroy(scope); err != nil {
		res.CleanupError = err.Error()
		r.logger.Error("scope cleanup failed",
			zap.String("scope", scope.ID()),
			zap.String("path", scope.Path()),
			zap.Error(err))
	}
}

// hold catches termination signals until the returned func is called. Each
// one cancels ctx, which only matters before the child is spawned; once it
// runs, the executor relays them.
func (r *Runner) hold(cancel context.CancelFunc) func() {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				r.logger.Debug("signal held until the scope is removed", zap.Stringer("signal", sig))
				cancel()
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
