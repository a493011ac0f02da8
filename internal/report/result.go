package report

import (
	"time"

	"go.uber.org/zap"
)

// Containment says whether the run kept its promise to the child: the scope
// existed with its limits, the child joined it and the scope was removed.
// It is independent of the child's own exit status.
type Containment string

const (
	Contained          Containment = "contained"
	ContainmentNoScope Containment = "run_failed"     // the run stopped before the child ran
	ContainmentEscaped Containment = "attach_failed"  // the child ran outside its scope
	ContainmentLeaked  Containment = "cleanup_failed" // the scope outlived the run
)

// Result is the frozen record of one run. Set once by the runner, never
// changed. Every metric and report is projected from it.
type Result struct {
	// Identity
	ScopeID   string `json:"scope_id" yaml:"scope_id"`
	ScopePath string `json:"scope_path,omitempty" yaml:"scope_path,omitempty"`
	Shell     string `json:"shell" yaml:"shell"`
	Command   string `json:"command" yaml:"command"`
	PID       int    `json:"pid,omitempty" yaml:"pid,omitempty"`

	// Limits as requested; nil is unrestricted
	MemoryMax *uint64 `json:"memory_max_bytes,omitempty" yaml:"memory_max_bytes,omitempty"`
	CPUWeight *uint64 `json:"cpu_weight,omitempty" yaml:"cpu_weight,omitempty"`

	// Timing
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	// Outcome. Ran is false when the child never executed.
	Ran        bool   `json:"ran" yaml:"ran"`
	ExitReason string `json:"exit_reason,omitempty" yaml:"exit_reason,omitempty"`
	ExitCode   int    `json:"exit_code" yaml:"exit_code"`
	Signal     string `json:"signal,omitempty" yaml:"signal,omitempty"`
	SignalNum  int    `json:"signal_number,omitempty" yaml:"signal_number,omitempty"`

	// Usage read back from the scope before it was removed
	Usage *Usage `json:"usage,omitempty" yaml:"usage,omitempty"`

	// Failures. ErrorKind names the run step that stopped the run.
	ErrorKind    string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	AttachError  string `json:"attach_error,omitempty" yaml:"attach_error,omitempty"`
	CleanupError string `json:"cleanup_error,omitempty" yaml:"cleanup_error,omitempty"`

	Containment Containment `json:"containment" yaml:"containment"`
}

// Usage is the kernel's accounting for the scope.
type Usage struct {
	MemoryPeak uint64        `json:"memory_peak_bytes" yaml:"memory_peak_bytes"`
	OOMKills   uint64        `json:"oom_kills" yaml:"oom_kills"`
	CPUTime    time.Duration `json:"cpu_time" yaml:"cpu_time"`
}

// Containment is decided from the failures alone, so set those first.
func (r *Result) decideContainment() {
	switch {
	case r.Error != "":
		r.Containment = ContainmentNoScope
	case r.AttachError != "":
		r.Containment = ContainmentEscaped
	case r.CleanupError != "":
		r.Containment = ContainmentLeaked
	default:
		r.Containment = Contained
	}
}

// Seal fills in the derived fields. Call it ONCE, when the run is over.
func (r *Result) Seal(end time.Time) {
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime)
	r.decideContainment()
}

// LogSummary emits the one-line summary of the run.
func (r *Result) LogSummary(logger *zap.Logger) {
	fields := []zap.Field{
		zap.String("scope", r.ScopeID),
		zap.String("containment", string(r.Containment)),
		zap.Duration("runtime", r.Duration),
	}
	if r.Ran {
		fields = append(fields, zap.Int("pid", r.PID), zap.String("exit_reason", r.ExitReason))
		if r.Signal != "" {
			fields = append(fields, zap.String("signal", r.Signal))
		} else {
			fields = append(fields, zap.Int("exit", r.ExitCode))
		}
	}
	if r.Usage != nil {
		fields = append(fields,
			zap.Uint64("memory_peak", r.Usage.MemoryPeak),
			zap.Uint64("oom_kills", r.Usage.OOMKills),
			zap.Duration("cpu_time", r.Usage.CPUTime))
	}
	if r.Error != "" {
		fields = append(fields, zap.String("error_kind", r.ErrorKind), zap.String("error", r.Error))
	}
	logger.Info("run finished", fields...)
}
