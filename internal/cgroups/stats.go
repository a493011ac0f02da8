package cgroups

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

// Stats is what the kernel accounted to a scope. Fields stay zero when the
// kernel does not expose them (memory.peak needs Linux 5.19).
type Stats struct {
	MemoryPeak    uint64        `json:"memory_peak_bytes" yaml:"memory_peak_bytes"`
	MemoryCurrent uint64        `json:"memory_current_bytes" yaml:"memory_current_bytes"`
	OOMKills      uint64        `json:"oom_kills" yaml:"oom_kills"`
	CPUUsage      time.Duration `json:"cpu_usage" yaml:"cpu_usage"`
	UserCPU       time.Duration `json:"user_cpu" yaml:"user_cpu"`
	SystemCPU     time.Duration `json:"system_cpu" yaml:"system_cpu"`
}

// Stats reads usage counters from the scope. Read it before Destroy.
func (m *Manager) Stats(s *Scope) (Stats, error) {
	var st Stats
	if s.state == StateDestroyed {
		return st, newError("stats", s.id, ErrScopeDestroyed, nil)
	}

	var errs error
	keep := func(err error) {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}

	peak, err := readUint(filepath.Join(s.path, "memory.peak"))
	keep(err)
	st.MemoryPeak = peak

	current, err := readUint(filepath.Join(s.path, "memory.current"))
	keep(err)
	st.MemoryCurrent = current

	if events, err := readKeyValues(filepath.Join(s.path, "memory.events")); err == nil {
		st.OOMKills = events["oom_kill"]
	} else {
		keep(err)
	}

	if cpu, err := readKeyValues(filepath.Join(s.path, "cpu.stat")); err == nil {
		st.CPUUsage = usec(cpu["usage_usec"])
		st.UserCPU = usec(cpu["user_usec"])
		st.SystemCPU = usec(cpu["system_usec"])
	} else {
		keep(err)
	}

	if errs != nil {
		return st, newError("stats", s.id, ErrStatsFailed, errs)
	}
	return st, nil
}

func usec(v uint64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
