package cgroups

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Limits defines what can be written to a scope.
// Memory and CPU weight. Nothing else. nil means unrestricted.
type Limits struct {
	MemoryMax *uint64 // bytes
	CPUWeight *uint64 // kernel accepts 1-10000
}

const (
	controllerMemory = "memory"
	controllerCPU    = "cpu"

	memoryMaxFile  = "memory.max"
	memoryHighFile = "memory.high"
	memoryMinFile  = "memory.min"
	cpuWeightFile  = "cpu.weight"

	// throttling starts only at the hard ceiling
	memoryHighValue = "max"
	// smallest protection the kernel accepts; keeps the scope from being
	// reclaimed first under host pressure
	memoryMinValue = "1"
)

type knob struct {
	file  string
	value string
}

// ApplyMemoryLimit sets memory.max to ceiling bytes, memory.high to max and
// memory.min to 1.
func (m *Manager) ApplyMemoryLimit(s *Scope, ceiling uint64) error {
	if ceiling == 0 {
		return newError("memory", s.id, ErrLimitRejected, fmt.Errorf("memory ceiling must be positive"))
	}
	return m.apply(s, controllerMemory,
		knob{memoryMaxFile, strconv.FormatUint(ceiling, 10)},
		knob{memoryHighFile, memoryHighValue},
		knob{memoryMinFile, memoryMinValue},
	)
}

// ApplyCPUWeight writes weight to cpu.weight unchanged. Out of range values
// are left for the kernel to reject.
func (m *Manager) ApplyCPUWeight(s *Scope, weight uint64) error {
	return m.apply(s, controllerCPU, knob{cpuWeightFile, strconv.FormatUint(weight, 10)})
}

// ApplyLimits applies the memory limit, then the CPU weight, skipping unset
// ones. It stops at the first rejection.
func (m *Manager) ApplyLimits(s *Scope, l Limits) error {
	if l.MemoryMax != nil {
		if err := m.ApplyMemoryLimit(s, *l.MemoryMax); err != nil {
			return err
		}
	}
	if l.CPUWeight != nil {
		if err := m.ApplyCPUWeight(s, *l.CPUWeight); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) apply(s *Scope, controller string, knobs ...knob) error {
	if err := s.usable(); err != nil {
		return newError(controller, s.id, ErrLimitRejected, err)
	}
	if err := m.delegate(s, controller); err != nil {
		return newError(controller, s.id, ErrLimitRejected, err)
	}
	for _, k := range knobs {
		if err := writeFile(filepath.Join(s.path, k.file), k.value); err != nil {
			return newError(controller, s.id, ErrLimitRejected, fmt.Errorf("write %s=%s: %w", k.file, k.value, err))
		}
		m.logger.Debug("limit written",
			zap.String("scope", s.id),
			zap.String("file", k.file),
			zap.String("value", k.value))
	}
	s.addLimit(controller)
	return nil
}

// delegate enables controller in cgroup.subtree_control of every ancestor of
// the scope, starting at the root. Controllers already enabled are left alone.
func (m *Manager) delegate(s *Scope, controller string) error {
	rel, err := filepath.Rel(m.root, filepath.Dir(s.path))
	if err != nil {
		return err
	}
	dirs := []string{m.root}
	if rel != "." {
		dir := m.root
		for _, seg := range strings.Split(rel, string(filepath.Separator)) {
			dir = filepath.Join(dir, seg)
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		available, err := readControllers(filepath.Join(dir, controllersFile))
		if err != nil {
			return err
		}
		if !available[controller] {
			return fmt.Errorf("controller %s not available in %s", controller, dir)
		}
		enabled, err := readControllers(filepath.Join(dir, subtreeControlFile))
		if err != nil {
			return err
		}
		if enabled[controller] {
			continue
		}
		if err := writeFile(filepath.Join(dir, subtreeControlFile), "+"+controller); err != nil {
			return fmt.Errorf("enable %s in %s: %w", controller, dir, err)
		}
		m.logger.Debug("controller delegated", zap.String("controller", controller), zap.String("dir", dir))
	}
	return nil
}
