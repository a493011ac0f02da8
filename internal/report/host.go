package report

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host is the capacity of the machine the run happens on.
type Host struct {
	MemoryTotal uint64
	CPUs        int
}

// ProbeHost reads host capacity. Either field may be zero if unknown.
func ProbeHost() (Host, error) {
	var h Host
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return h, err
	}
	h.MemoryTotal = vmem.Total

	n, err := cpu.Counts(true)
	if err != nil {
		return h, err
	}
	h.CPUs = n
	return h, nil
}

// ExceedsMemory reports whether a ceiling can never be reached on this host.
func (h Host) ExceedsMemory(ceiling uint64) bool {
	return h.MemoryTotal > 0 && ceiling > h.MemoryTotal
}
