package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Plan is what a run is about to do, shown before the child starts.
type Plan struct {
	Shell     string
	Command   string
	ScopeID   string
	ScopePath string
	MemoryMax *uint64
	CPUWeight *uint64
	Host      *Host
}

var (
	bold       = color.New(color.Bold)
	restricted = color.New(color.FgGreen)
	open       = color.New(color.FgRed)
)

// WritePlan prints the command line and a table of the scope and its limits.
func WritePlan(w io.Writer, p Plan) {
	fmt.Fprintf(w, "%s %s -c %s\n", bold.Sprint("run command"), p.Shell, color.YellowString("'%s'", p.Command))

	table := tablewriter.NewWriter(w)
	table.Header("Resource", "Limit", "Host")

	hostMem, hostCPU := "-", "-"
	if p.Host != nil {
		hostMem = units.HumanSize(float64(p.Host.MemoryTotal))
		hostCPU = strconv.Itoa(p.Host.CPUs) + " cpus"
	}

	memLimit := open.Sprint("unrestricted")
	if p.MemoryMax != nil {
		memLimit = restricted.Sprint(units.HumanSize(float64(*p.MemoryMax)))
	}
	cpuLimit := open.Sprint("unrestricted")
	if p.CPUWeight != nil {
		cpuLimit = restricted.Sprintf("weight %d", *p.CPUWeight)
	}

	table.Append("scope", p.ScopeID, p.ScopePath)
	table.Append("memory", memLimit, hostMem)
	table.Append("cpu", cpuLimit, hostCPU)
	table.Render()
}

// WriteOutcome prints how the run ended and what the scope used.
func WriteOutcome(w io.Writer, r *Result) {
	switch {
	case !r.Ran:
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("command did not run:"), color.RedString("%s", r.Error))
		return
	case r.Signal != "":
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("command terminated by"), color.RedString("%s", r.Signal))
	case r.ExitCode == 0:
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("command exited with status"), color.GreenString("0"))
	default:
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("command exited with status"), color.RedString("%d", r.ExitCode))
	}

	if r.Usage != nil {
		fmt.Fprintf(w, "\tmemory peak %s, cpu time %s", units.HumanSize(float64(r.Usage.MemoryPeak)), r.Usage.CPUTime)
		if r.Usage.OOMKills > 0 {
			fmt.Fprintf(w, ", %s", color.RedString("%d oom kills", r.Usage.OOMKills))
		}
		fmt.Fprintln(w)
	}
	if r.AttachError != "" {
		fmt.Fprintf(w, "\t%s %s\n", color.YellowString("not contained:"), r.AttachError)
	}
	if r.CleanupError != "" {
		fmt.Fprintf(w, "\t%s %s\n", color.YellowString("scope left behind:"), r.CleanupError)
	}
}
