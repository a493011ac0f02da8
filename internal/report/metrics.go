package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are boring projections of Results. Every sample must be
// explainable by looking at a single run record.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	scopeFailures *prometheus.CounterVec
	duration      prometheus.Histogram
	lastExitCode  prometheus.Gauge
	memoryPeak    prometheus.Gauge
	oomKills      prometheus.Counter
	memoryCeiling prometheus.Gauge
	cpuWeight     prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restrict_runs_total",
				Help: "Runs by containment result",
			},
			[]string{"containment", "exit_reason"},
		),
		scopeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restrict_scope_failures_total",
				Help: "Scope operations that failed, by operation",
			},
			[]string{"op"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "restrict_run_duration_seconds",
			Help:    "Wall time of a run, scope creation to removal",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		lastExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restrict_last_exit_code",
			Help: "Exit code of the last child that exited normally",
		}),
		memoryPeak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restrict_memory_peak_bytes",
			Help: "Peak memory of the last scope",
		}),
		oomKills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restrict_oom_kills_total",
			Help: "Processes killed by the memory ceiling",
		}),
		memoryCeiling: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restrict_memory_max_bytes",
			Help: "Memory ceiling of the last scope, 0 when unrestricted",
		}),
		cpuWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restrict_cpu_weight",
			Help: "CPU weight of the last scope, 0 when unrestricted",
		}),
	}
	m.registry.MustRegister(
		m.runs,
		m.scopeFailures,
		m.duration,
		m.lastExitCode,
		m.memoryPeak,
		m.oomKills,
		m.memoryCeiling,
		m.cpuWeight,
	)
	return m
}

// Gatherer exposes the registry for export.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordResult updates all collectors from a single sealed Result.
// This is the ONLY way to update metrics. A nil Metrics records nothing.
func (m *Metrics) RecordResult(r *Result) {
	if m == nil || r == nil {
		return
	}

	m.runs.WithLabelValues(string(r.Containment), r.ExitReason).Inc()
	m.duration.Observe(r.Duration.Seconds())

	switch r.ErrorKind {
	case "create":
		m.scopeFailures.WithLabelValues("create").Inc()
	case "configuration":
		m.scopeFailures.WithLabelValues("limit").Inc()
	}
	if r.AttachError != "" {
		m.scopeFailures.WithLabelValues("attach").Inc()
	}
	if r.CleanupError != "" {
		m.scopeFailures.WithLabelValues("destroy").Inc()
	}

	if r.Ran && r.Signal == "" {
		m.lastExitCode.Set(float64(r.ExitCode))
	}
	if r.Usage != nil {
		m.memoryPeak.Set(float64(r.Usage.MemoryPeak))
		m.oomKills.Add(float64(r.Usage.OOMKills))
	}
	m.memoryCeiling.Set(0)
	if r.MemoryMax != nil {
		m.memoryCeiling.Set(float64(*r.MemoryMax))
	}
	m.cpuWeight.Set(0)
	if r.CPUWeight != nil {
		m.cpuWeight.Set(float64(*r.CPUWeight))
	}
}
