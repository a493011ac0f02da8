package report

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func u64(v uint64) *uint64 { return &v }

func TestRecordResult(t *testing.T) {
	m := NewMetrics()

	ok := &Result{Ran: true, ExitReason: "success", MemoryMax: u64(100_000_000),
		Usage: &Usage{MemoryPeak: 4096, OOMKills: 1}}
	ok.Seal(ok.StartTime.Add(time.Second))
	m.RecordResult(ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("contained", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastExitCode))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.memoryPeak))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.oomKills))
	assert.Equal(t, 1e8, testutil.ToFloat64(m.memoryCeiling))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cpuWeight))

	failed := &Result{ErrorKind: "configuration", Error: "limit rejected", CleanupError: "busy"}
	failed.Seal(failed.StartTime)
	m.RecordResult(failed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("run_failed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scopeFailures.WithLabelValues("limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scopeFailures.WithLabelValues("destroy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.memoryCeiling))

	exited := &Result{Ran: true, ExitReason: "error", ExitCode: 7, AttachError: "denied", CPUWeight: u64(50)}
	exited.Seal(exited.StartTime)
	m.RecordResult(exited)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.lastExitCode))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scopeFailures.WithLabelValues("attach")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.cpuWeight))
	assert.Equal(t, 3, testutil.CollectAndCount(m.runs))
}

func TestRecordResultNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordResult(&Result{}) })
	assert.NotPanics(t, func() { NewMetrics().RecordResult(nil) })
}
