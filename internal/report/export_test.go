package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *Result {
	r := &Result{
		ScopeID:   "restrict-9",
		Shell:     "/bin/sh",
		Command:   "exit 7",
		Ran:       true,
		PID:       9,
		ExitCode:  7,
		MemoryMax: u64(1000),
	}
	r.ExitReason = "error"
	r.Seal(r.StartTime)
	return r
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleResult(), FormatJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "restrict-9", got["scope_id"])
	assert.Equal(t, 7.0, got["exit_code"])
	assert.Equal(t, 1000.0, got["memory_max_bytes"])
	assert.Equal(t, "contained", got["containment"])
	assert.NotContains(t, got, "cpu_weight")
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleResult(), FormatYAML))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "exit 7", got["command"])
	assert.Equal(t, 7, got["exit_code"])
}

func TestEncodeUnknownFormat(t *testing.T) {
	assert.Error(t, Encode(&bytes.Buffer{}, sampleResult(), "xml"))
	assert.False(t, ValidFormat("xml"))
	assert.True(t, ValidFormat(FormatYAML))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordResult(sampleResult())

	path := filepath.Join(t.TempDir(), "restrict.prom")
	require.NoError(t, WriteTextfile(path, m.Gatherer()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, "# TYPE restrict_runs_total counter")
	assert.Contains(t, text, `restrict_runs_total{containment="contained",exit_reason="error"} 1`)
	assert.Contains(t, text, "restrict_last_exit_code 7")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteTextfileBadDir(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), NewMetrics().Gatherer())
	assert.Error(t, err)
}

func TestWritePrometheusOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf, NewMetrics().Gatherer()))
	// gauges are always present, vectors only once used
	assert.True(t, strings.Contains(buf.String(), "restrict_cpu_weight 0"))
	assert.False(t, strings.Contains(buf.String(), "restrict_runs_total{"))
}
