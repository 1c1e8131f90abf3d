package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klint/pkg/graph"
)

type stubTask string

func (t stubTask) ID() string                 { return string(t) }
func (t stubTask) Description() string        { return "" }
func (t stubTask) Visible() bool              { return true }
func (t stubTask) Dependencies() []graph.Task { return nil }
func (t stubTask) Execute(context.Context, []graph.ExecutionResult) graph.TaskResult {
	return graph.TaskResult{}
}

func TestObserve(t *testing.T) {
	m := New()

	m.Progress(stubTask("ktlintMainSourceSetCheck"), false, graph.ExecutionResult{})
	m.Progress(stubTask("ktlintMainSourceSetCheck"), true, graph.ExecutionResult{
		Task:     stubTask("ktlintMainSourceSetCheck"),
		Result:   graph.TaskResult{Outcome: graph.OutcomeFailed, Details: []string{"a", "b"}},
		Duration: 20 * time.Millisecond,
	})
	m.Observe(graph.ExecutionResult{
		Task:   stubTask("ktlintMainSourceSetCheck"),
		Result: graph.TaskResult{Outcome: graph.OutcomeUpToDate},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("ktlintMainSourceSetCheck", "FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("ktlintMainSourceSetCheck", "UP-TO-DATE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ViolationsTotal.WithLabelValues("ktlintMainSourceSetCheck")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.TaskDuration))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Observe(graph.ExecutionResult{
		Task:   stubTask("ktlintCheck"),
		Result: graph.TaskResult{Outcome: graph.OutcomeSuccess},
	})
	m.Finish(3 * time.Second)

	path := filepath.Join(t.TempDir(), "klint.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `klint_task_outcomes_total{outcome="SUCCESS",task="ktlintCheck"} 1`)
	assert.Contains(t, string(data), "klint_build_duration_seconds 3")
}
