// Package metrics collects task outcomes and durations for one invocation.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"klint/pkg/graph"
)

const namespace = "klint"

// Metrics holds the collectors of one invocation on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	TasksTotal      *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	ViolationsTotal *prometheus.CounterVec
	BuildDuration   prometheus.Gauge
}

// New creates the collectors and registers them
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "outcomes_total",
			Help:      "Finished tasks by task name and outcome",
		}, []string{"task", "outcome"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "duration_seconds",
			Help:      "Task duration in seconds by outcome",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		ViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "violations_total",
			Help:      "Reported violations by task name",
		}, []string{"task"}),
		BuildDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall clock duration of the last invocation",
		}),
	}
	reg.MustRegister(m.TasksTotal, m.TaskDuration, m.ViolationsTotal, m.BuildDuration)
	return m
}

// Observe records a finished task
func (m *Metrics) Observe(res graph.ExecutionResult) {
	outcome := res.Result.Outcome.String()
	m.TasksTotal.WithLabelValues(res.Task.ID(), outcome).Inc()
	m.TaskDuration.WithLabelValues(outcome).Observe(res.Duration.Seconds())
	if n := len(res.Result.Details); n > 0 {
		m.ViolationsTotal.WithLabelValues(res.Task.ID()).Add(float64(n))
	}
}

// Progress is a graph.ProgressCallback that observes finished tasks
func (m *Metrics) Progress(_ graph.Task, finished bool, res graph.ExecutionResult) {
	if finished {
		m.Observe(res)
	}
}

// Finish records the invocation duration
func (m *Metrics) Finish(elapsed time.Duration) {
	m.BuildDuration.Set(elapsed.Seconds())
}

// WriteTextfile writes all metrics in the text exposition format, for
// collection by a node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
