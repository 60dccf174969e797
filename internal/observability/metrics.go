package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	agentRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_agent_runs_total",
			Help: "Total number of agent runs by terminal outcome.",
		},
		[]string{"outcome"},
	)
	agentIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_agent_iterations",
			Help:    "Reasoning iterations consumed per agent run.",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10, 15, 20, 30},
		},
	)
	agentRunDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_agent_run_duration_ms",
			Help:    "Agent run latency in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2000, 5000, 10000, 20000, 40000, 80000},
		},
	)
	toolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_tool_invocations_total",
			Help: "Total number of tool invocations by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)
	refusedStatementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_refused_statements_total",
			Help: "Total number of data-modifying statements refused by execute-query.",
		},
	)
	exampleSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_example_saves_total",
			Help: "Total number of example store appends by result.",
		},
		[]string{"result"},
	)
	properNounIndexBuildMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_proper_noun_index_build_ms",
			Help:    "Proper-noun index build latency in milliseconds.",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 20000},
		},
	)
	properNounIndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlpilot_proper_noun_index_entries",
			Help: "Entries in the most recently built proper-noun index.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		agentRunsTotal,
		agentIterations,
		agentRunDurationMs,
		toolInvocationsTotal,
		refusedStatementsTotal,
		exampleSavesTotal,
		properNounIndexBuildMs,
		properNounIndexEntries,
	)
}

func ObserveAgentRun(outcome string, iterations int, elapsed time.Duration) {
	agentRunsTotal.WithLabelValues(outcome).Inc()
	agentIterations.Observe(float64(iterations))
	agentRunDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveToolInvocation(tool, outcome string) {
	toolInvocationsTotal.WithLabelValues(tool, outcome).Inc()
}

func IncrementRefusedStatements() {
	refusedStatementsTotal.Inc()
}

func ObserveExampleSave(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	exampleSavesTotal.WithLabelValues(result).Inc()
}

func ObserveProperNounIndexBuild(entries int, elapsed time.Duration) {
	properNounIndexBuildMs.Observe(float64(elapsed.Milliseconds()))
	properNounIndexEntries.Set(float64(entries))
}
