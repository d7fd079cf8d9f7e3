package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	ResearchRunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepscout_research_runs_started_total",
			Help: "Total number of research pipeline runs started",
		},
	)

	ResearchRunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepscout_research_runs_completed_total",
			Help: "Total number of research pipeline runs completed",
		},
		[]string{"outcome"}, // report|clarification|failed
	)

	ClarificationRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepscout_clarification_rounds",
			Help:    "Clarification rounds consumed before progression",
			Buckets: []float64{0, 1, 2, 3},
		},
	)

	// Supervisor metrics
	TasksDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepscout_research_tasks_dispatched_total",
			Help: "Total number of research tasks dispatched to workers",
		},
	)

	SupervisorIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepscout_supervisor_iterations",
			Help:    "Dispatch-collect-assess rounds per supervisor run",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// Worker metrics
	WorkerSearchCalls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepscout_worker_search_calls",
			Help:    "Search-type tool calls consumed per worker execution",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepscout_tool_calls_total",
			Help: "Total tool invocations by kind and status",
		},
		[]string{"kind", "status"},
	)

	// Synthesis metrics
	SynthesisRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepscout_synthesis_retries_total",
			Help: "Synthesis attempts retried after a citation integrity violation",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepscout_retrieval_cache_hits_total",
			Help: "Retrieval cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepscout_retrieval_cache_misses_total",
			Help: "Retrieval cache misses",
		},
	)

	// Persistence metrics
	ReportsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepscout_reports_persisted_total",
			Help: "Final reports written to the store",
		},
		[]string{"status"},
	)
)
