// Package metrics exposes the Prometheus collectors recorded by the planner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CostCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cost_calculations_total",
			Help: "Total number of cost calculations by host jurisdiction",
		},
		[]string{"host"},
	)

	CostCalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_cost_calculation_duration_seconds",
			Help:    "Duration of cost calculations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	OptimizationRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_optimization_runs_total",
			Help: "Total number of staffing optimization runs",
		},
	)

	CandidatesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_candidates_scored_total",
			Help: "Total number of candidates scored",
		},
	)

	VisaLookupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_visa_lookup_failures_total",
			Help: "Visa lookups that failed or timed out and fell back to the default rule",
		},
		[]string{"reason"},
	)

	RateLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_rate_lookups_total",
			Help: "Exchange rate lookups by the source that served them",
		},
		[]string{"source"},
	)

	TeamMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_team_mutations_total",
			Help: "Team selector operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	SettingsStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_settings_store_errors_total",
			Help: "Social security settings store failures by operation",
		},
		[]string{"operation"},
	)
)
