// Package metrics exposes prometheus counters for debate activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DebatesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debated_debates_started_total",
		Help: "Number of debates started.",
	})

	DebatesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debated_debates_completed_total",
		Help: "Number of debates that reached a final verdict.",
	})

	DebatesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debated_debates_failed_total",
		Help: "Number of debates that failed before completion.",
	})

	RoundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debated_rounds_completed_total",
		Help: "Number of debate rounds completed.",
	})

	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debated_provider_failures_total",
		Help: "Reasoning provider call failures by operation.",
	}, []string{"op"})

	ScoreFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debated_score_fallbacks_total",
		Help: "Judge outputs that fell back to the neutral score.",
	})
)
