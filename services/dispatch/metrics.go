package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muster_batches_total",
		Help: "Command batches by final outcome.",
	}, []string{"outcome"})

	metricTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muster_targets_total",
		Help: "Per-target terminal statuses across all batches.",
	}, []string{"status"})

	metricPollRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muster_poll_rounds_total",
		Help: "Convergence polling rounds executed.",
	})

	metricConvergence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "muster_convergence_seconds",
		Help:    "Wall time from dispatch to full convergence.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
