package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Per-key outcome labels.
const (
	outcomeSuccess   = "success"
	outcomeNotFound  = "not_found"
	outcomeTransient = "transient"
	outcomeMalformed = "malformed"
	outcomeWrite     = "write_failed"
	outcomeCanceled  = "canceled"
)

var (
	keyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bfsp_key_outcomes_total",
		Help: "Coverage key processing outcomes by classification.",
	}, []string{"outcome"})

	keyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bfsp_key_duration_seconds",
		Help:    "Wall time to process one coverage key, retries included.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
