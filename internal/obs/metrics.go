package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecrementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockreserve",
		Name:      "decrements_total",
		Help:      "Stock decrement attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	OptimisticRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stockreserve",
		Name:      "optimistic_retries_total",
		Help:      "Version conflicts that triggered a re-read and retry.",
	})

	SequencerBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockreserve",
		Name:      "sequencer_backlog",
		Help:      "Messages enqueued but not yet acknowledged by the in-process sequencer.",
	})
)
