package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// CompletionsTotal counts completion requests by envelope error name ("ok" on success).
	CompletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "completions_total",
		Help:      "Total number of question generation requests, labeled by result.",
	}, []string{"result"})

	// CompletionDurationSeconds is the time from opening the upstream stream to the parsed result.
	CompletionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Time spent generating a question set, labeled by result.",
		// Generations are long; keep buckets coarse.
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"result"})

	StreamsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "streams_in_flight",
		Help:      "Current number of open upstream completion streams.",
	})

	DeltasTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "stream_deltas_total",
		Help:      "Total number of text deltas extracted from upstream streams.",
	})

	MalformedLinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "stream_malformed_lines_total",
		Help:      "Total number of upstream data lines that were not valid JSON.",
	})

	RepairsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "json_repairs_total",
		Help:      "Total number of model outputs that needed extraction or repair to parse.",
	})

	OutputBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "output_bytes",
		Help:      "Size of the accumulated model output.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	})

	PublishErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ruangobat",
		Subsystem: "ai",
		Name:      "event_publish_error_total",
		Help:      "Total number of generation events that failed to publish.",
	})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			CompletionsTotal,
			CompletionDurationSeconds,
			StreamsInFlight,
			DeltasTotal,
			MalformedLinesTotal,
			RepairsTotal,
			OutputBytes,
			PublishErrorTotal,
		)
	})
}
