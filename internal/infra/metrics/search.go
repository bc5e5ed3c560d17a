package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(vectorSearchLatencyMs, vectorSearchHits) }

var vectorSearchLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "vector_search_latency_ms",
		Help:    "Vector backend search latency in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	},
	[]string{"backend", "success"},
)

var vectorSearchHits = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "vector_search_hits",
		Help:    "Number of hits returned at or above the score threshold.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	},
	[]string{"backend"},
)

func ObserveSearch(backend string, d time.Duration, hits int, success bool) {
	vectorSearchLatencyMs.WithLabelValues(norm(backend), boolLabel(success)).Observe(float64(d.Milliseconds()))
	if success {
		vectorSearchHits.WithLabelValues(norm(backend)).Observe(float64(hits))
	}
}
