package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(chatRequestsTotal, chatLatencyMs, chatPromptTokens) }

var chatRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_requests_total",
		Help: "Chat requests by outcome.",
	},
	[]string{"outcome"}, // 'answered', 'fallback', 'error'
)

var chatLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chat_latency_ms",
		Help:    "End-to-end chat latency distribution in milliseconds.",
		Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	},
	[]string{"outcome"},
)

var chatPromptTokens = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "chat_prompt_tokens",
		Help:    "Prompt token count after history trimming.",
		Buckets: []float64{128, 256, 512, 1024, 2048, 4096, 8192},
	},
)

func ObserveChat(outcome string, d time.Duration) {
	chatRequestsTotal.WithLabelValues(norm(outcome)).Inc()
	chatLatencyMs.WithLabelValues(norm(outcome)).Observe(float64(d.Milliseconds()))
}

func ObservePromptTokens(n int) {
	chatPromptTokens.Observe(float64(n))
}
