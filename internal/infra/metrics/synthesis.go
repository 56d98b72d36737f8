package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(synthesisLatencyMs, synthesisInFlight) }

var (
	synthesisLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tryon_synthesis_latency_ms",
			Help:    "Synthesis gateway call latency distribution in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 80000, 120000},
		},
		[]string{"provider", "success"},
	)

	synthesisInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tryon_synthesis_in_flight",
			Help: "Synthesis calls currently holding a concurrency slot.",
		},
	)
)

func ObserveSynthesis(provider string, latencyMs int64, success bool) {
	synthesisLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func AddSynthesisInFlight(delta float64) {
	synthesisInFlight.Add(delta)
}
