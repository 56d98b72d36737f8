package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsSubmittedTotal,
		jobsRejectedTotal,
		jobsFinishedTotal,
		jobDurationMs,
		jobsReapedTotal,
		workerQueueRejectionsTotal,
	)
}

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_jobs_submitted_total",
			Help: "Total number of accepted try-on jobs, labeled by style.",
		},
		[]string{"style"},
	)

	jobsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_jobs_rejected_total",
			Help: "Submissions refused at admission, labeled by reason.",
		},
		[]string{"reason"}, // 'credits', 'input', 'style', 'reference', 'rate_limit'
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_jobs_finished_total",
			Help: "Total number of try-on jobs reaching a terminal state.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	jobDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tryon_job_duration_ms",
			Help:    "Time spent in processing per job, in milliseconds.",
			Buckets: []float64{500, 1000, 2500, 5000, 10000, 20000, 40000, 60000, 120000},
		},
	)

	jobsReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tryon_jobs_reaped_total",
			Help: "Processing jobs failed by the reaper after losing their executor.",
		},
	)

	workerQueueRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tryon_worker_queue_rejections_total",
			Help: "Hand-offs refused because the worker queue was full.",
		},
	)
)

func IncJobSubmitted(style string) {
	jobsSubmittedTotal.WithLabelValues(norm(style)).Inc()
}

func IncJobRejected(reason string) {
	jobsRejectedTotal.WithLabelValues(norm(reason)).Inc()
}

func ObserveJobFinished(status string, durationMs int64) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
	jobDurationMs.Observe(float64(durationMs))
}

func IncJobsReaped(n int) {
	jobsReapedTotal.Add(float64(n))
}

func IncQueueRejection() {
	workerQueueRejectionsTotal.Inc()
}
