package audit

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	dropped      prometheus.Counter
	sendErrors   prometheus.Counter
	batchLatency prometheus.Histogram
}

func initMetrics(register bool) *metrics {
	m := &metrics{
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Issued ids not audited because the buffer was full",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "audit",
			Name:      "send_errors_total",
			Help:      "Failed attempts to ship an audit batch",
		}),
		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "snowflake",
			Subsystem: "audit",
			Name:      "batch_latency_seconds",
			Help:      "Latency of shipping an entire audit batch",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}),
	}

	if register {
		prometheus.MustRegister(
			m.dropped,
			m.sendErrors,
			m.batchLatency,
		)
	}
	return m
}

func (m *metrics) batchTimer() (stop func()) {
	timer := prometheus.NewTimer(m.batchLatency)
	stop = func() {
		timer.ObserveDuration()
	}
	return
}
