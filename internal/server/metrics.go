package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhukov-alex/snowflake/internal/idgen"
)

// Metrics is shared by all transports and labelled by transport name.
type Metrics struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
	issued  *prometheus.CounterVec
}

func NewMetrics(register bool) *Metrics {
	m := &Metrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "snowflake",
			Subsystem: "server",
			Name:      "request_latency_seconds",
			Help:      "Time to serve an id request",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"transport"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "server",
			Name:      "errors_total",
			Help:      "Total number of failed id requests",
		}, []string{"transport", "reason"}),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "server",
			Name:      "ids_issued_total",
			Help:      "Total number of ids handed out",
		}, []string{"transport"}),
	}

	if register {
		prometheus.MustRegister(
			m.latency,
			m.errors,
			m.issued,
		)
	}
	return m
}

func (m *Metrics) incError(transport string, err error) {
	reason := "internal"
	switch {
	case idgen.IsClockRewind(err):
		reason = "clock_rewind"
	case errors.Is(err, ErrBadCount):
		reason = "bad_request"
	}
	m.errors.WithLabelValues(transport, reason).Inc()
}

func (m *Metrics) incTransportError(transport string) {
	m.errors.WithLabelValues(transport, "transport").Inc()
}
