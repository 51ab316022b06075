package idgen

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	ids               prometheus.Counter
	sequenceExhausted prometheus.Counter
	clockRewinds      prometheus.Counter
	clockRewindWaits  prometheus.Counter
}

func initMetrics(register bool) *metrics {
	m := &metrics{
		ids: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "idgen",
			Name:      "ids_total",
			Help:      "Total number of ids minted",
		}),
		sequenceExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "idgen",
			Name:      "sequence_exhausted_total",
			Help:      "Times the sequence wrapped within one millisecond and generation waited for the next one",
		}),
		clockRewinds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "idgen",
			Name:      "clock_rewinds_total",
			Help:      "Calls refused because the clock moved backwards",
		}),
		clockRewindWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowflake",
			Subsystem: "idgen",
			Name:      "clock_rewind_waits_total",
			Help:      "Calls that waited for a rewound clock to catch up",
		}),
	}

	if register {
		prometheus.MustRegister(
			m.ids,
			m.sequenceExhausted,
			m.clockRewinds,
			m.clockRewindWaits,
		)
	}
	return m
}
