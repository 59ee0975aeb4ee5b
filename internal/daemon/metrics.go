package daemon

import "github.com/prometheus/client_golang/prometheus"

var (
	probeAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Subsystem: "daemon",
			Name:      "probe_attempts_total",
			Help:      "Connectivity probe attempts by result",
		},
		[]string{"result"},
	)

	verifyAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Subsystem: "daemon",
			Name:      "verify_attempts_total",
			Help:      "Model verification attempts by method and result",
		},
		[]string{"method", "result"},
	)

	catalogLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Subsystem: "daemon",
			Name:      "catalog_lookups_total",
			Help:      "Model catalog lookups by channel and result",
		},
		[]string{"channel", "result"},
	)

	streamFragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Subsystem: "daemon",
			Name:      "stream_fragments_total",
			Help:      "Text fragments yielded from streamed chat replies",
		},
	)

	streamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Subsystem: "daemon",
			Name:      "stream_errors_total",
			Help:      "Streamed exchanges terminated by a transport or daemon error",
		},
	)
)

func init() {
	prometheus.MustRegister(probeAttemptsTotal, verifyAttemptsTotal, catalogLookupsTotal, streamFragmentsTotal, streamErrorsTotal)
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
