package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portfoliohub"

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "submissions_total",
			Help:      "Portfolio submissions by mode and result.",
		},
		[]string{"mode", "result"},
	)

	probeResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "probe_results_total",
			Help:      "Resolved existence checks by state.",
		},
		[]string{"state", "failed"},
	)

	attachmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachment",
			Name:      "intake_total",
			Help:      "PDF uploads by intake result.",
		},
		[]string{"result"},
	)

	contactTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "messages_total",
			Help:      "Contact form messages by result.",
		},
		[]string{"result"},
	)
)

// ObserveSubmission counts one submission outcome.
func ObserveSubmission(mode string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	submissionsTotal.WithLabelValues(mode, result).Inc()
}

// ObserveProbe counts one resolved existence check.
func ObserveProbe(state string, failed bool) {
	f := "false"
	if failed {
		f = "true"
	}
	probeResultsTotal.WithLabelValues(state, f).Inc()
}

// ObserveAttachment counts one PDF upload; result is "staged" or a rejection reason.
func ObserveAttachment(result string) {
	attachmentsTotal.WithLabelValues(result).Inc()
}

// ObserveSweep counts staged attachments removed by the periodic sweep.
func ObserveSweep(removed int) {
	attachmentsTotal.WithLabelValues("swept").Add(float64(removed))
}

// ObserveContact counts one contact message by stage, e.g. "queued", "limited", "relayed", "rejected" or "dropped".
func ObserveContact(result string) {
	contactTotal.WithLabelValues(result).Inc()
}

var upstreamLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Portfolio service calls by endpoint and status; status is \"error\" when no response arrived.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "endpoint", "status"},
)

// ObserveUpstream records one portfolio service call. status 0 means the
// call failed before a response arrived.
func ObserveUpstream(method, endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamLatency.WithLabelValues(method, endpoint, label).Observe(elapsed.Seconds())
}
