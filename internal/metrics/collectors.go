// Package metrics implements remote.Metrics with Prometheus
// collectors, built with the teacher's promauto idiom (prometheus.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cwsl/suscan-remoteclient/internal/remote"
)

// Collectors implements remote.Metrics. A nil *Collectors is not
// valid — use New to construct one, or leave a Session's Metrics field
// nil entirely to opt out of instrumentation.
type Collectors struct {
	connState        prometheus.Gauge
	pduSentTotal     prometheus.Counter
	pduReceivedTotal prometheus.Counter
	queueDepth       prometheus.Gauge
	slowPathLatency  prometheus.Histogram
}

// New registers and returns the collector set. Call it once per
// process; promauto panics on duplicate registration against the
// default registry.
func New() *Collectors {
	return &Collectors{
		connState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "suscan_remote_connection_state",
			Help: "Connection state of the remote analyzer session (0=idle, 1=connecting, 2=authenticating, 3=connected)",
		}),
		pduSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suscan_remote_pdu_sent_total",
			Help: "Total PDUs written to the control connection",
		}),
		pduReceivedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suscan_remote_pdu_received_total",
			Help: "Total PDUs read from the control connection",
		}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "suscan_remote_outbound_queue_depth",
			Help: "Current depth of the outbound PDU queue",
		}),
		slowPathLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "suscan_remote_slowpath_job_latency_seconds",
			Help:    "Latency of slow-path dispatcher jobs from enqueue to applied callback",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// SetConnState implements remote.Metrics.
func (c *Collectors) SetConnState(state remote.ConnState) {
	c.connState.Set(float64(state))
}

// AddPDUSent implements remote.Metrics.
func (c *Collectors) AddPDUSent() {
	c.pduSentTotal.Inc()
}

// AddPDUReceived implements remote.Metrics.
func (c *Collectors) AddPDUReceived() {
	c.pduReceivedTotal.Inc()
}

// SetQueueDepth implements remote.Metrics.
func (c *Collectors) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// ObserveSlowPathLatencySeconds implements remote.Metrics.
func (c *Collectors) ObserveSlowPathLatencySeconds(seconds float64) {
	c.slowPathLatency.Observe(seconds)
}
