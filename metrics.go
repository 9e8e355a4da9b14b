package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Server. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	inFlight      prometheus.Gauge
	responses     *prometheus.CounterVec
	bodyBytes     *prometheus.CounterVec
	streamErrors  prometheus.Counter
	requestErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "pair",
			Name:      "in_flight",
			Help:      "Number of request/response pairs not yet released",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "pair",
			Name:      "responses_total",
			Help:      "Total number of finalized responses by body framing",
		}, []string{"framing"}),
		bodyBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Total body bytes handed to the transport by framing",
		}, []string{"framing"}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Total number of bodies that ended with a source error",
		}),
		requestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "pair",
			Name:      "request_errors_total",
			Help:      "Total number of requests rejected before a handler ran",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.inFlight, m.responses, m.bodyBytes, m.streamErrors, m.requestErrors)
	}
	return m
}

func (m *Metrics) pairBound() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) pairReleased() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) responseFinalized(framing string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(framing).Inc()
}

func (m *Metrics) chunkSent(framing Framing, n int) {
	if m == nil {
		return
	}
	m.bodyBytes.WithLabelValues(framing.String()).Add(float64(n))
}

func (m *Metrics) streamFailed() {
	if m == nil {
		return
	}
	m.streamErrors.Inc()
}

func (m *Metrics) requestRejected() {
	if m == nil {
		return
	}
	m.requestErrors.Inc()
}
