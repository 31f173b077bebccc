package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for a router.
type Metrics struct {
	messagesTotal   *prometheus.CounterVec
	duplicatesTotal prometheus.Counter
	throttledTotal  prometheus.Counter
	errorsTotal     *prometheus.CounterVec
	inboxDepth      *prometheus.GaugeVec
}

// NewMetrics creates the router metrics and registers them with reg. A
// nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "frost",
				Subsystem: "router",
				Name:      "messages_total",
				Help:      "Total number of envelopes routed.",
			},
			[]string{"type", "direction"},
		),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frost",
			Subsystem: "router",
			Name:      "duplicates_total",
			Help:      "Envelopes dropped because the inbox already held the same digest.",
		}),
		throttledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frost",
			Subsystem: "router",
			Name:      "throttled_total",
			Help:      "Sends delayed by the per-sender rate limit.",
		}),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "frost",
				Subsystem: "router",
				Name:      "errors_total",
				Help:      "Routing errors by reason.",
			},
			[]string{"reason"},
		),
		inboxDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "frost",
				Subsystem: "router",
				Name:      "inbox_depth",
				Help:      "Envelopes waiting in each inbox.",
			},
			[]string{"participant"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.messagesTotal, m.duplicatesTotal, m.throttledTotal, m.errorsTotal, m.inboxDepth)
	}
	return m
}

// RecordMessage counts an envelope in the given direction ("sent" or
// "delivered").
func (m *Metrics) RecordMessage(msgType MessageType, direction string) {
	m.messagesTotal.WithLabelValues(msgType.String(), direction).Inc()
}

// RecordDuplicate counts a suppressed duplicate
func (m *Metrics) RecordDuplicate() {
	m.duplicatesTotal.Inc()
}

// RecordThrottled counts a rate-limited send
func (m *Metrics) RecordThrottled() {
	m.throttledTotal.Inc()
}

// RecordError counts a routing error
func (m *Metrics) RecordError(reason string) {
	m.errorsTotal.WithLabelValues(reason).Inc()
}

// SetInboxDepth reports the queue length of one inbox
func (m *Metrics) SetInboxDepth(participant string, depth int) {
	m.inboxDepth.WithLabelValues(participant).Set(float64(depth))
}

// Collectors exposes the underlying collectors for tests and custom
// registries.
func (m *Metrics) Collectors() (messages *prometheus.CounterVec, duplicates, throttled prometheus.Counter) {
	return m.messagesTotal, m.duplicatesTotal, m.throttledTotal
}
