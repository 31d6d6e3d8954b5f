package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the SMS webhook flow.
type WebhookMetrics struct {
	inboundTotal   *prometheus.CounterVec
	repliesTotal   *prometheus.CounterVec
	bookingActions *prometheus.CounterVec
	llmLatency     prometheus.Histogram
	webhookLatency prometheus.Histogram
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookline",
			Subsystem: "sms",
			Name:      "inbound_total",
			Help:      "Total inbound SMS webhooks",
		}, []string{"status"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookline",
			Subsystem: "sms",
			Name:      "replies_total",
			Help:      "Total assistant replies returned to customers",
		}, []string{"status"}),
		bookingActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookline",
			Subsystem: "booking",
			Name:      "actions_total",
			Help:      "Total booking actions taken by the assistant",
		}, []string{"action"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookline",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of intent extraction calls",
			Buckets:   prometheus.DefBuckets,
		}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookline",
			Subsystem: "sms",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.repliesTotal, m.bookingActions, m.llmLatency, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *WebhookMetrics) ObserveReply(status string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(status).Inc()
}

func (m *WebhookMetrics) ObserveBookingAction(action string) {
	if m == nil {
		return
	}
	m.bookingActions.WithLabelValues(action).Inc()
}

func (m *WebhookMetrics) ObserveLLMLatency(seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(seconds)
}

func (m *WebhookMetrics) ObserveWebhookLatency(seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.Observe(seconds)
}
