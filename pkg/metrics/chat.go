package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics tracks message throughput and live feed connections.
type ChatMetrics struct {
	sent        *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	connections prometheus.Gauge
}

// NewChatMetrics registers the chat metrics on the provided registerer.
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	if reg == nil {
		return &ChatMetrics{}
	}
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted by the send pipeline.",
	}, []string{"context"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_delivered_total",
		Help: "Realtime events pushed to connected feeds.",
	}, []string{"result"})
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_feed_connections",
		Help: "Currently connected live feed clients.",
	})
	reg.MustRegister(sent, delivered, connections)
	return &ChatMetrics{
		sent:        sent,
		delivered:   delivered,
		connections: connections,
	}
}

// IncSent increments the sent counter for the conversation context.
func (c *ChatMetrics) IncSent(context string) {
	if c == nil || c.sent == nil {
		return
	}
	c.sent.WithLabelValues(normalizeLabel(context)).Inc()
}

// IncDelivered increments the delivered counter with the given result label.
func (c *ChatMetrics) IncDelivered(result string) {
	if c == nil || c.delivered == nil {
		return
	}
	c.delivered.WithLabelValues(normalizeLabel(result)).Inc()
}

// ConnOpened records a new live feed connection.
func (c *ChatMetrics) ConnOpened() {
	if c == nil || c.connections == nil {
		return
	}
	c.connections.Inc()
}

// ConnClosed records a dropped live feed connection.
func (c *ChatMetrics) ConnClosed() {
	if c == nil || c.connections == nil {
		return
	}
	c.connections.Dec()
}

// FanoutMetrics counts per-recipient notification writes.
type FanoutMetrics struct {
	created *prometheus.CounterVec
}

// NewFanoutMetrics registers the notification fan-out metrics.
func NewFanoutMetrics(reg prometheus.Registerer) *FanoutMetrics {
	if reg == nil {
		return &FanoutMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_fanout_total",
		Help: "Per-recipient notification rows written during fan-out.",
	}, []string{"result"})
	reg.MustRegister(created)
	return &FanoutMetrics{created: created}
}

// IncResult increments the fan-out counter for the given result label.
func (f *FanoutMetrics) IncResult(result string) {
	if f == nil || f.created == nil {
		return
	}
	f.created.WithLabelValues(normalizeLabel(result)).Inc()
}
