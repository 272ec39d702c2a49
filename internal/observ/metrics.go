package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collectors the server updates. Each instance registers
// on its own registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	MessageOps      *prometheus.CounterVec
	ChannelOps      *prometheus.CounterVec
	Denials         *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WSClients       prometheus.Gauge
	EventsPublished *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MessageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "message_operations_total",
			Help:      "Message mutations by operation (send, edit, delete, forward).",
		}, []string{"op"}),
		ChannelOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "channel_operations_total",
			Help:      "Channel mutations by operation (create, update, delete).",
		}, []string{"op"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "denied_operations_total",
			Help:      "Rejected mutations by operation and error kind.",
		}, []string{"op", "kind"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "huddle",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "events_published_total",
			Help:      "Realtime events published by type.",
		}, []string{"type"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.MessageOps,
		m.ChannelOps,
		m.Denials,
		m.RequestDuration,
		m.WSClients,
		m.EventsPublished,
	)
	return m
}
