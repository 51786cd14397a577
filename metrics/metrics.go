// Package metrics exposes prometheus collectors for sessions and the bridge.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livetranslate"

type Metrics struct {
	registry *prometheus.Registry

	FramesSent       *prometheus.CounterVec
	FramesReceived   *prometheus.CounterVec
	AudioDropped     *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	WireLogDropped   prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the translation service.",
		}, []string{"kind"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Decoded inbound frames by kind.",
		}, []string{"kind"}),
		AudioDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_dropped_total",
			Help:      "Captured audio chunks that were not sent.",
		}, []string{"reason"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"to"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Errors surfaced to session consumers by kind.",
		}, []string{"kind"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_sessions_active",
			Help:      "Bridge clients currently attached.",
		}),
		WireLogDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wirelog_entries_dropped_total",
			Help:      "Wire log entries dropped because the sink was saturated.",
		}),
	}
	m.registry.MustRegister(
		m.FramesSent,
		m.FramesReceived,
		m.AudioDropped,
		m.StateTransitions,
		m.Errors,
		m.ActiveSessions,
		m.WireLogDropped,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) AudioDrop(reason string) {
	if m == nil {
		return
	}
	m.AudioDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) Error(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) WireLogDrop() {
	if m == nil {
		return
	}
	m.WireLogDropped.Inc()
}
