// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the arena's Prometheus collectors. All recording methods
// are safe to call on a nil *Metrics.
type Metrics struct {
	ConnectionsTotal  *prometheus.CounterVec
	IntentsTotal      *prometheus.CounterVec
	MatchesTotal      *prometheus.CounterVec
	MatchesActive     prometheus.Gauge
	QueueDepth        prometheus.Gauge
	RewardCredits     *prometheus.CounterVec
	OutboundDropped   *prometheus.CounterVec
	BroadcastDuration prometheus.Histogram
}

// NewMetrics creates the arena metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gachafight_connections_total",
			Help: "Connection attempts by handshake result",
		}, []string{"result"}),
		IntentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gachafight_intents_total",
			Help: "Client intents by kind and outcome (ok or rejection code)",
		}, []string{"intent", "status"}),
		MatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gachafight_matches_total",
			Help: "Matches by lifecycle outcome",
		}, []string{"outcome"}),
		MatchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gachafight_matches_active",
			Help: "Live match sessions",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gachafight_queue_depth",
			Help: "Connections waiting in the matchmaking queue",
		}),
		RewardCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gachafight_reward_credits_total",
			Help: "Kill and spin credits by outcome",
		}, []string{"status"}),
		OutboundDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gachafight_outbound_dropped_total",
			Help: "Server events dropped because a client outbox was full",
		}, []string{"event"}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gachafight_broadcast_duration_seconds",
			Help:    "Time to fan out one room-sync tick to every session",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	reg.MustRegister(
		m.ConnectionsTotal,
		m.IntentsTotal,
		m.MatchesTotal,
		m.MatchesActive,
		m.QueueDepth,
		m.RewardCredits,
		m.OutboundDropped,
		m.BroadcastDuration,
	)
	return m
}

// Connection records a handshake result.
func (m *Metrics) Connection(result string) {
	if m == nil {
		return
	}
	m.ConnectionsTotal.WithLabelValues(result).Inc()
}

// Intent records the outcome of a client intent.
func (m *Metrics) Intent(intent, status string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(intent, status).Inc()
}

// MatchStarted records a new session.
func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.MatchesTotal.WithLabelValues("started").Inc()
	m.MatchesActive.Inc()
}

// MatchEnded records a destroyed session.
func (m *Metrics) MatchEnded(outcome string) {
	if m == nil {
		return
	}
	m.MatchesTotal.WithLabelValues(outcome).Inc()
	m.MatchesActive.Dec()
}

// SetQueueDepth records the matchmaking queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// RewardCredit records a reward credit outcome.
func (m *Metrics) RewardCredit(status string) {
	if m == nil {
		return
	}
	m.RewardCredits.WithLabelValues(status).Inc()
}

// Dropped records an event dropped at a full outbox.
func (m *Metrics) Dropped(event string) {
	if m == nil {
		return
	}
	m.OutboundDropped.WithLabelValues(event).Inc()
}

// ObserveBroadcast records the duration of one broadcast tick.
func (m *Metrics) ObserveBroadcast(seconds float64) {
	if m == nil {
		return
	}
	m.BroadcastDuration.Observe(seconds)
}
