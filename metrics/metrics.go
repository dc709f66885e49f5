// Package metrics exposes Prometheus collectors for move searches and games.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tttai"

// Metrics holds the collectors. A nil *Metrics discards all observations.
type Metrics struct {
	moves        *prometheus.CounterVec
	moveDuration *prometheus.HistogramVec
	games        *prometheus.CounterVec
	sessions     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		moves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Number of moves computed, by difficulty.",
		}, []string{"difficulty"}),
		moveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "move_duration_seconds",
			Help:      "Time spent computing a move, by difficulty.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"difficulty"}),
		games: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Number of finished games, by result.",
		}, []string{"result"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of running SMS game sessions.",
		}),
	}
}

// ObserveMove records one computed move.
func (m *Metrics) ObserveMove(difficulty string, took time.Duration) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(difficulty).Inc()
	m.moveDuration.WithLabelValues(difficulty).Observe(took.Seconds())
}

// GameFinished records the result of a finished game, such as "x-wins" or
// "draw".
func (m *Metrics) GameFinished(result string) {
	if m == nil {
		return
	}
	m.games.WithLabelValues(result).Inc()
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}
