// Package metrics exposes engine events as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haricheung/hadron/internal/types"
)

const namespace = "hsh"

// Metrics owns a private registry so several engines (or tests) never collide
// on the default one.
type Metrics struct {
	reg *prometheus.Registry

	// collapses counts measurement cycles.
	// Labels: outcome (success, failure)
	collapses *prometheus.CounterVec

	// inversionError tracks the distribution of per-cycle inversion error.
	inversionError prometheus.Histogram

	// hadronEvents counts population changes.
	// Labels: event (created, refused, reinforced), origin (token, explicit, inversion)
	hadronEvents *prometheus.CounterVec

	// refusals counts refused hadrons.
	// Labels: reason (unstable, population_cap)
	refusals *prometheus.CounterVec

	blackHoles prometheus.Gauge
	tokens     prometheus.Counter
	cycle      prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		collapses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "collapses_total",
			Help:      "Measurement cycles by outcome",
		}, []string{"outcome"}),
		inversionError: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "inversion_error",
			Help:      "Distribution of per-cycle inversion error",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1.0},
		}),
		hadronEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hadron",
			Name:      "events_total",
			Help:      "Hadron population events",
		}, []string{"event", "origin"}),
		refusals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hadron",
			Name:      "refusals_total",
			Help:      "Hadrons refused by reason",
		}, []string{"reason"}),
		blackHoles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "black_holes",
			Help:      "Black-hole regions found at the last recomputation",
		}),
		tokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tokens_total",
			Help:      "Tokens ingested",
		}),
		cycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle",
			Help:      "Latest cycle number",
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Run observes messages until ctx is cancelled or in is closed.
func (m *Metrics) Run(ctx context.Context, in <-chan types.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			m.Observe(msg)
		}
	}
}

// Observe updates collectors from one message. Payloads that are not the
// expected type are ignored.
func (m *Metrics) Observe(msg types.Message) {
	switch p := msg.Payload.(type) {
	case types.CollapseResult:
		outcome := "failure"
		if p.Success {
			outcome = "success"
		}
		m.collapses.WithLabelValues(outcome).Inc()
		m.inversionError.Observe(p.InversionError)
		m.cycle.Set(float64(p.Cycle))
	case types.HadronEvent:
		switch msg.Type {
		case types.MsgHadronCreated:
			m.hadronEvents.WithLabelValues("created", p.Origin).Inc()
		case types.MsgReinforced:
			m.hadronEvents.WithLabelValues("reinforced", p.Origin).Inc()
		case types.MsgHadronRefused:
			m.hadronEvents.WithLabelValues("refused", p.Origin).Inc()
			m.refusals.WithLabelValues(p.Reason).Inc()
		}
	case types.BlackHoleEvent:
		m.blackHoles.Set(float64(len(p.Regions)))
	case types.InputEvent:
		m.tokens.Add(float64(p.Tokens))
	}
}
