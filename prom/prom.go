// Package prom implements dynamo.MetricsProvider on top of
// prometheus/client_golang. Metric names are parameterized by a service
// prefix so several engines can coexist in one registry.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zoobzio/dynamo"
)

// Provider records engine activity as Prometheus collectors.
type Provider struct {
	generationAttempts prometheus.Counter
	generationSuccess  prometheus.Gauge
	lastGeneration     prometheus.Gauge
	lastChange         prometheus.Gauge
	outcomes           *prometheus.CounterVec
	signals            *prometheus.CounterVec
	configHealth       prometheus.Gauge
}

// New creates a Provider whose collectors are named <prefix>_... and
// registered with reg. Pass prometheus.DefaultRegisterer for the usual
// global registry.
func New(prefix string, reg prometheus.Registerer) *Provider {
	factory := promauto.With(reg)

	return &Provider{
		generationAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_generation_attempts_total",
			Help: "Total number of config generation attempts.",
		}),
		generationSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_generation_success",
			Help: "Whether the most recent config generation succeeded (1) or failed (0).",
		}),
		lastGeneration: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_last_generation_timestamp_seconds",
			Help: "Unix time of the most recent generation attempt.",
		}),
		lastChange: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_last_change_timestamp_seconds",
			Help: "Modification time of the live config file after the most recent cycle.",
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_reload_outcomes_total",
			Help: "Cycle outcomes by classification.",
		}, []string{"outcome"}),
		signals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_signals_received_total",
			Help: "OS signals observed by the signal bridge.",
		}, []string{"signal"}),
		configHealth: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_config_health",
			Help: "Result of the most recent downstream health probe (1 healthy, 0 unhealthy).",
		}),
	}
}

// OnGenerationAttempt increments the attempt counter.
func (p *Provider) OnGenerationAttempt() {
	p.generationAttempts.Inc()
}

// OnGenerationResult records the generator's success or failure.
func (p *Provider) OnGenerationResult(ok bool) {
	p.generationSuccess.Set(boolToFloat(ok))
}

// OnOutcome counts the cycle's terminal classification. Unchanged cycles
// performed no reload and are not counted.
func (p *Provider) OnOutcome(o dynamo.Outcome) {
	if o == dynamo.OutcomeUnchanged {
		return
	}
	p.outcomes.WithLabelValues(o.String()).Inc()
}

// OnConfigHealth records the most recent health probe result.
func (p *Provider) OnConfigHealth(ok bool) {
	p.configHealth.Set(boolToFloat(ok))
}

// OnSignal counts an observed OS signal.
func (p *Provider) OnSignal(name string) {
	p.signals.WithLabelValues(name).Inc()
}

// OnLastGeneration records the time of the latest generation attempt.
func (p *Provider) OnLastGeneration(t time.Time) {
	p.lastGeneration.Set(float64(t.Unix()))
}

// OnLastChange records the live file's on-disk modification time.
func (p *Provider) OnLastChange(t time.Time) {
	p.lastChange.Set(float64(t.Unix()))
}

func boolToFloat(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
