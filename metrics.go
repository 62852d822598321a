package dynamo

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus,
// StatsD, etc. Implement this interface to receive callbacks on key engine
// events. The prom subpackage provides a ready-made Prometheus implementation.
type MetricsProvider interface {
	// OnGenerationAttempt is called at the start of every cycle, before
	// the generator runs.
	OnGenerationAttempt()

	// OnGenerationResult is called with the result of the generator call.
	OnGenerationResult(ok bool)

	// OnOutcome is called with the cycle's terminal classification.
	OnOutcome(o Outcome)

	// OnConfigHealth is called with each health probe result.
	OnConfigHealth(ok bool)

	// OnSignal is called when the signal bridge observes an OS signal.
	OnSignal(name string)

	// OnLastGeneration is called at the end of every cycle with the time
	// the generation was attempted.
	OnLastGeneration(t time.Time)

	// OnLastChange is called at the end of every cycle with the live
	// file's on-disk modification time.
	OnLastChange(t time.Time)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnGenerationAttempt()         {}
func (NoOpMetricsProvider) OnGenerationResult(_ bool)    {}
func (NoOpMetricsProvider) OnOutcome(_ Outcome)          {}
func (NoOpMetricsProvider) OnConfigHealth(_ bool)        {}
func (NoOpMetricsProvider) OnSignal(_ string)            {}
func (NoOpMetricsProvider) OnLastGeneration(_ time.Time) {}
func (NoOpMetricsProvider) OnLastChange(_ time.Time)     {}
