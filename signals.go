package dynamo

import "github.com/zoobzio/capitan"

// Engine lifecycle signals.
var (
	// EngineStarted is emitted when an Engine begins its bootstrap pass.
	EngineStarted = capitan.NewSignal(
		"dynamo.engine.started",
		"Engine started",
	)

	// EngineStopped is emitted when an Engine's loop exits.
	EngineStopped = capitan.NewSignal(
		"dynamo.engine.stopped",
		"Engine loop exited",
	)

	// TriggerReceived is emitted when the loop wakes on a manual trigger.
	TriggerReceived = capitan.NewSignal(
		"dynamo.trigger.received",
		"Manual regeneration trigger received",
	)

	// WatchFired is emitted when the loop wakes on a filesystem event.
	WatchFired = capitan.NewSignal(
		"dynamo.watch.fired",
		"Filesystem watch event received",
	)

	// SignalReceived is emitted when the signal bridge observes an OS signal.
	SignalReceived = capitan.NewSignal(
		"dynamo.signal.received",
		"OS signal received",
	)
)

// Cycle signals.
var (
	// CycleStarted is emitted at the start of each regeneration cycle.
	CycleStarted = capitan.NewSignal(
		"dynamo.cycle.started",
		"Regeneration cycle started",
	)

	// CycleCompleted is emitted with the cycle's terminal outcome.
	CycleCompleted = capitan.NewSignal(
		"dynamo.cycle.completed",
		"Regeneration cycle completed",
	)

	// GenerationFailed is emitted when the Target's generator fails.
	GenerationFailed = capitan.NewSignal(
		"dynamo.generation.failed",
		"Config generation failed",
	)

	// ConfigCycled is emitted when a new artifact is renamed into place.
	ConfigCycled = capitan.NewSignal(
		"dynamo.config.cycled",
		"New config swapped into place",
	)

	// ReloadFailed is emitted when the Target's reload hook fails.
	ReloadFailed = capitan.NewSignal(
		"dynamo.reload.failed",
		"Server reload failed",
	)

	// ConfigRolledBack is emitted when the previous artifact is restored.
	ConfigRolledBack = capitan.NewSignal(
		"dynamo.config.rolledback",
		"Previous config restored",
	)
)
