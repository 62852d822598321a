package dynamo

// Outcome classifies the result of one regeneration cycle.
type Outcome int32

const (
	// OutcomeUnchanged indicates the generated bytes matched the live file
	// and no reload was forced. Nothing was written.
	OutcomeUnchanged Outcome = iota

	// OutcomeSuccess indicates the new configuration was swapped in and the
	// downstream server reloaded it cleanly.
	OutcomeSuccess

	// OutcomeReloadFailure indicates the reload hook itself failed. If the
	// server was healthy before the cycle, the previous file was restored.
	OutcomeReloadFailure

	// OutcomeBadConfigRolledBack indicates the reload succeeded but the
	// server failed its health probe afterwards; the previous file was
	// restored and the server reloaded again.
	OutcomeBadConfigRolledBack

	// OutcomeEverythingIsAwful indicates the server was unhealthy both
	// before and after the cycle. The new configuration is kept — there is
	// no healthy state to regress from, and the fresh bytes aid debugging.
	OutcomeEverythingIsAwful
)

// String returns the string representation of the outcome. The values
// double as metric label values.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeSuccess:
		return "success"
	case OutcomeReloadFailure:
		return "failure"
	case OutcomeBadConfigRolledBack:
		return "bad-config"
	case OutcomeEverythingIsAwful:
		return "everything-is-awful"
	default:
		return "unknown"
	}
}

// State represents the lifecycle state of an Engine.
type State int32

const (
	// StateStarting indicates the engine has not yet completed its
	// bootstrap regeneration.
	StateStarting State = iota

	// StateRunning indicates the engine is in its wait loop.
	StateRunning

	// StateTerminated indicates the engine has exited, either through
	// Stop, context cancellation, or one-shot mode.
	StateTerminated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
