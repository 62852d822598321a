package dynamo

import "github.com/zoobzio/capitan"

// Field keys for engine events.
var (
	// KeyPath is the live artifact path.
	KeyPath = capitan.NewStringKey("path")

	// KeyOutcome is the cycle's terminal classification.
	KeyOutcome = capitan.NewStringKey("outcome")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyForced reports whether the cycle was forced ("true"/"false").
	KeyForced = capitan.NewStringKey("forced")

	// KeyHash is the candidate artifact's content hash.
	KeyHash = capitan.NewStringKey("hash")

	// KeyOldHash is the live artifact's content hash before the cycle.
	KeyOldHash = capitan.NewStringKey("old_hash")

	// KeyReason is the wake reason that started a cycle.
	KeyReason = capitan.NewStringKey("reason")

	// KeySignal is the OS signal name observed by the signal bridge.
	KeySignal = capitan.NewStringKey("signal")

	// KeySleep is the configured poll interval.
	KeySleep = capitan.NewDurationKey("sleep")

	// KeyCooldown is the configured debounce window.
	KeyCooldown = capitan.NewDurationKey("cooldown")

	// KeyState is the engine state at emission time.
	KeyState = capitan.NewStringKey("state")
)
