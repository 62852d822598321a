package dynamo

import "context"

// Target is the collaborator a config-generator daemon supplies to the
// engine. It owns the artifact location, the generation strategy, and the
// downstream reload mechanism; the engine owns everything else.
//
// ConfigData and ReloadServer failures are soft: the engine logs them,
// counts them, and keeps running. Filesystem failures around the artifact
// itself are not the Target's concern and are fatal to the engine.
type Target interface {
	// ConfigFile returns the absolute path of the live artifact. It must
	// be non-empty and stable for the lifetime of the engine.
	ConfigFile() string

	// ConfigData produces the desired artifact content for one cycle.
	ConfigData(ctx context.Context) ([]byte, error)

	// ReloadServer kicks the downstream consumer after a swap. The engine
	// applies no timeout; bounding the call is the implementation's job.
	ReloadServer(ctx context.Context) error
}

// HealthChecker is an optional Target capability. When implemented,
// ConfigOK is probed immediately before and after each reload to decide
// whether a rollback is warranted. Targets without it are assumed healthy.
type HealthChecker interface {
	ConfigOK() bool
}

// BeforeHook is an optional Target capability invoked at the start of every
// cycle with the live file's current hash and bytes. Purely observational;
// it cannot veto the cycle.
type BeforeHook interface {
	BeforeRegenerate(force bool, hash string, data []byte)
}

// AfterHook is an optional Target capability invoked at the end of every
// cycle, including aborted ones. different reports whether the candidate
// bytes differed from the live file, cycled whether a swap happened, and
// hash is the candidate's content hash (empty when generation failed).
type AfterHook interface {
	AfterRegenerate(force, different, cycled bool, hash string)
}
