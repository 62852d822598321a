package dynamo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// ErrAlreadyStarted is returned by registration calls made after Run.
var ErrAlreadyStarted = errors.New("dynamo: engine already started")

// wakeReason is why the event loop woke up. Consumed within one iteration.
type wakeReason int

const (
	wakeTimeout wakeReason = iota
	wakeTrigger
	wakeWatch
	wakeTerminate
)

// String returns the string representation of the wake reason.
func (r wakeReason) String() string {
	switch r {
	case wakeTimeout:
		return "timeout"
	case wakeTrigger:
		return "trigger"
	case wakeWatch:
		return "watch"
	case wakeTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Engine is the regeneration loop for one config artifact. It waits on its
// watch source, manual triggers, and a poll timeout, and runs at most one
// regeneration cycle per wake. All decision logic is single-threaded; only
// the watch source's notification plumbing runs concurrently.
type Engine struct {
	target  Target
	watcher Watcher
	metrics MetricsProvider
	logger  *slog.Logger
	clock   clockz.Clock

	sleep    time.Duration
	cooldown time.Duration
	oneShot  bool

	// Optional Target capabilities, resolved once at construction.
	health func() bool
	before func(force bool, hash string, data []byte)
	after  func(force, different, cycled bool, hash string)

	state       atomic.Int32
	lastOutcome atomic.Int32
	lastError   atomic.Pointer[error]

	kick chan struct{}
	quit chan struct{}

	stopOnce sync.Once

	mu      sync.Mutex
	started bool
}

// New creates an Engine for the given target. It fails fast on a nil
// target, an empty artifact path, or invalid durations; nothing about the
// configuration is re-validated later.
func New(target Target, opts ...Option) (*Engine, error) {
	if target == nil {
		return nil, errors.New("dynamo: nil target")
	}
	if target.ConfigFile() == "" {
		return nil, errors.New("dynamo: target returned an empty config file path")
	}

	cfg := &config{
		sleep:    DefaultSleep,
		cooldown: DefaultCooldown,
		clock:    clockz.RealClock,
		watcher:  NewFileWatcher(),
		metrics:  NoOpMetricsProvider{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sleep < 0 {
		return nil, fmt.Errorf("dynamo: sleep duration %v is negative", cfg.sleep)
	}
	if cfg.cooldown < 0 {
		return nil, fmt.Errorf("dynamo: cooldown duration %v is negative", cfg.cooldown)
	}
	if cfg.cooldown > cfg.sleep {
		return nil, fmt.Errorf("dynamo: cooldown %v exceeds sleep %v", cfg.cooldown, cfg.sleep)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	e := &Engine{
		target:   target,
		watcher:  cfg.watcher,
		metrics:  cfg.metrics,
		logger:   cfg.logger,
		clock:    cfg.clock,
		sleep:    cfg.sleep,
		cooldown: cfg.cooldown,
		oneShot:  cfg.oneShot,
		kick:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}

	e.health = func() bool { return true }
	if hc, ok := target.(HealthChecker); ok {
		e.health = hc.ConfigOK
	}
	e.before = func(bool, string, []byte) {}
	if bh, ok := target.(BeforeHook); ok {
		e.before = bh.BeforeRegenerate
	}
	e.after = func(bool, bool, bool, string) {}
	if ah, ok := target.(AfterHook); ok {
		e.after = ah.AfterRegenerate
	}

	e.state.Store(int32(StateStarting))

	return e, nil
}

// State returns the current lifecycle state of the engine.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// LastOutcome returns the classification of the most recent cycle.
func (e *Engine) LastOutcome() Outcome {
	return Outcome(e.lastOutcome.Load())
}

// LastError returns the last soft failure encountered, or nil.
func (e *Engine) LastError() error {
	ptr := e.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Watch registers a path with the engine's watch source. It must be called
// before Run.
func (e *Engine) Watch(path string, kind WatchKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	return e.watcher.Register(path, kind)
}

// Kick requests a forced regeneration. Safe to call from any goroutine or
// signal handler; any number of calls before the loop wakes collapse into
// one regeneration.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Stop requests cooperative shutdown. Idempotent and safe to call from any
// goroutine. The loop exits at its next checkpoint; a cycle already in
// flight runs to completion first.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.quit)
	})
}

// Run performs the bootstrap regeneration and then blocks in the wait loop
// until Stop is called or ctx is canceled. In one-shot mode it returns
// right after the bootstrap pass.
//
// Run returns an error only for construction-grade faults and filesystem
// failures around the artifact; generation and reload failures are soft and
// keep the loop alive.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	capitan.Emit(ctx, EngineStarted,
		KeyPath.Field(e.target.ConfigFile()),
		KeySleep.Field(e.sleep),
		KeyCooldown.Field(e.cooldown),
	)
	defer func() {
		e.state.Store(int32(StateTerminated))
		capitan.Emit(ctx, EngineStopped,
			KeyState.Field(e.State().String()),
		)
	}()

	if err := e.bootstrap(ctx); err != nil {
		return err
	}
	if e.oneShot {
		return nil
	}

	events, err := e.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("dynamo: failed to start watcher: %w", err)
	}

	e.state.Store(int32(StateRunning))
	return e.loop(ctx, events)
}

// bootstrap performs the unconditional startup regeneration: write the
// artifact if it is absent, otherwise run one forced cycle.
func (e *Engine) bootstrap(ctx context.Context) error {
	path := e.target.ConfigFile()
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return e.writeInitial(ctx)
	case err != nil:
		return fmt.Errorf("dynamo: failed to stat live config: %w", err)
	default:
		_, err := e.runCycle(ctx, true)
		return err
	}
}

// writeInitial creates the artifact with the first generated content. No
// reload happens; the downstream server has nothing loaded yet.
func (e *Engine) writeInitial(ctx context.Context) error {
	path := e.target.ConfigFile()
	e.before(true, "", nil)
	e.metrics.OnGenerationAttempt()

	data, err := e.generate(ctx)
	if err != nil {
		// Soft failure: the artifact stays absent until the next wake.
		e.after(true, false, false, "")
		e.metrics.OnLastGeneration(e.clock.Now())
		return nil
	}

	hash := contentHash(data)
	if werr := writeFileAtomic(path, data, 0o644); werr != nil {
		return fmt.Errorf("dynamo: failed to write initial config: %w", werr)
	}

	capitan.Emit(ctx, ConfigCycled,
		KeyPath.Field(path),
		KeyHash.Field(hash),
	)
	e.logger.Info("wrote initial config", "path", path, "hash", hash)

	e.after(true, true, false, hash)
	e.metrics.OnLastGeneration(e.clock.Now())
	if info, serr := os.Stat(path); serr == nil {
		e.metrics.OnLastChange(info.ModTime())
	}
	return nil
}

// generate calls the target's generator with failure instrumentation.
func (e *Engine) generate(ctx context.Context) ([]byte, error) {
	data, err := e.target.ConfigData(ctx)
	if err != nil {
		e.metrics.OnGenerationResult(false)
		e.setError(err)
		capitan.Emit(ctx, GenerationFailed,
			KeyError.Field(err.Error()),
		)
		e.logger.Error("config generation failed", "error", err)
		return nil, err
	}
	e.metrics.OnGenerationResult(true)
	return data, nil
}

// loop is the Running state: one iteration is one wait plus one reaction.
// Termination is sampled only here, never inside a cycle.
func (e *Engine) loop(ctx context.Context, events <-chan Event) error {
	for {
		if e.terminated(ctx) {
			return nil
		}

		// Cooldown: wait only on termination. Watch and trigger activity
		// stays queued in its channels and collapses into one wake below.
		if e.cooldown > 0 {
			cool := e.clock.NewTimer(e.cooldown)
			select {
			case <-ctx.Done():
				cool.Stop()
				return nil
			case <-e.quit:
				cool.Stop()
				return nil
			case <-cool.C():
			}
		}

		timer := e.clock.NewTimer(e.sleep - e.cooldown)

		var reason wakeReason
		closed := false
		select {
		case <-ctx.Done():
			reason = wakeTerminate
		case <-e.quit:
			reason = wakeTerminate
		case _, ok := <-events:
			if !ok {
				closed = true
			}
			reason = wakeWatch
		case <-e.kick:
			reason = wakeTrigger
		case <-timer.C():
			reason = wakeTimeout
		}
		timer.Stop()

		if closed {
			// Watch source went away. Degrade to the timeout path alone.
			events = nil
			continue
		}

		// Strict wake priority: Terminate > Watch > Trigger > Timeout.
		// The select above picks arbitrarily among ready sources, so
		// upgrade the reason where a higher-priority source is also ready.
		if reason != wakeTerminate && e.terminated(ctx) {
			reason = wakeTerminate
		}
		if reason == wakeTimeout || reason == wakeTrigger {
			select {
			case _, ok := <-events:
				if ok {
					if reason == wakeTrigger {
						// Give the displaced trigger back; it coalesces.
						e.Kick()
					}
					reason = wakeWatch
				} else {
					events = nil
				}
			default:
			}
		}
		if reason == wakeTimeout {
			select {
			case <-e.kick:
				reason = wakeTrigger
			default:
			}
		}

		switch reason {
		case wakeTerminate:
			return nil

		case wakeWatch:
			events = drainEvents(events)
			capitan.Emit(ctx, WatchFired,
				KeyReason.Field(reason.String()),
			)
			if _, err := e.runCycle(ctx, true); err != nil {
				return err
			}

		case wakeTrigger:
			drainKicks(e.kick)
			capitan.Emit(ctx, TriggerReceived,
				KeyReason.Field(reason.String()),
			)
			if _, err := e.runCycle(ctx, true); err != nil {
				return err
			}

		case wakeTimeout:
			if _, err := e.runCycle(ctx, false); err != nil {
				return err
			}
		}
	}
}

// terminated reports whether shutdown has been requested. Non-blocking.
func (e *Engine) terminated(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-e.quit:
		return true
	default:
		return false
	}
}

// drainEvents acknowledges the entire notification backlog so one physical
// burst produces one logical regeneration. Returns nil if the channel
// closed while draining.
func drainEvents(events <-chan Event) <-chan Event {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return nil
			}
		default:
			return events
		}
	}
}

// drainKicks empties the trigger channel.
func drainKicks(kick <-chan struct{}) {
	for {
		select {
		case <-kick:
		default:
			return
		}
	}
}

func (e *Engine) setError(err error) {
	v := err
	e.lastError.Store(&v)
}

func (e *Engine) setOutcome(o Outcome) {
	e.lastOutcome.Store(int32(o))
}
