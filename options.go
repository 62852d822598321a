package dynamo

import (
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultSleep is the default poll interval between unforced regenerations.
const DefaultSleep = 60 * time.Second

// DefaultCooldown is the default post-cycle quiet period during which wake
// sources are left unconsumed.
const DefaultCooldown = 5 * time.Second

// config holds configuration options for an Engine.
type config struct {
	sleep    time.Duration
	cooldown time.Duration
	oneShot  bool
	clock    clockz.Clock
	watcher  Watcher
	metrics  MetricsProvider
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*config)

// WithSleep sets the poll interval. When no watch event or trigger arrives
// within it, the engine regenerates anyway with force disabled.
func WithSleep(d time.Duration) Option {
	return func(c *config) {
		c.sleep = d
	}
}

// WithCooldown sets the debounce window observed after each cycle. Watch
// and trigger activity during the window stays queued and collapses into a
// single wake. Must not exceed the sleep interval.
func WithCooldown(d time.Duration) Option {
	return func(c *config) {
		c.cooldown = d
	}
}

// WithOneShot makes Run perform only the bootstrap regeneration and return
// instead of entering the wait loop.
func WithOneShot() Option {
	return func(c *config) {
		c.oneShot = true
	}
}

// WithClock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic loop testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithWatcher sets the filesystem watch source. Defaults to a FileWatcher;
// pass NopWatcher to rely on the poll timeout alone.
func WithWatcher(w Watcher) Option {
	return func(c *config) {
		c.watcher = w
	}
}

// WithMetrics sets the metrics provider. Defaults to NoOpMetricsProvider.
func WithMetrics(m MetricsProvider) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
