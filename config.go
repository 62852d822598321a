package dynamo

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// validate is the shared validator instance.
var validate = validator.New()

// Config is the engine's environment-derived configuration. Daemons that
// prefer explicit Option calls can ignore it entirely; daemons that follow
// the usual twelve-factor shape load it once at startup:
//
//	cfg, err := dynamo.ConfigFromEnv("MYAPP")
//	engine, err := dynamo.New(target, cfg.Options()...)
//
// With prefix "MYAPP" the variables are MYAPP_SLEEP_DURATION,
// MYAPP_COOLDOWN_DURATION, and MYAPP_ONE_SHOT.
type Config struct {
	// SleepDuration is the poll interval between unforced regenerations.
	SleepDuration time.Duration `envconfig:"SLEEP_DURATION" default:"60s" validate:"min=0"`

	// CooldownDuration is the post-cycle debounce window. Must not exceed
	// SleepDuration.
	CooldownDuration time.Duration `envconfig:"COOLDOWN_DURATION" default:"5s" validate:"min=0,ltefield=SleepDuration"`

	// OneShot performs only the bootstrap regeneration and exits.
	OneShot bool `envconfig:"ONE_SHOT" default:"false"`
}

// ConfigFromEnv loads and validates a Config from environment variables
// under the given prefix.
func ConfigFromEnv(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("dynamo: failed to process env vars: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("dynamo: invalid configuration: %w", err)
	}
	return cfg, nil
}

// Options converts the Config into engine options.
func (c Config) Options() []Option {
	opts := []Option{
		WithSleep(c.SleepDuration),
		WithCooldown(c.CooldownDuration),
	}
	if c.OneShot {
		opts = append(opts, WithOneShot())
	}
	return opts
}
