package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime settings for the pointing poker service.
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"pointing_poker.sqlite"`

	// AllowedVotes is the closed set of vote tokens clients may submit.
	AllowedVotes []string `env:"ALLOWED_VOTES" envSeparator:"," envDefault:"?,☕,0,0.5,1,2,3,5,8,13,21"`

	// RetentionWindow bounds how old a presence ping may be for a user to
	// still count as present.
	RetentionWindow time.Duration `env:"RETENTION_WINDOW" envDefault:"2h"`

	// PollInterval is the refresh cadence of the poll loop; worst-case
	// staleness for any viewer is one interval.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
}

// FromEnv parses configuration from environment variables.
func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if len(c.AllowedVotes) == 0 {
		return fmt.Errorf("allowed votes must not be empty")
	}
	if c.RetentionWindow <= 0 {
		return fmt.Errorf("retention window must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

// VoteAllowed reports whether the token is in the configured vote set.
func (c Config) VoteAllowed(vote string) bool {
	for _, v := range c.AllowedVotes {
		if v == vote {
			return true
		}
	}
	return false
}
