// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"time"

	"github.com/okian/pedalrank/internal/domain/catalogue"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Backend selects the rating store: memory, postgres, sqlite or upstash.
	Backend string `koanf:"backend" validate:"oneof=memory postgres sqlite upstash"`

	PostgresDSN      string  `koanf:"postgres_dsn" validate:"required_if=Backend postgres"`
	SQLitePath       string  `koanf:"sqlite_path" validate:"required_if=Backend sqlite"`
	UpstashURL       string  `koanf:"upstash_url" validate:"required_if=Backend upstash,omitempty,url"`
	UpstashToken     string  `koanf:"upstash_token" validate:"required_if=Backend upstash"`
	UpstashRPS       float64 `koanf:"upstash_rps" validate:"min=0"`
	UpstashTimeoutMS int     `koanf:"upstash_timeout_ms" validate:"min=1"`

	// FlushDelayMS is the quiet period before a pending value is written.
	FlushDelayMS int `koanf:"flush_delay_ms" validate:"min=1"`

	// FlushWorkers sets the number of flush workers.
	FlushWorkers int `koanf:"flush_workers" validate:"min=1,max=64"`

	// FlushQueueSize bounds each flush worker queue.
	FlushQueueSize int `koanf:"flush_queue_size" validate:"min=1"`

	// RecentSize bounds the window of recently shown pedals.
	RecentSize int `koanf:"recent_size" validate:"min=1"`

	// VotedSize bounds the window of applied matchup ids.
	VotedSize int `koanf:"voted_size" validate:"min=1"`

	CatalogueFile      string `koanf:"catalogue_file"`
	CatalogueURL       string `koanf:"catalogue_url" validate:"omitempty,url"`
	CatalogueTimeoutMS int    `koanf:"catalogue_timeout_ms" validate:"min=1"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"min=1"`

	// ProxyEnabled mounts the /api/redis passthrough.
	ProxyEnabled bool `koanf:"proxy_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Backend:             "memory",
		UpstashRPS:          20,
		UpstashTimeoutMS:    5000,
		FlushDelayMS:        700,
		FlushWorkers:        4,
		FlushQueueSize:      256,
		RecentSize:          14,
		VotedSize:           4096,
		CatalogueFile:       "pedals.json",
		CatalogueURL:        catalogue.DefaultURL,
		CatalogueTimeoutMS:  10_000,
		MaxLeaderboardLimit: 500,
	}
}

// FlushDelay returns FlushDelayMS as a duration.
func (c *Config) FlushDelay() time.Duration {
	return time.Duration(c.FlushDelayMS) * time.Millisecond
}

// UpstashTimeout returns UpstashTimeoutMS as a duration.
func (c *Config) UpstashTimeout() time.Duration {
	return time.Duration(c.UpstashTimeoutMS) * time.Millisecond
}

// CatalogueTimeout returns CatalogueTimeoutMS as a duration.
func (c *Config) CatalogueTimeout() time.Duration {
	return time.Duration(c.CatalogueTimeoutMS) * time.Millisecond
}
