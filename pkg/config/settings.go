// Package config loads server settings from the environment and provider
// definitions from a YAML registry file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dasmlab/pagetrans/pkg/fetch"
)

// Settings holds the server configuration read from PAGETRANS_* variables.
// Command-line flags in cmd/server override these values.
type Settings struct {
	HTTPPort        int           `env:"PAGETRANS_HTTP_PORT" envDefault:"8080"`
	GRPCPort        int           `env:"PAGETRANS_GRPC_PORT" envDefault:"50051"`
	LogLevel        string        `env:"PAGETRANS_LOG_LEVEL" envDefault:"info"`
	ProvidersFile   string        `env:"PAGETRANS_PROVIDERS_FILE" envDefault:"providers.yaml"`
	ShutdownTimeout time.Duration `env:"PAGETRANS_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	MaxConcurrentJobs int           `env:"PAGETRANS_MAX_CONCURRENT_JOBS" envDefault:"4"`
	JobTimeout        time.Duration `env:"PAGETRANS_JOB_TIMEOUT" envDefault:"10m"`
	JobRetention      time.Duration `env:"PAGETRANS_JOB_RETENTION" envDefault:"1h"`

	FetchEnabled      bool          `env:"PAGETRANS_FETCH_ENABLED" envDefault:"true"`
	FetchUserAgent    string        `env:"PAGETRANS_FETCH_USER_AGENT"`
	FetchMaxBodySize  int64         `env:"PAGETRANS_FETCH_MAX_BODY_BYTES" envDefault:"10485760"`
	FetchTimeout      time.Duration `env:"PAGETRANS_FETCH_TIMEOUT" envDefault:"60s"`
	FetchAllowPrivate bool          `env:"PAGETRANS_FETCH_ALLOW_PRIVATE" envDefault:"false"`
	FetchIgnoreRobots bool          `env:"PAGETRANS_FETCH_IGNORE_ROBOTS" envDefault:"false"`
}

// FromEnv parses Settings from the process environment.
func FromEnv() (Settings, error) {
	s, err := env.ParseAs[Settings]()
	if err != nil {
		return s, fmt.Errorf("parse environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks value ranges that the environment parser cannot.
func (s Settings) Validate() error {
	if s.HTTPPort < 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port %d", s.HTTPPort)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port %d", s.GRPCPort)
	}
	if s.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max concurrent jobs must be at least 1, got %d", s.MaxConcurrentJobs)
	}
	return nil
}

// FetchOptions returns the page fetcher options described by s.
func (s Settings) FetchOptions() fetch.Options {
	return fetch.Options{
		UserAgent:    s.FetchUserAgent,
		MaxBodySize:  s.FetchMaxBodySize,
		Timeout:      s.FetchTimeout,
		AllowPrivate: s.FetchAllowPrivate,
		IgnoreRobots: s.FetchIgnoreRobots,
	}
}
