package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vyrodovalexey/webedge/internal/util"
)

// Settings holds process-level settings read from the environment.
type Settings struct {
	// ConfigPath is the site configuration file.
	ConfigPath  string `env:"WEBEDGE_CONFIG" envDefault:"configs/webedge.yaml"`
	WatchConfig bool   `env:"WEBEDGE_WATCH_CONFIG" envDefault:"true"`

	// Server settings
	ListenAddr      string        `env:"WEBEDGE_LISTEN_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"WEBEDGE_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WEBEDGE_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"WEBEDGE_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"WEBEDGE_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Upstream receives every request not answered by the edge. Empty
	// means unknown paths get 404.
	Upstream string `env:"WEBEDGE_UPSTREAM"`

	// BreakerThreshold enables the upstream circuit breaker when positive.
	BreakerThreshold int           `env:"WEBEDGE_UPSTREAM_BREAKER_THRESHOLD" envDefault:"0"`
	BreakerTimeout   time.Duration `env:"WEBEDGE_UPSTREAM_BREAKER_TIMEOUT" envDefault:"30s"`

	// Observability - Logging
	LogLevel  string `env:"WEBEDGE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"WEBEDGE_LOG_FORMAT" envDefault:"json"`

	// Observability - Tracing
	TracingEnabled    bool    `env:"WEBEDGE_TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint      string  `env:"WEBEDGE_OTLP_ENDPOINT"`
	TracingSampleRate float64 `env:"WEBEDGE_TRACING_SAMPLE_RATE" envDefault:"1.0"`
	ServiceName       string  `env:"WEBEDGE_SERVICE_NAME" envDefault:"webedge"`

	// LogIngestEndpoint is the web-vitals and client log ingest URL.
	LogIngestEndpoint string `env:"WEBEDGE_LOG_INGEST_ENDPOINT"`
}

// LoadSettings parses Settings from the process environment.
func LoadSettings() (*Settings, error) {
	return parseSettings(env.Options{})
}

// LoadSettingsFrom parses Settings from the given variables only.
func LoadSettingsFrom(vars map[string]string) (*Settings, error) {
	return parseSettings(env.Options{Environment: vars})
}

func parseSettings(opts env.Options) (*Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	if s.ConfigPath == "" {
		return util.NewConfigError("WEBEDGE_CONFIG", "config path is required")
	}
	if s.ListenAddr == "" {
		return util.NewConfigError("WEBEDGE_LISTEN_ADDR", "listen address is required")
	}
	if s.Upstream != "" {
		u, err := url.Parse(s.Upstream)
		if err != nil {
			return util.NewConfigErrorWithCause("WEBEDGE_UPSTREAM", "invalid upstream URL", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return util.NewConfigError("WEBEDGE_UPSTREAM", "upstream URL must be absolute")
		}
	}
	if s.BreakerThreshold < 0 {
		return util.NewConfigError("WEBEDGE_UPSTREAM_BREAKER_THRESHOLD", "breaker threshold must not be negative")
	}
	if s.BreakerThreshold > 0 && s.BreakerTimeout <= 0 {
		return util.NewConfigError("WEBEDGE_UPSTREAM_BREAKER_TIMEOUT", "breaker timeout must be positive")
	}
	if s.TracingSampleRate < 0 || s.TracingSampleRate > 1 {
		return util.NewConfigError("WEBEDGE_TRACING_SAMPLE_RATE", "sample rate must be between 0 and 1")
	}
	if s.TracingEnabled && s.OTLPEndpoint == "" {
		return util.NewConfigError("WEBEDGE_OTLP_ENDPOINT", "OTLP endpoint is required when tracing is enabled")
	}
	if s.ShutdownTimeout <= 0 {
		return util.NewConfigError("WEBEDGE_SHUTDOWN_TIMEOUT", "shutdown timeout must be positive")
	}
	return nil
}
