package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the user config file
// (~/.config/tubelens/config.yaml or --config), then TUBELENS_* environment
// variables and runtime overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	History   HistoryConfig   `mapstructure:"history"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AdminToken enables POST /admin/signal when non-empty.
	AdminToken string `mapstructure:"admin_token"`
}

// RateLimitConfig bounds requests per client within a sliding window.
//
// TrustedProxies lists peers (IPs or CIDRs) whose X-Forwarded-For or
// X-Real-IP headers name the client. Any other peer is keyed by its socket
// address.
type RateLimitConfig struct {
	Limit          int           `mapstructure:"limit"`
	Window         time.Duration `mapstructure:"window"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies. Bare addresses become single-host prefixes.
func (c RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range nonEmpty(c.TrustedProxies) {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ResolverConfig tunes the upstream resolver chain.
//
// Endpoints overrides the URL of a built-in resolver by name; the chain
// order is fixed.
type ResolverConfig struct {
	Timeout   time.Duration     `mapstructure:"timeout"`
	UserAgent string            `mapstructure:"user_agent"`
	Endpoints map[string]string `mapstructure:"endpoints"`
}

// FallbackConfig controls placeholder link generation.
type FallbackConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Mirrors []string      `mapstructure:"mirrors"`
}

// MetadataConfig controls the oEmbed lookup.
type MetadataConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HistoryConfig toggles persistence of completed resolutions.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultsConfig holds request parameter defaults.
type DefaultsConfig struct {
	FormatCode string `mapstructure:"format_code"`
	Quality    string `mapstructure:"quality"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	var problems []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}
	if c.RateLimit.Limit <= 0 {
		problems = append(problems, "rate_limit.limit must be positive")
	}
	if c.RateLimit.Window <= 0 {
		problems = append(problems, "rate_limit.window must be positive")
	}
	if _, err := c.RateLimit.TrustedPrefixes(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Resolver.Timeout <= 0 {
		problems = append(problems, "resolver.timeout must be positive")
	}
	if c.Fallback.TTL <= 0 {
		problems = append(problems, "fallback.ttl must be positive")
	}
	if len(nonEmpty(c.Fallback.Mirrors)) == 0 {
		problems = append(problems, "fallback.mirrors must not be empty")
	}
	if c.Metadata.Enabled && c.Metadata.Timeout <= 0 {
		problems = append(problems, "metadata.timeout must be positive")
	}
	if strings.TrimSpace(c.Defaults.FormatCode) == "" {
		problems = append(problems, "defaults.format_code is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
