package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateUserConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		isolateUserConfig(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify admission and resolver defaults
		assert.Equal(t, 10, cfg.RateLimit.Limit)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 30*time.Second, cfg.Resolver.Timeout)
		assert.Empty(t, cfg.Resolver.Endpoints)

		// Verify fallback and metadata defaults
		assert.Equal(t, 6*time.Hour, cfg.Fallback.TTL)
		assert.Equal(t, DefaultMirrors, cfg.Fallback.Mirrors)
		assert.True(t, cfg.Metadata.Enabled)
		assert.Equal(t, "https://www.youtube.com/oembed", cfg.Metadata.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.Metadata.Timeout)

		// Verify request defaults
		assert.Equal(t, "18", cfg.Defaults.FormatCode)
		assert.Equal(t, "medium", cfg.Defaults.Quality)

		// Verify store defaults
		assert.False(t, cfg.History.Enabled)
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("tubelens"), "tubelens.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)

		// Verify logging, metrics and health defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "structured", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.Enabled)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolateUserConfig(t)

		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"rate_limit": map[string]any{
				"limit": 3,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 3, cfg.RateLimit.Limit)

		// Verify non-overridden values remain default
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		isolateUserConfig(t)
		t.Setenv("TUBELENS_PORT", "3000")
		t.Setenv("TUBELENS_LOG_LEVEL", "warn")
		t.Setenv("TUBELENS_METRICS_ENABLED", "false")
		t.Setenv("TUBELENS_RATE_LIMIT_WINDOW", "2m")
		t.Setenv("TUBELENS_FALLBACK_MIRRORS", "https://a.example/vp,https://b.example/vp")
		t.Setenv("TUBELENS_TRUSTED_PROXIES", "10.0.0.1,172.16.0.0/12")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, []string{"https://a.example/vp", "https://b.example/vp"}, cfg.Fallback.Mirrors)
		assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, cfg.RateLimit.TrustedProxies)
	})

	// Test config precedence: runtime > env > file > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolateUserConfig(t)
		t.Setenv("TUBELENS_PORT", "4000")

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
  host: 127.0.0.1
resolver:
  endpoints:
    bizft-v2: http://localhost:9999/analyze
`), 0o600))

		cfg, err := LoadFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 4000, cfg.Server.Port)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, "http://localhost:9999/analyze", cfg.Resolver.Endpoints["bizft-v2"])

		cfg, err = LoadFile(ctx, path, map[string]any{"server": map[string]any{"port": 5000}})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		isolateUserConfig(t)
		_, err := LoadFile(ctx, filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		isolateUserConfig(t)
		_, err := Load(ctx, map[string]any{"rate_limit": map[string]any{"limit": 0}})
		require.Error(t, err)
		assert.True(t, IsInvalid(err))
	})
}

func TestGetConfig(t *testing.T) {
	isolateUserConfig(t)
	ctx := context.Background()

	cfg, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	retrieved := GetConfig()
	assert.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestEnvSpecs(t *testing.T) {
	isolateUserConfig(t)
	_, err := Load(context.Background())
	require.NoError(t, err)

	envVarNames := make(map[string]bool)
	for _, spec := range getEnvSpecs() {
		envVarNames[spec.Name] = true
	}

	assert.True(t, envVarNames["TUBELENS_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["TUBELENS_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["TUBELENS_HOST"], "HOST env var must be mapped")
	assert.True(t, envVarNames["TUBELENS_RATE_LIMIT"], "RATE_LIMIT env var must be mapped")
	assert.True(t, envVarNames["TUBELENS_DB_PATH"], "DB_PATH env var must be mapped")
	assert.True(t, envVarNames["TUBELENS_ADMIN_TOKEN"], "ADMIN_TOKEN env var must be mapped")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 8080},
			RateLimit: RateLimitConfig{Limit: 10, Window: time.Minute},
			Resolver:  ResolverConfig{Timeout: 30 * time.Second},
			Fallback:  FallbackConfig{TTL: 6 * time.Hour, Mirrors: DefaultMirrors},
			Metadata:  MetadataConfig{Enabled: true, Timeout: 10 * time.Second},
			Defaults:  DefaultsConfig{FormatCode: "18"},
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"zero window":     func(c *Config) { c.RateLimit.Window = 0 },
		"negative limit":  func(c *Config) { c.RateLimit.Limit = -1 },
		"zero timeout":    func(c *Config) { c.Resolver.Timeout = 0 },
		"blank mirrors":   func(c *Config) { c.Fallback.Mirrors = []string{" "} },
		"no format code":  func(c *Config) { c.Defaults.FormatCode = "" },
		"port over range": func(c *Config) { c.Server.Port = 70000 },
		"bad proxy":       func(c *Config) { c.RateLimit.TrustedProxies = []string{"10.0.0.0/33"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestTrustedPrefixes(t *testing.T) {
	cfg := RateLimitConfig{TrustedProxies: []string{"10.1.2.3", " 192.168.0.0/16 ", "", "::ffff:10.9.9.9", "2001:db8::/32"}}

	prefixes, err := cfg.TrustedPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 4)
	assert.Equal(t, "10.1.2.3/32", prefixes[0].String())
	assert.Equal(t, "192.168.0.0/16", prefixes[1].String())
	assert.Equal(t, "10.9.9.9/32", prefixes[2].String())
	assert.Equal(t, "2001:db8::/32", prefixes[3].String())

	none, err := RateLimitConfig{}.TrustedPrefixes()
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = RateLimitConfig{TrustedProxies: []string{"proxy.internal"}}.TrustedPrefixes()
	require.Error(t, err)
}

