package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/config"
	errwrap "github.com/namelens/tubelens/internal/errors"
	"github.com/namelens/tubelens/internal/metrics"
	"github.com/namelens/tubelens/internal/observability"
	"github.com/namelens/tubelens/internal/server"
	"github.com/namelens/tubelens/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// resolverHealthChecker fails when the chain has nothing to fall back on.
type resolverHealthChecker struct {
	svc *services
}

func (r resolverHealthChecker) CheckHealth(ctx context.Context) error {
	if r.svc == nil || r.svc.Orchestrator == nil || r.svc.Orchestrator.Links == nil {
		return errwrap.NewServiceUnavailableError("resolver pipeline not configured")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API.

Endpoints:
  GET /?url=<video url>&format_code=<itag>   resolve download links
  GET /ping                                  liveness message
  GET /health, /version, /metrics            operational endpoints

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload configuration (log level only; restart for the rest)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "server port (overrides config)")
}

// serveOverrides turns explicitly set flags into config overrides.
func serveOverrides(cmd *cobra.Command) map[string]any {
	serverOverrides := map[string]any{}
	if cmd.Flags().Changed("host") {
		serverOverrides["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		serverOverrides["port"] = serverPort
	}
	if len(serverOverrides) == 0 {
		return nil
	}
	return map[string]any{"server": serverOverrides}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	overrides := serveOverrides(cmd)
	var (
		cfg *config.Config
		err error
	)
	if overrides != nil {
		cfg, err = loadConfig(ctx, overrides)
	} else {
		cfg, err = loadConfig(ctx)
	}
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "configuration invalid")
	}

	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, namespace)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
		metrics.SetServerStartTime(time.Now().Unix())
	}

	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to build resolver services", zap.Error(err))
		return errwrap.WrapInternal(ctx, err, "service initialization failed")
	}

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("resolvers", svc.ResolverNames),
		zap.Int("rate_limit", cfg.RateLimit.Limit),
		zap.Duration("rate_window", cfg.RateLimit.Window),
		zap.Strings("trusted_proxies", cfg.RateLimit.TrustedProxies),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Int("metrics_port", observability.GetMetricsPort()))

	trustedProxies, err := cfg.RateLimit.TrustedPrefixes()
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid trusted proxies")
	}

	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("resolver", resolverHealthChecker{svc: svc})
	hm.RegisterChecker("app_identity", identityHealthChecker{
		binaryName: identity.BinaryName,
		envPrefix:  identity.EnvPrefix,
		configName: identity.ConfigName,
	})
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
	}
	if svc.Store != nil {
		hm.RegisterChecker("store", handlers.CheckerFunc(func(ctx context.Context) error {
			return svc.Store.Ping(ctx)
		}))
	}

	handlers.SetAppIdentity(identity)
	handlers.SetResolverNames(svc.ResolverNames)

	srv := server.New(server.Options{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		AdminToken:    cfg.Server.AdminToken,
		DisableHealth: !cfg.Health.Enabled,
		Profiling:     cfg.Debug.Enabled,
		Resolve: &handlers.ResolveHandler{
			Limiter:        svc.Limiter,
			Service:        svc.Orchestrator,
			DefaultFormat:  cfg.Defaults.FormatCode,
			Logger:         logger,
			TrustedProxies: trustedProxies,
		},
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Shutdown handlers run LIFO: HTTP server, then store and exporter, then logger.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			logger.Debug("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close history store", zap.Error(err))
		}
		if err := observability.StopMetrics(); err != nil {
			logger.Warn("Failed to stop metrics exporter", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}

		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: reloading configuration")

		next, err := reloadConfig(ctx, overrides)
		if err != nil {
			logger.Error("Config reload failed", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		logger.SetLevel(observability.SeverityFor(next.Logging.Level))
		logger.Info("Configuration reloaded",
			zap.String("log_level", next.Logging.Level),
			zap.Bool("restart_required", restartRequired(cfg, next)))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}

	return nil
}

// restartRequired reports whether settings that are only read at startup changed.
func restartRequired(prev, next *config.Config) bool {
	if prev == nil || next == nil {
		return false
	}
	return prev.Server.Host != next.Server.Host ||
		prev.Server.Port != next.Server.Port ||
		prev.RateLimit != next.RateLimit ||
		prev.Resolver.Timeout != next.Resolver.Timeout ||
		prev.Fallback.TTL != next.Fallback.TTL ||
		prev.History.Enabled != next.History.Enabled ||
		prev.Metrics != next.Metrics
}
