package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/config"
	"github.com/namelens/tubelens/internal/core/resolver"
	"github.com/namelens/tubelens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		logger.Info("=== " + identity.BinaryName + " environment ===")
		logger.Info("")

		logger.Info("Application:")
		logger.Info("  Name:       " + identity.BinaryName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("  Env prefix: " + identity.EnvPrefix)
		logger.Info("")

		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info(fmt.Sprintf("  Platform:   %s/%s", runtime.GOOS, runtime.GOARCH))
		logger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		logger.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		logger.Info("Server:")
		logger.Info(fmt.Sprintf("  Listen:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		logger.Info(fmt.Sprintf("  Timeouts:       read %s, write %s, idle %s", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout))
		logger.Info(fmt.Sprintf("  Rate limit:     %d per %s", cfg.RateLimit.Limit, cfg.RateLimit.Window))
		logger.Info(fmt.Sprintf("  Admin endpoint: %t", strings.TrimSpace(cfg.Server.AdminToken) != ""))
		logger.Info("  Config file:    " + config.DefaultConfigPath())
		logger.Info("")

		logger.Info("Resolvers:")
		logger.Info("  Timeout:        " + cfg.Resolver.Timeout.String())
		for _, spec := range resolver.WithEndpoints(resolver.DefaultSpecs(), cfg.Resolver.Endpoints) {
			logger.Info(fmt.Sprintf("  %-14s  %s %s", spec.Name+":", spec.Method, spec.Endpoint))
		}
		if len(cfg.Resolver.Endpoints) > 0 {
			names := make([]string, 0, len(cfg.Resolver.Endpoints))
			for name := range cfg.Resolver.Endpoints {
				names = append(names, name)
			}
			sort.Strings(names)
			logger.Info("  Overridden:     " + strings.Join(names, ", "))
		}
		logger.Info("")

		logger.Info("Fallback:")
		logger.Info("  Link TTL:       " + cfg.Fallback.TTL.String())
		logger.Info(fmt.Sprintf("  Mirrors:        %d", len(cfg.Fallback.Mirrors)))
		logger.Info("  Default format: " + cfg.Defaults.FormatCode)
		logger.Info("")

		logger.Info("Metadata:")
		logger.Info(fmt.Sprintf("  Enabled:        %t", cfg.Metadata.Enabled))
		if cfg.Metadata.Enabled {
			logger.Info("  Endpoint:       " + cfg.Metadata.BaseURL)
		}
		logger.Info("")

		logger.Info("History:")
		logger.Info(fmt.Sprintf("  Enabled:        %t", cfg.History.Enabled))
		logger.Info("  DB Driver:      " + cfg.Store.Driver)
		if strings.TrimSpace(cfg.Store.URL) != "" {
			logger.Info("  DB URL:         " + cfg.Store.URL)
		} else {
			logger.Info("  DB Path:        " + cfg.Store.Path)
		}
		logger.Info("")

		logger.Info("Observability:")
		logger.Info("  Log Level:      " + cfg.Logging.Level)
		logger.Info("  Log Profile:    " + cfg.Logging.Profile)
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
