package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/appid"
	"github.com/namelens/tubelens/internal/config"
	"github.com/namelens/tubelens/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// App identity loaded from the embedded app.yaml
	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}

	configMu     sync.Mutex
	loadedConfig *config.Config
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity, falling back to the
// built-in default before initConfig has run.
func GetAppIdentity() *appidentity.Identity {
	if appIdentity == nil {
		return appid.Default()
	}
	return appIdentity
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	// initConfig overwrites these from app identity.
	Use:   filepath.Base(os.Args[0]),
	Short: "Resolve video URLs into direct download links",
	Long: `Resolve video page URLs into direct download links.

Run "serve" for the HTTP API or "resolve" for a one-off lookup.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config loading must not emit metrics to stdout; serve installs the real system.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		applyIdentityToHelp(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig resolves the identity and sets up the CLI logger. Configuration
// itself is loaded lazily by the commands that need it.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity", err)
	}
	appIdentity = identity
	applyIdentityToHelp(identity)

	observability.InitCLILogger(identity.BinaryName, verbose)
	if cfgFile != "" && verbose {
		observability.CLILogger.Debug("Using config file", zap.String("path", cfgFile))
	}
}

func applyIdentityToHelp(identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
		rootCmd.Long = fmt.Sprintf("%s - %s\n\nRun \"serve\" for the HTTP API or \"resolve\" for a one-off lookup.", identity.BinaryName, identity.Description)
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

// loadConfig loads configuration once per process, honoring --config.
// Overrides force a fresh load.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	configMu.Lock()
	defer configMu.Unlock()

	if loadedConfig != nil && len(overrides) == 0 {
		return loadedConfig, nil
	}

	cfg, err := config.LoadFile(ctx, cfgFile, overrides...)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	loadedConfig = cfg
	return cfg, nil
}

// reloadConfig discards the cached configuration and loads it again.
func reloadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	configMu.Lock()
	loadedConfig = nil
	configMu.Unlock()
	return loadConfig(ctx, overrides...)
}
