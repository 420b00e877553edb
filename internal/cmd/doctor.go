package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/namelens/tubelens/internal/config"
	"github.com/namelens/tubelens/internal/core/resolver"
	"github.com/namelens/tubelens/internal/observability"
)

// checkState is the outcome of one diagnostic.
type checkState int

const (
	checkOK checkState = iota
	checkWarn
	checkFail
)

func (s checkState) icon() string {
	switch s {
	case checkOK:
		return "✅"
	case checkWarn:
		return "⚠️ "
	default:
		return "❌"
	}
}

// doctorCheck is one line of the doctor report.
type doctorCheck struct {
	name string
	run  func(ctx context.Context, env *doctorEnv) (checkState, string)
}

// doctorEnv carries state shared between checks.
type doctorEnv struct {
	cfg    *config.Config
	cfgErr error
	probe  bool
	client *http.Client
}

var doctorProbe bool

var doctorChecks = []doctorCheck{
	{name: "Go version", run: checkGoVersion},
	{name: "Gofulmen/Crucible", run: checkCrucible},
	{name: "config directory", run: checkConfigDir},
	{name: "configuration", run: checkConfiguration},
	{name: "history database", run: checkHistoryStore},
	{name: "resolver endpoints", run: checkResolverEndpoints},
	{name: "metadata endpoint", run: checkMetadataEndpoint},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on configuration, storage and upstream endpoints.

Use --probe to contact each upstream endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		logger := observability.CLILogger

		identity := GetAppIdentity()
		logger.Info("=== " + identity.BinaryName + " doctor ===")
		logger.Info("")

		env := &doctorEnv{probe: doctorProbe, client: &http.Client{Timeout: 5 * time.Second}}
		env.cfg, env.cfgErr = loadConfig(ctx)

		failures := 0
		for i, check := range doctorChecks {
			state, detail := check.run(ctx, env)
			line := fmt.Sprintf("[%d/%d] Checking %s... %s %s", i+1, len(doctorChecks), check.name, state.icon(), detail)
			switch state {
			case checkOK:
				logger.Info(line)
			case checkWarn:
				logger.Warn(line)
			default:
				failures++
				logger.Error(line)
			}
		}

		logger.Info("")
		if failures > 0 {
			logger.Warn("Some checks failed. Review the output above for details.", zap.Int("failed", failures))
			return fmt.Errorf("%d diagnostic check(s) failed", failures)
		}
		logger.Info(fmt.Sprintf("All checks passed! Your %s installation is healthy.", identity.BinaryName))
		return nil
	},
}

var doctorInitForce bool

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := strings.TrimSpace(cfgFile)
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		data, err := defaultConfigYAML()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorProbe, "probe", false, "contact upstream endpoints")
	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite an existing config file")

	doctorCmd.AddCommand(doctorInitCmd)
	rootCmd.AddCommand(doctorCmd)
}

// defaultConfigYAML renders the built-in defaults as a config file.
func defaultConfigYAML() ([]byte, error) {
	v := viper.New()
	config.SetDefaults(v)
	settings := v.AllSettings()
	if server, ok := settings["server"].(map[string]any); ok {
		delete(server, "admin_token")
	}

	body, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("render default config: %w", err)
	}
	header := "# tubelens configuration\n# Environment variables (TUBELENS_*) override these values.\n"
	return append([]byte(header), body...), nil
}

func checkGoVersion(_ context.Context, _ *doctorEnv) (checkState, string) {
	version := runtime.Version()
	if version >= "go1.23" {
		return checkOK, version
	}
	return checkWarn, version + " (recommended: go1.23+)"
}

func checkCrucible(_ context.Context, _ *doctorEnv) (checkState, string) {
	version := crucible.GetVersion()
	if version.Gofulmen == "" || version.Crucible == "" {
		return checkFail, "embedded versions unavailable"
	}
	return checkOK, fmt.Sprintf("gofulmen v%s, crucible v%s", version.Gofulmen, version.Crucible)
}

func checkConfigDir(_ context.Context, _ *doctorEnv) (checkState, string) {
	configPath := config.DefaultConfigPath()
	if configPath == "" {
		return checkFail, "cannot resolve config directory"
	}
	if fileExists(configPath) {
		return checkOK, configPath
	}
	return checkWarn, configPath + " (not created; run 'doctor init')"
}

func checkConfiguration(_ context.Context, env *doctorEnv) (checkState, string) {
	if env.cfgErr != nil {
		return checkFail, env.cfgErr.Error()
	}
	cfg := env.cfg
	return checkOK, fmt.Sprintf("%s:%d, %d requests per %s", cfg.Server.Host, cfg.Server.Port, cfg.RateLimit.Limit, cfg.RateLimit.Window)
}

func checkHistoryStore(ctx context.Context, env *doctorEnv) (checkState, string) {
	if env.cfg == nil {
		return checkWarn, "skipped (config not loaded)"
	}
	if !env.cfg.History.Enabled {
		return checkOK, "disabled"
	}

	db, err := openStore(ctx, env.cfg)
	if err != nil {
		return checkFail, err.Error()
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	if err := db.Ping(ctx); err != nil {
		return checkFail, err.Error()
	}
	if env.cfg.Store.URL != "" {
		return checkOK, env.cfg.Store.URL + " (remote)"
	}
	absPath, _ := filepath.Abs(env.cfg.Store.Path)
	if info, err := os.Stat(absPath); err == nil {
		return checkOK, fmt.Sprintf("%s (%s)", absPath, formatFileSize(info.Size()))
	}
	return checkOK, absPath
}

func checkResolverEndpoints(ctx context.Context, env *doctorEnv) (checkState, string) {
	if env.cfg == nil {
		return checkWarn, "skipped (config not loaded)"
	}

	specs := resolver.WithEndpoints(resolver.DefaultSpecs(), env.cfg.Resolver.Endpoints)
	var problems []string
	for _, spec := range specs {
		if err := validateEndpoint(spec.Endpoint); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", spec.Name, err))
			continue
		}
		if env.probe {
			if err := probeEndpoint(ctx, env.client, spec.Endpoint); err != nil {
				problems = append(problems, fmt.Sprintf("%s unreachable: %v", spec.Name, err))
			}
		}
	}

	if len(problems) == len(specs) {
		return checkFail, strings.Join(problems, "; ")
	}
	if len(problems) > 0 {
		return checkWarn, strings.Join(problems, "; ")
	}
	return checkOK, fmt.Sprintf("%d configured", len(specs))
}

func checkMetadataEndpoint(ctx context.Context, env *doctorEnv) (checkState, string) {
	if env.cfg == nil {
		return checkWarn, "skipped (config not loaded)"
	}
	if !env.cfg.Metadata.Enabled {
		return checkOK, "disabled"
	}
	if err := validateEndpoint(env.cfg.Metadata.BaseURL); err != nil {
		return checkFail, err.Error()
	}
	if env.probe {
		if err := probeEndpoint(ctx, env.client, env.cfg.Metadata.BaseURL); err != nil {
			return checkWarn, "unreachable: " + err.Error()
		}
	}
	return checkOK, env.cfg.Metadata.BaseURL
}

func validateEndpoint(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// probeEndpoint treats any HTTP answer as reachable.
func probeEndpoint(ctx context.Context, client *http.Client, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
