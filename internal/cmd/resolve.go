package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/core/videoid"
	errwrap "github.com/namelens/tubelens/internal/errors"
	"github.com/namelens/tubelens/internal/observability"
	"github.com/namelens/tubelens/internal/output"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Resolve a video URL into download links",
	Long: `Resolve a single video URL through the upstream resolver chain, falling
back to generated links when every upstream fails.

Examples:
  tubelens resolve https://youtu.be/dQw4w9WgXcQ
  tubelens resolve "https://www.youtube.com/watch?v=dQw4w9WgXcQ" --format-code 22 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().String("format-code", "", "format (itag) code; defaults to config defaults.format_code")
	resolveCmd.Flags().Bool("no-history", false, "do not record this resolution even when history is enabled")
	addOutputFlags(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, err := resolveOutputPath(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "configuration invalid")
	}

	formatCode, _ := cmd.Flags().GetString("format-code")
	if strings.TrimSpace(formatCode) == "" {
		formatCode = cfg.Defaults.FormatCode
	}

	if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
		local := *cfg
		local.History.Enabled = false
		cfg = &local
	}

	svc, err := buildServices(ctx, cfg, observability.CLILogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil && observability.CLILogger != nil {
			observability.CLILogger.Warn("Failed to close history store", zap.Error(err))
		}
	}()

	resolution, err := svc.Orchestrator.Resolve(ctx, args[0], formatCode)
	if err != nil {
		if isInputError(err) {
			return errwrap.WrapInvalidInput(ctx, err, err.Error())
		}
		return err
	}

	rendered, err := output.NewFormatter(format).FormatResolution(resolution)
	if err != nil {
		return err
	}
	return writeRendered(outPath, rendered)
}

func isInputError(err error) bool {
	return errors.Is(err, videoid.ErrURLRequired) ||
		errors.Is(err, videoid.ErrInvalidURL) ||
		errors.Is(err, videoid.ErrNoVideoID)
}
