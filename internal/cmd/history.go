package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/namelens/tubelens/internal/core/store"
	errwrap "github.com/namelens/tubelens/internal/errors"
	"github.com/namelens/tubelens/internal/output"
)

var (
	historyListVideo string
	historyListSince time.Duration
	historyListLimit int

	historyPruneOlderThan time.Duration
	historyPruneYes       bool
	historyPruneOutput    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded resolutions",
	Long: `Inspect and prune the resolution history database.

Resolutions are recorded while history.enabled is true (TUBELENS_HISTORY_ENABLED).`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded resolutions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		filter := store.HistoryFilter{
			VideoID: strings.TrimSpace(historyListVideo),
			Limit:   historyListLimit,
		}
		if historyListSince > 0 {
			filter.Since = time.Now().Add(-historyListSince)
		}

		entries, err := db.ListResolutions(ctx, filter)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatHistory(entries)
		if err != nil {
			return err
		}
		return writeRendered(outPath, rendered)
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete resolutions older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := output.ParseFormat(historyPruneOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}
		if historyPruneOlderThan <= 0 {
			return errors.New("--older-than must be positive")
		}
		if !historyPruneYes {
			return errors.New("prune requires --yes")
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "configuration invalid")
		}

		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		cutoff := time.Now().Add(-historyPruneOlderThan)
		deleted, err := db.PruneResolutions(ctx, cutoff)
		if err != nil {
			return err
		}

		return writePruneResult(format, cmd.OutOrStdout(), cutoff, deleted)
	},
}

func writePruneResult(format output.Format, w io.Writer, cutoff time.Time, deleted int64) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
			"deleted": deleted,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	_, err := fmt.Fprintf(w, "Deleted %d resolution(s) recorded before %s\n", deleted, cutoff.Local().Format("2006-01-02 15:04:05"))
	return err
}

func init() {
	historyListCmd.Flags().StringVar(&historyListVideo, "video", "", "only entries for this video id")
	historyListCmd.Flags().DurationVar(&historyListSince, "since", 0, "only entries newer than this age (e.g. 24h)")
	historyListCmd.Flags().IntVar(&historyListLimit, "limit", store.DefaultHistoryLimit, "maximum entries to show")
	addOutputFlags(historyListCmd)

	historyPruneCmd.Flags().DurationVar(&historyPruneOlderThan, "older-than", 30*24*time.Hour, "delete entries older than this age")
	historyPruneCmd.Flags().BoolVar(&historyPruneYes, "yes", false, "confirm deletion")
	historyPruneCmd.Flags().StringVar(&historyPruneOutput, "output-format", string(output.FormatTable), "output format: table|json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
