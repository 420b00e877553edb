package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/namelens/tubelens/internal/core/resolver"
	"github.com/namelens/tubelens/internal/server/handlers"
)

var (
	versionExtended bool
	versionJSON     bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, dependency and resolver details, or --json for the /version payload.",
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		handlers.SetAppIdentity(identity)
		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

		if versionExtended || versionJSON {
			// Resolver names come from config; a broken config only hides them.
			if cfg, err := loadConfig(cmd.Context()); err == nil {
				specs := resolver.WithEndpoints(resolver.DefaultSpecs(), cfg.Resolver.Endpoints)
				names := make([]string, 0, len(specs))
				for _, spec := range specs {
					names = append(names, spec.Name)
				}
				handlers.SetResolverNames(names)
			}
		}

		report := handlers.CurrentVersion()
		out := cmd.OutOrStdout()
		switch {
		case versionJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case versionExtended:
			return writeExtendedVersion(out, report)
		default:
			_, err := fmt.Fprintf(out, "%s %s\n", report.App.Name, report.App.Version)
			return err
		}
	},
}

func writeExtendedVersion(w io.Writer, report handlers.VersionResponse) error {
	lines := []string{
		fmt.Sprintf("%s %s", report.App.Name, report.App.Version),
		"Commit: " + report.App.Commit,
		"Built: " + report.App.BuildDate,
		"Go: " + report.App.GoVersion,
	}
	if report.App.Vendor != "" {
		lines = append(lines, "Vendor: "+report.App.Vendor)
	}
	lines = append(lines, "",
		"Gofulmen: "+report.Dependencies.Gofulmen,
		"Crucible: "+report.Dependencies.Crucible)
	if len(report.Resolvers) > 0 {
		lines = append(lines, "", "Resolvers:")
		for i, name := range report.Resolvers {
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, name))
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionExtended, "extended", "e", false, "show build, dependency and resolver details")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print the /version payload as JSON")
}
