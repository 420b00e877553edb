package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/namelens/tubelens/internal/core"
)

// tableLinkWidth bounds link cells in history listings.
const tableLinkWidth = 60

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatResolution renders one resolution as a two-column table.
func (f *TableFormatter) FormatResolution(resolution *core.Resolution) (string, error) {
	if resolution == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, row := range resolutionRows(resolution) {
		t.AppendRow(table.Row{row[0], row[1]})
	}
	return t.Render(), nil
}

// FormatHistory renders history entries, newest first as given.
func (f *TableFormatter) FormatHistory(entries []core.HistoryEntry) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Video", "Source", "Format", "Failed", "Resolved", "Primary"})

	for _, entry := range entries {
		source := string(entry.Source)
		if entry.Resolver != "" {
			source += " (" + entry.Resolver + ")"
		}
		t.AppendRow(table.Row{
			entry.ID,
			entry.VideoID,
			source,
			entry.FormatCode,
			entry.FailedAttempts,
			entry.ResolvedAt.Local().Format("2006-01-02 15:04:05"),
			shortLink(entry.PrimaryLink, tableLinkWidth),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", "", fmt.Sprintf("%d entries", len(entries))})
	return t.Render(), nil
}
