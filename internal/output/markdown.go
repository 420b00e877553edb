package output

import (
	"fmt"
	"strings"

	"github.com/namelens/tubelens/internal/core"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatResolution renders a resolution as Markdown.
func (f *MarkdownFormatter) FormatResolution(resolution *core.Resolution) (string, error) {
	if resolution == nil {
		return "", nil
	}

	heading := resolution.VideoID
	if title := videoTitle(resolution); title != "" {
		heading = title
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(heading)))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	for _, row := range resolutionRows(resolution) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", escapeMarkdownCell(row[0]), escapeMarkdownCell(row[1])))
	}
	return sb.String(), nil
}

// FormatHistory renders history entries as a Markdown table.
func (f *MarkdownFormatter) FormatHistory(entries []core.HistoryEntry) (string, error) {
	var sb strings.Builder
	sb.WriteString("| ID | Video | Source | Format | Failed | Resolved |\n")
	sb.WriteString("|----|-------|--------|--------|--------|----------|\n")
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %d | %s |\n",
			entry.ID,
			escapeMarkdownCell(entry.VideoID),
			escapeMarkdownCell(string(entry.Source)),
			escapeMarkdownCell(entry.FormatCode),
			entry.FailedAttempts,
			entry.ResolvedAt.UTC().Format("2006-01-02 15:04:05Z"),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
